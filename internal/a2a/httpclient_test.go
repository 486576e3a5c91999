package a2a

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rpcHandler decodes a JSONRPCRequest and writes back fn's response.
func rpcHandler(t *testing.T, fn func(req JSONRPCRequest) JSONRPCResponse) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req JSONRPCRequest
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) {
			return
		}
		assert.Equal(t, JSONRPCVersion, req.JSONRPC)

		w.Header().Set("Content-Type", "application/json")
		assert.NoError(t, json.NewEncoder(w).Encode(fn(req)))
	}
}

func resultOf(t *testing.T, id any, v any) JSONRPCResponse {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return JSONRPCResponse{JSONRPC: JSONRPCVersion, ID: id, Result: data}
}

func TestHTTPClient_SendMessage(t *testing.T) {
	ts := httptest.NewServer(rpcHandler(t, func(req JSONRPCRequest) JSONRPCResponse {
		assert.Equal(t, MethodSendMessage, req.Method)

		var params SendMessageRequest
		assert.NoError(t, json.Unmarshal(req.Params, &params))
		assert.Equal(t, RoleUser, params.Message.Role)
		assert.Equal(t, "Go channels", params.Message.Text())

		return resultOf(t, req.ID, Task{
			ID:        "task-001",
			ContextID: "ctx-001",
			Status: TaskStatus{
				State:     TaskStateInputRequired,
				Message:   &Message{MessageID: "q1", Role: RoleAgent, Parts: []Part{TextPart("What is a channel?")}},
				Timestamp: time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC),
			},
		})
	}))
	defer ts.Close()

	client := NewHTTPClient()
	task, err := client.SendMessage(context.Background(), ts.URL, SendMessageRequest{
		Message: NewMessage(RoleUser, "Go channels"),
	})
	require.NoError(t, err)
	assert.Equal(t, "task-001", task.ID)
	assert.Equal(t, TaskStateInputRequired, task.Status.State)
	require.NotNil(t, task.Status.Message)
	assert.Equal(t, "What is a channel?", task.Status.Message.Text())
}

func TestHTTPClient_RequestIDsIncrease(t *testing.T) {
	var (
		mu  sync.Mutex
		ids []float64
	)
	ts := httptest.NewServer(rpcHandler(t, func(req JSONRPCRequest) JSONRPCResponse {
		mu.Lock()
		ids = append(ids, req.ID.(float64))
		mu.Unlock()
		return resultOf(t, req.ID, Task{ID: "t"})
	}))
	defer ts.Close()

	client := NewHTTPClient()
	for range 3 {
		_, err := client.GetTask(context.Background(), ts.URL, GetTaskRequest{ID: "t"})
		require.NoError(t, err)
	}
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []float64{1, 2, 3}, ids)
}

func TestHTTPClient_RPCError(t *testing.T) {
	ts := httptest.NewServer(rpcHandler(t, func(req JSONRPCRequest) JSONRPCResponse {
		return JSONRPCResponse{
			JSONRPC: JSONRPCVersion,
			ID:      req.ID,
			Error:   &JSONRPCError{Code: ErrCodeTaskNotFound, Message: "a2a: task not found: t1", Data: json.RawMessage(`"t1"`)},
		}
	}))
	defer ts.Close()

	_, err := NewHTTPClient().GetTask(context.Background(), ts.URL, GetTaskRequest{ID: "t1"})
	var rpcErr *RPCError
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, MethodGetTask, rpcErr.Method)
	assert.Equal(t, ErrCodeTaskNotFound, rpcErr.Code)
	assert.Contains(t, err.Error(), "rpc error -32001")
	assert.Contains(t, err.Error(), `data: "t1"`)
}

func TestHTTPClient_HTTPError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gateway down", http.StatusBadGateway)
	}))
	defer ts.Close()

	_, err := NewHTTPClient().CancelTask(context.Background(), ts.URL, CancelTaskRequest{ID: "t1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 502")
	assert.Contains(t, err.Error(), "gateway down")
}

func TestHTTPClient_MalformedResponse(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte("{broken"))
	}))
	defer ts.Close()

	_, err := NewHTTPClient().ListTasks(context.Background(), ts.URL, ListTasksRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode response")
}

func TestHTTPClient_ListAndCancel(t *testing.T) {
	ts := httptest.NewServer(rpcHandler(t, func(req JSONRPCRequest) JSONRPCResponse {
		switch req.Method {
		case MethodListTasks:
			var params ListTasksRequest
			assert.NoError(t, json.Unmarshal(req.Params, &params))
			assert.Equal(t, "input-required", params.Status)
			return resultOf(t, req.ID, ListTasksResponse{Tasks: []Task{{ID: "a"}, {ID: "b"}}, TotalSize: 2})
		case MethodCancelTask:
			return resultOf(t, req.ID, Task{ID: "a", Status: TaskStatus{State: TaskStateCanceled}})
		}
		t.Errorf("unexpected method %s", req.Method)
		return JSONRPCResponse{}
	}))
	defer ts.Close()

	client := NewHTTPClient()
	list, err := client.ListTasks(context.Background(), ts.URL, ListTasksRequest{Status: "input-required"})
	require.NoError(t, err)
	assert.Equal(t, 2, list.TotalSize)

	task, err := client.CancelTask(context.Background(), ts.URL, CancelTaskRequest{ID: "a"})
	require.NoError(t, err)
	assert.Equal(t, TaskStateCanceled, task.Status.State)
}

func TestHTTPClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer ts.Close()
	defer close(release)

	client := NewHTTPClient(WithTimeout(50 * time.Millisecond))
	_, err := client.GetTask(context.Background(), ts.URL, GetTaskRequest{ID: "t"})
	assert.Error(t, err)
}

func TestHTTPClient_WithHTTPClient(t *testing.T) {
	hc := &http.Client{Timeout: time.Second}
	c := NewHTTPClient(WithHTTPClient(hc))
	assert.Same(t, hc, c.http)
}

func TestHTTPClient_DiscoverAgent(t *testing.T) {
	card := testCard()
	ts := httptest.NewServer(NewServer(card, &mockHandler{}, nil).Routes())
	defer ts.Close()

	got, err := NewHTTPClient().DiscoverAgent(context.Background(), ts.URL+"/")
	require.NoError(t, err)
	assert.Equal(t, card.Name, got.Name)
	assert.Equal(t, card.Skills, got.Skills)
}

func TestHTTPClient_DiscoverAgentNotFound(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	defer ts.Close()

	_, err := NewHTTPClient().DiscoverAgent(context.Background(), ts.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 404")
}

func TestHTTPClient_StreamMessage(t *testing.T) {
	handler := &mockHandler{
		streamMessage: func(_ context.Context, req SendMessageRequest, emit func(StreamEvent) error) error {
			for _, text := range []string{"content prepared", "Question 1"} {
				msg := NewMessage(RoleAgent, text)
				if err := emit(StreamEvent{StatusUpdate: &TaskStatusUpdateEvent{
					TaskID: "t1",
					Status: TaskStatus{State: TaskStateWorking, Message: &msg},
				}}); err != nil {
					return err
				}
			}
			return emit(StreamEvent{Task: &Task{ID: "t1", Status: TaskStatus{State: TaskStateInputRequired}}})
		},
	}
	ts := httptest.NewServer(NewServer(testCard(), handler, nil).Routes())
	defer ts.Close()

	ch, err := NewHTTPClient().StreamMessage(context.Background(), ts.URL, SendMessageRequest{Message: NewMessage(RoleUser, "topic")})
	require.NoError(t, err)

	var texts []string
	var last StreamEvent
	for ev := range ch {
		require.NoError(t, ev.Err)
		if ev.StatusUpdate != nil {
			texts = append(texts, ev.StatusUpdate.Status.Message.Text())
		}
		last = ev
	}
	assert.Equal(t, []string{"content prepared", "Question 1"}, texts)
	require.NotNil(t, last.Task)
	assert.Equal(t, TaskStateInputRequired, last.Task.Status.State)
}

func TestHTTPClient_StreamMessageInvalidParams(t *testing.T) {
	// A plain JSON-RPC error comes back before the stream opens.
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		writeJSONRPCError(w, 1, ErrCodeInvalidParams, "Invalid params")
	}))
	defer ts.Close()

	_, err := NewHTTPClient().StreamMessage(context.Background(), ts.URL, SendMessageRequest{})
	var rpcErr *RPCError
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, ErrCodeInvalidParams, rpcErr.Code)
}
