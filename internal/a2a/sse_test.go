package a2a

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSSEWriter_WritesJSONRPCFrames(t *testing.T) {
	rec := httptest.NewRecorder()
	w := NewSSEWriter(rec, 42)
	w.Init()

	events := []StreamEvent{
		{StatusUpdate: &TaskStatusUpdateEvent{TaskID: "t1", ContextID: "c1", Status: TaskStatus{State: TaskStateWorking}}},
		{Task: &Task{ID: "t1", Status: TaskStatus{State: TaskStateInputRequired}}},
	}
	for _, ev := range events {
		require.NoError(t, w.WriteEvent(ev))
	}

	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "keep-alive", rec.Header().Get("Connection"))

	var frames []string
	for f := range strings.SplitSeq(rec.Body.String(), "\n\n") {
		if strings.TrimSpace(f) != "" {
			frames = append(frames, f)
		}
	}
	require.Len(t, frames, 2)

	for _, frame := range frames {
		require.True(t, strings.HasPrefix(frame, "data: "), "frame: %s", frame)
		var resp JSONRPCResponse
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(frame, "data: ")), &resp))
		assert.Equal(t, JSONRPCVersion, resp.JSONRPC)
		assert.EqualValues(t, 42, resp.ID)
		assert.Nil(t, resp.Error)
	}
}

func TestSSEWriter_WriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	w := NewSSEWriter(rec, "id-1")
	w.Init()
	require.NoError(t, w.WriteError(ErrCodeInvalidParams, "no pending question"))

	ev := decodeFrame(MethodStreamMessage, strings.TrimSpace(strings.TrimPrefix(rec.Body.String(), "data: ")))
	var rpcErr *RPCError
	require.ErrorAs(t, ev.Err, &rpcErr)
	assert.Equal(t, ErrCodeInvalidParams, rpcErr.Code)
	assert.Equal(t, "no pending question", rpcErr.Message)
	assert.Equal(t, MethodStreamMessage, rpcErr.Method)
}

func frame(t *testing.T, ev StreamEvent) string {
	t.Helper()
	result, err := json.Marshal(ev)
	require.NoError(t, err)
	data, err := json.Marshal(JSONRPCResponse{JSONRPC: JSONRPCVersion, ID: 1, Result: result})
	require.NoError(t, err)
	return "data: " + string(data) + "\n\n"
}

func TestReadEvents_ParsesFrames(t *testing.T) {
	update := frame(t, StreamEvent{StatusUpdate: &TaskStatusUpdateEvent{TaskID: "t1", Status: TaskStatus{State: TaskStateWorking}}})
	final := frame(t, StreamEvent{Task: &Task{ID: "t1", Status: TaskStatus{State: TaskStateCompleted}}})

	pr, pw := io.Pipe()
	go func() {
		defer pw.Close()
		fmt.Fprint(pw, ": keep-alive comment\n\n")
		fmt.Fprint(pw, update)
		fmt.Fprint(pw, "event: message\n")
		fmt.Fprint(pw, final)
	}()

	var got []StreamEvent
	for ev := range ReadEvents(context.Background(), MethodStreamMessage, pr) {
		require.NoError(t, ev.Err)
		got = append(got, ev)
	}
	require.Len(t, got, 2)
	require.NotNil(t, got[0].StatusUpdate)
	assert.Equal(t, "t1", got[0].StatusUpdate.TaskID)
	require.NotNil(t, got[1].Task)
	assert.Equal(t, TaskStateCompleted, got[1].Task.Status.State)
}

func TestReadEvents_MultiLineData(t *testing.T) {
	body := "data: {\"jsonrpc\":\"2.0\",\n" +
		"data: \"result\":{\"task\":{\"id\":\"t7\",\"contextId\":\"\",\"status\":{\"state\":\"working\",\"timestamp\":\"0001-01-01T00:00:00Z\"}}}}\n\n"

	var got []StreamEvent
	for ev := range ReadEvents(context.Background(), MethodStreamMessage, io.NopCloser(strings.NewReader(body))) {
		got = append(got, ev)
	}
	require.Len(t, got, 1)
	require.NoError(t, got[0].Err)
	require.NotNil(t, got[0].Task)
	assert.Equal(t, "t7", got[0].Task.ID)
}

func TestReadEvents_MalformedFrameContinues(t *testing.T) {
	body := "data: {not json\n\n" + frame(t, StreamEvent{Task: &Task{ID: "ok"}})

	var got []StreamEvent
	for ev := range ReadEvents(context.Background(), MethodStreamMessage, io.NopCloser(strings.NewReader(body))) {
		got = append(got, ev)
	}
	require.Len(t, got, 2)
	assert.Error(t, got[0].Err)
	require.NoError(t, got[1].Err)
	assert.Equal(t, "ok", got[1].Task.ID)
}

func TestReadEvents_FinalFrameWithoutBlankLine(t *testing.T) {
	body := strings.TrimSuffix(frame(t, StreamEvent{Task: &Task{ID: "tail"}}), "\n\n")

	var got []StreamEvent
	for ev := range ReadEvents(context.Background(), MethodStreamMessage, io.NopCloser(strings.NewReader(body))) {
		got = append(got, ev)
	}
	require.Len(t, got, 1)
	assert.Equal(t, "tail", got[0].Task.ID)
}

func TestReadEvents_ContextCancel(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	ctx, cancel := context.WithCancel(context.Background())

	first := frame(t, StreamEvent{Task: &Task{ID: "t1"}})
	go func() {
		fmt.Fprint(pw, first)
	}()

	ch := ReadEvents(ctx, MethodStreamMessage, pr)
	cancel()

	// Closing the writer unblocks a scanner still waiting for input.
	time.AfterFunc(50*time.Millisecond, func() { pw.Close() })

	done := make(chan struct{})
	go func() {
		for range ch {
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("ReadEvents did not stop after cancel")
	}
}
