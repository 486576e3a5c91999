//go:build e2e

package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/dusk-indust/quizflow/internal/a2a"
	"github.com/dusk-indust/quizflow/internal/agent"
	"github.com/dusk-indust/quizflow/internal/mcptools"
	"github.com/dusk-indust/quizflow/internal/orchestrator"
	"github.com/dusk-indust/quizflow/internal/session"
)

// surfaces serves one session manager over A2A and streamable HTTP MCP.
type surfaces struct {
	manager *session.Manager
	a2aURL  string
	mcpURL  string
}

func startSurfaces(t *testing.T) *surfaces {
	t.Helper()

	svc := orchestrator.NewService(agent.OfflineFactory())
	require.NoError(t, svc.Initialize(context.Background()))
	manager := session.NewManager(svc, nil)
	t.Cleanup(func() {
		_ = manager.Shutdown(context.Background())
		_ = svc.Cleanup(context.Background())
	})

	card := a2a.DefaultCard("http://localhost", "e2e")
	a2aSrv := httptest.NewServer(a2a.NewServer(card, a2a.NewQuizAgent(manager, card, nil), nil).Routes())
	t.Cleanup(a2aSrv.Close)

	mcpServer := mcptools.NewQuizMCPServer(mcptools.NewQuizService(manager, nil))
	mcpSrv := httptest.NewServer(mcp.NewStreamableHTTPHandler(
		func(*http.Request) *mcp.Server { return mcpServer }, nil))
	t.Cleanup(mcpSrv.Close)

	return &surfaces{manager: manager, a2aURL: a2aSrv.URL, mcpURL: mcpSrv.URL}
}

// playA2A runs one quiz to completion through the A2A agent.
func playA2A(ctx context.Context, url, topic string) (string, error) {
	client := a2a.NewHTTPClient(a2a.WithTimeout(10 * time.Second))

	task, err := client.SendMessage(ctx, url, a2a.SendMessageRequest{Message: a2a.NewMessage(a2a.RoleUser, topic)})
	if err != nil {
		return "", err
	}
	for task.Status.State == a2a.TaskStateInputRequired {
		m := a2a.NewMessage(a2a.RoleUser, "an answer")
		m.TaskID = task.ID
		if task, err = client.SendMessage(ctx, url, a2a.SendMessageRequest{Message: m}); err != nil {
			return "", err
		}
	}
	if task.Status.State != a2a.TaskStateCompleted {
		return "", fmt.Errorf("task %s ended %s", task.ID, task.Status.State)
	}
	return task.ID, nil
}

// playMCP runs one quiz to completion through the MCP tools.
func playMCP(ctx context.Context, url, topic string) (string, error) {
	client := mcp.NewClient(&mcp.Implementation{Name: "e2e", Version: "1.0.0"}, nil)
	cs, err := client.Connect(ctx, &mcp.StreamableClientTransport{Endpoint: url}, nil)
	if err != nil {
		return "", err
	}
	defer cs.Close()

	call := func(name string, args any) (mcptools.TurnOutput, error) {
		var out mcptools.TurnOutput
		res, err := cs.CallTool(ctx, &mcp.CallToolParams{Name: name, Arguments: args})
		if err != nil {
			return out, err
		}
		if res.IsError {
			return out, fmt.Errorf("%s failed", name)
		}
		raw, err := json.Marshal(res.StructuredContent)
		if err != nil {
			return out, err
		}
		return out, json.Unmarshal(raw, &out)
	}

	turn, err := call("start_quiz", mcptools.StartQuizInput{Topic: topic})
	for err == nil && turn.Question != nil {
		turn, err = call("answer_question", mcptools.AnswerQuestionInput{
			SessionID: turn.SessionID,
			RequestID: turn.Question.RequestID,
			Answer:    "an answer",
		})
	}
	if err != nil {
		return "", err
	}
	if turn.Status != string(session.StatusCompleted) {
		return "", fmt.Errorf("session %s ended %s", turn.SessionID, turn.Status)
	}
	return turn.SessionID, nil
}

// TestSurfaces_ConcurrentQuizzes plays quizzes over both transports at once
// against one manager. Every session completes with its own five rounds.
func TestSurfaces_ConcurrentQuizzes(t *testing.T) {
	s := startSurfaces(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	const perSurface = 3
	ids := make([]string, 2*perSurface)

	g, gctx := errgroup.WithContext(ctx)
	for i := range perSurface {
		g.Go(func() error {
			id, err := playA2A(gctx, s.a2aURL, fmt.Sprintf("a2a topic %d", i))
			ids[i] = id
			return err
		})
		g.Go(func() error {
			id, err := playMCP(gctx, s.mcpURL, fmt.Sprintf("mcp topic %d", i))
			ids[perSurface+i] = id
			return err
		})
	}
	require.NoError(t, g.Wait())

	seen := make(map[string]bool)
	for _, id := range ids {
		require.NotEmpty(t, id)
		assert.False(t, seen[id], "duplicate session %s", id)
		seen[id] = true

		snap, err := s.manager.Get(id)
		require.NoError(t, err)
		assert.Equal(t, session.StatusCompleted, snap.Status)
		assert.Equal(t, orchestrator.MaxRounds, snap.Round)
		assert.Len(t, snap.Answers, orchestrator.MaxRounds)
	}
	assert.Len(t, s.manager.List(), 2*perSurface)
}
