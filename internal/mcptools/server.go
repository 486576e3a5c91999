package mcptools

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// version is set by the linker at build time.
var version = "dev"

// NewQuizMCPServer creates an MCP server with the quiz tools registered.
func NewQuizMCPServer(svc *QuizService) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "quizflow",
		Version: version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "start_quiz",
		Description: "Start a five-question quiz about a topic. Downloads content, generates questions and returns the first one.",
	}, svc.StartQuiz)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "answer_question",
		Description: "Answer the pending question of a quiz. Returns feedback and the next question, or the summary after the fifth answer.",
	}, svc.AnswerQuestion)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_session",
		Description: "Get the state of a quiz session: status, current round, pending question, answers and every event so far.",
	}, svc.GetSession)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "cancel_quiz",
		Description: "Cancel a quiz session that is still running or waiting for an answer.",
	}, svc.CancelQuiz)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_sessions",
		Description: "List quiz sessions, optionally filtered by status.",
	}, svc.ListSessions)

	return server
}

// RunStdio runs the MCP server on stdio transport, blocking until stdin is
// closed or the context is cancelled.
func RunStdio(ctx context.Context, server *mcp.Server) error {
	return server.Run(ctx, &mcp.StdioTransport{})
}

// RunHTTP serves the MCP server over streamable HTTP on addr until ctx is
// cancelled.
func RunHTTP(ctx context.Context, server *mcp.Server, addr string) error {
	handler := mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server { return server },
		nil,
	)

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
