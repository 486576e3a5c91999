package a2a

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
)

// Handler processes incoming A2A requests.
type Handler interface {
	// HandleSendMessage starts or continues a task and returns it once the
	// task needs input or has finished.
	HandleSendMessage(ctx context.Context, req SendMessageRequest) (*Task, error)

	// HandleStreamMessage behaves like HandleSendMessage but reports every
	// intermediate update through emit, ending with the task itself.
	HandleStreamMessage(ctx context.Context, req SendMessageRequest, emit func(StreamEvent) error) error

	// HandleGetTask returns the current state of a task.
	HandleGetTask(ctx context.Context, req GetTaskRequest) (*Task, error)

	// HandleListTasks returns tasks matching the filter.
	HandleListTasks(ctx context.Context, req ListTasksRequest) (*ListTasksResponse, error)

	// HandleCancelTask cancels a running task.
	HandleCancelTask(ctx context.Context, req CancelTaskRequest) (*Task, error)
}

// Server is the HTTP server that exposes an A2A agent.
type Server struct {
	card    AgentCard
	handler Handler
	logger  *slog.Logger

	mu   sync.Mutex
	http *http.Server
	addr string
}

// NewServer creates an A2A server for the given agent.
func NewServer(card AgentCard, handler Handler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		card:    card,
		handler: handler,
		logger:  logger.With("component", "a2a"),
	}
}
