package a2a

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

// Routes returns the server's HTTP handler: the agent card at the
// well-known URI and JSON-RPC on POST /.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /.well-known/agent-card.json", s.handleAgentCard)
	mux.HandleFunc("POST /", s.handleJSONRPC)
	return mux
}

// Start listens on addr and serves in a background goroutine. Listen errors
// are returned; serve errors are logged.
func (s *Server) Start(_ context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("a2a: listen %s: %w", addr, err)
	}

	srv := &http.Server{
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.mu.Lock()
	s.http = srv
	s.addr = ln.Addr().String()
	s.mu.Unlock()

	s.logger.Info("a2a server listening", "addr", s.addr)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("a2a server stopped", "error", err)
		}
	}()
	return nil
}

// Addr returns the address the server is listening on, once started.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.http
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

func (s *Server) handleAgentCard(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.card); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// handleJSONRPC decodes a JSON-RPC 2.0 request and dispatches it by method.
func (s *Server) handleJSONRPC(w http.ResponseWriter, r *http.Request) {
	var req JSONRPCRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.Header().Set("Content-Type", "application/json")
		writeJSONRPCError(w, nil, ErrCodeParse, "Parse error: "+err.Error())
		return
	}
	if req.JSONRPC != JSONRPCVersion {
		w.Header().Set("Content-Type", "application/json")
		writeJSONRPCError(w, req.ID, ErrCodeInvalidRequest, fmt.Sprintf("Invalid request: jsonrpc must be %q", JSONRPCVersion))
		return
	}

	ctx := r.Context()
	s.logger.Debug("rpc", "method", req.Method, "id", req.ID)

	switch req.Method {
	case MethodSendMessage:
		dispatch(ctx, s, w, &req, s.handler.HandleSendMessage)
	case MethodStreamMessage:
		s.dispatchStream(ctx, w, &req)
	case MethodGetTask:
		dispatch(ctx, s, w, &req, s.handler.HandleGetTask)
	case MethodListTasks:
		dispatch(ctx, s, w, &req, s.handler.HandleListTasks)
	case MethodCancelTask:
		dispatch(ctx, s, w, &req, s.handler.HandleCancelTask)
	default:
		w.Header().Set("Content-Type", "application/json")
		writeJSONRPCError(w, req.ID, ErrCodeMethodNotFound, fmt.Sprintf("Method not found: %s", req.Method))
	}
}

// dispatch unmarshals params into P, calls fn and writes its result.
func dispatch[P, R any](ctx context.Context, s *Server, w http.ResponseWriter, req *JSONRPCRequest, fn func(context.Context, P) (R, error)) {
	w.Header().Set("Content-Type", "application/json")

	var params P
	if err := json.Unmarshal(req.Params, &params); err != nil {
		writeJSONRPCError(w, req.ID, ErrCodeInvalidParams, "Invalid params: "+err.Error())
		return
	}

	result, err := fn(ctx, params)
	if err != nil {
		code := errorCode(err)
		if code == ErrCodeInternal {
			s.logger.Warn("rpc failed", "method", req.Method, "error", err)
		}
		writeJSONRPCError(w, req.ID, code, err.Error())
		return
	}
	writeJSONRPCResult(w, req.ID, result)
}

// dispatchStream answers message/stream with Server-Sent Events, one
// JSON-RPC response per event.
func (s *Server) dispatchStream(ctx context.Context, w http.ResponseWriter, req *JSONRPCRequest) {
	var params SendMessageRequest
	if err := json.Unmarshal(req.Params, &params); err != nil {
		w.Header().Set("Content-Type", "application/json")
		writeJSONRPCError(w, req.ID, ErrCodeInvalidParams, "Invalid params: "+err.Error())
		return
	}

	sse := NewSSEWriter(w, req.ID)
	sse.Init()
	if err := s.handler.HandleStreamMessage(ctx, params, sse.WriteEvent); err != nil {
		if werr := sse.WriteError(errorCode(err), err.Error()); werr != nil {
			s.logger.Debug("stream closed", "error", werr)
		}
	}
}

func writeJSONRPCResult(w http.ResponseWriter, id any, result any) {
	data, err := json.Marshal(result)
	if err != nil {
		writeJSONRPCError(w, id, ErrCodeInternal, "Failed to marshal result: "+err.Error())
		return
	}
	_ = json.NewEncoder(w).Encode(JSONRPCResponse{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Result:  data,
	})
}

func writeJSONRPCError(w http.ResponseWriter, id any, code int, message string) {
	_ = json.NewEncoder(w).Encode(JSONRPCResponse{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Error:   &JSONRPCError{Code: code, Message: message},
	})
}
