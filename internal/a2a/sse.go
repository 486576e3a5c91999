package a2a

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// SSEWriter writes JSON-RPC responses as Server-Sent Events. Call Init once
// before writing any events.
type SSEWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	id      any
}

// NewSSEWriter creates an SSEWriter that answers the request with the given
// JSON-RPC id. Without http.Flusher support events may be buffered.
func NewSSEWriter(w http.ResponseWriter, id any) *SSEWriter {
	f, _ := w.(http.Flusher)
	return &SSEWriter{w: w, flusher: f, id: id}
}

// Init sets the SSE response headers and flushes them to the client.
func (sw *SSEWriter) Init() {
	h := sw.w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	if sw.flusher != nil {
		sw.flusher.Flush()
	}
}

// WriteEvent writes event as the result of a JSON-RPC response frame.
func (sw *SSEWriter) WriteEvent(event StreamEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("sse: marshal event: %w", err)
	}
	return sw.write(JSONRPCResponse{JSONRPC: JSONRPCVersion, ID: sw.id, Result: data})
}

// WriteError writes a JSON-RPC error frame. The stream ends after it.
func (sw *SSEWriter) WriteError(code int, message string) error {
	return sw.write(JSONRPCResponse{
		JSONRPC: JSONRPCVersion,
		ID:      sw.id,
		Error:   &JSONRPCError{Code: code, Message: message},
	})
}

func (sw *SSEWriter) write(resp JSONRPCResponse) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("sse: marshal frame: %w", err)
	}
	if _, err := fmt.Fprintf(sw.w, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("sse: write event: %w", err)
	}
	if sw.flusher != nil {
		sw.flusher.Flush()
	}
	return nil
}

// ReadEvents parses Server-Sent Events from body and delivers them on the
// returned channel, which is closed when the body is exhausted or ctx is
// done. The body is closed when reading finishes.
//
// Each event's data lines are joined with newlines and decoded as a JSON-RPC
// response. A JSON-RPC error becomes a StreamEvent with Err set to an
// *RPCError; malformed frames set Err and the reader continues. Comment lines
// and unknown fields are ignored.
func ReadEvents(ctx context.Context, method string, body io.ReadCloser) <-chan StreamEvent {
	ch := make(chan StreamEvent)
	go func() {
		defer close(ch)
		defer body.Close()

		scanner := bufio.NewScanner(body)
		scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
		var data strings.Builder

		flush := func() bool {
			if data.Len() == 0 {
				return true
			}
			ev := decodeFrame(method, data.String())
			data.Reset()
			select {
			case ch <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		for scanner.Scan() {
			if ctx.Err() != nil {
				return
			}
			line := scanner.Text()
			switch {
			case line == "":
				if !flush() {
					return
				}
			case strings.HasPrefix(line, ":"):
			case strings.HasPrefix(line, "data:"):
				if data.Len() > 0 {
					data.WriteByte('\n')
				}
				data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
			}
		}
		flush()
	}()
	return ch
}

func decodeFrame(method, raw string) StreamEvent {
	var resp JSONRPCResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return StreamEvent{Err: fmt.Errorf("sse: unmarshal frame: %w", err)}
	}
	if resp.Error != nil {
		return StreamEvent{Err: &RPCError{Method: method, Code: resp.Error.Code, Message: resp.Error.Message, Data: resp.Error.Data}}
	}
	var ev StreamEvent
	if err := json.Unmarshal(resp.Result, &ev); err != nil {
		return StreamEvent{Err: fmt.Errorf("sse: unmarshal event: %w", err)}
	}
	return ev
}
