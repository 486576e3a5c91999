package agent

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// InvocationError reports that a call to the backing text-generation service
// failed: the service was unreachable, returned a non-success status, or
// returned no usable content.
type InvocationError struct {
	Agent      string
	StatusCode int // zero when no HTTP response was received
	Err        error
}

func (e *InvocationError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("agent %s: invocation failed (HTTP %d): %v", e.Agent, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("agent %s: invocation failed: %v", e.Agent, e.Err)
}

func (e *InvocationError) Unwrap() error { return e.Err }

// Retryable reports whether repeating the call may succeed. Rate limiting,
// server errors and transport failures are retryable; cancellation and
// client errors are not.
func (e *InvocationError) Retryable() bool {
	if errors.Is(e.Err, context.Canceled) || errors.Is(e.Err, context.DeadlineExceeded) {
		return false
	}
	switch {
	case e.StatusCode == 0:
		return true
	case e.StatusCode == http.StatusTooManyRequests:
		return true
	case e.StatusCode >= 500:
		return true
	}
	return false
}

// SchemaError reports that an agent's structured output did not match its
// declared output schema.
type SchemaError struct {
	Agent  string
	Schema string
	Err    error
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("agent %s: output does not match schema %q: %v", e.Agent, e.Schema, e.Err)
}

func (e *SchemaError) Unwrap() error { return e.Err }
