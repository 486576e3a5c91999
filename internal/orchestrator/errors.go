package orchestrator

import (
	"errors"
	"fmt"
)

// ErrProtocol is matched by every *ProtocolError via errors.Is.
var ErrProtocol = errors.New("workflow protocol violation")

// ErrAlreadyRun is returned when Run is called a second time on a
// Coordinator. Each session needs a fresh coordinator.
var ErrAlreadyRun = errors.New("orchestrator: coordinator has already run")

// ProtocolError reports an integration error: a response for an unknown or
// already satisfied request, or a message a stage does not accept.
type ProtocolError struct {
	Op     string // "submit", "handle", "route", "run"
	Stage  string
	Detail string
}

func (e *ProtocolError) Error() string {
	if e.Stage != "" {
		return fmt.Sprintf("orchestrator: %s: %s: %s", e.Op, e.Stage, e.Detail)
	}
	return fmt.Sprintf("orchestrator: %s: %s", e.Op, e.Detail)
}

func (e *ProtocolError) Is(target error) bool { return target == ErrProtocol }

func unexpectedMessage(stage string, msg Message) error {
	return &ProtocolError{
		Op:     "handle",
		Stage:  stage,
		Detail: fmt.Sprintf("unexpected %s message", msg.Kind),
	}
}
