package orchestrator

import (
	"context"
	"iter"
)

// Session is one run of a Coordinator. Its event stream is finite and
// cannot be restarted. The driver must keep receiving from Events (or
// ranging over All) for the workflow to make progress.
type Session struct {
	id     string
	topic  string
	events chan Event
	done   chan struct{}
	port   *InputPort
	cancel context.CancelFunc

	// Written once by finish before done is closed.
	output string
	err    error
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Topic returns the topic the session was started with.
func (s *Session) Topic() string { return s.topic }

// Events returns the event channel. It is closed when the session ends.
func (s *Session) Events() <-chan Event { return s.events }

// All returns an iterator over the session's events. After the last event
// it yields the session error, if any, with a zero Event. Stopping early does
// not cancel the session; call Close for that.
func (s *Session) All() iter.Seq2[Event, error] {
	return func(yield func(Event, error) bool) {
		for ev := range s.events {
			if !yield(ev, nil) {
				return
			}
		}
		<-s.done
		if s.err != nil {
			yield(Event{}, s.err)
		}
	}
}

// Submit satisfies the outstanding request with the given ID. Unknown and
// already satisfied IDs fail with a *ProtocolError.
func (s *Session) Submit(requestID, answer string) error {
	return s.port.Submit(requestID, answer)
}

// Pending returns the outstanding request and its question, if any.
func (s *Session) Pending() (Request, string, bool) {
	return s.port.Pending()
}

// Done is closed when the session has ended.
func (s *Session) Done() <-chan struct{} { return s.done }

// Wait blocks until the session ends and returns its terminal output and
// error. Events must be drained concurrently or Wait never returns.
func (s *Session) Wait() (string, error) {
	<-s.done
	return s.output, s.err
}

// Output returns the terminal summary once the session has completed
// successfully.
func (s *Session) Output() (string, bool) {
	select {
	case <-s.done:
		return s.output, s.err == nil
	default:
		return "", false
	}
}

// Err returns the session error once the session has ended, or nil.
func (s *Session) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

// Close cancels the session and waits for it to end. Pending events are
// discarded.
func (s *Session) Close() {
	s.cancel()
	for range s.events {
	}
	<-s.done
}

func (s *Session) finish(output string, err error) {
	s.output = output
	s.err = err
	close(s.events)
	close(s.done)
}
