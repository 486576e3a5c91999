package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dusk-indust/quizflow/internal/orchestrator"
)

// Event is the serialisable form of a workflow event.
type Event struct {
	Kind      string `json:"kind"`
	Source    string `json:"source"`
	Text      string `json:"text"`
	Round     int    `json:"round,omitempty"`
	Final     bool   `json:"final,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

// NewEvent converts a workflow event to its serialisable form.
func NewEvent(ev orchestrator.Event) Event {
	out := Event{
		Kind:   ev.Kind.String(),
		Source: ev.Source,
		Text:   ev.Text,
		Round:  ev.Round,
		Final:  ev.Final,
	}
	if ev.Request != nil {
		out.RequestID = ev.Request.ID
	}
	return out
}

// Question is the request a session is waiting on.
type Question struct {
	RequestID string `json:"requestId"`
	Text      string `json:"text"`
	Round     int    `json:"round"`
}

// Turn is what one Start or Answer call produced: the events since the
// previous turn and either the next question or the session's outcome.
type Turn struct {
	SessionID string    `json:"sessionId"`
	Status    Status    `json:"status"`
	Events    []Event   `json:"events"`
	Question  *Question `json:"question,omitempty"`
	Output    string    `json:"output,omitempty"`
	Error     string    `json:"error,omitempty"`

	// Err is the session's terminal error, if it failed.
	Err error `json:"-"`
}

// Snapshot is a point-in-time copy of a session's state.
type Snapshot struct {
	ID        string    `json:"id"`
	Topic     string    `json:"topic"`
	Status    Status    `json:"status"`
	Round     int       `json:"round"`
	Question  *Question `json:"question,omitempty"`
	Answers   []string  `json:"answers"`
	Events    []Event   `json:"events"`
	Output    string    `json:"output,omitempty"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// entry tracks one session. A pump goroutine consumes the session's events
// into the entry, so the workflow keeps moving whether or not a caller is
// waiting for the turn. drive serialises callers; mu guards the recorded
// state.
type entry struct {
	session *orchestrator.Session
	drive   sync.Mutex

	mu        sync.Mutex
	changed   chan struct{} // closed and replaced on every state change
	status    Status
	round     int
	question  *Question
	events    []Event
	delivered int // events already handed out in a Turn
	answers   []string
	output    string
	err       error
	createdAt time.Time
	updatedAt time.Time
}

func newEntry(s *orchestrator.Session) *entry {
	now := time.Now()
	return &entry{
		session:   s,
		changed:   make(chan struct{}),
		status:    StatusRunning,
		createdAt: now,
		updatedAt: now,
	}
}

// pump records every event of the session and then its outcome.
func (e *entry) pump() {
	for ev := range e.session.Events() {
		e.record(ev, NewEvent(ev))
	}
	out, err := e.session.Wait()
	e.finish(out, err)
}

// notifyLocked wakes every advance call waiting on a change. The caller must
// hold e.mu.
func (e *entry) notifyLocked() {
	close(e.changed)
	e.changed = make(chan struct{})
}

// settle waits until the session asks for input or ends. If ctx ends first
// the session carries on regardless.
func (e *entry) settle(ctx context.Context) error {
	for {
		e.mu.Lock()
		if e.status == StatusWaiting || e.status.IsTerminal() {
			e.mu.Unlock()
			return nil
		}
		changed := e.changed
		e.mu.Unlock()

		select {
		case <-changed:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// advance settles the session and returns the events not yet handed out.
// The caller must hold e.drive. Events missed by a caller whose ctx ended go
// to the next turn.
func (e *entry) advance(ctx context.Context) (*Turn, error) {
	if err := e.settle(ctx); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.turnLocked(), nil
}

// pending returns the recorded question once the session has settled.
func (e *entry) pending() (Status, *Question) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status, e.question
}

func (e *entry) record(ev orchestrator.Event, view Event) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.events = append(e.events, view)
	e.updatedAt = time.Now()
	switch ev.Kind {
	case orchestrator.EventQuestionPosed:
		e.round = ev.Round
	case orchestrator.EventExternalInputRequested:
		if !e.status.IsTerminal() {
			e.status = StatusWaiting
			e.question = &Question{RequestID: view.RequestID, Text: ev.Text, Round: e.round}
		}
	}
	e.notifyLocked()
}

// submit records answer and hands it to the session. The record is made
// first so the next request, which the pump may see at once, is not
// overwritten; a rejected submission is rolled back.
func (e *entry) submit(requestID, answer string) error {
	e.mu.Lock()
	prevQuestion, prevStatus, prevUpdated := e.question, e.status, e.updatedAt
	e.answers = append(e.answers, answer)
	e.question = nil
	e.status = StatusRunning
	e.updatedAt = time.Now()
	e.mu.Unlock()

	if err := e.session.Submit(requestID, answer); err != nil {
		e.mu.Lock()
		e.answers = e.answers[:len(e.answers)-1]
		e.question, e.status, e.updatedAt = prevQuestion, prevStatus, prevUpdated
		e.mu.Unlock()
		return err
	}
	return nil
}

// finish records the outcome once; later calls are ignored.
func (e *entry) finish(output string, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.status.IsTerminal() {
		return
	}
	e.question = nil
	e.output = output
	e.err = err
	e.updatedAt = time.Now()
	switch {
	case err == nil:
		e.status = StatusCompleted
	case errors.Is(err, context.Canceled):
		e.status = StatusCanceled
	default:
		e.status = StatusFailed
	}
	e.notifyLocked()
}

// close cancels the session and records its outcome.
func (e *entry) close() {
	e.session.Close()
	out, err := e.session.Wait()
	e.finish(out, err)
}

// turnLocked builds a Turn from the events not yet handed out. The caller
// must hold e.mu.
func (e *entry) turnLocked() *Turn {
	t := &Turn{
		SessionID: e.session.ID(),
		Status:    e.status,
		Events:    append([]Event{}, e.events[e.delivered:]...),
		Output:    e.output,
		Err:       e.err,
	}
	e.delivered = len(e.events)
	if e.question != nil {
		q := *e.question
		t.Question = &q
	}
	if e.err != nil {
		t.Error = e.err.Error()
	}
	return t
}

func (e *entry) snapshot() *Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := &Snapshot{
		ID:        e.session.ID(),
		Topic:     e.session.Topic(),
		Status:    e.status,
		Round:     e.round,
		Answers:   append([]string{}, e.answers...),
		Events:    append([]Event{}, e.events...),
		Output:    e.output,
		CreatedAt: e.createdAt,
		UpdatedAt: e.updatedAt,
	}
	if e.question != nil {
		q := *e.question
		s.Question = &q
	}
	if e.err != nil {
		s.Error = e.err.Error()
	}
	return s
}
