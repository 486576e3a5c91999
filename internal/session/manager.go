// Package session keeps a registry of running quiz sessions and advances
// them one turn at a time on behalf of request/response surfaces.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/dusk-indust/quizflow/internal/orchestrator"
)

// ErrNotFound is returned for an unknown session ID.
var ErrNotFound = errors.New("session: not found")

// ErrFinished is returned when answering a session that has ended.
var ErrFinished = errors.New("session: already finished")

// ErrNoPendingQuestion is returned when an answer arrives while the session
// is not waiting for one.
var ErrNoPendingQuestion = errors.New("session: no pending question")

// CoordinatorSource creates a fresh coordinator per session.
// *orchestrator.Service satisfies it.
type CoordinatorSource interface {
	NewCoordinator(opts ...orchestrator.Option) (*orchestrator.Coordinator, error)
}

// Status is the externally visible state of a session.
type Status string

const (
	StatusRunning   Status = "running"
	StatusWaiting   Status = "waiting"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCanceled  Status = "canceled"
)

// IsTerminal reports whether the session can make no further progress.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCanceled
}

// Manager runs sessions concurrently. Each session is driven by at most one
// caller at a time; distinct sessions never block each other.
type Manager struct {
	source CoordinatorSource
	logger *slog.Logger

	// base outlives individual requests; sessions are cancelled through it
	// on Shutdown.
	base   context.Context
	cancel context.CancelFunc

	mu       sync.RWMutex
	entries  map[string]*entry
	orderIDs []string
}

// NewManager creates a Manager that builds coordinators from source.
func NewManager(source CoordinatorSource, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	base, cancel := context.WithCancel(context.Background())
	return &Manager{
		source:  source,
		logger:  logger.With("component", "session"),
		base:    base,
		cancel:  cancel,
		entries: make(map[string]*entry),
	}
}

// Start runs a new quiz on topic and drives it to its first question.
func (m *Manager) Start(ctx context.Context, topic string) (*Turn, error) {
	if topic == "" {
		return nil, errors.New("session: start: topic is required")
	}

	c, err := m.source.NewCoordinator()
	if err != nil {
		return nil, fmt.Errorf("session: start: %w", err)
	}
	s, err := c.Run(m.base, topic)
	if err != nil {
		return nil, fmt.Errorf("session: start: %w", err)
	}

	e := newEntry(s)
	go e.pump()

	m.mu.Lock()
	m.entries[s.ID()] = e
	m.orderIDs = append(m.orderIDs, s.ID())
	m.mu.Unlock()

	m.logger.Info("session created", "session", s.ID(), "topic", topic)

	e.drive.Lock()
	defer e.drive.Unlock()
	t, err := e.advance(ctx)
	if err != nil {
		e.close()
		m.forget(s.ID())
		m.logger.Warn("session abandoned", "session", s.ID(), "error", err)
		return nil, fmt.Errorf("session: start: %w", err)
	}
	return t, nil
}

// Answer submits answer to the session's outstanding request and drives the
// session to its next question or to completion. An empty requestID means
// the currently pending request.
func (m *Manager) Answer(ctx context.Context, sessionID, requestID, answer string) (*Turn, error) {
	e, err := m.lookup(sessionID)
	if err != nil {
		return nil, err
	}

	e.drive.Lock()
	defer e.drive.Unlock()

	if err := e.settle(ctx); err != nil {
		return nil, err
	}
	st, q := e.pending()
	if st.IsTerminal() {
		return nil, fmt.Errorf("%w: %s is %s", ErrFinished, sessionID, st)
	}
	if q == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoPendingQuestion, sessionID)
	}
	if requestID == "" {
		requestID = q.RequestID
	}
	if err := e.submit(requestID, answer); err != nil {
		return nil, err
	}
	return e.advance(ctx)
}

// Get returns a snapshot of the session.
func (m *Manager) Get(sessionID string) (*Snapshot, error) {
	e, err := m.lookup(sessionID)
	if err != nil {
		return nil, err
	}
	return e.snapshot(), nil
}

// List returns snapshots of every session in creation order.
func (m *Manager) List() []*Snapshot {
	m.mu.RLock()
	ids := slices.Clone(m.orderIDs)
	m.mu.RUnlock()

	out := make([]*Snapshot, 0, len(ids))
	for _, id := range ids {
		if e, err := m.lookup(id); err == nil {
			out = append(out, e.snapshot())
		}
	}
	return out
}

// Cancel stops the session. Cancelling a finished session is a no-op.
func (m *Manager) Cancel(sessionID string) (*Snapshot, error) {
	e, err := m.lookup(sessionID)
	if err != nil {
		return nil, err
	}
	e.close()
	m.logger.Info("session canceled", "session", sessionID)
	return e.snapshot(), nil
}

// Remove cancels the session if needed and forgets it.
func (m *Manager) Remove(sessionID string) error {
	e, err := m.lookup(sessionID)
	if err != nil {
		return err
	}
	e.close()
	m.forget(sessionID)
	return nil
}

func (m *Manager) forget(sessionID string) {
	m.mu.Lock()
	delete(m.entries, sessionID)
	m.orderIDs = slices.DeleteFunc(m.orderIDs, func(id string) bool { return id == sessionID })
	m.mu.Unlock()
}

// Shutdown cancels every running session and waits for them to end.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.cancel()

	m.mu.RLock()
	entries := make([]*entry, 0, len(m.entries))
	for _, e := range m.entries {
		entries = append(entries, e)
	}
	m.mu.RUnlock()

	g, gctx := errgroup.WithContext(ctx)
	for _, e := range entries {
		g.Go(func() error {
			done := make(chan struct{})
			go func() {
				e.close()
				close(done)
			}()
			select {
			case <-done:
				return nil
			case <-gctx.Done():
				return gctx.Err()
			}
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("session: shutdown: %w", err)
	}
	m.logger.Info("sessions stopped", "count", len(entries))
	return nil
}

func (m *Manager) lookup(id string) (*entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entries[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return e, nil
}
