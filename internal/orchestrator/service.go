package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dusk-indust/quizflow/internal/agent"
)

// ErrNotInitialized is returned by NewCoordinator before Initialize.
var ErrNotInitialized = errors.New("orchestrator: service not initialized")

// Service owns the three quiz agents. Agents are built once and shared by
// every coordinator the service creates; conversation threads are not.
type Service struct {
	factory agent.Factory
	opts    []Option
	logger  *slog.Logger

	mu     sync.Mutex
	agents *Agents
	built  []agent.Agent
}

// NewService creates a Service that builds its agents with factory. opts are
// applied to every coordinator the service creates.
func NewService(factory agent.Factory, opts ...Option) *Service {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Service{
		factory: factory,
		opts:    opts,
		logger:  o.logger.With("component", "service"),
	}
}

// Initialize builds the downloader, generator and presenter agents. Calling
// it again is a no-op.
func (s *Service) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.agents != nil {
		return nil
	}

	defs, err := agent.Definitions()
	if err != nil {
		return fmt.Errorf("orchestrator: initialize: %w", err)
	}

	byRole := make(map[agent.Role]agent.Agent, len(defs))
	for _, def := range defs {
		a, err := s.factory.Build(ctx, def)
		if err != nil {
			closeErr := closeAgents(ctx, s.built)
			s.built = nil
			return errors.Join(fmt.Errorf("orchestrator: initialize: build %s: %w", def.Name, err), closeErr)
		}
		s.built = append(s.built, a)
		byRole[def.Role] = a
		s.logger.Debug("agent built", "agent", def.Name, "role", def.Role)
	}

	s.agents = &Agents{
		Downloader: byRole[agent.RoleDownloader],
		Generator:  byRole[agent.RoleGenerator],
		Presenter:  byRole[agent.RolePresenter],
	}
	return nil
}

// NewCoordinator returns a fresh Coordinator over the service's agents.
func (s *Service) NewCoordinator(opts ...Option) (*Coordinator, error) {
	s.mu.Lock()
	agents := s.agents
	s.mu.Unlock()

	if agents == nil {
		return nil, ErrNotInitialized
	}
	all := append(append([]Option(nil), s.opts...), opts...)
	return New(*agents, all...)
}

// Cleanup releases every agent that supports closing. The service can be
// initialized again afterwards.
func (s *Service) Cleanup(ctx context.Context) error {
	s.mu.Lock()
	built := s.built
	s.built = nil
	s.agents = nil
	s.mu.Unlock()

	if err := closeAgents(ctx, built); err != nil {
		return fmt.Errorf("orchestrator: cleanup: %w", err)
	}
	return nil
}

func closeAgents(ctx context.Context, agents []agent.Agent) error {
	var errs []error
	for _, a := range agents {
		if c, ok := a.(agent.Closer); ok {
			if err := c.Close(ctx); err != nil {
				errs = append(errs, fmt.Errorf("close %s: %w", a.Name(), err))
			}
		}
	}
	return errors.Join(errs...)
}
