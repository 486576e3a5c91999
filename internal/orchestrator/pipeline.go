package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dusk-indust/quizflow/internal/agent"
)

// Agents are the three collaborators a Coordinator drives.
type Agents struct {
	Downloader agent.Agent
	Generator  agent.Agent
	Presenter  agent.Agent
}

func (a Agents) validate() error {
	var errs []error
	if a.Downloader == nil {
		errs = append(errs, errors.New("downloader agent is nil"))
	}
	if a.Generator == nil {
		errs = append(errs, errors.New("generator agent is nil"))
	}
	if a.Presenter == nil {
		errs = append(errs, errors.New("presenter agent is nil"))
	}
	return errors.Join(errs...)
}

// Coordinator wires the quiz stages and the input port into a graph and runs
// exactly one session over it. Stages hold per-coordinator conversation
// threads, so a new session needs a new Coordinator.
type Coordinator struct {
	opts      options
	graph     *Graph
	port      *InputPort
	presenter *Presenter
	started   atomic.Bool
}

// New builds a Coordinator. Each stage gets a fresh thread from its agent.
func New(agents Agents, opts ...Option) (*Coordinator, error) {
	if err := agents.validate(); err != nil {
		return nil, fmt.Errorf("orchestrator: new coordinator: %w", err)
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	downloader := NewDownloader(agents.Downloader)
	generator := NewGenerator(agents.Generator)
	presenter := NewPresenter(agents.Presenter)
	port := NewInputPort(o.portName)

	g, err := NewGraphBuilder(downloader).
		AddEdge(downloader, generator).
		AddEdge(generator, presenter).
		AddEdge(presenter, port).
		AddEdge(port, presenter).
		WithOutputFrom(presenter).
		Build()
	if err != nil {
		return nil, err
	}

	return &Coordinator{
		opts:      o,
		graph:     g,
		port:      port,
		presenter: presenter,
	}, nil
}

// Graph returns the coordinator's workflow graph.
func (c *Coordinator) Graph() *Graph { return c.graph }

// Run starts the workflow with topic as the initial input. The returned
// Session streams events and accepts responses. Run may be called once.
func (c *Coordinator) Run(ctx context.Context, topic string) (*Session, error) {
	if !c.started.CompareAndSwap(false, true) {
		return nil, ErrAlreadyRun
	}

	sctx, cancel := context.WithCancel(ctx)
	s := &Session{
		id:     uuid.NewString(),
		topic:  topic,
		events: make(chan Event),
		done:   make(chan struct{}),
		port:   c.port,
		cancel: cancel,
	}

	logger := c.opts.logger.With("component", "orchestrator", "session", s.id)
	logger.Info("session started", "topic", topic)

	go c.execute(sctx, s, logger)
	return s, nil
}

// envelope is a message queued for delivery to one executor.
type envelope struct {
	target Executor
	msg    Message
}

// execute runs the graph on the session goroutine until an executor yields
// output, an executor fails, or the graph stops producing messages.
func (c *Coordinator) execute(ctx context.Context, s *Session, logger *slog.Logger) {
	var (
		output string
		err    error
	)
	defer func() {
		// A failure caused by cancellation is reported as the cancellation.
		if ctxErr := ctx.Err(); err != nil && ctxErr != nil {
			err = ctxErr
		}
		s.cancel()
		c.port.releaseAll()
		s.finish(output, err)
		if err != nil {
			logger.Warn("session failed", "error", err)
		} else {
			logger.Info("session completed")
		}
	}()

	queue := []envelope{{target: c.graph.Start(), msg: Message{Kind: MessageTopic, Text: s.topic}}}
	for len(queue) > 0 {
		env := queue[0]
		queue = queue[1:]

		sc := newStepContext(s, c.graph, env.target.ID(), c.opts.observer)
		if err = c.invoke(ctx, env.target, env.msg, sc, logger); err != nil {
			return
		}
		if sc.err != nil {
			err = sc.err
			return
		}
		if sc.output != nil {
			output = *sc.output
			return
		}

		for _, msg := range sc.sent {
			targets := c.graph.Targets(env.target.ID())
			if len(targets) == 0 {
				err = &ProtocolError{
					Op:     "route",
					Stage:  env.target.ID(),
					Detail: fmt.Sprintf("no route for %s message", msg.Kind),
				}
				return
			}
			for _, t := range targets {
				queue = append(queue, envelope{target: t, msg: msg})
			}
		}
	}

	err = &ProtocolError{Op: "run", Detail: "workflow halted without output"}
}

// invoke runs one Handle call inside a stage span.
func (c *Coordinator) invoke(ctx context.Context, e Executor, msg Message, sc *stepContext, logger *slog.Logger) error {
	ctx, span := c.opts.tracer.Start(ctx, "quizflow.stage."+e.ID(),
		trace.WithAttributes(
			attribute.String("quizflow.stage", e.ID()),
			attribute.String("quizflow.message.kind", msg.Kind.String()),
			attribute.Int("quizflow.round", c.presenter.Round()),
		))
	defer span.End()

	start := time.Now()
	logger.Debug("stage started", "stage", e.ID(), "kind", msg.Kind.String())

	err := e.Handle(ctx, msg, sc)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Debug("stage failed", "stage", e.ID(), "error", err, "elapsed", time.Since(start))
		return err
	}

	logger.Debug("stage finished", "stage", e.ID(), "sent", len(sc.sent), "elapsed", time.Since(start))
	return nil
}
