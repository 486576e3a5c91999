package orchestrator

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation scope used for stage spans.
const TracerName = "github.com/dusk-indust/quizflow/internal/orchestrator"

// Observer is called synchronously for every event, before the event is
// delivered to the session driver. It must not block.
type Observer func(ctx context.Context, sessionID string, ev Event)

// Option configures a Coordinator.
type Option func(*options)

type options struct {
	logger   *slog.Logger
	tracer   trace.Tracer
	observer Observer
	portName string
}

func defaultOptions() options {
	return options{
		logger:   slog.Default(),
		tracer:   otel.Tracer(TracerName),
		portName: DefaultPortName,
	}
}

// WithLogger sets the coordinator's logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithTracer sets the tracer used for stage spans.
func WithTracer(t trace.Tracer) Option {
	return func(o *options) {
		if t != nil {
			o.tracer = t
		}
	}
}

// WithObserver registers fn to see every event of every session the
// coordinator runs.
func WithObserver(fn Observer) Option {
	return func(o *options) { o.observer = fn }
}

// WithPortName overrides the name of the external input port.
func WithPortName(name string) Option {
	return func(o *options) {
		if name != "" {
			o.portName = name
		}
	}
}
