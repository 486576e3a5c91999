package orchestrator

import (
	"context"
	"fmt"
	"strings"
)

var _ Context = (*stepContext)(nil)

// stepContext is the Context handed to one executor for one Handle call. It
// forwards events to the session and buffers sent messages until the call
// returns, when the coordinator routes them.
type stepContext struct {
	session *Session
	source  string
	graph   *Graph
	observe Observer

	sent   []Message
	output *string
	err    error
}

func newStepContext(s *Session, g *Graph, source string, observe Observer) *stepContext {
	return &stepContext{session: s, source: source, graph: g, observe: observe}
}

// AddEvent delivers ev to the session's event channel. Production blocks
// until the driver receives the event or ctx is done.
func (sc *stepContext) AddEvent(ctx context.Context, ev Event) error {
	if ev.Source == "" {
		ev.Source = sc.source
	}
	if sc.observe != nil {
		sc.observe(ctx, sc.session.id, ev)
	}
	select {
	case sc.session.events <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (sc *stepContext) Send(msg Message) {
	sc.sent = append(sc.sent, msg)
}

func (sc *stepContext) YieldOutput(text string) {
	if sc.source != sc.graph.OutputID() {
		sc.err = &ProtocolError{
			Op:     "yield",
			Stage:  sc.source,
			Detail: fmt.Sprintf("only %q may yield output", sc.graph.OutputID()),
		}
		return
	}
	sc.output = &text
}

// FormatEvent formats an Event as a one-line status entry.
func FormatEvent(ev Event) string {
	switch ev.Kind {
	case EventContentPrepared:
		return fmt.Sprintf("  ✓ content prepared (%d chars)", len(ev.Text))
	case EventQuestionAnswersReady:
		return fmt.Sprintf("  ✓ question set ready (%d chars)", len(ev.Text))
	case EventQuestionPosed:
		if ev.Final {
			return "  ✓ quiz summary: " + firstLine(ev.Text)
		}
		return fmt.Sprintf("  ● round %d/%d: %s", ev.Round, MaxRounds, firstLine(ev.Text))
	case EventExternalInputRequested:
		if ev.Request == nil {
			return "  ○ waiting for input"
		}
		return fmt.Sprintf("  ○ waiting for %s (%s) on request %s", ev.Request.Port, ev.Request.ResponseType, ev.Request.ID)
	default:
		return fmt.Sprintf("  ? %s (unknown event)", ev.Source)
	}
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " ..."
	}
	return s
}
