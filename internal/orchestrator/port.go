package orchestrator

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

var _ Executor = (*InputPort)(nil)

// DefaultPortName is the name of the quiz answer port.
const DefaultPortName = "Answer"

// ResponseTypeString is the only response type the input port declares.
const ResponseTypeString = "string"

// pendingRequest is a single-resolution future for one external request.
type pendingRequest struct {
	req      Request
	question string
	answer   chan string // buffered 1; written at most once
}

// InputPort suspends the workflow until an external caller answers. Each
// question it receives becomes a Request that must be satisfied through
// Submit before the port forwards the answer downstream.
type InputPort struct {
	name string

	mu        sync.Mutex
	pending   map[string]*pendingRequest
	satisfied map[string]struct{}
}

// NewInputPort creates an InputPort with the given name.
func NewInputPort(name string) *InputPort {
	return &InputPort{
		name:      name,
		pending:   make(map[string]*pendingRequest),
		satisfied: make(map[string]struct{}),
	}
}

func (p *InputPort) ID() string { return StageAnswerPort }

// Name returns the port's name.
func (p *InputPort) Name() string { return p.name }

func (p *InputPort) Handle(ctx context.Context, msg Message, wc Context) error {
	if msg.Kind != MessageQuestion {
		return unexpectedMessage(p.ID(), msg)
	}

	pr, err := p.open(msg.Text)
	if err != nil {
		return err
	}

	ev := Event{
		Kind:    EventExternalInputRequested,
		Source:  p.ID(),
		Text:    msg.Text,
		Request: &pr.req,
	}
	if err := wc.AddEvent(ctx, ev); err != nil {
		p.release(pr.req.ID)
		return err
	}

	select {
	case answer := <-pr.answer:
		wc.Send(Message{Kind: MessageAnswer, Text: answer})
		return nil
	case <-ctx.Done():
		p.release(pr.req.ID)
		return ctx.Err()
	}
}

// open registers a new pending request. A port serves one session, so at
// most one request may be outstanding.
func (p *InputPort) open(question string) (*pendingRequest, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.pending) > 0 {
		return nil, &ProtocolError{Op: "handle", Stage: p.ID(), Detail: "a request is already outstanding"}
	}

	pr := &pendingRequest{
		req: Request{
			ID:           uuid.NewString(),
			Port:         p.name,
			ResponseType: ResponseTypeString,
		},
		question: question,
		answer:   make(chan string, 1),
	}
	p.pending[pr.req.ID] = pr
	return pr, nil
}

// release drops an unanswered request so that late submissions fail.
func (p *InputPort) release(id string) {
	p.mu.Lock()
	delete(p.pending, id)
	p.mu.Unlock()
}

// releaseAll drops every unanswered request. Called when a session ends.
func (p *InputPort) releaseAll() {
	p.mu.Lock()
	clear(p.pending)
	p.mu.Unlock()
}

// Submit resolves the request with the given ID. Unknown and already
// satisfied IDs are rejected without side effects.
func (p *InputPort) Submit(id, answer string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	pr, ok := p.pending[id]
	if !ok {
		if _, done := p.satisfied[id]; done {
			return &ProtocolError{Op: "submit", Stage: p.ID(), Detail: fmt.Sprintf("request %q already satisfied", id)}
		}
		return &ProtocolError{Op: "submit", Stage: p.ID(), Detail: fmt.Sprintf("unknown request %q", id)}
	}

	delete(p.pending, id)
	p.satisfied[id] = struct{}{}
	pr.answer <- answer
	return nil
}

// Pending returns the outstanding request and its question, if any.
func (p *InputPort) Pending() (Request, string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, pr := range p.pending {
		return pr.req, pr.question, true
	}
	return Request{}, "", false
}
