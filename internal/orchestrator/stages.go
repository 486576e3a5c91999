package orchestrator

import (
	"context"
	"fmt"

	"github.com/dusk-indust/quizflow/internal/agent"
)

// Compile-time interface checks.
var (
	_ Executor = (*Downloader)(nil)
	_ Executor = (*Generator)(nil)
	_ Executor = (*Presenter)(nil)
)

// Downloader turns a topic into cleaned content text.
type Downloader struct {
	agent  agent.Agent
	thread *agent.Thread
}

// NewDownloader creates a Downloader with its own conversation thread.
func NewDownloader(a agent.Agent) *Downloader {
	return &Downloader{agent: a, thread: a.NewThread()}
}

func (d *Downloader) ID() string { return StageDownloader }

func (d *Downloader) Handle(ctx context.Context, msg Message, wc Context) error {
	if msg.Kind != MessageTopic {
		return unexpectedMessage(d.ID(), msg)
	}

	content, err := d.agent.Run(ctx, d.thread, "Topic: "+msg.Text)
	if err != nil {
		return err
	}
	if err := wc.AddEvent(ctx, Event{Kind: EventContentPrepared, Source: d.ID(), Text: content}); err != nil {
		return err
	}
	wc.Send(Message{Kind: MessageContent, Text: content})
	return nil
}

// Generator turns content into a question/answer payload. The payload is
// opaque here; its structure is enforced by the generator agent's output
// schema.
type Generator struct {
	agent  agent.Agent
	thread *agent.Thread
}

// NewGenerator creates a Generator with its own conversation thread.
func NewGenerator(a agent.Agent) *Generator {
	return &Generator{agent: a, thread: a.NewThread()}
}

func (g *Generator) ID() string { return StageGenerator }

func (g *Generator) Handle(ctx context.Context, msg Message, wc Context) error {
	if msg.Kind != MessageContent {
		return unexpectedMessage(g.ID(), msg)
	}

	payload, err := g.agent.Run(ctx, g.thread, "Content: "+msg.Text)
	if err != nil {
		return err
	}
	if err := wc.AddEvent(ctx, Event{Kind: EventQuestionAnswersReady, Source: g.ID(), Text: payload}); err != nil {
		return err
	}
	wc.Send(Message{Kind: MessageQuestionSet, Text: payload})
	return nil
}

// MaxRounds is the number of questions asked per quiz.
const MaxRounds = 5

// PresenterState is the presenter's position in the quiz.
type PresenterState int

const (
	AwaitingFirstQuestion PresenterState = iota
	AwaitingAnswer
)

func (s PresenterState) String() string {
	if s == AwaitingAnswer {
		return "awaiting-answer"
	}
	return "awaiting-first-question"
}

// Presenter asks the quiz questions one at a time and validates answers.
// Its round counter and state are touched only by the session goroutine.
type Presenter struct {
	agent  agent.Agent
	thread *agent.Thread
	round  int
	state  PresenterState
}

// NewPresenter creates a Presenter with its own conversation thread.
func NewPresenter(a agent.Agent) *Presenter {
	return &Presenter{agent: a, thread: a.NewThread(), round: 1}
}

func (p *Presenter) ID() string { return StagePresenter }

// Round returns the current round, in [1, MaxRounds].
func (p *Presenter) Round() int { return p.round }

// State returns the presenter's current state.
func (p *Presenter) State() PresenterState { return p.state }

func (p *Presenter) Handle(ctx context.Context, msg Message, wc Context) error {
	switch msg.Kind {
	case MessageQuestionSet:
		return p.begin(ctx, msg.Text, wc)
	case MessageAnswer:
		if p.state != AwaitingAnswer {
			return &ProtocolError{Op: "handle", Stage: p.ID(), Detail: "answer received before the first question"}
		}
		return p.validate(ctx, msg.Text, wc)
	default:
		return unexpectedMessage(p.ID(), msg)
	}
}

// begin starts a quiz. Any quiz in progress is abandoned and the round
// counter restarts at 1.
func (p *Presenter) begin(ctx context.Context, payload string, wc Context) error {
	p.round = 1
	p.state = AwaitingFirstQuestion

	text, err := p.agent.Run(ctx, p.thread, "Here are the questions and answers: "+payload)
	if err != nil {
		return err
	}
	if err := wc.AddEvent(ctx, Event{Kind: EventQuestionPosed, Source: p.ID(), Text: text, Round: p.round}); err != nil {
		return err
	}
	p.state = AwaitingAnswer
	wc.Send(Message{Kind: MessageQuestion, Text: text})
	return nil
}

// validate grades an answer. The answer to round MaxRounds produces the
// summary and ends the workflow; earlier rounds produce the next question.
func (p *Presenter) validate(ctx context.Context, answer string, wc Context) error {
	last := p.round >= MaxRounds

	prompt := fmt.Sprintf("Here is the answer: %s. Validate the answer", answer)
	if last {
		prompt += ". This is the last answer. Prepare a summary of the result and end the quiz. Ask no more questions."
	} else {
		prompt += " and ask the next question."
	}

	text, err := p.agent.Run(ctx, p.thread, prompt)
	if err != nil {
		return err
	}

	if last {
		if err := wc.AddEvent(ctx, Event{Kind: EventQuestionPosed, Source: p.ID(), Text: text, Round: p.round, Final: true}); err != nil {
			return err
		}
		wc.YieldOutput(text)
		return nil
	}

	if err := wc.AddEvent(ctx, Event{Kind: EventQuestionPosed, Source: p.ID(), Text: text, Round: p.round + 1}); err != nil {
		return err
	}
	p.round++
	wc.Send(Message{Kind: MessageQuestion, Text: text})
	return nil
}
