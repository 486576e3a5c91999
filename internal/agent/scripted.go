package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
)

// Compile-time interface checks.
var (
	_ Factory = (*ScriptedFactory)(nil)
	_ Agent   = (*ScriptedAgent)(nil)
	_ Closer  = (*ScriptedAgent)(nil)
)

// Call describes one invocation of a ScriptedAgent.
type Call struct {
	Agent    string
	ThreadID string
	Prompt   string
	Turn     int // zero-based count of prior exchanges on the thread
}

// Responder produces the response for one call.
type Responder func(ctx context.Context, call Call) (string, error)

// ScriptedAgent answers from a Responder instead of a model service. It is
// used for offline runs and as a test double.
type ScriptedAgent struct {
	name    string
	respond Responder
	closed  atomic.Bool

	mu    sync.Mutex
	calls []Call
}

// NewScriptedAgent creates a ScriptedAgent named name.
func NewScriptedAgent(name string, respond Responder) *ScriptedAgent {
	return &ScriptedAgent{name: name, respond: respond}
}

// Name returns the agent's name.
func (s *ScriptedAgent) Name() string { return s.name }

// NewThread returns a fresh conversation thread.
func (s *ScriptedAgent) NewThread() *Thread { return NewThread() }

// Close marks the agent closed; later calls fail with an InvocationError.
func (s *ScriptedAgent) Close(_ context.Context) error {
	s.closed.Store(true)
	return nil
}

// Closed reports whether Close has been called.
func (s *ScriptedAgent) Closed() bool { return s.closed.Load() }

// Run records the call and returns the responder's text.
func (s *ScriptedAgent) Run(ctx context.Context, thread *Thread, prompt string) (string, error) {
	if thread == nil {
		return "", fmt.Errorf("agent %s: nil thread", s.name)
	}
	if s.closed.Load() {
		return "", &InvocationError{Agent: s.name, Err: errors.New("agent closed")}
	}

	thread.mu.Lock()
	defer thread.mu.Unlock()

	call := Call{
		Agent:    s.name,
		ThreadID: thread.ID(),
		Prompt:   prompt,
		Turn:     len(thread.historyLocked()) / 2,
	}

	s.mu.Lock()
	s.calls = append(s.calls, call)
	s.mu.Unlock()

	text, err := s.respond(ctx, call)
	if err != nil {
		return "", err
	}
	thread.appendLocked(prompt, text)
	return text, nil
}

// Calls returns a copy of every call made so far.
func (s *ScriptedAgent) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

// ScriptedFactory builds ScriptedAgents from per-role responders.
type ScriptedFactory struct {
	Responders map[Role]Responder

	mu    sync.Mutex
	built map[Role]*ScriptedAgent
}

// NewScriptedFactory creates a factory for the given responders.
func NewScriptedFactory(responders map[Role]Responder) *ScriptedFactory {
	return &ScriptedFactory{
		Responders: responders,
		built:      make(map[Role]*ScriptedAgent),
	}
}

// Build returns a ScriptedAgent for def.Role.
func (f *ScriptedFactory) Build(_ context.Context, def Definition) (Agent, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}
	respond, ok := f.Responders[def.Role]
	if !ok {
		return nil, fmt.Errorf("agent: no scripted responder for role %q", def.Role)
	}

	a := NewScriptedAgent(def.Name, respond)

	f.mu.Lock()
	f.built[def.Role] = a
	f.mu.Unlock()
	return a, nil
}

// Agent returns the most recently built agent for role, or nil.
func (f *ScriptedFactory) Agent(role Role) *ScriptedAgent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.built[role]
}

// OfflineFactory returns a ScriptedFactory that runs a complete quiz without
// a model service. Content and questions are canned; every answer is
// acknowledged without grading.
func OfflineFactory() *ScriptedFactory {
	return NewScriptedFactory(map[Role]Responder{
		RoleDownloader: offlineDownloader,
		RoleGenerator:  offlineGenerator,
		RolePresenter:  offlinePresenter,
	})
}

func offlineDownloader(_ context.Context, call Call) (string, error) {
	topic := strings.TrimSpace(strings.TrimPrefix(call.Prompt, "Topic:"))
	return fmt.Sprintf("# %s\n\n%s is the subject of this offline study text. "+
		"It has a name, a purpose, a history, a set of common uses and a community around it.", topic, topic), nil
}

func offlineGenerator(_ context.Context, _ Call) (string, error) {
	qs := QuestionSet{Questions: []QuestionAnswer{
		{Question: "What is the subject of the study text?", Answer: "The topic"},
		{Question: "Does the subject have a purpose?", Answer: "Yes"},
		{Question: "Does the subject have a history?", Answer: "Yes"},
		{Question: "Name one thing the text says the subject has.", Answer: "A community"},
		{Question: "Is this text generated offline?", Answer: "Yes"},
	}}
	data, err := json.Marshal(qs)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func offlinePresenter(_ context.Context, call Call) (string, error) {
	switch {
	case call.Turn == 0:
		return "Question 1: What is the subject of the study text?", nil
	case strings.Contains(call.Prompt, "Prepare a summary"):
		return "Quiz complete. You answered 5 questions. Thanks for playing!", nil
	default:
		return fmt.Sprintf("Thanks, answer recorded.\n\nQuestion %d: next question from the set.", call.Turn+1), nil
	}
}
