package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/quizflow/internal/agent"
)

const testPayload = `{"questions":[{"question":"q1","answer":"a1"}]}`

// quizAgents holds scripted doubles for the three stages.
type quizAgents struct {
	downloader *agent.ScriptedAgent
	generator  *agent.ScriptedAgent
	presenter  *agent.ScriptedAgent
}

func (q quizAgents) agents() Agents {
	return Agents{Downloader: q.downloader, Generator: q.generator, Presenter: q.presenter}
}

func echoDownloader(_ context.Context, call agent.Call) (string, error) {
	return "content for " + strings.TrimPrefix(call.Prompt, "Topic: "), nil
}

func fixedGenerator(_ context.Context, _ agent.Call) (string, error) {
	return testPayload, nil
}

// numberedPresenter asks "Q<n>" where n is the turn on its thread and answers
// the summary prompt with "SUMMARY".
func numberedPresenter(_ context.Context, call agent.Call) (string, error) {
	if strings.Contains(call.Prompt, "This is the last answer") {
		return "SUMMARY", nil
	}
	return fmt.Sprintf("Q%d", call.Turn+1), nil
}

func newQuizAgents() quizAgents {
	return quizAgents{
		downloader: agent.NewScriptedAgent(agent.DownloaderName, echoDownloader),
		generator:  agent.NewScriptedAgent(agent.GeneratorName, fixedGenerator),
		presenter:  agent.NewScriptedAgent(agent.PresenterName, numberedPresenter),
	}
}

func newCoordinator(t *testing.T, agents Agents, opts ...Option) *Coordinator {
	t.Helper()
	c, err := New(agents, opts...)
	require.NoError(t, err)
	return c
}

// drive consumes every event of s, answering each request with answer(n)
// where n counts requests from 1. It returns the collected events and the
// session's terminal result.
func drive(t *testing.T, s *Session, answer func(n int) string) ([]Event, string, error) {
	t.Helper()

	var (
		events []Event
		n      int
	)
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-s.Events():
			if !ok {
				out, err := s.Wait()
				return events, out, err
			}
			events = append(events, ev)
			if ev.Kind == EventExternalInputRequested {
				n++
				require.NotNil(t, ev.Request)
				require.NoError(t, s.Submit(ev.Request.ID, answer(n)))
			}
		case <-timeout:
			t.Fatal("session did not finish")
			return nil, "", nil
		}
	}
}

func constAnswer(s string) func(int) string {
	return func(int) string { return s }
}

func eventsOfKind(events []Event, kind EventKind) []Event {
	var out []Event
	for _, ev := range events {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}

// recordingContext is a Context double for exercising a single executor.
type recordingContext struct {
	events []Event
	sent   []Message
	output *string
	addErr error
}

func (r *recordingContext) AddEvent(_ context.Context, ev Event) error {
	if r.addErr != nil {
		return r.addErr
	}
	r.events = append(r.events, ev)
	return nil
}

func (r *recordingContext) Send(msg Message) { r.sent = append(r.sent, msg) }

func (r *recordingContext) YieldOutput(text string) { r.output = &text }
