package orchestrator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/quizflow/internal/agent"
)

func TestDownloader_Handle(t *testing.T) {
	a := agent.NewScriptedAgent(agent.DownloaderName, echoDownloader)
	d := NewDownloader(a)
	wc := &recordingContext{}

	require.NoError(t, d.Handle(context.Background(), Message{Kind: MessageTopic, Text: "Rust"}, wc))

	require.Len(t, wc.events, 1)
	assert.Equal(t, Event{Kind: EventContentPrepared, Source: StageDownloader, Text: "content for Rust"}, wc.events[0])
	assert.Equal(t, []Message{{Kind: MessageContent, Text: "content for Rust"}}, wc.sent)
	assert.Equal(t, "Topic: Rust", a.Calls()[0].Prompt)
}

func TestDownloader_RejectsOtherKinds(t *testing.T) {
	d := NewDownloader(agent.NewScriptedAgent(agent.DownloaderName, echoDownloader))
	err := d.Handle(context.Background(), Message{Kind: MessageAnswer, Text: "x"}, &recordingContext{})

	require.ErrorIs(t, err, ErrProtocol)
	assert.Contains(t, err.Error(), "unexpected answer message")
}

func TestGenerator_Handle(t *testing.T) {
	a := agent.NewScriptedAgent(agent.GeneratorName, fixedGenerator)
	g := NewGenerator(a)
	wc := &recordingContext{}

	require.NoError(t, g.Handle(context.Background(), Message{Kind: MessageContent, Text: "body"}, wc))

	require.Len(t, wc.events, 1)
	assert.Equal(t, EventQuestionAnswersReady, wc.events[0].Kind)
	assert.Equal(t, []Message{{Kind: MessageQuestionSet, Text: testPayload}}, wc.sent)
	assert.Equal(t, "Content: body", a.Calls()[0].Prompt)
}

func TestGenerator_RejectsPlainTopic(t *testing.T) {
	g := NewGenerator(agent.NewScriptedAgent(agent.GeneratorName, fixedGenerator))
	err := g.Handle(context.Background(), Message{Kind: MessageTopic, Text: "x"}, &recordingContext{})
	assert.ErrorIs(t, err, ErrProtocol)
}

func TestGenerator_EventErrorStopsSend(t *testing.T) {
	g := NewGenerator(agent.NewScriptedAgent(agent.GeneratorName, fixedGenerator))
	wc := &recordingContext{addErr: context.Canceled}

	err := g.Handle(context.Background(), Message{Kind: MessageContent, Text: "body"}, wc)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, wc.sent)
}

func TestPresenter_AnswerBeforeFirstQuestion(t *testing.T) {
	a := agent.NewScriptedAgent(agent.PresenterName, numberedPresenter)
	p := NewPresenter(a)

	err := p.Handle(context.Background(), Message{Kind: MessageAnswer, Text: "early"}, &recordingContext{})
	require.ErrorIs(t, err, ErrProtocol)
	assert.Empty(t, a.Calls())
	assert.Equal(t, AwaitingFirstQuestion, p.State())
	assert.Equal(t, 1, p.Round())
}

func TestPresenter_RejectsContent(t *testing.T) {
	p := NewPresenter(agent.NewScriptedAgent(agent.PresenterName, numberedPresenter))
	err := p.Handle(context.Background(), Message{Kind: MessageContent, Text: "x"}, &recordingContext{})
	assert.ErrorIs(t, err, ErrProtocol)
}

func TestPresenter_RoundsAdvanceAndSummarise(t *testing.T) {
	p := NewPresenter(agent.NewScriptedAgent(agent.PresenterName, numberedPresenter))
	ctx := context.Background()
	wc := &recordingContext{}

	require.NoError(t, p.Handle(ctx, Message{Kind: MessageQuestionSet, Text: testPayload}, wc))
	assert.Equal(t, AwaitingAnswer, p.State())
	assert.Equal(t, 1, p.Round())

	for round := 2; round <= MaxRounds; round++ {
		require.NoError(t, p.Handle(ctx, Message{Kind: MessageAnswer, Text: "a"}, wc))
		assert.Equal(t, round, p.Round())
		assert.Nil(t, wc.output)
	}

	require.NoError(t, p.Handle(ctx, Message{Kind: MessageAnswer, Text: "last"}, wc))
	require.NotNil(t, wc.output)
	assert.Equal(t, "SUMMARY", *wc.output)
	assert.Equal(t, MaxRounds, p.Round(), "round never exceeds the maximum")

	// Five questions were sent to the port; the summary was not.
	assert.Len(t, wc.sent, MaxRounds)
	for _, msg := range wc.sent {
		assert.Equal(t, MessageQuestion, msg.Kind)
	}
	last := wc.events[len(wc.events)-1]
	assert.True(t, last.Final)
	assert.Equal(t, MaxRounds, last.Round)
}

func TestPresenter_QuestionSetResetsRound(t *testing.T) {
	a := agent.NewScriptedAgent(agent.PresenterName, numberedPresenter)
	p := NewPresenter(a)
	ctx := context.Background()
	wc := &recordingContext{}

	require.NoError(t, p.Handle(ctx, Message{Kind: MessageQuestionSet, Text: testPayload}, wc))
	require.NoError(t, p.Handle(ctx, Message{Kind: MessageAnswer, Text: "a"}, wc))
	require.NoError(t, p.Handle(ctx, Message{Kind: MessageAnswer, Text: "b"}, wc))
	require.Equal(t, 3, p.Round())

	// A second question set mid-quiz abandons progress and starts over.
	require.NoError(t, p.Handle(ctx, Message{Kind: MessageQuestionSet, Text: testPayload}, wc))
	assert.Equal(t, 1, p.Round())
	assert.Equal(t, AwaitingAnswer, p.State())

	last := wc.events[len(wc.events)-1]
	assert.Equal(t, EventQuestionPosed, last.Kind)
	assert.Equal(t, 1, last.Round)

	// The thread is kept, so the model sees the whole history.
	calls := a.Calls()
	assert.Equal(t, 3, calls[len(calls)-1].Turn)
}

func TestPresenter_AgentErrorKeepsRound(t *testing.T) {
	fail := false
	a := agent.NewScriptedAgent(agent.PresenterName, func(ctx context.Context, call agent.Call) (string, error) {
		if fail {
			return "", &agent.InvocationError{Agent: agent.PresenterName, StatusCode: 500, Err: errors.New("boom")}
		}
		return numberedPresenter(ctx, call)
	})
	p := NewPresenter(a)
	ctx := context.Background()
	wc := &recordingContext{}

	require.NoError(t, p.Handle(ctx, Message{Kind: MessageQuestionSet, Text: testPayload}, wc))
	fail = true

	err := p.Handle(ctx, Message{Kind: MessageAnswer, Text: "a"}, wc)
	var target *agent.InvocationError
	require.ErrorAs(t, err, &target)
	assert.Equal(t, 1, p.Round())
}

func TestPresenterState_String(t *testing.T) {
	assert.Equal(t, "awaiting-first-question", AwaitingFirstQuestion.String())
	assert.Equal(t, "awaiting-answer", AwaitingAnswer.String())
}
