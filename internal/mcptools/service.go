package mcptools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/dusk-indust/quizflow/internal/orchestrator"
	"github.com/dusk-indust/quizflow/internal/session"
)

// Sessions is the part of *session.Manager the tools need.
type Sessions interface {
	Start(ctx context.Context, topic string) (*session.Turn, error)
	Answer(ctx context.Context, sessionID, requestID, answer string) (*session.Turn, error)
	Get(sessionID string) (*session.Snapshot, error)
	List() []*session.Snapshot
	Cancel(sessionID string) (*session.Snapshot, error)
}

var _ Sessions = (*session.Manager)(nil)

// QuizService handles MCP tool calls by driving quiz sessions.
type QuizService struct {
	sessions Sessions
	logger   *slog.Logger
}

// NewQuizService creates a QuizService over sessions.
func NewQuizService(sessions Sessions, logger *slog.Logger) *QuizService {
	if logger == nil {
		logger = slog.Default()
	}
	return &QuizService{sessions: sessions, logger: logger.With("component", "mcp")}
}

// StartQuiz begins a quiz and returns the events up to the first question.
func (s *QuizService) StartQuiz(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input StartQuizInput,
) (*mcp.CallToolResult, TurnOutput, error) {
	topic := strings.TrimSpace(input.Topic)
	if topic == "" {
		return nil, TurnOutput{}, errors.New("topic is required")
	}

	turn, err := s.sessions.Start(ctx, topic)
	if err != nil {
		return nil, TurnOutput{}, err
	}
	s.logger.Debug("start_quiz", "session", turn.SessionID, "status", turn.Status)
	return textResult(turnOutput(turn))
}

// AnswerQuestion submits an answer and returns the events up to the next
// question or the summary.
func (s *QuizService) AnswerQuestion(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input AnswerQuestionInput,
) (*mcp.CallToolResult, TurnOutput, error) {
	if input.SessionID == "" {
		return nil, TurnOutput{}, errors.New("sessionId is required")
	}

	turn, err := s.sessions.Answer(ctx, input.SessionID, input.RequestID, input.Answer)
	if err != nil {
		return nil, TurnOutput{}, err
	}
	s.logger.Debug("answer_question", "session", turn.SessionID, "status", turn.Status)
	return textResult(turnOutput(turn))
}

// GetSession reports a session's state and full event history.
func (s *QuizService) GetSession(
	_ context.Context,
	_ *mcp.CallToolRequest,
	input SessionInput,
) (*mcp.CallToolResult, SessionOutput, error) {
	snap, err := s.sessions.Get(input.SessionID)
	if err != nil {
		return nil, SessionOutput{}, err
	}
	return nil, sessionOutput(snap), nil
}

// CancelQuiz stops a session. Cancelling a finished session reports it
// unchanged.
func (s *QuizService) CancelQuiz(
	_ context.Context,
	_ *mcp.CallToolRequest,
	input SessionInput,
) (*mcp.CallToolResult, SessionOutput, error) {
	snap, err := s.sessions.Cancel(input.SessionID)
	if err != nil {
		return nil, SessionOutput{}, err
	}
	s.logger.Debug("cancel_quiz", "session", snap.ID, "status", snap.Status)
	return nil, sessionOutput(snap), nil
}

// ListSessions summarises every known session, oldest first.
func (s *QuizService) ListSessions(
	_ context.Context,
	_ *mcp.CallToolRequest,
	input ListSessionsInput,
) (*mcp.CallToolResult, ListSessionsOutput, error) {
	out := ListSessionsOutput{Sessions: []SessionSummary{}}
	for _, snap := range s.sessions.List() {
		if input.Status != "" && string(snap.Status) != input.Status {
			continue
		}
		out.Sessions = append(out.Sessions, SessionSummary{
			SessionID: snap.ID,
			Topic:     snap.Topic,
			Status:    string(snap.Status),
			Round:     snap.Round,
		})
	}
	return nil, out, nil
}

func turnOutput(t *session.Turn) TurnOutput {
	return TurnOutput{
		SessionID: t.SessionID,
		Status:    string(t.Status),
		Events:    eventViews(t.Events),
		Question:  questionView(t.Question),
		Output:    t.Output,
		Error:     t.Error,
	}
}

func sessionOutput(s *session.Snapshot) SessionOutput {
	answers := s.Answers
	if answers == nil {
		answers = []string{}
	}
	return SessionOutput{
		SessionID: s.ID,
		Topic:     s.Topic,
		Status:    string(s.Status),
		Round:     s.Round,
		Question:  questionView(s.Question),
		Answers:   answers,
		Events:    eventViews(s.Events),
		Output:    s.Output,
		Error:     s.Error,
		CreatedAt: s.CreatedAt.Format(time.RFC3339),
		UpdatedAt: s.UpdatedAt.Format(time.RFC3339),
	}
}

func eventViews(events []session.Event) []EventView {
	out := make([]EventView, 0, len(events))
	for _, ev := range events {
		out = append(out, EventView(ev))
	}
	return out
}

func questionView(q *session.Question) *QuestionView {
	if q == nil {
		return nil
	}
	v := QuestionView(*q)
	return &v
}

// textResult pairs the structured turn with a readable rendering of it.
func textResult(out TurnOutput) (*mcp.CallToolResult, TurnOutput, error) {
	res := &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: describe(out)}},
	}
	return res, out, nil
}

// describe renders a turn for clients that only read text content.
func describe(t TurnOutput) string {
	var b strings.Builder
	for _, ev := range t.Events {
		if ev.Kind == orchestrator.EventQuestionPosed.String() {
			fmt.Fprintf(&b, "%s\n\n", ev.Text)
		}
	}
	switch {
	case t.Question != nil:
		fmt.Fprintf(&b, "Answer with answer_question (sessionId %s).", t.SessionID)
	case t.Error != "":
		fmt.Fprintf(&b, "Quiz %s: %s", t.Status, t.Error)
	default:
		fmt.Fprintf(&b, "Quiz %s.", t.Status)
	}
	return b.String()
}
