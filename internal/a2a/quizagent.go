package a2a

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dusk-indust/quizflow/internal/agent"
	"github.com/dusk-indust/quizflow/internal/orchestrator"
	"github.com/dusk-indust/quizflow/internal/session"
)

var _ Handler = (*QuizAgent)(nil)

// Artifact names attached to completed quiz tasks.
const (
	ArtifactSummary     = "quiz-summary"
	ArtifactQuestionSet = "question-set"
)

// QuizAgent serves quiz sessions over A2A. Each task ID is a session ID.
type QuizAgent struct {
	manager *session.Manager
	store   *TaskStore
	card    AgentCard
	logger  *slog.Logger
}

// NewQuizAgent creates a QuizAgent backed by manager.
func NewQuizAgent(manager *session.Manager, card AgentCard, logger *slog.Logger) *QuizAgent {
	if logger == nil {
		logger = slog.Default()
	}
	return &QuizAgent{
		manager: manager,
		store:   NewTaskStore(),
		card:    card,
		logger:  logger.With("component", "a2a_agent"),
	}
}

// Card returns the agent's A2A Agent Card.
func (q *QuizAgent) Card() AgentCard { return q.card }

// DefaultCard describes the quiz agent served at url.
func DefaultCard(url, version string) AgentCard {
	return AgentCard{
		Name:        "quizflow",
		Description: "Builds a five-question quiz about a topic from web content and grades each answer.",
		Version:     version,
		Interfaces: []AgentInterface{
			{URL: url, ProtocolBinding: "JSONRPC", ProtocolVersion: "0.3.0"},
		},
		Capabilities:       AgentCapabilities{Streaming: true},
		DefaultInputModes:  []string{"text/plain"},
		DefaultOutputModes: []string{"text/plain", "application/json"},
		Skills: []AgentSkill{
			{
				ID:          "quiz",
				Name:        "Topic quiz",
				Description: "Send a topic to start; answer each question in a follow-up message on the same task.",
				Tags:        []string{"quiz", "education"},
				Examples:    []string{"Azure Functions runtime versions overview"},
			},
		},
	}
}

func (q *QuizAgent) HandleSendMessage(ctx context.Context, req SendMessageRequest) (*Task, error) {
	task, _, err := q.send(ctx, req)
	return task, err
}

// HandleStreamMessage emits one status update per workflow event of the
// turn, then the task.
func (q *QuizAgent) HandleStreamMessage(ctx context.Context, req SendMessageRequest, emit func(StreamEvent) error) error {
	task, turn, err := q.send(ctx, req)
	if err != nil {
		return err
	}

	for _, ev := range turn.Events {
		state := TaskStateWorking
		if ev.Kind == orchestrator.EventExternalInputRequested.String() {
			state = TaskStateInputRequired
		}
		meta, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("a2a: marshal event: %w", err)
		}
		msg := q.agentMessage(task, ev.Text)
		update := &TaskStatusUpdateEvent{
			TaskID:    task.ID,
			ContextID: task.ContextID,
			Status:    TaskStatus{State: state, Message: &msg, Timestamp: time.Now()},
			Metadata:  meta,
		}
		if err := emit(StreamEvent{StatusUpdate: update}); err != nil {
			return err
		}
	}
	return emit(StreamEvent{Task: task})
}

func (q *QuizAgent) HandleGetTask(_ context.Context, req GetTaskRequest) (*Task, error) {
	return q.store.Get(req.ID, req.HistoryLength)
}

func (q *QuizAgent) HandleListTasks(_ context.Context, req ListTasksRequest) (*ListTasksResponse, error) {
	return q.store.List(req)
}

func (q *QuizAgent) HandleCancelTask(_ context.Context, req CancelTaskRequest) (*Task, error) {
	t, err := q.store.Get(req.ID, nil)
	if err != nil {
		return nil, err
	}
	if t.Status.State.IsTerminal() {
		return nil, fmt.Errorf("%w: %s is %s", ErrTaskNotCancelable, req.ID, t.Status.State)
	}

	if _, err := q.manager.Cancel(req.ID); err != nil {
		return nil, err
	}
	q.logger.Info("task canceled", "task", req.ID)
	return q.store.Update(req.ID, func(t *Task) {
		t.Status = TaskStatus{State: TaskStateCanceled, Timestamp: time.Now()}
	})
}

// send starts a quiz or answers its pending question, and records the turn
// on the task.
func (q *QuizAgent) send(ctx context.Context, req SendMessageRequest) (*Task, *session.Turn, error) {
	text := strings.TrimSpace(req.Message.Text())
	if text == "" {
		return nil, nil, fmt.Errorf("%w: message has no text", ErrInvalidMessage)
	}
	if req.Message.Role != "" && req.Message.Role != RoleUser {
		return nil, nil, fmt.Errorf("%w: role must be %q", ErrInvalidMessage, RoleUser)
	}

	if req.Message.TaskID == "" {
		return q.start(ctx, req.Message, text)
	}
	return q.answer(ctx, req.Message, text)
}

func (q *QuizAgent) start(ctx context.Context, msg Message, topic string) (*Task, *session.Turn, error) {
	turn, err := q.manager.Start(ctx, topic)
	if err != nil {
		return nil, nil, err
	}

	contextID := msg.ContextID
	if contextID == "" {
		contextID = uuid.NewString()
	}
	msg.TaskID = turn.SessionID
	msg.ContextID = contextID
	if msg.MessageID == "" {
		msg.MessageID = uuid.NewString()
	}

	task := Task{
		ID:        turn.SessionID,
		ContextID: contextID,
		Status:    TaskStatus{State: TaskStateSubmitted, Timestamp: time.Now()},
		History:   []Message{msg},
	}
	if err := q.store.Create(task); err != nil {
		return nil, nil, err
	}
	q.logger.Info("task created", "task", task.ID, "context", contextID)

	out, err := q.apply(turn)
	return out, turn, err
}

func (q *QuizAgent) answer(ctx context.Context, msg Message, answer string) (*Task, *session.Turn, error) {
	t, err := q.store.Get(msg.TaskID, nil)
	if err != nil {
		return nil, nil, err
	}
	if t.Status.State != TaskStateInputRequired {
		return nil, nil, fmt.Errorf("%w: task %s is %s, not waiting for an answer", ErrInvalidMessage, t.ID, t.Status.State)
	}

	turn, err := q.manager.Answer(ctx, t.ID, "", answer)
	if err != nil {
		return nil, nil, err
	}

	msg.ContextID = t.ContextID
	if msg.MessageID == "" {
		msg.MessageID = uuid.NewString()
	}
	if _, err := q.store.Update(t.ID, func(t *Task) { t.History = append(t.History, msg) }); err != nil {
		return nil, nil, err
	}

	out, err := q.apply(turn)
	return out, turn, err
}

// apply folds a turn into the stored task: posed questions join the history
// and the session status becomes the task state.
func (q *QuizAgent) apply(turn *session.Turn) (*Task, error) {
	var artifacts []Artifact
	if turn.Status == session.StatusCompleted {
		artifacts = q.completionArtifacts(turn)
	}

	return q.store.Update(turn.SessionID, func(t *Task) {
		for _, ev := range turn.Events {
			if ev.Kind == orchestrator.EventQuestionPosed.String() {
				t.History = append(t.History, q.agentMessage(t, ev.Text))
			}
		}

		now := time.Now()
		switch turn.Status {
		case session.StatusWaiting:
			msg := q.agentMessage(t, turn.Question.Text)
			t.Status = TaskStatus{State: TaskStateInputRequired, Message: &msg, Timestamp: now}
		case session.StatusCompleted:
			t.Status = TaskStatus{State: TaskStateCompleted, Timestamp: now}
			t.Artifacts = artifacts
		case session.StatusFailed:
			msg := q.agentMessage(t, turn.Error)
			t.Status = TaskStatus{State: TaskStateFailed, Message: &msg, Timestamp: now}
		case session.StatusCanceled:
			t.Status = TaskStatus{State: TaskStateCanceled, Timestamp: now}
		default:
			t.Status = TaskStatus{State: TaskStateWorking, Timestamp: now}
		}
	})
}

// completionArtifacts returns the summary and, when it parses, the question
// set the quiz was built from.
func (q *QuizAgent) completionArtifacts(turn *session.Turn) []Artifact {
	artifacts := []Artifact{{
		ArtifactID: uuid.NewString(),
		Name:       ArtifactSummary,
		Parts:      []Part{TextPart(turn.Output)},
	}}

	snap, err := q.manager.Get(turn.SessionID)
	if err != nil {
		return artifacts
	}
	for _, ev := range snap.Events {
		if ev.Kind != orchestrator.EventQuestionAnswersReady.String() {
			continue
		}
		part := TextPart(ev.Text)
		if qs, err := agent.ParseQuestionSet(ev.Text); err == nil {
			if p, err := DataPart(qs); err == nil {
				part = p
			}
		}
		artifacts = append(artifacts, Artifact{
			ArtifactID:  uuid.NewString(),
			Name:        ArtifactQuestionSet,
			Description: "Questions and expected answers",
			Parts:       []Part{part},
		})
		break
	}
	return artifacts
}

func (q *QuizAgent) agentMessage(t *Task, text string) Message {
	m := NewMessage(RoleAgent, text)
	m.TaskID = t.ID
	m.ContextID = t.ContextID
	return m
}
