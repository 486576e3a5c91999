package orchestrator

import "context"

// Executor IDs of the quiz graph.
const (
	StageDownloader = "downloader"
	StageGenerator  = "generator"
	StagePresenter  = "presenter"
	StageAnswerPort = "answer-port"
)

// MessageKind discriminates the messages that flow along graph edges.
type MessageKind int

const (
	MessageTopic       MessageKind = iota + 1 // initial input, consumed by the downloader
	MessageContent                            // downloaded content, consumed by the generator
	MessageQuestionSet                        // generated Q/A payload, starts a quiz
	MessageQuestion                           // posed question, consumed by the input port
	MessageAnswer                             // external response, consumed by the presenter
)

func (k MessageKind) String() string {
	switch k {
	case MessageTopic:
		return "topic"
	case MessageContent:
		return "content"
	case MessageQuestionSet:
		return "question-set"
	case MessageQuestion:
		return "question"
	case MessageAnswer:
		return "answer"
	default:
		return "unknown"
	}
}

// Message is the unit of data passed between executors.
type Message struct {
	Kind MessageKind
	Text string
}

// EventKind discriminates workflow events.
type EventKind int

const (
	EventContentPrepared EventKind = iota + 1
	EventQuestionAnswersReady
	EventQuestionPosed
	EventExternalInputRequested
)

func (k EventKind) String() string {
	switch k {
	case EventContentPrepared:
		return "content-prepared"
	case EventQuestionAnswersReady:
		return "question-answers-ready"
	case EventQuestionPosed:
		return "question-posed"
	case EventExternalInputRequested:
		return "external-input-requested"
	default:
		return "unknown"
	}
}

// Event is emitted to the session driver as the workflow progresses.
type Event struct {
	Kind   EventKind
	Source string // executor ID that emitted the event
	Text   string

	// Round is the quiz round a QuestionPosed event belongs to.
	Round int

	// Final marks the QuestionPosed event that carries the quiz summary.
	Final bool

	// Request is set on ExternalInputRequested events.
	Request *Request
}

// Request is an outstanding external input request. It is satisfied by
// exactly one Session.Submit call with a matching ID.
type Request struct {
	ID           string
	Port         string
	ResponseType string
}

// Context is handed to an executor for the duration of one Handle call.
type Context interface {
	// AddEvent delivers ev to the session driver. It blocks until the driver
	// receives the event or ctx is done.
	AddEvent(ctx context.Context, ev Event) error

	// Send queues msg for every executor downstream of the caller.
	Send(msg Message)

	// YieldOutput sets the workflow's terminal output. Only the graph's
	// output executor may yield.
	YieldOutput(text string)
}

// Executor is one node of the workflow graph. Handle switches on msg.Kind and
// returns a *ProtocolError for kinds it does not accept.
type Executor interface {
	ID() string
	Handle(ctx context.Context, msg Message, wc Context) error
}
