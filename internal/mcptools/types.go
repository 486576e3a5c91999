package mcptools

// --- MCP tool types for the quiz server mode (--serve-mcp) ---
// A quiz advances one tool call at a time: start_quiz returns the first
// question, each answer_question returns the next one or the summary.

// StartQuizInput is the input for the start_quiz MCP tool.
type StartQuizInput struct {
	Topic string `json:"topic" jsonschema:"subject to build the quiz about"`
}

// AnswerQuestionInput is the input for the answer_question MCP tool.
type AnswerQuestionInput struct {
	SessionID string `json:"sessionId" jsonschema:"session returned by start_quiz"`
	RequestID string `json:"requestId,omitempty" jsonschema:"request being answered (default: the pending one)"`
	Answer    string `json:"answer" jsonschema:"the answer to the current question"`
}

// SessionInput identifies a session for get_session and cancel_quiz.
type SessionInput struct {
	SessionID string `json:"sessionId" jsonschema:"session returned by start_quiz"`
}

// ListSessionsInput is the input for the list_sessions MCP tool.
type ListSessionsInput struct {
	Status string `json:"status,omitempty" jsonschema:"only sessions in this status (running, waiting, completed, failed, canceled)"`
}

// EventView is one workflow event as reported to MCP clients.
type EventView struct {
	Kind      string `json:"kind"`
	Source    string `json:"source"`
	Text      string `json:"text"`
	Round     int    `json:"round,omitempty"`
	Final     bool   `json:"final,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

// QuestionView is the question a session is waiting on.
type QuestionView struct {
	RequestID string `json:"requestId"`
	Text      string `json:"text"`
	Round     int    `json:"round"`
}

// TurnOutput is the result of start_quiz and answer_question.
type TurnOutput struct {
	SessionID string        `json:"sessionId"`
	Status    string        `json:"status"`
	Events    []EventView   `json:"events"`
	Question  *QuestionView `json:"question,omitempty"`
	Output    string        `json:"output,omitempty"`
	Error     string        `json:"error,omitempty"`
}

// SessionOutput is the result of get_session and cancel_quiz.
type SessionOutput struct {
	SessionID string        `json:"sessionId"`
	Topic     string        `json:"topic"`
	Status    string        `json:"status"`
	Round     int           `json:"round"`
	Question  *QuestionView `json:"question,omitempty"`
	Answers   []string      `json:"answers"`
	Events    []EventView   `json:"events"`
	Output    string        `json:"output,omitempty"`
	Error     string        `json:"error,omitempty"`
	CreatedAt string        `json:"createdAt"`
	UpdatedAt string        `json:"updatedAt"`
}

// ListSessionsOutput is the result of the list_sessions MCP tool.
type ListSessionsOutput struct {
	Sessions []SessionSummary `json:"sessions"`
}

// SessionSummary is a brief overview of one session.
type SessionSummary struct {
	SessionID string `json:"sessionId"`
	Topic     string `json:"topic"`
	Status    string `json:"status"`
	Round     int    `json:"round"`
}
