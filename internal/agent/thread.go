package agent

import (
	"sync"

	"github.com/google/uuid"
)

// Message is one turn in a conversation thread.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Message roles used on the wire.
const (
	MessageRoleSystem    = "system"
	MessageRoleUser      = "user"
	MessageRoleAssistant = "assistant"
)

// Thread is the long-lived context for a sequence of calls to one agent.
// A Thread is owned by a single caller; the mutex serialises calls so that
// turns are appended in order.
type Thread struct {
	id string

	mu       sync.Mutex
	messages []Message
}

// NewThread returns an empty thread with a fresh ID.
func NewThread() *Thread {
	return &Thread{id: uuid.NewString()}
}

// ID returns the thread identifier.
func (t *Thread) ID() string {
	return t.id
}

// Messages returns a copy of the thread's history.
func (t *Thread) Messages() []Message {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Message, len(t.messages))
	copy(out, t.messages)
	return out
}

// Len returns the number of messages in the thread.
func (t *Thread) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.messages)
}

// Turns returns the number of completed prompt/response exchanges.
func (t *Thread) Turns() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := 0
	for _, m := range t.messages {
		if m.Role == MessageRoleAssistant {
			n++
		}
	}
	return n
}

// appendLocked records one exchange. The caller must hold t.mu.
func (t *Thread) appendLocked(prompt, response string) {
	t.messages = append(t.messages,
		Message{Role: MessageRoleUser, Content: prompt},
		Message{Role: MessageRoleAssistant, Content: response},
	)
}

// historyLocked returns the thread's history without copying. The caller
// must hold t.mu and must not retain the slice.
func (t *Thread) historyLocked() []Message {
	return t.messages
}
