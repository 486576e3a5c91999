package a2a

import (
	"encoding/json"
	"fmt"
	"slices"
	"sync"
)

// TaskStore is a concurrency-safe in-memory store of quiz tasks. A separate
// slice keeps insertion order for deterministic pagination.
type TaskStore struct {
	mu       sync.RWMutex
	tasks    map[string]*Task
	orderIDs []string
}

// NewTaskStore returns an initialized TaskStore ready for use.
func NewTaskStore() *TaskStore {
	return &TaskStore{
		tasks: make(map[string]*Task),
	}
}

// Create stores a new task. It fails if a task with the same ID exists.
func (s *TaskStore) Create(task Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[task.ID]; exists {
		return fmt.Errorf("a2a: task %q already exists", task.ID)
	}
	s.tasks[task.ID] = deepCopyTask(&task)
	s.orderIDs = append(s.orderIDs, task.ID)
	return nil
}

// Get returns a deep copy of the task. A non-nil historyLength keeps only
// the most recent messages.
func (s *TaskStore) Get(id string, historyLength *int) (*Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tasks[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	out := deepCopyTask(t)
	if historyLength != nil && *historyLength >= 0 && len(out.History) > *historyLength {
		out.History = out.History[len(out.History)-*historyLength:]
	}
	return out, nil
}

// Update applies fn to the stored task under the write lock and returns a
// copy of the result.
func (s *TaskStore) Update(id string, fn func(*Task)) (*Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	fn(t)
	return deepCopyTask(t), nil
}

// List returns tasks matching the filter. PageToken is the ID of the last
// task of the previous page; PageSize <= 0 returns every match.
func (s *TaskStore) List(filter ListTasksRequest) (*ListTasksResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	start := 0
	if filter.PageToken != "" {
		i := slices.Index(s.orderIDs, filter.PageToken)
		if i < 0 {
			return nil, fmt.Errorf("%w: invalid page token %q", ErrInvalidMessage, filter.PageToken)
		}
		start = i + 1
	}

	total := 0
	matched := []Task{}
	for i, id := range s.orderIDs {
		t := s.tasks[id]
		if !matchesFilter(t, filter) {
			continue
		}
		total++
		if i >= start {
			matched = append(matched, *deepCopyTask(t))
		}
	}

	var next string
	if filter.PageSize > 0 && len(matched) > filter.PageSize {
		next = matched[filter.PageSize-1].ID
		matched = matched[:filter.PageSize]
	}

	return &ListTasksResponse{Tasks: matched, TotalSize: total, NextPageToken: next}, nil
}

func matchesFilter(t *Task, filter ListTasksRequest) bool {
	if filter.ContextID != "" && t.ContextID != filter.ContextID {
		return false
	}
	if filter.Status != "" && string(t.Status.State) != filter.Status {
		return false
	}
	return true
}

func deepCopyTask(src *Task) *Task {
	dst := *src

	if src.Artifacts != nil {
		dst.Artifacts = make([]Artifact, len(src.Artifacts))
		for i, a := range src.Artifacts {
			a.Parts = deepCopyParts(a.Parts)
			dst.Artifacts[i] = a
		}
	}
	if src.History != nil {
		dst.History = make([]Message, len(src.History))
		for i, m := range src.History {
			dst.History[i] = deepCopyMessage(m)
		}
	}
	dst.Metadata = cloneRaw(src.Metadata)
	if src.Status.Message != nil {
		m := deepCopyMessage(*src.Status.Message)
		dst.Status.Message = &m
	}
	return &dst
}

func deepCopyMessage(src Message) Message {
	dst := src
	dst.Parts = deepCopyParts(src.Parts)
	dst.Metadata = cloneRaw(src.Metadata)
	return dst
}

func deepCopyParts(src []Part) []Part {
	if src == nil {
		return nil
	}
	dst := make([]Part, len(src))
	for i, p := range src {
		p.Data = cloneRaw(p.Data)
		dst[i] = p
	}
	return dst
}

func cloneRaw(src json.RawMessage) json.RawMessage {
	if src == nil {
		return nil
	}
	return append(json.RawMessage(nil), src...)
}
