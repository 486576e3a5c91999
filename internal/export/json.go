package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dusk-indust/quizflow/internal/orchestrator"
	"github.com/dusk-indust/quizflow/internal/session"
)

// SessionExport is the top-level JSON export of one quiz session.
type SessionExport struct {
	ID         string        `json:"id"`
	Topic      string        `json:"topic"`
	Status     string        `json:"status"`
	ExportedAt string        `json:"exportedAt"`
	Rounds     []RoundExport `json:"rounds"`
	Summary    string        `json:"summary,omitempty"`
	Error      string        `json:"error,omitempty"`
}

// RoundExport pairs what the presenter said in a round with the user's
// answer, if one was given.
type RoundExport struct {
	Round  int    `json:"round"`
	Prompt string `json:"prompt"`
	Answer string `json:"answer,omitempty"`
}

// ExportSession builds a SessionExport from a session snapshot.
func ExportSession(snap *session.Snapshot) *SessionExport {
	export := &SessionExport{
		ID:         snap.ID,
		Topic:      snap.Topic,
		Status:     string(snap.Status),
		ExportedAt: time.Now().UTC().Format(time.RFC3339),
		Rounds:     []RoundExport{},
		Summary:    snap.Output,
		Error:      snap.Error,
	}

	for _, ev := range snap.Events {
		if ev.Kind != orchestrator.EventQuestionPosed.String() || ev.Final {
			continue
		}
		r := RoundExport{Round: ev.Round, Prompt: ev.Text}
		if i := ev.Round - 1; i >= 0 && i < len(snap.Answers) {
			r.Answer = snap.Answers[i]
		}
		export.Rounds = append(export.Rounds, r)
	}
	return export
}

// WriteJSON writes v as indented JSON to path, creating parent directories.
func WriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("export: marshal: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("export: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("export: write %s: %w", path, err)
	}
	return nil
}
