// Package transcript keeps an append-only SQLite record of every workflow
// event, for auditing quiz sessions after the fact.
package transcript

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/dusk-indust/quizflow/internal/orchestrator"
)

// EventRecord is one persisted workflow event.
type EventRecord struct {
	ID        uint   `gorm:"primaryKey"`
	SessionID string `gorm:"index;size:64;not null"`
	Kind      string `gorm:"size:32;not null"`
	Source    string `gorm:"size:32"`
	Text      string
	Round     int
	Final     bool
	RequestID string `gorm:"size:64"`
	CreatedAt time.Time
}

// TableName keeps the table name stable across struct renames.
func (EventRecord) TableName() string { return "transcript_events" }

// SessionSummary aggregates the records of one session.
type SessionSummary struct {
	SessionID string
	Events    int
	Rounds    int
	Completed bool
}

// Store appends and queries event records.
type Store struct {
	db     *gorm.DB
	logger *slog.Logger
}

// Open opens (creating if needed) the SQLite database at path and migrates
// the schema. ":memory:" gives a private in-memory database.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "transcript")

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("transcript: open: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.New(gormLogAdapter{logger: logger}, gormlogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			IgnoreRecordNotFoundError: true,
			LogLevel:                  gormlogger.Warn,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("transcript: open %s: %w", path, err)
	}

	// SQLite allows one writer; a single connection also keeps ":memory:"
	// databases shared between calls.
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("transcript: open: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&EventRecord{}); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("transcript: migrate: %w", err)
	}
	return &Store{db: db, logger: logger}, nil
}

// Append stores ev for sessionID.
func (s *Store) Append(ctx context.Context, sessionID string, ev orchestrator.Event) error {
	rec := EventRecord{
		SessionID: sessionID,
		Kind:      ev.Kind.String(),
		Source:    ev.Source,
		Text:      ev.Text,
		Round:     ev.Round,
		Final:     ev.Final,
	}
	if ev.Request != nil {
		rec.RequestID = ev.Request.ID
	}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("transcript: append: %w", err)
	}
	return nil
}

// Observe is an orchestrator.Observer. Records are written even when the
// session is being cancelled; failures are logged, not returned.
func (s *Store) Observe(ctx context.Context, sessionID string, ev orchestrator.Event) {
	if err := s.Append(context.WithoutCancel(ctx), sessionID, ev); err != nil {
		s.logger.Warn("event not recorded", "session", sessionID, "kind", ev.Kind, "error", err)
	}
}

// Events returns a session's records in the order they were written.
func (s *Store) Events(ctx context.Context, sessionID string) ([]EventRecord, error) {
	var recs []EventRecord
	err := s.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("id").
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("transcript: events: %w", err)
	}
	return recs, nil
}

// Sessions summarises every recorded session, oldest first.
func (s *Store) Sessions(ctx context.Context) ([]SessionSummary, error) {
	var rows []struct {
		SessionID string
		Events    int
		Rounds    int
		Finals    int
	}
	err := s.db.WithContext(ctx).
		Model(&EventRecord{}).
		Select("session_id, count(*) AS events, max(round) AS rounds, sum(CASE WHEN final THEN 1 ELSE 0 END) AS finals").
		Group("session_id").
		Order("min(id)").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("transcript: sessions: %w", err)
	}

	out := make([]SessionSummary, 0, len(rows))
	for _, r := range rows {
		out = append(out, SessionSummary{
			SessionID: r.SessionID,
			Events:    r.Events,
			Rounds:    r.Rounds,
			Completed: r.Finals > 0,
		})
	}
	return out, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("transcript: close: %w", err)
	}
	return sqlDB.Close()
}

// gormLogAdapter routes gorm's logger through slog.
type gormLogAdapter struct {
	logger *slog.Logger
}

func (g gormLogAdapter) Printf(format string, args ...any) {
	g.logger.Info(fmt.Sprintf(format, args...))
}
