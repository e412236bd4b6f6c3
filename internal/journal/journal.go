// Package journal records every dispatched engine message in sqlite so a
// session can be inspected or replayed after the fact.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/heimdex/timeline-agent/internal/enginesync"
)

type Entry struct {
	ID          int64           `json:"id"`
	RunID       string          `json:"run_id"`
	Seq         uint64          `json:"seq"`
	QueueName   string          `json:"queue_name"`
	Action      string          `json:"action"`
	Data        json.RawMessage `json:"data"`
	PublishedAt time.Time       `json:"published_at"`
}

// Sink is an enginesync.Sink writing to the engine_journal table. Sequence
// numbers restart with every process, so entries are keyed by run id.
type Sink struct {
	db    *sql.DB
	runID string
}

func NewSink(db *sql.DB) *Sink {
	return &Sink{db: db, runID: uuid.NewString()}
}

func (s *Sink) Name() string {
	return "journal"
}

func (s *Sink) RunID() string {
	return s.runID
}

func (s *Sink) Deliver(ctx context.Context, msg enginesync.Message) error {
	data, err := json.Marshal(msg.Data)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO engine_journal (run_id, seq, queue_name, action, data, published_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, s.runID, msg.Seq, msg.QueueName, string(msg.Action()), string(data), msg.PublishedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert journal entry: %w", err)
	}
	return nil
}

// List returns entries with an id greater than after, oldest first.
func (s *Sink) List(ctx context.Context, after int64, limit int) ([]Entry, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, seq, queue_name, action, data, published_at
		FROM engine_journal WHERE id > ? ORDER BY id LIMIT ?
	`, after, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var data, publishedAt string
		if err := rows.Scan(&e.ID, &e.RunID, &e.Seq, &e.QueueName, &e.Action, &data, &publishedAt); err != nil {
			return nil, err
		}
		e.Data = json.RawMessage(data)
		e.PublishedAt, _ = time.Parse(time.RFC3339Nano, publishedAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *Sink) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM engine_journal").Scan(&n)
	return n, err
}
