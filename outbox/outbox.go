package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Message represents a transactional outbox entry.
type Message struct {
	ID          string
	Topic       string
	Payload     []byte
	Status      string
	Attempts    int
	CreatedAt   time.Time
	LastAttempt *time.Time
}

const (
	StatusPending   = "pending"
	StatusProcessed = "processed"
	StatusDead      = "dead"
)

// Execer is satisfied by both pgx.Tx and pgxpool.Pool.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Writer enqueues outbox messages inside the caller's transaction so the
// handoff commits atomically with the state change that caused it.
type Writer struct{}

func NewWriter() *Writer {
	return &Writer{}
}

// Enqueue inserts a pending message in the given transaction.
func (w *Writer) Enqueue(ctx context.Context, tx pgx.Tx, topic string, payload map[string]any) error {
	return enqueue(ctx, tx, topic, payload)
}

// DirectWriter enqueues outbox messages outside any transaction, for callers
// that run after a commit (e.g. the side-effect dispatcher's retry path).
type DirectWriter struct {
	db Execer
}

func NewDirectWriter(db Execer) *DirectWriter {
	return &DirectWriter{db: db}
}

// Enqueue inserts a pending message using the writer's connection.
func (w *DirectWriter) Enqueue(ctx context.Context, topic string, payload map[string]any) error {
	return enqueue(ctx, w.db, topic, payload)
}

func enqueue(ctx context.Context, db Execer, topic string, payload map[string]any) error {
	if topic == "" {
		return fmt.Errorf("outbox: empty topic")
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("outbox: marshal payload: %w", err)
	}
	if _, err := db.Exec(ctx, `INSERT INTO outbox (topic, payload) VALUES ($1, $2::jsonb)`, topic, body); err != nil {
		return fmt.Errorf("outbox: enqueue %s: %w", topic, err)
	}
	return nil
}
