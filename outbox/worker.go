package outbox

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Handler processes a single message payload for a topic. Handlers must be
// idempotent: a message may be delivered more than once.
type Handler func(ctx context.Context, payload []byte) error

// Notifier receives messages for topics without a registered handler. The
// actual delivery channel (push, email, webhook) lives outside this service.
type Notifier interface {
	Notify(ctx context.Context, topic string, payload []byte) error
}

// LogNotifier is the default Notifier: it records the handoff and moves on.
type LogNotifier struct {
	Log *zap.Logger
}

func (n *LogNotifier) Notify(_ context.Context, topic string, payload []byte) error {
	n.Log.Info("outbox notification", zap.String("topic", topic), zap.ByteString("payload", payload))
	return nil
}

// Worker drains pending outbox rows with SKIP LOCKED so multiple instances
// can run side by side. Rows that keep failing go dead after maxAttempts.
type Worker struct {
	pool        *pgxpool.Pool
	log         *zap.Logger
	notifier    Notifier
	handlers    map[string]Handler
	interval    time.Duration
	maxAttempts int
}

// NewWorker builds a worker polling at the given interval.
func NewWorker(pool *pgxpool.Pool, log *zap.Logger, interval time.Duration, maxAttempts int) *Worker {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if maxAttempts <= 0 {
		maxAttempts = 10
	}
	return &Worker{
		pool:        pool,
		log:         log,
		notifier:    &LogNotifier{Log: log},
		handlers:    make(map[string]Handler),
		interval:    interval,
		maxAttempts: maxAttempts,
	}
}

// Handle registers a topic handler. Unregistered topics go to the Notifier.
func (w *Worker) Handle(topic string, h Handler) {
	w.handlers[topic] = h
}

// WithNotifier replaces the default log notifier.
func (w *Worker) WithNotifier(n Notifier) *Worker {
	w.notifier = n
	return w
}

// Run polls until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.processBatch(ctx); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				w.log.Warn("outbox batch failed", zap.Error(err))
			}
		}
	}
}

func (w *Worker) processBatch(ctx context.Context) error {
	tx, err := w.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `
		SELECT id, topic, payload, attempts
		FROM outbox
		WHERE status = 'pending'
		ORDER BY created_at
		FOR UPDATE SKIP LOCKED
		LIMIT 10
	`)
	if err != nil {
		return err
	}

	batch := make([]Message, 0, 10)
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.Topic, &m.Payload, &m.Attempts); err != nil {
			rows.Close()
			return err
		}
		batch = append(batch, m)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, m := range batch {
		if err := w.dispatch(ctx, m); err != nil {
			status := StatusPending
			if m.Attempts+1 >= w.maxAttempts {
				status = StatusDead
				w.log.Error("outbox message dead-lettered",
					zap.String("id", m.ID),
					zap.String("topic", m.Topic),
					zap.Int("attempts", m.Attempts+1),
					zap.Error(err))
			} else {
				w.log.Warn("outbox message failed",
					zap.String("id", m.ID),
					zap.String("topic", m.Topic),
					zap.Error(err))
			}
			if _, err := tx.Exec(ctx, `UPDATE outbox SET attempts = attempts + 1, status = $2, last_attempt = now() WHERE id = $1`, m.ID, status); err != nil {
				return err
			}
			continue
		}
		if _, err := tx.Exec(ctx, `UPDATE outbox SET status = 'processed', last_attempt = now() WHERE id = $1`, m.ID); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (w *Worker) dispatch(ctx context.Context, m Message) error {
	if h, ok := w.handlers[m.Topic]; ok {
		return h(ctx, m.Payload)
	}
	return w.notifier.Notify(ctx, m.Topic, m.Payload)
}
