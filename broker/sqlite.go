package broker

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/johntango/coursepipeline/pipeline/envelope"
)

// Message lifecycle in the messages table. A leased message whose consumer
// crashed is reset to pending on the next Open, which is where the
// at-least-once redelivery guarantee comes from.
const (
	statusPending = "pending"
	statusLeased  = "leased"
	statusDone    = "done"
	statusFailed  = "failed"
)

// pollInterval is the fallback wakeup for consumers when the in-process
// notification is missed (e.g. a producer in another process).
const pollInterval = 250 * time.Millisecond

// SQLiteBroker is a durable Broker backed by a single SQLite database.
type SQLiteBroker struct {
	db   *sql.DB
	path string

	mu     sync.Mutex
	notify map[string]chan struct{}
	closed bool
}

// OpenSQLite initializes or connects to the broker database, applies the
// schema, and returns leased messages from a previous run to availability.
func OpenSQLite(path string) (*SQLiteBroker, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure broker directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open broker db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	b := &SQLiteBroker{
		db:     db,
		path:   path,
		notify: make(map[string]chan struct{}),
	}
	if err := b.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := b.reclaimLeases(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return b, nil
}

func (b *SQLiteBroker) migrate(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS messages (
    id             INTEGER PRIMARY KEY AUTOINCREMENT,
    queue          TEXT    NOT NULL,
    correlation_id TEXT    NOT NULL,
    title          TEXT    NOT NULL DEFAULT '',
    payload        TEXT    NOT NULL,
    round          INTEGER NOT NULL DEFAULT 0,
    status         TEXT    NOT NULL DEFAULT 'pending',
    failure        TEXT,
    enqueued_at    TEXT    NOT NULL,
    settled_at     TEXT
);
CREATE INDEX IF NOT EXISTS idx_messages_queue_status ON messages(queue, status, id);`
	if _, err := b.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply broker schema: %w", err)
	}
	return nil
}

// reclaimLeases returns messages leased by a crashed consumer to pending.
func (b *SQLiteBroker) reclaimLeases(ctx context.Context) error {
	if _, err := b.db.ExecContext(ctx,
		`UPDATE messages SET status = ? WHERE status = ?`,
		statusPending, statusLeased,
	); err != nil {
		return fmt.Errorf("reclaim leased messages: %w", err)
	}
	return nil
}

func (b *SQLiteBroker) notifier(queue string) chan struct{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch, ok := b.notify[queue]
	if !ok {
		ch = make(chan struct{}, 1)
		b.notify[queue] = ch
	}
	return ch
}

func (b *SQLiteBroker) isClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// Enqueue appends an envelope to the tail of the named queue. The write is
// durable once this returns.
func (b *SQLiteBroker) Enqueue(ctx context.Context, queue string, env envelope.Envelope) error {
	if b.isClosed() {
		return NewClosedError()
	}

	_, err := b.db.ExecContext(ctx,
		`INSERT INTO messages (queue, correlation_id, title, payload, round, status, enqueued_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		queue,
		env.CorrelationID,
		env.Title,
		env.Payload,
		env.Round,
		statusPending,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return NewBrokerError(fmt.Sprintf("enqueue to %q", queue), err)
	}

	ch := b.notifier(queue)
	select {
	case ch <- struct{}{}:
	default:
	}
	return nil
}

// Dequeue blocks until a pending message is available on the named queue,
// leases it, and returns it. FIFO by broker sequence.
func (b *SQLiteBroker) Dequeue(ctx context.Context, queue string) (*Message, error) {
	ch := b.notifier(queue)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		if b.isClosed() {
			return nil, NewClosedError()
		}

		msg, err := b.lease(ctx, queue)
		if err != nil {
			return nil, err
		}
		if msg != nil {
			return msg, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ch:
		case <-ticker.C:
		}
	}
}

// lease takes the oldest pending message on the queue, or nil if empty.
func (b *SQLiteBroker) lease(ctx context.Context, queue string) (*Message, error) {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, NewBrokerError("begin lease", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx,
		`SELECT id, correlation_id, title, payload, round, enqueued_at
         FROM messages WHERE queue = ? AND status = ? ORDER BY id LIMIT 1`,
		queue, statusPending,
	)

	var (
		msg        Message
		enqueuedAt string
	)
	msg.Queue = queue
	err = row.Scan(&msg.ID, &msg.Envelope.CorrelationID, &msg.Envelope.Title,
		&msg.Envelope.Payload, &msg.Envelope.Round, &enqueuedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, NewBrokerError("scan message", err)
	}
	if t, parseErr := time.Parse(time.RFC3339Nano, enqueuedAt); parseErr == nil {
		msg.EnqueuedAt = t
		msg.Envelope.CreatedAt = t
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE messages SET status = ? WHERE id = ?`, statusLeased, msg.ID,
	); err != nil {
		return nil, NewBrokerError("lease message", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, NewBrokerError("commit lease", err)
	}
	return &msg, nil
}

// Complete marks a delivered message as consumed.
func (b *SQLiteBroker) Complete(ctx context.Context, msg *Message) error {
	return b.settle(ctx, msg, statusDone, "")
}

// Fail marks a delivered message as failed with a reason.
func (b *SQLiteBroker) Fail(ctx context.Context, msg *Message, reason string) error {
	return b.settle(ctx, msg, statusFailed, reason)
}

func (b *SQLiteBroker) settle(ctx context.Context, msg *Message, status, failure string) error {
	if msg == nil {
		return NewBrokerError("settle nil message", nil)
	}
	var failureVal any
	if failure != "" {
		failureVal = failure
	}
	_, err := b.db.ExecContext(ctx,
		`UPDATE messages SET status = ?, failure = ?, settled_at = ? WHERE id = ? AND status = ?`,
		status, failureVal, time.Now().UTC().Format(time.RFC3339Nano), msg.ID, statusLeased,
	)
	if err != nil {
		return NewBrokerError(fmt.Sprintf("settle message %d", msg.ID), err)
	}
	return nil
}

// Depth returns the number of pending messages on the named queue.
func (b *SQLiteBroker) Depth(ctx context.Context, queue string) (int, error) {
	var depth int
	err := b.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM messages WHERE queue = ? AND status = ?`,
		queue, statusPending,
	).Scan(&depth)
	if err != nil {
		return 0, NewBrokerError(fmt.Sprintf("depth of %q", queue), err)
	}
	return depth, nil
}

// Close closes the underlying database and wakes blocked consumers.
func (b *SQLiteBroker) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	for _, ch := range b.notify {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	b.mu.Unlock()
	return b.db.Close()
}

var _ Broker = (*SQLiteBroker)(nil)
