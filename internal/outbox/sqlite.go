package outbox

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLiteQueue is the durable Queue used in production deployments.
type SQLiteQueue struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the outbox database at path.
// Use ":memory:" for a throwaway queue.
func OpenSQLite(path string) (*SQLiteQueue, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open outbox database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	schema := `
CREATE TABLE IF NOT EXISTS outbox (
    id TEXT PRIMARY KEY,
    kind TEXT NOT NULL,
    document_key TEXT NOT NULL,
    payload TEXT NOT NULL,
    status TEXT NOT NULL DEFAULT 'pending' CHECK(status IN ('pending', 'applied', 'failed')),
    attempts INTEGER NOT NULL DEFAULT 0,
    last_error TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP NOT NULL,
    resolved_at TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_outbox_status ON outbox(status);
`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create outbox schema: %w", err)
	}

	return &SQLiteQueue{db: db}, nil
}

// Close releases the underlying database handle.
func (q *SQLiteQueue) Close() error {
	return q.db.Close()
}

// Enqueue implements Queue.
func (q *SQLiteQueue) Enqueue(ctx context.Context, m Mutation) (Entry, error) {
	entry := Entry{
		ID:        uuid.NewString(),
		Mutation:  m,
		Status:    StatusPending,
		CreatedAt: time.Now().UTC(),
	}

	_, err := q.db.ExecContext(ctx,
		`INSERT INTO outbox (id, kind, document_key, payload, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		entry.ID, m.Kind, m.DocumentKey, string(m.Payload), entry.Status, entry.CreatedAt,
	)
	if err != nil {
		return Entry{}, fmt.Errorf("failed to enqueue mutation: %w", err)
	}
	return entry, nil
}

// ListPending implements Queue.
func (q *SQLiteQueue) ListPending(ctx context.Context) ([]Entry, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT id, kind, document_key, payload, status, attempts, last_error, created_at
		 FROM outbox WHERE status = ? ORDER BY created_at, id`,
		StatusPending,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var payload string
		if err := rows.Scan(&e.ID, &e.Mutation.Kind, &e.Mutation.DocumentKey, &payload,
			&e.Status, &e.Attempts, &e.LastError, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan outbox entry: %w", err)
		}
		e.Mutation.Payload = []byte(payload)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// MarkApplied implements Queue.
func (q *SQLiteQueue) MarkApplied(ctx context.Context, id string) error {
	return q.resolve(ctx, id, StatusApplied, "")
}

// MarkFailed implements Queue.
func (q *SQLiteQueue) MarkFailed(ctx context.Context, id, cause string) error {
	return q.resolve(ctx, id, StatusFailed, cause)
}

// RecordAttempt implements Queue.
func (q *SQLiteQueue) RecordAttempt(ctx context.Context, id, cause string) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE outbox SET attempts = attempts + 1, last_error = ? WHERE id = ? AND status = ?`,
		cause, id, StatusPending,
	)
	if err != nil {
		return fmt.Errorf("failed to record attempt: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to record attempt: %w", err)
	}
	if affected == 0 {
		return ErrEntryNotFound
	}
	return nil
}

func (q *SQLiteQueue) resolve(ctx context.Context, id, status, cause string) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE outbox SET status = ?, last_error = ?, resolved_at = ? WHERE id = ? AND status = ?`,
		status, cause, time.Now().UTC(), id, StatusPending,
	)
	if err != nil {
		return fmt.Errorf("failed to resolve outbox entry: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to resolve outbox entry: %w", err)
	}
	if affected == 0 {
		return ErrEntryNotFound
	}
	return nil
}
