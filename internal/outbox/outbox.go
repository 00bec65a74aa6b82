// Package outbox buffers mutations that could not reach the store, for
// later replay by the reconciler. Delivery is at-least-once: every mutation
// routed through the outbox must be idempotent or carry a natural dedup key.
package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// Mutation kinds understood by the reconciler.
const (
	KindBatch      = "batch"
	KindCreateSite = "create_site"
)

// Entry statuses.
const (
	StatusPending = "pending"
	StatusApplied = "applied"
	StatusFailed  = "failed"
)

// ErrEntryNotFound indicates the referenced outbox entry does not exist.
var ErrEntryNotFound = errors.New("outbox entry not found")

// Mutation describes a deferred change: which document it targets, what
// kind of replay it needs, and the kind-specific payload.
type Mutation struct {
	Kind        string          `json:"kind"`
	DocumentKey string          `json:"document_key"`
	Payload     json.RawMessage `json:"payload"`
}

// Entry is a mutation with its local queue bookkeeping.
type Entry struct {
	ID        string    `json:"id"`
	Mutation  Mutation  `json:"mutation"`
	Status    string    `json:"status"`
	Attempts  int       `json:"attempts"`
	LastError string    `json:"last_error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Queue is the durable client-side buffer. Implementations are owned by a
// single process; multi-process sharing is out of scope.
type Queue interface {
	// Enqueue appends a mutation with a locally generated id and pending
	// status.
	Enqueue(ctx context.Context, m Mutation) (Entry, error)

	// ListPending returns pending entries in enqueue order.
	ListPending(ctx context.Context) ([]Entry, error)

	// MarkApplied resolves an entry as successfully replayed.
	MarkApplied(ctx context.Context, id string) error

	// MarkFailed resolves an entry as structurally unreplayable. Failed
	// entries are never retried.
	MarkFailed(ctx context.Context, id, cause string) error

	// RecordAttempt notes a transient replay failure, leaving the entry
	// pending for the next drain cycle.
	RecordAttempt(ctx context.Context, id, cause string) error
}
