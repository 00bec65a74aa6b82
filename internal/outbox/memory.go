package outbox

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryQueue is an in-memory Queue for tests.
type MemoryQueue struct {
	mu      sync.Mutex
	entries []Entry
}

// NewMemoryQueue creates an empty in-memory queue.
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{}
}

// Enqueue implements Queue.
func (q *MemoryQueue) Enqueue(ctx context.Context, m Mutation) (Entry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	entry := Entry{
		ID:        uuid.NewString(),
		Mutation:  m,
		Status:    StatusPending,
		CreatedAt: time.Now().UTC(),
	}
	q.entries = append(q.entries, entry)
	return entry, nil
}

// ListPending implements Queue.
func (q *MemoryQueue) ListPending(ctx context.Context) ([]Entry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var pending []Entry
	for _, e := range q.entries {
		if e.Status == StatusPending {
			pending = append(pending, e)
		}
	}
	return pending, nil
}

// MarkApplied implements Queue.
func (q *MemoryQueue) MarkApplied(ctx context.Context, id string) error {
	return q.update(id, func(e *Entry) {
		e.Status = StatusApplied
	})
}

// MarkFailed implements Queue.
func (q *MemoryQueue) MarkFailed(ctx context.Context, id, cause string) error {
	return q.update(id, func(e *Entry) {
		e.Status = StatusFailed
		e.LastError = cause
	})
}

// RecordAttempt implements Queue.
func (q *MemoryQueue) RecordAttempt(ctx context.Context, id, cause string) error {
	return q.update(id, func(e *Entry) {
		e.Attempts++
		e.LastError = cause
	})
}

// All returns every entry regardless of status, for test assertions.
func (q *MemoryQueue) All() []Entry {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]Entry(nil), q.entries...)
}

func (q *MemoryQueue) update(id string, apply func(*Entry)) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i := range q.entries {
		if q.entries[i].ID == id {
			apply(&q.entries[i])
			return nil
		}
	}
	return ErrEntryNotFound
}
