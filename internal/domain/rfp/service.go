package rfp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rfpwatch/rfpwatch/internal/batch"
	"github.com/rfpwatch/rfpwatch/internal/blobstore"
	"github.com/rfpwatch/rfpwatch/internal/document"
	"github.com/rfpwatch/rfpwatch/internal/outbox"
)

// MutateResult is the outcome of a Mutate call. When the store was
// unreachable the batch is queued instead of applied, and QueueID
// identifies the outbox entry that will carry it.
type MutateResult struct {
	Batch   *batch.Result `json:"batch,omitempty"`
	Queued  bool          `json:"queued"`
	QueueID string        `json:"queue_id,omitempty"`
}

// Service exposes the RFP collection: read the whole document, or apply a
// batch of review mutations. Mutations fall back to the outbox when the
// store cannot be reached.
type Service struct {
	store     blobstore.Store
	codec     document.Codec[RFP]
	processor *batch.Processor[RFP]
	queue     outbox.Queue
	key       string
	logger    *slog.Logger
}

// NewService creates the RFP service. queue may be nil, in which case an
// unreachable store is a hard error instead of a deferred mutation.
func NewService(store blobstore.Store, processor *batch.Processor[RFP], queue outbox.Queue, key string, logger *slog.Logger) *Service {
	if key == "" {
		key = DocumentKey
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:     store,
		processor: processor,
		queue:     queue,
		key:       key,
		logger:    logger,
	}
}

// Read fetches and decodes the RFP collection. A missing document reads as
// the empty collection; a corrupt one is an error.
func (s *Service) Read(ctx context.Context) (*document.Collection[RFP], error) {
	payload, _, err := s.store.Fetch(ctx, s.key)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return document.Empty[RFP](), nil
		}
		return nil, fmt.Errorf("reading %s: %w", s.key, err)
	}
	doc, err := s.codec.Decode(payload)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", s.key, err)
	}
	return doc, nil
}

// Mutate applies a batch of review operations. When the store is
// unreachable the batch is enqueued for the reconciler; every other
// failure, including an exhausted retry budget, is surfaced to the caller.
func (s *Service) Mutate(ctx context.Context, ops []batch.Operation) (*MutateResult, error) {
	res, err := s.processor.Apply(ctx, s.key, ops)
	if err == nil {
		return &MutateResult{Batch: res}, nil
	}
	if s.queue == nil || !errors.Is(err, blobstore.ErrUnavailable) {
		return &MutateResult{Batch: res}, err
	}

	payload, merr := json.Marshal(ops)
	if merr != nil {
		return nil, fmt.Errorf("encoding batch for outbox: %w", merr)
	}
	entry, qerr := s.queue.Enqueue(ctx, outbox.Mutation{
		Kind:        outbox.KindBatch,
		DocumentKey: s.key,
		Payload:     payload,
	})
	if qerr != nil {
		return nil, fmt.Errorf("store unreachable and enqueue failed: %w", qerr)
	}

	s.logger.Warn("store unreachable, batch queued", "key", s.key, "entry", entry.ID, "operations", len(ops))
	return &MutateResult{Queued: true, QueueID: entry.ID}, nil
}

// Apply runs a batch directly with no outbox fallback. The reconciler uses
// this to drain queued batches without re-enqueueing them.
func (s *Service) Apply(ctx context.Context, ops []batch.Operation) (*batch.Result, error) {
	return s.processor.Apply(ctx, s.key, ops)
}
