// Package reconcile drains the outbox against the real store. It runs
// independently of the live request path, typically on a schedule.
package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/rfpwatch/rfpwatch/internal/batch"
	"github.com/rfpwatch/rfpwatch/internal/blobstore"
	"github.com/rfpwatch/rfpwatch/internal/document"
	"github.com/rfpwatch/rfpwatch/internal/domain/site"
	"github.com/rfpwatch/rfpwatch/internal/guard"
	"github.com/rfpwatch/rfpwatch/internal/outbox"
)

// DefaultMaxBatch bounds how many outbox entries one drain cycle replays.
const DefaultMaxBatch = 100

// Stats summarizes one drain cycle.
type Stats struct {
	Applied      int `json:"applied"`
	Failed       int `json:"failed"`
	StillPending int `json:"still_pending"`
}

// BatchApplier replays a mutation batch against one collection document.
type BatchApplier interface {
	Apply(ctx context.Context, ops []batch.Operation) (*batch.Result, error)
}

// SiteCreator replays a deferred site creation.
type SiteCreator interface {
	CreateDirect(ctx context.Context, req site.CreateRequest) (*site.SiteConfig, error)
}

// Config wires a reconciler.
type Config struct {
	Queue outbox.Queue
	// Appliers maps a document key to the batch applier for that document.
	Appliers map[string]BatchApplier
	Sites    SiteCreator
	MaxBatch int
	// KeyFilter restricts a drain to entries targeting one document.
	// Empty drains everything.
	KeyFilter string
	Logger    *slog.Logger
}

// Reconciler replays pending outbox entries through the same mutation
// paths the live system uses. Replay is at-least-once; the mutations
// themselves are idempotent, so a crash between apply and mark-applied is
// safe.
type Reconciler struct {
	queue     outbox.Queue
	appliers  map[string]BatchApplier
	sites     SiteCreator
	maxBatch  int
	keyFilter string
	logger    *slog.Logger
}

// New creates a reconciler.
func New(cfg Config) *Reconciler {
	if cfg.MaxBatch <= 0 {
		cfg.MaxBatch = DefaultMaxBatch
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Reconciler{
		queue:     cfg.Queue,
		appliers:  cfg.Appliers,
		sites:     cfg.Sites,
		maxBatch:  cfg.MaxBatch,
		keyFilter: cfg.KeyFilter,
		logger:    cfg.Logger,
	}
}

// Drain replays pending entries in order. Structural failures (validation,
// duplicate create, batches with nothing applicable) are marked failed and
// never retried, so a poisoned entry cannot wedge the queue. Transient
// failures (store unreachable, retry budget exhausted, corrupt document
// awaiting operator repair) leave the entry pending for the next cycle.
func (r *Reconciler) Drain(ctx context.Context) (Stats, error) {
	var stats Stats

	pending, err := r.queue.ListPending(ctx)
	if err != nil {
		return stats, fmt.Errorf("listing pending entries: %w", err)
	}

	processed := 0
	for i, entry := range pending {
		if r.keyFilter != "" && entry.Mutation.DocumentKey != r.keyFilter {
			stats.StillPending++
			continue
		}
		if processed >= r.maxBatch {
			stats.StillPending++
			continue
		}
		if err := ctx.Err(); err != nil {
			stats.StillPending += len(pending) - i
			return stats, err
		}
		processed++

		outcome, cause := r.replay(ctx, entry)
		switch outcome {
		case replayApplied:
			if err := r.queue.MarkApplied(ctx, entry.ID); err != nil {
				return stats, fmt.Errorf("marking entry %s applied: %w", entry.ID, err)
			}
			stats.Applied++
		case replayFailed:
			r.logger.Warn("outbox entry failed structurally", "entry", entry.ID, "kind", entry.Mutation.Kind, "cause", cause)
			if err := r.queue.MarkFailed(ctx, entry.ID, cause); err != nil {
				return stats, fmt.Errorf("marking entry %s failed: %w", entry.ID, err)
			}
			stats.Failed++
		case replayRetry:
			r.logger.Info("outbox entry deferred", "entry", entry.ID, "kind", entry.Mutation.Kind, "cause", cause)
			if err := r.queue.RecordAttempt(ctx, entry.ID, cause); err != nil {
				return stats, fmt.Errorf("recording attempt on entry %s: %w", entry.ID, err)
			}
			stats.StillPending++
		}
	}

	r.logger.Info("drain complete", "applied", stats.Applied, "failed", stats.Failed, "still_pending", stats.StillPending)
	return stats, nil
}

type replayOutcome int

const (
	replayApplied replayOutcome = iota
	replayFailed
	replayRetry
)

func (r *Reconciler) replay(ctx context.Context, entry outbox.Entry) (replayOutcome, string) {
	switch entry.Mutation.Kind {
	case outbox.KindBatch:
		return r.replayBatch(ctx, entry)
	case outbox.KindCreateSite:
		return r.replayCreateSite(ctx, entry)
	default:
		return replayFailed, fmt.Sprintf("unknown mutation kind %q", entry.Mutation.Kind)
	}
}

func (r *Reconciler) replayBatch(ctx context.Context, entry outbox.Entry) (replayOutcome, string) {
	applier, ok := r.appliers[entry.Mutation.DocumentKey]
	if !ok {
		return replayFailed, fmt.Sprintf("no applier for document %q", entry.Mutation.DocumentKey)
	}

	var ops []batch.Operation
	if err := json.Unmarshal(entry.Mutation.Payload, &ops); err != nil {
		return replayFailed, fmt.Sprintf("undecodable batch payload: %v", err)
	}

	res, err := applier.Apply(ctx, ops)
	if err != nil {
		if isTransient(err) {
			return replayRetry, err.Error()
		}
		return replayFailed, err.Error()
	}
	if res.Committed || len(ops) == 0 {
		return replayApplied, ""
	}

	// Nothing in the batch was applicable: the records are gone or the
	// actions are unknown. Retrying cannot change that.
	return replayFailed, summarizeFailures(res)
}

func (r *Reconciler) replayCreateSite(ctx context.Context, entry outbox.Entry) (replayOutcome, string) {
	var req site.CreateRequest
	if err := json.Unmarshal(entry.Mutation.Payload, &req); err != nil {
		return replayFailed, fmt.Sprintf("undecodable create payload: %v", err)
	}

	_, err := r.sites.CreateDirect(ctx, req)
	if err == nil {
		return replayApplied, ""
	}
	if isTransient(err) {
		return replayRetry, err.Error()
	}
	return replayFailed, err.Error()
}

// isTransient classifies replay failures. A corrupt document counts as
// transient: the entry itself may be fine and dropping it because the
// store needs operator repair would lose user intent.
func isTransient(err error) bool {
	return errors.Is(err, blobstore.ErrUnavailable) ||
		errors.Is(err, guard.ErrConcurrencyExceeded) ||
		errors.Is(err, document.ErrMalformed) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled)
}

func summarizeFailures(res *batch.Result) string {
	var parts []string
	for _, op := range res.Results {
		if !op.Success {
			parts = append(parts, fmt.Sprintf("%s/%s: %s", op.RecordID, op.Action, op.Error))
		}
	}
	return "no operation applied: " + strings.Join(parts, "; ")
}
