// Package batch applies a sequence of independent per-record mutations to
// one collection document and commits the whole set exactly once.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rfpwatch/rfpwatch/internal/document"
	"github.com/rfpwatch/rfpwatch/internal/guard"
)

// DefaultMaxOperations bounds the size of a single batch.
const DefaultMaxOperations = 50

// ErrBatchTooLarge indicates the batch exceeds the configured operation
// limit. It is rejected before any store I/O happens.
var ErrBatchTooLarge = errors.New("batch too large")

// Per-operation failure codes reported in OperationResult.Error.
const (
	CodeRecordNotFound = "record_not_found"
	CodeUnknownAction  = "unknown_action"
	CodeCommitFailed   = "commit_failed"
)

// Operation is one logical mutation: apply action to the record with the
// given id, with an optional human-supplied reason.
type Operation struct {
	RecordID string `json:"record_id"`
	Action   string `json:"action"`
	Reason   string `json:"reason,omitempty"`
}

// OperationResult reports the outcome of a single operation. A batch always
// returns one result per operation, even on partial failure.
type OperationResult struct {
	RecordID string `json:"record_id"`
	Action   string `json:"action"`
	Success  bool   `json:"success"`
	Error    string `json:"error,omitempty"`
}

// Result is the outcome of a whole batch.
type Result struct {
	Results []OperationResult `json:"results"`
	// Committed reports whether a commit was issued. A batch where every
	// operation failed never commits and never bumps the version.
	Committed bool `json:"committed"`
	// CommittedVersion is the document version after the commit, empty when
	// nothing was committed.
	CommittedVersion string `json:"committed_version,omitempty"`
	// Attempts is the number of guard cycles used, observable for tests.
	Attempts int `json:"-"`
}

// ActionFunc is a pure field transition: given the current record and the
// operation, return the updated record. Actions must be idempotent
// absolute-state-set transitions so a replayed batch is harmless.
type ActionFunc[R document.Record] func(rec R, op Operation, now time.Time) (R, error)

// Config tunes a processor. Zero values select the defaults.
type Config struct {
	MaxOperations int
	Now           func() time.Time
	Logger        *slog.Logger
}

// Processor applies batches of operations to one record type, using a
// registry of named actions and a guard for the commit cycle.
type Processor[R document.Record] struct {
	guard   *guard.Guard[R]
	actions map[string]ActionFunc[R]
	maxOps  int
	now     func() time.Time
	logger  *slog.Logger
}

// New creates a processor with the given action registry.
func New[R document.Record](g *guard.Guard[R], actions map[string]ActionFunc[R], cfg Config) *Processor[R] {
	if cfg.MaxOperations <= 0 {
		cfg.MaxOperations = DefaultMaxOperations
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Processor[R]{
		guard:   g,
		actions: actions,
		maxOps:  cfg.MaxOperations,
		now:     cfg.Now,
		logger:  cfg.Logger,
	}
}

// Apply runs the batch against the document at key inside one guard cycle.
// Operations are applied in order against the live in-memory snapshot, so a
// later operation observes the effects of an earlier one. Unknown records
// and unknown actions fail individually without aborting their siblings.
// If no operation succeeds the batch does not commit. If the commit itself
// fails after the mutate phase, every provisional success is downgraded to
// commit_failed, since nothing was durably applied; the per-operation
// results are returned alongside the error so no outcome information is
// lost.
func (p *Processor[R]) Apply(ctx context.Context, key string, ops []Operation) (*Result, error) {
	if len(ops) > p.maxOps {
		return nil, fmt.Errorf("%w: %d operations (limit %d)", ErrBatchTooLarge, len(ops), p.maxOps)
	}
	if len(ops) == 0 {
		return &Result{Results: []OperationResult{}}, nil
	}

	var results []OperationResult
	outcome, err := p.guard.WithDocument(ctx, key, func(doc *document.Collection[R]) (bool, string, error) {
		// A conflict retry re-runs the whole batch against fresh state.
		results = results[:0]
		succeeded := 0

		for _, op := range ops {
			opRes := OperationResult{RecordID: op.RecordID, Action: op.Action}

			action, ok := p.actions[op.Action]
			if !ok {
				opRes.Error = CodeUnknownAction
				results = append(results, opRes)
				continue
			}

			idx, ok := doc.Find(op.RecordID)
			if !ok {
				opRes.Error = CodeRecordNotFound
				results = append(results, opRes)
				continue
			}

			updated, err := action(doc.Records[idx], op, p.now())
			if err != nil {
				opRes.Error = err.Error()
				results = append(results, opRes)
				continue
			}

			doc.Records[idx] = updated
			opRes.Success = true
			succeeded++
			results = append(results, opRes)
		}

		summary := fmt.Sprintf("apply %d/%d mutations to %s", succeeded, len(ops), key)
		return succeeded > 0, summary, nil
	})
	if err != nil {
		// The mutate phase may have run; report per-operation outcomes with
		// provisional successes downgraded.
		for i := range results {
			if results[i].Success {
				results[i].Success = false
				results[i].Error = CodeCommitFailed
			}
		}
		return &Result{Results: results}, err
	}

	res := &Result{
		Results:   results,
		Committed: outcome.Committed,
		Attempts:  outcome.Attempts,
	}
	if outcome.Committed {
		res.CommittedVersion = outcome.Version
		p.logger.Info("batch committed", "key", key, "operations", len(ops), "version", outcome.Version)
	}
	return res, nil
}
