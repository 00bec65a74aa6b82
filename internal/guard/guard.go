// Package guard implements the fetch → mutate → conditional-commit cycle
// with bounded retry on version conflicts. It is the only writer path to a
// collection document: batching all same-document mutations through one
// guard cycle is what makes the whole-blob CAS safe.
package guard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/rfpwatch/rfpwatch/internal/blobstore"
	"github.com/rfpwatch/rfpwatch/internal/document"
)

// DefaultMaxRetries is how many fresh cycles a conflicted commit earns
// before the guard gives up.
const DefaultMaxRetries = 3

// DefaultBackoffBase is the first retry delay; subsequent delays double.
const DefaultBackoffBase = 100 * time.Millisecond

// ErrConcurrencyExceeded indicates the retry budget was exhausted without a
// successful commit. Callers surface this as retryable-by-user; it must not
// silently drop the mutation.
var ErrConcurrencyExceeded = errors.New("concurrency retries exceeded")

// MutateFunc transforms the decoded collection in place. It returns whether
// the result should be committed and a short summary for the host's audit
// trail. The guard may invoke it more than once (once per conflict retry),
// so it must have no side effects beyond the collection itself.
type MutateFunc[R document.Record] func(doc *document.Collection[R]) (commit bool, summary string, err error)

// Result describes the outcome of a WithDocument cycle.
type Result struct {
	// Committed is false when the mutate function declined to commit.
	Committed bool
	// Version is the new version token after commit, or the fetched version
	// when nothing was committed.
	Version string
	// Attempts is the number of full fetch-mutate-commit cycles executed.
	Attempts int
}

// Config tunes a guard. Zero values select the defaults.
type Config struct {
	MaxRetries  int
	BackoffBase time.Duration
	Now         func() time.Time
	Logger      *slog.Logger
}

// Guard drives read-modify-write cycles for one record type.
type Guard[R document.Record] struct {
	store       blobstore.Store
	codec       document.Codec[R]
	maxRetries  int
	backoffBase time.Duration
	now         func() time.Time
	logger      *slog.Logger
}

// New creates a guard over the given store.
func New[R document.Record](store blobstore.Store, cfg Config) *Guard[R] {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = DefaultBackoffBase
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Guard[R]{
		store:       store,
		maxRetries:  cfg.MaxRetries,
		backoffBase: cfg.BackoffBase,
		now:         cfg.Now,
		logger:      cfg.Logger,
	}
}

// WithDocument runs one logical operation against the document at key:
// fetch, decode, mutate, re-encode, commit conditioned on the fetched
// version. On conflict the whole cycle repeats against the now-current
// state. A missing document on the first fetch becomes the bootstrap empty
// collection and commits unconditionally; a corrupt document is always an
// error. Only conflicts are retried — a commit that fails in transit is
// surfaced as-is, because the write may have landed and blind replay could
// apply it twice.
func (g *Guard[R]) WithDocument(ctx context.Context, key string, fn MutateFunc[R]) (*Result, error) {
	res := &Result{}

	for attempt := 0; ; attempt++ {
		res.Attempts = attempt + 1

		payload, version, err := g.store.Fetch(ctx, key)
		bootstrap := false
		var doc *document.Collection[R]
		switch {
		case err == nil:
			doc, err = g.codec.Decode(payload)
			if err != nil {
				return nil, fmt.Errorf("decoding %s: %w", key, err)
			}
		case errors.Is(err, blobstore.ErrNotFound):
			// Only the first fetch of a cycle may read a missing document as
			// the bootstrap empty collection. A document that was present on
			// an earlier attempt has been deleted underneath us; bootstrapping
			// here would resurrect it with an unconditional commit.
			if attempt > 0 {
				return nil, fmt.Errorf("fetching %s on retry: %w", key, err)
			}
			bootstrap = true
			doc = document.Empty[R]()
		default:
			return nil, fmt.Errorf("fetching %s: %w", key, err)
		}

		commit, summary, err := fn(doc)
		if err != nil {
			return nil, err
		}
		if !commit {
			res.Version = version
			return res, nil
		}

		// The caller may have abandoned the operation between fetch and
		// commit; never commit a result it no longer wants.
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		encoded, err := g.codec.Encode(doc, g.now())
		if err != nil {
			return nil, err
		}

		expected := version
		if bootstrap {
			expected = ""
		}

		newVersion, err := g.store.Commit(ctx, key, encoded, expected, summary)
		if err == nil {
			res.Committed = true
			res.Version = newVersion
			return res, nil
		}
		if !errors.Is(err, blobstore.ErrConflict) {
			return nil, fmt.Errorf("committing %s: %w", key, err)
		}

		if attempt >= g.maxRetries {
			return nil, fmt.Errorf("%w: %s after %d attempts", ErrConcurrencyExceeded, key, res.Attempts)
		}

		delay := g.backoffDelay(attempt)
		g.logger.Debug("commit conflict, retrying", "key", key, "attempt", res.Attempts, "backoff", delay)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
}

// backoffDelay returns an exponentially growing delay with full jitter.
func (g *Guard[R]) backoffDelay(attempt int) time.Duration {
	ceiling := g.backoffBase << attempt
	return time.Duration(rand.Int64N(int64(ceiling))) + time.Millisecond
}
