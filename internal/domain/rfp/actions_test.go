package rfp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rfpwatch/rfpwatch/internal/batch"
)

var actionNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestIgnoreSetsStatusAndClearsFlag(t *testing.T) {
	flaggedAt := actionNow.Add(-time.Hour)
	rec := RFP{ID: "rfp-1", ManualReviewStatus: ReviewFlagged, FlaggedAt: &flaggedAt, FlagReason: "check this"}

	got, err := applyIgnore(rec, batch.Operation{Reason: "out of scope"}, actionNow)
	require.NoError(t, err)
	require.Equal(t, ReviewIgnored, got.ManualReviewStatus)
	require.Equal(t, "out of scope", got.IgnoredReason)
	require.Equal(t, actionNow, *got.IgnoredAt)
	require.Nil(t, got.FlaggedAt)
	require.Empty(t, got.FlagReason)
}

func TestIgnoreIsIdempotent(t *testing.T) {
	first, err := applyIgnore(RFP{ID: "rfp-1"}, batch.Operation{Reason: "dup"}, actionNow)
	require.NoError(t, err)

	// Replaying later must not move the original timestamp.
	second, err := applyIgnore(first, batch.Operation{Reason: "dup"}, actionNow.Add(time.Hour))
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestUnignoreClearsFieldsRegardlessOfStatus(t *testing.T) {
	ts := actionNow
	rec := RFP{ID: "rfp-1", ManualReviewStatus: ReviewFlagged, IgnoredAt: &ts, IgnoredReason: "stale"}

	got, err := applyUnignore(rec, batch.Operation{}, actionNow)
	require.NoError(t, err)
	// A flagged record stays flagged; only the ignore residue is cleared.
	require.Equal(t, ReviewFlagged, got.ManualReviewStatus)
	require.Nil(t, got.IgnoredAt)
	require.Empty(t, got.IgnoredReason)

	rec = RFP{ID: "rfp-2", ManualReviewStatus: ReviewIgnored, IgnoredAt: &ts}
	got, err = applyUnignore(rec, batch.Operation{}, actionNow)
	require.NoError(t, err)
	require.Equal(t, ReviewNone, got.ManualReviewStatus)
	require.Nil(t, got.IgnoredAt)
}

func TestStarAndUnstar(t *testing.T) {
	got, err := applyStar(RFP{ID: "rfp-1"}, batch.Operation{}, actionNow)
	require.NoError(t, err)
	require.True(t, got.Starred)
	require.Equal(t, actionNow, *got.StarredAt)

	replayed, err := applyStar(got, batch.Operation{}, actionNow.Add(time.Hour))
	require.NoError(t, err)
	require.Equal(t, got, replayed)

	cleared, err := applyUnstar(replayed, batch.Operation{}, actionNow)
	require.NoError(t, err)
	require.False(t, cleared.Starred)
	require.Nil(t, cleared.StarredAt)

	again, err := applyUnstar(cleared, batch.Operation{}, actionNow)
	require.NoError(t, err)
	require.Equal(t, cleared, again)
}

func TestFlagSupersedesIgnore(t *testing.T) {
	ts := actionNow.Add(-time.Hour)
	rec := RFP{ID: "rfp-1", ManualReviewStatus: ReviewIgnored, IgnoredAt: &ts, IgnoredReason: "old"}

	got, err := applyFlag(rec, batch.Operation{Reason: "surveillance vendor"}, actionNow)
	require.NoError(t, err)
	require.Equal(t, ReviewFlagged, got.ManualReviewStatus)
	require.Equal(t, "surveillance vendor", got.FlagReason)
	require.Equal(t, actionNow, *got.FlaggedAt)
	require.Nil(t, got.IgnoredAt)
	require.Empty(t, got.IgnoredReason)
}

func TestUnflagOnlyDemotesFlagged(t *testing.T) {
	ts := actionNow
	rec := RFP{ID: "rfp-1", ManualReviewStatus: ReviewIgnored, FlaggedAt: &ts, FlagReason: "stale"}

	got, err := applyUnflag(rec, batch.Operation{}, actionNow)
	require.NoError(t, err)
	require.Equal(t, ReviewIgnored, got.ManualReviewStatus)
	require.Nil(t, got.FlaggedAt)
	require.Empty(t, got.FlagReason)
}

func TestActionsRegistryComplete(t *testing.T) {
	registry := Actions()
	for _, name := range []string{ActionIgnore, ActionUnignore, ActionStar, ActionUnstar, ActionFlag, ActionUnflag} {
		require.Contains(t, registry, name)
	}
	require.Len(t, registry, 6)
}
