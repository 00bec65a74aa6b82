package rfp

import (
	"time"

	"github.com/rfpwatch/rfpwatch/internal/batch"
)

// Review action names accepted in a mutation batch.
const (
	ActionIgnore   = "ignore"
	ActionUnignore = "unignore"
	ActionStar     = "star"
	ActionUnstar   = "unstar"
	ActionFlag     = "flag"
	ActionUnflag   = "unflag"
)

// Actions returns the review action registry. Every action is an
// absolute-state-set: applying it when the record is already in the target
// state is a successful no-op, which makes batches safe to replay through
// the outbox. The "unset" actions clear their fields unconditionally rather
// than gating on the prior status.
func Actions() map[string]batch.ActionFunc[RFP] {
	return map[string]batch.ActionFunc[RFP]{
		ActionIgnore:   applyIgnore,
		ActionUnignore: applyUnignore,
		ActionStar:     applyStar,
		ActionUnstar:   applyUnstar,
		ActionFlag:     applyFlag,
		ActionUnflag:   applyUnflag,
	}
}

func applyIgnore(rec RFP, op batch.Operation, now time.Time) (RFP, error) {
	if rec.ManualReviewStatus == ReviewIgnored {
		return rec, nil
	}
	ts := now.UTC()
	rec.ManualReviewStatus = ReviewIgnored
	rec.IgnoredAt = &ts
	rec.IgnoredReason = op.Reason
	// The review status is single-valued: ignoring supersedes a flag.
	rec.FlaggedAt = nil
	rec.FlagReason = ""
	return rec, nil
}

func applyUnignore(rec RFP, op batch.Operation, now time.Time) (RFP, error) {
	if rec.ManualReviewStatus == ReviewIgnored {
		rec.ManualReviewStatus = ReviewNone
	}
	rec.IgnoredAt = nil
	rec.IgnoredReason = ""
	return rec, nil
}

func applyStar(rec RFP, op batch.Operation, now time.Time) (RFP, error) {
	if rec.Starred {
		return rec, nil
	}
	ts := now.UTC()
	rec.Starred = true
	rec.StarredAt = &ts
	return rec, nil
}

func applyUnstar(rec RFP, op batch.Operation, now time.Time) (RFP, error) {
	rec.Starred = false
	rec.StarredAt = nil
	return rec, nil
}

func applyFlag(rec RFP, op batch.Operation, now time.Time) (RFP, error) {
	if rec.ManualReviewStatus == ReviewFlagged {
		return rec, nil
	}
	ts := now.UTC()
	rec.ManualReviewStatus = ReviewFlagged
	rec.FlaggedAt = &ts
	rec.FlagReason = op.Reason
	rec.IgnoredAt = nil
	rec.IgnoredReason = ""
	return rec, nil
}

func applyUnflag(rec RFP, op batch.Operation, now time.Time) (RFP, error) {
	if rec.ManualReviewStatus == ReviewFlagged {
		rec.ManualReviewStatus = ReviewNone
	}
	rec.FlaggedAt = nil
	rec.FlagReason = ""
	return rec, nil
}
