package site

import (
	"time"

	"github.com/rfpwatch/rfpwatch/internal/batch"
)

// Lifecycle action names accepted in a mutation batch.
const (
	ActionDisable  = "disable"
	ActionActivate = "activate"
	ActionDelete   = "delete"
	ActionRestore  = "restore"
)

// Actions returns the site lifecycle registry. Like the RFP actions these
// are idempotent absolute-state-set transitions. Delete tombstones the
// record; it never removes it from the document.
func Actions() map[string]batch.ActionFunc[SiteConfig] {
	return map[string]batch.ActionFunc[SiteConfig]{
		ActionDisable:  applyDisable,
		ActionActivate: applyActivate,
		ActionDelete:   applyDelete,
		ActionRestore:  applyRestore,
	}
}

func applyDisable(rec SiteConfig, op batch.Operation, now time.Time) (SiteConfig, error) {
	rec.Status = StatusDisabled
	rec.DeletedAt = nil
	return rec, nil
}

func applyActivate(rec SiteConfig, op batch.Operation, now time.Time) (SiteConfig, error) {
	rec.Status = StatusActive
	rec.DeletedAt = nil
	return rec, nil
}

func applyDelete(rec SiteConfig, op batch.Operation, now time.Time) (SiteConfig, error) {
	if rec.Status == StatusDeleted {
		return rec, nil
	}
	ts := now.UTC()
	rec.Status = StatusDeleted
	rec.DeletedAt = &ts
	return rec, nil
}

func applyRestore(rec SiteConfig, op batch.Operation, now time.Time) (SiteConfig, error) {
	if rec.Status != StatusDeleted {
		return rec, nil
	}
	// Restored sites re-enter testing; they must prove themselves again
	// before the scraper trusts them.
	rec.Status = StatusTesting
	rec.DeletedAt = nil
	return rec, nil
}
