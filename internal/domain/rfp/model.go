// Package rfp holds the RFP record model, its review actions, and the
// service exposing the RFP collection to the UI boundary.
package rfp

import "time"

// DocumentKey is the default store path of the RFP collection document.
const DocumentKey = "data/rfps.json"

// ReviewStatus is the manual review lifecycle marker. The zero value means
// no review decision has been made.
type ReviewStatus string

const (
	ReviewNone    ReviewStatus = ""
	ReviewIgnored ReviewStatus = "ignored"
	ReviewFlagged ReviewStatus = "flagged"
)

// ChangeRecord is one entry in a record's audit trail of field changes.
type ChangeRecord struct {
	Timestamp time.Time `json:"timestamp"`
	Field     string    `json:"field"`
	OldValue  string    `json:"old_value,omitempty"`
	NewValue  string    `json:"new_value,omitempty"`
}

// RFP is a procurement opportunity scraped from a source site. Dates from
// the source are kept as ISO-8601 strings because upstream formats vary;
// timestamps this system writes itself are time.Time.
type RFP struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	URL        string `json:"url"`
	SourceSite string `json:"source_site"`

	PostedDate  string `json:"posted_date,omitempty"`
	ClosingDate string `json:"closing_date,omitempty"`
	Description string `json:"description,omitempty"`

	ExtractedFields map[string]any `json:"extracted_fields,omitempty"`
	Categories      []string       `json:"categories,omitempty"`

	DetectedAt *time.Time `json:"detected_at,omitempty"`
	// ContentHash fingerprints the source content. It is computed by the
	// scraper to detect re-scrapes and treated as opaque here.
	ContentHash   string         `json:"content_hash,omitempty"`
	ChangeHistory []ChangeRecord `json:"change_history,omitempty"`

	ManualReviewStatus ReviewStatus `json:"manual_review_status,omitempty"`
	IgnoredAt          *time.Time   `json:"ignored_at,omitempty"`
	IgnoredReason      string       `json:"ignored_reason,omitempty"`
	FlaggedAt          *time.Time   `json:"flagged_at,omitempty"`
	FlagReason         string       `json:"flag_reason,omitempty"`

	Starred   bool       `json:"starred,omitempty"`
	StarredAt *time.Time `json:"starred_at,omitempty"`

	Notes string `json:"notes,omitempty"`
}

// RecordID implements document.Record.
func (r RFP) RecordID() string { return r.ID }

// Tombstoned implements document.Record. RFPs are never tombstoned;
// unwanted ones are ignored, which keeps them live but reviewed.
func (r RFP) Tombstoned() bool { return false }

// UpdateField sets an extracted field and appends an audit entry when the
// value actually changed. Returns whether anything changed.
func (r *RFP) UpdateField(field string, value any, now time.Time) bool {
	old, had := r.ExtractedFields[field]
	if had && old == value {
		return false
	}
	if r.ExtractedFields == nil {
		r.ExtractedFields = map[string]any{}
	}
	r.ExtractedFields[field] = value

	change := ChangeRecord{Timestamp: now.UTC(), Field: field, NewValue: stringify(value)}
	if had {
		change.OldValue = stringify(old)
	}
	r.ChangeHistory = append(r.ChangeHistory, change)
	return true
}

// IsClosingSoon reports whether the closing date falls within the next
// threshold days. Unparseable or absent dates are never "soon".
func (r RFP) IsClosingSoon(now time.Time, threshold int) bool {
	if r.ClosingDate == "" {
		return false
	}
	closing, err := parseISODate(r.ClosingDate)
	if err != nil {
		return false
	}
	days := int(closing.Sub(now).Hours() / 24)
	return days >= 0 && days <= threshold
}

// highPriorityCategories mark likely surveillance procurement.
var highPriorityCategories = map[string]bool{
	"surveillance":       true,
	"security":           true,
	"biometric":          true,
	"facial_recognition": true,
	"data_collection":    true,
	"intelligence":       true,
	"monitoring":         true,
}

// IsHighPriority reports whether any category marks this RFP for priority
// review.
func (r RFP) IsHighPriority() bool {
	for _, c := range r.Categories {
		if highPriorityCategories[c] {
			return true
		}
	}
	return false
}
