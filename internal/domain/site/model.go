// Package site holds the scraper site-configuration model and the service
// that manages the site collection document.
package site

import "time"

// DocumentKey is the default store path of the site collection document.
const DocumentKey = "data/sites.json"

// Status is the operational state of a configured site.
type Status string

const (
	StatusTesting  Status = "testing"
	StatusActive   Status = "active"
	StatusError    Status = "error"
	StatusDisabled Status = "disabled"
	// StatusDeleted is the tombstone: the record stays in the document for
	// auditability but is excluded from the live count.
	StatusDeleted Status = "deleted"
)

// FieldMapping binds a user-friendly alias to a location on the site. The
// training value is the sample the user provided when the location was
// bound; confidence decays as extraction failures accumulate.
type FieldMapping struct {
	Alias         string `json:"alias"`
	Selector      string `json:"selector"`
	DataType      string `json:"data_type"`
	TrainingValue string `json:"training_value"`

	ConfidenceScore float64 `json:"confidence_score"`

	XPath             string   `json:"xpath,omitempty"`
	RegexPattern      string   `json:"regex_pattern,omitempty"`
	FallbackSelectors []string `json:"fallback_selectors,omitempty"`
	ExpectedFormat    string   `json:"expected_format,omitempty"`

	LastValidated    *time.Time `json:"last_validated,omitempty"`
	ValidationErrors []string   `json:"validation_errors,omitempty"`
}

// IsValid reports whether the mapping still looks usable.
func (m FieldMapping) IsValid() bool {
	return m.Selector != "" && m.ConfidenceScore > 0.5 && len(m.ValidationErrors) == 0
}

// AddValidationError records an extraction failure and decays confidence.
func (m *FieldMapping) AddValidationError(msg string) {
	m.ValidationErrors = append(m.ValidationErrors, msg)
	m.ConfidenceScore -= 0.2
	if m.ConfidenceScore < 0 {
		m.ConfidenceScore = 0
	}
}

// ClearValidationErrors resets failure state and restores some confidence.
func (m *FieldMapping) ClearValidationErrors(now time.Time) {
	m.ValidationErrors = nil
	m.ConfidenceScore += 0.3
	if m.ConfidenceScore > 1 {
		m.ConfidenceScore = 1
	}
	ts := now.UTC()
	m.LastValidated = &ts
}

// ScraperSettings is the scraper policy attached to a site. It is consumed
// by the external scraper and treated as opaque config here.
type ScraperSettings struct {
	DelayBetweenRequests float64 `json:"delay_between_requests"`
	TimeoutSeconds       int     `json:"timeout"`
	MaxRetries           int     `json:"max_retries"`
	RespectRobotsTxt     bool    `json:"respect_robots_txt"`
}

// DefaultScraperSettings is the policy applied to newly created sites.
func DefaultScraperSettings() ScraperSettings {
	return ScraperSettings{
		DelayBetweenRequests: 2.0,
		TimeoutSeconds:       30,
		MaxRetries:           3,
		RespectRobotsTxt:     true,
	}
}

// SiteConfig is everything needed to scrape one source site. Its id is a
// slug derived from the name and is stable for the record's lifetime.
type SiteConfig struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	BaseURL string `json:"base_url"`

	MainRFPPageURL string `json:"main_rfp_page_url,omitempty"`
	SampleRFPURL   string `json:"sample_rfp_url,omitempty"`
	Description    string `json:"description,omitempty"`

	FieldMappings []FieldMapping `json:"field_mappings"`

	Status     Status     `json:"status"`
	LastScrape *time.Time `json:"last_scrape,omitempty"`
	LastTest   *time.Time `json:"last_test,omitempty"`
	RFPCount   int        `json:"rfp_count"`

	ScraperSettings ScraperSettings `json:"scraper_settings"`

	CreatedAt *time.Time `json:"created_at,omitempty"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// RecordID implements document.Record.
func (s SiteConfig) RecordID() string { return s.ID }

// Tombstoned implements document.Record.
func (s SiteConfig) Tombstoned() bool { return s.Status == StatusDeleted }

// FindMapping returns the field mapping with the given alias.
func (s *SiteConfig) FindMapping(alias string) (int, bool) {
	for i := range s.FieldMappings {
		if s.FieldMappings[i].Alias == alias {
			return i, true
		}
	}
	return 0, false
}

// AddMapping appends a field mapping, rejecting duplicate aliases.
func (s *SiteConfig) AddMapping(m FieldMapping) error {
	if _, exists := s.FindMapping(m.Alias); exists {
		return ErrDuplicateMapping
	}
	s.FieldMappings = append(s.FieldMappings, m)
	return nil
}

// RemoveMapping deletes a field mapping by alias. Returns whether it
// existed.
func (s *SiteConfig) RemoveMapping(alias string) bool {
	i, ok := s.FindMapping(alias)
	if !ok {
		return false
	}
	s.FieldMappings = append(s.FieldMappings[:i], s.FieldMappings[i+1:]...)
	return true
}
