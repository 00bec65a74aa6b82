package site

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rfpwatch/rfpwatch/internal/batch"
	"github.com/rfpwatch/rfpwatch/internal/blobstore"
	"github.com/rfpwatch/rfpwatch/internal/document"
	"github.com/rfpwatch/rfpwatch/internal/guard"
	"github.com/rfpwatch/rfpwatch/internal/outbox"
)

// CreateRequest describes a new site to configure.
type CreateRequest struct {
	Name           string `json:"name"`
	BaseURL        string `json:"base_url"`
	MainRFPPageURL string `json:"main_rfp_page_url,omitempty"`
	SampleRFPURL   string `json:"sample_rfp_url,omitempty"`
	Description    string `json:"description,omitempty"`
}

// CreateResult is the outcome of a Create call. Queued is set when the
// store was unreachable and the creation went to the outbox instead.
type CreateResult struct {
	Site    *SiteConfig `json:"site,omitempty"`
	Queued  bool        `json:"queued"`
	QueueID string      `json:"queue_id,omitempty"`
}

// MutateResult is the outcome of a Mutate call.
type MutateResult struct {
	Batch   *batch.Result `json:"batch,omitempty"`
	Queued  bool          `json:"queued"`
	QueueID string        `json:"queue_id,omitempty"`
}

// Service exposes the site collection: read, create, lifecycle mutation
// batches, and the rare hard-delete path.
type Service struct {
	store     blobstore.Store
	codec     document.Codec[SiteConfig]
	guard     *guard.Guard[SiteConfig]
	processor *batch.Processor[SiteConfig]
	queue     outbox.Queue
	key       string
	now       func() time.Time
	logger    *slog.Logger
}

// NewService creates the site service. queue may be nil to disable the
// outbox fallback.
func NewService(store blobstore.Store, g *guard.Guard[SiteConfig], processor *batch.Processor[SiteConfig], queue outbox.Queue, key string, logger *slog.Logger) *Service {
	if key == "" {
		key = DocumentKey
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:     store,
		guard:     g,
		processor: processor,
		queue:     queue,
		key:       key,
		now:       time.Now,
		logger:    logger,
	}
}

// Read fetches and decodes the site collection. A missing document reads
// as the empty collection.
func (s *Service) Read(ctx context.Context) (*document.Collection[SiteConfig], error) {
	payload, _, err := s.store.Fetch(ctx, s.key)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return document.Empty[SiteConfig](), nil
		}
		return nil, fmt.Errorf("reading %s: %w", s.key, err)
	}
	doc, err := s.codec.Decode(payload)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", s.key, err)
	}
	return doc, nil
}

// Create adds a new site record, falling back to the outbox when the store
// is unreachable. Validation failures and duplicates never reach the
// outbox; they are structural and reported immediately when the store is
// up, or at reconcile time when it is not.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*CreateResult, error) {
	created, err := s.CreateDirect(ctx, req)
	if err == nil {
		return &CreateResult{Site: created}, nil
	}
	if s.queue == nil || !errors.Is(err, blobstore.ErrUnavailable) {
		return nil, err
	}

	// Validate before queueing so obviously broken requests fail now
	// rather than at the next drain.
	if verr := validateCreate(req); verr != nil {
		return nil, verr
	}

	payload, merr := json.Marshal(req)
	if merr != nil {
		return nil, fmt.Errorf("encoding create for outbox: %w", merr)
	}
	entry, qerr := s.queue.Enqueue(ctx, outbox.Mutation{
		Kind:        outbox.KindCreateSite,
		DocumentKey: s.key,
		Payload:     payload,
	})
	if qerr != nil {
		return nil, fmt.Errorf("store unreachable and enqueue failed: %w", qerr)
	}

	s.logger.Warn("store unreachable, site creation queued", "name", req.Name, "entry", entry.ID)
	return &CreateResult{Queued: true, QueueID: entry.ID}, nil
}

// CreateDirect adds a new site record with no outbox fallback. The id is a
// slug of the name, suffixed on collision; name and base URL are
// deduplicated case-insensitively so a replayed create conflicts instead
// of double-applying.
func (s *Service) CreateDirect(ctx context.Context, req CreateRequest) (*SiteConfig, error) {
	if err := validateCreate(req); err != nil {
		return nil, err
	}

	var created SiteConfig
	_, err := s.guard.WithDocument(ctx, s.key, func(doc *document.Collection[SiteConfig]) (bool, string, error) {
		for i := range doc.Records {
			rec := &doc.Records[i]
			if strings.EqualFold(rec.Name, req.Name) || strings.EqualFold(rec.BaseURL, req.BaseURL) {
				return false, "", fmt.Errorf("%w: %s", ErrSiteExists, rec.ID)
			}
		}

		id := UniqueID(req.Name, func(candidate string) bool {
			_, exists := doc.Find(candidate)
			return exists
		})

		created = newSiteConfig(id, req, s.now())
		doc.Append(created)
		return true, fmt.Sprintf("add site %s", id), nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("site created", "id", created.ID, "name", created.Name)
	return &created, nil
}

// Mutate applies a batch of lifecycle operations, with outbox fallback.
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

// Apply runs a batch directly with no outbox fallback, for the reconciler.
func (s *Service) Apply(ctx context.Context, ops []batch.Operation) (*batch.Result, error) {
	return s.processor.Apply(ctx, s.key, ops)
}

// AddFieldMapping binds a field mapping on a site record. A freshly trained
// mapping starts at full confidence unless the caller says otherwise.
func (s *Service) AddFieldMapping(ctx context.Context, siteID string, m FieldMapping) (*SiteConfig, error) {
	if strings.TrimSpace(m.Alias) == "" {
		return nil, fmt.Errorf("%w: mapping alias is required", ErrInvalidSite)
	}
	if strings.TrimSpace(m.Selector) == "" {
		return nil, fmt.Errorf("%w: mapping selector is required", ErrInvalidSite)
	}
	if m.ConfidenceScore == 0 {
		m.ConfidenceScore = 1.0
	}

	var updated SiteConfig
	_, err := s.guard.WithDocument(ctx, s.key, func(doc *document.Collection[SiteConfig]) (bool, string, error) {
		idx, ok := doc.Find(siteID)
		if !ok {
			return false, "", fmt.Errorf("%w: %s", ErrSiteNotFound, siteID)
		}
		if err := doc.Records[idx].AddMapping(m); err != nil {
			return false, "", fmt.Errorf("site %s: %w", siteID, err)
		}
		updated = doc.Records[idx]
		return true, fmt.Sprintf("map field %s on site %s", m.Alias, siteID), nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("field mapping added", "site", siteID, "alias", m.Alias)
	return &updated, nil
}

// RemoveFieldMapping unbinds a field mapping by alias.
func (s *Service) RemoveFieldMapping(ctx context.Context, siteID, alias string) (*SiteConfig, error) {
	var updated SiteConfig
	_, err := s.guard.WithDocument(ctx, s.key, func(doc *document.Collection[SiteConfig]) (bool, string, error) {
		idx, ok := doc.Find(siteID)
		if !ok {
			return false, "", fmt.Errorf("%w: %s", ErrSiteNotFound, siteID)
		}
		if !doc.Records[idx].RemoveMapping(alias) {
			return false, "", fmt.Errorf("%w: %s on site %s", ErrMappingNotFound, alias, siteID)
		}
		updated = doc.Records[idx]
		return true, fmt.Sprintf("unmap field %s on site %s", alias, siteID), nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("field mapping removed", "site", siteID, "alias", alias)
	return &updated, nil
}

// HardDelete physically removes a site record from the document and
// recomputes the metadata. Unlike the delete action this leaves no
// tombstone; it exists for records that must not be retained at all.
func (s *Service) HardDelete(ctx context.Context, id string) error {
	_, err := s.guard.WithDocument(ctx, s.key, func(doc *document.Collection[SiteConfig]) (bool, string, error) {
		idx, ok := doc.Find(id)
		if !ok {
			return false, "", fmt.Errorf("%w: %s", ErrSiteNotFound, id)
		}
		doc.RemoveAt(idx)
		return true, fmt.Sprintf("hard delete site %s", id), nil
	})
	if err != nil {
		return err
	}
	s.logger.Info("site hard deleted", "id", id)
	return nil
}

func validateCreate(req CreateRequest) error {
	if strings.TrimSpace(req.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidSite)
	}
	if !strings.HasPrefix(req.BaseURL, "http://") && !strings.HasPrefix(req.BaseURL, "https://") {
		return fmt.Errorf("%w: base_url must be an http(s) URL", ErrInvalidSite)
	}
	return nil
}

func newSiteConfig(id string, req CreateRequest, now time.Time) SiteConfig {
	mainPage := req.MainRFPPageURL
	if mainPage == "" {
		mainPage = req.BaseURL
	}
	sample := req.SampleRFPURL
	if sample == "" {
		sample = mainPage
	}
	description := req.Description
	if description == "" {
		description = "Site configuration for " + req.Name
	}

	ts := now.UTC()
	return SiteConfig{
		ID:              id,
		Name:            req.Name,
		BaseURL:         req.BaseURL,
		MainRFPPageURL:  mainPage,
		SampleRFPURL:    sample,
		Description:     description,
		FieldMappings:   []FieldMapping{},
		Status:          StatusTesting,
		ScraperSettings: DefaultScraperSettings(),
		CreatedAt:       &ts,
	}
}
