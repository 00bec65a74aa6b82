package mcp

import (
	"errors"
	"fmt"

	"github.com/rfpwatch/rfpwatch/internal/batch"
	"github.com/rfpwatch/rfpwatch/internal/blobstore"
	"github.com/rfpwatch/rfpwatch/internal/document"
	"github.com/rfpwatch/rfpwatch/internal/domain/site"
	"github.com/rfpwatch/rfpwatch/internal/guard"
)

// APIError is the coded error shape returned to MCP clients.
type APIError struct {
	Code         string `json:"code"`
	Message      string `json:"message"`
	RecoveryHint string `json:"recovery_hint,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// mapError maps domain errors to coded API errors. Unrecognized errors
// pass through untouched.
func mapError(err error) error {
	switch {
	case errors.Is(err, batch.ErrBatchTooLarge):
		return &APIError{Code: "BATCH_TOO_LARGE", Message: err.Error(), RecoveryHint: "Split the batch into smaller chunks"}
	case errors.Is(err, guard.ErrConcurrencyExceeded):
		return &APIError{Code: "CONCURRENCY_EXCEEDED", Message: "too many concurrent writers", RecoveryHint: "Retry the operation"}
	case errors.Is(err, document.ErrMalformed):
		return &APIError{Code: "MALFORMED_DOCUMENT", Message: err.Error(), RecoveryHint: "The stored document needs repair; contact an operator"}
	case errors.Is(err, blobstore.ErrUnavailable):
		return &APIError{Code: "STORE_UNAVAILABLE", Message: "backing store unreachable", RecoveryHint: "Mutations are queued automatically; reads need the store"}
	case errors.Is(err, site.ErrSiteExists):
		return &APIError{Code: "SITE_EXISTS", Message: err.Error()}
	case errors.Is(err, site.ErrSiteNotFound):
		return &APIError{Code: "SITE_NOT_FOUND", Message: err.Error(), RecoveryHint: "Check the site id"}
	case errors.Is(err, site.ErrInvalidSite):
		return &APIError{Code: "INVALID_SITE", Message: err.Error()}
	case errors.Is(err, site.ErrDuplicateMapping):
		return &APIError{Code: "MAPPING_EXISTS", Message: err.Error(), RecoveryHint: "Remove the existing mapping first or pick another alias"}
	case errors.Is(err, site.ErrMappingNotFound):
		return &APIError{Code: "MAPPING_NOT_FOUND", Message: err.Error(), RecoveryHint: "Check the mapping alias"}
	default:
		return err
	}
}
