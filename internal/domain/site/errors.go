package site

import "errors"

var (
	// ErrSiteExists indicates a site with the same id, name, or base URL is
	// already configured. Create is deduplicated on these keys so a
	// replayed create is rejected rather than applied twice.
	ErrSiteExists = errors.New("site already exists")

	// ErrSiteNotFound indicates no site record matches the given id.
	ErrSiteNotFound = errors.New("site not found")

	// ErrInvalidSite indicates a create request missing required fields or
	// carrying a malformed URL.
	ErrInvalidSite = errors.New("invalid site configuration")

	// ErrDuplicateMapping indicates a field mapping alias is already bound.
	ErrDuplicateMapping = errors.New("field mapping alias already exists")

	// ErrMappingNotFound indicates no field mapping matches the given alias.
	ErrMappingNotFound = errors.New("field mapping not found")
)
