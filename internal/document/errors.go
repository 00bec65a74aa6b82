package document

import "errors"

var (
	// ErrMalformed indicates a payload that exists but cannot be decoded as
	// a collection document. It is never treated as an empty document;
	// silently resetting a corrupt document would destroy data.
	ErrMalformed = errors.New("malformed document")
)
