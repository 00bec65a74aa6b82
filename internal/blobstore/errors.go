package blobstore

import "errors"

var (
	// ErrNotFound indicates the document does not exist in the store.
	ErrNotFound = errors.New("document not found")

	// ErrConflict indicates the store's current version did not match the
	// expected version at commit time.
	ErrConflict = errors.New("version conflict")

	// ErrUnavailable indicates the store could not be reached or refused the
	// credentials. Mutations hitting this are eligible for the outbox path.
	ErrUnavailable = errors.New("store unavailable")
)
