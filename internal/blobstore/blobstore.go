// Package blobstore abstracts the versioned file host that holds each
// collection document as a single blob. The store never merges: a commit
// either replaces the whole document or is rejected with a version conflict.
package blobstore

import "context"

// Store is the contract the persistence core needs from a file host:
// fetch-with-version and whole-document compare-and-swap commit.
type Store interface {
	// Fetch returns the current payload and its opaque version token.
	// Returns ErrNotFound when the document does not exist.
	Fetch(ctx context.Context, key string) (payload []byte, version string, err error)

	// Commit replaces the document, conditioned on expectedVersion matching
	// the store's current version. An empty expectedVersion commits
	// unconditionally (bootstrap of a new document). The message describes
	// the logical change for the host's audit trail; it is not consumed by
	// this core. Returns ErrConflict on a version mismatch.
	Commit(ctx context.Context, key string, payload []byte, expectedVersion, message string) (newVersion string, err error)
}
