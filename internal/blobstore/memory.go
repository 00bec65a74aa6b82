package blobstore

import (
	"context"
	"fmt"
	"sync"
)

// Memory is an in-memory Store with the same CAS semantics as the real
// host. It backs tests and local development, and exposes fault-injection
// knobs for exercising the retry and outbox paths.
type Memory struct {
	mu      sync.Mutex
	blobs   map[string]memoryBlob
	seq     int
	commits int

	forcedConflicts int
	unavailable     bool
}

type memoryBlob struct {
	payload []byte
	version string
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{blobs: make(map[string]memoryBlob)}
}

// Fetch implements Store.
func (m *Memory) Fetch(ctx context.Context, key string) ([]byte, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.unavailable {
		return nil, "", fmt.Errorf("%w: fetching %s", ErrUnavailable, key)
	}

	blob, ok := m.blobs[key]
	if !ok {
		return nil, "", fmt.Errorf("%w: %s", ErrNotFound, key)
	}

	payload := make([]byte, len(blob.payload))
	copy(payload, blob.payload)
	return payload, blob.version, nil
}

// Commit implements Store.
func (m *Memory) Commit(ctx context.Context, key string, payload []byte, expectedVersion, message string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.unavailable {
		return "", fmt.Errorf("%w: committing %s", ErrUnavailable, key)
	}

	if m.forcedConflicts > 0 {
		m.forcedConflicts--
		return "", fmt.Errorf("%w: committing %s (injected)", ErrConflict, key)
	}

	current, exists := m.blobs[key]
	if expectedVersion != "" {
		if !exists || current.version != expectedVersion {
			return "", fmt.Errorf("%w: committing %s", ErrConflict, key)
		}
	}

	m.seq++
	m.commits++
	stored := make([]byte, len(payload))
	copy(stored, payload)
	version := fmt.Sprintf("v%d", m.seq)
	m.blobs[key] = memoryBlob{payload: stored, version: version}
	return version, nil
}

// Seed installs a document directly, bypassing CAS. Returns the version.
func (m *Memory) Seed(key string, payload []byte) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.seq++
	stored := make([]byte, len(payload))
	copy(stored, payload)
	version := fmt.Sprintf("v%d", m.seq)
	m.blobs[key] = memoryBlob{payload: stored, version: version}
	return version
}

// Delete removes a document directly, bypassing CAS.
func (m *Memory) Delete(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, key)
}

// Version returns the current version token for a key, or "" when absent.
func (m *Memory) Version(key string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.blobs[key].version
}

// Payload returns a copy of the current payload for a key.
func (m *Memory) Payload(key string) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()

	blob := m.blobs[key]
	payload := make([]byte, len(blob.payload))
	copy(payload, blob.payload)
	return payload
}

// CommitCount reports how many commits have succeeded.
func (m *Memory) CommitCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.commits
}

// FailCommits forces the next n commits to fail with ErrConflict.
func (m *Memory) FailCommits(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.forcedConflicts = n
}

// SetUnavailable toggles simulated transport failure for all calls.
func (m *Memory) SetUnavailable(down bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unavailable = down
}
