// Package content is the content-addressed blob store. Blobs are keyed by
// the SHA-256 fingerprint of their bytes, which makes writes idempotent
// and lets every read re-verify integrity before returning.
package content

import (
	"context"
	"errors"
	"sync"

	"github.com/casetrace/casetrace/internal/hashing"
)

var (
	// ErrNotFound is returned when no blob exists for a content ID.
	ErrNotFound = errors.New("content not found")

	// ErrCorrupted is returned when stored bytes no longer hash to their
	// content ID.
	ErrCorrupted = errors.New("stored content does not match its fingerprint")
)

// Store is the content-addressed blob store interface.
type Store interface {
	// Put stores data and returns its content ID (the SHA-256
	// fingerprint). Storing the same bytes twice is a no-op returning
	// the same ID.
	Put(ctx context.Context, data []byte) (string, error)

	// Fetch returns the bytes for a content ID, re-verifying the
	// fingerprint before returning.
	Fetch(ctx context.Context, contentID string) ([]byte, error)
}

// ContentID computes the content ID for a byte slice.
func ContentID(data []byte) string {
	return hashing.MustDigest(data, hashing.SHA256)
}

// MemoryStore is an in-memory Store for tests and development.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string][]byte)}
}

// Put implements Store.
func (s *MemoryStore) Put(_ context.Context, data []byte) (string, error) {
	id := ContentID(data)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.blobs[id]; !ok {
		cp := make([]byte, len(data))
		copy(cp, data)
		s.blobs[id] = cp
	}
	return id, nil
}

// Fetch implements Store.
func (s *MemoryStore) Fetch(_ context.Context, contentID string) ([]byte, error) {
	s.mu.RLock()
	blob, ok := s.blobs[contentID]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	if ContentID(blob) != contentID {
		return nil, ErrCorrupted
	}
	out := make([]byte, len(blob))
	copy(out, blob)
	return out, nil
}
