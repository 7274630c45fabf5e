package custody

import (
	"context"
	"sync"
)

// Appender is the write side of a custody store. *Store and *MemoryStore
// both satisfy it.
type Appender interface {
	// Append builds an event chained onto the current tail of the
	// evidence's chain and persists it.
	Append(ctx context.Context, evidenceID, dataHash string, base Event) (*Event, error)
}

// MemoryStore is an in-memory, thread-safe custody store. It is primarily
// useful for tests and single-process deployments that do not need durable
// persistence.
type MemoryStore struct {
	mu     sync.RWMutex
	chains map[string][]Event
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{chains: make(map[string][]Event)}
}

// Append implements Appender. The first event appended for an evidence ID
// is built with a nil previous hash.
func (s *MemoryStore) Append(_ context.Context, evidenceID, dataHash string, base Event) (*Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var prev *string
	if chain := s.chains[evidenceID]; len(chain) > 0 {
		tail := chain[len(chain)-1].Integrity.EventHash
		prev = &tail
	}

	event := BuildEvent(evidenceID, dataHash, prev, base)
	s.chains[evidenceID] = append(s.chains[evidenceID], event)
	return &event, nil
}

// Load returns the evidence's chain in append order. A missing chain is
// returned as an empty slice, not an error.
func (s *MemoryStore) Load(_ context.Context, evidenceID string) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	chain := s.chains[evidenceID]
	out := make([]Event, len(chain))
	copy(out, chain)
	return out, nil
}
