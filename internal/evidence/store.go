package evidence

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store is the persistence interface consumed by the anchoring core.
// *PostgresStore and *MemoryStore satisfy it.
type Store interface {
	Create(ctx context.Context, ev *Evidence) error
	Get(ctx context.Context, id uuid.UUID) (*Evidence, error)

	// SetAnchor persists the primary ledger anchor. The write is
	// conditional on no anchor being present; a lost race returns
	// ErrAnchorExists rather than silently overwriting.
	SetAnchor(ctx context.Context, id uuid.UUID, anchor *Anchor) error

	// SetBridge persists the cross-chain mirror record.
	SetBridge(ctx context.Context, id uuid.UUID, bridge *BridgeRecord) error

	// SoftDelete marks the evidence deleted. Custody events survive.
	SoftDelete(ctx context.Context, id uuid.UUID) error
}

// MemoryStore is an in-memory Store for tests and development.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[uuid.UUID]*Evidence
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[uuid.UUID]*Evidence)}
}

// Create implements Store.
func (s *MemoryStore) Create(_ context.Context, ev *Evidence) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	now := time.Now().UTC()
	ev.CreatedAt = now
	ev.UpdatedAt = now
	cp := *ev
	s.records[ev.ID] = &cp
	return nil
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, id uuid.UUID) (*Evidence, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ev, ok := s.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *ev
	return &cp, nil
}

// SetAnchor implements Store. The check and the write happen under one
// lock, mirroring the conditional UPDATE of the Postgres store.
func (s *MemoryStore) SetAnchor(_ context.Context, id uuid.UUID, anchor *Anchor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev, ok := s.records[id]
	if !ok {
		return ErrNotFound
	}
	if ev.BlockchainData != nil {
		return ErrAnchorExists
	}
	ev.BlockchainData = anchor
	ev.UpdatedAt = time.Now().UTC()
	return nil
}

// SetBridge implements Store.
func (s *MemoryStore) SetBridge(_ context.Context, id uuid.UUID, bridge *BridgeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev, ok := s.records[id]
	if !ok {
		return ErrNotFound
	}
	ev.CrossChainData = bridge
	ev.UpdatedAt = time.Now().UTC()
	return nil
}

// SoftDelete implements Store.
func (s *MemoryStore) SoftDelete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev, ok := s.records[id]
	if !ok {
		return ErrNotFound
	}
	now := time.Now().UTC()
	ev.DeletedAt = &now
	ev.Status = "deleted"
	ev.UpdatedAt = now
	return nil
}
