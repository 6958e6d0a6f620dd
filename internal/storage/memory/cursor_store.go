package memory

import (
	"context"
	"sync"

	"solana-token-sync/internal/domain"
	"solana-token-sync/internal/storage"
)

// CursorStore is an in-memory implementation of storage.CursorStore.
type CursorStore struct {
	mu      sync.RWMutex
	cursors map[string]domain.SyncCursor
}

// NewCursorStore creates a new in-memory cursor store.
func NewCursorStore() *CursorStore {
	return &CursorStore{cursors: make(map[string]domain.SyncCursor)}
}

// Get retrieves the cursor for mint. Returns ErrNotFound if not exists.
func (s *CursorStore) Get(_ context.Context, mint string) (*domain.SyncCursor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.cursors[mint]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &c, nil
}

// Save replaces the cursor for c.Mint.
func (s *CursorStore) Save(_ context.Context, c *domain.SyncCursor) error {
	if c == nil || c.Mint == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cursors[c.Mint] = *c
	return nil
}

var _ storage.CursorStore = (*CursorStore)(nil)
