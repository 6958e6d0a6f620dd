package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"solana-token-sync/internal/domain"
	"solana-token-sync/internal/storage"
)

// TokenStore is an in-memory implementation of storage.TokenStore.
type TokenStore struct {
	mu     sync.RWMutex
	nextID int64
	byID   map[int64]*domain.Token
	byMint map[string]int64
}

// NewTokenStore creates a new in-memory token store.
func NewTokenStore() *TokenStore {
	return &TokenStore{
		byID:   make(map[int64]*domain.Token),
		byMint: make(map[string]int64),
	}
}

// Upsert returns the token for mint, creating it when absent.
func (s *TokenStore) Upsert(_ context.Context, mint string) (*domain.Token, error) {
	if mint == "" {
		return nil, storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.byMint[mint]; ok {
		return copyToken(s.byID[id]), nil
	}

	s.nextID++
	now := time.Now().UnixMilli()
	t := &domain.Token{ID: s.nextID, Mint: mint, CreatedAt: now, UpdatedAt: now}
	s.byID[t.ID] = t
	s.byMint[mint] = t.ID
	return copyToken(t), nil
}

// GetByMint retrieves a token by mint. Returns ErrNotFound if not exists.
func (s *TokenStore) GetByMint(_ context.Context, mint string) (*domain.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byMint[mint]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return copyToken(s.byID[id]), nil
}

// GetByID retrieves a token by id. Returns ErrNotFound if not exists.
func (s *TokenStore) GetByID(_ context.Context, id int64) (*domain.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.byID[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return copyToken(t), nil
}

// UpdateMetadata overwrites symbol, supply and decimals in place.
func (s *TokenStore) UpdateMetadata(_ context.Context, id int64, m *domain.TokenMetadata) error {
	if m == nil {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.byID[id]
	if !ok {
		return storage.ErrNotFound
	}
	t.Symbol = copyString(m.Symbol)
	t.TotalSupply = copyFloat(m.Supply)
	if m.Decimals != nil {
		d := *m.Decimals
		t.Decimals = &d
	}
	t.UpdatedAt = time.Now().UnixMilli()
	return nil
}

// UpdateMcapATH raises the all-time-high market cap.
func (s *TokenStore) UpdateMcapATH(_ context.Context, id int64, mcap float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.byID[id]
	if !ok {
		return storage.ErrNotFound
	}
	if t.McapATH == nil || mcap > *t.McapATH {
		t.McapATH = &mcap
	}
	return nil
}

// List returns all tokens ordered by id.
func (s *TokenStore) List(_ context.Context) ([]*domain.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.Token, 0, len(s.byID))
	for _, t := range s.byID {
		out = append(out, copyToken(t))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func copyToken(t *domain.Token) *domain.Token {
	c := *t
	c.Symbol = copyString(t.Symbol)
	c.TotalSupply = copyFloat(t.TotalSupply)
	c.McapATH = copyFloat(t.McapATH)
	if t.Decimals != nil {
		d := *t.Decimals
		c.Decimals = &d
	}
	return &c
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func copyFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}

var _ storage.TokenStore = (*TokenStore)(nil)
