package postgres

import (
	"context"
	"fmt"
	"time"

	"solana-token-sync/internal/domain"
	"solana-token-sync/internal/storage"
)

// CursorStore implements storage.CursorStore using PostgreSQL.
type CursorStore struct {
	pool *Pool
}

// NewCursorStore creates a new CursorStore.
func NewCursorStore(pool *Pool) *CursorStore {
	return &CursorStore{pool: pool}
}

// Compile-time interface check.
var _ storage.CursorStore = (*CursorStore)(nil)

// Get retrieves the cursor for mint. Returns ErrNotFound if not exists.
func (s *CursorStore) Get(ctx context.Context, mint string) (*domain.SyncCursor, error) {
	query := `
		SELECT mint_address, before_sig, last_signature, updated_at
		FROM sync_cursors
		WHERE mint_address = $1
	`
	var c domain.SyncCursor
	err := s.pool.QueryRow(ctx, query, mint).Scan(&c.Mint, &c.Before, &c.LastSignature, &c.UpdatedAt)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get sync cursor: %w", err)
	}
	return &c, nil
}

// Save replaces the cursor for c.Mint.
func (s *CursorStore) Save(ctx context.Context, c *domain.SyncCursor) (err error) {
	if c == nil || c.Mint == "" {
		return storage.ErrInvalidInput
	}
	defer observe("cursor_save", time.Now(), &err)

	updatedAt := c.UpdatedAt
	if updatedAt == 0 {
		updatedAt = time.Now().UnixMilli()
	}

	query := `
		INSERT INTO sync_cursors (mint_address, before_sig, last_signature, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (mint_address) DO UPDATE SET
			before_sig = EXCLUDED.before_sig,
			last_signature = EXCLUDED.last_signature,
			updated_at = EXCLUDED.updated_at
	`
	if _, err = s.pool.Exec(ctx, query, c.Mint, c.Before, c.LastSignature, updatedAt); err != nil {
		return fmt.Errorf("save sync cursor: %w", err)
	}
	return nil
}
