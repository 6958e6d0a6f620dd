// Package redis stores sync cursors in Redis so restarts resume pagination.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"solana-token-sync/internal/domain"
	"solana-token-sync/internal/storage"
)

const defaultPrefix = "tokensync:cursor:"

// CursorStore implements storage.CursorStore with one hash per mint.
type CursorStore struct {
	cli    *redis.Client
	prefix string
}

// NewCursorStore connects to addr and verifies the connection.
func NewCursorStore(ctx context.Context, addr string, db int) (*CursorStore, error) {
	cli := redis.NewClient(&redis.Options{Addr: addr, DB: db})
	if err := cli.Ping(ctx).Err(); err != nil {
		_ = cli.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &CursorStore{cli: cli, prefix: defaultPrefix}, nil
}

// NewCursorStoreFromClient wraps an existing client.
func NewCursorStoreFromClient(cli *redis.Client) *CursorStore {
	return &CursorStore{cli: cli, prefix: defaultPrefix}
}

// Close closes the client.
func (s *CursorStore) Close() error { return s.cli.Close() }

// Compile-time interface check.
var _ storage.CursorStore = (*CursorStore)(nil)

// Get retrieves the cursor for mint. Returns ErrNotFound if not exists.
func (s *CursorStore) Get(ctx context.Context, mint string) (*domain.SyncCursor, error) {
	fields, err := s.cli.HGetAll(ctx, s.prefix+mint).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get sync cursor: %w", err)
	}
	if len(fields) == 0 {
		return nil, storage.ErrNotFound
	}

	updatedAt, _ := strconv.ParseInt(fields["updated_at"], 10, 64)
	return &domain.SyncCursor{
		Mint:          mint,
		Before:        fields["before"],
		LastSignature: fields["last_signature"],
		UpdatedAt:     updatedAt,
	}, nil
}

// Save replaces the cursor for c.Mint. A single HSET writes all fields at once.
func (s *CursorStore) Save(ctx context.Context, c *domain.SyncCursor) error {
	if c == nil || c.Mint == "" {
		return storage.ErrInvalidInput
	}
	updatedAt := c.UpdatedAt
	if updatedAt == 0 {
		updatedAt = time.Now().UnixMilli()
	}

	err := s.cli.HSet(ctx, s.prefix+c.Mint,
		"before", c.Before,
		"last_signature", c.LastSignature,
		"updated_at", strconv.FormatInt(updatedAt, 10),
	).Err()
	if err != nil {
		return fmt.Errorf("save sync cursor: %w", err)
	}
	return nil
}
