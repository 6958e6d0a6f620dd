package storage

import (
	"context"

	"solana-token-sync/internal/domain"
)

// TokenStore provides access to tokens storage.
type TokenStore interface {
	// Upsert returns the token for mint, creating it when absent.
	Upsert(ctx context.Context, mint string) (*domain.Token, error)

	// GetByMint retrieves a token by mint. Returns ErrNotFound if not exists.
	GetByMint(ctx context.Context, mint string) (*domain.Token, error)

	// GetByID retrieves a token by id. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, id int64) (*domain.Token, error)

	// UpdateMetadata overwrites symbol, supply and decimals in place.
	UpdateMetadata(ctx context.Context, id int64, m *domain.TokenMetadata) error

	// UpdateMcapATH raises the all-time-high market cap; lower values are ignored.
	UpdateMcapATH(ctx context.Context, id int64, mcap float64) error

	// List returns all tokens ordered by id.
	List(ctx context.Context) ([]*domain.Token, error)
}

// TransactionStore provides access to transactions storage.
type TransactionStore interface {
	// Insert stores tx. A signature that already exists is a no-op and
	// reports inserted=false with a nil error. On success tx.ID is set.
	Insert(ctx context.Context, tx *domain.Transaction) (inserted bool, err error)

	// GetBySignature retrieves a transaction. Returns ErrNotFound if not exists.
	GetBySignature(ctx context.Context, signature string) (*domain.Transaction, error)

	// GetByToken retrieves all transactions of a token ordered by timestamp ASC.
	GetByToken(ctx context.Context, tokenID int64) ([]*domain.Transaction, error)

	// Edges returns wallet relations of a token in insertion order, excluding
	// any transaction with an unknown side.
	Edges(ctx context.Context, tokenID int64) ([]domain.WalletEdge, error)

	// InitialRecipients returns distinct recipients flagged as initial
	// recipients, in first-seen order.
	InitialRecipients(ctx context.Context, tokenID int64) ([]string, error)

	// Count returns the number of stored transactions of a token.
	Count(ctx context.Context, tokenID int64) (int, error)
}

// CursorStore persists per-mint sync cursors across restarts.
type CursorStore interface {
	// Get retrieves the cursor for mint. Returns ErrNotFound if not exists.
	Get(ctx context.Context, mint string) (*domain.SyncCursor, error)

	// Save replaces the cursor for c.Mint.
	Save(ctx context.Context, c *domain.SyncCursor) error
}
