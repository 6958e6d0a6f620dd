package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"solana-token-sync/internal/domain"
	"solana-token-sync/internal/storage"
)

// TokenStore implements storage.TokenStore using PostgreSQL.
type TokenStore struct {
	pool *Pool
}

// NewTokenStore creates a new TokenStore.
func NewTokenStore(pool *Pool) *TokenStore {
	return &TokenStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TokenStore = (*TokenStore)(nil)

const tokenColumns = `id, mint_address, symbol, total_supply, decimals, mcap_ath, created_at, updated_at`

// Upsert returns the token for mint, creating it when absent.
func (s *TokenStore) Upsert(ctx context.Context, mint string) (_ *domain.Token, err error) {
	if mint == "" {
		return nil, storage.ErrInvalidInput
	}
	defer observe("token_upsert", time.Now(), &err)

	// The no-op update makes RETURNING yield the existing row.
	query := `
		INSERT INTO tokens (mint_address, created_at, updated_at)
		VALUES ($1, $2, $2)
		ON CONFLICT (mint_address) DO UPDATE SET mint_address = EXCLUDED.mint_address
		RETURNING ` + tokenColumns

	t, err := scanToken(s.pool.QueryRow(ctx, query, mint, time.Now().UnixMilli()))
	if err != nil {
		return nil, fmt.Errorf("upsert token: %w", err)
	}
	return t, nil
}

// GetByMint retrieves a token by mint. Returns ErrNotFound if not exists.
func (s *TokenStore) GetByMint(ctx context.Context, mint string) (*domain.Token, error) {
	query := `SELECT ` + tokenColumns + ` FROM tokens WHERE mint_address = $1`

	t, err := scanToken(s.pool.QueryRow(ctx, query, mint))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get token by mint: %w", err)
	}
	return t, nil
}

// GetByID retrieves a token by id. Returns ErrNotFound if not exists.
func (s *TokenStore) GetByID(ctx context.Context, id int64) (*domain.Token, error) {
	query := `SELECT ` + tokenColumns + ` FROM tokens WHERE id = $1`

	t, err := scanToken(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get token by id: %w", err)
	}
	return t, nil
}

// UpdateMetadata overwrites symbol, supply and decimals in place.
func (s *TokenStore) UpdateMetadata(ctx context.Context, id int64, m *domain.TokenMetadata) (err error) {
	if m == nil {
		return storage.ErrInvalidInput
	}
	defer observe("token_update_metadata", time.Now(), &err)

	query := `
		UPDATE tokens
		SET symbol = $2, total_supply = $3, decimals = COALESCE($4, decimals), updated_at = $5
		WHERE id = $1
	`
	tag, err := s.pool.Exec(ctx, query, id, m.Symbol, m.Supply, m.Decimals, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("update token metadata: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// UpdateMcapATH raises the all-time-high market cap.
func (s *TokenStore) UpdateMcapATH(ctx context.Context, id int64, mcap float64) error {
	query := `
		UPDATE tokens
		SET mcap_ath = GREATEST(COALESCE(mcap_ath, $2), $2)
		WHERE id = $1
	`
	tag, err := s.pool.Exec(ctx, query, id, mcap)
	if err != nil {
		return fmt.Errorf("update mcap ath: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// List returns all tokens ordered by id.
func (s *TokenStore) List(ctx context.Context) ([]*domain.Token, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+tokenColumns+` FROM tokens ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list tokens: %w", err)
	}
	defer rows.Close()

	var out []*domain.Token
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, fmt.Errorf("scan token: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func scanToken(row pgx.Row) (*domain.Token, error) {
	var t domain.Token
	err := row.Scan(
		&t.ID,
		&t.Mint,
		&t.Symbol,
		&t.TotalSupply,
		&t.Decimals,
		&t.McapATH,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
