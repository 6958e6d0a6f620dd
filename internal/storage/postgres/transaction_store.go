package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"solana-token-sync/internal/domain"
	"solana-token-sync/internal/storage"
)

// TransactionStore implements storage.TransactionStore using PostgreSQL.
type TransactionStore struct {
	pool *Pool
}

// NewTransactionStore creates a new TransactionStore.
func NewTransactionStore(pool *Pool) *TransactionStore {
	return &TransactionStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TransactionStore = (*TransactionStore)(nil)

// amount travels as text so NUMERIC precision is never squeezed through float64.
const transactionColumns = `id, token_id, signature, block, timestamp_ms, kind, from_address, to_address,
	amount::text, symbol, value, is_initial_recipient, created_at`

// Insert stores tx; an existing signature is a no-op.
func (s *TransactionStore) Insert(ctx context.Context, tx *domain.Transaction) (_ bool, err error) {
	if tx == nil || tx.Signature == "" || !tx.Kind.IsValid() {
		return false, storage.ErrInvalidInput
	}
	defer observe("transaction_insert", time.Now(), &err)

	createdAt := tx.CreatedAt
	if createdAt == 0 {
		createdAt = time.Now().UnixMilli()
	}

	query := `
		INSERT INTO transactions (
			token_id, signature, block, timestamp_ms, kind, from_address, to_address,
			amount, symbol, value, is_initial_recipient, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8::numeric, $9, $10, $11, $12)
		ON CONFLICT (signature) DO NOTHING
		RETURNING id
	`

	var id int64
	err = s.pool.QueryRow(ctx, query,
		tx.TokenID,
		tx.Signature,
		tx.Slot,
		tx.Timestamp,
		string(tx.Kind),
		tx.From,
		tx.To,
		tx.Amount.String(),
		tx.Symbol,
		tx.Value,
		tx.IsInitialRecipient,
		createdAt,
	).Scan(&id)
	if err != nil {
		if isNotFoundError(err) || isDuplicateKeyError(err) {
			return false, nil
		}
		return false, fmt.Errorf("insert transaction: %w", err)
	}

	tx.ID = id
	return true, nil
}

// GetBySignature retrieves a transaction. Returns ErrNotFound if not exists.
func (s *TransactionStore) GetBySignature(ctx context.Context, signature string) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE signature = $1`

	tx, err := scanTransaction(s.pool.QueryRow(ctx, query, signature))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get transaction by signature: %w", err)
	}
	return tx, nil
}

// GetByToken retrieves all transactions of a token ordered by timestamp ASC.
func (s *TransactionStore) GetByToken(ctx context.Context, tokenID int64) (_ []*domain.Transaction, err error) {
	defer observe("transaction_get_by_token", time.Now(), &err)

	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE token_id = $1 ORDER BY timestamp_ms ASC, id ASC`
	rows, err := s.pool.Query(ctx, query, tokenID)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var out []*domain.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

// Edges returns wallet relations of a token in insertion order.
func (s *TransactionStore) Edges(ctx context.Context, tokenID int64) ([]domain.WalletEdge, error) {
	query := `
		SELECT from_address, to_address
		FROM transactions
		WHERE token_id = $1
		  AND from_address <> '' AND to_address <> ''
		  AND from_address <> $2 AND to_address <> $2
		ORDER BY id
	`
	rows, err := s.pool.Query(ctx, query, tokenID, domain.UnknownAddress)
	if err != nil {
		return nil, fmt.Errorf("query edges: %w", err)
	}
	defer rows.Close()

	var edges []domain.WalletEdge
	for rows.Next() {
		var e domain.WalletEdge
		if err := rows.Scan(&e.From, &e.To); err != nil {
			return nil, fmt.Errorf("scan edge: %w", err)
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

// InitialRecipients returns distinct flagged recipients in first-seen order.
func (s *TransactionStore) InitialRecipients(ctx context.Context, tokenID int64) ([]string, error) {
	query := `
		SELECT to_address
		FROM transactions
		WHERE token_id = $1 AND is_initial_recipient
		GROUP BY to_address
		ORDER BY MIN(id)
	`
	rows, err := s.pool.Query(ctx, query, tokenID)
	if err != nil {
		return nil, fmt.Errorf("query initial recipients: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var addr string
		if err := rows.Scan(&addr); err != nil {
			return nil, fmt.Errorf("scan recipient: %w", err)
		}
		out = append(out, addr)
	}
	return out, rows.Err()
}

// Count returns the number of stored transactions of a token.
func (s *TransactionStore) Count(ctx context.Context, tokenID int64) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM transactions WHERE token_id = $1`, tokenID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count transactions: %w", err)
	}
	return n, nil
}

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	var (
		tx     domain.Transaction
		kind   string
		amount string
	)
	err := row.Scan(
		&tx.ID,
		&tx.TokenID,
		&tx.Signature,
		&tx.Slot,
		&tx.Timestamp,
		&kind,
		&tx.From,
		&tx.To,
		&amount,
		&tx.Symbol,
		&tx.Value,
		&tx.IsInitialRecipient,
		&tx.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	tx.Kind = domain.Kind(kind)
	tx.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("parse amount %q: %w", amount, err)
	}
	return &tx, nil
}
