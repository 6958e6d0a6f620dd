package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"solana-token-sync/internal/domain"
	"solana-token-sync/internal/observability"
	"solana-token-sync/internal/storage"
)

// TransactionStore implements storage.TransactionStore using ClickHouse.
// It serves as the analytics mirror; ids are those assigned by the primary.
type TransactionStore struct {
	conn *Conn
}

// NewTransactionStore creates a new TransactionStore.
func NewTransactionStore(conn *Conn) *TransactionStore {
	return &TransactionStore{conn: conn}
}

// Compile-time interface check.
var _ storage.TransactionStore = (*TransactionStore)(nil)

const transactionColumns = `token_id, signature, block, timestamp_ms, kind, from_address, to_address,
	amount, symbol, value, is_initial_recipient, created_at`

// Insert stores tx unless its signature is already present.
// MergeTree does not enforce uniqueness, so an explicit check runs first.
func (s *TransactionStore) Insert(ctx context.Context, tx *domain.Transaction) (bool, error) {
	if tx == nil || tx.Signature == "" || !tx.Kind.IsValid() {
		return false, storage.ErrInvalidInput
	}
	start := time.Now()

	exists, err := s.exists(ctx, tx.Signature)
	if err != nil {
		return false, fmt.Errorf("check exists: %w", err)
	}
	if exists {
		return false, nil
	}

	createdAt := tx.CreatedAt
	if createdAt == 0 {
		createdAt = time.Now().UnixMilli()
	}

	batch, err := s.conn.PrepareBatch(ctx, `INSERT INTO transactions (`+transactionColumns+`)`)
	if err != nil {
		return false, fmt.Errorf("prepare batch: %w", err)
	}
	var initial uint8
	if tx.IsInitialRecipient {
		initial = 1
	}
	err = batch.Append(
		tx.TokenID, tx.Signature, tx.Slot, tx.Timestamp, string(tx.Kind),
		tx.From, tx.To, tx.Amount, tx.Symbol, tx.Value, initial, createdAt,
	)
	if err != nil {
		return false, fmt.Errorf("append to batch: %w", err)
	}
	err = batch.Send()
	observability.RecordDBQuery("clickhouse", "transaction_insert", time.Since(start).Seconds(), err)
	if err != nil {
		return false, fmt.Errorf("send batch: %w", err)
	}
	return true, nil
}

// GetBySignature retrieves a transaction. Returns ErrNotFound if not exists.
func (s *TransactionStore) GetBySignature(ctx context.Context, signature string) (*domain.Transaction, error) {
	rows, err := s.query(ctx, `WHERE signature = ? LIMIT 1`, signature)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, storage.ErrNotFound
	}
	return rows[0], nil
}

// GetByToken retrieves all transactions of a token ordered by timestamp ASC.
func (s *TransactionStore) GetByToken(ctx context.Context, tokenID int64) ([]*domain.Transaction, error) {
	return s.query(ctx, `WHERE token_id = ? ORDER BY timestamp_ms ASC, signature ASC`, tokenID)
}

// Edges returns wallet relations of a token ordered by arrival.
func (s *TransactionStore) Edges(ctx context.Context, tokenID int64) ([]domain.WalletEdge, error) {
	query := `
		SELECT from_address, to_address
		FROM transactions FINAL
		WHERE token_id = ?
		  AND from_address NOT IN ('', ?) AND to_address NOT IN ('', ?)
		ORDER BY created_at ASC, signature ASC
	`
	rows, err := s.conn.Query(ctx, query, tokenID, domain.UnknownAddress, domain.UnknownAddress)
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
		FROM transactions FINAL
		WHERE token_id = ? AND is_initial_recipient = 1
		GROUP BY to_address
		ORDER BY min(created_at) ASC, to_address ASC
	`
	rows, err := s.conn.Query(ctx, query, tokenID)
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
	var n uint64
	if err := s.conn.QueryRow(ctx, `SELECT count() FROM transactions FINAL WHERE token_id = ?`, tokenID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count transactions: %w", err)
	}
	return int(n), nil
}

func (s *TransactionStore) exists(ctx context.Context, signature string) (bool, error) {
	var n uint64
	if err := s.conn.QueryRow(ctx, `SELECT count() FROM transactions WHERE signature = ?`, signature).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *TransactionStore) query(ctx context.Context, where string, args ...interface{}) ([]*domain.Transaction, error) {
	rows, err := s.conn.Query(ctx, `SELECT `+transactionColumns+` FROM transactions FINAL `+where, args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var out []*domain.Transaction
	for rows.Next() {
		var (
			tx      domain.Transaction
			kind    string
			amount  decimal.Decimal
			initial uint8
		)
		err := rows.Scan(
			&tx.TokenID, &tx.Signature, &tx.Slot, &tx.Timestamp, &kind,
			&tx.From, &tx.To, &amount, &tx.Symbol, &tx.Value, &initial, &tx.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		tx.Kind = domain.Kind(kind)
		tx.Amount = amount
		tx.IsInitialRecipient = initial == 1
		out = append(out, &tx)
	}
	return out, rows.Err()
}
