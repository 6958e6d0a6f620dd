package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"solana-token-sync/internal/domain"
	"solana-token-sync/internal/storage"
)

// TransactionStore is an in-memory implementation of storage.TransactionStore.
// Rows are kept per token in insertion order.
type TransactionStore struct {
	mu       sync.RWMutex
	nextID   int64
	bySig    map[string]*domain.Transaction
	byTokens map[int64][]*domain.Transaction
}

// NewTransactionStore creates a new in-memory transaction store.
func NewTransactionStore() *TransactionStore {
	return &TransactionStore{
		bySig:    make(map[string]*domain.Transaction),
		byTokens: make(map[int64][]*domain.Transaction),
	}
}

// Insert stores tx; an existing signature is a no-op.
func (s *TransactionStore) Insert(_ context.Context, tx *domain.Transaction) (bool, error) {
	if tx == nil || tx.Signature == "" || !tx.Kind.IsValid() {
		return false, storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.bySig[tx.Signature]; exists {
		return false, nil
	}

	s.nextID++
	txCopy := *tx
	txCopy.ID = s.nextID
	if txCopy.CreatedAt == 0 {
		txCopy.CreatedAt = time.Now().UnixMilli()
	}
	s.bySig[tx.Signature] = &txCopy
	s.byTokens[tx.TokenID] = append(s.byTokens[tx.TokenID], &txCopy)

	tx.ID = txCopy.ID
	return true, nil
}

// GetBySignature retrieves a transaction. Returns ErrNotFound if not exists.
func (s *TransactionStore) GetBySignature(_ context.Context, signature string) (*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, ok := s.bySig[signature]
	if !ok {
		return nil, storage.ErrNotFound
	}
	txCopy := *tx
	return &txCopy, nil
}

// GetByToken retrieves all transactions of a token ordered by timestamp ASC.
func (s *TransactionStore) GetByToken(_ context.Context, tokenID int64) ([]*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := s.byTokens[tokenID]
	out := make([]*domain.Transaction, len(rows))
	for i, tx := range rows {
		txCopy := *tx
		out[i] = &txCopy
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	return out, nil
}

// Edges returns wallet relations of a token in insertion order.
func (s *TransactionStore) Edges(_ context.Context, tokenID int64) ([]domain.WalletEdge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var edges []domain.WalletEdge
	for _, tx := range s.byTokens[tokenID] {
		if tx.HasKnownEndpoints() {
			edges = append(edges, domain.WalletEdge{From: tx.From, To: tx.To})
		}
	}
	return edges, nil
}

// InitialRecipients returns distinct flagged recipients in first-seen order.
func (s *TransactionStore) InitialRecipients(_ context.Context, tokenID int64) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]bool)
	var out []string
	for _, tx := range s.byTokens[tokenID] {
		if tx.IsInitialRecipient && !seen[tx.To] {
			seen[tx.To] = true
			out = append(out, tx.To)
		}
	}
	return out, nil
}

// Count returns the number of stored transactions of a token.
func (s *TransactionStore) Count(_ context.Context, tokenID int64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byTokens[tokenID]), nil
}

var _ storage.TransactionStore = (*TransactionStore)(nil)
