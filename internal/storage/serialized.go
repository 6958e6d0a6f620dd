package storage

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"solana-token-sync/internal/domain"
)

// SerializedTransactionStore funnels every write through one mutex so
// concurrent sync workers never interleave inserts on the same handle.
// Reads pass through.
type SerializedTransactionStore struct {
	TransactionStore
	mu sync.Mutex
}

// NewSerializedTransactionStore wraps inner.
func NewSerializedTransactionStore(inner TransactionStore) *SerializedTransactionStore {
	return &SerializedTransactionStore{TransactionStore: inner}
}

// Insert stores tx while holding the writer lock.
func (s *SerializedTransactionStore) Insert(ctx context.Context, tx *domain.Transaction) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.TransactionStore.Insert(ctx, tx)
}

// MirroredTransactionStore writes to a primary store and copies newly
// inserted rows to a secondary analytics store. Mirror failures are logged,
// never returned: the primary is the source of truth.
type MirroredTransactionStore struct {
	TransactionStore
	mirror TransactionStore
	logger logrus.FieldLogger
}

// NewMirroredTransactionStore wraps primary with a mirror.
func NewMirroredTransactionStore(primary, mirror TransactionStore, logger logrus.FieldLogger) *MirroredTransactionStore {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &MirroredTransactionStore{TransactionStore: primary, mirror: mirror, logger: logger}
}

// Insert stores tx in the primary and, when it was new, in the mirror.
func (s *MirroredTransactionStore) Insert(ctx context.Context, tx *domain.Transaction) (bool, error) {
	inserted, err := s.TransactionStore.Insert(ctx, tx)
	if err != nil || !inserted {
		return inserted, err
	}
	if _, merr := s.mirror.Insert(ctx, tx); merr != nil {
		s.logger.WithField("signature", tx.Signature).Warnf("mirror insert failed: %v", merr)
	}
	return true, nil
}

var (
	_ TransactionStore = (*SerializedTransactionStore)(nil)
	_ TransactionStore = (*MirroredTransactionStore)(nil)
)
