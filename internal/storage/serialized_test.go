package storage_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-token-sync/internal/domain"
	"solana-token-sync/internal/storage"
	"solana-token-sync/internal/storage/memory"
)

func transfer(sig string) *domain.Transaction {
	return &domain.Transaction{
		TokenID:   1,
		Signature: sig,
		Kind:      domain.KindTransfer,
		From:      "a",
		To:        "b",
		Amount:    decimal.NewFromInt(1),
	}
}

func TestSerializedTransactionStore_ConcurrentInserts(t *testing.T) {
	store := storage.NewSerializedTransactionStore(memory.NewTransactionStore())
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	inserted := 0
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				ok, err := store.Insert(ctx, transfer(fmt.Sprintf("sig-%d", i)))
				assert.NoError(t, err)
				if ok {
					mu.Lock()
					inserted++
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, inserted)
	n, err := store.Count(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 50, n)
}

type failingStore struct {
	storage.TransactionStore
	calls int
}

func (f *failingStore) Insert(context.Context, *domain.Transaction) (bool, error) {
	f.calls++
	return false, errors.New("mirror down")
}

func TestMirroredTransactionStore(t *testing.T) {
	primary := memory.NewTransactionStore()
	mirror := memory.NewTransactionStore()
	store := storage.NewMirroredTransactionStore(primary, mirror, nil)
	ctx := context.Background()

	ok, err := store.Insert(ctx, transfer("s1"))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.Insert(ctx, transfer("s1"))
	require.NoError(t, err)
	assert.False(t, ok)

	n, _ := mirror.Count(ctx, 1)
	assert.Equal(t, 1, n)

	broken := &failingStore{}
	store = storage.NewMirroredTransactionStore(memory.NewTransactionStore(), broken, nil)
	ok, err = store.Insert(ctx, transfer("s2"))
	require.NoError(t, err, "mirror failures must not fail the write")
	assert.True(t, ok)
	assert.Equal(t, 1, broken.calls)
}
