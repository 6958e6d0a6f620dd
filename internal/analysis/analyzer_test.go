package analysis

import (
	"context"
	"fmt"
	"io"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-token-sync/internal/domain"
	"solana-token-sync/internal/ingestion/stub"
	"solana-token-sync/internal/storage/memory"
)

type fixture struct {
	tokens *memory.TokenStore
	txs    *memory.TransactionStore
	token  *domain.Token
	seq    int
}

func newFixture(t *testing.T) *fixture {
	tokens := memory.NewTokenStore()
	token, err := tokens.Upsert(context.Background(), "mint")
	require.NoError(t, err)
	return &fixture{tokens: tokens, txs: memory.NewTransactionStore(), token: token}
}

func (f *fixture) add(t *testing.T, kind domain.Kind, from, to string, amount int64, ts int64, initial bool) {
	t.Helper()
	f.seq++
	_, err := f.txs.Insert(context.Background(), &domain.Transaction{
		TokenID:            f.token.ID,
		Signature:          fmt.Sprintf("sig-%d", f.seq),
		Timestamp:          ts,
		Kind:               kind,
		From:               from,
		To:                 to,
		Amount:             decimal.NewFromInt(amount),
		IsInitialRecipient: initial,
	})
	require.NoError(t, err)
}

func (f *fixture) analyzer(opts Options) *Analyzer {
	opts.Tokens = f.tokens
	opts.Transactions = f.txs
	l := logrus.New()
	l.SetOutput(io.Discard)
	opts.Logger = l
	return NewAnalyzer(opts)
}

func TestAnalyze_CountsWalletsAndClusters(t *testing.T) {
	f := newFixture(t)
	f.add(t, domain.KindTransfer, "minter", "alice", 10, 1000, true)
	f.add(t, domain.KindTransfer, "alice", "bob", 5, 2000, false)
	f.add(t, domain.KindTransfer, domain.UnknownAddress, "carol", 7, 3000, true)
	f.add(t, domain.KindSwap, "pool", "dave", 3, 4000, false)
	f.add(t, domain.KindTransfer, "erin", "frank", 0, 5000, false)

	stats, err := f.analyzer(Options{}).Analyze(context.Background(), "mint")
	require.NoError(t, err)

	assert.Equal(t, 5, stats.Transactions)
	assert.Equal(t, 8, stats.Wallets)
	assert.Equal(t, 3, stats.Recipients, "alice, bob and carol received positive transfers")
	assert.Equal(t, 3, stats.Clusters)
	assert.Equal(t, 7, stats.ConnectedWallets)
	assert.Equal(t, []string{"alice", "carol"}, stats.InitialRecipients)
	assert.False(t, stats.ManyHolders)
	assert.Nil(t, stats.SuggestedExit)
}

func TestAnalyze_ManyHoldersSuggestsExit(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 4; i++ {
		f.add(t, domain.KindTransfer, "minter", fmt.Sprintf("w%d", i), 1, int64(1000*(i+1)), false)
	}
	f.add(t, domain.KindSwap, "pool", "w0", 1, 99_000, false)

	stats, err := f.analyzer(Options{HolderThreshold: 4}).Analyze(context.Background(), "mint")
	require.NoError(t, err)

	assert.True(t, stats.ManyHolders)
	require.NotNil(t, stats.SuggestedExit)
	assert.Equal(t, int64(4000), *stats.SuggestedExit)
	assert.NotEmpty(t, stats.Reasons)
}

func TestAnalyze_HoldingsOfInitialRecipients(t *testing.T) {
	f := newFixture(t)
	f.add(t, domain.KindTransfer, "minter", "alice", 10, 1000, true)
	f.add(t, domain.KindTransfer, "minter", "bob", 10, 2000, false)

	balances := stub.NewStubBalanceSource(map[string]decimal.Decimal{
		"alice": decimal.NewFromInt(8),
		"bob":   decimal.NewFromInt(10),
	})
	stats, err := f.analyzer(Options{Balances: balances}).Analyze(context.Background(), "mint")
	require.NoError(t, err)

	require.Len(t, stats.Holdings, 1)
	assert.True(t, decimal.NewFromInt(8).Equal(stats.Holdings["alice"]))
}

func TestAnalyze_UnknownToken(t *testing.T) {
	f := newFixture(t)

	_, err := f.analyzer(Options{}).Analyze(context.Background(), "other")
	assert.Error(t, err)
}
