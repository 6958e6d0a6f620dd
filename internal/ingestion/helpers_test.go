package ingestion

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"solana-token-sync/internal/domain"
	"solana-token-sync/internal/solana"
	"solana-token-sync/internal/solana/stub"
	"solana-token-sync/internal/storage/memory"
)

const testMint = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"

// baseTime is the block time (seconds) of slot 0 in fixtures.
const baseTime = int64(1_700_000_000)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func tokenBalance(idx int, owner, amount string) solana.TokenBalance {
	return solana.TokenBalance{
		AccountIndex:  idx,
		Mint:          testMint,
		Owner:         owner,
		UITokenAmount: solana.UITokenAmount{Amount: amount},
	}
}

func newTx(sig string, slot int64, keys ...string) *solana.Transaction {
	bt := baseTime + slot
	tx := &solana.Transaction{
		Signature:   sig,
		Slot:        slot,
		BlockTime:   &bt,
		Meta:        &solana.TransactionMeta{},
		Transaction: &solana.TransactionEnvelope{Signatures: []string{sig}},
	}
	for _, k := range keys {
		tx.Transaction.Message.AccountKeys = append(tx.Transaction.Message.AccountKeys, solana.AccountKey{Pubkey: k})
	}
	return tx
}

// transferTx moves raw units of testMint from one owner to another.
func transferTx(sig string, slot int64, from, to string, raw int64) *solana.Transaction {
	tx := newTx(sig, slot, "fee-payer", "ata-from", "ata-to")
	amount := strconv.FormatInt(raw, 10)
	tx.Meta.PreTokenBalances = []solana.TokenBalance{
		tokenBalance(1, from, amount),
		tokenBalance(2, to, "0"),
	}
	tx.Meta.PostTokenBalances = []solana.TokenBalance{
		tokenBalance(1, from, "0"),
		tokenBalance(2, to, amount),
	}
	return tx
}

// swapTx is a Raydium swap crediting trader with raw units of testMint.
func swapTx(sig string, slot int64, pool, trader string, raw int64) *solana.Transaction {
	tx := newTx(sig, slot, trader, RaydiumAMMV4)
	tx.Transaction.Message.Instructions = []solana.Instruction{{ProgramID: RaydiumAMMV4}}
	amount := strconv.FormatInt(raw, 10)
	tx.Meta.PreTokenBalances = []solana.TokenBalance{tokenBalance(2, pool, amount)}
	tx.Meta.PostTokenBalances = []solana.TokenBalance{
		tokenBalance(2, pool, "0"),
		tokenBalance(3, trader, amount),
	}
	return tx
}

// emptyTx touches the mint address without moving any tokens.
func emptyTx(sig string, slot int64) *solana.Transaction {
	return newTx(sig, slot, "fee-payer")
}

type fixture struct {
	rpc     *stub.RPCClient
	tokens  *memory.TokenStore
	txs     *memory.TransactionStore
	cursors *memory.CursorStore
}

func newFixture(decimals int) *fixture {
	f := &fixture{
		rpc:     stub.NewRPCClient(),
		tokens:  memory.NewTokenStore(),
		txs:     memory.NewTransactionStore(),
		cursors: memory.NewCursorStore(),
	}
	f.rpc.SetSupply(testMint, "1000000", decimals)
	return f
}

// add publishes transactions in chronological order; the newest ends up first.
func (f *fixture) add(txs ...*solana.Transaction) {
	for _, tx := range txs {
		f.rpc.AddTransaction(testMint, tx)
	}
}

// transfers publishes n transfers from "minter" to distinct recipients
// starting at slot.
func (f *fixture) transfers(n int, slot int64) {
	for i := 0; i < n; i++ {
		f.add(transferTx(fmt.Sprintf("sig-%03d", slot+int64(i)), slot+int64(i), "minter", fmt.Sprintf("wallet-%03d", slot+int64(i)), 100))
	}
}

func (f *fixture) backfillOptions() BackfillOptions {
	return BackfillOptions{
		RPC:          f.rpc,
		Tokens:       f.tokens,
		Transactions: f.txs,
		Cursors:      f.cursors,
		PageDelay:    -1,
		Logger:       quietLogger(),
	}
}

func (f *fixture) tailOptions() TailOptions {
	return TailOptions{
		RPC:          f.rpc,
		Tokens:       f.tokens,
		Transactions: f.txs,
		Cursors:      f.cursors,
		PollInterval: time.Hour,
		Logger:       quietLogger(),
	}
}

func (f *fixture) rows(t *testing.T) []*domain.Transaction {
	t.Helper()
	token, err := f.tokens.GetByMint(context.Background(), testMint)
	if err != nil {
		t.Fatalf("GetByMint failed: %v", err)
	}
	rows, err := f.txs.GetByToken(context.Background(), token.ID)
	if err != nil {
		t.Fatalf("GetByToken failed: %v", err)
	}
	return rows
}

// recordingCursors keeps every saved cursor.
type recordingCursors struct {
	*memory.CursorStore
	mu    sync.Mutex
	saved []domain.SyncCursor
}

func (r *recordingCursors) Save(ctx context.Context, c *domain.SyncCursor) error {
	r.mu.Lock()
	r.saved = append(r.saved, *c)
	r.mu.Unlock()
	return r.CursorStore.Save(ctx, c)
}
