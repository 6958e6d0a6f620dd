package ingestion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"solana-token-sync/internal/domain"
	"solana-token-sync/internal/observability"
	"solana-token-sync/internal/solana"
	"solana-token-sync/internal/storage"
)

// Tail defaults.
const (
	DefaultTailPageSize = 1000
	DefaultPollInterval = 10 * time.Second
)

// Tailer polls for signatures newer than the cursor baseline and stores
// them oldest first.
type Tailer struct {
	rpc          solana.RPCClient
	tokens       storage.TokenStore
	transactions storage.TransactionStore
	cursors      storage.CursorStore
	prices       PriceSource
	swapPrograms []string
	pageSize     int
	interval     time.Duration
	pause        *PauseToken
	events       *EventLog
	logger       logrus.FieldLogger
}

// TailOptions contains configuration for creating a Tailer.
type TailOptions struct {
	RPC          solana.RPCClient
	Tokens       storage.TokenStore
	Transactions storage.TransactionStore
	Cursors      storage.CursorStore
	Prices       PriceSource // optional: fills Value and the market cap ATH
	SwapPrograms []string
	PageSize     int           // default: 1000
	PollInterval time.Duration // default: 10s
	Pause        *PauseToken
	Events       *EventLog
	Logger       logrus.FieldLogger
}

// NewTailer creates a new tailer.
func NewTailer(opts TailOptions) *Tailer {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = DefaultTailPageSize
	}
	interval := opts.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Tailer{
		rpc:          opts.RPC,
		tokens:       opts.Tokens,
		transactions: opts.Transactions,
		cursors:      opts.Cursors,
		prices:       opts.Prices,
		swapPrograms: opts.SwapPrograms,
		pageSize:     pageSize,
		interval:     interval,
		pause:        opts.Pause,
		events:       opts.Events,
		logger:       logger,
	}
}

// TailResult contains statistics from one poll.
type TailResult struct {
	Mint       string
	Fetched    int // new signatures seen
	Stored     int
	Duplicates int
	Skipped    int
	Cursor     domain.SyncCursor
}

// Poll runs one tailing cycle. LastSignature advances only after every new
// signature has been handled; on error the cursor is left untouched and the
// next poll re-reads the same range.
func (t *Tailer) Poll(ctx context.Context, mint string) (*TailResult, error) {
	return t.poll(ctx, mint, t.logger.WithFields(logrus.Fields{"mint": mint, "mode": "tail"}))
}

func (t *Tailer) poll(ctx context.Context, mint string, log *logrus.Entry) (*TailResult, error) {
	result := &TailResult{Mint: mint}

	cursor, err := t.cursors.Get(ctx, mint)
	if errors.Is(err, storage.ErrNotFound) || (err == nil && !cursor.HasBaseline()) {
		return result, ErrNoBaseline
	}
	if err != nil {
		return result, fmt.Errorf("load cursor: %w", err)
	}
	result.Cursor = *cursor

	token, err := t.tokens.GetByMint(ctx, mint)
	if errors.Is(err, storage.ErrNotFound) {
		return result, ErrNoBaseline
	}
	if err != nil {
		return result, fmt.Errorf("load token: %w", err)
	}
	if token.Decimals == nil {
		return result, ErrMissingDecimals
	}

	sigs, err := t.collect(ctx, mint, cursor.LastSignature)
	if err != nil {
		observability.RecordTailPoll("error")
		return result, err
	}
	result.Fetched = len(sigs)
	if len(sigs) == 0 {
		observability.RecordTailPoll("empty")
		return result, nil
	}

	classifier := NewClassifier(mint, *token.Decimals, t.swapPrograms)
	price := t.quote(ctx, token, log)
	symbol := token.SymbolOr(defaultSymbol)

	// sigs are newest first; store oldest first.
	for i := len(sigs) - 1; i >= 0; i-- {
		if err := t.process(ctx, result, token, symbol, classifier, price, sigs[i], log); err != nil {
			observability.RecordTailPoll("error")
			return result, err
		}
	}

	cursor.LastSignature = sigs[0].Signature
	cursor.UpdatedAt = time.Now().UnixMilli()
	if err := t.cursors.Save(ctx, cursor); err != nil {
		observability.RecordTailPoll("error")
		return result, fmt.Errorf("save cursor: %w", err)
	}
	result.Cursor = *cursor

	observability.RecordTailPoll("ok")
	observability.UpdateCursorSlot(mint, sigs[0].Slot)
	observability.MarkSyncSuccess(time.Now().Unix())
	t.events.Record(log, logrus.InfoLevel, "tail: %d new signatures, %d stored, %d skipped",
		result.Fetched, result.Stored, result.Skipped)
	return result, nil
}

// collect pages backwards from the newest signature down to until (exclusive).
func (t *Tailer) collect(ctx context.Context, mint, until string) ([]solana.SignatureInfo, error) {
	var all []solana.SignatureInfo
	before := ""
	for {
		page, err := t.rpc.GetSignaturesForAddress(ctx, mint, &solana.SignaturesOpts{
			Before: before,
			Until:  until,
			Limit:  t.pageSize,
		})
		if err != nil {
			return nil, fmt.Errorf("get signatures until %q: %w", until, err)
		}
		all = append(all, page...)
		if len(page) < t.pageSize {
			return all, nil
		}
		before = page[len(page)-1].Signature
	}
}

func (t *Tailer) process(ctx context.Context, result *TailResult, token *domain.Token, symbol string,
	classifier *Classifier, price *decimal.Decimal, sig solana.SignatureInfo, log *logrus.Entry) error {
	log = log.WithField("signature", sig.Signature)

	tx, err := t.rpc.GetTransaction(ctx, sig.Signature)
	if err != nil {
		return fmt.Errorf("get transaction %s: %w", sig.Signature, err)
	}
	if tx == nil {
		result.Skipped++
		observability.RecordTransaction("tail", "skipped")
		return nil
	}
	mv, err := classifier.Classify(tx)
	if errors.Is(err, ErrDecodeIncomplete) {
		result.Skipped++
		observability.RecordTransaction("tail", "skipped")
		log.WithError(err).Debug("skipping transaction")
		return nil
	}
	if err != nil {
		return err
	}

	row := &domain.Transaction{
		TokenID:   token.ID,
		Signature: sig.Signature,
		Slot:      tx.Slot,
		Timestamp: blockTimeMillis(tx, sig),
		Kind:      mv.Kind,
		From:      mv.From,
		To:        mv.To,
		Amount:    mv.Amount,
		Symbol:    symbol,
		CreatedAt: time.Now().UnixMilli(),
	}
	if price != nil {
		v, _ := mv.Amount.Mul(*price).Float64()
		row.Value = &v
	}

	inserted, err := t.transactions.Insert(ctx, row)
	if err != nil {
		return fmt.Errorf("store transaction %s: %w", sig.Signature, err)
	}
	if !inserted {
		result.Duplicates++
		observability.RecordTransaction("tail", "duplicate")
		return nil
	}
	result.Stored++
	observability.RecordTransaction("tail", "stored")
	return nil
}

// quote fetches the current price and raises the market cap ATH.
// Price failures never fail the poll.
func (t *Tailer) quote(ctx context.Context, token *domain.Token, log *logrus.Entry) *decimal.Decimal {
	if t.prices == nil {
		return nil
	}
	price, err := t.prices.Price(ctx, token.Mint)
	if err != nil {
		log.WithError(err).Warn("price unavailable")
		return nil
	}
	if token.TotalSupply != nil {
		mcap, _ := price.Mul(decimal.NewFromFloat(*token.TotalSupply)).Float64()
		if err := t.tokens.UpdateMcapATH(ctx, token.ID, mcap); err != nil {
			log.WithError(err).Warn("update market cap ATH")
		}
	}
	return &price
}

// Run polls until ctx ends. A notification on wake starts the next poll
// early; wake may be nil. The pause token is honored between polls.
func (t *Tailer) Run(ctx context.Context, mint string, wake <-chan solana.LogNotification) error {
	log := t.logger.WithFields(logrus.Fields{"mint": mint, "run_id": uuid.NewString(), "mode": "tail"})
	t.events.Record(log, logrus.InfoLevel, "tailing started")

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		case n, ok := <-wake:
			if !ok {
				wake = nil
				continue
			}
			log.WithField("signature", n.Signature).Debug("woken by log notification")
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
		}

		if err := t.pause.Wait(ctx); err != nil {
			return err
		}
		if _, err := t.poll(ctx, mint, log); err != nil {
			if !errors.Is(err, ErrNoBaseline) && ctx.Err() == nil {
				t.events.Record(log.WithError(err), logrus.ErrorLevel, "tail poll failed")
			}
			return err
		}
		timer.Reset(t.interval)
	}
}
