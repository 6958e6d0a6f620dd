package ingestion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"solana-token-sync/internal/domain"
	"solana-token-sync/internal/observability"
	"solana-token-sync/internal/solana"
	"solana-token-sync/internal/storage"
)

// Backfill defaults.
const (
	DefaultPageSize          = 100
	DefaultMaxPages          = 100
	DefaultPageDelay         = 10 * time.Second
	DefaultInitialRecipients = 20
	DefaultGapThreshold      = time.Hour

	defaultSymbol = "UNKNOWN"
)

// BackfillState is the phase of a backfill run.
type BackfillState string

const (
	StateFetchingMetadata BackfillState = "fetching_metadata"
	StateBackfillPaging   BackfillState = "backfill_paging"
	StateDone             BackfillState = "done"
	StateAborted          BackfillState = "aborted"
)

// Backfiller walks a mint's signature history from newest to oldest and
// stores every classified transaction.
type Backfiller struct {
	rpc               solana.RPCClient
	metadata          MetadataSource
	tokens            storage.TokenStore
	transactions      storage.TransactionStore
	cursors           storage.CursorStore
	swapPrograms      []string
	pageSize          int
	maxPages          int
	pageDelay         time.Duration
	initialRecipients int
	gapThreshold      time.Duration
	pause             *PauseToken
	events            *EventLog
	logger            logrus.FieldLogger
}

// BackfillOptions contains configuration for creating a Backfiller.
type BackfillOptions struct {
	RPC               solana.RPCClient
	Metadata          MetadataSource // default: RPCMetadataSource over RPC
	Tokens            storage.TokenStore
	Transactions      storage.TransactionStore
	Cursors           storage.CursorStore
	SwapPrograms      []string      // default: DefaultSwapPrograms
	PageSize          int           // default: 100 signatures per page
	MaxPages          int           // default: 100 pages per run
	PageDelay         time.Duration // default: 10s; negative disables pacing
	InitialRecipients int           // default: 20 distinct recipients
	GapThreshold      time.Duration // default: 1h
	Pause             *PauseToken
	Events            *EventLog
	Logger            logrus.FieldLogger
}

// NewBackfiller creates a new historical data backfiller.
func NewBackfiller(opts BackfillOptions) *Backfiller {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	metadata := opts.Metadata
	if metadata == nil {
		metadata = NewRPCMetadataSource(opts.RPC, logger)
	}

	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	maxPages := opts.MaxPages
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}
	pageDelay := opts.PageDelay
	if pageDelay == 0 {
		pageDelay = DefaultPageDelay
	}
	recipients := opts.InitialRecipients
	if recipients <= 0 {
		recipients = DefaultInitialRecipients
	}
	gap := opts.GapThreshold
	if gap <= 0 {
		gap = DefaultGapThreshold
	}

	return &Backfiller{
		rpc:               opts.RPC,
		metadata:          metadata,
		tokens:            opts.Tokens,
		transactions:      opts.Transactions,
		cursors:           opts.Cursors,
		swapPrograms:      opts.SwapPrograms,
		pageSize:          pageSize,
		maxPages:          maxPages,
		pageDelay:         pageDelay,
		initialRecipients: recipients,
		gapThreshold:      gap,
		pause:             opts.Pause,
		events:            opts.Events,
		logger:            logger,
	}
}

// BackfillResult contains statistics from a backfill run.
type BackfillResult struct {
	RunID      string
	Mint       string
	TokenID    int64
	State      BackfillState
	Capped     bool // stopped at the page cap with history left
	Pages      int
	Fetched    int // transactions resolved
	Stored     int
	Duplicates int
	Skipped    int // unrecognizable or unknown to the node
	Gaps       int
	Cursor     domain.SyncCursor
	Duration   time.Duration
}

// backfillRun is the mutable state of one backfill.
type backfillRun struct {
	result     *BackfillResult
	log        *logrus.Entry
	token      *domain.Token
	symbol     string
	classifier *Classifier
	cursor     *domain.SyncCursor
	recipients map[string]struct{}
	lastTs     int64
}

// Run backfills mint, resuming from the stored cursor. The cursor is saved
// after every completed page, so an aborted run can be restarted.
func (b *Backfiller) Run(ctx context.Context, mint string) (*BackfillResult, error) {
	start := time.Now()
	result := &BackfillResult{
		RunID: uuid.NewString(),
		Mint:  mint,
		State: StateFetchingMetadata,
	}
	run := &backfillRun{
		result: result,
		log:    b.logger.WithFields(logrus.Fields{"mint": mint, "run_id": result.RunID, "mode": "backfill"}),
	}

	err := b.run(ctx, run)
	result.Duration = time.Since(start)
	if err != nil {
		result.State = StateAborted
		observability.RecordBackfillRun(string(result.State))
		b.events.Record(run.log.WithError(err), logrus.ErrorLevel,
			"backfill aborted after %d pages", result.Pages)
		return result, err
	}

	result.State = StateDone
	observability.RecordBackfillRun(string(result.State))
	observability.MarkSyncSuccess(time.Now().Unix())
	b.events.Record(run.log, logrus.InfoLevel,
		"backfill done: %d pages, %d stored, %d duplicates, %d skipped, capped=%t",
		result.Pages, result.Stored, result.Duplicates, result.Skipped, result.Capped)
	return result, nil
}

func (b *Backfiller) run(ctx context.Context, run *backfillRun) error {
	mint := run.result.Mint

	meta, err := b.metadata.Fetch(ctx, mint)
	if err != nil {
		return fmt.Errorf("fetch metadata: %w", err)
	}
	if !meta.HasDecimals() {
		return ErrMissingDecimals
	}

	token, err := b.tokens.Upsert(ctx, mint)
	if err != nil {
		return fmt.Errorf("register token: %w", err)
	}
	if err := b.tokens.UpdateMetadata(ctx, token.ID, meta); err != nil {
		return fmt.Errorf("update token metadata: %w", err)
	}
	run.token = token
	run.result.TokenID = token.ID
	run.symbol = defaultSymbol
	if meta.Symbol != nil && *meta.Symbol != "" {
		run.symbol = *meta.Symbol
	}
	run.classifier = NewClassifier(mint, *meta.Decimals, b.swapPrograms)
	b.events.Record(run.log, logrus.InfoLevel, "metadata: symbol=%s decimals=%d", run.symbol, *meta.Decimals)

	run.cursor, err = b.loadCursor(ctx, mint)
	if err != nil {
		return err
	}

	seeded, err := b.transactions.InitialRecipients(ctx, token.ID)
	if err != nil {
		return fmt.Errorf("load initial recipients: %w", err)
	}
	run.recipients = make(map[string]struct{}, b.initialRecipients)
	for _, r := range seeded {
		run.recipients[r] = struct{}{}
	}

	run.result.State = StateBackfillPaging
	for page := 0; ; page++ {
		if page == b.maxPages {
			run.result.Capped = true
			run.log.WithField("pages", page).Warn("backfill page cap reached")
			break
		}
		if err := b.pause.Wait(ctx); err != nil {
			return err
		}
		done, err := b.page(ctx, run)
		if err != nil {
			return err
		}
		if done {
			break
		}
	}
	run.result.Cursor = *run.cursor
	return nil
}

func (b *Backfiller) loadCursor(ctx context.Context, mint string) (*domain.SyncCursor, error) {
	c, err := b.cursors.Get(ctx, mint)
	if errors.Is(err, storage.ErrNotFound) {
		return &domain.SyncCursor{Mint: mint}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load cursor: %w", err)
	}
	return c, nil
}

// page processes one page of signatures older than the cursor. It reports
// done when history is exhausted. The pacing delay runs on every exit.
func (b *Backfiller) page(ctx context.Context, run *backfillRun) (done bool, err error) {
	defer b.pace(ctx)

	sigs, err := b.rpc.GetSignaturesForAddress(ctx, run.result.Mint, &solana.SignaturesOpts{
		Before: run.cursor.Before,
		Limit:  b.pageSize,
	})
	if err != nil {
		return false, fmt.Errorf("get signatures before %q: %w", run.cursor.Before, err)
	}
	if len(sigs) == 0 {
		return true, nil
	}

	stored := 0
	for _, sig := range sigs {
		ok, err := b.process(ctx, run, sig)
		if err != nil {
			return false, err
		}
		if ok {
			stored++
		}
	}

	run.cursor.Before = sigs[len(sigs)-1].Signature
	if run.cursor.LastSignature == "" {
		run.cursor.LastSignature = sigs[0].Signature
	}
	run.cursor.UpdatedAt = time.Now().UnixMilli()
	if err := b.cursors.Save(ctx, run.cursor); err != nil {
		return false, fmt.Errorf("save cursor: %w", err)
	}

	run.result.Pages++
	observability.RecordBackfillPage(run.result.Mint)
	observability.UpdateCursorSlot(run.result.Mint, sigs[len(sigs)-1].Slot)
	b.events.Record(run.log, logrus.InfoLevel,
		"page %d: %d signatures, %d stored", run.result.Pages, len(sigs), stored)

	return len(sigs) < b.pageSize, nil
}

// process resolves, classifies and stores one signature. It reports whether
// a new row was written. Only RPC and store failures are returned.
func (b *Backfiller) process(ctx context.Context, run *backfillRun, sig solana.SignatureInfo) (bool, error) {
	log := run.log.WithField("signature", sig.Signature)

	tx, err := b.rpc.GetTransaction(ctx, sig.Signature)
	if err != nil {
		return false, fmt.Errorf("get transaction %s: %w", sig.Signature, err)
	}
	if tx == nil {
		run.result.Skipped++
		observability.RecordTransaction("backfill", "skipped")
		log.Debug("transaction not available")
		return false, nil
	}
	run.result.Fetched++

	mv, err := run.classifier.Classify(tx)
	if err != nil {
		if errors.Is(err, ErrDecodeIncomplete) {
			run.result.Skipped++
			observability.RecordTransaction("backfill", "skipped")
			log.WithError(err).Debug("skipping transaction")
			return false, nil
		}
		return false, err
	}

	ts := blockTimeMillis(tx, sig)
	if run.lastTs != 0 && ts != 0 {
		gap := time.Duration(abs64(run.lastTs-ts)) * time.Millisecond
		if gap > b.gapThreshold {
			run.result.Gaps++
			log.WithField("gap", gap).Info("gap observed between transactions")
		}
	}
	if ts != 0 {
		run.lastTs = ts
	}

	row := &domain.Transaction{
		TokenID:   run.token.ID,
		Signature: sig.Signature,
		Slot:      tx.Slot,
		Timestamp: ts,
		Kind:      mv.Kind,
		From:      mv.From,
		To:        mv.To,
		Amount:    mv.Amount,
		Symbol:    run.symbol,
		CreatedAt: time.Now().UnixMilli(),
	}
	row.IsInitialRecipient = b.flagRecipient(run, row)

	inserted, err := b.transactions.Insert(ctx, row)
	if err != nil {
		return false, fmt.Errorf("store transaction %s: %w", sig.Signature, err)
	}
	if !inserted {
		run.result.Duplicates++
		observability.RecordTransaction("backfill", "duplicate")
		return false, nil
	}
	run.result.Stored++
	observability.RecordTransaction("backfill", "stored")
	log.WithFields(logrus.Fields{
		"kind":   row.Kind,
		"from":   row.From,
		"to":     row.To,
		"amount": row.Amount.String(),
	}).Debug("stored transaction")
	return true, nil
}

// flagRecipient marks transfers to the first distinct recipients in page order.
func (b *Backfiller) flagRecipient(run *backfillRun, row *domain.Transaction) bool {
	if row.Kind != domain.KindTransfer || row.To == domain.UnknownAddress {
		return false
	}
	if _, ok := run.recipients[row.To]; ok {
		return true
	}
	if len(run.recipients) >= b.initialRecipients {
		return false
	}
	run.recipients[row.To] = struct{}{}
	return true
}

func (b *Backfiller) pace(ctx context.Context) {
	if b.pageDelay <= 0 {
		return
	}
	timer := time.NewTimer(b.pageDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func blockTimeMillis(tx *solana.Transaction, sig solana.SignatureInfo) int64 {
	if tx.BlockTime != nil {
		return *tx.BlockTime * 1000
	}
	if sig.BlockTime != nil {
		return *sig.BlockTime * 1000
	}
	return 0
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
