package ingestion

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"solana-token-sync/internal/domain"
	"solana-token-sync/internal/solana"
	"solana-token-sync/internal/storage"
)

// LogWatcher streams log notifications mentioning an address.
type LogWatcher interface {
	Watch(ctx context.Context, address string) <-chan solana.LogNotification
}

// Engine orchestrates backfill and tailing per token. At most one sync runs
// per token; different tokens run independently.
type Engine struct {
	backfiller *Backfiller
	tailer     *Tailer
	cursors    storage.CursorStore
	watcher    LogWatcher
	pause      *PauseToken
	events     *EventLog
	logger     logrus.FieldLogger

	mu     sync.Mutex
	tokens map[string]*sync.Mutex
}

// EngineOptions contains configuration for creating an Engine.
type EngineOptions struct {
	RPC          solana.RPCClient
	Metadata     MetadataSource
	Prices       PriceSource
	Tokens       storage.TokenStore
	Transactions storage.TransactionStore
	Cursors      storage.CursorStore
	Watcher      LogWatcher // optional: wakes the tailer early

	SwapPrograms      []string
	PageSize          int
	MaxPages          int
	PageDelay         time.Duration
	InitialRecipients int
	GapThreshold      time.Duration
	TailPageSize      int
	PollInterval      time.Duration
	EventCapacity     int

	Logger logrus.FieldLogger
}

// NewEngine creates a sync engine. Transaction writes are serialized.
func NewEngine(opts EngineOptions) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	pause := NewPauseToken()
	events := NewEventLog(opts.EventCapacity)

	txs := opts.Transactions
	if _, ok := txs.(*storage.SerializedTransactionStore); !ok {
		txs = storage.NewSerializedTransactionStore(txs)
	}

	return &Engine{
		backfiller: NewBackfiller(BackfillOptions{
			RPC:               opts.RPC,
			Metadata:          opts.Metadata,
			Tokens:            opts.Tokens,
			Transactions:      txs,
			Cursors:           opts.Cursors,
			SwapPrograms:      opts.SwapPrograms,
			PageSize:          opts.PageSize,
			MaxPages:          opts.MaxPages,
			PageDelay:         opts.PageDelay,
			InitialRecipients: opts.InitialRecipients,
			GapThreshold:      opts.GapThreshold,
			Pause:             pause,
			Events:            events,
			Logger:            logger,
		}),
		tailer: NewTailer(TailOptions{
			RPC:          opts.RPC,
			Tokens:       opts.Tokens,
			Transactions: txs,
			Cursors:      opts.Cursors,
			Prices:       opts.Prices,
			SwapPrograms: opts.SwapPrograms,
			PageSize:     opts.TailPageSize,
			PollInterval: opts.PollInterval,
			Pause:        pause,
			Events:       events,
			Logger:       logger,
		}),
		cursors: opts.Cursors,
		watcher: opts.Watcher,
		pause:   pause,
		events:  events,
		logger:  logger,
		tokens:  make(map[string]*sync.Mutex),
	}
}

func (e *Engine) acquire(mint string) (func(), error) {
	e.mu.Lock()
	m, ok := e.tokens[mint]
	if !ok {
		m = &sync.Mutex{}
		e.tokens[mint] = m
	}
	e.mu.Unlock()

	if !m.TryLock() {
		return nil, fmt.Errorf("%w: %s", ErrSyncInProgress, mint)
	}
	return m.Unlock, nil
}

// RunBackfill backfills mint from its stored cursor.
func (e *Engine) RunBackfill(ctx context.Context, mint string) (*BackfillResult, error) {
	release, err := e.acquire(mint)
	if err != nil {
		return nil, err
	}
	defer release()
	return e.backfiller.Run(ctx, mint)
}

// RunTail tails mint until ctx ends or a poll fails.
func (e *Engine) RunTail(ctx context.Context, mint string) error {
	release, err := e.acquire(mint)
	if err != nil {
		return err
	}
	defer release()
	return e.tail(ctx, mint)
}

// TailOnce runs a single tailing poll.
func (e *Engine) TailOnce(ctx context.Context, mint string) (*TailResult, error) {
	release, err := e.acquire(mint)
	if err != nil {
		return nil, err
	}
	defer release()
	return e.tailer.Poll(ctx, mint)
}

// Run backfills mint and then tails it until ctx ends.
func (e *Engine) Run(ctx context.Context, mint string) error {
	release, err := e.acquire(mint)
	if err != nil {
		return err
	}
	defer release()

	if _, err := e.backfiller.Run(ctx, mint); err != nil {
		return fmt.Errorf("backfill %s: %w", mint, err)
	}
	return e.tail(ctx, mint)
}

func (e *Engine) tail(ctx context.Context, mint string) error {
	var wake <-chan solana.LogNotification
	if e.watcher != nil {
		wake = e.watcher.Watch(ctx, mint)
	}
	err := e.tailer.Run(ctx, mint, wake)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Cursor returns the stored cursor of mint.
func (e *Engine) Cursor(ctx context.Context, mint string) (*domain.SyncCursor, error) {
	return e.cursors.Get(ctx, mint)
}

// Events returns up to n recent progress events of mint, oldest first.
func (e *Engine) Events(mint string, n int) []Event {
	return e.events.Recent(mint, n)
}

// Pause stops all sync loops at their next iteration boundary.
func (e *Engine) Pause() {
	e.pause.Pause()
	e.logger.Info("sync paused")
}

// Resume continues paused sync loops.
func (e *Engine) Resume() {
	e.pause.Resume()
	e.logger.Info("sync resumed")
}

// Paused reports whether sync loops are paused.
func (e *Engine) Paused() bool {
	return e.pause.Paused()
}
