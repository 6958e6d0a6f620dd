package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"solana-token-sync/internal/analysis"
	"solana-token-sync/internal/api"
	"solana-token-sync/internal/config"
	"solana-token-sync/internal/ingestion"
	"solana-token-sync/internal/observability"
	"solana-token-sync/internal/solana"
	"solana-token-sync/internal/storage"
	chstore "solana-token-sync/internal/storage/clickhouse"
	"solana-token-sync/internal/storage/memory"
	pgstore "solana-token-sync/internal/storage/postgres"
	redisstore "solana-token-sync/internal/storage/redis"
)

// stores holds the storage implementations selected by config.
type stores struct {
	tokens       storage.TokenStore
	transactions storage.TransactionStore
	cursors      storage.CursorStore
	closers      []func()
}

func (s *stores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func openStores(ctx context.Context, cfg *config.Config, logger logrus.FieldLogger) (*stores, error) {
	s := &stores{}

	switch cfg.Storage.Backend {
	case "postgres":
		pool, err := pgstore.NewPool(ctx, cfg.Storage.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		s.closers = append(s.closers, pool.Close)
		if err := pool.Migrate(ctx); err != nil {
			s.Close()
			return nil, fmt.Errorf("migrate postgres: %w", err)
		}
		s.tokens = pgstore.NewTokenStore(pool)
		s.transactions = pgstore.NewTransactionStore(pool)
		s.cursors = pgstore.NewCursorStore(pool)
		logger.Info("using postgres storage")
	default:
		s.tokens = memory.NewTokenStore()
		s.transactions = memory.NewTransactionStore()
		s.cursors = memory.NewCursorStore()
		logger.Info("using in-memory storage")
	}

	if cfg.Storage.ClickhouseDSN != "" {
		conn, err := chstore.Open(ctx, cfg.Storage.ClickhouseDSN)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("open clickhouse: %w", err)
		}
		s.closers = append(s.closers, func() { _ = conn.Close() })
		s.transactions = storage.NewMirroredTransactionStore(s.transactions, chstore.NewTransactionStore(conn), logger)
		logger.Info("mirroring transactions to clickhouse")
	}

	if cfg.Storage.RedisAddr != "" {
		cursors, err := redisstore.NewCursorStore(ctx, cfg.Storage.RedisAddr, cfg.Storage.RedisDB)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("open redis: %w", err)
		}
		s.closers = append(s.closers, func() { _ = cursors.Close() })
		s.cursors = cursors
		logger.Info("storing cursors in redis")
	}

	return s, nil
}

// rpcStack is the resilient RPC layer: failover client, health prober and
// the retrying client used by sync.
type rpcStack struct {
	client *ingestion.RetryingClient
	http   *solana.HTTPClient
	prober *solana.HealthProber
}

func dialRPC(cfg *config.Config, logger logrus.FieldLogger) (*rpcStack, error) {
	opts := []solana.ExecutorOption{
		solana.WithTimeout(cfg.RPC.Timeout),
		solana.WithExecutorLogger(logger),
	}
	if cfg.RPC.RateLimit > 0 {
		opts = append(opts, solana.WithRateLimit(cfg.RPC.RateLimit, cfg.RPC.Burst))
	}
	if len(cfg.RPC.TerminalCodes) > 0 {
		opts = append(opts, solana.WithTerminalCodes(cfg.RPC.TerminalCodes...))
	}
	httpClient, err := solana.Dial(cfg.RPC.Endpoints, opts...)
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}

	prober := solana.NewHealthProber(httpClient.Failover(),
		solana.WithProbeInterval(cfg.RPC.ProbeInterval),
		solana.WithProberLogger(logger),
	)
	policy := ingestion.NewRetryPolicy(prober, logger)
	return &rpcStack{
		client: ingestion.NewRetryingClient(httpClient, policy),
		http:   httpClient,
		prober: prober,
	}, nil
}

func newEngine(cfg *config.Config, rpc *rpcStack, st *stores, logger logrus.FieldLogger) *ingestion.Engine {
	var watcher ingestion.LogWatcher
	if cfg.RPC.WSEndpoint != "" {
		watcher = solana.NewLogsWatcher(cfg.RPC.WSEndpoint, nil, logger)
	}
	return ingestion.NewEngine(ingestion.EngineOptions{
		RPC:               rpc.client,
		Metadata:          ingestion.NewRPCMetadataSource(rpc.client, logger),
		Tokens:            st.tokens,
		Transactions:      st.transactions,
		Cursors:           st.cursors,
		Watcher:           watcher,
		SwapPrograms:      cfg.Sync.SwapPrograms,
		PageSize:          cfg.Sync.PageSize,
		MaxPages:          cfg.Sync.MaxPages,
		PageDelay:         cfg.Sync.PageDelay,
		InitialRecipients: cfg.Sync.InitialRecipients,
		GapThreshold:      cfg.Sync.GapThreshold,
		TailPageSize:      cfg.Sync.TailPageSize,
		PollInterval:      cfg.Sync.PollInterval,
		Logger:            logger,
	})
}

func newAnalyzer(cfg *config.Config, st *stores, logger logrus.FieldLogger) *analysis.Analyzer {
	return analysis.NewAnalyzer(analysis.Options{
		Tokens:          st.tokens,
		Transactions:    st.transactions,
		HolderThreshold: cfg.Sync.HolderThreshold,
		MaxDepth:        cfg.Sync.MaxDepth,
		Logger:          logger,
	})
}

func newClusterCache(cfg *config.Config, st *stores, logger logrus.FieldLogger) *api.ClusterCache {
	return api.NewClusterCache(st.tokens, st.transactions, newAnalyzer(cfg, st, logger), cfg.Sync.MaxDepth, logger)
}

// serveMetrics serves /metrics on addr until ctx is done.
func serveMetrics(ctx context.Context, addr string, logger logrus.FieldLogger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		logger.WithField("addr", addr).Info("metrics listening")
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
