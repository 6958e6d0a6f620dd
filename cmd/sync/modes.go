package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"solana-token-sync/internal/api"
	"solana-token-sync/internal/config"
	"solana-token-sync/internal/graph"
	"solana-token-sync/internal/ingestion"
	"solana-token-sync/internal/retry"
	"solana-token-sync/internal/scheduler"
)

type mintWork func(ctx context.Context, mint string) error

// runBackfill pages every configured mint back to its first transaction.
func runBackfill(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) error {
	return supervise(ctx, cfg, log, false, func(engine *ingestion.Engine) mintWork {
		return func(ctx context.Context, mint string) error {
			res, err := engine.RunBackfill(ctx, mint)
			if err != nil {
				return err
			}
			log.WithFields(logrus.Fields{
				"mint":       mint,
				"state":      res.State,
				"pages":      res.Pages,
				"stored":     res.Stored,
				"duplicates": res.Duplicates,
				"skipped":    res.Skipped,
				"capped":     res.Capped,
				"took":       res.Duration.Round(time.Millisecond),
			}).Info("backfill finished")
			return nil
		}
	})
}

// runTail follows new transactions of mints that were backfilled before.
func runTail(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) error {
	return supervise(ctx, cfg, log, true, func(engine *ingestion.Engine) mintWork {
		return engine.RunTail
	})
}

// runSync backfills and then tails every mint.
func runSync(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) error {
	return supervise(ctx, cfg, log, true, func(engine *ingestion.Engine) mintWork {
		return engine.Run
	})
}

// supervise runs work for every mint in parallel next to the metrics server
// and, for long-running modes, the status API and the scheduler. A failing
// mint does not stop the others.
func supervise(ctx context.Context, cfg *config.Config, log logrus.FieldLogger, longRunning bool, build func(*ingestion.Engine) mintWork) error {
	st, err := openStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer st.Close()

	rpc, err := dialRPC(cfg, log)
	if err != nil {
		return err
	}
	engine := newEngine(cfg, rpc, st, log)
	work := build(engine)

	svcCtx, stopServices := context.WithCancel(ctx)
	defer stopServices()
	services, err := startServices(svcCtx, cfg, log, rpc, st, engine, longRunning)
	if err != nil {
		return err
	}

	var (
		mu   sync.Mutex
		errs []error
	)
	var workers errgroup.Group
	for _, mint := range cfg.Sync.Mints {
		workers.Go(func() error {
			err := rerunTransient(ctx, log, mint, cfg.Sync.RerunDelay, work)
			if err == nil || errors.Is(err, context.Canceled) {
				return nil
			}
			log.WithError(err).WithField("mint", mint).Error("sync failed")
			mu.Lock()
			errs = append(errs, fmt.Errorf("%s: %w", mint, err))
			mu.Unlock()
			return nil
		})
	}
	_ = workers.Wait()

	stopServices()
	if err := services.Wait(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// rerunTransient runs work for mint again after delay while it fails with an
// error retry.Classify considers transient. Backfill and tailing resume from
// the stored cursor, so a rerun continues where the failed pass stopped.
func rerunTransient(ctx context.Context, log logrus.FieldLogger, mint string, delay time.Duration, work mintWork) error {
	for {
		err := work(ctx, mint)
		if err == nil || delay <= 0 || ctx.Err() != nil {
			return err
		}
		decision := retry.Classify(err)
		if !decision.IsTransient() {
			return err
		}
		log.WithError(err).WithFields(logrus.Fields{
			"mint":     mint,
			"reason":   decision.Reason,
			"rerun_in": delay,
		}).Warn("sync pass failed, rerunning")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
	}
}

func startServices(ctx context.Context, cfg *config.Config, log logrus.FieldLogger, rpc *rpcStack, st *stores, engine *ingestion.Engine, longRunning bool) (*errgroup.Group, error) {
	g := &errgroup.Group{}

	if enabled(cfg.HTTP.MetricsAddr) {
		g.Go(func() error { return serveMetrics(ctx, cfg.HTTP.MetricsAddr, log) })
	}
	if !longRunning {
		return g, nil
	}

	cache := newClusterCache(cfg, st, log)
	if enabled(cfg.HTTP.APIAddr) {
		srv := api.NewServer(api.Options{
			Sync:      engine,
			Endpoints: rpc.http.Failover().Pool(),
			Clusters:  cache,
			Logger:    log,
		})
		g.Go(func() error { return srv.Run(ctx, cfg.HTTP.APIAddr) })
	}

	if cfg.RPC.ReprobeInterval <= 0 && cfg.Sync.ClusterRefresh <= 0 {
		return g, nil
	}
	sched, err := scheduler.New(log)
	if err != nil {
		return nil, err
	}
	if cfg.RPC.ReprobeInterval > 0 {
		if err := sched.AddReprobe(cfg.RPC.ReprobeInterval, rpc.prober); err != nil {
			return nil, err
		}
	}
	if cfg.Sync.ClusterRefresh > 0 {
		if err := sched.AddClusterRefresh(cfg.Sync.ClusterRefresh, cfg.Sync.Mints, cache); err != nil {
			return nil, err
		}
	}
	sched.Start()
	g.Go(func() error {
		<-ctx.Done()
		return sched.Shutdown()
	})
	return g, nil
}

// runClusters prints wallet statistics and connected clusters of each mint.
func runClusters(ctx context.Context, cfg *config.Config, log logrus.FieldLogger, w io.Writer) error {
	st, err := openStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer st.Close()

	analyzer := newAnalyzer(cfg, st, log)
	builder := graph.NewBuilder(st.transactions, log)

	for _, mint := range cfg.Sync.Mints {
		stats, err := analyzer.Analyze(ctx, mint)
		if err != nil {
			return err
		}
		clusters, err := builder.FindConnectedWallets(ctx, stats.TokenID, cfg.Sync.MaxDepth)
		if err != nil {
			return err
		}

		fmt.Fprintf(w, "%s (%s)\n", mint, orDash(stats.Symbol))
		fmt.Fprintf(w, "  transactions: %d\n  wallets: %d\n  recipients: %d\n  connected wallets: %d in %d clusters\n",
			stats.Transactions, stats.Wallets, stats.Recipients, stats.ConnectedWallets, stats.Clusters)
		if stats.ManyHolders && stats.SuggestedExit != nil {
			fmt.Fprintf(w, "  many holders, suggested exit at %s\n", time.UnixMilli(*stats.SuggestedExit).UTC().Format(time.RFC3339))
		}
		for i, c := range graph.Connected(clusters) {
			fmt.Fprintf(w, "  cluster %d (%d): %s\n", i+1, c.Size(), strings.Join(c.Members, ", "))
		}
	}
	return nil
}

// runDump prints the stored token and its transactions for each mint.
func runDump(ctx context.Context, cfg *config.Config, log logrus.FieldLogger, w io.Writer) error {
	st, err := openStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer st.Close()

	for _, mint := range cfg.Sync.Mints {
		token, err := st.tokens.GetByMint(ctx, mint)
		if err != nil {
			return fmt.Errorf("load token %s: %w", mint, err)
		}
		rows, err := st.transactions.GetByToken(ctx, token.ID)
		if err != nil {
			return fmt.Errorf("load transactions: %w", err)
		}

		fmt.Fprintf(w, "token %d %s symbol=%s decimals=%s supply=%s\n",
			token.ID, token.Mint, orDash(token.SymbolOr("")), intOrDash(token.Decimals), floatOrDash(token.TotalSupply))

		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "TIME\tKIND\tFROM\tTO\tAMOUNT\tINITIAL\tSIGNATURE")
		for _, tx := range rows {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%t\t%s\n",
				time.UnixMilli(tx.Timestamp).UTC().Format(time.RFC3339),
				tx.Kind, tx.From, tx.To, tx.Amount.String(), tx.IsInitialRecipient, tx.Signature)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		fmt.Fprintf(w, "%d transactions\n\n", len(rows))
	}
	return nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func intOrDash(v *int) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprint(*v)
}

func floatOrDash(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprint(*v)
}
