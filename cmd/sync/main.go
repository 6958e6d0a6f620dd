// Command sync backfills and tails token transactions of Solana mints,
// and reports wallet clusters from the stored history.
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"solana-token-sync/internal/config"
	"solana-token-sync/internal/ingestion"
	"solana-token-sync/internal/logging"
)

// Swap program aliases mapped to program IDs.
var dexAliases = map[string][]string{
	"raydium": {ingestion.RaydiumAMMV4, ingestion.RaydiumCPMM, ingestion.RaydiumCLMM},
	"orca":    {ingestion.OrcaWhirlpool},
	"jupiter": {ingestion.JupiterV6},
	"pumpfun": {ingestion.PumpFun},
	"meteora": {ingestion.MeteoraDLMM, ingestion.MeteoraPools},
}

const shutdownGrace = 30 * time.Second

func main() {
	configPath := flag.String("config", "", "Path to a YAML config file")
	mode := flag.String("mode", "run", "Mode: backfill, tail, run, clusters, or dump")
	mints := flag.String("mint", "", "Comma-separated mint addresses (overrides sync.mints)")
	rpcEndpoints := flag.String("rpc-endpoints", "", "Comma-separated RPC endpoints in preference order")
	wsEndpoint := flag.String("ws-endpoint", "", "WebSocket endpoint for log notifications")
	backend := flag.String("backend", "", "Storage backend: memory or postgres")
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL connection string")
	dex := flag.String("dex", "", "Comma-separated swap program aliases (raydium, orca, jupiter, pumpfun, meteora)")
	depth := flag.Int("depth", 0, "Wallet graph depth for clusters mode (0 uses sync.max_depth)")
	apiAddr := flag.String("api-addr", "", "Status API address (\"off\" disables)")
	metricsAddr := flag.String("metrics-addr", "", "Prometheus metrics address (\"off\" disables)")
	logLevel := flag.String("log-level", "", "Log level")

	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logrus.Fatalf("load config: %v", err)
	}

	// Flags override file and environment values only when set.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "mint":
			cfg.Sync.Mints = splitList(*mints)
		case "rpc-endpoints":
			cfg.RPC.Endpoints = splitList(*rpcEndpoints)
		case "ws-endpoint":
			cfg.RPC.WSEndpoint = *wsEndpoint
		case "backend":
			cfg.Storage.Backend = *backend
		case "postgres-dsn":
			cfg.Storage.PostgresDSN = *postgresDSN
		case "dex":
			cfg.Sync.SwapPrograms = resolvePrograms(*dex)
		case "depth":
			if *depth > 0 {
				cfg.Sync.MaxDepth = *depth
			}
		case "api-addr":
			cfg.HTTP.APIAddr = *apiAddr
		case "metrics-addr":
			cfg.HTTP.MetricsAddr = *metricsAddr
		case "log-level":
			cfg.Log.Level = *logLevel
		}
	})
	if err := cfg.Validate(); err != nil {
		logrus.Fatal(err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		logrus.Fatalf("setup logging: %v", err)
	}
	log := logger.WithField("mode", *mode)

	if len(cfg.Sync.Mints) == 0 {
		log.Fatal("no mints configured: use -mint or sync.mints")
	}

	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	done := make(chan struct{})

	go func() {
		select {
		case sig := <-sigCh:
			log.Infof("received signal %v, shutting down", sig)
			cancel()
		case <-done:
			return
		}

		select {
		case sig := <-sigCh:
			log.Warnf("received second signal %v, forcing exit", sig)
			os.Exit(1)
		case <-time.After(shutdownGrace):
			log.Errorf("graceful shutdown timed out after %s, forcing exit", shutdownGrace)
			os.Exit(1)
		case <-done:
		}
	}()

	switch *mode {
	case "backfill":
		err = runBackfill(ctx, cfg, log)
	case "tail":
		err = runTail(ctx, cfg, log)
	case "run":
		err = runSync(ctx, cfg, log)
	case "clusters":
		err = runClusters(ctx, cfg, log, os.Stdout)
	case "dump":
		err = runDump(ctx, cfg, log, os.Stdout)
	default:
		err = errors.New("unknown mode: " + *mode)
	}

	close(done)
	cancel()

	if err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("error: %v", err)
	}
	log.Info("shutdown complete")
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// resolvePrograms expands swap program aliases. Unknown entries are taken as
// literal program IDs.
func resolvePrograms(dex string) []string {
	seen := make(map[string]bool)
	var list []string
	for _, alias := range splitList(dex) {
		ids, ok := dexAliases[strings.ToLower(alias)]
		if !ok {
			ids = []string{alias}
		}
		for _, id := range ids {
			if !seen[id] {
				seen[id] = true
				list = append(list, id)
			}
		}
	}
	return list
}

func enabled(addr string) bool {
	return addr != "" && addr != "off"
}
