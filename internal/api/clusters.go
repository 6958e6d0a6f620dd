package api

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"solana-token-sync/internal/analysis"
	"solana-token-sync/internal/domain"
	"solana-token-sync/internal/graph"
	"solana-token-sync/internal/storage"
)

// Snapshot is the last computed wallet picture of a mint.
type Snapshot struct {
	Stats     *analysis.Stats        `json:"stats"`
	Clusters  []domain.WalletCluster `json:"clusters"`
	Depth     int                    `json:"depth"`
	UpdatedAt time.Time              `json:"updated_at"`
}

// ClusterCache keeps per-mint snapshots. Refresh recomputes one mint and is
// driven by the scheduler; reads fall back to a live computation on a miss.
type ClusterCache struct {
	tokens   storage.TokenStore
	builder  *graph.Builder
	analyzer *analysis.Analyzer
	depth    int
	logger   logrus.FieldLogger

	mu        sync.RWMutex
	snapshots map[string]*Snapshot
}

// NewClusterCache creates an empty cache. depth <= 0 uses graph.DefaultMaxDepth.
func NewClusterCache(tokens storage.TokenStore, transactions storage.TransactionStore, analyzer *analysis.Analyzer, depth int, logger logrus.FieldLogger) *ClusterCache {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if depth <= 0 {
		depth = graph.DefaultMaxDepth
	}
	return &ClusterCache{
		tokens:    tokens,
		builder:   graph.NewBuilder(transactions, logger),
		analyzer:  analyzer,
		depth:     depth,
		logger:    logger,
		snapshots: make(map[string]*Snapshot),
	}
}

// Depth returns the default traversal depth of cached snapshots.
func (c *ClusterCache) Depth() int {
	return c.depth
}

// Refresh recomputes the snapshot of mint.
func (c *ClusterCache) Refresh(ctx context.Context, mint string) error {
	_, err := c.refresh(ctx, mint)
	return err
}

func (c *ClusterCache) refresh(ctx context.Context, mint string) (*Snapshot, error) {
	stats, err := c.analyzer.Analyze(ctx, mint)
	if err != nil {
		return nil, err
	}
	clusters, err := c.builder.FindConnectedWallets(ctx, stats.TokenID, c.depth)
	if err != nil {
		return nil, fmt.Errorf("clusters of %s: %w", mint, err)
	}
	snap := &Snapshot{Stats: stats, Clusters: clusters, Depth: c.depth, UpdatedAt: time.Now().UTC()}

	c.mu.Lock()
	c.snapshots[mint] = snap
	c.mu.Unlock()

	c.logger.WithFields(logrus.Fields{
		"mint":     mint,
		"clusters": len(clusters),
		"wallets":  stats.Wallets,
	}).Debug("cluster snapshot refreshed")
	return snap, nil
}

// Snapshot returns the cached snapshot of mint, computing it on a miss.
func (c *ClusterCache) Snapshot(ctx context.Context, mint string) (*Snapshot, error) {
	c.mu.RLock()
	snap, ok := c.snapshots[mint]
	c.mu.RUnlock()
	if ok {
		return snap, nil
	}
	return c.refresh(ctx, mint)
}

// Clusters returns the clusters of mint at depth. The default depth is
// served from the cache; other depths are computed live and not cached.
func (c *ClusterCache) Clusters(ctx context.Context, mint string, depth int) ([]domain.WalletCluster, error) {
	if depth == c.depth {
		snap, err := c.Snapshot(ctx, mint)
		if err != nil {
			return nil, err
		}
		return snap.Clusters, nil
	}
	token, err := c.tokens.GetByMint(ctx, mint)
	if err != nil {
		return nil, fmt.Errorf("load token %s: %w", mint, err)
	}
	return c.builder.FindConnectedWallets(ctx, token.ID, depth)
}
