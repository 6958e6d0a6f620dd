// Package graph derives wallet clusters from stored token movements.
package graph

import (
	"context"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"solana-token-sync/internal/domain"
)

// DefaultMaxDepth is the hop bound used when callers do not choose one.
const DefaultMaxDepth = 5

// EdgeSource provides the wallet relations of a token.
type EdgeSource interface {
	Edges(ctx context.Context, tokenID int64) ([]domain.WalletEdge, error)
}

// Builder finds depth-bounded connected components of the wallet graph.
type Builder struct {
	edges  EdgeSource
	logger logrus.FieldLogger
}

// NewBuilder creates a graph builder over edges.
func NewBuilder(edges EdgeSource, logger logrus.FieldLogger) *Builder {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Builder{edges: edges, logger: logger}
}

// FindConnectedWallets returns one cluster per breadth-first search over the
// undirected wallet graph of tokenID. Seeds are taken in order of first
// appearance in the edge list; a search does not expand wallets maxDepth hops
// from its seed, so wallets farther away seed clusters of their own.
// The result therefore depends on edge order: a hub seen first gathers all of
// its neighbors at depth 1, while a hub first seen as the target of w1 is
// reached at depth 1 from w1 and not expanded, leaving its other neighbors as
// singletons. Singletons are included. Members are sorted.
func (b *Builder) FindConnectedWallets(ctx context.Context, tokenID int64, maxDepth int) ([]domain.WalletCluster, error) {
	edges, err := b.edges.Edges(ctx, tokenID)
	if err != nil {
		return nil, fmt.Errorf("load wallet edges: %w", err)
	}

	g := newAdjacency(edges)
	clusters := g.components(maxDepth)

	b.logger.WithFields(logrus.Fields{
		"token_id":  tokenID,
		"edges":     len(edges),
		"wallets":   len(g.order),
		"clusters":  len(clusters),
		"max_depth": maxDepth,
	}).Debug("wallet graph built")
	return clusters, nil
}

type adjacency struct {
	order     []string
	neighbors map[string][]string
}

func newAdjacency(edges []domain.WalletEdge) *adjacency {
	g := &adjacency{neighbors: make(map[string][]string)}
	for _, e := range edges {
		if !isKnown(e.From) || !isKnown(e.To) {
			continue
		}
		g.link(e.From, e.To)
		g.link(e.To, e.From)
	}
	return g
}

func isKnown(addr string) bool {
	return addr != "" && addr != domain.UnknownAddress
}

func (g *adjacency) link(from, to string) {
	if _, ok := g.neighbors[from]; !ok {
		g.order = append(g.order, from)
	}
	g.neighbors[from] = append(g.neighbors[from], to)
}

type hop struct {
	wallet string
	depth  int
}

func (g *adjacency) components(maxDepth int) []domain.WalletCluster {
	visited := make(map[string]bool, len(g.order))
	var clusters []domain.WalletCluster

	for _, seed := range g.order {
		if visited[seed] {
			continue
		}
		visited[seed] = true
		members := []string{seed}
		queue := []hop{{wallet: seed}}

		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			if cur.depth >= maxDepth {
				continue
			}
			for _, n := range g.neighbors[cur.wallet] {
				if visited[n] {
					continue
				}
				visited[n] = true
				members = append(members, n)
				queue = append(queue, hop{wallet: n, depth: cur.depth + 1})
			}
		}

		sort.Strings(members)
		clusters = append(clusters, domain.WalletCluster{Members: members})
	}
	return clusters
}

// Connected keeps clusters with more than one wallet.
func Connected(clusters []domain.WalletCluster) []domain.WalletCluster {
	var out []domain.WalletCluster
	for _, c := range clusters {
		if c.Size() > 1 {
			out = append(out, c)
		}
	}
	return out
}

// ConnectedCount sums the sizes of clusters with more than one wallet.
func ConnectedCount(clusters []domain.WalletCluster) int {
	n := 0
	for _, c := range Connected(clusters) {
		n += c.Size()
	}
	return n
}
