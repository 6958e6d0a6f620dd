// Package analysis summarizes the holder distribution of a synced token.
package analysis

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"solana-token-sync/internal/domain"
	"solana-token-sync/internal/graph"
	"solana-token-sync/internal/ingestion"
	"solana-token-sync/internal/storage"
)

// DefaultHolderThreshold is the recipient count that raises the many-holders signal.
const DefaultHolderThreshold = 200

// Stats describes the wallets seen for one token.
type Stats struct {
	TokenID           int64                      `json:"token_id"`
	Mint              string                     `json:"mint"`
	Symbol            string                     `json:"symbol"`
	Transactions      int                        `json:"transactions"`
	Wallets           int                        `json:"wallets"`           // distinct known senders and recipients
	ConnectedWallets  int                        `json:"connected_wallets"` // members of clusters larger than one
	Clusters          int                        `json:"clusters"`          // clusters larger than one
	Recipients        int                        `json:"recipients"`        // distinct transfer recipients with a positive amount
	InitialRecipients []string                   `json:"initial_recipients"`
	Holdings          map[string]decimal.Decimal `json:"holdings,omitempty"` // current balances of initial recipients
	ManyHolders       bool                       `json:"many_holders"`
	SuggestedExit     *int64                     `json:"suggested_exit,omitempty"` // latest transfer time (ms)
	Reasons           []string                   `json:"reasons,omitempty"`
}

// Analyzer computes Stats from stored transactions.
type Analyzer struct {
	tokens       storage.TokenStore
	transactions storage.TransactionStore
	graph        *graph.Builder
	balances     ingestion.BalanceSource
	threshold    int
	maxDepth     int
	logger       logrus.FieldLogger
}

// Options contains configuration for creating an Analyzer.
type Options struct {
	Tokens          storage.TokenStore
	Transactions    storage.TransactionStore
	Balances        ingestion.BalanceSource // optional
	HolderThreshold int                     // default: 200
	MaxDepth        int                     // default: graph.DefaultMaxDepth
	Logger          logrus.FieldLogger
}

// NewAnalyzer creates an analyzer.
func NewAnalyzer(opts Options) *Analyzer {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	threshold := opts.HolderThreshold
	if threshold <= 0 {
		threshold = DefaultHolderThreshold
	}
	depth := opts.MaxDepth
	if depth <= 0 {
		depth = graph.DefaultMaxDepth
	}
	return &Analyzer{
		tokens:       opts.Tokens,
		transactions: opts.Transactions,
		graph:        graph.NewBuilder(opts.Transactions, logger),
		balances:     opts.Balances,
		threshold:    threshold,
		maxDepth:     depth,
		logger:       logger,
	}
}

// Analyze computes the wallet statistics of mint.
func (a *Analyzer) Analyze(ctx context.Context, mint string) (*Stats, error) {
	token, err := a.tokens.GetByMint(ctx, mint)
	if err != nil {
		return nil, fmt.Errorf("load token %s: %w", mint, err)
	}
	rows, err := a.transactions.GetByToken(ctx, token.ID)
	if err != nil {
		return nil, fmt.Errorf("load transactions: %w", err)
	}

	stats := &Stats{
		TokenID:      token.ID,
		Mint:         mint,
		Symbol:       token.SymbolOr(""),
		Transactions: len(rows),
	}

	wallets := make(map[string]struct{})
	recipients := make(map[string]struct{})
	var lastTransfer int64
	for _, tx := range rows {
		for _, w := range []string{tx.From, tx.To} {
			if w != "" && w != domain.UnknownAddress {
				wallets[w] = struct{}{}
			}
		}
		if tx.Kind != domain.KindTransfer {
			continue
		}
		if tx.Timestamp > lastTransfer {
			lastTransfer = tx.Timestamp
		}
		if tx.Amount.IsPositive() && tx.To != domain.UnknownAddress {
			recipients[tx.To] = struct{}{}
		}
	}
	stats.Wallets = len(wallets)
	stats.Recipients = len(recipients)

	clusters, err := a.graph.FindConnectedWallets(ctx, token.ID, a.maxDepth)
	if err != nil {
		return nil, err
	}
	stats.Clusters = len(graph.Connected(clusters))
	stats.ConnectedWallets = graph.ConnectedCount(clusters)

	stats.InitialRecipients, err = a.transactions.InitialRecipients(ctx, token.ID)
	if err != nil {
		return nil, fmt.Errorf("load initial recipients: %w", err)
	}
	if a.balances != nil && len(stats.InitialRecipients) > 0 {
		holdings, err := a.balances.Balances(ctx, mint, stats.InitialRecipients)
		if err != nil {
			a.logger.WithError(err).WithField("mint", mint).Warn("wallet balances unavailable")
		} else {
			stats.Holdings = holdings
		}
	}

	if stats.Recipients >= a.threshold {
		stats.ManyHolders = true
		stats.Reasons = append(stats.Reasons,
			fmt.Sprintf("%d distinct recipients (>= %d) suggests a pump", stats.Recipients, a.threshold))
		if lastTransfer > 0 {
			exit := lastTransfer
			stats.SuggestedExit = &exit
		}
	}
	return stats, nil
}
