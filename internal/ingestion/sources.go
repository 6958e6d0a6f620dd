package ingestion

import (
	"context"

	"github.com/shopspring/decimal"

	"solana-token-sync/internal/domain"
)

// MetadataSource provides token metadata from external sources.
type MetadataSource interface {
	// Fetch returns token metadata for a given mint address.
	Fetch(ctx context.Context, mint string) (*domain.TokenMetadata, error)
}

// PriceSource quotes the current price of a token in the quote currency.
type PriceSource interface {
	// Price returns the price of one whole token.
	Price(ctx context.Context, mint string) (decimal.Decimal, error)
}

// BalanceSource looks up token holdings of wallets.
type BalanceSource interface {
	// Balances returns the UI amount of mint held by each wallet.
	// Wallets without a token account are omitted.
	Balances(ctx context.Context, mint string, wallets []string) (map[string]decimal.Decimal, error)
}
