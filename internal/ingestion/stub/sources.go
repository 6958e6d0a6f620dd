package stub

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"solana-token-sync/internal/domain"
)

// StubMetadataSource returns fixed metadata per mint.
// Implements ingestion.MetadataSource interface.
type StubMetadataSource struct {
	metadata map[string]*domain.TokenMetadata
}

// NewStubMetadataSource creates a new stub metadata source.
func NewStubMetadataSource(metadata ...*domain.TokenMetadata) *StubMetadataSource {
	s := &StubMetadataSource{metadata: make(map[string]*domain.TokenMetadata)}
	for _, m := range metadata {
		s.metadata[m.Mint] = m
	}
	return s
}

// Fetch returns a copy of the metadata for mint, or metadata without
// decimals when the mint is unknown.
func (s *StubMetadataSource) Fetch(_ context.Context, mint string) (*domain.TokenMetadata, error) {
	m, ok := s.metadata[mint]
	if !ok {
		return &domain.TokenMetadata{Mint: mint}, nil
	}
	copy := *m
	return &copy, nil
}

// StubPriceSource returns a settable price for every mint.
// Implements ingestion.PriceSource interface.
type StubPriceSource struct {
	mu    sync.Mutex
	price decimal.Decimal
	err   error
}

// NewStubPriceSource creates a price source quoting price.
func NewStubPriceSource(price decimal.Decimal) *StubPriceSource {
	return &StubPriceSource{price: price}
}

// Set changes the quoted price and error.
func (s *StubPriceSource) Set(price decimal.Decimal, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.price, s.err = price, err
}

// Price returns the configured price.
func (s *StubPriceSource) Price(_ context.Context, _ string) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.price, s.err
}

// StubBalanceSource returns fixed balances per wallet.
// Implements ingestion.BalanceSource interface.
type StubBalanceSource struct {
	balances map[string]decimal.Decimal
}

// NewStubBalanceSource creates a new stub balance source.
func NewStubBalanceSource(balances map[string]decimal.Decimal) *StubBalanceSource {
	return &StubBalanceSource{balances: balances}
}

// Balances returns the known balances of wallets.
func (s *StubBalanceSource) Balances(_ context.Context, _ string, wallets []string) (map[string]decimal.Decimal, error) {
	out := make(map[string]decimal.Decimal)
	for _, w := range wallets {
		if b, ok := s.balances[w]; ok {
			out[w] = b
		}
	}
	return out, nil
}
