package domain

// TokenMetadata is the on-chain metadata resolved for a mint before backfill.
// Decimals is required for amount normalization; the rest is best effort.
type TokenMetadata struct {
	Mint      string   // token mint address
	Symbol    *string  // Metaplex symbol (nullable)
	Name      *string  // Metaplex name (nullable)
	Decimals  *int     // token decimals (nullable until resolved)
	Supply    *float64 // total supply in UI units (nullable)
	FetchedAt int64    // when metadata was fetched (ms)
}

// HasDecimals reports whether amounts for this mint can be normalized.
func (m *TokenMetadata) HasDecimals() bool {
	return m != nil && m.Decimals != nil
}
