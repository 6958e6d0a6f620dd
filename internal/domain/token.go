package domain

// Token is a tracked mint. Corresponds to the tokens table.
// Metadata fields stay nil until the first successful metadata fetch.
type Token struct {
	ID          int64    // BIGSERIAL primary key
	Mint        string   // mint address (unique)
	Symbol      *string  // token symbol (nullable)
	TotalSupply *float64 // total supply in UI units (nullable)
	Decimals    *int     // token decimals (nullable)
	McapATH     *float64 // all-time-high market cap (nullable)
	CreatedAt   int64    // record creation timestamp (ms)
	UpdatedAt   int64    // last metadata refresh (ms)
}

// SymbolOr returns the token symbol or fallback when it is unknown.
func (t *Token) SymbolOr(fallback string) string {
	if t == nil || t.Symbol == nil || *t.Symbol == "" {
		return fallback
	}
	return *t.Symbol
}
