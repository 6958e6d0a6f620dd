package domain

// SyncCursor holds the per-token pagination state.
// Before only moves to older signatures (backfill); LastSignature only moves
// to newer signatures (tailing). The two fields advance independently.
type SyncCursor struct {
	Mint          string // token mint address
	Before        string // oldest signature backfilled so far ("" = start from newest)
	LastSignature string // newest signature persisted ("" = no baseline yet)
	UpdatedAt     int64  // last update (ms)
}

// HasBaseline reports whether tailing can start.
func (c *SyncCursor) HasBaseline() bool {
	return c != nil && c.LastSignature != ""
}
