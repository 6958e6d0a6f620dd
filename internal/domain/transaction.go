package domain

import "github.com/shopspring/decimal"

// UnknownAddress stands in for a side of a transfer that could not be resolved
// (mints, burns, unowned token accounts). Edges touching it are never derived.
const UnknownAddress = "unknown"

// Transaction is one classified token movement.
// Corresponds to the transactions table; Signature is unique.
type Transaction struct {
	ID                 int64           // BIGSERIAL primary key
	TokenID            int64           // FK to tokens
	Signature          string          // Solana transaction signature
	Slot               int64           // Solana slot number
	Timestamp          int64           // block time, Unix milliseconds
	Kind               Kind            // TRANSFER | SWAP
	From               string          // sender owner or UnknownAddress
	To                 string          // recipient owner or UnknownAddress
	Amount             decimal.Decimal // raw amount / 10^decimals
	Symbol             string          // token symbol at the time of sync
	Value              *float64        // quote value (nullable, filled by a price source)
	IsInitialRecipient bool            // among the first distinct transfer recipients
	CreatedAt          int64           // record creation timestamp (ms)
}

// HasKnownEndpoints reports whether both sides of the movement are resolved.
func (t *Transaction) HasKnownEndpoints() bool {
	return t.From != "" && t.To != "" && t.From != UnknownAddress && t.To != UnknownAddress
}
