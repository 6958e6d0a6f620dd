package ingestion

import "errors"

var (
	// ErrDecodeIncomplete indicates a transaction with neither swap markers nor
	// a token balance change for the mint. Such transactions are skipped.
	ErrDecodeIncomplete = errors.New("transaction has no recognizable transfer or swap")

	// ErrNoBaseline indicates tailing was requested before a backfill recorded
	// the newest signature of the token.
	ErrNoBaseline = errors.New("no tailing baseline: run a backfill first")

	// ErrMissingDecimals aborts a backfill when the mint decimals are unknown.
	ErrMissingDecimals = errors.New("token metadata has no decimals")

	// ErrSyncInProgress is returned when another sync already holds the token.
	ErrSyncInProgress = errors.New("sync already running for token")
)
