package solana

import "context"

// RPCClient defines the Solana JSON-RPC methods the synchronizer consumes.
type RPCClient interface {
	// GetHealth returns the node health string ("ok" when healthy).
	GetHealth(ctx context.Context) (string, error)

	// GetTokenSupply returns supply and decimals of a mint.
	GetTokenSupply(ctx context.Context, mint string) (*TokenSupply, error)

	// GetSignaturesForAddress retrieves signatures for an address with pagination.
	GetSignaturesForAddress(ctx context.Context, address string, opts *SignaturesOpts) ([]SignatureInfo, error)

	// GetTransaction retrieves a jsonParsed transaction by signature.
	// Returns nil if the node does not know the transaction.
	GetTransaction(ctx context.Context, signature string) (*Transaction, error)

	// GetAccountInfo retrieves account info by public key.
	// Returns nil if the account does not exist.
	GetAccountInfo(ctx context.Context, pubkey string) (*AccountInfo, error)
}
