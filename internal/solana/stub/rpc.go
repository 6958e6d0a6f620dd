// Package stub provides an in-memory solana.RPCClient for tests.
package stub

import (
	"context"
	"sync"

	"solana-token-sync/internal/solana"
)

// RPCClient implements solana.RPCClient over in-memory maps.
// Signatures are kept per address newest first, as the node returns them.
type RPCClient struct {
	mu           sync.Mutex
	Transactions map[string]*solana.Transaction
	Signatures   map[string][]solana.SignatureInfo
	Supplies     map[string]*solana.TokenSupply
	Accounts     map[string]*solana.AccountInfo
	Health       string

	// Fail, when set, is consulted before every call; a non-nil error is returned.
	Fail func(method string) error

	calls map[string]int
}

// NewRPCClient creates a new stub RPC client.
func NewRPCClient() *RPCClient {
	return &RPCClient{
		Transactions: make(map[string]*solana.Transaction),
		Signatures:   make(map[string][]solana.SignatureInfo),
		Supplies:     make(map[string]*solana.TokenSupply),
		Accounts:     make(map[string]*solana.AccountInfo),
		Health:       "ok",
		calls:        make(map[string]int),
	}
}

func (c *RPCClient) enter(method string) error {
	c.mu.Lock()
	c.calls[method]++
	fail := c.Fail
	c.mu.Unlock()
	if fail != nil {
		return fail(method)
	}
	return nil
}

// Calls returns how many times method was invoked.
func (c *RPCClient) Calls(method string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[method]
}

// GetHealth returns the configured health string.
func (c *RPCClient) GetHealth(_ context.Context) (string, error) {
	if err := c.enter("getHealth"); err != nil {
		return "", err
	}
	return c.Health, nil
}

// GetTokenSupply returns the stored supply or nil.
func (c *RPCClient) GetTokenSupply(_ context.Context, mint string) (*solana.TokenSupply, error) {
	if err := c.enter("getTokenSupply"); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Supplies[mint], nil
}

// GetSignaturesForAddress pages through the stored signatures honoring
// before, until and limit.
func (c *RPCClient) GetSignaturesForAddress(_ context.Context, address string, opts *solana.SignaturesOpts) ([]solana.SignatureInfo, error) {
	if err := c.enter("getSignaturesForAddress"); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	sigs := c.Signatures[address]
	start := 0
	if opts != nil && opts.Before != "" {
		start = len(sigs)
		for i, s := range sigs {
			if s.Signature == opts.Before {
				start = i + 1
				break
			}
		}
	}

	var page []solana.SignatureInfo
	for _, s := range sigs[start:] {
		if opts != nil && opts.Until != "" && s.Signature == opts.Until {
			break
		}
		page = append(page, s)
		if opts != nil && opts.Limit > 0 && len(page) == opts.Limit {
			break
		}
	}
	return page, nil
}

// GetTransaction returns the stored transaction or nil.
func (c *RPCClient) GetTransaction(_ context.Context, signature string) (*solana.Transaction, error) {
	if err := c.enter("getTransaction"); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Transactions[signature], nil
}

// GetAccountInfo returns the stored account or nil.
func (c *RPCClient) GetAccountInfo(_ context.Context, pubkey string) (*solana.AccountInfo, error) {
	if err := c.enter("getAccountInfo"); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Accounts[pubkey], nil
}

// AddTransaction adds a transaction and prepends its signature to address
// as the newest activity.
func (c *RPCClient) AddTransaction(address string, tx *solana.Transaction) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Transactions[tx.Signature] = tx
	info := solana.SignatureInfo{Signature: tx.Signature, Slot: tx.Slot, BlockTime: tx.BlockTime}
	c.Signatures[address] = append([]solana.SignatureInfo{info}, c.Signatures[address]...)
}

// AddSignatures appends older signatures for address.
func (c *RPCClient) AddSignatures(address string, sigs ...solana.SignatureInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Signatures[address] = append(c.Signatures[address], sigs...)
}

// SetSupply sets the getTokenSupply answer for mint.
func (c *RPCClient) SetSupply(mint, amount string, decimals int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Supplies[mint] = &solana.TokenSupply{Amount: amount, Decimals: decimals}
}

var _ solana.RPCClient = (*RPCClient)(nil)
