package solana

import (
	"context"
	"encoding/json"
	"fmt"
)

// HTTPClient implements RPCClient over a Failover. Each method is one
// failover pass; retrying exhausted passes is left to the caller.
type HTTPClient struct {
	failover *Failover
}

// NewHTTPClient creates a Solana RPC client over f.
func NewHTTPClient(f *Failover) *HTTPClient {
	return &HTTPClient{failover: f}
}

// Dial wires a pool, executor and failover for urls.
func Dial(urls []string, opts ...ExecutorOption) (*HTTPClient, error) {
	pool, err := NewEndpointPool(urls)
	if err != nil {
		return nil, err
	}
	exec := NewExecutor(opts...)
	return NewHTTPClient(NewFailover(pool, exec, exec.logger)), nil
}

// Failover returns the underlying failover controller.
func (c *HTTPClient) Failover() *Failover {
	return c.failover
}

func (c *HTTPClient) call(ctx context.Context, method string, params []interface{}, result interface{}) error {
	resp, err := c.failover.Call(ctx, Request{Method: method, Params: params})
	if err != nil {
		return err
	}
	if result == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Result, result); err != nil {
		return fmt.Errorf("%s: unmarshal result: %w", method, err)
	}
	return nil
}

// GetHealth returns the health string of the first endpoint that answers.
func (c *HTTPClient) GetHealth(ctx context.Context) (string, error) {
	var result string
	if err := c.call(ctx, "getHealth", nil, &result); err != nil {
		return "", err
	}
	return result, nil
}

// GetTokenSupply returns supply and decimals of a mint.
func (c *HTTPClient) GetTokenSupply(ctx context.Context, mint string) (*TokenSupply, error) {
	var result struct {
		Value *TokenSupply `json:"value"`
	}
	if err := c.call(ctx, "getTokenSupply", []interface{}{mint}, &result); err != nil {
		return nil, err
	}
	return result.Value, nil
}

// GetSignaturesForAddress retrieves signatures for an address with pagination.
func (c *HTTPClient) GetSignaturesForAddress(ctx context.Context, address string, opts *SignaturesOpts) ([]SignatureInfo, error) {
	config := make(map[string]interface{})
	if opts != nil {
		if opts.Before != "" {
			config["before"] = opts.Before
		}
		if opts.Until != "" {
			config["until"] = opts.Until
		}
		if opts.Limit > 0 {
			config["limit"] = opts.Limit
		}
	}

	params := []interface{}{address}
	if len(config) > 0 {
		params = append(params, config)
	}

	var result []SignatureInfo
	if err := c.call(ctx, "getSignaturesForAddress", params, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// GetTransaction retrieves a jsonParsed transaction by signature.
// Returns nil if the transaction is unknown to the node.
func (c *HTTPClient) GetTransaction(ctx context.Context, signature string) (*Transaction, error) {
	params := []interface{}{
		signature,
		map[string]interface{}{
			"encoding":                       "jsonParsed",
			"maxSupportedTransactionVersion": 0,
		},
	}

	var result *Transaction
	if err := c.call(ctx, "getTransaction", params, &result); err != nil {
		return nil, err
	}
	if result == nil {
		return nil, nil
	}
	result.Signature = signature
	return result, nil
}

// GetAccountInfo retrieves account info by public key.
// Returns nil if account not found.
func (c *HTTPClient) GetAccountInfo(ctx context.Context, pubkey string) (*AccountInfo, error) {
	params := []interface{}{
		pubkey,
		map[string]interface{}{
			"encoding": "base64",
		},
	}

	var result struct {
		Value *struct {
			Lamports   uint64   `json:"lamports"`
			Owner      string   `json:"owner"`
			Data       []string `json:"data"` // [base64_data, encoding]
			Executable bool     `json:"executable"`
			RentEpoch  uint64   `json:"rentEpoch"`
		} `json:"value"`
	}
	if err := c.call(ctx, "getAccountInfo", params, &result); err != nil {
		return nil, err
	}
	if result.Value == nil {
		return nil, nil
	}

	info := &AccountInfo{
		Lamports:   result.Value.Lamports,
		Owner:      result.Value.Owner,
		Executable: result.Value.Executable,
		RentEpoch:  result.Value.RentEpoch,
	}
	if len(result.Value.Data) >= 1 {
		info.Data = result.Value.Data[0]
	}
	return info, nil
}

var _ RPCClient = (*HTTPClient)(nil)
