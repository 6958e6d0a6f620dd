package ingestion

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"solana-token-sync/internal/observability"
	"solana-token-sync/internal/retry"
	"solana-token-sync/internal/solana"
)

// HealthGate blocks until some RPC endpoint is serving again.
type HealthGate interface {
	WaitHealthy(ctx context.Context) error
}

// NewRetryPolicy returns the default policy: retry only when every endpoint
// failed, then wait on gate before the final attempt.
func NewRetryPolicy(gate HealthGate, logger logrus.FieldLogger) retry.Policy {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	var wait func(ctx context.Context) error
	if gate != nil {
		wait = func(ctx context.Context) error {
			observability.RecordHealthWait()
			logger.Warn("all endpoints failed, waiting for a healthy node")
			return gate.WaitHealthy(ctx)
		}
	}
	p := retry.Default(solana.IsEndpointsExhausted, wait)
	p.OnRetry = func(attempt int, d time.Duration, err error) {
		observability.RecordRetry()
		logger.WithError(err).WithFields(logrus.Fields{
			"attempt": attempt,
			"wait":    d,
		}).Warn("rpc call failed on every endpoint, retrying")
	}
	return p
}

// RetryingClient wraps every call of an RPCClient in a retry policy.
type RetryingClient struct {
	inner  solana.RPCClient
	policy retry.Policy
}

// NewRetryingClient creates a retrying client.
func NewRetryingClient(inner solana.RPCClient, policy retry.Policy) *RetryingClient {
	return &RetryingClient{inner: inner, policy: policy}
}

// GetHealth implements solana.RPCClient.
func (c *RetryingClient) GetHealth(ctx context.Context) (string, error) {
	var out string
	err := c.policy.Do(ctx, func(ctx context.Context) (err error) {
		out, err = c.inner.GetHealth(ctx)
		return err
	})
	return out, err
}

// GetTokenSupply implements solana.RPCClient.
func (c *RetryingClient) GetTokenSupply(ctx context.Context, mint string) (*solana.TokenSupply, error) {
	var out *solana.TokenSupply
	err := c.policy.Do(ctx, func(ctx context.Context) (err error) {
		out, err = c.inner.GetTokenSupply(ctx, mint)
		return err
	})
	return out, err
}

// GetSignaturesForAddress implements solana.RPCClient.
func (c *RetryingClient) GetSignaturesForAddress(ctx context.Context, address string, opts *solana.SignaturesOpts) ([]solana.SignatureInfo, error) {
	var out []solana.SignatureInfo
	err := c.policy.Do(ctx, func(ctx context.Context) (err error) {
		out, err = c.inner.GetSignaturesForAddress(ctx, address, opts)
		return err
	})
	return out, err
}

// GetTransaction implements solana.RPCClient.
func (c *RetryingClient) GetTransaction(ctx context.Context, signature string) (*solana.Transaction, error) {
	var out *solana.Transaction
	err := c.policy.Do(ctx, func(ctx context.Context) (err error) {
		out, err = c.inner.GetTransaction(ctx, signature)
		return err
	})
	return out, err
}

// GetAccountInfo implements solana.RPCClient.
func (c *RetryingClient) GetAccountInfo(ctx context.Context, pubkey string) (*solana.AccountInfo, error) {
	var out *solana.AccountInfo
	err := c.policy.Do(ctx, func(ctx context.Context) (err error) {
		out, err = c.inner.GetAccountInfo(ctx, pubkey)
		return err
	})
	return out, err
}

var _ solana.RPCClient = (*RetryingClient)(nil)
