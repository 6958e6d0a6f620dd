package ingestion

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-token-sync/internal/solana"
	"solana-token-sync/internal/solana/stub"
)

type countingGate struct {
	calls int
	err   error
}

func (g *countingGate) WaitHealthy(context.Context) error {
	g.calls++
	return g.err
}

func TestRetryingClient_OnlyRetriesExhaustion(t *testing.T) {
	rpc := stub.NewRPCClient()
	gate := &countingGate{}
	policy := NewRetryPolicy(gate, quietLogger())
	policy.MinWait, policy.MaxWait = time.Millisecond, time.Millisecond

	plain := errors.New("bad params")
	rpc.Fail = func(string) error { return plain }
	_, err := NewRetryingClient(rpc, policy).GetTokenSupply(context.Background(), testMint)
	assert.ErrorIs(t, err, plain)
	assert.Equal(t, 1, rpc.Calls("getTokenSupply"))
	assert.Equal(t, 0, gate.calls)
}

func TestRetryingClient_GateThenFinalAttempt(t *testing.T) {
	rpc := stub.NewRPCClient()
	rpc.SetSupply(testMint, "10", 1)
	gate := &countingGate{}
	policy := NewRetryPolicy(gate, quietLogger())
	policy.MinWait, policy.MaxWait = time.Millisecond, time.Millisecond

	rpc.Fail = func(method string) error {
		if rpc.Calls(method) <= 5 {
			return &solana.ExhaustedError{Method: method}
		}
		return nil
	}

	supply, err := NewRetryingClient(rpc, policy).GetTokenSupply(context.Background(), testMint)
	require.NoError(t, err)
	assert.Equal(t, 1, supply.Decimals)
	assert.Equal(t, 6, rpc.Calls("getTokenSupply"))
	assert.Equal(t, 1, gate.calls)
}

func TestRetryingClient_GateErrorSurfaces(t *testing.T) {
	rpc := stub.NewRPCClient()
	gate := &countingGate{err: context.Canceled}
	policy := NewRetryPolicy(gate, quietLogger())
	policy.MinWait, policy.MaxWait = time.Millisecond, time.Millisecond
	rpc.Fail = func(method string) error { return &solana.ExhaustedError{Method: method} }

	_, err := NewRetryingClient(rpc, policy).GetSignaturesForAddress(context.Background(), testMint, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 5, rpc.Calls("getSignaturesForAddress"))
}

func TestNewRetryPolicy_Defaults(t *testing.T) {
	policy := NewRetryPolicy(nil, nil)
	assert.Equal(t, 5, policy.MaxAttempts)
	assert.Equal(t, []time.Duration{4 * time.Second, 8 * time.Second, 16 * time.Second, 20 * time.Second}, policy.Backoff())
	assert.Nil(t, policy.Gate)
	assert.True(t, policy.Retryable(&solana.ExhaustedError{}))
	assert.False(t, policy.Retryable(errors.New("x")))
}
