package retry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"

	"solana-token-sync/internal/solana"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

var _ net.Error = timeoutErr{}

func TestClassify(t *testing.T) {
	exhausted := &solana.ExhaustedError{
		Method:   "getSignaturesForAddress",
		Attempts: []error{&solana.UnreachableError{Endpoint: "http://a", StatusCode: 503}},
	}
	rejected := &solana.BadResponseError{
		Endpoint: "http://a",
		RPC:      &solana.RPCError{Code: -32602, Message: "Invalid params"},
		Terminal: true,
	}

	testCases := []struct {
		name           string
		err            error
		expectedClass  Class
		expectedReason string
	}{
		{"exhausted endpoints", fmt.Errorf("page 3: %w", exhausted), ClassTransient, "endpoints_exhausted"},
		{"single endpoint unreachable", &solana.UnreachableError{Endpoint: "http://a", Err: errors.New("refused")}, ClassTransient, "endpoint_unreachable"},
		{"deadline", context.DeadlineExceeded, ClassTransient, "deadline_exceeded"},
		{"network timeout", fmt.Errorf("query: %w", timeoutErr{}), ClassTransient, "net_timeout"},
		{"terminal rpc code", fmt.Errorf("fetch metadata: %w", rejected), ClassTerminal, "rpc_rejected"},
		{"canceled", fmt.Errorf("backfill: %w", context.Canceled), ClassTerminal, "context_canceled"},
		{"unknown", errors.New("token metadata has no decimals"), ClassTerminal, "unknown"},
		{"nil", nil, ClassTerminal, "nil_error"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			d := Classify(tc.err)
			assert.Equal(t, tc.expectedClass, d.Class)
			assert.Equal(t, tc.expectedReason, d.Reason)
			assert.Equal(t, tc.expectedClass == ClassTransient, d.IsTransient())
		})
	}
}
