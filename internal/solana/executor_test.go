package solana

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecutor_Success(t *testing.T) {
	node := okNode(t, "ok")

	resp, err := NewExecutor().Execute(context.Background(), node.URL, healthRequest)
	require.NoError(t, err)
	assert.JSONEq(t, `"ok"`, string(resp.Result))
	assert.Equal(t, node.URL, resp.Endpoint)
}

func TestExecutor_Classification(t *testing.T) {
	tests := []struct {
		name        string
		handler     http.HandlerFunc
		unreachable bool
		fatalHTTP   bool
		badResponse bool
	}{
		{
			name:        "http status",
			handler:     func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusTooManyRequests) },
			unreachable: true,
			fatalHTTP:   true,
		},
		{
			name:        "non-json body",
			handler:     func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("<html>")) },
			unreachable: true,
		},
		{
			name: "rpc error",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"error":{"code":-32005,"message":"Node is behind"}}`))
			},
			badResponse: true,
		},
		{
			name: "missing result",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1}`))
			},
			badResponse: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			_, err := NewExecutor().Execute(context.Background(), server.URL, healthRequest)
			require.Error(t, err)
			assert.Equal(t, tt.unreachable, errors.Is(err, ErrRetryableUnreachable))
			assert.Equal(t, tt.fatalHTTP, errors.Is(err, ErrFatalHTTP))
			assert.Equal(t, tt.badResponse, errors.Is(err, ErrBadResponse))
		})
	}
}

func TestExecutor_NullResultAccepted(t *testing.T) {
	node := okNode(t, nil)

	resp, err := NewExecutor().Execute(context.Background(), node.URL, Request{Method: "getTransaction"})
	require.NoError(t, err)
	assert.Equal(t, "null", string(resp.Result))
}

func TestExecutor_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer server.Close()

	exec := NewExecutor(WithTimeout(50 * time.Millisecond))
	_, err := exec.Execute(context.Background(), server.URL, healthRequest)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRetryableUnreachable)
	assert.NotErrorIs(t, err, ErrFatalHTTP)
}

func TestExecutor_RateLimit(t *testing.T) {
	node := okNode(t, "ok")
	exec := NewExecutor(WithRateLimit(20, 1))

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := exec.Execute(context.Background(), node.URL, healthRequest)
		require.NoError(t, err)
	}
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}
