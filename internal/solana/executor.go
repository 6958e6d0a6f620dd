package solana

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"solana-token-sync/internal/observability"
)

// DefaultTimeout bounds a single endpoint call.
const DefaultTimeout = 10 * time.Second

// Request is a JSON-RPC method invocation independent of the endpoint.
type Request struct {
	Method string
	Params []interface{}
}

// Response is an accepted reply: no error object and a result field present.
type Response struct {
	Endpoint string
	Result   json.RawMessage
}

// rpcRequest represents a JSON-RPC 2.0 request.
type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

// rpcResponse represents a JSON-RPC 2.0 response.
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// Executor performs one JSON-RPC call against one endpoint and classifies
// the outcome. It never retries.
type Executor struct {
	client    *http.Client
	timeout   time.Duration
	rps       float64
	burst     int
	terminal  map[int]bool
	logger    logrus.FieldLogger
	requestID atomic.Uint64

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// ExecutorOption configures Executor.
type ExecutorOption func(*Executor)

// WithTimeout sets the per-call timeout.
func WithTimeout(d time.Duration) ExecutorOption {
	return func(e *Executor) {
		e.timeout = d
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ExecutorOption {
	return func(e *Executor) {
		e.client = client
	}
}

// WithRateLimit caps requests per second to each endpoint. rps <= 0 disables it.
func WithRateLimit(rps float64, burst int) ExecutorOption {
	return func(e *Executor) {
		e.rps = rps
		e.burst = burst
	}
}

// WithTerminalCodes marks JSON-RPC error codes that stop failover, such as
// -32602 (invalid params), which no other endpoint would answer differently.
func WithTerminalCodes(codes ...int) ExecutorOption {
	return func(e *Executor) {
		for _, c := range codes {
			e.terminal[c] = true
		}
	}
}

// WithExecutorLogger sets the logger.
func WithExecutorLogger(l logrus.FieldLogger) ExecutorOption {
	return func(e *Executor) {
		e.logger = l
	}
}

// NewExecutor creates an Executor.
func NewExecutor(opts ...ExecutorOption) *Executor {
	e := &Executor{
		client:   &http.Client{},
		timeout:  DefaultTimeout,
		terminal: make(map[int]bool),
		logger:   logrus.StandardLogger(),
		limiters: make(map[string]*rate.Limiter),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.burst <= 0 {
		e.burst = 1
	}
	return e
}

// Execute sends req to endpoint. Errors are *UnreachableError,
// *BadResponseError or the caller's context error.
func (e *Executor) Execute(ctx context.Context, endpoint string, req Request) (*Response, error) {
	if err := e.wait(ctx, endpoint); err != nil {
		return nil, err
	}

	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      e.requestID.Add(1),
		Method:  req.Method,
		Params:  req.Params,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	resp, err := e.do(callCtx, endpoint, body)
	outcome := "ok"
	switch {
	case err == nil:
	case errors.Is(err, ErrBadResponse):
		outcome = "bad_response"
	default:
		outcome = "unreachable"
	}
	observability.RecordRPCCall(req.Method, outcome, time.Since(start).Seconds())

	if err != nil {
		if ctx.Err() != nil {
			// Parent cancellation is not an endpoint failure.
			return nil, ctx.Err()
		}
		e.logger.WithFields(logrus.Fields{
			"endpoint": endpoint,
			"method":   req.Method,
			"outcome":  outcome,
		}).Debugf("rpc call failed: %v", err)
	}
	return resp, err
}

func (e *Executor) do(ctx context.Context, endpoint string, body []byte) (*Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &UnreachableError{Endpoint: endpoint, Err: fmt.Errorf("create request: %w", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := e.client.Do(httpReq)
	if err != nil {
		return nil, &UnreachableError{Endpoint: endpoint, Err: fmt.Errorf("http request: %w", err)}
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, &UnreachableError{Endpoint: endpoint, Err: fmt.Errorf("read response: %w", err)}
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, &UnreachableError{Endpoint: endpoint, StatusCode: httpResp.StatusCode}
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		return nil, &UnreachableError{Endpoint: endpoint, Err: fmt.Errorf("unmarshal response: %w", err)}
	}

	if rpcResp.Error != nil {
		return nil, &BadResponseError{
			Endpoint: endpoint,
			RPC:      rpcResp.Error,
			Terminal: e.terminal[rpcResp.Error.Code],
		}
	}
	if len(rpcResp.Result) == 0 {
		return nil, &BadResponseError{Endpoint: endpoint}
	}

	return &Response{Endpoint: endpoint, Result: rpcResp.Result}, nil
}

func (e *Executor) wait(ctx context.Context, endpoint string) error {
	if e.rps <= 0 {
		return nil
	}
	e.mu.Lock()
	lim, ok := e.limiters[endpoint]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(e.rps), e.burst)
		e.limiters[endpoint] = lim
	}
	e.mu.Unlock()
	return lim.Wait(ctx)
}
