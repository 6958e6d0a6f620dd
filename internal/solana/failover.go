package solana

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"solana-token-sync/internal/observability"
)

// Failover walks the endpoint pool until one endpoint accepts a request.
type Failover struct {
	pool   *EndpointPool
	exec   *Executor
	logger logrus.FieldLogger
}

// NewFailover creates a Failover over pool using exec for single calls.
func NewFailover(pool *EndpointPool, exec *Executor, logger logrus.FieldLogger) *Failover {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Failover{pool: pool, exec: exec, logger: logger}
}

// Pool returns the endpoint pool.
func (f *Failover) Pool() *EndpointPool {
	return f.pool
}

// Do tries endpoints starting at start, in pool order and wrapping once
// around, so every endpoint is attempted at most once per pass and none is
// skipped. It returns the accepted response and the index that produced it.
// When every endpoint fails the error wraps ErrEndpointsExhausted and no
// partial result is returned.
func (f *Failover) Do(ctx context.Context, req Request, start int) (*Response, int, error) {
	n := f.pool.Len()
	if n == 0 {
		return nil, 0, ErrNoEndpoints
	}
	if start < 0 || start >= n {
		start = 0
	}

	attempts := make([]error, 0, n)
	for k := 0; k < n; k++ {
		if err := ctx.Err(); err != nil {
			return nil, 0, err
		}

		idx := (start + k) % n
		resp, err := f.exec.Execute(ctx, f.pool.URL(idx), req)
		if err == nil {
			f.pool.markHealth(idx, true)
			return resp, idx, nil
		}
		if ctx.Err() != nil {
			return nil, 0, ctx.Err()
		}
		if IsTerminal(err) {
			return nil, idx, fmt.Errorf("%s: %w", req.Method, err)
		}

		f.pool.markHealth(idx, false)
		attempts = append(attempts, err)
		if k < n-1 {
			observability.RecordFailover()
			f.logger.WithFields(logrus.Fields{
				"method": req.Method,
				"from":   idx,
				"to":     (idx + 1) % n,
			}).Warnf("rpc endpoint failed, switching: %v", err)
		}
	}

	observability.RecordExhausted(req.Method)
	return nil, 0, &ExhaustedError{Method: req.Method, Attempts: attempts}
}

// Call runs Do from the sticky index and remembers the endpoint that answered.
func (f *Failover) Call(ctx context.Context, req Request) (*Response, error) {
	start := f.pool.Current()
	resp, idx, err := f.Do(ctx, req, start)
	if err != nil {
		return nil, err
	}
	if idx != start {
		f.pool.promote(idx)
		f.logger.WithFields(logrus.Fields{
			"endpoint": f.pool.URL(idx),
			"index":    idx,
		}).Info("rpc endpoint switched")
	}
	return resp, nil
}
