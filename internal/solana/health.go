package solana

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sirupsen/logrus"

	"solana-token-sync/internal/observability"
)

// DefaultHealthInterval is the delay between health probes while waiting.
const DefaultHealthInterval = 5 * time.Second

var healthRequest = Request{Method: "getHealth"}

// HealthProber answers whether any endpoint is serving, and blocks callers
// until one is.
type HealthProber struct {
	failover *Failover
	interval time.Duration
	logger   logrus.FieldLogger
}

// ProberOption configures HealthProber.
type ProberOption func(*HealthProber)

// WithProbeInterval sets the delay between probes.
func WithProbeInterval(d time.Duration) ProberOption {
	return func(p *HealthProber) {
		p.interval = d
	}
}

// WithProberLogger sets the logger.
func WithProberLogger(l logrus.FieldLogger) ProberOption {
	return func(p *HealthProber) {
		p.logger = l
	}
}

// NewHealthProber creates a prober sharing the failover's pool and executor.
func NewHealthProber(f *Failover, opts ...ProberOption) *HealthProber {
	p := &HealthProber{
		failover: f,
		interval: DefaultHealthInterval,
		logger:   logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Probe issues getHealth through failover once and reports whether some
// endpoint answered "ok". The sticky index is not moved.
func (p *HealthProber) Probe(ctx context.Context) bool {
	resp, _, err := p.failover.Do(ctx, healthRequest, 0)
	if err != nil {
		return false
	}
	return isOK(resp.Result)
}

// WaitHealthy blocks until an endpoint reports healthy or ctx ends.
func (p *HealthProber) WaitHealthy(ctx context.Context) error {
	observability.RecordHealthWait()
	for {
		if p.Probe(ctx) {
			p.logger.Info("rpc endpoints healthy again")
			return nil
		}
		p.logger.WithField("retry_in", p.interval).Warn("no healthy rpc endpoint")

		timer := time.NewTimer(p.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Reprobe checks endpoints preferred over the sticky one, in order, and moves
// the sticky index back to the first that reports healthy. It returns the
// resulting index.
func (p *HealthProber) Reprobe(ctx context.Context) int {
	pool := p.failover.pool
	current := pool.Current()
	for i := 0; i < current; i++ {
		resp, err := p.failover.exec.Execute(ctx, pool.URL(i), healthRequest)
		if err != nil || !isOK(resp.Result) {
			if ctx.Err() != nil {
				return current
			}
			pool.markHealth(i, false)
			continue
		}
		pool.markHealth(i, true)
		pool.promote(i)
		p.logger.WithFields(logrus.Fields{
			"endpoint": pool.URL(i),
			"index":    i,
			"previous": current,
		}).Info("preferred rpc endpoint recovered")
		return i
	}
	return current
}

func isOK(raw json.RawMessage) bool {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return false
	}
	return s == "ok"
}
