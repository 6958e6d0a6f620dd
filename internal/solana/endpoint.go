package solana

import (
	"fmt"
	"net/url"
	"sync"
	"time"

	"solana-token-sync/internal/observability"
)

// Endpoint is one configured RPC provider URL.
type Endpoint struct {
	Index       int
	URL         string
	Healthy     bool
	LastChecked time.Time
}

// EndpointPool is the ordered list of endpoints plus the sticky index new
// requests start from. Earlier entries are preferred.
type EndpointPool struct {
	mu        sync.RWMutex
	endpoints []Endpoint
	current   int
}

// NewEndpointPool validates urls and builds a pool. All endpoints start
// healthy and the sticky index starts at 0.
func NewEndpointPool(urls []string) (*EndpointPool, error) {
	if len(urls) == 0 {
		return nil, ErrNoEndpoints
	}
	endpoints := make([]Endpoint, 0, len(urls))
	for i, raw := range urls {
		u, err := url.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("endpoint %d: %w", i, err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return nil, fmt.Errorf("endpoint %d: unsupported scheme %q", i, u.Scheme)
		}
		endpoints = append(endpoints, Endpoint{Index: i, URL: raw, Healthy: true})
	}
	return &EndpointPool{endpoints: endpoints}, nil
}

// Len returns the number of endpoints.
func (p *EndpointPool) Len() int {
	return len(p.endpoints)
}

// URL returns the URL of endpoint i.
func (p *EndpointPool) URL(i int) string {
	return p.endpoints[i].URL
}

// Current returns the sticky index.
func (p *EndpointPool) Current() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current
}

// Endpoints returns a snapshot of all endpoint states.
func (p *EndpointPool) Endpoints() []Endpoint {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]Endpoint, len(p.endpoints))
	copy(out, p.endpoints)
	return out
}

// promote moves the sticky index. Only failover and re-probing call it.
func (p *EndpointPool) promote(i int) {
	p.mu.Lock()
	p.current = i
	p.mu.Unlock()
	observability.SetCurrentEndpoint(i)
}

func (p *EndpointPool) markHealth(i int, healthy bool) {
	p.mu.Lock()
	p.endpoints[i].Healthy = healthy
	p.endpoints[i].LastChecked = time.Now()
	p.mu.Unlock()
	observability.SetEndpointHealth(p.endpoints[i].URL, healthy)
}
