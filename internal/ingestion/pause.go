package ingestion

import (
	"context"
	"sync"
)

// PauseToken is a cooperative pause flag. Sync loops call Wait at iteration
// boundaries; in-flight requests are never interrupted.
type PauseToken struct {
	mu      sync.Mutex
	paused  bool
	resumed chan struct{}
}

// NewPauseToken creates a token in the running state.
func NewPauseToken() *PauseToken {
	ch := make(chan struct{})
	close(ch)
	return &PauseToken{resumed: ch}
}

// Pause makes subsequent Wait calls block until Resume.
func (p *PauseToken) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.paused {
		return
	}
	p.paused = true
	p.resumed = make(chan struct{})
}

// Resume releases all waiters.
func (p *PauseToken) Resume() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.paused {
		return
	}
	p.paused = false
	close(p.resumed)
}

// Paused reports whether the token is paused.
func (p *PauseToken) Paused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.paused
}

// Wait blocks while the token is paused. A nil token never blocks.
func (p *PauseToken) Wait(ctx context.Context) error {
	if p == nil {
		return ctx.Err()
	}
	p.mu.Lock()
	ch := p.resumed
	p.mu.Unlock()

	select {
	case <-ch:
		return ctx.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}
