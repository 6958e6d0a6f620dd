package retry

import (
	"context"
	"errors"
	"net"

	"solana-token-sync/internal/solana"
)

// Class is the failure class of an error that ended a sync pass.
type Class string

const (
	ClassTerminal  Class = "terminal"
	ClassTransient Class = "transient"
)

// Decision is the outcome of Classify.
type Decision struct {
	Class  Class
	Reason string
}

// IsTransient reports whether rerunning the pass may succeed without intervention.
func (d Decision) IsTransient() bool {
	return d.Class == ClassTransient
}

func transient(reason string) Decision { return Decision{Class: ClassTransient, Reason: reason} }
func terminal(reason string) Decision  { return Decision{Class: ClassTerminal, Reason: reason} }

// Classify decides whether a sync pass that failed with err is worth rerunning.
// RPC outages are transient; rejected requests, cancellation and anything
// unrecognized are terminal.
func Classify(err error) Decision {
	switch {
	case err == nil:
		return terminal("nil_error")
	case errors.Is(err, context.Canceled):
		return terminal("context_canceled")
	case solana.IsTerminal(err):
		return terminal("rpc_rejected")
	case solana.IsEndpointsExhausted(err):
		return transient("endpoints_exhausted")
	case errors.Is(err, solana.ErrRetryableUnreachable):
		return transient("endpoint_unreachable")
	case errors.Is(err, context.DeadlineExceeded):
		return transient("deadline_exceeded")
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return transient("net_timeout")
	}
	return terminal("unknown")
}
