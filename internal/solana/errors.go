package solana

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrRetryableUnreachable marks transport failures, timeouts, non-200
	// statuses and undecodable bodies. Failover moves to the next endpoint.
	ErrRetryableUnreachable = errors.New("rpc endpoint unreachable")

	// ErrBadResponse marks well-formed JSON-RPC replies carrying an error or
	// no result.
	ErrBadResponse = errors.New("bad rpc response")

	// ErrEndpointsExhausted is returned when every endpoint failed in one pass.
	ErrEndpointsExhausted = errors.New("all rpc endpoints failed")

	// ErrFatalHTTP marks a non-timeout HTTP status failure.
	ErrFatalHTTP = errors.New("http status failure")

	// ErrNoEndpoints is returned when a pool is built without endpoints.
	ErrNoEndpoints = errors.New("no rpc endpoints configured")
)

// RPCError represents a JSON-RPC 2.0 error object.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// UnreachableError describes a failed attempt against one endpoint.
// StatusCode is set when the endpoint answered with a non-200 status.
type UnreachableError struct {
	Endpoint   string
	StatusCode int
	Err        error
}

func (e *UnreachableError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("endpoint %s: unexpected status %d", e.Endpoint, e.StatusCode)
	}
	return fmt.Sprintf("endpoint %s: %v", e.Endpoint, e.Err)
}

func (e *UnreachableError) Unwrap() error { return e.Err }

// Is matches ErrRetryableUnreachable, and ErrFatalHTTP for status failures.
func (e *UnreachableError) Is(target error) bool {
	if target == ErrRetryableUnreachable {
		return true
	}
	return target == ErrFatalHTTP && e.StatusCode != 0
}

// BadResponseError is a decoded reply that cannot be accepted.
// Terminal errors stop failover instead of advancing to the next endpoint.
type BadResponseError struct {
	Endpoint string
	RPC      *RPCError
	Terminal bool
}

func (e *BadResponseError) Error() string {
	if e.RPC == nil {
		return fmt.Sprintf("endpoint %s: response has no result", e.Endpoint)
	}
	return fmt.Sprintf("endpoint %s: %v", e.Endpoint, e.RPC)
}

func (e *BadResponseError) Unwrap() error {
	if e.RPC == nil {
		return nil
	}
	return e.RPC
}

func (e *BadResponseError) Is(target error) bool { return target == ErrBadResponse }

// ExhaustedError collects the per-endpoint failures of one failover pass.
type ExhaustedError struct {
	Method   string
	Attempts []error
}

func (e *ExhaustedError) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, err := range e.Attempts {
		parts = append(parts, err.Error())
	}
	return fmt.Sprintf("%s: all %d rpc endpoints failed: [%s]", e.Method, len(e.Attempts), strings.Join(parts, "; "))
}

func (e *ExhaustedError) Unwrap() []error { return e.Attempts }

func (e *ExhaustedError) Is(target error) bool { return target == ErrEndpointsExhausted }

// IsEndpointsExhausted reports whether err is the result of a failed failover pass.
func IsEndpointsExhausted(err error) bool {
	return errors.Is(err, ErrEndpointsExhausted)
}

// IsTerminal reports whether err is an RPC error that failover must not retry.
func IsTerminal(err error) bool {
	var bad *BadResponseError
	return errors.As(err, &bad) && bad.Terminal
}
