package evm

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// TransientError marks a network-class failure: timeout, connection
// reset, rate limiting, upstream 5xx. The treasury aggregator treats
// these as a zero balance instead of failing the snapshot, and the
// client pool discards the chain's client so the next call rebuilds it.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient network error: %v", e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is a network-class failure.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var te *TransientError
	if errors.As(err, &te) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	return errors.Is(err, context.DeadlineExceeded)
}
