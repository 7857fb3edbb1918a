package tmdb

import (
	"context"
	"errors"
	"fmt"
	"net"
)

var (
	// ErrRateLimited is returned on upstream 429 responses. The client
	// never retries; callers decide how to degrade.
	ErrRateLimited = errors.New("rate limited by upstream")

	ErrTimeout  = errors.New("upstream call timed out")
	ErrCanceled = errors.New("upstream call canceled")
)

// UpstreamError reports a non-2xx upstream status other than 429.
type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream returned status %d: %s", e.Status, e.Body)
}

// NetworkError wraps connection-level failures.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string { return "connection failed: " + e.Err.Error() }
func (e *NetworkError) Unwrap() error { return e.Err }

// classify maps a transport error to one of the client's error kinds.
func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", ErrCanceled, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return &NetworkError{Err: err}
}
