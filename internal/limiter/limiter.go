package limiter

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// Limiter bounds the number of in-flight upstream requests and optionally
// enforces a minimum gap between consecutive dispatches. Waiters are served
// in FIFO order.
type Limiter struct {
	sem chan struct{}
	gap *rate.Limiter
}

// New returns a limiter allowing up to concurrency simultaneous holders.
func New(concurrency int) *Limiter {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Limiter{sem: make(chan struct{}, concurrency)}
}

// NewWithMinGap returns a limiter that additionally spaces dispatches at
// least minGap apart.
func NewWithMinGap(concurrency int, minGap time.Duration) *Limiter {
	l := New(concurrency)
	if minGap > 0 {
		l.gap = rate.NewLimiter(rate.Every(minGap), 1)
	}
	return l
}

// Acquire blocks until a slot is available or ctx is done. On success the
// caller must call Release exactly once.
func (l *Limiter) Acquire(ctx context.Context) error {
	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		return fmt.Errorf("limiter: %w", ctx.Err())
	}
	if l.gap != nil {
		if err := l.gap.Wait(ctx); err != nil {
			<-l.sem
			return fmt.Errorf("limiter: %w", err)
		}
	}
	return nil
}

func (l *Limiter) Release() {
	select {
	case <-l.sem:
	default:
	}
}

// InFlight reports the number of currently held slots.
func (l *Limiter) InFlight() int {
	return len(l.sem)
}
