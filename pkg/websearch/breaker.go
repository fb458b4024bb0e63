package websearch

import (
	"sync"
	"time"

	"github.com/rotisserie/eris"
)

// ErrBreakerOpen is returned when search calls are rejected during cooldown.
var ErrBreakerOpen = eris.New("websearch: breaker open")

// breaker is a minimal circuit breaker. After threshold consecutive
// failures, calls are rejected until the reset window elapses, then a
// single probe is allowed through.
type breaker struct {
	mu        sync.Mutex
	threshold int
	reset     time.Duration
	failures  int
	openedAt  time.Time
}

func newBreaker(threshold int, reset time.Duration) *breaker {
	if threshold <= 0 {
		threshold = 3
	}
	if reset <= 0 {
		reset = 5 * time.Minute
	}
	return &breaker{threshold: threshold, reset: reset}
}

func (b *breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.failures < b.threshold {
		return nil
	}
	if time.Since(b.openedAt) >= b.reset {
		// half-open: let one probe through
		b.failures = b.threshold - 1
		return nil
	}
	return ErrBreakerOpen
}

func (b *breaker) Record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil {
		b.failures = 0
		return
	}
	b.failures++
	if b.failures == b.threshold {
		b.openedAt = time.Now()
	}
}
