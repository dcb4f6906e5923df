package llm

import (
	"context"
	"sync"
	"time"
)

// LocalLimiter is an in-process Limiter with a Stop method.
type LocalLimiter interface {
	Limiter
	Stop()
}

// tokenBucket refills lazily: each Acquire reserves the next free slot and
// sleeps until it arrives, so no background goroutine is needed.
type tokenBucket struct {
	mu       sync.Mutex
	interval time.Duration
	burst    float64
	tokens   float64
	last     time.Time

	stopOnce sync.Once
	stopped  chan struct{}
}

// NewLimiter returns an in-process token bucket allowing rps calls per second
// with bursts of up to burst, or nil when rps <= 0.
func NewLimiter(rps float64, burst int) LocalLimiter {
	if rps <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	interval := time.Duration(float64(time.Second) / rps)
	if interval <= 0 {
		interval = time.Nanosecond
	}
	return &tokenBucket{
		interval: interval,
		burst:    float64(burst),
		tokens:   float64(burst),
		last:     time.Now(),
		stopped:  make(chan struct{}),
	}
}

// reserve takes one token, possibly driving the balance negative, and returns
// how long the caller must wait for it.
func (b *tokenBucket) reserve(now time.Time) time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tokens += float64(now.Sub(b.last)) / float64(b.interval)
	if b.tokens > b.burst {
		b.tokens = b.burst
	}
	b.last = now
	b.tokens--
	if b.tokens >= 0 {
		return 0
	}
	return time.Duration(-b.tokens * float64(b.interval))
}

// cancel returns a reserved token that was never used.
func (b *tokenBucket) cancel() {
	b.mu.Lock()
	b.tokens++
	b.mu.Unlock()
}

func (b *tokenBucket) Acquire(ctx context.Context) error {
	select {
	case <-b.stopped:
		return context.Canceled
	default:
	}
	wait := b.reserve(time.Now())
	if wait == 0 {
		return nil
	}
	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		b.cancel()
		return ctx.Err()
	case <-b.stopped:
		b.cancel()
		return context.Canceled
	}
}

// Stop releases waiters; later Acquire calls fail with context.Canceled.
func (b *tokenBucket) Stop() {
	b.stopOnce.Do(func() { close(b.stopped) })
}
