package client

import (
	"context"
	"sync"
	"time"

	"github.com/agentwire/a2a-runtime/pkg/a2a"
	"github.com/agentwire/a2a-runtime/pkg/runtime"
)

/*
TokenBucket is a lazy-refill bucket: tokens accrue as a function of elapsed
time on each acquire rather than via a background goroutine.  Acquire blocks
until a token is available or the context ends.
*/
type TokenBucket struct {
	mu     sync.Mutex
	rate   float64
	burst  float64
	tokens float64
	last   time.Time
	clock  runtime.Clock
	sleep  func(context.Context, time.Duration) error
}

func NewTokenBucket(rate float64, burst int) *TokenBucket {
	bucket := &TokenBucket{
		rate:   rate,
		burst:  float64(burst),
		tokens: float64(burst),
		clock:  runtime.SystemClock(),
		sleep:  sleepCtx,
	}

	bucket.last = bucket.clock.Now()
	return bucket
}

// SetClock swaps the time source, for tests.  The sleep becomes a no-op so
// tests drive time through the clock alone.
func (bucket *TokenBucket) SetClock(clock runtime.Clock) {
	bucket.mu.Lock()
	defer bucket.mu.Unlock()

	bucket.clock = clock
	bucket.last = clock.Now()
	bucket.sleep = func(context.Context, time.Duration) error { return nil }
}

// TryAcquire takes a token without blocking.
func (bucket *TokenBucket) TryAcquire() bool {
	bucket.mu.Lock()
	defer bucket.mu.Unlock()

	bucket.refill()

	if bucket.tokens < 1 {
		return false
	}

	bucket.tokens--
	return true
}

// Acquire blocks until a token is available.  The wait per round is the time
// one token takes to accrue at the configured rate.
func (bucket *TokenBucket) Acquire(ctx context.Context) error {
	for {
		bucket.mu.Lock()
		bucket.refill()

		if bucket.tokens >= 1 {
			bucket.tokens--
			bucket.mu.Unlock()
			return nil
		}

		wait := time.Duration((1 - bucket.tokens) / bucket.rate * float64(time.Second))
		sleep := bucket.sleep
		bucket.mu.Unlock()

		if err := sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// refill credits tokens for the time elapsed since the last call.  Caller
// holds the lock.
func (bucket *TokenBucket) refill() {
	now := bucket.clock.Now()
	elapsed := now.Sub(bucket.last).Seconds()
	bucket.last = now

	bucket.tokens += elapsed * bucket.rate

	if bucket.tokens > bucket.burst {
		bucket.tokens = bucket.burst
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// RateLimit holds every call until the bucket admits it.  A canceled wait
// surfaces as ErrRateLimitExceeded so callers can tell throttling apart from
// their own timeouts.
func RateLimit(bucket *TokenBucket) Middleware {
	return func(next Transport) Transport {
		return func(ctx context.Context, req *Request) (*Response, error) {
			if err := bucket.Acquire(ctx); err != nil {
				return nil, a2a.ErrRateLimitExceeded.WithMessagef(
					"rate limit wait aborted: %v", err)
			}

			return next(ctx, req)
		}
	}
}
