package client

import (
	"context"
	"testing"
	"time"

	"github.com/agentwire/a2a-runtime/pkg/runtime"
)

func TestTokenBucketBurst(t *testing.T) {
	clock := &runtime.ManualClock{Current: time.Unix(1000, 0)}
	bucket := NewTokenBucket(1, 3)
	bucket.SetClock(clock)

	for i := 0; i < 3; i++ {
		if !bucket.TryAcquire() {
			t.Fatalf("acquire %d should succeed within burst", i)
		}
	}

	if bucket.TryAcquire() {
		t.Error("acquire beyond burst should fail")
	}
}

func TestTokenBucketRefill(t *testing.T) {
	clock := &runtime.ManualClock{Current: time.Unix(1000, 0)}
	bucket := NewTokenBucket(2, 2)
	bucket.SetClock(clock)

	bucket.TryAcquire()
	bucket.TryAcquire()

	if bucket.TryAcquire() {
		t.Fatal("bucket should be empty")
	}

	// One second at 2 rps credits two tokens.
	clock.Advance(time.Second)

	if !bucket.TryAcquire() || !bucket.TryAcquire() {
		t.Error("refilled tokens missing")
	}
	if bucket.TryAcquire() {
		t.Error("refill exceeded the elapsed credit")
	}
}

func TestTokenBucketCapsAtBurst(t *testing.T) {
	clock := &runtime.ManualClock{Current: time.Unix(1000, 0)}
	bucket := NewTokenBucket(10, 2)
	bucket.SetClock(clock)

	// A long idle period must not bank more than the burst.
	clock.Advance(time.Hour)

	granted := 0
	for bucket.TryAcquire() {
		granted++
	}

	if granted != 2 {
		t.Errorf("granted %d tokens after idle, want burst of 2", granted)
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	clock := &runtime.ManualClock{Current: time.Unix(1000, 0)}
	bucket := NewTokenBucket(1, 1)
	bucket.SetClock(clock)

	calls := 0
	transport := RateLimit(bucket)(func(ctx context.Context, req *Request) (*Response, error) {
		calls++
		return &Response{Status: 200}, nil
	})

	if _, err := transport(context.Background(), &Request{Method: "tasks/get"}); err != nil {
		t.Fatalf("first call: %v", err)
	}

	// The bucket is empty; with the test clock the sleep is a no-op, so the
	// middleware spins until time advances.  Advance first, then call.
	clock.Advance(time.Second)

	if _, err := transport(context.Background(), &Request{Method: "tasks/get"}); err != nil {
		t.Fatalf("second call: %v", err)
	}

	if calls != 2 {
		t.Errorf("upstream calls = %d, want 2", calls)
	}
}
