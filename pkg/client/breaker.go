package client

import (
	"context"
	"sync"
	"time"

	"github.com/agentwire/a2a-runtime/pkg/a2a"
	"github.com/agentwire/a2a-runtime/pkg/runtime"
)

// BreakerState is the circuit's admission mode.
type BreakerState int

const (
	BreakerClosed BreakerState = iota
	BreakerOpen
	BreakerHalfOpen
)

func (state BreakerState) String() string {
	switch state {
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

/*
CircuitBreaker counts consecutive failures; at the threshold it opens and
fails fast for the timeout window, then lets exactly one probe through.  A
successful probe closes the circuit, a failed one re-opens it for another
window.
*/
type CircuitBreaker struct {
	mu        sync.Mutex
	state     BreakerState
	failures  int
	threshold int
	timeout   time.Duration
	openedAt  time.Time
	probing   bool
	clock     runtime.Clock
}

func NewCircuitBreaker(threshold int, timeout time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		threshold: threshold,
		timeout:   timeout,
		clock:     runtime.SystemClock(),
	}
}

func (breaker *CircuitBreaker) SetClock(clock runtime.Clock) {
	breaker.mu.Lock()
	defer breaker.mu.Unlock()
	breaker.clock = clock
}

// State reports the current admission mode, accounting for timeout expiry.
func (breaker *CircuitBreaker) State() BreakerState {
	breaker.mu.Lock()
	defer breaker.mu.Unlock()

	if breaker.state == BreakerOpen && breaker.clock.Now().Sub(breaker.openedAt) >= breaker.timeout {
		return BreakerHalfOpen
	}

	return breaker.state
}

// allow decides admission.  In half-open only one in-flight probe passes.
func (breaker *CircuitBreaker) allow() bool {
	breaker.mu.Lock()
	defer breaker.mu.Unlock()

	switch breaker.state {
	case BreakerClosed:
		return true
	case BreakerOpen:
		if breaker.clock.Now().Sub(breaker.openedAt) < breaker.timeout {
			return false
		}
		breaker.state = BreakerHalfOpen
		breaker.probing = true
		return true
	default:
		if breaker.probing {
			return false
		}
		breaker.probing = true
		return true
	}
}

func (breaker *CircuitBreaker) success() {
	breaker.mu.Lock()
	defer breaker.mu.Unlock()

	breaker.state = BreakerClosed
	breaker.failures = 0
	breaker.probing = false
}

func (breaker *CircuitBreaker) failure() {
	breaker.mu.Lock()
	defer breaker.mu.Unlock()

	if breaker.state == BreakerHalfOpen {
		breaker.open()
		return
	}

	breaker.failures++

	if breaker.failures >= breaker.threshold {
		breaker.open()
	}
}

// open flips to open and starts the timeout window.  Caller holds the lock.
func (breaker *CircuitBreaker) open() {
	breaker.state = BreakerOpen
	breaker.openedAt = breaker.clock.Now()
	breaker.failures = 0
	breaker.probing = false
}

// Break fails fast while the circuit is open.  Only failure classes that
// indicate an unhealthy peer trip the breaker; a 4xx from our own bad
// request does not.
func Break(breaker *CircuitBreaker) Middleware {
	return func(next Transport) Transport {
		return func(ctx context.Context, req *Request) (*Response, error) {
			if !breaker.allow() {
				return nil, a2a.ErrAgentUnavailable.WithData(map[string]any{
					"reason": "circuit_open",
				})
			}

			resp, err := next(ctx, req)

			status := 0
			if resp != nil {
				status = resp.Status
			}

			if err != nil && retryableStatus(status) {
				breaker.failure()
			} else {
				breaker.success()
			}

			return resp, err
		}
	}
}
