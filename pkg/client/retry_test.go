package client

import (
	"context"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/agentwire/a2a-runtime/pkg/a2a"
	"github.com/agentwire/a2a-runtime/pkg/runtime"
)

func fastRetryConfig() runtime.RetryConfig {
	return runtime.RetryConfig{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func TestRetryRecoversFromTransientFailure(t *testing.T) {
	calls := 0

	transport := Retry(fastRetryConfig(), log.Default())(func(ctx context.Context, req *Request) (*Response, error) {
		calls++
		if calls < 3 {
			return &Response{Status: 503}, a2a.ErrAgentUnavailable
		}
		return &Response{Status: 200}, nil
	})

	resp, err := transport(context.Background(), &Request{Method: "tasks/get"})

	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if resp.Status != 200 {
		t.Errorf("status = %d", resp.Status)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestRetryStopsAtMaxAttempts(t *testing.T) {
	calls := 0

	transport := Retry(fastRetryConfig(), log.Default())(func(ctx context.Context, req *Request) (*Response, error) {
		calls++
		return &Response{Status: 500}, a2a.ErrInternal
	})

	_, err := transport(context.Background(), &Request{Method: "tasks/get"})

	if err == nil {
		t.Fatal("expected the final error")
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

// Non-transient failures must not burn attempts.
func TestRetrySkipsPermanentErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		err    *a2a.RpcError
	}{
		{"invalid params", 200, a2a.ErrInvalidParams},
		{"task not found", 200, a2a.ErrTaskNotFound},
		{"retryable code on a 4xx", 400, a2a.ErrInternal},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			calls := 0

			transport := Retry(fastRetryConfig(), log.Default())(func(ctx context.Context, req *Request) (*Response, error) {
				calls++
				return &Response{Status: tc.status}, tc.err
			})

			transport(context.Background(), &Request{Method: "tasks/get"})

			if calls != 1 {
				t.Errorf("calls = %d, want 1", calls)
			}
		})
	}
}

func TestRetryBackoffWithinJitterBounds(t *testing.T) {
	cfg := runtime.RetryConfig{
		InitialDelay: time.Second,
		MaxDelay:     60 * time.Second,
		Multiplier:   2.0,
	}

	tests := []struct {
		attempt int
		base    time.Duration
	}{
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{10, 60 * time.Second},
	}

	for _, tc := range tests {
		for i := 0; i < 20; i++ {
			got := retryBackoff(cfg, tc.attempt)
			lo := time.Duration(float64(tc.base) * 0.9)
			hi := time.Duration(float64(tc.base) * 1.1)

			if got < lo || got > hi {
				t.Fatalf("backoff(%d) = %v, outside [%v, %v]", tc.attempt, got, lo, hi)
			}
		}
	}
}

func TestChainOrder(t *testing.T) {
	var order []string

	tag := func(name string) Middleware {
		return func(next Transport) Transport {
			return func(ctx context.Context, req *Request) (*Response, error) {
				order = append(order, name)
				return next(ctx, req)
			}
		}
	}

	transport := Chain(func(ctx context.Context, req *Request) (*Response, error) {
		order = append(order, "transport")
		return &Response{Status: 200}, nil
	}, tag("outer"), tag("inner"))

	transport(context.Background(), &Request{Method: "tasks/get"})

	want := []string{"outer", "inner", "transport"}

	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}
