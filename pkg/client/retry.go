package client

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/charmbracelet/log"

	"github.com/agentwire/a2a-runtime/pkg/runtime"
)

/*
Retry re-issues calls whose failure is transient in both dimensions: the
error class is retryable and the HTTP status (or its absence) is.  Anything
else propagates immediately, so a validation error never burns attempts.
*/
func Retry(cfg runtime.RetryConfig, logger *log.Logger) Middleware {
	return func(next Transport) Transport {
		return func(ctx context.Context, req *Request) (*Response, error) {
			var (
				resp *Response
				err  error
			)

			for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
				resp, err = next(ctx, req)

				if err == nil {
					return resp, nil
				}

				status := 0
				if resp != nil {
					status = resp.Status
				}

				if !retryableError(err) || !retryableStatus(status) {
					return resp, err
				}

				if attempt == cfg.MaxAttempts {
					break
				}

				delay := retryBackoff(cfg, attempt)

				logger.Warn("rpc call retrying",
					"method", req.Method, "attempt", attempt,
					"delay", delay, "error", err)

				select {
				case <-ctx.Done():
					return resp, err
				case <-time.After(delay):
				}
			}

			return resp, err
		}
	}
}

// retryBackoff is exponential with a cap and ±10 % jitter.
func retryBackoff(cfg runtime.RetryConfig, attempt int) time.Duration {
	delay := float64(cfg.InitialDelay) * math.Pow(cfg.Multiplier, float64(attempt-1))

	if capped := float64(cfg.MaxDelay); delay > capped {
		delay = capped
	}

	delay *= 1 + (rand.Float64()*2-1)*0.1

	return time.Duration(delay)
}
