package providers

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/avast/retry-go/v4"
)

// maxRetryDelay caps a single backoff sleep.
const maxRetryDelay = 60 * time.Second

// RetryPolicy controls how a provider retries rate-limited and transient failures.
type RetryPolicy struct {
	// RateLimitRetry enables retrying HTTP 429 responses.
	RateLimitRetry bool
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int
	// Delay is the base delay; attempt n waits Delay * 2^n unless the server sent Retry-After.
	Delay time.Duration
}

// DefaultRetryPolicy matches the SDK defaults: 3 retries starting at 5s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{RateLimitRetry: true, MaxRetries: 3, Delay: 5 * time.Second}
}

// do runs fn until it succeeds, fails permanently, or retries are exhausted.
// Returns the number of retries performed.
func (p RetryPolicy) do(ctx context.Context, logger *slog.Logger, provider string, fn func() error) (int, error) {
	if logger == nil {
		logger = slog.Default()
	}
	retries := 0
	err := retry.Do(
		fn,
		retry.Context(ctx),
		retry.Attempts(uint(max(p.MaxRetries, 0))+1),
		retry.Delay(p.Delay),
		retry.MaxDelay(maxRetryDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(p.retryable),
		retry.DelayType(func(n uint, err error, cfg *retry.Config) time.Duration {
			var rl *RateLimitError
			if errors.As(err, &rl) && rl.RetryAfter > 0 {
				return rl.RetryAfter
			}
			return retry.BackOffDelay(n, err, cfg)
		}),
		retry.OnRetry(func(n uint, err error) {
			retries = int(n) + 1
			logger.Warn("retrying OCR request",
				"provider", provider,
				"attempt", n+1,
				"max_retries", p.MaxRetries,
				"error", err)
		}),
	)
	return retries, err
}

func (p RetryPolicy) retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return p.RateLimitRetry
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Retryable()
	}
	return false
}
