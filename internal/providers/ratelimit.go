package providers

import (
	"context"
	"errors"
	"sync"
	"time"
)

// RateLimiter implements a token bucket rate limiter.
// The bucket holds at most max(1, rps) tokens and refills continuously.
type RateLimiter struct {
	mu sync.Mutex

	// Configuration
	rps   float64
	burst float64

	// Token bucket state
	tokens     float64
	lastUpdate time.Time

	// Statistics
	totalConsumed int64
	totalWaited   time.Duration
	last429Time   time.Time
}

// RateLimiterStatus reports current limiter state.
type RateLimiterStatus struct {
	TokensAvailable int           `json:"tokens_available" yaml:"tokens_available"`
	RequestsPerSec  float64       `json:"requests_per_second" yaml:"requests_per_second"`
	Utilization     float64       `json:"utilization" yaml:"utilization"`
	TimeUntilToken  time.Duration `json:"time_until_token" yaml:"time_until_token"`
	TotalConsumed   int64         `json:"total_consumed" yaml:"total_consumed"`
	TotalWaited     time.Duration `json:"total_waited" yaml:"total_waited"`
	Last429Time     time.Time     `json:"last_429_time,omitempty" yaml:"last_429_time,omitempty"`
}

// NewRateLimiter creates a limiter allowing rps requests per second.
// rps <= 0 disables limiting.
func NewRateLimiter(rps float64) *RateLimiter {
	burst := rps
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		rps:        rps,
		burst:      burst,
		tokens:     burst,
		lastUpdate: time.Now(),
	}
}

// Wait blocks until a token is available or context is cancelled.
func (r *RateLimiter) Wait(ctx context.Context) error {
	if r.rps <= 0 {
		return ctx.Err()
	}
	for {
		r.mu.Lock()
		r.refill()

		if r.tokens >= 1.0 {
			r.tokens--
			r.totalConsumed++
			r.mu.Unlock()
			return nil
		}

		waitTime := r.timeUntilToken()
		r.mu.Unlock()

		// Wait outside lock
		timer := time.NewTimer(waitTime)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
			r.mu.Lock()
			r.totalWaited += waitTime
			r.mu.Unlock()
		}
	}
}

// TryConsume attempts to consume a token without blocking.
func (r *RateLimiter) TryConsume() bool {
	if r.rps <= 0 {
		return true
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.refill()
	if r.tokens >= 1.0 {
		r.tokens--
		r.totalConsumed++
		return true
	}
	return false
}

// Record429 should be called when a 429 error is received.
// Drains the bucket when the server asked us to back off.
func (r *RateLimiter) Record429(retryAfter time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.last429Time = time.Now()
	if retryAfter > 0 {
		r.tokens = 0
	}
}

// Status returns current limiter status.
func (r *RateLimiter) Status() RateLimiterStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.refill()

	utilization := 1.0 - (r.tokens / r.burst)
	if utilization < 0 {
		utilization = 0
	}

	var until time.Duration
	if r.rps > 0 && r.tokens < 1.0 {
		until = r.timeUntilToken()
	}

	return RateLimiterStatus{
		TokensAvailable: int(r.tokens),
		RequestsPerSec:  r.rps,
		Utilization:     utilization,
		TimeUntilToken:  until,
		TotalConsumed:   r.totalConsumed,
		TotalWaited:     r.totalWaited,
		Last429Time:     r.last429Time,
	}
}

// timeUntilToken must be called with lock held.
func (r *RateLimiter) timeUntilToken() time.Duration {
	needed := 1.0 - r.tokens
	d := time.Duration(needed / r.rps * float64(time.Second))
	if d < time.Millisecond {
		d = time.Millisecond
	}
	return d
}

// refill adds tokens based on elapsed time. Must be called with lock held.
func (r *RateLimiter) refill() {
	now := time.Now()
	elapsed := now.Sub(r.lastUpdate).Seconds()
	r.lastUpdate = now

	r.tokens += elapsed * r.rps
	if r.tokens > r.burst {
		r.tokens = r.burst
	}
}

// RateLimitedProvider wraps an OCRProvider so every call waits for a limiter token.
type RateLimitedProvider struct {
	OCRProvider
	limiter *RateLimiter
}

// WithRateLimit wraps p with a limiter built from p.RequestsPerSecond().
func WithRateLimit(p OCRProvider) *RateLimitedProvider {
	return &RateLimitedProvider{OCRProvider: p, limiter: NewRateLimiter(p.RequestsPerSecond())}
}

// ProcessImage waits for a token, then delegates.
func (p *RateLimitedProvider) ProcessImage(ctx context.Context, image []byte, pageNum int, mode Mode) (*OCRResult, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return failedResult(mode, time.Now(), err), err
	}
	res, err := p.OCRProvider.ProcessImage(ctx, image, pageNum, mode)
	var rl *RateLimitError
	if errors.As(err, &rl) {
		p.limiter.Record429(rl.RetryAfter)
	}
	return res, err
}

// Limiter exposes the underlying limiter for status reporting.
func (p *RateLimitedProvider) Limiter() *RateLimiter {
	return p.limiter
}

// Unwrap returns the wrapped provider.
func (p *RateLimitedProvider) Unwrap() OCRProvider {
	return p.OCRProvider
}

var _ OCRProvider = (*RateLimitedProvider)(nil)
