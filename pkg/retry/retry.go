// Package retry retries calls to PostgreSQL and Redis with jittered
// exponential backoff.
package retry

import (
	"context"
	"errors"
	"math/rand"
	"net"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// Config defines retry behavior with exponential backoff
type Config struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	JitterFactor float64 // 0.0-1.0, +/- jitter applied to each delay
}

// DefaultConfig returns defaults for short-lived infrastructure calls such
// as queue pushes: 3 retries from 100ms, capped at 5s.
func DefaultConfig() *Config {
	return &Config{
		MaxRetries:   3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.1,
	}
}

func applyJitter(delay time.Duration, jitterFactor float64) time.Duration {
	if jitterFactor <= 0 {
		return delay
	}
	jitter := float64(delay) * jitterFactor * (rand.Float64()*2 - 1)
	return time.Duration(float64(delay) + jitter)
}

// backoff sleeps for delay and returns the next delay, or ctx's error if it
// is done first.
func backoff(ctx context.Context, cfg *Config, delay time.Duration) (time.Duration, error) {
	timer := time.NewTimer(applyJitter(delay, cfg.JitterFactor))
	defer timer.Stop()

	select {
	case <-timer.C:
		return min(time.Duration(float64(delay)*cfg.Multiplier), cfg.MaxDelay), nil
	case <-ctx.Done():
		return delay, ctx.Err()
	}
}

// DoWithResult calls fn until it succeeds or MaxRetries retries have failed,
// retrying every error fn returns. It returns the last result and error.
func DoWithResult[T any](ctx context.Context, cfg *Config, fn func() (T, error)) (T, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	delay := cfg.InitialDelay
	for attempt := 0; ; attempt++ {
		result, err := fn()
		var p permanent
		if err == nil || attempt == cfg.MaxRetries || errors.As(err, &p) {
			return result, err
		}
		if delay, err = backoff(ctx, cfg, delay); err != nil {
			return result, err
		}
	}
}

// DoIfRetryable calls fn like DoWithResult but returns the first error that
// IsRetryable rejects without retrying.
func DoIfRetryable(ctx context.Context, cfg *Config, fn func() error) error {
	_, err := DoWithResult(ctx, cfg, func() (struct{}, error) {
		err := fn()
		if err != nil && !IsRetryable(err) {
			return struct{}{}, permanent{err}
		}
		return struct{}{}, err
	})

	var p permanent
	if errors.As(err, &p) {
		return p.err
	}
	return err
}

// permanent stops DoWithResult from retrying an error.
type permanent struct{ err error }

func (p permanent) Error() string { return p.err.Error() }

// retryablePatterns match transient failures reported only as text.
var retryablePatterns = []string{
	"connection refused",
	"connection reset",
	"broken pipe",
	"no such host",
	"timeout",
	"timed out",
	"too many connections",
	"the database system is starting up",
	"loading", // redis LOADING dataset in memory
	"tryagain",
}

// IsRetryable reports whether err is a transient PostgreSQL, Redis or
// network failure. Context cancellation is never retryable.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if pgconn.SafeToRetry(err) {
		return true
	}

	errStr := strings.ToLower(err.Error())
	for _, pattern := range retryablePatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}
	return false
}
