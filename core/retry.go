package core

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"
)

// RetryPolicy determines retry behavior for failed requests.
type RetryPolicy interface {
	// NextDelay returns the delay before the next attempt and whether to make it.
	// failed is the number of attempts that have failed so far (1 after the
	// first failure).
	NextDelay(failed int, err error) (delay time.Duration, ok bool)
}

// RetryConfig configures retry behavior.
type RetryConfig struct {
	MaxAttempts int           // Total attempts including the first (default: 3)
	BaseDelay   time.Duration // Delay before the second attempt (default: 1s)
	MaxDelay    time.Duration // Delay cap (default: 30s)
	Jitter      float64       // Jitter factor 0.0-1.0 (default: 0)
}

// DefaultRetryPolicy returns 3 attempts with 1s, 2s backoff and no jitter.
func DefaultRetryPolicy() RetryPolicy {
	return NewRetryPolicy(RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		MaxDelay:    30 * time.Second,
	})
}

// NoRetry returns a policy that makes a single attempt.
func NoRetry() RetryPolicy {
	return NewRetryPolicy(RetryConfig{MaxAttempts: 1})
}

// NewRetryPolicy creates a retry policy with the given configuration.
func NewRetryPolicy(cfg RetryConfig) RetryPolicy {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = time.Second
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 30 * time.Second
	}
	if cfg.Jitter < 0 || cfg.Jitter > 1 {
		cfg.Jitter = 0
	}
	return &exponentialBackoff{cfg: cfg}
}

type exponentialBackoff struct {
	cfg RetryConfig
}

func (e *exponentialBackoff) NextDelay(failed int, err error) (time.Duration, bool) {
	if failed >= e.cfg.MaxAttempts {
		return 0, false
	}
	if !IsRetryable(err) {
		return 0, false
	}

	// Delay before attempt k (k >= 2) is base * 2^(k-2); failed == k-1.
	delay := float64(e.cfg.BaseDelay) * math.Pow(2, float64(failed-1))

	if e.cfg.Jitter > 0 {
		spread := delay * e.cfg.Jitter
		delay += (rand.Float64()*2 - 1) * spread
	}
	if delay > float64(e.cfg.MaxDelay) {
		delay = float64(e.cfg.MaxDelay)
	}
	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay), true
}

// IsRetryable reports whether err is worth another attempt: server errors
// and connection-level failures only.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrCancelled) || errors.Is(err, context.Canceled) {
		return false
	}
	for _, terminal := range []error{ErrAuth, ErrValidation, ErrNotFound, ErrDecode, ErrConfig} {
		if errors.Is(err, terminal) {
			return false
		}
	}
	return errors.Is(err, ErrServer) || errors.Is(err, ErrTransport)
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// RetryEvent describes a scheduled retry.
type RetryEvent struct {
	CallID  string
	Op      string
	Attempt int           // the attempt about to be made, 2-based
	Delay   time.Duration // wait before that attempt
	Err     error         // failure that triggered the retry
}

// Retrier runs an operation under a RetryPolicy. It is a small state
// machine: each call to Record moves it from running to either waiting
// (with a delay) or done. A Retrier is used for one logical call.
type Retrier struct {
	policy   RetryPolicy
	sleep    SleepFunc
	onRetry  func(RetryEvent)
	attempts int
	lastErr  error
	done     bool
}

// NewRetrier returns a Retrier in its initial state. A nil sleep uses a
// context-aware timer.
func NewRetrier(policy RetryPolicy, sleep SleepFunc) *Retrier {
	if policy == nil {
		policy = DefaultRetryPolicy()
	}
	if sleep == nil {
		sleep = sleepContext
	}
	return &Retrier{policy: policy, sleep: sleep}
}

// Attempts returns how many attempts have been recorded.
func (r *Retrier) Attempts() int { return r.attempts }

// LastErr returns the most recent recorded failure.
func (r *Retrier) LastErr() error { return r.lastErr }

// Done reports whether no further attempts will be made.
func (r *Retrier) Done() bool { return r.done }

// Record registers the outcome of one attempt and returns the delay before
// the next one. ok is false once the call has succeeded or must stop.
func (r *Retrier) Record(err error) (delay time.Duration, ok bool) {
	r.attempts++
	if err == nil {
		r.lastErr = nil
		r.done = true
		return 0, false
	}
	r.lastErr = err
	delay, ok = r.policy.NextDelay(r.attempts, err)
	if !ok {
		r.done = true
	}
	return delay, ok
}

// Execute runs op until it succeeds or the policy gives up. Waiting honors
// ctx; cancellation while waiting ends the call with ErrCancelled.
func Execute[T any](ctx context.Context, r *Retrier, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	for {
		v, err := op(ctx)
		delay, again := r.Record(err)
		if err == nil {
			return v, nil
		}
		if !again {
			return zero, err
		}
		if r.onRetry != nil {
			r.onRetry(RetryEvent{Attempt: r.attempts + 1, Delay: delay, Err: err})
		}
		if serr := r.sleep(ctx, delay); serr != nil {
			r.done = true
			if errors.Is(serr, context.Canceled) {
				r.lastErr = MapTransportError(ctx, "", serr)
				return zero, r.lastErr
			}
			return zero, err
		}
	}
}
