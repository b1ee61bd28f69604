package upstream

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/Iron-Ham/ideaforge/internal/errors"
)

// Retry policy defaults.
const (
	DefaultMaxAttempts = 4
	DefaultBaseDelay   = time.Second
	DefaultMaxJitter   = time.Second
)

// Retrier retries calls that fail with a rate limit. Any other error is
// returned after the first attempt.
//
// The delay before attempt k+1 (k counted from zero) is
// 2^k * BaseDelay plus a uniform jitter in [0, MaxJitter).
type Retrier struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxJitter   time.Duration
	// AttemptTimeout bounds each attempt; zero means no per-attempt bound.
	AttemptTimeout time.Duration

	// Sleep waits for d or until ctx is done. Tests replace it.
	Sleep func(ctx context.Context, d time.Duration) error
	// Jitter returns a value in [0, max). Tests replace it.
	Jitter func(max time.Duration) time.Duration
	// OnRetry is called before sleeping between attempts.
	OnRetry func(call string, attempt int, delay time.Duration)
	// Ledger, when set, records every attempt.
	Ledger *Ledger
}

// NewRetrier returns a Retrier with the default policy.
func NewRetrier() *Retrier {
	return &Retrier{
		MaxAttempts: DefaultMaxAttempts,
		BaseDelay:   DefaultBaseDelay,
		MaxJitter:   DefaultMaxJitter,
	}
}

// WithAttemptTimeout returns a copy of r with a different per-attempt bound.
func (r *Retrier) WithAttemptTimeout(d time.Duration) *Retrier {
	cp := *r
	cp.AttemptTimeout = d
	return &cp
}

// WithLedger returns a copy of r that records attempts into l.
func (r *Retrier) WithLedger(l *Ledger) *Retrier {
	cp := *r
	cp.Ledger = l
	return &cp
}

// Delay returns the wait before the attempt following attempt k.
func (r *Retrier) Delay(k int) time.Duration {
	d := r.BaseDelay << k
	if r.MaxJitter > 0 {
		d += r.jitter(r.MaxJitter)
	}
	return d
}

func (r *Retrier) jitter(max time.Duration) time.Duration {
	if r.Jitter != nil {
		return r.Jitter(max)
	}
	return rand.N(max)
}

func (r *Retrier) sleep(ctx context.Context, d time.Duration) error {
	if r.Sleep != nil {
		return r.Sleep(ctx, d)
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (r *Retrier) attempts() int {
	if r.MaxAttempts < 1 {
		return 1
	}
	return r.MaxAttempts
}

// Call runs fn under r's policy. call labels the operation in errors, logs
// and the ledger.
//
// When every attempt is rate limited Call returns an error matching
// errors.ErrRetriesExhausted and not errors.ErrRateLimited. When an attempt
// runs past AttemptTimeout while ctx is still live, Call returns a
// *errors.TimeoutError without retrying.
func Call[T any](ctx context.Context, r *Retrier, call string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if r == nil {
		r = NewRetrier()
	}
	n := r.attempts()
	r.Ledger.begin(call, n)

	for k := range n {
		if err := ctx.Err(); err != nil {
			r.Ledger.record(call, err)
			return zero, err
		}

		actx, cancel := ctx, context.CancelFunc(func() {})
		if r.AttemptTimeout > 0 {
			actx, cancel = context.WithTimeout(ctx, r.AttemptTimeout)
		}
		v, err := fn(actx)
		timedOut := actx.Err() == context.DeadlineExceeded && ctx.Err() == nil
		cancel()

		if err == nil {
			r.Ledger.record(call, nil)
			return v, nil
		}
		if timedOut {
			terr := errors.NewTimeoutError(call, r.AttemptTimeout).WithCause(err)
			r.Ledger.record(call, terr)
			return zero, terr
		}
		r.Ledger.record(call, err)
		if !errors.IsRateLimited(err) {
			return zero, err
		}
		if k == n-1 {
			break
		}

		delay := r.Delay(k)
		if r.OnRetry != nil {
			r.OnRetry(call, k+1, delay)
		}
		if err := r.sleep(ctx, delay); err != nil {
			return zero, err
		}
	}

	return zero, errors.NewUpstreamError(fmt.Sprintf("rate limited on all %d attempts", n), errors.ErrRetriesExhausted).
		WithCall(call).
		WithAttempts(n).
		WithRetryable(false)
}
