package upstream

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/Iron-Ham/ideaforge/internal/errors"
)

func rateLimited() error {
	return errors.NewUpstreamError("too many requests", errors.ErrRateLimited).WithStatus(429)
}

// testRetrier records sleeps instead of waiting and uses a fixed jitter.
func testRetrier(jitter time.Duration) (*Retrier, *[]time.Duration) {
	var slept []time.Duration
	r := NewRetrier()
	r.Jitter = func(time.Duration) time.Duration { return jitter }
	r.Sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	return r, &slept
}

func TestCall_SucceedsAfterRateLimits(t *testing.T) {
	r, slept := testRetrier(250 * time.Millisecond)
	ledger := NewLedger()
	r = r.WithLedger(ledger)

	calls := 0
	got, err := Call(context.Background(), r, "opinions", func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", rateLimited()
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if got != "ok" || calls != 3 {
		t.Errorf("Call() = %q after %d calls", got, calls)
	}

	want := []time.Duration{1250 * time.Millisecond, 2250 * time.Millisecond}
	if fmt.Sprint(*slept) != fmt.Sprint(want) {
		t.Errorf("slept %v, want %v", *slept, want)
	}

	state, ok := ledger.State("opinions")
	if !ok {
		t.Fatal("ledger has no state for opinions")
	}
	if state.Attempts != 3 || state.RateLimited != 2 || !state.Succeeded || state.LastError != "" {
		t.Errorf("ledger state = %+v", state)
	}
}

func TestCall_Exhausted(t *testing.T) {
	r, slept := testRetrier(0)
	ledger := NewLedger()
	r = r.WithLedger(ledger)

	calls := 0
	_, err := Call(context.Background(), r, "critic", func(context.Context) (int, error) {
		calls++
		return 0, rateLimited()
	})

	if calls != 4 {
		t.Errorf("made %d attempts, want 4", calls)
	}
	if !errors.Is(err, errors.ErrRetriesExhausted) {
		t.Fatalf("error = %v, want ErrRetriesExhausted", err)
	}
	if errors.IsRateLimited(err) {
		t.Error("exhausted error must be distinguishable from a single rate limit")
	}
	if errors.IsRetryable(err) {
		t.Error("exhausted error must not be retryable")
	}
	var ue *errors.UpstreamError
	if !errors.As(err, &ue) || ue.Attempts != 4 || ue.Call != "critic" {
		t.Errorf("error = %#v", err)
	}

	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}
	if fmt.Sprint(*slept) != fmt.Sprint(want) {
		t.Errorf("slept %v, want %v", *slept, want)
	}
	if state, _ := ledger.State("critic"); !state.Exhausted() {
		t.Errorf("state should be exhausted: %+v", state)
	}
	if failed := ledger.Failed(); len(failed) != 1 || failed[0] != "critic" {
		t.Errorf("Failed() = %v", failed)
	}
}

func TestCall_NonRateLimitNotRetried(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"server error", errors.NewUpstreamError("boom", errors.ErrUpstreamUnavailable).WithStatus(503)},
		{"malformed", errors.ErrMalformedOutput},
		{"plain", fmt.Errorf("network down")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, slept := testRetrier(0)
			calls := 0
			_, err := Call(context.Background(), r, "x", func(context.Context) (int, error) {
				calls++
				return 0, tt.err
			})
			if calls != 1 || len(*slept) != 0 {
				t.Errorf("calls = %d, sleeps = %d; want 1, 0", calls, len(*slept))
			}
			if !errors.Is(err, tt.err) {
				t.Errorf("error = %v, want %v", err, tt.err)
			}
		})
	}
}

func TestCall_AttemptTimeout(t *testing.T) {
	r, _ := testRetrier(0)
	r = r.WithAttemptTimeout(10 * time.Millisecond)

	calls := 0
	_, err := Call(context.Background(), r, "synthesis", func(ctx context.Context) (int, error) {
		calls++
		<-ctx.Done()
		return 0, ctx.Err()
	})
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if !errors.Is(err, errors.ErrTimeout) {
		t.Errorf("error = %v, want ErrTimeout", err)
	}
}

func TestCall_ParentCanceled(t *testing.T) {
	r := NewRetrier()
	r.Jitter = func(time.Duration) time.Duration { return 0 }
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	_, err := Call(ctx, r, "x", func(context.Context) (int, error) {
		calls++
		cancel()
		return 0, rateLimited()
	})
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestRetrier_Delay(t *testing.T) {
	r := NewRetrier()
	for k := range 4 {
		base := time.Second << k
		for range 20 {
			d := r.Delay(k)
			if d < base || d >= base+time.Second {
				t.Fatalf("Delay(%d) = %v, want in [%v, %v)", k, d, base, base+time.Second)
			}
		}
	}

	r.MaxJitter = 0
	if d := r.Delay(2); d != 4*time.Second {
		t.Errorf("Delay(2) without jitter = %v", d)
	}
}

func TestLedger_NilSafe(t *testing.T) {
	var l *Ledger
	l.begin("x", 3)
	l.record("x", nil)
	if _, ok := l.State("x"); ok {
		t.Error("nil ledger should have no state")
	}
	if l.TotalAttempts() != 0 || l.Failed() != nil {
		t.Error("nil ledger should be empty")
	}
	l.Reset()
}

func TestLedger_States(t *testing.T) {
	l := NewLedger()
	l.begin("synthesis", 4)
	l.begin("critic", 4)
	l.record("critic", nil)
	l.record("synthesis", rateLimited())
	l.record("synthesis", nil)
	l.record("unknown", nil)

	states := l.States()
	if len(states) != 2 || states[0].Call != "critic" || states[1].Call != "synthesis" {
		t.Fatalf("States() = %+v", states)
	}
	if l.TotalAttempts() != 3 {
		t.Errorf("TotalAttempts() = %d, want 3", l.TotalAttempts())
	}

	l.Reset()
	if len(l.States()) != 0 {
		t.Error("Reset() should clear states")
	}
}
