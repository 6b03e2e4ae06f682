package provider

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/openai/openai-go"
)

func recordSleeps(waits *[]time.Duration) func(context.Context, time.Duration) error {
	return func(_ context.Context, d time.Duration) error {
		*waits = append(*waits, d)
		return nil
	}
}

func TestCallWithRetry_RateLimitThenSuccess(t *testing.T) {
	t.Parallel()

	var waits []time.Duration
	policy := DefaultRetryPolicy()
	policy.Sleep = recordSleeps(&waits)

	calls := 0
	got, err := CallWithRetry(context.Background(), policy, func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", errors.New("429 Too Many Requests")
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if got != "ok" || calls != 3 {
		t.Fatalf("got=%q calls=%d, want ok after 3 calls", got, calls)
	}
	want := []time.Duration{65 * time.Second, 100 * time.Second}
	if len(waits) != len(want) || waits[0] != want[0] || waits[1] != want[1] {
		t.Fatalf("waits=%v, want %v", waits, want)
	}
}

func TestCallWithRetry_ServerErrorExhausts(t *testing.T) {
	t.Parallel()

	var waits []time.Duration
	policy := DefaultRetryPolicy()
	policy.Sleep = recordSleeps(&waits)

	base := errors.New("500 internal server error")
	_, err := CallWithRetry(context.Background(), policy, func(context.Context) (int, error) {
		return 0, base
	})
	if !errors.Is(err, base) {
		t.Fatalf("err=%v, want wrapped %v", err, base)
	}
	if len(waits) != 2 || waits[0] != 5*time.Second || waits[1] != 30*time.Second {
		t.Fatalf("waits=%v, want [5s 30s]", waits)
	}
}

func TestCallWithRetry_NonRetryableReturnsImmediately(t *testing.T) {
	t.Parallel()

	calls := 0
	policy := DefaultRetryPolicy()
	policy.Sleep = func(context.Context, time.Duration) error {
		t.Fatalf("unexpected sleep")
		return nil
	}
	bad := errors.New("invalid request: schema mismatch")
	_, err := CallWithRetry(context.Background(), policy, func(context.Context) (int, error) {
		calls++
		return 0, bad
	})
	if err != bad {
		t.Fatalf("err=%v, want %v", err, bad)
	}
	if calls != 1 {
		t.Fatalf("calls=%d, want 1", calls)
	}
}

func TestCallWithRetry_NoRetry(t *testing.T) {
	t.Parallel()

	calls := 0
	rate := errors.New("rate limit exceeded")
	_, err := CallWithRetry(context.Background(), NoRetry(), func(context.Context) (int, error) {
		calls++
		return 0, rate
	})
	if err != rate || calls != 1 {
		t.Fatalf("err=%v calls=%d, want bare error after 1 call", err, calls)
	}
}

func TestCallWithRetry_CanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	_, err := CallWithRetry(ctx, DefaultRetryPolicy(), func(context.Context) (int, error) {
		cancel()
		return 0, errors.New("429")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v, want context.Canceled", err)
	}
}

func TestErrorClassification(t *testing.T) {
	t.Parallel()

	if !isRateLimitError(&openai.Error{StatusCode: 429}) {
		t.Fatalf("typed 429 should be a rate limit")
	}
	if !isServerError(&openai.Error{StatusCode: 503}) {
		t.Fatalf("typed 503 should be a server error")
	}
	if isServerError(errors.New("bad request")) || isRateLimitError(nil) {
		t.Fatalf("unexpected classification")
	}
	if !isServerError(errors.New("anthropic: overloaded")) {
		t.Fatalf("overloaded should be retried as a server error")
	}
}
