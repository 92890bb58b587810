package httpclient

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"
)

func TestDoRetriesOnTransportError(t *testing.T) {
	var calls int
	boom := errors.New("boom")
	err := do(context.Background(), RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond},
		func(context.Context) (int, error) {
			calls++
			if calls < 3 {
				return 0, boom
			}
			return http.StatusOK, nil
		})
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}

func TestDoStopsImmediatelyOnErrNotFound(t *testing.T) {
	var calls int
	err := do(context.Background(), RetryPolicy{MaxAttempts: 5, BaseDelay: time.Millisecond},
		func(context.Context) (int, error) {
			calls++
			return http.StatusNotFound, ErrNotFound
		})
	if err != ErrNotFound {
		t.Fatalf("do: got %v, want ErrNotFound", err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestDoRespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := do(ctx, RetryPolicy{MaxAttempts: 3, BaseDelay: 50 * time.Millisecond},
		func(context.Context) (int, error) {
			return http.StatusServiceUnavailable, &statusError{status: http.StatusServiceUnavailable}
		})
	if err == nil {
		t.Fatal("do: expected error from cancelled context")
	}
}

func TestStatusCodeExtractsWrappedStatus(t *testing.T) {
	err := do(context.Background(), RetryPolicy{MaxAttempts: 1},
		func(context.Context) (int, error) {
			return http.StatusServiceUnavailable, &statusError{status: http.StatusServiceUnavailable}
		})
	code, ok := StatusCode(err)
	if !ok {
		t.Fatal("StatusCode: ok = false, want true")
	}
	if code != http.StatusServiceUnavailable {
		t.Fatalf("code = %d, want 503", code)
	}
}

func TestIsTransientAfterExhaustedRetries(t *testing.T) {
	err := do(context.Background(), RetryPolicy{MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond},
		func(context.Context) (int, error) {
			return http.StatusServiceUnavailable, &statusError{status: http.StatusServiceUnavailable}
		})
	if !IsTransient(err) {
		t.Fatal("IsTransient: got false, want true after exhausting retries on a 503")
	}
}

func TestIsTransientFalseForNotFound(t *testing.T) {
	err := do(context.Background(), RetryPolicy{MaxAttempts: 3},
		func(context.Context) (int, error) {
			return http.StatusNotFound, ErrNotFound
		})
	if IsTransient(err) {
		t.Fatal("IsTransient: got true for ErrNotFound, want false")
	}
}

func TestIsTransientFalseForNonRetryableStatus(t *testing.T) {
	err := do(context.Background(), RetryPolicy{MaxAttempts: 3},
		func(context.Context) (int, error) {
			return http.StatusBadRequest, &statusError{status: http.StatusBadRequest}
		})
	if IsTransient(err) {
		t.Fatal("IsTransient: got true for a terminal 400, want false")
	}
}
