package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetryDisabledRunsOnce(t *testing.T) {
	calls := 0
	boom := errors.New("boom")

	err := Retry(context.Background(), DefaultRetryConfig(), nil, func(context.Context) error {
		calls++
		return boom
	})

	if !errors.Is(err, boom) {
		t.Errorf("Retry() = %v, want boom", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestRetryEventuallySucceeds(t *testing.T) {
	calls := 0
	cfg := RetryConfig{Retries: 3, Backoff: time.Millisecond}

	err := Retry(context.Background(), cfg, nil, func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})

	if err != nil {
		t.Fatalf("Retry() = %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestRetryExhausted(t *testing.T) {
	calls := 0
	boom := errors.New("boom")
	cfg := RetryConfig{Retries: 2, Backoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}

	err := Retry(context.Background(), cfg, nil, func(context.Context) error {
		calls++
		return boom
	})

	if !errors.Is(err, boom) {
		t.Errorf("Retry() = %v, want boom", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3 (1 + 2 retries)", calls)
	}
}

func TestRetrySkipsNonRetryable(t *testing.T) {
	calls := 0
	fatal := errors.New("fatal")
	cfg := RetryConfig{Retries: 5, Backoff: time.Millisecond}

	err := Retry(context.Background(), cfg, func(err error) bool { return !errors.Is(err, fatal) },
		func(context.Context) error {
			calls++
			return fatal
		})

	if !errors.Is(err, fatal) {
		t.Errorf("Retry() = %v, want fatal", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestRetryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := RetryConfig{Retries: 10, Backoff: time.Millisecond}
	calls := 0

	err := Retry(ctx, cfg, nil, func(context.Context) error {
		calls++
		cancel()
		return errors.New("transient")
	})

	if !errors.Is(err, context.Canceled) {
		t.Errorf("Retry() = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}
