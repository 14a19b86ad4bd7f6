package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

var testConfig = Config{MaxAttempts: 5, BaseDelay: time.Millisecond}

func TestSucceedsFirstAttempt(t *testing.T) {
	calls := 0
	result, err := Do(context.Background(), testConfig, func() (string, error) {
		calls++
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "ok" {
		t.Errorf("expected 'ok', got %q", result)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestSucceedsAfterFourFailures(t *testing.T) {
	calls := 0
	result, err := Do(context.Background(), testConfig, func() (int, error) {
		calls++
		if calls < 5 {
			return 0, errors.New("transient")
		}
		return 42, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != 42 {
		t.Errorf("expected 42, got %d", result)
	}
	if calls != 5 {
		t.Errorf("expected exactly 5 attempts, got %d", calls)
	}
}

func TestExhaustsAfterMaxAttempts(t *testing.T) {
	calls := 0
	underlying := errors.New("always fails")
	_, err := Do(context.Background(), testConfig, func() (int, error) {
		calls++
		return 0, underlying
	})
	if calls != 5 {
		t.Errorf("expected exactly 5 attempts, got %d", calls)
	}

	var exhausted *ExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("expected *ExhaustedError, got %T: %v", err, err)
	}
	if exhausted.Attempts != 5 {
		t.Errorf("expected Attempts=5, got %d", exhausted.Attempts)
	}
	if !errors.Is(err, underlying) {
		t.Error("expected exhausted error to wrap the last underlying error")
	}
}

func TestContextCancellationAbortsWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	cfg := Config{MaxAttempts: 5, BaseDelay: time.Hour}
	_, err := Do(ctx, cfg, func() (int, error) {
		calls++
		return 0, errors.New("fail")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 attempt before cancellation, got %d", calls)
	}
}

func TestZeroConfigUsesDefaults(t *testing.T) {
	calls := 0
	result, err := Do(context.Background(), Config{}, func() (bool, error) {
		calls++
		return true, nil
	})
	if err != nil || !result {
		t.Fatalf("unexpected result: %v, %v", result, err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}
