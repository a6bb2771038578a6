package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDoSucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := Do(context.Background(), DefaultConfig(), func() error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	cfg := Config{MaxAttempts: 5, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond}
	calls := 0
	err := Do(context.Background(), cfg, func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestDoExhaustsAttempts(t *testing.T) {
	cfg := Config{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond}
	calls := 0
	err := Do(context.Background(), cfg, func() error {
		calls++
		return errors.New("always fails")
	})
	if err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestDoStopsOnPermanent(t *testing.T) {
	cfg := Config{MaxAttempts: 5, InitialDelay: time.Millisecond}
	calls := 0
	sentinel := errors.New("bad request")
	err := Do(context.Background(), cfg, func() error {
		calls++
		return Permanent(sentinel)
	})
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if !errors.Is(err, sentinel) {
		t.Errorf("expected wrapped sentinel, got %v", err)
	}
}

func TestDoRespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Do(ctx, DefaultConfig(), func() error {
		return errors.New("should not matter")
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestDoOnRetryCallback(t *testing.T) {
	var seen []int
	cfg := Config{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		OnRetry:      func(attempt int, err error) { seen = append(seen, attempt) },
	}
	_ = Do(context.Background(), cfg, func() error { return errors.New("x") })
	if len(seen) != 2 || seen[0] != 1 || seen[1] != 2 {
		t.Errorf("OnRetry attempts = %v, want [1 2]", seen)
	}
}

func TestDoWithValue(t *testing.T) {
	cfg := Config{MaxAttempts: 3, InitialDelay: time.Millisecond}
	calls := 0
	v, err := DoWithValue(context.Background(), cfg, func() (string, error) {
		calls++
		if calls < 2 {
			return "", errors.New("not yet")
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != "ok" {
		t.Errorf("value = %q, want ok", v)
	}
}

func TestBackoffGrowthAndCap(t *testing.T) {
	initial := 100 * time.Millisecond
	max := time.Second
	if d := Backoff(1, initial, max, 2.0); d != initial {
		t.Errorf("attempt 1 = %v, want %v", d, initial)
	}
	if d := Backoff(2, initial, max, 2.0); d != 200*time.Millisecond {
		t.Errorf("attempt 2 = %v, want 200ms", d)
	}
	if d := Backoff(10, initial, max, 2.0); d != max {
		t.Errorf("attempt 10 = %v, want capped at %v", d, max)
	}
}

func TestIsPermanentThroughWrapping(t *testing.T) {
	err := Permanent(errors.New("root"))
	wrapped := errors.Join(errors.New("outer"), err)
	if !IsPermanent(wrapped) {
		t.Error("expected permanent marker to survive wrapping")
	}
	if IsPermanent(errors.New("plain")) {
		t.Error("plain error must not be permanent")
	}
	if Permanent(nil) != nil {
		t.Error("Permanent(nil) must be nil")
	}
}
