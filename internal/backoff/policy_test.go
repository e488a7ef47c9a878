package backoff

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestComputeWithRandExponentialGrowth(t *testing.T) {
	policy := Policy{InitialMs: 1000, MaxMs: 60_000, Factor: 2, Jitter: 0}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 1 * time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 8 * time.Second},
	}
	for _, tt := range tests {
		if got := ComputeWithRand(policy, tt.attempt, 0); got != tt.want {
			t.Errorf("attempt %d = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestComputeWithRandCapped(t *testing.T) {
	policy := Policy{InitialMs: 30_000, MaxMs: 60_000, Factor: 2, Jitter: 0}
	if got := ComputeWithRand(policy, 10, 0); got != 60*time.Second {
		t.Errorf("capped delay = %v, want 60s", got)
	}
}

func TestComputeWithRandAbsoluteJitter(t *testing.T) {
	policy := ForReason(10 * time.Second)

	// randomValue 0 maps to -1s, 0.5 to 0, just-under-1 to just-under +1s.
	low := ComputeWithRand(policy, 1, 0)
	mid := ComputeWithRand(policy, 1, 0.5)
	high := ComputeWithRand(policy, 1, 0.999)

	if low != 9*time.Second {
		t.Errorf("low = %v, want 9s", low)
	}
	if mid != 10*time.Second {
		t.Errorf("mid = %v, want 10s", mid)
	}
	if high < 10*time.Second || high > 11*time.Second {
		t.Errorf("high = %v, want within (10s, 11s]", high)
	}
}

func TestComputeWithRandNeverNegative(t *testing.T) {
	policy := Policy{InitialMs: 100, MaxMs: 60_000, Factor: 2, Jitter: 5000, JitterMode: AbsoluteJitter}
	if got := ComputeWithRand(policy, 1, 0); got < 0 {
		t.Errorf("delay = %v, must not be negative", got)
	}
}

func TestRetrySucceedsAfterFailures(t *testing.T) {
	policy := Policy{InitialMs: 1, MaxMs: 10, Factor: 2}

	calls := 0
	value, err := Retry(context.Background(), policy, 5, func(attempt int) (string, error) {
		calls++
		if attempt < 3 {
			return "", errors.New("transient")
		}
		return "ok", nil
	}, nil)
	if err != nil {
		t.Fatalf("Retry() error: %v", err)
	}
	if value != "ok" || calls != 3 {
		t.Errorf("value = %q calls = %d", value, calls)
	}
}

func TestRetryExhaustsAttempts(t *testing.T) {
	policy := Policy{InitialMs: 1, MaxMs: 5, Factor: 2}

	_, err := Retry(context.Background(), policy, 3, func(int) (struct{}, error) {
		return struct{}{}, errors.New("always fails")
	}, nil)
	if !errors.Is(err, ErrMaxAttemptsExhausted) {
		t.Errorf("error = %v, want ErrMaxAttemptsExhausted", err)
	}
}

func TestRetryStopsOnNonRetryable(t *testing.T) {
	policy := Policy{InitialMs: 1, MaxMs: 5, Factor: 2}
	permanent := errors.New("auth failed")

	calls := 0
	_, err := Retry(context.Background(), policy, 5, func(int) (struct{}, error) {
		calls++
		return struct{}{}, permanent
	}, func(error) bool { return false })
	if !errors.Is(err, permanent) {
		t.Errorf("error = %v, want the permanent error", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, non-retryable errors must not retry", calls)
	}
}

func TestRetryHonorsContextCancellation(t *testing.T) {
	policy := Policy{InitialMs: 10_000, MaxMs: 60_000, Factor: 2}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := Retry(ctx, policy, 3, func(int) (struct{}, error) {
		return struct{}{}, errors.New("fail")
	}, nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Error("cancellation should interrupt the backoff sleep promptly")
	}
}
