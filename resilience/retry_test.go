package resilience

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	apperrors "github.com/kbukum/service-template/errors"
)

func fastConfig(attempts int) RetryConfig {
	return RetryConfig{
		Name:           "test",
		MaxAttempts:    attempts,
		InitialBackoff: time.Millisecond,
		BackoffFactor:  2.0,
		OnRetry:        func(int, error, time.Duration) {},
	}
}

func TestRetry_SucceedsOnFirstAttempt(t *testing.T) {
	callCount := 0
	result, err := Retry(context.Background(), fastConfig(3), func(context.Context) (string, error) {
		callCount++
		return "success", nil
	})

	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if result != "success" {
		t.Errorf("expected 'success', got %s", result)
	}
	if callCount != 1 {
		t.Errorf("expected 1 call, got %d", callCount)
	}
}

func TestRetry_SucceedsAfterRetry(t *testing.T) {
	callCount := 0
	err := RetryFunc(context.Background(), fastConfig(3), func(context.Context) error {
		callCount++
		if callCount < 3 {
			return apperrors.BrokerConnection("connection-setup", errors.New("refused"))
		}
		return nil
	})

	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if callCount != 3 {
		t.Errorf("expected 3 calls, got %d", callCount)
	}
}

func TestRetry_ExceedsMaxAttempts(t *testing.T) {
	callCount := 0
	testErr := errors.New("persistent error")

	err := RetryFunc(context.Background(), fastConfig(3), func(context.Context) error {
		callCount++
		return testErr
	})

	if !errors.Is(err, testErr) {
		t.Errorf("expected testErr, got %v", err)
	}
	if callCount != 3 {
		t.Errorf("expected 3 calls, got %d", callCount)
	}
}

func TestRetry_SingleAttemptByDefault(t *testing.T) {
	callCount := 0
	cfg := RetryConfig{OnRetry: func(int, error, time.Duration) {}}
	_ = RetryFunc(context.Background(), cfg, func(context.Context) error {
		callCount++
		return errors.New("boom")
	})
	if callCount != 1 {
		t.Errorf("expected zero MaxAttempts to mean one attempt, got %d", callCount)
	}
}

func TestRetry_RespectsContext(t *testing.T) {
	cfg := fastConfig(10)
	cfg.InitialBackoff = 100 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	callCount := 0
	testErr := errors.New("error")
	err := RetryFunc(ctx, cfg, func(context.Context) error {
		callCount++
		return testErr
	})

	if !errors.Is(err, testErr) {
		t.Errorf("expected last attempt error, got %v", err)
	}
	if callCount >= 10 {
		t.Errorf("expected fewer than 10 calls, got %d", callCount)
	}
}

func TestRetry_CancelledBeforeFirstAttempt(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := RetryFunc(ctx, fastConfig(3), func(context.Context) error {
		called = true
		return nil
	})
	if called {
		t.Error("fn should not run on a cancelled context")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestDefaultRetryIf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"plain error", errors.New("x"), true},
		{"broker connection", apperrors.BrokerConnection("connection-setup", nil), true},
		{"validation", apperrors.Validation("bad url"), false},
		{"non-retryable custom", apperrors.New(apperrors.ErrCodeInternal, "x", http.StatusInternalServerError), false},
		{"canceled", context.Canceled, false},
		{"deadline", context.DeadlineExceeded, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := DefaultRetryIf(tc.err); got != tc.want {
				t.Errorf("DefaultRetryIf(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}

func TestRetry_StopsOnNonRetryable(t *testing.T) {
	callCount := 0
	err := RetryFunc(context.Background(), fastConfig(3), func(context.Context) error {
		callCount++
		return apperrors.Validation("bad url")
	})
	if callCount != 1 {
		t.Errorf("expected 1 call for non-retryable error, got %d", callCount)
	}
	if !apperrors.IsCode(err, apperrors.ErrCodeInvalidInput) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestRetry_OnRetryCallback(t *testing.T) {
	var retries []int
	var mu sync.Mutex

	cfg := fastConfig(3)
	cfg.OnRetry = func(attempt int, err error, backoff time.Duration) {
		mu.Lock()
		retries = append(retries, attempt)
		mu.Unlock()
	}

	_ = RetryFunc(context.Background(), cfg, func(context.Context) error {
		return errors.New("error")
	})

	mu.Lock()
	defer mu.Unlock()

	if len(retries) != 2 {
		t.Fatalf("expected 2 OnRetry calls, got %d", len(retries))
	}
	if retries[0] != 1 || retries[1] != 2 {
		t.Errorf("expected attempts [1, 2], got %v", retries)
	}
}

func TestCalculateBackoff(t *testing.T) {
	cfg := RetryConfig{
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     1 * time.Second,
		BackoffFactor:  2.0,
	}

	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{4, 800 * time.Millisecond},
		{5, 1 * time.Second},
		{6, 1 * time.Second},
	}

	for _, tt := range tests {
		got := calculateBackoff(tt.attempt, cfg)
		if got != tt.expected {
			t.Errorf("attempt %d: expected %v, got %v", tt.attempt, tt.expected, got)
		}
	}
}
