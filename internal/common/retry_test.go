package common

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDo_SucceedsAfterRetries(t *testing.T) {
	tests := []struct {
		name             string
		failUntilN       int
		maxRetries       int
		expectedAttempts int
		shouldSucceed    bool
	}{
		{name: "first attempt", failUntilN: 1, maxRetries: 3, expectedAttempts: 1, shouldSucceed: true},
		{name: "second attempt", failUntilN: 2, maxRetries: 3, expectedAttempts: 2, shouldSucceed: true},
		{name: "last retry", failUntilN: 4, maxRetries: 3, expectedAttempts: 4, shouldSucceed: true},
		{name: "exhausted", failUntilN: 10, maxRetries: 3, expectedAttempts: 4, shouldSucceed: false},
		{name: "zero retries", failUntilN: 10, maxRetries: 0, expectedAttempts: 1, shouldSucceed: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attempts := 0
			err := Do(context.Background(), func() error {
				attempts++
				if attempts < tt.failUntilN {
					return errors.New("webhook unavailable")
				}
				return nil
			}, WithMaxRetries(tt.maxRetries), WithInitialDelay(time.Millisecond))

			if tt.shouldSucceed {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
			assert.Equal(t, tt.expectedAttempts, attempts)
		})
	}
}

func TestDo_PermanentStopsImmediately(t *testing.T) {
	cause := errors.New("webhook rejected payload")
	attempts := 0

	err := Do(context.Background(), func() error {
		attempts++
		return Permanent(cause)
	}, WithMaxRetries(5), WithInitialDelay(time.Millisecond))

	assert.Equal(t, 1, attempts)
	assert.Same(t, cause, err)
}

func TestDo_PermanentAfterTransientFailures(t *testing.T) {
	cause := WrapError(ErrCodeNotification, "bad request", nil)
	attempts := 0

	err := Do(context.Background(), func() error {
		attempts++
		if attempts < 3 {
			return errors.New("connection reset")
		}
		return Permanent(cause)
	}, WithMaxRetries(5), WithInitialDelay(time.Millisecond))

	assert.Equal(t, 3, attempts)
	assert.True(t, HasCode(err, ErrCodeNotification))
}

func TestPermanent_Nil(t *testing.T) {
	assert.NoError(t, Permanent(nil))
}

func TestDo_OnRetryHook(t *testing.T) {
	var seen []int
	_ = Do(context.Background(), func() error {
		return errors.New("database not ready")
	},
		WithMaxRetries(2),
		WithInitialDelay(time.Millisecond),
		WithOnRetry(func(attempt int, err error) {
			seen = append(seen, attempt)
			assert.EqualError(t, err, "database not ready")
		}),
	)

	assert.Equal(t, []int{1, 2}, seen)
}

func TestDo_ContextCancellation(t *testing.T) {
	tests := []struct {
		name         string
		cancelAfter  time.Duration
		initialDelay time.Duration
	}{
		{name: "cancel during first backoff", cancelAfter: 5 * time.Millisecond, initialDelay: 100 * time.Millisecond},
		{name: "cancel during later backoff", cancelAfter: 20 * time.Millisecond, initialDelay: 10 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			go func() {
				time.Sleep(tt.cancelAfter)
				cancel()
			}()

			attempts := 0
			err := Do(ctx, func() error {
				attempts++
				return errors.New("always fails")
			}, WithInitialDelay(tt.initialDelay), WithMaxRetries(5))

			require.Error(t, err)
			assert.ErrorIs(t, err, context.Canceled)
			assert.Positive(t, attempts)
		})
	}
}

func TestDo_ContextTimeout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := Do(ctx, func() error {
		return errors.New("always fails")
	}, WithInitialDelay(30*time.Millisecond), WithMaxRetries(10))

	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDo_NilFunction(t *testing.T) {
	err := Do(context.Background(), nil)
	assert.EqualError(t, err, "retry: function cannot be nil")
}

func TestDo_ErrorWrapping(t *testing.T) {
	originalErr := errors.New("original error")

	err := Do(context.Background(), func() error {
		return originalErr
	}, WithMaxRetries(2), WithInitialDelay(time.Millisecond))

	require.Error(t, err)
	assert.ErrorIs(t, err, originalErr)
	assert.Contains(t, err.Error(), "retry failed after 3 attempts")
}

func TestDo_InvalidOptionsFallBackToDefaults(t *testing.T) {
	err := Do(context.Background(), func() error { return nil },
		WithMaxRetries(-1),
		WithInitialDelay(-1),
		WithMaxDelay(-1),
		WithMultiplier(-1),
	)
	assert.NoError(t, err)
}

func TestCalculateDelay(t *testing.T) {
	tests := []struct {
		name         string
		attempt      int
		initialDelay time.Duration
		maxDelay     time.Duration
		multiplier   float64
		expected     time.Duration
	}{
		{"first retry", 1, 100 * time.Millisecond, time.Second, 2.0, 100 * time.Millisecond},
		{"second retry", 2, 100 * time.Millisecond, time.Second, 2.0, 200 * time.Millisecond},
		{"third retry", 3, 100 * time.Millisecond, time.Second, 2.0, 400 * time.Millisecond},
		{"capped", 5, 100 * time.Millisecond, 500 * time.Millisecond, 2.0, 500 * time.Millisecond},
		{"multiplier 1.5", 2, 100 * time.Millisecond, time.Second, 1.5, 150 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, calculateDelay(tt.attempt, tt.initialDelay, tt.maxDelay, tt.multiplier))
		})
	}
}

func BenchmarkDo_Success(b *testing.B) {
	ctx := context.Background()
	for i := 0; i < b.N; i++ {
		_ = Do(ctx, func() error { return nil })
	}
}
