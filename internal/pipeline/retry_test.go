package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryDoSucceedsFirstAttempt(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond}
	calls := 0

	retries, err := policy.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 0, retries)
	assert.Equal(t, 1, calls)
}

func TestRetryDoSucceedsAfterFailures(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond}
	calls := 0

	retries, err := policy.Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 2, retries)
	assert.Equal(t, 3, calls)
}

func TestRetryDoExhaustsAttempts(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond}
	calls := 0

	_, err := policy.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return errors.New("permanent")
	})

	require.Error(t, err)
	// 从不超过配置的最大尝试次数
	assert.Equal(t, 3, calls)
	assert.ErrorContains(t, err, "permanent")
}

func TestRetryDoBackoffGrowsWithAttempt(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 3, BaseDelay: 20 * time.Millisecond}
	start := time.Now()

	_, err := policy.Do(context.Background(), func(ctx context.Context) error {
		return errors.New("fail")
	})

	require.Error(t, err)
	// 退避为 20ms*1 + 20ms*2 = 60ms
	assert.GreaterOrEqual(t, time.Since(start), 60*time.Millisecond)
}

func TestRetryDoRespectsContextCancellation(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 5, BaseDelay: time.Hour}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		_, err := policy.Do(ctx, func(ctx context.Context) error {
			return errors.New("fail")
		})
		done <- err
	}()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("retry did not stop on cancellation")
	}
}
