package pipeline

import (
	"context"
	"fmt"
	"time"
)

// 重试默认参数（批写入与分页拉取共用）
const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = 1 * time.Second
)

// RetryPolicy 有界重试策略，退避间隔为 BaseDelay * 已尝试次数
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// DefaultRetryPolicy 默认重试策略
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: DefaultMaxAttempts,
		BaseDelay:   DefaultBaseDelay,
	}
}

// Do 执行 fn，失败则按退避策略重试，直到成功或耗尽次数。
// 返回实际重试次数（首次成功为 0）和最后一次错误。
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context) error) (int, error) {
	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return attempt - 1, err
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return attempt - 1, nil
		}

		if attempt == maxAttempts {
			break
		}

		backoff := p.BaseDelay * time.Duration(attempt)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return attempt, ctx.Err()
		}
	}

	return maxAttempts - 1, fmt.Errorf("failed after %d attempts: %w", maxAttempts, lastErr)
}
