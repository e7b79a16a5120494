package evaluator

import (
	"context"
	"time"

	"genome-engine/internal/shared/model"
)

// DefaultRetryBaseDelay 重试退避基准间隔
const DefaultRetryBaseDelay = 500 * time.Millisecond

// EvaluateWithRetry 带重试的评估调用
//
// 只有瞬态错误会被重试：第 n 次重试前等待 baseDelay·2^(n-1)。
// 永久错误和重试耗尽的瞬态错误原样返回；ctx 取消立即返回。
func EvaluateWithRetry(ctx context.Context, ev Evaluator, mutation *model.Mutation, maxRetries int, baseDelay time.Duration) (*model.MutationTest, error) {
	if baseDelay <= 0 {
		baseDelay = DefaultRetryBaseDelay
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			delay := baseDelay << (attempt - 1)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		test, err := ev.Evaluate(ctx, mutation)
		if err == nil {
			return test, nil
		}
		if !IsTransient(err) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}
