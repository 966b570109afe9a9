package service

import (
	"context"
	"time"

	"github.com/FuseSyntax/rock-paper-scissors/common/helper"
)

// RetryPolicy 有界重试策略：最大尝试次数 + 指数退避（带上限与抖动）
// 原各提现实现里手写的 sleep/计数循环统一收敛到这里
type RetryPolicy struct {
	MaxAttempts int           // 最大尝试次数（含首次）
	BaseDelay   time.Duration // 首次重试前的基础延迟
	CapDelay    time.Duration // 退避上限
}

// Backoff 第 attempt 次失败后的等待时长（attempt 从 1 开始）
// base * 2^(attempt-1)，封顶 CapDelay，再叠加至多一半的抖动
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := p.BaseDelay
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= p.CapDelay {
			d = p.CapDelay
			break
		}
	}
	if d > p.CapDelay {
		d = p.CapDelay
	}
	return d + helper.JitterDuration(d/2)
}

// DoWithRetry 执行 fn 直到成功、不可重试错误、尝试耗尽或 ctx 取消
// retryable 判定某个错误是否值得再试；返回实际尝试次数与最后一次错误
func DoWithRetry(ctx context.Context, p RetryPolicy, fn func(ctx context.Context) error, retryable func(error) bool) (int, error) {
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr == nil {
				lastErr = err
			}
			return attempt - 1, lastErr
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return attempt, nil
		}
		if retryable != nil && !retryable(lastErr) {
			return attempt, lastErr
		}
		if attempt == maxAttempts {
			break
		}

		timer := time.NewTimer(p.Backoff(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return attempt, lastErr
		case <-timer.C:
		}
	}
	return maxAttempts, lastErr
}
