package poll

import (
	"context"
	"errors"
	"time"
)

// ErrTimeout 到达截止时间仍未满足条件
// ErrTimeout reports that the condition was not met before the deadline
var ErrTimeout = errors.New("poll: deadline exceeded")

// Condition 一次检查；返回 true 表示完成
// Condition performs one check; true means done
type Condition func(ctx context.Context) (bool, error)

// Options 轮询参数
// Options configures interval and deadline
type Options struct {
	Interval time.Duration
	Timeout  time.Duration
}

// Until 按固定间隔检查 cond，直到成功、出错、超时或 ctx 取消
// Until checks cond at a fixed interval until it succeeds, errors, times out, or ctx ends.
// The first check runs immediately.
func Until(ctx context.Context, opts Options, cond Condition) error {
	if opts.Interval <= 0 {
		opts.Interval = 100 * time.Millisecond
	}
	deadline := time.Now().Add(opts.Timeout)

	ticker := time.NewTicker(opts.Interval)
	defer ticker.Stop()
	for {
		done, err := cond(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		if !time.Now().Before(deadline) {
			return ErrTimeout
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
