package resolver

import (
	"context"
	"time"
)

// Poll 按固定间隔检查 done,直到其返回true或超时
//
// done 在调用时立即检查一次,满足条件时不等待。
// 每次休眠取 interval 与剩余时间中的较小值,因此返回时间不会晚于 timeout + interval。
// ctx 取消时立即返回false。
func Poll(ctx context.Context, interval, timeout time.Duration, done func() bool) bool {
	if done() {
		return true
	}

	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return false
		}

		wait := interval
		if remaining < wait {
			wait = remaining
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return false
		case <-timer.C:
		}

		if done() {
			return true
		}
	}
}

// sleepContext 可被取消的休眠
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
