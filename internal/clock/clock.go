// Package clock abstracts wall time and blocking waits so backoff delays and
// breaker timeouts can be driven deterministically in tests.
// This package is internal and should not be imported by external projects.
package clock

import (
	"context"
	"fmt"
	"time"
)

// Clock 提供当前时间与可取消的阻塞等待
type Clock interface {
	Now() time.Time
	// Sleep 阻塞 d，ctx 取消时提前返回 ctx 错误
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

// Real 返回基于系统时间的 Clock
func Real() Clock { return realClock{} }

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return fmt.Errorf("sleep interrupted: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}

// OrReal 在 c 为 nil 时返回 Real()
func OrReal(c Clock) Clock {
	if c == nil {
		return Real()
	}
	return c
}
