package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/agentcore/internal/clock"
)

// Policy 定义重试策略配置
// MaxAttempts 为总尝试次数（含首次），第 n 次尝试（n ≥ 2）之前等待
// BaseDelay * Multiplier^(n-2)。
type Policy struct {
	MaxAttempts int           // 总尝试次数（默认 3）
	BaseDelay   time.Duration // 第二次尝试之前的延迟
	MaxDelay    time.Duration // 最大延迟（0 表示不设上限）
	Multiplier  float64       // 延迟倍增因子（默认 2）
	Jitter      bool          // 是否添加 ±25% 随机抖动

	// ShouldRetry 判断错误是否可重试（nil 表示全部可重试）
	ShouldRetry func(err error) bool
	// OnRetry 在每次等待之前调用，attempt 为即将进行的尝试序号
	OnRetry func(attempt int, err error, delay time.Duration)
}

// DefaultPolicy 返回默认的重试策略
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    30 * time.Second,
		Multiplier:  2.0,
	}
}

// Func 被重试的函数，attempt 从 1 开始
type Func func(ctx context.Context, attempt int) (any, error)

// Result 成功结果与实际尝试次数
type Result struct {
	Value    any
	Attempts int
}

// ExhaustedError 重试次数耗尽
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

// AbortedError 错误不可重试，提前终止
type AbortedError struct {
	Attempts int
	Err      error
}

func (e *AbortedError) Error() string {
	return fmt.Sprintf("aborted on attempt %d: %v", e.Attempts, e.Err)
}

func (e *AbortedError) Unwrap() error { return e.Err }

// ErrCancelled 等待期间 context 被取消
var ErrCancelled = errors.New("retry cancelled")

// Retryer 基于指数退避的重试器
type Retryer struct {
	policy Policy
	clock  clock.Clock
	logger *zap.Logger
}

// New 创建指数退避重试器
func New(policy Policy, clk clock.Clock, logger *zap.Logger) *Retryer {
	if logger == nil {
		logger = zap.NewNop()
	}

	// 参数校验
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	if policy.BaseDelay < 0 {
		policy.BaseDelay = 0
	}
	if policy.MaxDelay < 0 {
		policy.MaxDelay = 0
	}
	if policy.Multiplier < 1.0 {
		policy.Multiplier = 2.0
	}

	return &Retryer{
		policy: policy,
		clock:  clock.OrReal(clk),
		logger: logger.With(zap.String("component", "retryer")),
	}
}

// Policy 返回生效的策略
func (r *Retryer) Policy() Policy { return r.policy }

// Do 执行 fn，失败时根据策略重试。
// 不可重试的错误返回 *AbortedError，次数耗尽返回 *ExhaustedError，
// 两者都可以通过 errors.Unwrap 取到最后一次的原始错误。
func (r *Retryer) Do(ctx context.Context, fn Func) (Result, error) {
	var lastErr error

	for attempt := 1; attempt <= r.policy.MaxAttempts; attempt++ {
		// 第一次执行不延迟
		if attempt > 1 {
			delay := r.Delay(attempt)

			r.logger.Debug("retrying",
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", r.policy.MaxAttempts),
				zap.Duration("delay", delay),
				zap.Error(lastErr),
			)

			if r.policy.OnRetry != nil {
				r.policy.OnRetry(attempt, lastErr, delay)
			}

			// 恢复之前检查取消
			if err := r.clock.Sleep(ctx, delay); err != nil {
				return Result{Attempts: attempt - 1}, fmt.Errorf("%w: %w", ErrCancelled, errors.Join(err, lastErr))
			}
		}

		value, err := fn(ctx, attempt)
		if err == nil {
			if attempt > 1 {
				r.logger.Info("retry succeeded", zap.Int("attempt", attempt))
			}
			return Result{Value: value, Attempts: attempt}, nil
		}
		lastErr = err

		if r.policy.ShouldRetry != nil && !r.policy.ShouldRetry(err) {
			r.logger.Debug("error is not retryable", zap.Int("attempt", attempt), zap.Error(err))
			return Result{Attempts: attempt}, &AbortedError{Attempts: attempt, Err: err}
		}
	}

	r.logger.Warn("retry attempts exhausted",
		zap.Int("attempts", r.policy.MaxAttempts),
		zap.Error(lastErr),
	)

	return Result{Attempts: r.policy.MaxAttempts}, &ExhaustedError{Attempts: r.policy.MaxAttempts, Err: lastErr}
}

// Delay 计算第 attempt 次尝试之前的等待时间（attempt ≥ 2）
func (r *Retryer) Delay(attempt int) time.Duration {
	if attempt < 2 {
		return 0
	}

	// 指数退避：delay = base * multiplier^(attempt-2)
	delay := float64(r.policy.BaseDelay) * math.Pow(r.policy.Multiplier, float64(attempt-2))

	if r.policy.MaxDelay > 0 && delay > float64(r.policy.MaxDelay) {
		delay = float64(r.policy.MaxDelay)
	}

	// 添加随机抖动（±25%）
	if r.policy.Jitter {
		jitter := delay * 0.25
		delay = delay + (rand.Float64()*2-1)*jitter
	}

	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}
