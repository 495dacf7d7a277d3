package recovery

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/agentcore/internal/clock"
	"github.com/BaSui01/agentcore/recovery/circuitbreaker"
	"github.com/BaSui01/agentcore/recovery/retry"
)

// 恢复决策的置信度
const (
	ConfidenceRetry    = 0.7
	ConfidenceAbort    = 1.0
	ConfidenceTrip     = 1.0
	ConfidenceFallback = 0.9
)

// 降级原因
const (
	FallbackCircuitOpen = "circuit_open"
	FallbackExhausted   = "exhausted"
)

// Config 恢复引擎配置
type Config struct {
	Retry retry.Policy
	// HandlerTimeout 单次尝试超时（0 表示不限）
	HandlerTimeout time.Duration
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{Retry: retry.DefaultPolicy()}
}

// MetricsRecorder 恢复过程的指标，*metrics.Collector 满足该接口
type MetricsRecorder interface {
	RecordRetry(task, category string)
	RecordFallback(task, reason string)
}

// DecisionFunc 记录一次恢复决策
type DecisionFunc func(description, rationale string, confidence float64)

// Call 一次受保护的调用
type Call struct {
	// Key 任务键，同时作为未命名依赖时的熔断键
	Key string
	// Dependencies 调用前需要检查的依赖熔断器
	Dependencies []string
	// Fn 实际调用
	Fn func(ctx context.Context) (any, error)
	// Fallback 熔断拒绝或重试耗尽时的降级，可为 nil。
	// 触发 DEPENDENCY 熔断的那次调用直接失败，不走降级；
	// 之后被打开的熔断器拒绝的调用才会降级。
	Fallback func(ctx context.Context, cause error) (any, error)
	// OnDecision 记录重试、放弃、熔断与降级决策，可为 nil
	OnDecision DecisionFunc
}

// Outcome 调用结果
type Outcome struct {
	Value      any
	Err        error
	Category   Category // 仅失败或降级时有值，表示触发恢复的错误类别
	Attempts   int      // 实际调用 Fn 的次数
	RetryCount int
	FellBack   bool
	// Recovered 在至少一次失败之后最终成功（重试成功或降级成功）
	Recovered bool
	// HadError 至少有一次尝试失败或被熔断拒绝
	HadError bool
}

// Succeeded 是否成功
func (o Outcome) Succeeded() bool { return o.Err == nil }

// Engine 恢复引擎：分类、退避重试、按依赖熔断与降级
type Engine struct {
	config   Config
	breakers *circuitbreaker.Registry
	clock    clock.Clock
	metrics  MetricsRecorder
	logger   *zap.Logger

	// learned 任务键 -> 运行中发现的依赖键（处理器返回了具名 DEPENDENCY 错误）
	mu      sync.RWMutex
	learned map[string][]string
}

// NewEngine 创建恢复引擎
func NewEngine(config Config, breakers *circuitbreaker.Registry, clk clock.Clock, metrics MetricsRecorder, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	clk = clock.OrReal(clk)
	if breakers == nil {
		breakers = circuitbreaker.NewRegistry(circuitbreaker.DefaultConfig(), clk, nil, logger)
	}
	return &Engine{
		config:   config,
		breakers: breakers,
		clock:    clk,
		metrics:  metrics,
		logger:   logger.With(zap.String("component", "recovery")),
		learned:  make(map[string][]string),
	}
}

// LearnedDependencies 返回运行中为任务发现的依赖键
func (e *Engine) LearnedDependencies(key string) []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]string(nil), e.learned[key]...)
}

func (e *Engine) learn(key, dep string) {
	if dep == "" || dep == key {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, d := range e.learned[key] {
		if d == dep {
			return
		}
	}
	e.learned[key] = append(e.learned[key], dep)
}

// Breakers 返回熔断器注册表
func (e *Engine) Breakers() *circuitbreaker.Registry { return e.breakers }

// Execute 执行受保护的调用。失败不会以 panic 形式逃逸，
// 处理器 panic 会被转换为 UNKNOWN 错误。
func (e *Engine) Execute(ctx context.Context, call Call) Outcome {
	decide := call.OnDecision
	if decide == nil {
		decide = func(string, string, float64) {}
	}
	log := e.logger.With(zap.String("task", call.Key))

	guards, err := e.admit(call)
	if err != nil {
		e.breakers.Reject(circuitKeyOf(err, call.Key))
		log.Warn("call rejected by circuit breaker", zap.Error(err))
		out := Outcome{Err: err, Category: CategoryDependency, HadError: true}
		return e.fallback(ctx, call, out, FallbackCircuitOpen, decide, log)
	}

	policy := e.config.Retry
	policy.ShouldRetry = func(err error) bool {
		return ActionFor(Classify(err)) == ActionRetry
	}
	policy.OnRetry = func(attempt int, err error, delay time.Duration) {
		cat := Classify(err)
		if e.metrics != nil {
			e.metrics.RecordRetry(call.Key, string(cat))
		}
		decide("retry",
			fmt.Sprintf("%s failure on attempt %d, retrying after %s", cat, attempt-1, delay),
			ConfidenceRetry)
	}
	retryer := retry.New(policy, e.clock, e.logger)

	res, err := retryer.Do(ctx, func(ctx context.Context, attempt int) (any, error) {
		return e.invoke(ctx, call.Fn)
	})

	out := Outcome{
		Value:    res.Value,
		Attempts: res.Attempts,
	}
	if res.Attempts > 0 {
		out.RetryCount = res.Attempts - 1
	}

	if err == nil {
		e.settle(guards, nil, "")
		out.HadError = out.RetryCount > 0
		out.Recovered = out.HadError
		return out
	}

	cause := lastError(err)
	cat := Classify(cause)
	out.Err = cause
	out.Category = cat
	out.HadError = true

	var exhausted *retry.ExhaustedError
	var aborted *retry.AbortedError
	switch {
	case errors.As(err, &aborted):
		switch ActionFor(cat) {
		case ActionTrip:
			key := DependencyOf(cause)
			if key == "" {
				key = call.Key
			}
			e.settle(guards, cause, key)
			e.learn(call.Key, key)
			decide("trip circuit",
				fmt.Sprintf("dependency %q unavailable: %v", key, cause),
				ConfidenceTrip)
			log.Warn("dependency failure, circuit tripped", zap.String("dependency", key), zap.Error(cause))
			return out
		default:
			e.settle(guards, cause, "")
			decide("abort",
				fmt.Sprintf("%s failure is not retryable: %v", cat, cause),
				ConfidenceAbort)
			log.Info("non-retryable failure", zap.String("category", string(cat)), zap.Error(cause))
			return out
		}

	case errors.As(err, &exhausted):
		e.settle(guards, cause, "")
		decide("give up",
			fmt.Sprintf("retries exhausted after %d attempts: %v", exhausted.Attempts, cause),
			ConfidenceAbort)
		return e.fallback(ctx, call, out, FallbackExhausted, decide, log)

	default:
		// context 取消：不计入熔断，也不降级
		for _, b := range guards {
			b.Release()
		}
		out.Err = err
		decide("abort", fmt.Sprintf("cancelled: %v", err), ConfidenceAbort)
		return out
	}
}

// admit 依次检查任务、声明的依赖与已发现依赖的熔断器，
// 任一拒绝时归还已占用的试探名额
func (e *Engine) admit(call Call) ([]*circuitbreaker.Breaker, error) {
	learned := e.LearnedDependencies(call.Key)
	keys := make([]string, 0, len(call.Dependencies)+len(learned)+1)
	keys = append(keys, call.Key)
	seen := map[string]bool{call.Key: true}
	for _, d := range append(append([]string(nil), call.Dependencies...), learned...) {
		if d != "" && !seen[d] {
			seen[d] = true
			keys = append(keys, d)
		}
	}

	guards := make([]*circuitbreaker.Breaker, 0, len(keys))
	for _, k := range keys {
		b := e.breakers.Get(k)
		if err := b.Allow(); err != nil {
			for _, g := range guards {
				g.Release()
			}
			return nil, &CircuitOpenError{Key: k, Err: err}
		}
		guards = append(guards, b)
	}
	return guards, nil
}

// settle 把一次调用的最终结果记到所有守护熔断器上。
// tripKey 非空时强制打开该键的熔断器。
func (e *Engine) settle(guards []*circuitbreaker.Breaker, cause error, tripKey string) {
	if tripKey != "" {
		tripped := e.breakers.Get(tripKey)
		tripped.Trip()
		for _, b := range guards {
			if b != tripped {
				b.RecordFailure()
			}
		}
		return
	}

	counts := cause != nil && CountsTowardBreaker(Classify(cause))
	for _, b := range guards {
		if counts {
			b.RecordFailure()
		} else {
			b.RecordSuccess()
		}
	}
}

func (e *Engine) fallback(ctx context.Context, call Call, out Outcome, reason string, decide DecisionFunc, log *zap.Logger) Outcome {
	if call.Fallback == nil {
		return out
	}

	value, err := e.invoke(ctx, func(ctx context.Context) (any, error) {
		return call.Fallback(ctx, out.Err)
	})
	if err != nil {
		log.Warn("fallback failed", zap.String("reason", reason), zap.Error(err))
		decide("fallback failed", fmt.Sprintf("fallback after %s failed: %v", reason, err), ConfidenceAbort)
		out.Err = fmt.Errorf("fallback after %s: %w", reason, errors.Join(err, out.Err))
		return out
	}

	if e.metrics != nil {
		e.metrics.RecordFallback(call.Key, reason)
	}
	decide("fallback", fmt.Sprintf("using fallback result (%s): %v", reason, out.Err), ConfidenceFallback)
	log.Info("fallback used", zap.String("reason", reason))

	out.Value = value
	out.Err = nil
	out.FellBack = true
	out.Recovered = true
	return out
}

type invokeResult struct {
	value any
	err   error
}

// invoke 执行一次尝试，带超时与 panic 保护
func (e *Engine) invoke(ctx context.Context, fn func(ctx context.Context) (any, error)) (any, error) {
	if e.config.HandlerTimeout <= 0 {
		return safeCall(ctx, fn)
	}

	attemptCtx, cancel := context.WithTimeout(ctx, e.config.HandlerTimeout)
	defer cancel()

	resultCh := make(chan invokeResult, 1)
	go func() {
		v, err := safeCall(attemptCtx, fn)
		resultCh <- invokeResult{value: v, err: err}
	}()

	select {
	case <-attemptCtx.Done():
		if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("handler timed out after %s: %w", e.config.HandlerTimeout, context.DeadlineExceeded)
		}
		return nil, attemptCtx.Err()
	case res := <-resultCh:
		return res.value, res.err
	}
}

// PanicError 处理器 panic 转换后的错误
type PanicError struct {
	Value any
	Stack string
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("handler panicked: %v", e.Value)
}

func safeCall(ctx context.Context, fn func(ctx context.Context) (any, error)) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			value = nil
			err = &PanicError{Value: r, Stack: string(debug.Stack())}
		}
	}()
	return fn(ctx)
}

// CircuitOpenError 熔断器拒绝调用
type CircuitOpenError struct {
	Key string
	Err error
}

func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("circuit %q rejected call: %v", e.Key, e.Err)
}

func (e *CircuitOpenError) Unwrap() error { return e.Err }

// DependencyName 让 DependencyOf 返回被熔断的键
func (e *CircuitOpenError) DependencyName() string { return e.Key }

func circuitKeyOf(err error, fallback string) string {
	var open *CircuitOpenError
	if errors.As(err, &open) {
		return open.Key
	}
	return fallback
}

// lastError 取出重试器包装下的原始错误
func lastError(err error) error {
	var exhausted *retry.ExhaustedError
	if errors.As(err, &exhausted) {
		return exhausted.Err
	}
	var aborted *retry.AbortedError
	if errors.As(err, &aborted) {
		return aborted.Err
	}
	return err
}
