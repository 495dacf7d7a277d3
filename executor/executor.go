package executor

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BaSui01/agentcore/event"
	"github.com/BaSui01/agentcore/internal/clock"
	"github.com/BaSui01/agentcore/internal/ctxkeys"
	"github.com/BaSui01/agentcore/recovery"
	"github.com/BaSui01/agentcore/tracing"
	"github.com/BaSui01/agentcore/types"
)

// Handler 任务处理器
type Handler func(ctx context.Context, input any) (any, error)

// FallbackFunc 降级处理器，cause 为触发降级的错误
type FallbackFunc func(ctx context.Context, input any, cause error) (any, error)

// Option 注册选项
type Option func(*registration)

// WithFallback 为任务设置降级处理器。熔断拒绝或重试耗尽时调用；
// 处理器返回 DEPENDENCY 错误的那次调用直接失败，之后被熔断拒绝的调用才降级。
func WithFallback(fn FallbackFunc) Option {
	return func(r *registration) { r.fallback = fn }
}

// WithDependencies 声明任务依赖，调用前检查这些依赖的熔断器
func WithDependencies(deps ...string) Option {
	return func(r *registration) { r.dependencies = append(r.dependencies, deps...) }
}

type registration struct {
	handler      Handler
	fallback     FallbackFunc
	dependencies []string
}

// MetricsRecorder 执行指标，*metrics.Collector 满足该接口
type MetricsRecorder interface {
	RecordExecution(task, outcome string, duration time.Duration)
}

// Executor 在追踪与恢复的保护下执行已注册的任务
type Executor struct {
	tracer  *tracing.Tracer
	engine  *recovery.Engine
	bus     *event.Bus
	clock   clock.Clock
	metrics MetricsRecorder
	logger  *zap.Logger

	mu       sync.RWMutex
	handlers map[string]registration
}

// New 创建执行器，metrics 可为 nil
func New(tracer *tracing.Tracer, engine *recovery.Engine, bus *event.Bus, clk clock.Clock, metrics MetricsRecorder, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{
		tracer:   tracer,
		engine:   engine,
		bus:      bus,
		clock:    clock.OrReal(clk),
		metrics:  metrics,
		logger:   logger.With(zap.String("component", "executor")),
		handlers: make(map[string]registration),
	}
}

// Register 注册任务处理器，同名任务会被覆盖
func (e *Executor) Register(name string, handler Handler, opts ...Option) {
	reg := registration{handler: handler}
	for _, opt := range opts {
		opt(&reg)
	}

	e.mu.Lock()
	_, replaced := e.handlers[name]
	e.handlers[name] = reg
	e.mu.Unlock()

	e.logger.Debug("handler registered",
		zap.String("task", name),
		zap.Bool("replaced", replaced),
		zap.Bool("fallback", reg.fallback != nil),
		zap.Strings("dependencies", reg.dependencies),
	)
}

// Unregister 移除任务处理器
func (e *Executor) Unregister(name string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.handlers[name]; !ok {
		return false
	}
	delete(e.handlers, name)
	return true
}

// Tasks 返回已注册的任务名（排序）
func (e *Executor) Tasks() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	names := make([]string, 0, len(e.handlers))
	for name := range e.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Execute 执行一次任务。只有任务未注册时返回错误，
// 处理器的任何失败都以 Outcome=failure 的结果返回。
// 返回之前 executed 与 completed 两个事件已经同步分发完毕。
func (e *Executor) Execute(ctx context.Context, taskName, caseID, agentRole string, input any) (*types.ExecutionResult, error) {
	e.mu.RLock()
	reg, ok := e.handlers[taskName]
	e.mu.RUnlock()
	if !ok {
		return nil, &types.UnregisteredTaskError{TaskName: taskName}
	}

	inv := types.TaskInvocation{
		InvocationID: uuid.NewString(),
		CaseID:       caseID,
		TaskName:     taskName,
		AgentRole:    agentRole,
		StartedAt:    e.clock.Now(),
	}
	log := e.logger.With(
		zap.String("invocation_id", inv.InvocationID),
		zap.String("case_id", caseID),
		zap.String("task", taskName),
	)

	session := e.tracer.StartSession(ctx, caseID, taskName)
	record := func(description, rationale string, confidence float64) {
		if err := session.RecordDecision(description, rationale, confidence); err != nil {
			log.Warn("decision rejected", zap.String("decision", description), zap.Error(err))
		}
	}
	record("select handler", fmt.Sprintf("handler registered for task %q", taskName), 1.0)

	call := recovery.Call{
		Key:          taskName,
		Dependencies: reg.dependencies,
		Fn: func(ctx context.Context) (any, error) {
			return reg.handler(ctx, input)
		},
		OnDecision: record,
	}
	if reg.fallback != nil {
		call.Fallback = func(ctx context.Context, cause error) (any, error) {
			return reg.fallback(ctx, input, cause)
		}
	}

	runCtx := ctxkeys.WithInvocationID(session.Context(), inv.InvocationID)
	runCtx = ctxkeys.WithCaseID(runCtx, caseID)
	runCtx = ctxkeys.WithAgentRole(runCtx, agentRole)

	out := e.engine.Execute(runCtx, call)
	duration := e.clock.Now().Sub(inv.StartedAt)
	summary := session.End(out.Succeeded())

	result := &types.ExecutionResult{
		InvocationID: inv.InvocationID,
		CaseID:       caseID,
		TaskName:     taskName,
		AgentRole:    agentRole,
		Outcome:      types.OutcomeSuccess,
		Duration:     duration,
		Output:       out.Value,
		Attempts:     out.Attempts,
		RetryCount:   out.RetryCount,
		FellBack:     out.FellBack,
		Decisions:    summary.Decisions,
	}
	if out.FellBack {
		result.ErrorCategory = string(out.Category)
	}
	if !out.Succeeded() {
		result.Outcome = types.OutcomeFailure
		result.Output = nil
		result.Error = out.Err.Error()
		result.ErrorCategory = string(out.Category)
		log.Warn("task failed",
			zap.String("category", result.ErrorCategory),
			zap.Int("attempts", out.Attempts),
			zap.Error(out.Err),
		)
	} else {
		log.Info("task succeeded",
			zap.Duration("duration", duration),
			zap.Int("retry_count", out.RetryCount),
			zap.Bool("fell_back", out.FellBack),
		)
	}

	if e.metrics != nil {
		e.metrics.RecordExecution(taskName, string(result.Outcome), duration)
	}

	executed := event.NewExecutedEvent(result, e.clock.Now())
	e.bus.Publish(ctx, event.TopicExecuted, executed)
	e.bus.Publish(ctx, event.TopicCompleted, event.CompletedEvent{
		ExecutedEvent: executed,
		AgentRole:     agentRole,
	})

	return result, nil
}
