package agentic

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/agentcore/config"
	"github.com/BaSui01/agentcore/event"
	"github.com/BaSui01/agentcore/executor"
	"github.com/BaSui01/agentcore/internal/clock"
	"github.com/BaSui01/agentcore/internal/metrics"
	"github.com/BaSui01/agentcore/internal/telemetry"
	"github.com/BaSui01/agentcore/learning"
	"github.com/BaSui01/agentcore/recovery"
	"github.com/BaSui01/agentcore/recovery/circuitbreaker"
	"github.com/BaSui01/agentcore/scoring"
	"github.com/BaSui01/agentcore/skills"
	"github.com/BaSui01/agentcore/tracing"
	"github.com/BaSui01/agentcore/types"
)

// ErrClosed System 已关闭
var ErrClosed = errors.New("agentic system is closed")

// PerformanceStats 聚合性能统计
type PerformanceStats struct {
	P50Latency      time.Duration `json:"p50_latency"`
	P95Latency      time.Duration `json:"p95_latency"`
	SuccessRate     float64       `json:"success_rate"`
	TotalExecutions int64         `json:"total_executions"`
	Retries         int64         `json:"retries"`
	Recovered       int64         `json:"recovered"`
	FallBacks       int64         `json:"fall_backs"`
	SkillsGenerated int           `json:"skills_generated"`
	Checkpoints     int64         `json:"checkpoints"`
}

// aggregates 由 executed 事件驱动的累计计数
type aggregates struct {
	executions atomic.Int64
	successes  atomic.Int64
	retries    atomic.Int64
	fellBack   atomic.Int64
	hadError   atomic.Int64
	recovered  atomic.Int64
}

func (a *aggregates) observe(ev event.ExecutedEvent) {
	a.executions.Add(1)
	a.retries.Add(int64(ev.RetryCount))
	if ev.FellBack {
		a.fellBack.Add(1)
	}
	touched := ev.RetryCount > 0 || ev.FellBack || !ev.Succeeded()
	if touched {
		a.hadError.Add(1)
	}
	if ev.Succeeded() {
		a.successes.Add(1)
		if touched {
			a.recovered.Add(1)
		}
	}
}

// System 运行时上下文对象，持有所有核心组件
type System struct {
	config *config.Config
	logger *zap.Logger
	clock  clock.Clock

	bus         *event.Bus
	tracer      *tracing.Tracer
	breakers    *circuitbreaker.Registry
	engine      *recovery.Engine
	executor    *executor.Executor
	store       skills.Store
	generator   *skills.Generator
	coordinator *learning.Coordinator
	scorer      *scoring.Scorer
	metrics     *metrics.Collector
	telemetry   *telemetry.Providers

	ownsStore bool
	stats     aggregates

	closeOnce sync.Once
	closed    atomic.Bool
	closeErr  error
}

// New 创建 System。cfg 为 nil 时使用默认配置；配置非法时返回错误。
func New(cfg *config.Config, opts ...Option) (*System, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	logger := o.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clk := clock.OrReal(o.clock)

	s := &System{
		config: cfg,
		logger: logger.With(zap.String("component", "agentic")),
		clock:  clk,
	}

	if o.registerer != nil {
		s.metrics = metrics.NewCollector(cfg.Metrics.Namespace, o.registerer, logger)
	}

	var tracerOpts []tracing.Option
	if o.tracerProvider == nil {
		providers, err := telemetry.Init(cfg.Telemetry, logger, o.telemetryOpts...)
		if err != nil {
			return nil, fmt.Errorf("init telemetry: %w", err)
		}
		s.telemetry = providers
		// 禁用时也传入 noop provider，不读取 otel 全局实例
		tracerOpts = append(tracerOpts,
			tracing.WithTracerProvider(providers.TracerProvider()),
			tracing.WithMeterProvider(providers.MeterProvider()),
		)
	} else {
		tracerOpts = append(tracerOpts, tracing.WithTracerProvider(o.tracerProvider))
	}
	if o.meterProvider != nil {
		tracerOpts = append(tracerOpts, tracing.WithMeterProvider(o.meterProvider))
	}

	store := o.store
	if store == nil {
		created, err := skills.NewStore(storeConfig(cfg.Skills), logger)
		if err != nil {
			_ = s.telemetry.Shutdown(context.Background())
			return nil, fmt.Errorf("create skill store: %w", err)
		}
		store = created
		s.ownsStore = true
	}
	s.store = store

	var busOpts []event.Option
	if s.metrics != nil {
		busOpts = append(busOpts, event.WithErrorObserver(s.metrics))
	}
	s.bus = event.NewBus(logger, busOpts...)
	s.tracer = tracing.New(tracerConfig(cfg.Tracer), clk, logger, tracerOpts...)

	// *metrics.Collector 的方法对 nil 接收者安全，未启用指标时直接传入
	s.breakers = circuitbreaker.NewRegistry(breakerConfig(cfg.CircuitBreaker), clk, s.metrics, logger)
	s.engine = recovery.NewEngine(recoveryConfig(cfg.Recovery), s.breakers, clk, s.metrics, logger)
	s.executor = executor.New(s.tracer, s.engine, s.bus, clk, s.metrics, logger)
	s.generator = skills.NewGenerator(store, clk, s.metrics, logger)
	s.coordinator = learning.NewCoordinator(learningConfig(cfg.Learning), clk, s.metrics, logger)
	s.scorer = scoring.NewScorer(clk, s.metrics, logger)

	// 订阅顺序：技能生成 → 学习统计 → 聚合计数
	s.generator.Subscribe(s.bus)
	s.coordinator.Subscribe(s.bus)
	s.bus.Subscribe(event.TopicExecuted, s.observeExecuted)

	s.logger.Info("agentic system ready",
		zap.String("skill_store", cfg.Skills.Store),
		zap.Int("max_attempts", cfg.Recovery.MaxAttempts),
		zap.Bool("telemetry", s.telemetry.Enabled()),
		zap.Bool("metrics", s.metrics != nil),
	)
	return s, nil
}

func (s *System) observeExecuted(_ context.Context, payload any) error {
	ev, ok := payload.(event.ExecutedEvent)
	if !ok {
		return fmt.Errorf("unexpected payload %T on %s", payload, event.TopicExecuted)
	}
	s.stats.observe(ev)
	return nil
}

// RegisterHandler 注册任务处理器，同名任务覆盖旧的处理器
func (s *System) RegisterHandler(taskName string, handler executor.Handler, opts ...executor.Option) {
	s.executor.Register(taskName, handler, opts...)
}

// UnregisterHandler 注销任务处理器
func (s *System) UnregisterHandler(taskName string) bool {
	return s.executor.Unregister(taskName)
}

// ExecuteCase 执行一个案例。任务未注册时返回 *types.UnregisteredTaskError，
// 处理器失败以 Outcome=failure 的结果返回。
func (s *System) ExecuteCase(ctx context.Context, caseID, taskName, agentRole string, input any) (*types.ExecutionResult, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	return s.executor.Execute(ctx, taskName, caseID, agentRole, input)
}

// GetPerformanceStats 返回延迟分位数、成功率与累计计数
func (s *System) GetPerformanceStats() PerformanceStats {
	ts := s.tracer.Stats()
	return PerformanceStats{
		P50Latency:      ts.P50,
		P95Latency:      ts.P95,
		SuccessRate:     ts.SuccessRate,
		TotalExecutions: s.stats.executions.Load(),
		Retries:         s.stats.retries.Load(),
		Recovered:       s.stats.recovered.Load(),
		FallBacks:       s.stats.fellBack.Load(),
		SkillsGenerated: s.generator.Generated(),
		Checkpoints:     s.coordinator.Checkpoints(),
	}
}

// RankSkills 按成功率降序、平均耗时升序返回技能统计
func (s *System) RankSkills() []learning.SkillStats {
	return s.coordinator.RankSkills()
}

// LookupSkill 经学习协调器的缓存读取技能统计
func (s *System) LookupSkill(skillID string) (learning.SkillStats, bool) {
	return s.coordinator.Lookup(skillID)
}

// LoadSkill 从技能存储读取已持久化的技能
func (s *System) LoadSkill(ctx context.Context, skillID string) (*skills.Skill, error) {
	return s.store.Load(ctx, skillID)
}

// Subscribe 订阅事件总线上的主题
func (s *System) Subscribe(topic event.Topic, handler event.Handler) event.SubscriptionID {
	return s.bus.Subscribe(topic, handler)
}

// Unsubscribe 取消订阅
func (s *System) Unsubscribe(topic event.Topic, id event.SubscriptionID) bool {
	return s.bus.Unsubscribe(topic, id)
}

// CurrentMetrics 从各组件的累计数据推导八个评分分量
func (s *System) CurrentMetrics() scoring.VersionMetrics {
	ts := s.tracer.Stats()
	generated := float64(s.generator.Generated())
	successes := float64(s.stats.successes.Load())
	hadError := s.stats.hadError.Load()

	m := scoring.VersionMetrics{
		CoherenceAccumulation: s.coordinator.SuccessfulSkillShare(0.5),
		EvolutionCount:        math.Min(1, generated/float64(s.config.Scoring.EvolutionTarget)),
		OperationSuccessRate:  ts.SuccessRate,
		AverageConfidence:     ts.AverageConfidence,
		SkillRetrievalScore:   s.coordinator.RetrievalScore(),
		ResourceEfficiency:    1 - math.Min(1, float64(ts.P95)/float64(s.config.Scoring.LatencyBudget)),
		ErrorRecoveryRate:     1,
	}
	if successes > 0 {
		m.PatternEmergenceRate = math.Min(1, generated/successes)
	}
	if hadError > 0 {
		m.ErrorRecoveryRate = float64(s.stats.recovered.Load()) / float64(hadError)
	}
	return m
}

// Score 计算当前评分、分级并写入评分历史
func (s *System) Score() (scoring.VersionRecord, error) {
	return s.scorer.Score(s.CurrentMetrics())
}

// Scorer 返回版本评分器，调用方据此做 Stabilize / Compound 决策
func (s *System) Scorer() *scoring.Scorer { return s.scorer }

// Breakers 返回熔断器注册表
func (s *System) Breakers() *circuitbreaker.Registry { return s.breakers }

// Config 返回生效的配置
func (s *System) Config() *config.Config { return s.config }

// Flush 立即导出缓冲中的遥测数据，遥测未启用时无操作
func (s *System) Flush(ctx context.Context) error {
	return s.telemetry.ForceFlush(ctx)
}

// Close 关闭自有的技能存储并刷新遥测数据，可重复调用
func (s *System) Close(ctx context.Context) error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		var errs []error
		if s.ownsStore {
			if err := s.store.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close skill store: %w", err))
			}
		}
		if err := s.telemetry.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown telemetry: %w", err))
		}
		s.closeErr = errors.Join(errs...)
		s.logger.Info("agentic system closed")
	})
	return s.closeErr
}
