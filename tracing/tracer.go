package tracing

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/BaSui01/agentcore/internal/clock"
	"github.com/BaSui01/agentcore/types"
)

const instrumentationName = "github.com/BaSui01/agentcore/tracing"

// Config 追踪器配置
type Config struct {
	// HistorySize 用于分位数与成功率的历史窗口长度
	HistorySize int
	// MaxDecisions 单个会话保留的最大决策数，超出时淘汰最旧的
	MaxDecisions int
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{HistorySize: 1000, MaxDecisions: 64}
}

// Option 追踪器选项
type Option func(*Tracer)

// WithTracerProvider 指定 OpenTelemetry TracerProvider（默认全局）
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(t *Tracer) {
		if tp != nil {
			t.otelTracer = tp.Tracer(instrumentationName)
		}
	}
}

// WithMeterProvider 指定 OpenTelemetry MeterProvider（默认全局）
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(t *Tracer) {
		if mp != nil {
			t.meter = mp.Meter(instrumentationName)
		}
	}
}

type sample struct {
	duration time.Duration
	success  bool
}

// Stats 追踪器聚合统计
type Stats struct {
	TotalSessions     int64
	HistoryLen        int
	P50               time.Duration
	P95               time.Duration
	SuccessRate       float64
	DecisionCount     int64
	AverageConfidence float64
}

// Tracer 行为追踪器：记录每次执行的会话、决策与耗时
type Tracer struct {
	config     Config
	clock      clock.Clock
	logger     *zap.Logger
	otelTracer trace.Tracer
	meter      metric.Meter

	sessionsCounter metric.Int64Counter
	confidenceHist  metric.Float64Histogram

	mu            sync.Mutex
	history       []sample // 环形缓冲
	next          int
	totalSessions int64
	decisionCount int64
	confidenceSum float64
}

// New 创建行为追踪器
func New(config Config, clk clock.Clock, logger *zap.Logger, opts ...Option) *Tracer {
	if logger == nil {
		logger = zap.NewNop()
	}
	def := DefaultConfig()
	if config.HistorySize <= 0 {
		config.HistorySize = def.HistorySize
	}
	if config.MaxDecisions <= 0 {
		config.MaxDecisions = def.MaxDecisions
	}

	t := &Tracer{
		config:     config,
		clock:      clock.OrReal(clk),
		logger:     logger.With(zap.String("component", "tracer")),
		otelTracer: otel.Tracer(instrumentationName),
		meter:      otel.Meter(instrumentationName),
		history:    make([]sample, 0, config.HistorySize),
	}
	for _, opt := range opts {
		opt(t)
	}

	var err error
	t.sessionsCounter, err = t.meter.Int64Counter("agentcore.session.total",
		metric.WithDescription("Total number of traced sessions"),
		metric.WithUnit("{session}"))
	if err != nil {
		t.logger.Warn("create session counter failed", zap.Error(err))
	}
	t.confidenceHist, err = t.meter.Float64Histogram("agentcore.decision.confidence",
		metric.WithDescription("Confidence of recorded decisions"))
	if err != nil {
		t.logger.Warn("create confidence histogram failed", zap.Error(err))
	}

	return t
}

// StartSession 为一次执行打开追踪会话
func (t *Tracer) StartSession(ctx context.Context, caseID, taskName string) *Session {
	ctx, span := t.otelTracer.Start(ctx, "agentcore.session",
		trace.WithAttributes(
			attribute.String("agentcore.case_id", caseID),
			attribute.String("agentcore.task", taskName),
		))

	return &Session{
		tracer:   t,
		ctx:      ctx,
		span:     span,
		caseID:   caseID,
		taskName: taskName,
		started:  t.clock.Now(),
	}
}

// Stats 返回当前聚合统计
func (t *Tracer) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()

	durations := make([]time.Duration, len(t.history))
	successes := 0
	for i, s := range t.history {
		durations[i] = s.duration
		if s.success {
			successes++
		}
	}
	sort.Slice(durations, func(i, j int) bool { return durations[i] < durations[j] })

	st := Stats{
		TotalSessions: t.totalSessions,
		HistoryLen:    len(t.history),
		P50:           nearestRank(durations, 50),
		P95:           nearestRank(durations, 95),
		DecisionCount: t.decisionCount,
	}
	if len(t.history) > 0 {
		st.SuccessRate = float64(successes) / float64(len(t.history))
	}
	if t.decisionCount > 0 {
		st.AverageConfidence = t.confidenceSum / float64(t.decisionCount)
	}
	return st
}

// Percentile 返回历史窗口内的 p 分位耗时（nearest-rank）
func (t *Tracer) Percentile(p float64) time.Duration {
	t.mu.Lock()
	durations := make([]time.Duration, len(t.history))
	for i, s := range t.history {
		durations[i] = s.duration
	}
	t.mu.Unlock()

	sort.Slice(durations, func(i, j int) bool { return durations[i] < durations[j] })
	return nearestRank(durations, p)
}

// nearestRank 对已排序的样本取 p 分位，空样本返回 0
func nearestRank(sorted []time.Duration, p float64) time.Duration {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	rank := int(math.Ceil(p / 100 * float64(n)))
	if rank < 1 {
		rank = 1
	}
	if rank > n {
		rank = n
	}
	return sorted[rank-1]
}

func (t *Tracer) recordDecision(ctx context.Context, confidence float64) {
	t.mu.Lock()
	t.decisionCount++
	t.confidenceSum += confidence
	t.mu.Unlock()

	if t.confidenceHist != nil {
		t.confidenceHist.Record(ctx, confidence)
	}
}

func (t *Tracer) recordSession(ctx context.Context, task string, d time.Duration, success bool) {
	t.mu.Lock()
	t.totalSessions++
	s := sample{duration: d, success: success}
	if len(t.history) < t.config.HistorySize {
		t.history = append(t.history, s)
	} else {
		// 淘汰最旧的样本
		t.history[t.next] = s
		t.next = (t.next + 1) % t.config.HistorySize
	}
	t.mu.Unlock()

	if t.sessionsCounter != nil {
		t.sessionsCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("task", task),
			attribute.Bool("success", success),
		))
	}
}

// SessionSummary 会话结束时的摘要
type SessionSummary struct {
	CaseID      string
	TaskName    string
	Success     bool
	Decisions   []types.DecisionPoint
	Dropped     int
	Duration    time.Duration
	P50         time.Duration
	P95         time.Duration
	SuccessRate float64
}

// Session 单次执行的追踪会话，对应一个 OpenTelemetry span
type Session struct {
	tracer   *Tracer
	ctx      context.Context
	span     trace.Span
	caseID   string
	taskName string
	started  time.Time

	mu        sync.Mutex
	decisions []types.DecisionPoint
	dropped   int
	ended     bool
	summary   SessionSummary
}

// Context 返回携带会话 span 的 context
func (s *Session) Context() context.Context { return s.ctx }

// RecordDecision 记录决策点，置信度必须在 [0,1] 内
func (s *Session) RecordDecision(description, rationale string, confidence float64) error {
	if math.IsNaN(confidence) || confidence < 0 || confidence > 1 {
		return &types.InvalidConfidenceError{Confidence: confidence}
	}

	dp := types.DecisionPoint{
		Description: description,
		Rationale:   rationale,
		Confidence:  confidence,
		Timestamp:   s.tracer.clock.Now(),
	}

	s.mu.Lock()
	if len(s.decisions) >= s.tracer.config.MaxDecisions {
		s.decisions = append(s.decisions[:0], s.decisions[1:]...)
		s.dropped++
	}
	s.decisions = append(s.decisions, dp)
	s.mu.Unlock()

	s.span.AddEvent("decision", trace.WithAttributes(
		attribute.String("decision.description", description),
		attribute.String("decision.rationale", rationale),
		attribute.Float64("decision.confidence", confidence),
	))
	s.tracer.recordDecision(s.ctx, confidence)
	return nil
}

// Decisions 返回当前决策的副本
func (s *Session) Decisions() []types.DecisionPoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.DecisionPoint, len(s.decisions))
	copy(out, s.decisions)
	return out
}

// End 结束会话并写入历史。重复调用返回第一次的摘要。
func (s *Session) End(success bool) SessionSummary {
	s.mu.Lock()
	if s.ended {
		defer s.mu.Unlock()
		return s.summary
	}
	s.ended = true
	decisions := make([]types.DecisionPoint, len(s.decisions))
	copy(decisions, s.decisions)
	dropped := s.dropped
	s.mu.Unlock()

	duration := s.tracer.clock.Now().Sub(s.started)
	s.tracer.recordSession(s.ctx, s.taskName, duration, success)

	if success {
		s.span.SetStatus(codes.Ok, "")
	} else {
		s.span.SetStatus(codes.Error, "task failed")
	}
	s.span.SetAttributes(
		attribute.Bool("agentcore.success", success),
		attribute.Int("agentcore.decisions", len(decisions)),
		attribute.Int("agentcore.decisions_dropped", dropped),
	)
	s.span.End()

	st := s.tracer.Stats()
	summary := SessionSummary{
		CaseID:      s.caseID,
		TaskName:    s.taskName,
		Success:     success,
		Decisions:   decisions,
		Dropped:     dropped,
		Duration:    duration,
		P50:         st.P50,
		P95:         st.P95,
		SuccessRate: st.SuccessRate,
	}

	s.tracer.logger.Debug("session ended",
		zap.String("case_id", s.caseID),
		zap.String("task", s.taskName),
		zap.Bool("success", success),
		zap.Duration("duration", duration),
		zap.Int("decisions", len(decisions)),
	)

	s.mu.Lock()
	s.summary = summary
	s.mu.Unlock()
	return summary
}
