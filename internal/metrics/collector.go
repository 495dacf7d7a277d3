// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector 指标收集器。所有 Record* 方法对 nil 接收者安全，
// 未启用指标的组件直接传 nil 即可。
type Collector struct {
	// 执行指标
	executionsTotal   *prometheus.CounterVec
	executionDuration *prometheus.HistogramVec
	retriesTotal      *prometheus.CounterVec
	fallbacksTotal    *prometheus.CounterVec

	// 熔断器指标
	circuitState       *prometheus.GaugeVec
	circuitTransitions *prometheus.CounterVec
	circuitRejections  *prometheus.CounterVec

	// 事件总线指标
	eventHandlerErrors *prometheus.CounterVec

	// 技能与学习指标
	skillsGenerated     prometheus.Counter
	learningCheckpoints prometheus.Counter
	skillLookups        *prometheus.CounterVec

	// 评分指标
	versionScore       prometheus.Gauge
	momentumViolations prometheus.Counter

	logger *zap.Logger
}

// NewCollector 创建指标收集器，reg 为 nil 时注册到默认 registry
func NewCollector(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	// 执行指标
	c.executionsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "executions_total",
			Help:      "Total number of task executions",
		},
		[]string{"task", "outcome"},
	)

	c.executionDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "execution_duration_seconds",
			Help:      "Task execution duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"task"},
	)

	c.retriesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retries_total",
			Help:      "Total number of retry attempts",
		},
		[]string{"task", "category"},
	)

	c.fallbacksTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fallbacks_total",
			Help:      "Total number of fallback invocations",
		},
		[]string{"task", "reason"},
	)

	// 熔断器指标
	c.circuitState = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_state",
			Help:      "Circuit breaker state (0=closed, 1=open, 2=half_open)",
		},
		[]string{"key"},
	)

	c.circuitTransitions = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "circuit_transitions_total",
			Help:      "Total number of circuit breaker state transitions",
		},
		[]string{"key", "from_state", "to_state"},
	)

	c.circuitRejections = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "circuit_rejections_total",
			Help:      "Total number of calls rejected by an open circuit",
		},
		[]string{"key"},
	)

	// 事件总线指标
	c.eventHandlerErrors = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "event_handler_errors_total",
			Help:      "Total number of event handler failures",
		},
		[]string{"topic"},
	)

	// 技能与学习指标
	c.skillsGenerated = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "skills_generated_total",
		Help:      "Total number of generated skills",
	})

	c.learningCheckpoints = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "learning_checkpoints_total",
		Help:      "Total number of learning checkpoint markers",
	})

	c.skillLookups = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "skill_lookups_total",
			Help:      "Total number of skill lookups by cache result",
		},
		[]string{"result"}, // hit, miss
	)

	// 评分指标
	c.versionScore = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "version_score",
		Help:      "Latest computed version score",
	})

	c.momentumViolations = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "momentum_violations_total",
		Help:      "Total number of checkpoints that regressed below the first score in compound mode",
	})

	c.logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// =============================================================================
// 🎭 执行指标记录
// =============================================================================

// RecordExecution 记录一次任务执行
func (c *Collector) RecordExecution(task, outcome string, duration time.Duration) {
	if c == nil {
		return
	}
	c.executionsTotal.WithLabelValues(task, outcome).Inc()
	c.executionDuration.WithLabelValues(task).Observe(duration.Seconds())
}

// RecordRetry 记录一次重试
func (c *Collector) RecordRetry(task, category string) {
	if c == nil {
		return
	}
	c.retriesTotal.WithLabelValues(task, category).Inc()
}

// RecordFallback 记录一次降级
func (c *Collector) RecordFallback(task, reason string) {
	if c == nil {
		return
	}
	c.fallbacksTotal.WithLabelValues(task, reason).Inc()
}

// =============================================================================
// 🔌 熔断器指标记录
// =============================================================================

// RecordCircuitTransition 记录熔断器状态转换并更新状态 gauge
func (c *Collector) RecordCircuitTransition(key, from, to string, toValue int) {
	if c == nil {
		return
	}
	c.circuitTransitions.WithLabelValues(key, from, to).Inc()
	c.circuitState.WithLabelValues(key).Set(float64(toValue))
}

// RecordCircuitRejection 记录被熔断拒绝的调用
func (c *Collector) RecordCircuitRejection(key string) {
	if c == nil {
		return
	}
	c.circuitRejections.WithLabelValues(key).Inc()
}

// =============================================================================
// 📨 事件、技能与学习指标记录
// =============================================================================

// RecordEventHandlerError 记录事件处理器失败，满足 event.ErrorObserver
func (c *Collector) RecordEventHandlerError(topic string) {
	if c == nil {
		return
	}
	c.eventHandlerErrors.WithLabelValues(topic).Inc()
}

// RecordSkillGenerated 记录技能生成
func (c *Collector) RecordSkillGenerated() {
	if c == nil {
		return
	}
	c.skillsGenerated.Inc()
}

// RecordLearningCheckpoint 记录学习检查点
func (c *Collector) RecordLearningCheckpoint() {
	if c == nil {
		return
	}
	c.learningCheckpoints.Inc()
}

// RecordSkillLookup 记录技能查询的缓存结果
func (c *Collector) RecordSkillLookup(hit bool) {
	if c == nil {
		return
	}
	if hit {
		c.skillLookups.WithLabelValues("hit").Inc()
		return
	}
	c.skillLookups.WithLabelValues("miss").Inc()
}

// =============================================================================
// 🏅 评分指标记录
// =============================================================================

// RecordVersionScore 记录最新的版本评分
func (c *Collector) RecordVersionScore(score float64) {
	if c == nil {
		return
	}
	c.versionScore.Set(score)
}

// RecordMomentumViolation 记录动量违背
func (c *Collector) RecordMomentumViolation() {
	if c == nil {
		return
	}
	c.momentumViolations.Inc()
}
