// =============================================================================
// 📦 AgentCore 默认配置
// =============================================================================
// 提供所有配置项的合理默认值
// =============================================================================
package config

import "time"

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Recovery:       DefaultRecoveryConfig(),
		CircuitBreaker: DefaultCircuitBreakerConfig(),
		Tracer:         DefaultTracerConfig(),
		Learning:       DefaultLearningConfig(),
		Skills:         DefaultSkillsConfig(),
		Scoring:        DefaultScoringConfig(),
		Log:            DefaultLogConfig(),
		Telemetry:      DefaultTelemetryConfig(),
		Metrics:        DefaultMetricsConfig(),
	}
}

// DefaultRecoveryConfig 返回默认重试配置
func DefaultRecoveryConfig() RecoveryConfig {
	return RecoveryConfig{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    30 * time.Second,
		Multiplier:  2,
	}
}

// DefaultCircuitBreakerConfig 返回默认熔断器配置
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold: 5,
		RecoveryTimeout:  60 * time.Second,
		SuccessThreshold: 1,
		HalfOpenMaxCalls: 1,
	}
}

// DefaultTracerConfig 返回默认追踪配置
func DefaultTracerConfig() TracerConfig {
	return TracerConfig{
		HistorySize:  1000,
		MaxDecisions: 64,
	}
}

// DefaultLearningConfig 返回默认学习配置
func DefaultLearningConfig() LearningConfig {
	return LearningConfig{
		CheckpointInterval: 10,
		CacheSize:          256,
		CacheTTL:           5 * time.Minute,
	}
}

// DefaultSkillsConfig 返回默认技能存储配置
func DefaultSkillsConfig() SkillsConfig {
	return SkillsConfig{
		Store:   "memory",
		BaseDir: "skills",
		Redis: RedisConfig{
			Addr:      "localhost:6379",
			DB:        0,
			KeyPrefix: "agentcore:",
			PoolSize:  10,
		},
	}
}

// DefaultScoringConfig 返回默认评分配置
func DefaultScoringConfig() ScoringConfig {
	return ScoringConfig{
		EvolutionTarget: 10,
		LatencyBudget:   5 * time.Second,
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

// DefaultTelemetryConfig 返回默认遥测配置
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:       false,
		OTLPEndpoint:  "localhost:4317",
		ServiceName:   "agentcore",
		SampleRate:    0.1,
		ExportTimeout: 10 * time.Second,
	}
}

// DefaultMetricsConfig 返回默认指标配置
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{Namespace: "agentcore"}
}
