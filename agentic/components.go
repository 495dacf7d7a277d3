package agentic

import (
	"github.com/BaSui01/agentcore/config"
	"github.com/BaSui01/agentcore/internal/cache"
	"github.com/BaSui01/agentcore/learning"
	"github.com/BaSui01/agentcore/recovery"
	"github.com/BaSui01/agentcore/recovery/circuitbreaker"
	"github.com/BaSui01/agentcore/recovery/retry"
	"github.com/BaSui01/agentcore/skills"
	"github.com/BaSui01/agentcore/tracing"
)

// 配置节到各组件配置的映射

func recoveryConfig(c config.RecoveryConfig) recovery.Config {
	return recovery.Config{
		Retry: retry.Policy{
			MaxAttempts: c.MaxAttempts,
			BaseDelay:   c.BaseDelay,
			MaxDelay:    c.MaxDelay,
			Multiplier:  c.Multiplier,
			Jitter:      c.Jitter,
		},
		HandlerTimeout: c.HandlerTimeout,
	}
}

func breakerConfig(c config.CircuitBreakerConfig) circuitbreaker.Config {
	return circuitbreaker.Config{
		FailureThreshold: c.FailureThreshold,
		RecoveryTimeout:  c.RecoveryTimeout,
		SuccessThreshold: c.SuccessThreshold,
		HalfOpenMaxCalls: c.HalfOpenMaxCalls,
	}
}

func tracerConfig(c config.TracerConfig) tracing.Config {
	return tracing.Config{
		HistorySize:  c.HistorySize,
		MaxDecisions: c.MaxDecisions,
	}
}

func learningConfig(c config.LearningConfig) learning.Config {
	return learning.Config{
		CheckpointInterval: c.CheckpointInterval,
		CacheSize:          c.CacheSize,
		CacheTTL:           c.CacheTTL,
	}
}

func storeConfig(c config.SkillsConfig) skills.StoreConfig {
	redis := cache.DefaultConfig()
	redis.Addr = c.Redis.Addr
	redis.Password = c.Redis.Password
	redis.DB = c.Redis.DB
	redis.TLS = c.Redis.TLS
	if c.Redis.KeyPrefix != "" {
		redis.KeyPrefix = c.Redis.KeyPrefix
	}
	if c.Redis.PoolSize > 0 {
		redis.PoolSize = c.Redis.PoolSize
	}
	return skills.StoreConfig{
		Type:    c.Store,
		BaseDir: c.BaseDir,
		Redis:   redis,
	}
}
