// =============================================================================
// 📦 AgentCore 配置加载器
// =============================================================================
// 统一配置加载，支持 YAML 文件 + 环境变量覆盖
//
// 使用方法:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("agentcore.yaml").
//	    WithEnvPrefix("AGENTCORE").
//	    Load()
//
// 配置优先级: 默认值 → YAML 文件 → 环境变量 → 验证器
// =============================================================================
package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultEnvPrefix 环境变量前缀
const DefaultEnvPrefix = "AGENTCORE"

// =============================================================================
// 🎯 核心配置结构
// =============================================================================

// Config 是 AgentCore 的完整配置结构
type Config struct {
	// Recovery 重试配置
	Recovery RecoveryConfig `yaml:"recovery" env:"RECOVERY"`

	// CircuitBreaker 熔断器配置
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker" env:"CIRCUIT_BREAKER"`

	// Tracer 行为追踪配置
	Tracer TracerConfig `yaml:"tracer" env:"TRACER"`

	// Learning 学习协调器配置
	Learning LearningConfig `yaml:"learning" env:"LEARNING"`

	// Skills 技能存储配置
	Skills SkillsConfig `yaml:"skills" env:"SKILLS"`

	// Scoring 版本评分配置
	Scoring ScoringConfig `yaml:"scoring" env:"SCORING"`

	// Log 日志配置
	Log LogConfig `yaml:"log" env:"LOG"`

	// Telemetry 遥测配置
	Telemetry TelemetryConfig `yaml:"telemetry" env:"TELEMETRY"`

	// Metrics Prometheus 指标配置
	Metrics MetricsConfig `yaml:"metrics" env:"METRICS"`
}

// RecoveryConfig 重试配置
type RecoveryConfig struct {
	// 最大尝试次数（含首次）
	MaxAttempts int `yaml:"max_attempts" env:"MAX_ATTEMPTS"`
	// 第二次尝试前的等待
	BaseDelay time.Duration `yaml:"base_delay" env:"BASE_DELAY"`
	// 单次等待上限
	MaxDelay time.Duration `yaml:"max_delay" env:"MAX_DELAY"`
	// 退避倍数
	Multiplier float64 `yaml:"multiplier" env:"MULTIPLIER"`
	// 是否加抖动
	Jitter bool `yaml:"jitter" env:"JITTER"`
	// 单次尝试超时，0 表示不限
	HandlerTimeout time.Duration `yaml:"handler_timeout" env:"HANDLER_TIMEOUT"`
}

// CircuitBreakerConfig 熔断器配置
type CircuitBreakerConfig struct {
	// 连续失败多少次后打开
	FailureThreshold int `yaml:"failure_threshold" env:"FAILURE_THRESHOLD"`
	// 打开后多久进入半开
	RecoveryTimeout time.Duration `yaml:"recovery_timeout" env:"RECOVERY_TIMEOUT"`
	// 半开状态下连续成功多少次后关闭
	SuccessThreshold int `yaml:"success_threshold" env:"SUCCESS_THRESHOLD"`
	// 半开状态允许的试探调用数
	HalfOpenMaxCalls int `yaml:"half_open_max_calls" env:"HALF_OPEN_MAX_CALLS"`
}

// TracerConfig 行为追踪配置
type TracerConfig struct {
	// 历史耗时保留条数
	HistorySize int `yaml:"history_size" env:"HISTORY_SIZE"`
	// 单个会话保留的决策数
	MaxDecisions int `yaml:"max_decisions" env:"MAX_DECISIONS"`
}

// LearningConfig 学习协调器配置
type LearningConfig struct {
	// 每多少次更新输出检查点
	CheckpointInterval int `yaml:"checkpoint_interval" env:"CHECKPOINT_INTERVAL"`
	// 查询缓存容量
	CacheSize int `yaml:"cache_size" env:"CACHE_SIZE"`
	// 查询缓存 TTL
	CacheTTL time.Duration `yaml:"cache_ttl" env:"CACHE_TTL"`
}

// SkillsConfig 技能存储配置
type SkillsConfig struct {
	// 存储类型: memory, file, redis
	Store string `yaml:"store" env:"STORE"`
	// file 存储根目录
	BaseDir string `yaml:"base_dir" env:"BASE_DIR"`
	// redis 存储配置
	Redis RedisConfig `yaml:"redis" env:"REDIS"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	// 地址
	Addr string `yaml:"addr" env:"ADDR"`
	// 密码
	Password string `yaml:"password" env:"PASSWORD"`
	// 数据库编号
	DB int `yaml:"db" env:"DB"`
	// 键前缀
	KeyPrefix string `yaml:"key_prefix" env:"KEY_PREFIX"`
	// 连接池大小
	PoolSize int `yaml:"pool_size" env:"POOL_SIZE"`
	// 是否启用 TLS
	TLS bool `yaml:"tls" env:"TLS"`
}

// ScoringConfig 版本评分配置
type ScoringConfig struct {
	// 技能数达到该值时 evolution 分量为 1
	EvolutionTarget int `yaml:"evolution_target" env:"EVOLUTION_TARGET"`
	// p95 耗时达到该值时 resource efficiency 分量为 0
	LatencyBudget time.Duration `yaml:"latency_budget" env:"LATENCY_BUDGET"`
}

// LogConfig 日志配置
type LogConfig struct {
	// 日志级别: debug, info, warn, error
	Level string `yaml:"level" env:"LEVEL"`
	// 输出格式: json, console
	Format string `yaml:"format" env:"FORMAT"`
	// 输出路径
	OutputPaths []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
	// 是否启用调用者信息
	EnableCaller bool `yaml:"enable_caller" env:"ENABLE_CALLER"`
	// 是否启用堆栈跟踪
	EnableStacktrace bool `yaml:"enable_stacktrace" env:"ENABLE_STACKTRACE"`
}

// TelemetryConfig 遥测配置
type TelemetryConfig struct {
	// 是否启用
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// OTLP 端点
	OTLPEndpoint string `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	// 服务名称
	ServiceName string `yaml:"service_name" env:"SERVICE_NAME"`
	// 采样率
	SampleRate float64 `yaml:"sample_rate" env:"SAMPLE_RATE"`
	// 是否把 provider 注册为 otel 全局实例（默认不注册）
	RegisterGlobal bool `yaml:"register_global" env:"REGISTER_GLOBAL"`
	// 导出超时，0 使用 SDK 默认值
	ExportTimeout time.Duration `yaml:"export_timeout" env:"EXPORT_TIMEOUT"`
}

// MetricsConfig Prometheus 指标配置
type MetricsConfig struct {
	// 指标命名空间
	Namespace string `yaml:"namespace" env:"NAMESPACE"`
}

// =============================================================================
// 🔧 配置加载器
// =============================================================================

// Loader 配置加载器（Builder 模式）
type Loader struct {
	configPath string
	envPrefix  string
	validators []func(*Config) error
}

// NewLoader 创建新的配置加载器
func NewLoader() *Loader {
	return &Loader{
		envPrefix:  DefaultEnvPrefix,
		validators: make([]func(*Config) error, 0),
	}
}

// WithConfigPath 设置配置文件路径
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix 设置环境变量前缀
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithValidator 添加配置验证器
func (l *Loader) WithValidator(v func(*Config) error) *Loader {
	l.validators = append(l.validators, v)
	return l
}

// Load 加载配置
// 优先级: 默认值 → YAML 文件 → 环境变量
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := l.loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	for _, v := range l.validators {
		if err := v(cfg); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}

	return cfg, nil
}

// loadFromFile 从 YAML 文件加载配置
func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			// 文件不存在，使用默认值
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// loadFromEnv 从环境变量加载配置
func (l *Loader) loadFromEnv(cfg *Config) error {
	return l.setFieldsFromEnv(reflect.ValueOf(cfg).Elem(), l.envPrefix)
}

// setFieldsFromEnv 递归设置结构体字段
func (l *Loader) setFieldsFromEnv(v reflect.Value, prefix string) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		envTag := fieldType.Tag.Get("env")
		if envTag == "" || envTag == "-" {
			continue
		}

		envKey := prefix + "_" + envTag

		if field.Kind() == reflect.Struct {
			if err := l.setFieldsFromEnv(field, envKey); err != nil {
				return err
			}
			continue
		}

		envValue := os.Getenv(envKey)
		if envValue == "" {
			continue
		}

		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("failed to set %s: %w", envKey, err)
		}
	}

	return nil
}

// setFieldValue 设置字段值
func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		// 特殊处理 time.Duration
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return err
			}
			field.SetInt(i)
		}

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)

	case reflect.Slice:
		// 支持逗号分隔的字符串切片
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			field.Set(reflect.ValueOf(parts))
		}
	}

	return nil
}

// =============================================================================
// 🔍 辅助函数
// =============================================================================

// MustLoad 加载配置，失败时 panic
func MustLoad(path string) *Config {
	cfg, err := NewLoader().WithConfigPath(path).WithValidator((*Config).Validate).Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// LoadFromEnv 仅从环境变量加载配置
func LoadFromEnv() (*Config, error) {
	return NewLoader().Load()
}

// Validate 验证配置，汇总所有错误
func (c *Config) Validate() error {
	var errs []error

	if c.Recovery.MaxAttempts < 1 {
		errs = append(errs, errors.New("recovery.max_attempts must be at least 1"))
	}
	if c.Recovery.BaseDelay < 0 {
		errs = append(errs, errors.New("recovery.base_delay must not be negative"))
	}
	if c.Recovery.MaxDelay > 0 && c.Recovery.MaxDelay < c.Recovery.BaseDelay {
		errs = append(errs, errors.New("recovery.max_delay must not be below base_delay"))
	}
	if c.Recovery.HandlerTimeout < 0 {
		errs = append(errs, errors.New("recovery.handler_timeout must not be negative"))
	}

	if c.CircuitBreaker.FailureThreshold < 1 {
		errs = append(errs, errors.New("circuit_breaker.failure_threshold must be at least 1"))
	}
	if c.CircuitBreaker.SuccessThreshold < 1 {
		errs = append(errs, errors.New("circuit_breaker.success_threshold must be at least 1"))
	}
	if c.CircuitBreaker.RecoveryTimeout <= 0 {
		errs = append(errs, errors.New("circuit_breaker.recovery_timeout must be positive"))
	}

	if c.Tracer.HistorySize < 1 {
		errs = append(errs, errors.New("tracer.history_size must be at least 1"))
	}
	if c.Learning.CheckpointInterval < 1 {
		errs = append(errs, errors.New("learning.checkpoint_interval must be at least 1"))
	}

	switch c.Skills.Store {
	case "memory", "redis":
	case "file":
		if c.Skills.BaseDir == "" {
			errs = append(errs, errors.New("skills.base_dir is required for the file store"))
		}
	default:
		errs = append(errs, fmt.Errorf("skills.store %q is not one of memory, file, redis", c.Skills.Store))
	}

	if c.Scoring.EvolutionTarget < 1 {
		errs = append(errs, errors.New("scoring.evolution_target must be at least 1"))
	}
	if c.Scoring.LatencyBudget <= 0 {
		errs = append(errs, errors.New("scoring.latency_budget must be positive"))
	}

	if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
		errs = append(errs, errors.New("telemetry.sample_rate must be between 0 and 1"))
	}
	if c.Telemetry.ExportTimeout < 0 {
		errs = append(errs, errors.New("telemetry.export_timeout must not be negative"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %w", errors.Join(errs...))
	}
	return nil
}
