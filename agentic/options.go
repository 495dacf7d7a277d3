package agentic

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/BaSui01/agentcore/internal/clock"
	"github.com/BaSui01/agentcore/internal/telemetry"
	"github.com/BaSui01/agentcore/skills"
)

type options struct {
	logger         *zap.Logger
	store          skills.Store
	registerer     prometheus.Registerer
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
	clock          clock.Clock
	telemetryOpts  []telemetry.Option
}

// Option 配置 System
type Option func(*options)

// WithLogger 设置日志记录器
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithStore 使用调用方提供的技能存储，System 不负责关闭它
func WithStore(store skills.Store) Option {
	return func(o *options) { o.store = store }
}

// WithMetrics 把 Prometheus 指标注册到 reg；不设置时不采集指标
func WithMetrics(reg prometheus.Registerer) Option {
	return func(o *options) { o.registerer = reg }
}

// WithTracerProvider 使用指定的 TracerProvider，跳过遥测初始化
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) { o.tracerProvider = tp }
}

// WithMeterProvider 使用指定的 MeterProvider
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) { o.meterProvider = mp }
}

// WithClock 注入时钟，测试中用于驱动退避与熔断超时
func WithClock(clk clock.Clock) Option {
	return func(o *options) { o.clock = clk }
}

// WithSpanExporter 遥测启用时用 exp 导出会话 span，代替 OTLP gRPC
func WithSpanExporter(exp sdktrace.SpanExporter) Option {
	return func(o *options) { o.telemetryOpts = append(o.telemetryOpts, telemetry.WithSpanExporter(exp)) }
}

// WithMetricReader 遥测启用时用 r 读取指标，代替 OTLP gRPC 周期导出
func WithMetricReader(r sdkmetric.Reader) Option {
	return func(o *options) { o.telemetryOpts = append(o.telemetryOpts, telemetry.WithMetricReader(r)) }
}
