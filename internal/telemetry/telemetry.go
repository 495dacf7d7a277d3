package telemetry

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/BaSui01/agentcore/config"
)

// 资源属性
const (
	// AttrInstrumentation 产生遥测数据的核心模块
	AttrInstrumentation = attribute.Key("agentcore.instrumentation")
	// AttrSampleRate 根 span 的采样率
	AttrSampleRate = attribute.Key("agentcore.sample_rate")
)

// Providers 一个 System 独占的 TracerProvider 与 MeterProvider。
// 禁用时两者为 nil，访问器返回 noop 实现。
type Providers struct {
	tp         *sdktrace.TracerProvider
	mp         *sdkmetric.MeterProvider
	res        *resource.Resource
	propagator propagation.TextMapPropagator
	global     bool
}

type options struct {
	global       bool
	spanExporter sdktrace.SpanExporter
	metricReader sdkmetric.Reader
	attrs        []attribute.KeyValue
}

// Option Init 选项
type Option func(*options)

// WithGlobal 同时注册为 otel 全局 provider 与 propagator
func WithGlobal() Option {
	return func(o *options) { o.global = true }
}

// WithSpanExporter 使用给定的 span 导出器代替 OTLP gRPC
func WithSpanExporter(exp sdktrace.SpanExporter) Option {
	return func(o *options) { o.spanExporter = exp }
}

// WithMetricReader 使用给定的 reader 代替 OTLP gRPC 周期导出
func WithMetricReader(r sdkmetric.Reader) Option {
	return func(o *options) { o.metricReader = r }
}

// WithResourceAttributes 追加资源属性
func WithResourceAttributes(attrs ...attribute.KeyValue) Option {
	return func(o *options) { o.attrs = append(o.attrs, attrs...) }
}

// Init 按配置创建 provider。默认不修改 otel 全局状态，
// 需要时传 WithGlobal 或在配置中打开 register_global。
func Init(cfg config.TelemetryConfig, logger *zap.Logger, opts ...Option) (*Providers, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "telemetry"))

	o := &options{global: cfg.RegisterGlobal}
	for _, opt := range opts {
		opt(o)
	}
	if !cfg.Enabled {
		logger.Debug("telemetry disabled, using noop providers")
		return &Providers{}, nil
	}

	ctx := context.Background()
	res := newResource(cfg, o.attrs)

	var err error
	spanExporter := o.spanExporter
	if spanExporter == nil {
		traceOpts := []otlptracegrpc.Option{
			otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
			otlptracegrpc.WithInsecure(),
		}
		if cfg.ExportTimeout > 0 {
			traceOpts = append(traceOpts, otlptracegrpc.WithTimeout(cfg.ExportTimeout))
		}
		spanExporter, err = otlptracegrpc.New(ctx, traceOpts...)
		if err != nil {
			return nil, fmt.Errorf("create trace exporter: %w", err)
		}
	}

	reader := o.metricReader
	if reader == nil {
		metricOpts := []otlpmetricgrpc.Option{
			otlpmetricgrpc.WithEndpoint(cfg.OTLPEndpoint),
			otlpmetricgrpc.WithInsecure(),
		}
		if cfg.ExportTimeout > 0 {
			metricOpts = append(metricOpts, otlpmetricgrpc.WithTimeout(cfg.ExportTimeout))
		}
		metricExporter, err := otlpmetricgrpc.New(ctx, metricOpts...)
		if err != nil {
			_ = spanExporter.Shutdown(ctx)
			return nil, fmt.Errorf("create metric exporter: %w", err)
		}
		reader = sdkmetric.NewPeriodicReader(metricExporter)
	}

	p := &Providers{
		tp: sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(spanExporter),
			sdktrace.WithResource(res),
			sdktrace.WithSampler(Sampler(cfg.SampleRate)),
		),
		mp: sdkmetric.NewMeterProvider(
			sdkmetric.WithReader(reader),
			sdkmetric.WithResource(res),
		),
		res: res,
		propagator: propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		),
		global: o.global,
	}
	if p.global {
		otel.SetTracerProvider(p.tp)
		otel.SetMeterProvider(p.mp)
		otel.SetTextMapPropagator(p.propagator)
	}

	logger.Info("telemetry initialized",
		zap.String("endpoint", cfg.OTLPEndpoint),
		zap.String("service_name", cfg.ServiceName),
		zap.Float64("sample_rate", cfg.SampleRate),
		zap.Bool("global", p.global),
	)
	return p, nil
}

// newResource 只包含配置与调用方给出的属性，不合并 resource.Default()
func newResource(cfg config.TelemetryConfig, extra []attribute.KeyValue) *resource.Resource {
	attrs := []attribute.KeyValue{
		semconv.ServiceNameKey.String(cfg.ServiceName),
		semconv.ServiceVersionKey.String(BuildVersion()),
		semconv.ServiceInstanceIDKey.String(uuid.NewString()),
		AttrInstrumentation.String("github.com/BaSui01/agentcore"),
		AttrSampleRate.Float64(cfg.SampleRate),
	}
	attrs = append(attrs, extra...)
	return resource.NewSchemaless(attrs...)
}

// Sampler 根 span 按 rate 采样，子 span 跟随父 span 的决定。
// rate >= 1 全部采样，rate <= 0 全部丢弃。
func Sampler(rate float64) sdktrace.Sampler {
	var root sdktrace.Sampler
	switch {
	case rate >= 1:
		root = sdktrace.AlwaysSample()
	case rate <= 0:
		root = sdktrace.NeverSample()
	default:
		root = sdktrace.TraceIDRatioBased(rate)
	}
	return sdktrace.ParentBased(root)
}

// Enabled 是否创建了 SDK provider
func (p *Providers) Enabled() bool {
	return p != nil && p.tp != nil
}

// Global 是否已注册为 otel 全局 provider
func (p *Providers) Global() bool {
	return p != nil && p.global
}

// TracerProvider 返回 SDK provider，禁用时返回 noop
func (p *Providers) TracerProvider() trace.TracerProvider {
	if p == nil || p.tp == nil {
		return tracenoop.NewTracerProvider()
	}
	return p.tp
}

// MeterProvider 返回 SDK provider，禁用时返回 noop
func (p *Providers) MeterProvider() metric.MeterProvider {
	if p == nil || p.mp == nil {
		return metricnoop.NewMeterProvider()
	}
	return p.mp
}

// Propagator 返回 W3C trace context + baggage 传播器，禁用时为空组合
func (p *Providers) Propagator() propagation.TextMapPropagator {
	if p == nil || p.propagator == nil {
		return propagation.NewCompositeTextMapPropagator()
	}
	return p.propagator
}

// Resource 返回资源，禁用时为 nil
func (p *Providers) Resource() *resource.Resource {
	if p == nil {
		return nil
	}
	return p.res
}

// ForceFlush 立即导出缓冲中的 span 与指标
func (p *Providers) ForceFlush(ctx context.Context) error {
	if !p.Enabled() {
		return nil
	}
	return errors.Join(p.tp.ForceFlush(ctx), p.mp.ForceFlush(ctx))
}

// Shutdown 导出剩余数据并关闭导出器，对 noop Providers 安全
func (p *Providers) Shutdown(ctx context.Context) error {
	if !p.Enabled() {
		return nil
	}
	var errs []error
	if err := p.tp.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown tracer provider: %w", err))
	}
	if err := p.mp.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown meter provider: %w", err))
	}
	return errors.Join(errs...)
}

// BuildVersion 从构建信息读取模块版本，取不到时为 "dev"
func BuildVersion() string {
	info, ok := debug.ReadBuildInfo()
	if !ok || info.Main.Version == "" || info.Main.Version == "(devel)" {
		return "dev"
	}
	return info.Main.Version
}
