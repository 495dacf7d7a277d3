package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap/zaptest"

	"github.com/BaSui01/agentcore/config"
)

func enabledConfig() config.TelemetryConfig {
	cfg := config.DefaultTelemetryConfig()
	cfg.Enabled = true
	cfg.ServiceName = "agentcore-test"
	cfg.SampleRate = 1
	return cfg
}

func initLocal(t *testing.T, cfg config.TelemetryConfig, opts ...Option) (*Providers, *tracetest.InMemoryExporter, *sdkmetric.ManualReader) {
	t.Helper()
	spans := tracetest.NewInMemoryExporter()
	reader := sdkmetric.NewManualReader()
	opts = append([]Option{WithSpanExporter(spans), WithMetricReader(reader)}, opts...)

	p, err := Init(cfg, zaptest.NewLogger(t), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })
	return p, spans, reader
}

func restoreGlobals(t *testing.T) {
	t.Helper()
	tp, mp, prop := otel.GetTracerProvider(), otel.GetMeterProvider(), otel.GetTextMapPropagator()
	t.Cleanup(func() {
		otel.SetTracerProvider(tp)
		otel.SetMeterProvider(mp)
		otel.SetTextMapPropagator(prop)
	})
}

func TestInit_DisabledHandsOutNoop(t *testing.T) {
	p, err := Init(config.TelemetryConfig{}, nil)
	require.NoError(t, err)
	assert.False(t, p.Enabled())
	assert.Nil(t, p.Resource())

	_, span := p.TracerProvider().Tracer("t").Start(context.Background(), "noop")
	assert.False(t, span.SpanContext().IsValid())
	span.End()
	assert.NotNil(t, p.MeterProvider().Meter("t"))
	assert.Empty(t, p.Propagator().Fields())
	assert.NoError(t, p.ForceFlush(context.Background()))
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestProviders_NilReceiver(t *testing.T) {
	var p *Providers
	assert.False(t, p.Enabled())
	assert.False(t, p.Global())
	assert.NotNil(t, p.TracerProvider())
	assert.NotNil(t, p.MeterProvider())
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestInit_ExportsToInjectedExporters(t *testing.T) {
	p, spans, reader := initLocal(t, enabledConfig())
	require.True(t, p.Enabled())

	ctx, span := p.TracerProvider().Tracer("agentcore").Start(context.Background(), "agentcore.session")
	span.End()

	counter, err := p.MeterProvider().Meter("agentcore").Int64Counter("agentcore.session.total")
	require.NoError(t, err)
	counter.Add(ctx, 2)

	require.NoError(t, p.ForceFlush(context.Background()))
	stubs := spans.GetSpans()
	require.Len(t, stubs, 1)
	assert.Equal(t, "agentcore.session", stubs[0].Name)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	require.Len(t, rm.ScopeMetrics, 1)
	require.Len(t, rm.ScopeMetrics[0].Metrics, 1)
	sum, ok := rm.ScopeMetrics[0].Metrics[0].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, sum.DataPoints, 1)
	assert.Equal(t, int64(2), sum.DataPoints[0].Value)
}

func TestInit_ResourceDescribesService(t *testing.T) {
	p, _, _ := initLocal(t, enabledConfig(), WithResourceAttributes(attribute.String("deployment.environment", "test")))

	set := p.Resource().Set()
	lookup := func(key string) string {
		v, ok := set.Value(attribute.Key(key))
		require.True(t, ok, key)
		return v.Emit()
	}
	assert.Equal(t, "agentcore-test", lookup("service.name"))
	assert.Equal(t, "dev", lookup("service.version"))
	assert.NotEmpty(t, lookup("service.instance.id"))
	assert.Equal(t, "github.com/BaSui01/agentcore", lookup(string(AttrInstrumentation)))
	assert.Equal(t, "test", lookup("deployment.environment"))
}

func TestInit_DoesNotTouchGlobalsByDefault(t *testing.T) {
	restoreGlobals(t)
	before := otel.GetTracerProvider()

	p, _, _ := initLocal(t, enabledConfig())
	assert.False(t, p.Global())
	assert.True(t, before == otel.GetTracerProvider())
}

func TestInit_RegisterGlobalOptIn(t *testing.T) {
	tests := []struct {
		name string
		cfg  func() config.TelemetryConfig
		opts []Option
	}{
		{"option", enabledConfig, []Option{WithGlobal()}},
		{"config", func() config.TelemetryConfig {
			cfg := enabledConfig()
			cfg.RegisterGlobal = true
			return cfg
		}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			restoreGlobals(t)
			p, _, _ := initLocal(t, tt.cfg(), tt.opts...)
			assert.True(t, p.Global())

			_, isSDK := otel.GetTracerProvider().(*sdktrace.TracerProvider)
			assert.True(t, isSDK)
			assert.ElementsMatch(t, []string{"traceparent", "tracestate", "baggage"}, otel.GetTextMapPropagator().Fields())
		})
	}
}

func TestSampler(t *testing.T) {
	params := sdktrace.SamplingParameters{
		ParentContext: context.Background(),
		TraceID:       trace.TraceID{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff},
		Name:          "agentcore.session",
	}
	assert.Equal(t, sdktrace.RecordAndSample, Sampler(1).ShouldSample(params).Decision)
	assert.Equal(t, sdktrace.RecordAndSample, Sampler(2).ShouldSample(params).Decision)
	assert.Equal(t, sdktrace.Drop, Sampler(0).ShouldSample(params).Decision)

	// 父 span 已采样时子 span 跟随
	parent := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    params.TraceID,
		SpanID:     trace.SpanID{1},
		TraceFlags: trace.FlagsSampled,
	})
	params.ParentContext = trace.ContextWithSpanContext(context.Background(), parent)
	assert.Equal(t, sdktrace.RecordAndSample, Sampler(0).ShouldSample(params).Decision)
}

func TestInit_SampleRateZeroDropsRootSpans(t *testing.T) {
	cfg := enabledConfig()
	cfg.SampleRate = 0
	p, spans, _ := initLocal(t, cfg)

	_, span := p.TracerProvider().Tracer("agentcore").Start(context.Background(), "agentcore.session")
	span.End()
	require.NoError(t, p.ForceFlush(context.Background()))
	assert.Empty(t, spans.GetSpans())
}

func TestBuildVersion(t *testing.T) {
	// 测试二进制的主模块版本为 (devel)
	assert.Equal(t, "dev", BuildVersion())
}
