package agentic

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap/zaptest"

	"github.com/BaSui01/agentcore/config"
	"github.com/BaSui01/agentcore/event"
	"github.com/BaSui01/agentcore/executor"
	"github.com/BaSui01/agentcore/recovery"
	"github.com/BaSui01/agentcore/recovery/circuitbreaker"
	"github.com/BaSui01/agentcore/skills"
	"github.com/BaSui01/agentcore/testutil"
	"github.com/BaSui01/agentcore/types"
)

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Recovery.BaseDelay = 10 * time.Millisecond
	cfg.CircuitBreaker.FailureThreshold = 3
	cfg.CircuitBreaker.RecoveryTimeout = time.Minute
	return cfg
}

func newTestSystem(t *testing.T, cfg *config.Config, opts ...Option) (*System, *testutil.ManualClock) {
	t.Helper()
	clk := testutil.NewManualClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	opts = append([]Option{WithClock(clk), WithLogger(zaptest.NewLogger(t))}, opts...)
	sys, err := New(cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sys.Close(context.Background()) })
	return sys, clk
}

func TestSystem_FailsTwiceThenSucceeds(t *testing.T) {
	sys, clk := newTestSystem(t, testConfig())
	ctx := context.Background()

	handler := testutil.NewScriptedHandler(errors.New("flaky"), errors.New("flaky"))
	handler.Output = map[string]float64{"trend": 0.42}
	sys.RegisterHandler("price_trend", handler.Handle)

	result, err := sys.ExecuteCase(ctx, "case-1", "price_trend", "analyst", nil)
	require.NoError(t, err)

	assert.Equal(t, types.OutcomeSuccess, result.Outcome)
	assert.Equal(t, 2, result.RetryCount)
	assert.Equal(t, 3, handler.Calls())
	assert.Equal(t, []time.Duration{10 * time.Millisecond, 20 * time.Millisecond}, clk.Sleeps())

	// 技能已生成并持久化
	skill, err := sys.LoadSkill(ctx, types.SkillID("case-1"))
	require.NoError(t, err)
	assert.Equal(t, "analyst", skill.Metadata.References.AgentRole)

	ranked := sys.RankSkills()
	require.Len(t, ranked, 1)
	assert.Equal(t, types.SkillID("case-1"), ranked[0].SkillID)
	assert.Equal(t, 1.0, ranked[0].SuccessRate())

	stats := sys.GetPerformanceStats()
	assert.Equal(t, int64(1), stats.TotalExecutions)
	assert.Equal(t, int64(2), stats.Retries)
	assert.Equal(t, int64(1), stats.Recovered)
	assert.Equal(t, 1, stats.SkillsGenerated)
	assert.Equal(t, 1.0, stats.SuccessRate)
}

func TestSystem_SameCaseTwiceYieldsOneSkill(t *testing.T) {
	sys, _ := newTestSystem(t, testConfig())
	ctx := context.Background()
	sys.RegisterHandler("echo", func(_ context.Context, input any) (any, error) { return input, nil })

	for i := 0; i < 2; i++ {
		result, err := sys.ExecuteCase(ctx, "case-7", "echo", "assistant", i)
		require.NoError(t, err)
		assert.Equal(t, i, result.Output)
	}

	ids, err := sys.store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, ids, 1)

	stats, ok := sys.LookupSkill(types.SkillID("case-7"))
	require.True(t, ok)
	assert.Equal(t, 2, stats.UsageCount)
	assert.Equal(t, 2, stats.SuccessCount)
	assert.Equal(t, 1, sys.GetPerformanceStats().SkillsGenerated)
}

func TestSystem_PermissionErrorNotRetried(t *testing.T) {
	sys, clk := newTestSystem(t, testConfig())
	handler := testutil.AlwaysFailing(types.NewError(types.ErrForbidden, "no access"))
	sys.RegisterHandler("export", handler.Handle)

	result, err := sys.ExecuteCase(context.Background(), "case-2", "export", "auditor", nil)
	require.NoError(t, err)

	assert.Equal(t, types.OutcomeFailure, result.Outcome)
	assert.Equal(t, string(recovery.CategoryPermission), result.ErrorCategory)
	assert.Contains(t, result.Error, "no access")
	assert.Equal(t, 1, handler.Calls())
	assert.Empty(t, clk.Sleeps())

	// 失败不生成技能，但学习统计照常更新
	assert.Equal(t, 0, sys.GetPerformanceStats().SkillsGenerated)
	ranked := sys.RankSkills()
	require.Len(t, ranked, 1)
	assert.Equal(t, 0.0, ranked[0].SuccessRate())
}

func TestSystem_UnregisteredTask(t *testing.T) {
	sys, _ := newTestSystem(t, testConfig())

	_, err := sys.ExecuteCase(context.Background(), "case-3", "missing", "analyst", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrUnregisteredTask)

	var unreg *types.UnregisteredTaskError
	require.ErrorAs(t, err, &unreg)
	assert.Equal(t, "missing", unreg.TaskName)
	assert.Equal(t, int64(0), sys.GetPerformanceStats().TotalExecutions)
}

func TestSystem_BreakerOpensAndFallbackServes(t *testing.T) {
	sys, clk := newTestSystem(t, testConfig())
	ctx := context.Background()

	down := testutil.AlwaysFailing(recovery.Dependency("quotes-api", errors.New("503")))
	sys.RegisterHandler("quotes", down.Handle)

	result, err := sys.ExecuteCase(ctx, "case-4", "quotes", "analyst", nil)
	require.NoError(t, err)
	assert.Equal(t, types.OutcomeFailure, result.Outcome)
	assert.Equal(t, string(recovery.CategoryDependency), result.ErrorCategory)
	assert.Equal(t, circuitbreaker.StateOpen, sys.Breakers().Get("quotes-api").State())

	// 依赖熔断期间命中 fallback，处理器不被调用
	sys.RegisterHandler("quotes", down.Handle,
		executor.WithDependencies("quotes-api"),
		executor.WithFallback(func(context.Context, any, error) (any, error) { return "cached", nil }),
	)
	calls := down.Calls()
	result, err = sys.ExecuteCase(ctx, "case-4", "quotes", "analyst", nil)
	require.NoError(t, err)
	assert.Equal(t, types.OutcomeSuccess, result.Outcome)
	assert.True(t, result.FellBack)
	assert.Equal(t, "cached", result.Output)
	assert.Equal(t, calls, down.Calls())

	stats := sys.GetPerformanceStats()
	assert.Equal(t, int64(1), stats.FallBacks)
	assert.Equal(t, int64(1), stats.Recovered)

	// 恢复超时之后的试探调用成功，熔断器关闭
	healthy := testutil.NewScriptedHandler()
	sys.RegisterHandler("quotes", healthy.Handle, executor.WithDependencies("quotes-api"))
	clk.Advance(time.Minute)

	result, err = sys.ExecuteCase(ctx, "case-4", "quotes", "analyst", nil)
	require.NoError(t, err)
	assert.True(t, result.Succeeded())
	assert.False(t, result.FellBack)
	assert.Equal(t, 1, healthy.Calls())
	assert.Equal(t, circuitbreaker.StateClosed, sys.Breakers().Get("quotes-api").State())
}

func TestSystem_SubscriberFailureIsolated(t *testing.T) {
	sys, _ := newTestSystem(t, testConfig())
	ctx := context.Background()

	var seen []string
	sys.Subscribe(event.TopicCompleted, func(context.Context, any) error { panic("observer bug") })
	id := sys.Subscribe(event.TopicCompleted, func(_ context.Context, payload any) error {
		ev, _ := event.AsCompleted(payload)
		seen = append(seen, ev.CaseID)
		return nil
	})
	sys.RegisterHandler("echo", func(_ context.Context, input any) (any, error) { return input, nil })

	result, err := sys.ExecuteCase(ctx, "case-5", "echo", "assistant", "x")
	require.NoError(t, err)
	assert.True(t, result.Succeeded())
	assert.Equal(t, []string{"case-5"}, seen)
	assert.Equal(t, 1, sys.GetPerformanceStats().SkillsGenerated)

	assert.True(t, sys.Unsubscribe(event.TopicCompleted, id))
	_, err = sys.ExecuteCase(ctx, "case-6", "echo", "assistant", "y")
	require.NoError(t, err)
	assert.Len(t, seen, 1)
}

func TestSystem_CurrentMetricsAndScore(t *testing.T) {
	sys, _ := newTestSystem(t, testConfig())
	ctx := context.Background()

	// 没有任何执行时分量也都在 [0,1]
	_, err := sys.Score()
	require.NoError(t, err)

	flaky := testutil.NewScriptedHandler(errors.New("blip"))
	sys.RegisterHandler("flaky", flaky.Handle)
	sys.RegisterHandler("bad", testutil.AlwaysFailing(recovery.Validation(errors.New("bad input"))).Handle)

	_, err = sys.ExecuteCase(ctx, "a", "flaky", "r", nil)
	require.NoError(t, err)
	_, err = sys.ExecuteCase(ctx, "b", "bad", "r", nil)
	require.NoError(t, err)
	_, _ = sys.LookupSkill(types.SkillID("a"))
	_, _ = sys.LookupSkill(types.SkillID("a"))

	m := sys.CurrentMetrics()
	assert.InDelta(t, 0.5, m.CoherenceAccumulation, 1e-9)
	assert.InDelta(t, 0.1, m.EvolutionCount, 1e-9)
	assert.InDelta(t, 1.0, m.PatternEmergenceRate, 1e-9)
	assert.InDelta(t, 0.5, m.OperationSuccessRate, 1e-9)
	assert.InDelta(t, 0.5, m.SkillRetrievalScore, 1e-9)
	assert.InDelta(t, 0.5, m.ErrorRecoveryRate, 1e-9)
	// p95 为一次 10ms 退避
	assert.InDelta(t, 1-0.01/5, m.ResourceEfficiency, 1e-9)
	require.NoError(t, m.Validate())

	rec, err := sys.Score()
	require.NoError(t, err)
	assert.Len(t, sys.Scorer().History(), 2)
	assert.Equal(t, rec, sys.Scorer().History()[1])
}

func TestSystem_PrometheusMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	sys, _ := newTestSystem(t, testConfig(), WithMetrics(reg))
	sys.RegisterHandler("echo", func(_ context.Context, input any) (any, error) { return input, nil })

	_, err := sys.ExecuteCase(context.Background(), "case-m", "echo", "assistant", nil)
	require.NoError(t, err)
	_, err = sys.Score()
	require.NoError(t, err)

	expected := `
# HELP agentcore_skills_generated_total Total number of generated skills
# TYPE agentcore_skills_generated_total counter
agentcore_skills_generated_total 1
`
	require.NoError(t, promtestutil.GatherAndCompare(reg, strings.NewReader(expected), "agentcore_skills_generated_total"))

	count, err := promtestutil.GatherAndCount(reg, "agentcore_executions_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestSystem_TracerProviderReceivesSessions(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	sys, _ := newTestSystem(t, testConfig(), WithTracerProvider(tp))
	sys.RegisterHandler("echo", func(_ context.Context, input any) (any, error) { return input, nil })

	_, err := sys.ExecuteCase(context.Background(), "case-t", "echo", "assistant", nil)
	require.NoError(t, err)

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "agentcore.session", ended[0].Name())
}

func TestSystem_TelemetryFromConfigStaysLocal(t *testing.T) {
	globalTP, globalMP := otel.GetTracerProvider(), otel.GetMeterProvider()

	cfg := testConfig()
	cfg.Telemetry.Enabled = true
	cfg.Telemetry.SampleRate = 1
	cfg.Telemetry.ServiceName = "agentcore-it"

	spans := tracetest.NewInMemoryExporter()
	reader := sdkmetric.NewManualReader()
	sys, _ := newTestSystem(t, cfg, WithSpanExporter(spans), WithMetricReader(reader))
	sys.RegisterHandler("echo", func(_ context.Context, input any) (any, error) { return input, nil })

	_, err := sys.ExecuteCase(context.Background(), "case-otel", "echo", "assistant", nil)
	require.NoError(t, err)
	require.NoError(t, sys.Flush(context.Background()))

	stubs := spans.GetSpans()
	require.Len(t, stubs, 1)
	assert.Equal(t, "agentcore.session", stubs[0].Name)
	service, ok := stubs[0].Resource.Set().Value(attribute.Key("service.name"))
	require.True(t, ok)
	assert.Equal(t, "agentcore-it", service.AsString())

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	names := map[string]bool{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			names[m.Name] = true
		}
	}
	assert.True(t, names["agentcore.session.total"])

	// 默认不注册 otel 全局实例
	assert.True(t, globalTP == otel.GetTracerProvider())
	assert.True(t, globalMP == otel.GetMeterProvider())
}

func TestSystem_FileStoreFromConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Skills.Store = skills.StoreFile
	cfg.Skills.BaseDir = t.TempDir()

	sys, _ := newTestSystem(t, cfg)
	sys.RegisterHandler("echo", func(_ context.Context, input any) (any, error) { return input, nil })

	_, err := sys.ExecuteCase(context.Background(), "case-f", "echo", "assistant", nil)
	require.NoError(t, err)

	id := types.SkillID("case-f")
	_, err = os.Stat(filepath.Join(cfg.Skills.BaseDir, id, skills.ManifestFile))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(cfg.Skills.BaseDir, id, skills.ArtifactFile))
	assert.NoError(t, err)
}

func TestSystem_InjectedStoreNotClosed(t *testing.T) {
	store := &closeCountingStore{MemoryStore: skills.NewMemoryStore()}
	sys, _ := newTestSystem(t, testConfig(), WithStore(store))

	require.NoError(t, sys.Close(context.Background()))
	require.NoError(t, sys.Close(context.Background()))
	assert.Equal(t, 0, store.closed)

	_, err := sys.ExecuteCase(context.Background(), "c", "echo", "r", nil)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Recovery.MaxAttempts = 0

	_, err := New(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "recovery.max_attempts")
}

func TestNew_NilConfigUsesDefaults(t *testing.T) {
	sys, err := New(nil)
	require.NoError(t, err)
	defer sys.Close(context.Background())

	assert.Equal(t, 3, sys.Config().Recovery.MaxAttempts)
}

type closeCountingStore struct {
	*skills.MemoryStore
	closed int
}

func (s *closeCountingStore) Close() error {
	s.closed++
	return nil
}
