package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/BaSui01/agentcore/agentic"
	"github.com/BaSui01/agentcore/executor"
	"github.com/BaSui01/agentcore/recovery"
	"github.com/BaSui01/agentcore/scoring"
	"github.com/BaSui01/agentcore/types"
)

// demoCase 一条脚本化案例
type demoCase struct {
	CaseID string
	Task   string
	Role   string
	Input  any
}

var demoScript = []demoCase{
	{"market-001", "echo", "analyst", "AAPL"},
	{"market-002", "flaky", "analyst", "MSFT"},
	{"audit-001", "forbidden", "auditor", "ledger"},
	{"quotes-001", "quotes", "trader", "EURUSD"},
	{"market-001", "echo", "analyst", "AAPL"},
}

func newDemoCmd(a *app) *cobra.Command {
	var (
		rounds      int
		baseDelay   time.Duration
		showMetrics bool
	)

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run scripted cases against sample handlers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("base-delay") {
				a.cfg.Recovery.BaseDelay = baseDelay
			}
			return runDemo(cmd.Context(), cmd.OutOrStdout(), a, rounds, showMetrics)
		},
	}

	cmd.Flags().IntVar(&rounds, "rounds", 1, "number of times the script is replayed")
	cmd.Flags().DurationVar(&baseDelay, "base-delay", 0, "override recovery.base_delay")
	cmd.Flags().BoolVar(&showMetrics, "metrics", false, "print Prometheus metrics after the run")
	return cmd
}

func runDemo(ctx context.Context, out io.Writer, a *app, rounds int, showMetrics bool) error {
	if ctx == nil {
		ctx = context.Background()
	}

	opts := []agentic.Option{agentic.WithLogger(a.logger)}
	reg := prometheus.NewRegistry()
	if showMetrics {
		opts = append(opts, agentic.WithMetrics(reg))
	}

	sys, err := agentic.New(a.cfg, opts...)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sys.Close(context.Background()); cerr != nil {
			a.logger.Warn("close system", zap.Error(cerr))
		}
	}()

	registerDemoHandlers(sys)

	results := table.NewWriter()
	results.SetOutputMirror(out)
	results.SetTitle("Executions")
	results.AppendHeader(table.Row{"Round", "Case", "Task", "Outcome", "Retries", "Fallback", "Category", "Duration"})

	for round := 1; round <= rounds; round++ {
		for _, c := range demoScript {
			res, err := sys.ExecuteCase(ctx, c.CaseID, c.Task, c.Role, c.Input)
			if err != nil {
				return err
			}
			results.AppendRow(table.Row{
				round, res.CaseID, res.TaskName, res.Outcome, res.RetryCount,
				res.FellBack, res.ErrorCategory, res.Duration.Round(time.Microsecond),
			})
		}
		if _, err := sys.Score(); err != nil {
			return err
		}
	}
	results.Render()

	ranking := table.NewWriter()
	ranking.SetOutputMirror(out)
	ranking.SetTitle("Skill ranking")
	ranking.AppendHeader(table.Row{"#", "Skill", "Usage", "Success rate", "Avg latency"})
	for i, s := range sys.RankSkills() {
		ranking.AppendRow(table.Row{i + 1, s.SkillID, s.UsageCount, fmt.Sprintf("%.2f", s.SuccessRate()), s.AvgLatency.Round(time.Microsecond)})
	}
	ranking.Render()

	stats := sys.GetPerformanceStats()
	fmt.Fprintf(out, "executions=%d p50=%s p95=%s success_rate=%.2f retries=%d recovered=%d fallbacks=%d skills=%d\n",
		stats.TotalExecutions, stats.P50Latency, stats.P95Latency, stats.SuccessRate,
		stats.Retries, stats.Recovered, stats.FallBacks, stats.SkillsGenerated)

	history := sys.Scorer().History()
	latest := history[len(history)-1]
	decision := scoring.Decide(history)
	fmt.Fprintf(out, "score=%.4f tier=%s momentum=%t decision=%s\n",
		latest.Score, latest.Tier, scoring.ValidateMomentum(history), decision)

	if showMetrics {
		return writeMetrics(out, reg)
	}
	return nil
}

// registerDemoHandlers 注册示例处理器：echo、flaky、forbidden、quotes
func registerDemoHandlers(sys *agentic.System) {
	sys.RegisterHandler("echo", func(_ context.Context, input any) (any, error) {
		return input, nil
	})

	// 每个案例的前两次调用失败
	var mu sync.Mutex
	attempts := make(map[string]int)
	sys.RegisterHandler("flaky", func(_ context.Context, input any) (any, error) {
		key := fmt.Sprint(input)
		mu.Lock()
		attempts[key]++
		n := attempts[key]
		mu.Unlock()
		if n <= 2 {
			return nil, recovery.Transient(fmt.Errorf("upstream timeout (attempt %d)", n))
		}
		return fmt.Sprintf("%s: trend up", key), nil
	})

	sys.RegisterHandler("forbidden", func(context.Context, any) (any, error) {
		return nil, types.NewError(types.ErrForbidden, "ledger access denied")
	})

	sys.RegisterHandler("quotes", func(context.Context, any) (any, error) {
		return nil, recovery.Dependency("quotes-api", errors.New("quotes-api unavailable"))
	},
		executor.WithDependencies("quotes-api"),
		executor.WithFallback(func(_ context.Context, input any, _ error) (any, error) {
			return fmt.Sprintf("%v: cached quote", input), nil
		}),
	)
}

func writeMetrics(out io.Writer, reg *prometheus.Registry) error {
	families, err := reg.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(out, mf); err != nil {
			return err
		}
	}
	return nil
}
