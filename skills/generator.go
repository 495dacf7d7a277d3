package skills

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/BaSui01/agentcore/event"
	"github.com/BaSui01/agentcore/internal/clock"
	"github.com/BaSui01/agentcore/types"
)

// MetricsRecorder 技能生成指标，*metrics.Collector 满足该接口
type MetricsRecorder interface {
	RecordSkillGenerated()
}

// Generator 技能生成器：case 首次成功时生成并持久化技能
type Generator struct {
	store   Store
	clock   clock.Clock
	metrics MetricsRecorder
	logger  *zap.Logger

	group singleflight.Group

	mu        sync.RWMutex
	index     map[string]struct{}
	generated int
}

// NewGenerator 创建技能生成器
func NewGenerator(store Store, clk clock.Clock, metrics MetricsRecorder, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{
		store:   store,
		clock:   clock.OrReal(clk),
		metrics: metrics,
		logger:  logger.With(zap.String("component", "skill_generator")),
		index:   make(map[string]struct{}),
	}
}

// Subscribe 订阅 completed 主题
func (g *Generator) Subscribe(bus *event.Bus) event.SubscriptionID {
	return bus.Subscribe(event.TopicCompleted, g.HandleEvent)
}

// HandleEvent 满足 event.Handler
func (g *Generator) HandleEvent(ctx context.Context, payload any) error {
	ev, ok := event.AsCompleted(payload)
	if !ok {
		return fmt.Errorf("unexpected payload %T on %s", payload, event.TopicCompleted)
	}
	_, err := g.Generate(ctx, ev)
	return err
}

// Generate 处理一次 completed 事件，返回是否新建了技能。
// 失败的执行不生成技能；同一 case 的重复成功不做任何事。
func (g *Generator) Generate(ctx context.Context, ev event.CompletedEvent) (bool, error) {
	if !ev.Succeeded() {
		return false, nil
	}

	id := types.SkillID(ev.CaseID)
	if g.known(id) {
		return false, nil
	}

	v, err, _ := g.group.Do(id, func() (any, error) {
		if g.known(id) {
			return false, nil
		}

		exists, err := g.store.Exists(ctx, id)
		if err != nil {
			return false, fmt.Errorf("check skill %s: %w", id, err)
		}
		if exists {
			g.remember(id, false)
			return false, nil
		}

		skill := g.build(id, ev)
		if err := g.store.Save(ctx, skill); err != nil {
			if errors.Is(err, ErrSkillExists) {
				// 只有存储确认存在时才记为已知，否则下次成功再试
				if ok, xerr := g.store.Exists(ctx, id); xerr == nil && ok {
					g.remember(id, false)
					return false, nil
				}
			}
			return false, fmt.Errorf("save skill %s: %w", id, err)
		}

		g.remember(id, true)
		if g.metrics != nil {
			g.metrics.RecordSkillGenerated()
		}
		g.logger.Info("skill generated",
			zap.String("skill_id", id),
			zap.String("case_id", ev.CaseID),
			zap.String("task", ev.TaskName),
		)
		return true, nil
	})
	if err != nil {
		g.logger.Error("skill generation failed", zap.String("skill_id", id), zap.Error(err))
		return false, err
	}
	return v.(bool), nil
}

// Known 技能 ID 是否已知（已生成或已在存储中）
func (g *Generator) Known(id string) bool { return g.known(id) }

// Generated 返回本进程新生成的技能数
func (g *Generator) Generated() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.generated
}

// Store 返回底层存储
func (g *Generator) Store() Store { return g.store }

func (g *Generator) known(id string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.index[id]
	return ok
}

func (g *Generator) remember(id string, created bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.index[id] = struct{}{}
	if created {
		g.generated++
	}
}

func (g *Generator) build(id string, ev event.CompletedEvent) *Skill {
	now := g.clock.Now()
	title := fmt.Sprintf("%s for case %s", ev.TaskName, ev.CaseID)
	summary := fmt.Sprintf("Successful %s run by %s in %s", ev.TaskName, ev.AgentRole, ev.Duration)
	if ev.RetryCount > 0 {
		summary += fmt.Sprintf(" after %d retries", ev.RetryCount)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", title)
	fmt.Fprintf(&b, "%s.\n\n", summary)
	b.WriteString("## References\n\n")
	fmt.Fprintf(&b, "- case: `%s`\n", ev.CaseID)
	fmt.Fprintf(&b, "- task: `%s`\n", ev.TaskName)
	fmt.Fprintf(&b, "- agent role: `%s`\n", ev.AgentRole)
	fmt.Fprintf(&b, "- invocation: `%s`\n", ev.InvocationID)
	b.WriteString("\n## Execution\n\n")
	fmt.Fprintf(&b, "- duration: %s\n", ev.Duration)
	fmt.Fprintf(&b, "- retries: %d\n", ev.RetryCount)
	if ev.FellBack {
		fmt.Fprintf(&b, "- served by fallback after %s\n", ev.ErrorCategory)
	}

	return &Skill{
		ID: id,
		Metadata: Metadata{
			Title:   title,
			Summary: summary,
			References: References{
				CaseID:    ev.CaseID,
				AgentRole: ev.AgentRole,
				TaskName:  ev.TaskName,
			},
			GeneratedAt: now,
		},
		Artifact: b.String(),
	}
}
