package learning

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"

	"github.com/BaSui01/agentcore/event"
	"github.com/BaSui01/agentcore/internal/clock"
	"github.com/BaSui01/agentcore/types"
)

// Config 学习协调器配置
type Config struct {
	// CheckpointInterval 每多少次更新输出一次检查点
	CheckpointInterval int
	// CacheSize 查询缓存容量
	CacheSize int
	// CacheTTL 查询缓存过期时间
	CacheTTL time.Duration
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		CheckpointInterval: 10,
		CacheSize:          256,
		CacheTTL:           5 * time.Minute,
	}
}

// SkillStats 单个技能的使用统计
type SkillStats struct {
	SkillID      string        `json:"skill_id"`
	UsageCount   int           `json:"usage_count"`
	SuccessCount int           `json:"success_count"`
	AvgLatency   time.Duration `json:"avg_latency"`
	LastUsed     time.Time     `json:"last_used"`
}

// SuccessRate 成功率，未使用过的技能为 0
func (s SkillStats) SuccessRate() float64 {
	if s.UsageCount == 0 {
		return 0
	}
	return float64(s.SuccessCount) / float64(s.UsageCount)
}

// Checkpoint 检查点标记，不改变任何状态
type Checkpoint struct {
	Sequence int64
	Updates  int64
	Skills   int
	At       time.Time
}

// MetricsRecorder 学习指标，*metrics.Collector 满足该接口
type MetricsRecorder interface {
	RecordLearningCheckpoint()
	RecordSkillLookup(hit bool)
}

type entry struct {
	mu       sync.Mutex
	usage    int
	success  int
	avgNanos float64
	lastUsed time.Time
}

func (e *entry) snapshot(id string) SkillStats {
	return SkillStats{
		SkillID:      id,
		UsageCount:   e.usage,
		SuccessCount: e.success,
		AvgLatency:   time.Duration(e.avgNanos),
		LastUsed:     e.lastUsed,
	}
}

// Coordinator 学习协调器：按技能统计使用次数、成功率与平均耗时
type Coordinator struct {
	config       Config
	clock        clock.Clock
	metrics      MetricsRecorder
	logger       *zap.Logger
	onCheckpoint func(Checkpoint)

	mu      sync.RWMutex
	entries map[string]*entry

	updates     atomic.Int64
	checkpoints atomic.Int64

	cache  *expirable.LRU[string, SkillStats]
	hits   atomic.Int64
	misses atomic.Int64
}

// Option 协调器选项
type Option func(*Coordinator)

// WithCheckpointHook 每个检查点同步调用 fn
func WithCheckpointHook(fn func(Checkpoint)) Option {
	return func(c *Coordinator) { c.onCheckpoint = fn }
}

// NewCoordinator 创建学习协调器
func NewCoordinator(config Config, clk clock.Clock, metrics MetricsRecorder, logger *zap.Logger, opts ...Option) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	def := DefaultConfig()
	if config.CheckpointInterval <= 0 {
		config.CheckpointInterval = def.CheckpointInterval
	}
	if config.CacheSize <= 0 {
		config.CacheSize = def.CacheSize
	}
	if config.CacheTTL <= 0 {
		config.CacheTTL = def.CacheTTL
	}

	c := &Coordinator{
		config:  config,
		clock:   clock.OrReal(clk),
		metrics: metrics,
		logger:  logger.With(zap.String("component", "learning")),
		entries: make(map[string]*entry),
		cache:   expirable.NewLRU[string, SkillStats](config.CacheSize, nil, config.CacheTTL),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Subscribe 订阅 completed 主题（成功与失败都会更新统计）
func (c *Coordinator) Subscribe(bus *event.Bus) event.SubscriptionID {
	return bus.Subscribe(event.TopicCompleted, c.HandleEvent)
}

// HandleEvent 满足 event.Handler
func (c *Coordinator) HandleEvent(_ context.Context, payload any) error {
	ev, ok := event.AsCompleted(payload)
	if !ok {
		return fmt.Errorf("unexpected payload %T on %s", payload, event.TopicCompleted)
	}
	c.Record(types.SkillID(ev.CaseID), ev.Succeeded(), ev.Duration)
	return nil
}

// Record 记录一次执行，返回更新后的统计
func (c *Coordinator) Record(skillID string, success bool, duration time.Duration) SkillStats {
	e := c.entry(skillID)

	e.mu.Lock()
	e.usage++
	if success {
		e.success++
	}
	// 增量均值：avg += (d - avg) / n
	e.avgNanos += (float64(duration) - e.avgNanos) / float64(e.usage)
	e.lastUsed = c.clock.Now()
	stats := e.snapshot(skillID)
	e.mu.Unlock()

	c.cache.Remove(skillID)

	n := c.updates.Add(1)
	if n%int64(c.config.CheckpointInterval) == 0 {
		c.checkpoint(n)
	}
	return stats
}

func (c *Coordinator) entry(id string) *entry {
	c.mu.RLock()
	e, ok := c.entries[id]
	c.mu.RUnlock()
	if ok {
		return e
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok = c.entries[id]; ok {
		return e
	}
	e = &entry{}
	c.entries[id] = e
	return e
}

func (c *Coordinator) checkpoint(updates int64) {
	cp := Checkpoint{
		Sequence: c.checkpoints.Add(1),
		Updates:  updates,
		Skills:   c.skillCount(),
		At:       c.clock.Now(),
	}

	c.logger.Info("learning checkpoint",
		zap.Int64("sequence", cp.Sequence),
		zap.Int64("updates", cp.Updates),
		zap.Int("skills", cp.Skills),
	)
	if c.metrics != nil {
		c.metrics.RecordLearningCheckpoint()
	}
	if c.onCheckpoint != nil {
		c.onCheckpoint(cp)
	}
}

func (c *Coordinator) skillCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stats 直接读取统计，不经过缓存
func (c *Coordinator) Stats(skillID string) (SkillStats, bool) {
	c.mu.RLock()
	e, ok := c.entries[skillID]
	c.mu.RUnlock()
	if !ok {
		return SkillStats{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshot(skillID), true
}

// Lookup 经 TTL + LRU 缓存读取统计，命中情况计入检索得分
func (c *Coordinator) Lookup(skillID string) (SkillStats, bool) {
	if stats, ok := c.cache.Get(skillID); ok {
		c.hits.Add(1)
		if c.metrics != nil {
			c.metrics.RecordSkillLookup(true)
		}
		return stats, true
	}

	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.RecordSkillLookup(false)
	}

	stats, ok := c.Stats(skillID)
	if ok {
		c.cache.Add(skillID, stats)
	}
	return stats, ok
}

// Invalidate 使缓存中的 skillID 失效
func (c *Coordinator) Invalidate(skillID string) bool {
	return c.cache.Remove(skillID)
}

// RetrievalScore 查询缓存命中率，没有查询时为 0
func (c *Coordinator) RetrievalScore() float64 {
	hits, misses := c.hits.Load(), c.misses.Load()
	if hits+misses == 0 {
		return 0
	}
	return float64(hits) / float64(hits+misses)
}

// Updates 返回累计更新次数
func (c *Coordinator) Updates() int64 { return c.updates.Load() }

// Checkpoints 返回累计检查点数
func (c *Coordinator) Checkpoints() int64 { return c.checkpoints.Load() }

// RankSkills 按成功率降序、平均耗时升序、技能 ID 升序排序
func (c *Coordinator) RankSkills() []SkillStats {
	c.mu.RLock()
	ids := make([]string, 0, len(c.entries))
	entries := make([]*entry, 0, len(c.entries))
	for id, e := range c.entries {
		ids = append(ids, id)
		entries = append(entries, e)
	}
	c.mu.RUnlock()

	out := make([]SkillStats, len(ids))
	for i, e := range entries {
		e.mu.Lock()
		out[i] = e.snapshot(ids[i])
		e.mu.Unlock()
	}

	SortRanking(out)
	return out
}

// SortRanking 对统计排序，规则与 RankSkills 相同
func SortRanking(stats []SkillStats) {
	sort.SliceStable(stats, func(i, j int) bool {
		ri, rj := stats[i].SuccessRate(), stats[j].SuccessRate()
		if ri != rj {
			return ri > rj
		}
		if stats[i].AvgLatency != stats[j].AvgLatency {
			return stats[i].AvgLatency < stats[j].AvgLatency
		}
		return stats[i].SkillID < stats[j].SkillID
	})
}

// SuccessfulSkillShare 成功率不低于 threshold 的技能占比，没有技能时为 0
func (c *Coordinator) SuccessfulSkillShare(threshold float64) float64 {
	ranked := c.RankSkills()
	if len(ranked) == 0 {
		return 0
	}
	n := 0
	for _, s := range ranked {
		if s.SuccessRate() >= threshold {
			n++
		}
	}
	return float64(n) / float64(len(ranked))
}

// ValidateMomentum 最后一个分数不低于第一个；少于两个分数时成立
func ValidateMomentum(scores []float64) bool {
	if len(scores) < 2 {
		return true
	}
	return scores[len(scores)-1] >= scores[0]
}
