package scoring

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/agentcore/internal/clock"
)

// CompoundWeight 复利模式下调用方对后续贡献施加的权重
const CompoundWeight = 10

// Decision 动量策略
type Decision string

const (
	DecisionNone      Decision = ""
	DecisionCompound  Decision = "compound"
	DecisionStabilize Decision = "stabilize"
)

// VersionRecord 一次评分检查点
type VersionRecord struct {
	Score     float64   `json:"score"`
	Tier      Tier      `json:"tier"`
	Decision  Decision  `json:"decision,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// MetricsRecorder 评分指标，*metrics.Collector 满足该接口
type MetricsRecorder interface {
	RecordVersionScore(score float64)
	RecordMomentumViolation()
}

// Scorer 维护只追加的评分历史与动量策略状态
type Scorer struct {
	clock   clock.Clock
	metrics MetricsRecorder
	logger  *zap.Logger

	mu         sync.RWMutex
	history    []VersionRecord
	decision   Decision
	frozen     bool
	frozenTier Tier
	violations int
}

// NewScorer 创建评分器
func NewScorer(clk clock.Clock, metrics MetricsRecorder, logger *zap.Logger) *Scorer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scorer{
		clock:   clock.OrReal(clk),
		metrics: metrics,
		logger:  logger.With(zap.String("component", "scorer")),
	}
}

// Score 计算分数与分级并写入检查点
func (s *Scorer) Score(m VersionMetrics) (VersionRecord, error) {
	score, err := ComputeScore(m)
	if err != nil {
		return VersionRecord{}, err
	}
	return s.RecordCheckpoint(score, TierFor(score)), nil
}

// RecordCheckpoint 追加一条记录。复利模式下分数跌破首个分数会被记录为动量违背，
// 但分数本身保持不变。
func (s *Scorer) RecordCheckpoint(score float64, tier Tier) VersionRecord {
	s.mu.Lock()
	rec := VersionRecord{
		Score:     score,
		Tier:      tier,
		Decision:  s.decision,
		Timestamp: s.clock.Now(),
	}
	s.history = append(s.history, rec)
	violated := s.decision == DecisionCompound && score < s.history[0].Score
	if violated {
		s.violations++
	}
	first := s.history[0].Score
	n := len(s.history)
	s.mu.Unlock()

	s.logger.Info("version checkpoint",
		zap.Float64("score", score),
		zap.String("tier", string(tier)),
		zap.Int("history", n),
	)
	if s.metrics != nil {
		s.metrics.RecordVersionScore(score)
	}
	if violated {
		s.logger.Warn("momentum violation",
			zap.Float64("first", first),
			zap.Float64("score", score),
		)
		if s.metrics != nil {
			s.metrics.RecordMomentumViolation()
		}
	}
	return rec
}

// History 返回历史副本
func (s *Scorer) History() []VersionRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]VersionRecord, len(s.history))
	copy(out, s.history)
	return out
}

// Latest 返回最近一条记录
func (s *Scorer) Latest() (VersionRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.history) == 0 {
		return VersionRecord{}, false
	}
	return s.history[len(s.history)-1], true
}

// Momentum 对自身历史做动量检查
func (s *Scorer) Momentum() bool {
	return ValidateMomentum(s.History())
}

// ValidateMomentum 最后一条记录的分数不低于第一条；空历史成立
func ValidateMomentum(history []VersionRecord) bool {
	if len(history) == 0 {
		return true
	}
	return history[len(history)-1].Score >= history[0].Score
}

// Decide 动量成立建议 Compound，否则建议 Stabilize。只给建议，不改变状态。
func Decide(history []VersionRecord) Decision {
	if ValidateMomentum(history) {
		return DecisionCompound
	}
	return DecisionStabilize
}

// Stabilize 冻结当前分级，返回被冻结的分级
func (s *Scorer) Stabilize() Tier {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.decision = DecisionStabilize
	s.frozen = true
	s.frozenTier = TierBase
	if n := len(s.history); n > 0 {
		s.frozenTier = s.history[n-1].Tier
	}
	s.logger.Info("tier frozen", zap.String("tier", string(s.frozenTier)))
	return s.frozenTier
}

// Unfreeze 解除冻结
func (s *Scorer) Unfreeze() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frozen = false
	if s.decision == DecisionStabilize {
		s.decision = DecisionNone
	}
}

// Compound 进入复利模式，同时解除冻结
func (s *Scorer) Compound() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.decision = DecisionCompound
	s.frozen = false
	s.logger.Info("compound mode", zap.Int("weight", CompoundWeight))
}

// Mode 当前策略
func (s *Scorer) Mode() Decision {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.decision
}

// EffectiveTier 冻结时返回冻结的分级，否则返回最近一条记录的分级
func (s *Scorer) EffectiveTier() Tier {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.frozen {
		return s.frozenTier
	}
	if n := len(s.history); n > 0 {
		return s.history[n-1].Tier
	}
	return TierBase
}

// Violations 复利模式下累计的动量违背次数
func (s *Scorer) Violations() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.violations
}
