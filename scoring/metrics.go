package scoring

import (
	"math"

	"github.com/BaSui01/agentcore/types"
)

// VersionMetrics 八个评分分量，调用方负责归一化到 [0,1]
type VersionMetrics struct {
	CoherenceAccumulation float64 `json:"coherence_accumulation"`
	EvolutionCount        float64 `json:"evolution_count"`
	PatternEmergenceRate  float64 `json:"pattern_emergence_rate"`
	OperationSuccessRate  float64 `json:"operation_success_rate"`
	AverageConfidence     float64 `json:"average_confidence"`
	SkillRetrievalScore   float64 `json:"skill_retrieval_score"`
	ResourceEfficiency    float64 `json:"resource_efficiency"`
	ErrorRecoveryRate     float64 `json:"error_recovery_rate"`
}

// Component 命名分量及其权重
type Component struct {
	Name   string
	Weight float64
	Value  float64
}

// 分量权重，合计 1.00
const (
	WeightCoherence    = 0.20
	WeightEvolution    = 0.15
	WeightPattern      = 0.10
	WeightSuccess      = 0.15
	WeightConfidence   = 0.10
	WeightRetrieval    = 0.10
	WeightEfficiency   = 0.10
	WeightRecoveryRate = 0.10
)

// Components 按固定顺序返回分量
func (m VersionMetrics) Components() []Component {
	return []Component{
		{"coherence_accumulation", WeightCoherence, m.CoherenceAccumulation},
		{"evolution_count", WeightEvolution, m.EvolutionCount},
		{"pattern_emergence_rate", WeightPattern, m.PatternEmergenceRate},
		{"operation_success_rate", WeightSuccess, m.OperationSuccessRate},
		{"average_confidence", WeightConfidence, m.AverageConfidence},
		{"skill_retrieval_score", WeightRetrieval, m.SkillRetrievalScore},
		{"resource_efficiency", WeightEfficiency, m.ResourceEfficiency},
		{"error_recovery_rate", WeightRecoveryRate, m.ErrorRecoveryRate},
	}
}

// Validate 任一分量为 NaN 或超出 [0,1] 时返回 *types.InvalidMetricError
func (m VersionMetrics) Validate() error {
	for _, c := range m.Components() {
		if math.IsNaN(c.Value) || c.Value < 0 || c.Value > 1 {
			return &types.InvalidMetricError{Component: c.Name, Value: c.Value}
		}
	}
	return nil
}

// scorePrecision 加权和保留 9 位小数，阈值上的分数落在对应档位
const scorePrecision = 1e9

// ComputeScore 返回加权和（保留 9 位小数），结果落在 [0,1]
func ComputeScore(m VersionMetrics) (float64, error) {
	if err := m.Validate(); err != nil {
		return 0, err
	}
	var sum float64
	for _, c := range m.Components() {
		sum += c.Weight * c.Value
	}
	sum = math.Round(sum*scorePrecision) / scorePrecision
	return math.Min(1, math.Max(0, sum)), nil
}

// Tier 分级标签
type Tier string

const (
	TierGold   Tier = "3.5"
	TierSilver Tier = "3.0"
	TierBronze Tier = "2.0"
	TierBase   Tier = "1.0"
)

// 分级阈值（含下界）
const (
	GoldThreshold   = 0.85
	SilverThreshold = 0.70
	BronzeThreshold = 0.50
)

// TierFor 按固定阈值分级
func TierFor(score float64) Tier {
	switch {
	case score >= GoldThreshold:
		return TierGold
	case score >= SilverThreshold:
		return TierSilver
	case score >= BronzeThreshold:
		return TierBronze
	default:
		return TierBase
	}
}
