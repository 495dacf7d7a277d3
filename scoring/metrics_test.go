package scoring

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/BaSui01/agentcore/types"
)

func uniform(v float64) VersionMetrics {
	return VersionMetrics{v, v, v, v, v, v, v, v}
}

func TestWeightsSumToOne(t *testing.T) {
	var sum float64
	for _, c := range (VersionMetrics{}).Components() {
		sum += c.Weight
	}
	assert.InDelta(t, 1.0, sum, 1e-12)
}

func TestComputeScore(t *testing.T) {
	score, err := ComputeScore(uniform(1))
	require.NoError(t, err)
	assert.InDelta(t, 1.0, score, 1e-12)

	score, err = ComputeScore(VersionMetrics{CoherenceAccumulation: 1, EvolutionCount: 0.5})
	require.NoError(t, err)
	assert.InDelta(t, 0.20+0.075, score, 1e-12)

	score, err = ComputeScore(VersionMetrics{})
	require.NoError(t, err)
	assert.Equal(t, 0.0, score)
}

func TestComputeScore_RejectsOutOfRange(t *testing.T) {
	tests := []struct {
		name      string
		metrics   VersionMetrics
		component string
	}{
		{"negative", VersionMetrics{EvolutionCount: -0.1}, "evolution_count"},
		{"above one", VersionMetrics{ErrorRecoveryRate: 1.0001}, "error_recovery_rate"},
		{"nan", VersionMetrics{AverageConfidence: math.NaN()}, "average_confidence"},
		{"inf", VersionMetrics{ResourceEfficiency: math.Inf(1)}, "resource_efficiency"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ComputeScore(tt.metrics)
			require.Error(t, err)
			assert.True(t, errors.Is(err, types.ErrInvalidMetric))

			var metricErr *types.InvalidMetricError
			require.ErrorAs(t, err, &metricErr)
			assert.Equal(t, tt.component, metricErr.Component)
		})
	}
}

func TestTierFor_ExactBoundaries(t *testing.T) {
	tests := []struct {
		score float64
		want  Tier
	}{
		{1.0, TierGold},
		{0.85, TierGold},
		{0.849999, TierSilver},
		{0.70, TierSilver},
		{0.6999, TierBronze},
		{0.50, TierBronze},
		{0.4999, TierBase},
		{0, TierBase},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, TierFor(tt.score), "score=%v", tt.score)
	}
}

func TestComputeScore_UniformBoundariesKeepTier(t *testing.T) {
	tests := []struct {
		value float64
		want  Tier
	}{
		{0.85, TierGold},
		{0.70, TierSilver},
		{0.50, TierBronze},
	}
	for _, tt := range tests {
		score, err := ComputeScore(uniform(tt.value))
		require.NoError(t, err)
		assert.Equal(t, tt.value, score)
		assert.Equal(t, tt.want, TierFor(score), "uniform %v", tt.value)
	}
}

func TestProperty_ScoreInUnitIntervalAndDeterministic(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		unit := rapid.Float64Range(0, 1)
		m := VersionMetrics{
			CoherenceAccumulation: unit.Draw(t, "coherence"),
			EvolutionCount:        unit.Draw(t, "evolution"),
			PatternEmergenceRate:  unit.Draw(t, "pattern"),
			OperationSuccessRate:  unit.Draw(t, "success"),
			AverageConfidence:     unit.Draw(t, "confidence"),
			SkillRetrievalScore:   unit.Draw(t, "retrieval"),
			ResourceEfficiency:    unit.Draw(t, "efficiency"),
			ErrorRecoveryRate:     unit.Draw(t, "recovery"),
		}

		first, err := ComputeScore(m)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		second, _ := ComputeScore(m)
		if first != second {
			t.Fatalf("non-deterministic: %v != %v", first, second)
		}
		if first < 0 || first > 1 {
			t.Fatalf("score %v outside [0,1]", first)
		}
	})
}

func TestProperty_TierMonotonic(t *testing.T) {
	rank := map[Tier]int{TierBase: 0, TierBronze: 1, TierSilver: 2, TierGold: 3}
	rapid.Check(t, func(t *rapid.T) {
		a := rapid.Float64Range(0, 1).Draw(t, "a")
		b := rapid.Float64Range(0, 1).Draw(t, "b")
		if a > b {
			a, b = b, a
		}
		if rank[TierFor(a)] > rank[TierFor(b)] {
			t.Fatalf("tier(%v)=%s above tier(%v)=%s", a, TierFor(a), b, TierFor(b))
		}
	})
}
