package ib_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceanbase/agentmem/pkg/ib"
	"github.com/oceanbase/agentmem/pkg/memory"
)

func TestSelectContext_PrefersHighRelevanceWithinBudget(t *testing.T) {
	query := []float32{1, 0, 0, 0}

	candidates := []ib.Candidate{
		{ID: "relevant", Embedding: []float32{1, 0, 0, 0}, Importance: 0.8, Layer: memory.LayerEpisodic, Tokens: 100},
		{ID: "irrelevant", Embedding: []float32{0, 1, 0, 0}, Importance: 0.8, Layer: memory.LayerEpisodic, Tokens: 100},
	}

	result := ib.SelectContext(query, candidates, 1000, 1.0, 0)
	require.GreaterOrEqual(t, len(result.Selected), 1)
	assert.Equal(t, "relevant", result.Selected[0].ID)
}

func TestSelectContext_ExcludesBelowMinRelevance(t *testing.T) {
	query := []float32{1, 0, 0, 0}

	candidates := []ib.Candidate{
		{ID: "orthogonal", Embedding: []float32{0, 1, 0, 0}, Importance: 0.0, Layer: memory.LayerEpisodic, Tokens: 10},
	}

	result := ib.SelectContext(query, candidates, 1000, 1.0, 0.9)
	assert.Empty(t, result.Selected)
}

func TestSelectContext_RespectsTokenBudget(t *testing.T) {
	query := []float32{1, 0, 0, 0}

	var candidates []ib.Candidate
	for i := 0; i < 10; i++ {
		candidates = append(candidates, ib.Candidate{
			ID: "c", Embedding: []float32{1, 0, 0, 0}, Importance: 0.5, Layer: memory.LayerEpisodic, Tokens: 50,
		})
	}

	result := ib.SelectContext(query, candidates, 120, 1.0, 0)
	assert.LessOrEqual(t, result.Objective.SelectedTokens, 120)
	assert.Equal(t, 2, result.Objective.SelectedCount)
}

func TestSelectContext_ReflectiveLayerWinsTiesUnderTightBudget(t *testing.T) {
	query := []float32{1, 0, 0, 0}

	reflective := ib.Candidate{ID: "r", Embedding: []float32{1, 0, 0, 0}, Importance: 0.5, Layer: memory.LayerReflective, Tokens: 100}
	episodic := ib.Candidate{ID: "e", Embedding: []float32{1, 0, 0, 0}, Importance: 0.5, Layer: memory.LayerEpisodic, Tokens: 100}

	result := ib.SelectContext(query, []ib.Candidate{episodic, reflective}, 100, 1.0, 0)

	require.Len(t, result.Selected, 1)
	assert.Equal(t, "r", result.Selected[0].ID)
}

func TestSelectContext_EmptyCandidatesReturnsEmptyResult(t *testing.T) {
	result := ib.SelectContext([]float32{1, 0}, nil, 100, 1.0, 0)
	assert.Empty(t, result.Selected)
	assert.Equal(t, 0, result.Objective.SelectedCount)
}

func TestAdaptiveBeta_QualityPreferenceLowersBeta(t *testing.T) {
	beta := ib.AdaptiveBeta(0.5, 0.5, "quality")
	assert.Equal(t, 0.5, beta)
}

func TestAdaptiveBeta_EfficiencyPreferenceRaisesBeta(t *testing.T) {
	beta := ib.AdaptiveBeta(0.5, 0.5, "efficiency")
	assert.Equal(t, 2.0, beta)
}

func TestAdaptiveBeta_ComplexQueryReducesBeta(t *testing.T) {
	beta := ib.AdaptiveBeta(0.9, 0.5, "balanced")
	assert.InDelta(t, 0.7, beta, 1e-9)
}

func TestAdaptiveBeta_LowBudgetIncreasesBeta(t *testing.T) {
	beta := ib.AdaptiveBeta(0.5, 0.1, "balanced")
	assert.InDelta(t, 1.5, beta, 1e-9)
}

func TestAdaptiveBeta_HighBudgetDecreasesBeta(t *testing.T) {
	beta := ib.AdaptiveBeta(0.5, 0.9, "balanced")
	assert.InDelta(t, 0.8, beta, 1e-9)
}
