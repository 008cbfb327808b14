// Package ib implements the information-bottleneck context selector of
// spec.md §4.I: given a query embedding and a scored candidate set,
// greedily select the subset maximizing I(Z;Y) − β·I(Z;X) under a
// token budget.
//
// Grounded on
// original_source/apps/memory_api/core/information_bottleneck.py
// (InformationBottleneckSelector.select_context's relevance/compression
// /greedy-selection/adaptive-beta algorithm). Vector math is shared
// with pkg/scoring rather than duplicated a third time — the teacher's
// near-identical cosine-similarity code already lives in both
// pkg/scoring (promoted from pkg/intelligence/dedup.go for the search
// strategies) and would otherwise need a third copy here.
package ib

import (
	"math"
	"sort"

	"github.com/oceanbase/agentmem/pkg/memory"
	"github.com/oceanbase/agentmem/pkg/scoring"
)

// DefaultMinRelevance is the relevance floor a candidate must clear to
// be eligible at all, per information_bottleneck.py's
// min_relevance=0.3 default.
const DefaultMinRelevance = 0.3

// layerPenalty is I(m;X)'s layer-based weighting table, lifted verbatim
// from spec.md §4.I. "ltm" (0.6) has no matching memory.Layer constant
// in this tree — pkg/memory's hierarchy already distinguishes episodic
// from semantic, so "ltm" applies only to a Candidate whose Layer is
// left empty (a caller presenting a generic consolidated long-term item
// without committing to the episodic/semantic split). Episodic is the
// fallback layerPenalty for any other/unrecognized layer value, mirroring
// the Python function's if/elif/else chain ending in "else: episodic".
var layerPenalty = map[memory.Layer]float64{
	memory.LayerReflective: 0.5,
	memory.LayerSemantic:   0.7,
	"":                     0.6, // generic "ltm"
	memory.LayerWorking:    0.9,
}

const episodicLayerPenalty = 1.0

func penaltyFor(layer memory.Layer) float64 {
	if p, ok := layerPenalty[layer]; ok {
		return p
	}
	return episodicLayerPenalty
}

// Candidate is one item eligible for context selection.
type Candidate struct {
	ID         string
	Content    string
	Embedding  []float32
	Importance float64
	Layer      memory.Layer
	Tokens     int
}

// Objective reports the IB metrics of a selection, per
// select_context/compute_ib_objective's logged span attributes.
type Objective struct {
	IZY               float64
	IZX               float64
	CompressionRatio  float64
	Beta              float64
	Value             float64
	SelectedCount     int
	SelectedTokens    int
}

// Result is SelectContext's return value.
type Result struct {
	Selected  []Candidate
	Objective Objective
}

// SelectContext greedily selects from candidates the subset maximizing
// relevance − β·compressionCost under maxTokens, per spec.md §4.I's
// four-step algorithm. minRelevance excludes candidates below the
// threshold entirely (sentinel −∞, never selected regardless of
// budget); 0 uses DefaultMinRelevance.
func SelectContext(queryEmbedding []float32, candidates []Candidate, maxTokens int, beta, minRelevance float64) Result {
	if len(candidates) == 0 {
		return Result{}
	}
	if minRelevance == 0 {
		minRelevance = DefaultMinRelevance
	}

	totalTokens := 0
	for _, c := range candidates {
		totalTokens += c.Tokens
	}
	if totalTokens == 0 {
		totalTokens = 1
	}

	type scored struct {
		candidate Candidate
		relevance float64
		cost      float64
		objective float64
	}

	items := make([]scored, len(candidates))
	q := toFloat64(queryEmbedding)
	for i, c := range candidates {
		relevance := relevanceScore(q, toFloat64(c.Embedding), c.Importance)
		cost := compressionCost(c, totalTokens)
		obj := math.Inf(-1)
		if relevance >= minRelevance {
			obj = relevance - beta*cost
		}
		items[i] = scored{candidate: c, relevance: relevance, cost: cost, objective: obj}
	}

	sort.SliceStable(items, func(i, j int) bool { return items[i].objective > items[j].objective })

	var selected []Candidate
	tokensUsed := 0
	for _, it := range items {
		if math.IsInf(it.objective, -1) {
			continue
		}
		if tokensUsed+it.candidate.Tokens > maxTokens {
			continue
		}
		selected = append(selected, it.candidate)
		tokensUsed += it.candidate.Tokens
		if tokensUsed >= maxTokens {
			break
		}
	}

	izy := estimateIZY(q, selected)
	izx := float64(tokensUsed) / float64(totalTokens)

	return Result{
		Selected: selected,
		Objective: Objective{
			IZY:              izy,
			IZX:              izx,
			CompressionRatio: 1.0 - izx,
			Beta:             beta,
			Value:            izy - beta*izx,
			SelectedCount:    len(selected),
			SelectedTokens:   tokensUsed,
		},
	}
}

// relevanceScore is I(m;Y) ≈ 0.8·cos(embedding,query) (mapped to [0,1])
// + 0.2·importance, spec.md §4.I's clean formula — the Python
// reference implementation double-discounts importance
// (`importance_boost = importance*0.2` then `0.2*importance_boost`,
// i.e. an effective weight of 0.04, not 0.2); spec.md's formula is
// followed here as the authoritative, non-buggy statement of the
// approximation.
func relevanceScore(query, embedding []float64, importance float64) float64 {
	cos := scoring.CosineSimilarity(embedding, query)
	mapped := (cos + 1) / 2
	return 0.8*mapped + 0.2*importance
}

// compressionCost is I(m;X) ≈ (tokens/Σtokens)·layer_penalty.
func compressionCost(c Candidate, totalTokens int) float64 {
	base := float64(c.Tokens) / float64(totalTokens)
	return base * penaltyFor(c.Layer)
}

// estimateIZY is the aggregate relevance+diversity estimate
// estimate_I_Z_Y reports: 0.7·avg_relevance + 0.3·diversity, diversity
// being the average pairwise cosine distance among selected embeddings.
func estimateIZY(query []float64, selected []Candidate) float64 {
	if len(selected) == 0 {
		return 0
	}
	var relSum float64
	for _, c := range selected {
		relSum += relevanceScore(query, toFloat64(c.Embedding), c.Importance)
	}
	avgRelevance := relSum / float64(len(selected))

	diversity := averagePairwiseDistance(selected)
	return 0.7*avgRelevance + 0.3*diversity
}

func averagePairwiseDistance(selected []Candidate) float64 {
	if len(selected) <= 1 {
		return 0
	}
	var distSum float64
	var pairs int
	for i := 0; i < len(selected); i++ {
		for j := i + 1; j < len(selected); j++ {
			sim := scoring.CosineSimilarity(toFloat64(selected[i].Embedding), toFloat64(selected[j].Embedding))
			mapped := (sim + 1) / 2
			distSum += 1.0 - mapped
			pairs++
		}
	}
	if pairs == 0 {
		return 0
	}
	return distSum / float64(pairs)
}

// AdaptiveBeta computes β from query complexity, remaining budget
// ratio, and a user preference ("quality" | "balanced" | "efficiency"),
// per spec.md §4.I's adaptive-β rules and adaptive_beta's exact
// multiplier chain.
func AdaptiveBeta(queryComplexity, budgetRemaining float64, userPreference string) float64 {
	base := 1.0
	switch userPreference {
	case "quality":
		base = 0.5
	case "efficiency":
		base = 2.0
	}

	switch {
	case queryComplexity > 0.7:
		base *= 0.7
	case queryComplexity < 0.3:
		base *= 1.3
	}

	switch {
	case budgetRemaining < 0.2:
		base *= 1.5
	case budgetRemaining > 0.8:
		base *= 0.8
	}

	return base
}

func toFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}
