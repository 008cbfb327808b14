// Package scoring implements the pure relevance-scoring kernel of §4.B:
// final = alpha*similarity + beta*importance + gamma*recency, with
// access-count-aware recency decay. Nothing in this package performs I/O;
// it mirrors the teacher's EbbinghausManager in being a block of pure
// functions and value types operating on plain float64/time.Time inputs.
package scoring

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Weights are the three scoring-kernel coefficients. They should sum to
// 1.0 within epsilon; ComputeScore logs (not fails) when they don't,
// per spec.md §4.B ("non-normalized weights cause a non-fatal warning").
type Weights struct {
	Alpha float64 // similarity weight
	Beta  float64 // importance weight
	Gamma float64 // recency weight
}

// DefaultWeights returns the spec-mandated defaults (0.4 / 0.3 / 0.3).
func DefaultWeights() Weights {
	return Weights{Alpha: 0.4, Beta: 0.3, Gamma: 0.3}
}

const weightSumEpsilon = 0.01

func (w Weights) checkNormalized() {
	sum := w.Alpha + w.Beta + w.Gamma
	if math.Abs(sum-1.0) > weightSumEpsilon {
		log.Warn().Float64("alpha", w.Alpha).Float64("beta", w.Beta).
			Float64("gamma", w.Gamma).Float64("sum", sum).
			Msg("scoring weights do not sum to 1.0")
	}
}

// DecayConfig parameterizes the recency term's exponential decay.
type DecayConfig struct {
	// BaseDecayRate is the undamped per-day decay rate before the
	// access-count dampening is applied.
	BaseDecayRate float64
}

// DefaultDecayConfig returns a moderate base decay rate of 0.05/day.
func DefaultDecayConfig() DecayConfig {
	return DecayConfig{BaseDecayRate: 0.05}
}

// V3Weights extends Weights with an optional diversity term (spec.md §4.B
// "v3 extension ... behind a single weights-struct type"). Version is
// carried for callers; ComputeScoreV3 does not read it and always adds
// DiversityBoost.
type V3Weights struct {
	Weights
	Version        int     // 2 (default) or 3
	DiversityBoost float64 // additive diversity term applied in v3 mode
}

// Result is the full per-item score breakdown spec.md §3 names.
type Result struct {
	MemoryID           uuid.UUID
	FinalScore         float64
	SimilarityScore    float64
	ImportanceScore    float64
	RecencyScore       float64
	EffectiveDecayRate float64
	AgeSeconds         float64
	ClockSkewDetected  bool
}

// clamp01 clamps x into [0, 1].
func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

// EffectiveDecayRate implements
//
//	effective_decay = base_decay_rate / (1 + log(1 + access_count))
//
// More frequently accessed memories decay more slowly.
func EffectiveDecayRate(cfg DecayConfig, accessCount int64) float64 {
	if accessCount < 0 {
		accessCount = 0
	}
	denom := 1 + math.Log(1+float64(accessCount))
	if denom <= 0 {
		denom = 1
	}
	return cfg.BaseDecayRate / denom
}

// Recency computes exp(-effective_decay * age_days) clamped to [0,1]. If
// lastAccessedAt is in the future relative to now (clock skew), recency is
// treated as 1.0 and the caller is told via the returned skew flag.
func Recency(cfg DecayConfig, lastAccessedAt, now time.Time, accessCount int64) (score float64, effectiveDecay float64, ageSeconds float64, skew bool) {
	effectiveDecay = EffectiveDecayRate(cfg, accessCount)
	ageSeconds = now.Sub(lastAccessedAt).Seconds()
	if ageSeconds < 0 {
		log.Warn().Time("last_accessed_at", lastAccessedAt).Time("now", now).
			Msg("last_accessed_at is in the future; treating recency as 1.0")
		return 1.0, effectiveDecay, ageSeconds, true
	}
	ageDays := ageSeconds / 86400.0
	score = clamp01(math.Exp(-effectiveDecay * ageDays))
	return score, effectiveDecay, ageSeconds, false
}

// ComputeScore scores a single candidate, returning the full breakdown.
func ComputeScore(w Weights, cfg DecayConfig, memoryID uuid.UUID, similarity, importance float64, lastAccessedAt, now time.Time, accessCount int64) Result {
	w.checkNormalized()
	similarity = clamp01(similarity)
	importance = clamp01(importance)
	recency, effDecay, age, skew := Recency(cfg, lastAccessedAt, now, accessCount)

	final := w.Alpha*similarity + w.Beta*importance + w.Gamma*recency

	return Result{
		MemoryID:           memoryID,
		FinalScore:         clamp01(final),
		SimilarityScore:    similarity,
		ImportanceScore:    importance,
		RecencyScore:       recency,
		EffectiveDecayRate: effDecay,
		AgeSeconds:         age,
		ClockSkewDetected:  skew,
	}
}

// ComputeScoreV3 applies the v2 formula plus an additive diversity term,
// still clamped to [0,1].
func ComputeScoreV3(vw V3Weights, cfg DecayConfig, memoryID uuid.UUID, similarity, importance float64, lastAccessedAt, now time.Time, accessCount int64) Result {
	r := ComputeScore(vw.Weights, cfg, memoryID, similarity, importance, lastAccessedAt, now, accessCount)
	r.FinalScore = clamp01(r.FinalScore + vw.DiversityBoost)
	return r
}

// BatchInput is one candidate in a batch scoring call.
type BatchInput struct {
	MemoryID       uuid.UUID
	Similarity     float64
	Importance     float64
	LastAccessedAt time.Time
	AccessCount    int64
}

// ComputeBatchScores scores each BatchInput in one pass, returning one
// Result per input in input order. Every input carries its own
// similarity, so there is nothing to mismatch and the error is always
// nil; ComputeBatchScoresParallel is the variant that checks lengths.
func ComputeBatchScores(w Weights, cfg DecayConfig, inputs []BatchInput, now time.Time) ([]Result, error) {
	results := make([]Result, len(inputs))
	for i, in := range inputs {
		results[i] = ComputeScore(w, cfg, in.MemoryID, in.Similarity, in.Importance, in.LastAccessedAt, now, in.AccessCount)
	}
	return results, nil
}

// ComputeBatchScoresParallel mirrors ComputeBatchScores but takes memories
// and similarity scores as two parallel arrays, failing fast on a length
// mismatch — the exact signature spec.md §4.B's "Batch scoring" names.
func ComputeBatchScoresParallel(w Weights, cfg DecayConfig, memoryIDs []uuid.UUID, similarities []float64, importances []float64, lastAccessed []time.Time, accessCounts []int64, now time.Time) ([]Result, error) {
	n := len(memoryIDs)
	if len(similarities) != n || len(importances) != n || len(lastAccessed) != n || len(accessCounts) != n {
		return nil, fmt.Errorf("scoring: length mismatch: ids=%d similarities=%d importances=%d lastAccessed=%d accessCounts=%d",
			n, len(similarities), len(importances), len(lastAccessed), len(accessCounts))
	}
	results := make([]Result, n)
	for i := 0; i < n; i++ {
		results[i] = ComputeScore(w, cfg, memoryIDs[i], similarities[i], importances[i], lastAccessed[i], now, accessCounts[i])
	}
	return results, nil
}

// Ranked pairs a caller-supplied item with its attached score result.
type Ranked[T any] struct {
	Item  T
	Score Result
}

// RankByScore sorts items by their paired score result descending. Panics
// if items and results have different lengths, mirroring a programmer
// error rather than a runtime condition a caller should recover from.
func RankByScore[T any](items []T, results []Result) []Ranked[T] {
	if len(items) != len(results) {
		panic(fmt.Sprintf("scoring: RankByScore length mismatch: items=%d results=%d", len(items), len(results)))
	}
	ranked := make([]Ranked[T], len(items))
	for i := range items {
		ranked[i] = Ranked[T]{Item: items[i], Score: results[i]}
	}
	sortRankedDescending(ranked)
	return ranked
}

// CosineSimilarity computes the cosine similarity between two equal-length
// vectors, ranging -1..1. Returns 0 on dimension mismatch or zero norm,
// promoted from the teacher's intelligence.CosineSimilarity as the shared
// dense-similarity primitive every search strategy and dedup check uses.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// NormalizeVector scales v to unit L2 norm, returning v unchanged if its
// norm is zero.
func NormalizeVector(v []float64) []float64 {
	var sum float64
	for _, val := range v {
		sum += val * val
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		return v
	}
	result := make([]float64, len(v))
	for i, val := range v {
		result[i] = val / norm
	}
	return result
}

// AverageEmbeddings averages two equal-length embeddings and normalizes the
// result, used when merging near-duplicate memories during consolidation.
// Returns e1 unchanged if the dimensions differ.
func AverageEmbeddings(e1, e2 []float64) []float64 {
	if len(e1) != len(e2) {
		return e1
	}
	result := make([]float64, len(e1))
	for i := range e1 {
		result[i] = (e1[i] + e2[i]) / 2.0
	}
	return NormalizeVector(result)
}

func sortRankedDescending[T any](ranked []Ranked[T]) {
	// Simple insertion sort is adequate: result sets are bounded by
	// top-k and this keeps the package free of a sort.Interface adapter
	// per generic instantiation.
	for i := 1; i < len(ranked); i++ {
		j := i
		for j > 0 && ranked[j-1].Score.FinalScore < ranked[j].Score.FinalScore {
			ranked[j-1], ranked[j] = ranked[j], ranked[j-1]
			j--
		}
	}
}
