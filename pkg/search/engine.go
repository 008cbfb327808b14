package search

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/oceanbase/agentmem/pkg/memory"
	"github.com/oceanbase/agentmem/pkg/scoring"
	"github.com/oceanbase/agentmem/pkg/storage"
)

// DefaultRRFK is Reciprocal Rank Fusion's rank-damping constant, per
// spec.md §4.E's "K=60 default".
const DefaultRRFK = 60

// Intent classifies what kind of query this is, driving the per-strategy
// weight vector the intent analyzer recommends.
type Intent string

const (
	IntentFactualLookup  Intent = "factual_lookup"
	IntentTemporalQuery  Intent = "temporal_query"
	IntentExploratory    Intent = "exploratory"
	IntentConversational Intent = "conversational"
)

// Query is the input to Engine.Query.
type Query struct {
	TenantID       string
	Project        string
	AgentID        string
	Text           string
	Layer          memory.Layer
	Tags           []string
	Limit          int
	SeedIDs        []uuid.UUID
	QueryEmbedding []float32
	VectorSpace    string

	// Weights overrides the intent analyzer's recommendation when set.
	Weights map[string]float64

	// ScoringWeights drives the scoring-kernel re-scoring pass. Zero
	// value falls back to scoring.DefaultWeights().
	ScoringWeights scoring.Weights
	DecayConfig    scoring.DecayConfig
}

// ScoredResult is one final, fused-and-rescored item from Engine.Query.
// FusedScore is the pre-rescore Reciprocal Rank Fusion value, kept for
// diagnostics/logging; final ranking (see Query) orders by
// ScoringHit.FinalScore, the §4.B kernel's alpha/beta/gamma blend of
// fusion score, importance, and recency.
type ScoredResult struct {
	MemoryID    uuid.UUID
	FusedScore  float64
	ScoringHit  scoring.Result
	StrategyIDs []string
}

// Engine runs the hybrid multi-strategy retrieval pipeline: intent
// analysis, bounded concurrent strategy execution, RRF fusion,
// scoring-kernel re-scoring, and batched access-counter updates.
type Engine struct {
	strategies []Strategy
	store      storage.Store
	rrfK       float64
	analyzer   IntentAnalyzer
}

// Option configures an Engine.
type Option func(*Engine)

// WithRRFK overrides the RRF damping constant (default 60).
func WithRRFK(k float64) Option {
	return func(e *Engine) { e.rrfK = k }
}

// WithIntentAnalyzer overrides the default rule-based IntentAnalyzer.
func WithIntentAnalyzer(a IntentAnalyzer) Option {
	return func(e *Engine) { e.analyzer = a }
}

// NewEngine builds an Engine over the given strategies. store is used
// only for the final access-counter update pass.
func NewEngine(store storage.Store, strategies []Strategy, opts ...Option) *Engine {
	e := &Engine{
		strategies: strategies,
		store:      store,
		rrfK:       DefaultRRFK,
		analyzer:   RuleBasedIntentAnalyzer{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// strategyOutcome pairs a strategy's name with its hits (or the error it
// failed with, which fusion treats as an empty stream).
type strategyOutcome struct {
	name string
	hits []Hit
}

// Query executes every configured strategy concurrently, fuses their
// results with Reciprocal Rank Fusion, re-scores each fused candidate
// with pkg/scoring, and returns the results ordered by final score.
// A failing strategy is logged and treated as empty — per spec.md §7,
// the overall query still succeeds as long as >= 1 strategy produced
// results.
func (e *Engine) Query(ctx context.Context, q Query) ([]ScoredResult, error) {
	weights := q.Weights
	if weights == nil {
		weights = e.analyzer.Analyze(q.Text).Weights(e.strategies)
	}

	req := StrategyRequest{
		TenantID:       q.TenantID,
		Project:        q.Project,
		AgentID:        q.AgentID,
		Query:          q.Text,
		Layer:          q.Layer,
		Tags:           q.Tags,
		Limit:          q.Limit,
		SeedIDs:        q.SeedIDs,
		QueryEmbedding: q.QueryEmbedding,
		VectorSpace:    q.VectorSpace,
	}

	outcomes := make([]strategyOutcome, len(e.strategies))
	g, gctx := errgroup.WithContext(ctx)
	for i, strat := range e.strategies {
		i, strat := i, strat
		g.Go(func() error {
			hits, err := strat.Run(gctx, req)
			if err != nil {
				log.Warn().Err(err).Str("strategy", strat.Name()).Msg("search strategy failed, treating as empty")
				outcomes[i] = strategyOutcome{name: strat.Name()}
				return nil
			}
			outcomes[i] = strategyOutcome{name: strat.Name(), hits: hits}
			return nil
		})
	}
	// errgroup.Group.Go never returns a non-nil error here (failures are
	// swallowed per-strategy above), so Wait only propagates context
	// cancellation.
	if err := g.Wait(); err != nil {
		return nil, err
	}

	anyResults := false
	for _, o := range outcomes {
		if len(o.hits) > 0 {
			anyResults = true
			break
		}
	}
	if !anyResults {
		return nil, nil
	}

	fused := e.fuse(outcomes, weights)

	now := time.Now().UTC()
	scope := storage.AccessScope{TenantID: q.TenantID, AgentID: q.AgentID}
	results := make([]ScoredResult, 0, len(fused))
	for _, f := range fused {
		importance := f.importance
		lastAccessedAt := now
		var accessCount int64
		if rec, err := e.store.Get(ctx, f.id, scope); err == nil {
			importance = rec.Importance
			lastAccessedAt = rec.LastAccessedAt
			accessCount = rec.AccessCount
		} else {
			log.Warn().Err(err).Str("memory_id", f.id.String()).Msg("could not load record for re-scoring, falling back to fused importance and now")
		}
		res := scoring.ComputeScore(q.scoringWeights(), q.decayConfig(), f.id, f.rrfScore, importance, lastAccessedAt, now, accessCount)
		results = append(results, ScoredResult{MemoryID: f.id, FusedScore: f.rrfScore, ScoringHit: res, StrategyIDs: f.strategies})
	}
	sort.Slice(results, func(i, j int) bool { return results[i].ScoringHit.FinalScore > results[j].ScoringHit.FinalScore })
	if q.Limit > 0 && len(results) > q.Limit {
		results = results[:q.Limit]
	}
	return results, nil
}

func (q Query) scoringWeights() scoring.Weights {
	if q.ScoringWeights == (scoring.Weights{}) {
		return scoring.DefaultWeights()
	}
	return q.ScoringWeights
}

func (q Query) decayConfig() scoring.DecayConfig {
	if q.DecayConfig == (scoring.DecayConfig{}) {
		return scoring.DefaultDecayConfig()
	}
	return q.DecayConfig
}

type fusedCandidate struct {
	id         uuid.UUID
	rrfScore   float64
	importance float64
	strategies []string
}

// fuse implements Reciprocal Rank Fusion: score(m) = sum over strategies
// s of weight(s) * 1/(K + rank_s(m)), per spec.md §4.E.
func (e *Engine) fuse(outcomes []strategyOutcome, weights map[string]float64) []fusedCandidate {
	byID := make(map[uuid.UUID]*fusedCandidate)
	for _, o := range outcomes {
		w, ok := weights[o.name]
		if !ok {
			w = 1.0
		}
		sorted := append([]Hit(nil), o.hits...)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].Score > sorted[j].Score })

		for rank, hit := range sorted {
			contribution := w * (1.0 / (e.rrfK + float64(rank+1)))
			c, ok := byID[hit.MemoryID]
			if !ok {
				c = &fusedCandidate{id: hit.MemoryID, importance: hit.Importance}
				byID[hit.MemoryID] = c
			}
			c.rrfScore += contribution
			if hit.Importance > c.importance {
				c.importance = hit.Importance
			}
			c.strategies = append(c.strategies, o.name)
		}
	}

	out := make([]fusedCandidate, 0, len(byID))
	for _, c := range byID {
		out = append(out, *c)
	}
	return out
}

// UpdateAccessCounters batch-bumps access bookkeeping for every memory
// returned by a query, mirroring the teacher's update-on-read pattern
// but applied once per query instead of once per layer Get.
func (e *Engine) UpdateAccessCounters(ctx context.Context, scope storage.AccessScope, ids []uuid.UUID) error {
	now := time.Now().UTC()
	for _, id := range ids {
		rec, err := e.store.Get(ctx, id, scope)
		if err != nil {
			continue
		}
		rec.TouchAccess(now)
		if err := e.store.Update(ctx, rec, scope); err != nil {
			return err
		}
	}
	return nil
}
