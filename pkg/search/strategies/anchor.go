// Package strategies implements the concrete search.Strategy
// implementations: Dense, MultiVector, Sparse, Anchor, Graph. Each is
// grounded on its corresponding file in
// original_source/rae-core/rae_core/search/strategies/.
package strategies

import (
	"context"
	"fmt"
	"regexp"
	"sort"

	"github.com/google/uuid"

	"github.com/oceanbase/agentmem/pkg/search"
	"github.com/oceanbase/agentmem/pkg/storage"
)

// anchorPattern is one entry in Anchor's regex table: a compiled pattern
// and the boost weight it contributes when matched, carried over from
// anchor.py's tiered (hard anchor / soft anchor) confidence table.
type anchorPattern struct {
	name    string
	re      *regexp.Regexp
	weight  float64
	groupFn func([]string) []string
}

// AnchorDefaultWeight is anchor.py's default_weight=100.0, against which
// every pattern's weight is normalized into a 0-1 boost factor.
const AnchorDefaultWeight = 100.0

var anchorPatterns = []anchorPattern{
	{
		name:   "uuid",
		re:     regexp.MustCompile(`(?i)\b[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}\b`),
		weight: 100.0,
	},
	{
		name:   "error_hex",
		re:     regexp.MustCompile(`(?i)\b0x[0-9a-f]{3,}\b`),
		weight: 100.0,
	},
	{
		name:   "ticket_id",
		re:     regexp.MustCompile(`(?i)\b(ticket|issue|pr|bug)[\s#_-]+(\d{3,})\b`),
		weight: 100.0,
		groupFn: func(groups []string) []string {
			// groups[0]=whole match, groups[1]=kind, groups[2]=number;
			// the match as written plus a spaced and an unspaced variant
			// cover the separator styles the stored content might use.
			return []string{groups[0], groups[1] + " " + groups[2], groups[1] + groups[2]}
		},
	},
	{
		name:   "log_level",
		re:     regexp.MustCompile(`(?i)\[(ERROR|CRITICAL|WARN|INFO)\]`),
		weight: 5.0,
	},
	{
		name:   "http_code",
		re:     regexp.MustCompile(`\b[45]\d{2}\b`),
		weight: 5.0,
	},
	{
		name:   "date_iso",
		re:     regexp.MustCompile(`\d{4}-\d{2}-\d{2}`),
		weight: 10.0,
	},
}

type anchorHit struct {
	value  string
	weight float64
}

// extractAnchors finds every anchor match in query, mirroring
// anchor.py's _extract_anchors.
func extractAnchors(query string) []anchorHit {
	var found []anchorHit
	for _, p := range anchorPatterns {
		matches := p.re.FindAllStringSubmatch(query, -1)
		for _, m := range matches {
			if p.groupFn != nil {
				for _, v := range p.groupFn(m) {
					found = append(found, anchorHit{value: v, weight: p.weight})
				}
				continue
			}
			val := m[0]
			if len(m) > 1 && m[1] != "" {
				val = m[1]
			}
			found = append(found, anchorHit{value: val, weight: p.weight})
		}
	}
	return found
}

// Anchor is the tier-1 deterministic exact-match strategy: it extracts
// strong entities (UUIDs, error codes, ticket IDs, log levels, HTTP
// status codes, ISO dates) from the query and looks each one up as an
// exact-phrase full-text search, guaranteeing retrieval regardless of
// semantic drift in the dense/sparse strategies.
type Anchor struct {
	Store storage.Store
}

// Name implements search.Strategy.
func (a *Anchor) Name() string { return "anchor" }

// DefaultWeight implements search.Strategy.
func (a *Anchor) DefaultWeight() float64 { return AnchorDefaultWeight }

// Run implements search.Strategy. Returns an empty result set (not an
// error) when the query contains no anchors — most queries won't.
func (a *Anchor) Run(ctx context.Context, req search.StrategyRequest) ([]search.Hit, error) {
	anchors := extractAnchors(req.Query)
	if len(anchors) == 0 {
		return nil, nil
	}

	boosts := make(map[uuid.UUID]float64)
	for _, anchor := range anchors {
		// FullTextSearch already does an exact-substring match (no
		// tokenization to defeat), so anchor.py's quoting of the search
		// term — meant to enforce exactness against a tokenizing engine
		// — has no work left to do here; the raw value is passed as-is.
		results, err := a.Store.FullTextSearch(ctx, storage.ListOptions{
			TenantID: req.TenantID, Project: req.Project, AgentID: req.AgentID,
			Layer: req.Layer, Limit: req.Limit,
		}, anchor.value)
		if err != nil {
			return nil, fmt.Errorf("strategies.Anchor: %w", err)
		}

		boost := anchor.weight / AnchorDefaultWeight
		for _, rec := range results {
			// Maximize score if multiple anchors hit the same record,
			// per anchor.py's candidates[m_id] = max(...) merge rule.
			if existing, ok := boosts[rec.ID]; !ok || boost > existing {
				boosts[rec.ID] = boost
			}
		}
	}

	hits := make([]search.Hit, 0, len(boosts))
	for id, score := range boosts {
		hits = append(hits, search.Hit{MemoryID: id, Score: score})
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if req.Limit > 0 && len(hits) > req.Limit {
		hits = hits[:req.Limit]
	}
	return hits, nil
}

var _ search.Strategy = (*Anchor)(nil)
