// Package context assembles the "working memory context" object of
// spec.md §4.H: recent conversation, re-scored long-term retrieval
// hits, reflective "lessons learned", and profile items, rendered into
// one system-prompt-ready text block plus a token count and retrieval
// provenance stats.
//
// Grounded on
// original_source/apps/memory_api/services/context_builder.py (the
// message/LTM/reflection/profile assembly shape and the "Lessons
// Learned" system-prompt injection) and
// context_provenance_service.py's DecisionContext/ContextSource shape
// for the retrieval-stats/provenance side (simplified to the one field
// spec.md §4.H actually names — retrieval stats, not the full ISO/IEC
// 42001 decision-audit trail; see DESIGN.md for that scope decision).
package context

import (
	stdcontext "context"
	"fmt"
	"strings"

	"github.com/oceanbase/agentmem/pkg/engine"
	"github.com/oceanbase/agentmem/pkg/memory"
	"github.com/oceanbase/agentmem/pkg/reflection"
	"github.com/oceanbase/agentmem/pkg/storage"
)

// Mode selects how many reflections are injected: 5 in Full, 3 in
// Lite, per spec.md §4.H.
type Mode string

const (
	ModeFull Mode = "full"
	ModeLite Mode = "lite"
)

const (
	// DefaultRecentMessages is how many trailing conversation turns are
	// carried into a built Context when the caller passes more.
	DefaultRecentMessages = 10

	// DefaultReflectionThreshold is the minimum importance a reflection
	// needs to be injected.
	DefaultReflectionThreshold = 0.5

	fullReflectionTopK = 5
	liteReflectionTopK = 3
)

// Message is one turn of conversation history.
type Message struct {
	Role    string
	Content string
}

// LTMItem is one long-term retrieval hit surfaced in a built Context.
type LTMItem struct {
	MemoryID string
	Content  string
	Layer    memory.Layer
	Score    float64
}

// ReflectionItem is one reflective-layer "lesson learned" surfaced in a
// built Context.
type ReflectionItem struct {
	Content    string
	Importance float64
}

// RetrievalStats reports how a built Context's long-term items were
// retrieved — the provenance slice of
// context_provenance_service.py's DecisionContext that spec.md §4.H
// actually asks for (candidate/result counts and average relevance, not
// the full audit trail).
type RetrievalStats struct {
	CandidatesConsidered int
	ItemsReturned        int
	AvgScore             float64
}

// Context is the assembled working-memory context object of spec.md
// §4.H.
type Context struct {
	Messages       []Message
	LTMItems       []LTMItem
	Reflections    []ReflectionItem
	ProfileItems   []ProfileItem
	SystemPrompt   string
	RenderedText   string
	TotalTokens    int
	RetrievalStats RetrievalStats
}

// Options configures a single Build call.
type Options struct {
	// Mode selects the reflection top-K (5 Full / 3 Lite). Defaults to
	// ModeFull.
	Mode Mode

	// MaxTokens caps the long-term item count once RenderedText would
	// otherwise exceed it; 0 means unlimited.
	MaxTokens int

	// RecentMessages is the conversation history to carry; only the
	// trailing DefaultRecentMessages are kept.
	RecentMessages []Message

	// SystemPromptPreamble is the caller's own system prompt, onto
	// which the "Lessons Learned" block is appended.
	SystemPromptPreamble string

	// ReflectiveEnabled gates reflection injection entirely (spec.md
	// §4.H: "only if reflective memory is enabled").
	ReflectiveEnabled bool
}

// Builder assembles Context objects against a configured *engine.Engine,
// optionally enriched with profile items from a ProfileStore.
type Builder struct {
	Engine       *engine.Engine
	Reflections  *reflection.Engine
	ProfileStore ProfileStore
}

// NewBuilder constructs a Builder. reflections and profiles may be nil;
// a nil ProfileStore behaves as NoopProfileStore, and a nil reflections
// engine disables reflection injection regardless of Options.
func NewBuilder(eng *engine.Engine, reflections *reflection.Engine, profiles ProfileStore) *Builder {
	if profiles == nil {
		profiles = NoopProfileStore{}
	}
	return &Builder{Engine: eng, Reflections: reflections, ProfileStore: profiles}
}

// Build assembles a working-memory Context for tenantID/project/agentID
// against queryText, per spec.md §4.H.
func (b *Builder) Build(ctx stdcontext.Context, tenantID, project, agentID, queryText string, opts Options) (*Context, error) {
	messages := trimMessages(opts.RecentMessages, DefaultRecentMessages)

	ltmItems, stats, err := b.buildLTMItems(ctx, tenantID, project, agentID, queryText)
	if err != nil {
		return nil, memory.WrapOp("context.Build", err)
	}

	var reflections []ReflectionItem
	if opts.ReflectiveEnabled && b.Reflections != nil {
		reflections, err = b.buildReflections(ctx, tenantID, project, opts.Mode)
		if err != nil {
			return nil, memory.WrapOp("context.Build", err)
		}
	}

	profileItems, err := b.ProfileStore.GetProfile(ctx, tenantID, agentID)
	if err != nil {
		return nil, memory.WrapOp("context.Build", err)
	}

	systemPrompt := buildSystemPrompt(opts.SystemPromptPreamble, reflections)
	rendered := renderContextText(messages, ltmItems, reflections, profileItems, systemPrompt)

	totalTokens := b.countTokens(rendered)
	if opts.MaxTokens > 0 {
		ltmItems, rendered, totalTokens = truncateToBudget(messages, ltmItems, reflections, profileItems, systemPrompt, opts.MaxTokens, b.countTokens)
	}

	return &Context{
		Messages:       messages,
		LTMItems:       ltmItems,
		Reflections:    reflections,
		ProfileItems:   profileItems,
		SystemPrompt:   systemPrompt,
		RenderedText:   rendered,
		TotalTokens:    totalTokens,
		RetrievalStats: stats,
	}, nil
}

// buildLTMItems retrieves queryText's hybrid-search hits via the
// engine, re-fetches their content, and reports retrieval stats.
func (b *Builder) buildLTMItems(ctx stdcontext.Context, tenantID, project, agentID, queryText string) ([]LTMItem, RetrievalStats, error) {
	if queryText == "" {
		return nil, RetrievalStats{}, nil
	}

	hits, err := b.Engine.Query(ctx, tenantID, project, agentID, queryText)
	if err != nil {
		return nil, RetrievalStats{}, err
	}

	items := make([]LTMItem, 0, len(hits))
	var scoreSum float64
	for _, hit := range hits {
		rec, err := b.Engine.Records().Get(ctx, hit.MemoryID, storage.AccessScope{TenantID: tenantID, AgentID: agentID})
		if err != nil {
			continue
		}
		items = append(items, LTMItem{
			MemoryID: rec.ID.String(),
			Content:  rec.Content,
			Layer:    rec.Layer,
			Score:    hit.ScoringHit.FinalScore,
		})
		scoreSum += hit.ScoringHit.FinalScore
	}

	stats := RetrievalStats{
		CandidatesConsidered: len(hits),
		ItemsReturned:        len(items),
	}
	if len(items) > 0 {
		stats.AvgScore = scoreSum / float64(len(items))
	}
	return items, stats, nil
}

// buildReflections fetches the top-K highest-importance reflections
// (5 in Full mode, 3 in Lite) at or above DefaultReflectionThreshold.
func (b *Builder) buildReflections(ctx stdcontext.Context, tenantID, project string, mode Mode) ([]ReflectionItem, error) {
	topK := fullReflectionTopK
	if mode == ModeLite {
		topK = liteReflectionTopK
	}

	recs, err := b.Reflections.QueryReflections(ctx, tenantID, project, DefaultReflectionThreshold, topK)
	if err != nil {
		return nil, err
	}
	items := make([]ReflectionItem, 0, len(recs))
	for _, rec := range recs {
		items = append(items, ReflectionItem{Content: rec.Content, Importance: rec.Importance})
	}
	if len(items) > topK {
		items = items[:topK]
	}
	return items, nil
}

// countTokens delegates to the engine's configured LLM provider's
// tokenizer, falling back to llm.EstimateTokens's 4-chars-per-token
// heuristic when no provider is configured, per spec.md §4.H's
// instruction to use the adapter operation rather than a hand-rolled
// estimator wherever one is available.
func (b *Builder) countTokens(text string) int {
	if p := b.Engine.LLMProvider(); p != nil {
		return p.CountTokens(text)
	}
	return (len(text) + 3) / 4
}

func trimMessages(messages []Message, keep int) []Message {
	if len(messages) <= keep {
		return messages
	}
	return messages[len(messages)-keep:]
}

const lessonsLearnedHeader = "Lessons Learned:\n"

// buildSystemPrompt appends context_builder.py's "Lessons Learned"
// block, listing each reflection's content, onto the caller's own
// system prompt preamble.
func buildSystemPrompt(preamble string, reflections []ReflectionItem) string {
	if len(reflections) == 0 {
		return preamble
	}
	var b strings.Builder
	if preamble != "" {
		b.WriteString(preamble)
		b.WriteString("\n\n")
	}
	b.WriteString(lessonsLearnedHeader)
	for _, r := range reflections {
		fmt.Fprintf(&b, "- %s\n", r.Content)
	}
	return b.String()
}

// renderContextText composes the final text block a caller hands to an
// LLM: system prompt, then recent messages, then long-term items, then
// profile items, each under its own heading.
func renderContextText(messages []Message, ltm []LTMItem, reflections []ReflectionItem, profile []ProfileItem, systemPrompt string) string {
	var b strings.Builder
	if systemPrompt != "" {
		b.WriteString(systemPrompt)
		b.WriteString("\n\n")
	}
	if len(messages) > 0 {
		b.WriteString("Conversation:\n")
		for _, m := range messages {
			fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Content)
		}
		b.WriteString("\n")
	}
	if len(ltm) > 0 {
		b.WriteString("Relevant memories:\n")
		for _, item := range ltm {
			fmt.Fprintf(&b, "- [%s] %s\n", item.Layer, item.Content)
		}
		b.WriteString("\n")
	}
	if len(profile) > 0 {
		b.WriteString("User profile:\n")
		for _, p := range profile {
			fmt.Fprintf(&b, "- %s: %s\n", p.Key, p.Content)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// truncateToBudget drops the lowest-scoring long-term items one at a
// time until the rendered text's token count fits maxTokens, mirroring
// context_builder.py's token-budget enforcement (messages, reflections,
// and profile items are never dropped — only the LTM list, the one
// variable-length component — so a budget squeeze degrades retrieval
// depth rather than losing the conversation or "lessons learned").
func truncateToBudget(messages []Message, ltm []LTMItem, reflections []ReflectionItem, profile []ProfileItem, systemPrompt string, maxTokens int, countTokens func(string) int) ([]LTMItem, string, int) {
	items := append([]LTMItem(nil), ltm...)
	for {
		rendered := renderContextText(messages, items, reflections, profile, systemPrompt)
		tokens := countTokens(rendered)
		if tokens <= maxTokens || len(items) == 0 {
			return items, rendered, tokens
		}
		items = items[:len(items)-1]
	}
}
