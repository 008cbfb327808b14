package maintenance

import (
	"context"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/oceanbase/agentmem/pkg/layers"
	"github.com/oceanbase/agentmem/pkg/llm"
	"github.com/oceanbase/agentmem/pkg/memory"
	"github.com/oceanbase/agentmem/pkg/storage"
)

// DefaultSummarizationAge is how long an episodic memory sits
// unconsolidated before it becomes eligible for summarization, a
// conservative default distinct from Working's minute-scale
// consolidation window (this worker targets memories that Working
// already promoted into LongTerm and that have since aged further).
const DefaultSummarizationAge = 30 * 24 * time.Hour

// SummarizationWorker merges clusters of aging, semantically-similar
// episodic memories into single LLM-synthesized semantic summaries,
// following the same group-then-synthesize shape as
// pkg/layers.Working.Consolidate but targeting LongTerm's own aging
// episodic content rather than Working's staging buffer — the
// "session summarization" pass memory_maintenance.py names alongside
// decay and dreaming.
type SummarizationWorker struct {
	Store   storage.Store
	LLM     llm.Provider
	breaker *gobreaker.CircuitBreaker
}

// NewSummarizationWorker constructs a SummarizationWorker.
func NewSummarizationWorker(store storage.Store, llmP llm.Provider) *SummarizationWorker {
	return &SummarizationWorker{
		Store: store,
		LLM:   llmP,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "summarization-llm",
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     30 * time.Second,
		}),
	}
}

// RunSummarizationCycle summarizes tenantID/project/agentID's episodic
// memories older than ageThreshold into semantic-layer summaries,
// tombstoning the originals once merged. Returns the number of
// summaries produced.
func (w *SummarizationWorker) RunSummarizationCycle(ctx context.Context, tenantID, project, agentID string, ageThreshold time.Duration, maxTokens int) (int, error) {
	if w.LLM == nil {
		return 0, nil
	}
	if ageThreshold <= 0 {
		ageThreshold = DefaultSummarizationAge
	}
	if maxTokens <= 0 {
		maxTokens = 512
	}

	records, err := w.Store.List(ctx, storage.ListOptions{TenantID: tenantID, Project: project, AgentID: agentID, Layer: memory.LayerEpisodic})
	if err != nil {
		return 0, memory.WrapOp("SummarizationWorker.RunSummarizationCycle", err)
	}

	cutoff := time.Now().UTC().Add(-ageThreshold)
	var aging []*memory.Record
	for _, rec := range records {
		if rec.CreatedAt.Before(cutoff) {
			aging = append(aging, rec)
		}
	}
	if len(aging) < 2 {
		return 0, nil
	}

	groups := layers.ConsolidationGroups(aging)
	lt := layers.NewLongTerm(w.Store, tenantID, project, agentID, layers.LongTermConfig{})

	produced := 0
	for _, group := range groups {
		if len(group) < 2 {
			continue
		}
		contents := make([]string, len(group))
		for i, rec := range group {
			contents[i] = rec.Content
		}

		result, err := w.breaker.Execute(func() (interface{}, error) {
			return w.LLM.Summarize(ctx, strings.Join(contents, "\n"), maxTokens)
		})
		if err != nil {
			return produced, memory.WrapOp("SummarizationWorker.RunSummarizationCycle", err)
		}
		summary, _ := result.(string)

		if _, err := lt.AddMemory(ctx, summary, true, layers.WithTags("summarized")); err != nil {
			return produced, memory.WrapOp("SummarizationWorker.RunSummarizationCycle", err)
		}
		for _, rec := range group {
			if err := w.Store.Delete(ctx, rec.ID, storage.AccessScope{TenantID: tenantID, AgentID: agentID}); err != nil {
				return produced, memory.WrapOp("SummarizationWorker.RunSummarizationCycle", err)
			}
		}
		produced++
	}
	return produced, nil
}
