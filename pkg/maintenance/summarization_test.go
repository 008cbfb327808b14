package maintenance_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceanbase/agentmem/pkg/llm"
	"github.com/oceanbase/agentmem/pkg/maintenance"
	"github.com/oceanbase/agentmem/pkg/memory"
)

type stubLLM struct{}

func (stubLLM) Generate(ctx context.Context, prompt string, opts ...llm.GenerateOption) (string, error) {
	return "generated", nil
}

func (stubLLM) GenerateWithMessages(ctx context.Context, messages []llm.Message, opts ...llm.GenerateOption) (string, error) {
	return "generated", nil
}

func (stubLLM) CountTokens(text string) int { return len(text) / 4 }

func (stubLLM) SupportsFunctionCalling() bool { return false }

func (stubLLM) ExtractEntities(ctx context.Context, text string) ([]llm.Entity, error) {
	return nil, nil
}

func (stubLLM) Summarize(ctx context.Context, text string, maxTokens int) (string, error) {
	return "summary of aging memories", nil
}

func (stubLLM) Close() error { return nil }

var _ llm.Provider = stubLLM{}

func TestSummarizationWorker_MergesAgingClusterIntoSummary(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	tenantID, project := "tenant-sum-1", "default"

	old := time.Now().UTC().AddDate(0, 0, -60)
	for i := 0; i < 3; i++ {
		rec := memory.NewRecord(tenantID, project, "the team decided to use tabs")
		rec.Layer = memory.LayerEpisodic
		rec.CreatedAt = old
		rec.Embedding = []float32{1, 0, 0, 0}
		require.NoError(t, store.Insert(ctx, rec))
	}

	worker := maintenance.NewSummarizationWorker(store, stubLLM{})
	produced, err := worker.RunSummarizationCycle(ctx, tenantID, project, "", 24*time.Hour, 256)
	require.NoError(t, err)
	assert.Equal(t, 1, produced)
}

func TestSummarizationWorker_NilLLMIsNoOp(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	worker := maintenance.NewSummarizationWorker(store, nil)
	produced, err := worker.RunSummarizationCycle(ctx, "tenant-x", "default", "", 24*time.Hour, 256)
	require.NoError(t, err)
	assert.Equal(t, 0, produced)
}

func TestSummarizationWorker_TooFewAgingMemoriesSkips(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	tenantID, project := "tenant-sum-2", "default"

	rec := memory.NewRecord(tenantID, project, "a single old memory")
	rec.Layer = memory.LayerEpisodic
	rec.CreatedAt = time.Now().UTC().AddDate(0, 0, -60)
	require.NoError(t, store.Insert(ctx, rec))

	worker := maintenance.NewSummarizationWorker(store, stubLLM{})
	produced, err := worker.RunSummarizationCycle(ctx, tenantID, project, "", 24*time.Hour, 256)
	require.NoError(t, err)
	assert.Equal(t, 0, produced)
}
