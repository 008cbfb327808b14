package reflection_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceanbase/agentmem/pkg/llm"
	"github.com/oceanbase/agentmem/pkg/memory"
	"github.com/oceanbase/agentmem/pkg/reflection"
	"github.com/oceanbase/agentmem/pkg/storage"
	"github.com/oceanbase/agentmem/pkg/storage/sqlite"
)

func newTestStore(t *testing.T) storage.Store {
	t.Helper()
	c, err := sqlite.NewClient(sqlite.Config{DBPath: filepath.Join(t.TempDir(), "test.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

type stubLLM struct {
	response string
	err      error
	lastPrompt string
}

func (s *stubLLM) Generate(ctx context.Context, prompt string, opts ...llm.GenerateOption) (string, error) {
	s.lastPrompt = prompt
	if s.err != nil {
		return "", s.err
	}
	return s.response, nil
}

func (s *stubLLM) GenerateWithMessages(ctx context.Context, messages []llm.Message, opts ...llm.GenerateOption) (string, error) {
	return s.response, s.err
}
func (s *stubLLM) CountTokens(text string) int                                          { return len(text) / 4 }
func (s *stubLLM) SupportsFunctionCalling() bool                                        { return false }
func (s *stubLLM) ExtractEntities(ctx context.Context, text string) ([]llm.Entity, error) { return nil, nil }
func (s *stubLLM) Summarize(ctx context.Context, text string, maxTokens int) (string, error) {
	return "", nil
}
func (s *stubLLM) Close() error { return nil }

var _ llm.Provider = (*stubLLM)(nil)

func TestEngine_ReflectSuccessStoresReflectionAndStrategy(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	stub := &stubLLM{response: `{"reflection": "Success reflection", "strategy": "Use this pattern", "importance": 0.8, "confidence": 0.9, "tags": ["search", "pattern"]}`}
	eng := reflection.NewEngine(store, stub)

	rc := reflection.Context{
		TenantID: "tenant-1",
		Project:  "default",
		Outcome:  reflection.OutcomeSuccess,
		Events: []reflection.Event{
			{Type: reflection.EventToolCall, Content: "Calling tool search", ToolName: "search"},
		},
		TaskGoal: "Find information",
	}

	rec, err := eng.Reflect(ctx, rc)
	require.NoError(t, err)
	assert.Equal(t, "Success reflection", rec.Content)
	assert.Equal(t, memory.LayerReflective, rec.Layer)
	assert.Contains(t, stub.lastPrompt, "pattern")

	recs, err := store.List(ctx, storage.ListOptions{TenantID: "tenant-1", Project: "default", Layer: memory.LayerReflective})
	require.NoError(t, err)
	require.Len(t, recs, 2)

	var sawStrategy bool
	for _, r := range recs {
		for _, tag := range r.Tags {
			if tag == "strategy" {
				sawStrategy = true
			}
		}
	}
	assert.True(t, sawStrategy)
}

func TestEngine_ReflectFailureOmitsStrategyWhenAbsent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	stub := &stubLLM{response: `{"reflection": "Partial reflection", "importance": 0.5, "confidence": 0.5, "tags": []}`}
	eng := reflection.NewEngine(store, stub)

	rc := reflection.Context{
		TenantID: "tenant-2",
		Project:  "default",
		Outcome:  reflection.OutcomePartial,
		TaskGoal: "do something",
	}

	rec, err := eng.Reflect(ctx, rc)
	require.NoError(t, err)
	assert.Equal(t, "Partial reflection", rec.Content)
	assert.Contains(t, stub.lastPrompt, "traces")

	recs, err := store.List(ctx, storage.ListOptions{TenantID: "tenant-2", Project: "default", Layer: memory.LayerReflective})
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestEngine_ReflectFailurePromptMentionsTraces(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	stub := &stubLLM{response: `{"reflection": "Failure reflection", "strategy": "Increase timeout", "importance": 0.9, "confidence": 0.8, "tags": ["timeout"]}`}
	eng := reflection.NewEngine(store, stub)

	rc := reflection.Context{
		TenantID: "tenant-3",
		Project:  "default",
		Outcome:  reflection.OutcomeFailure,
		Error:    &reflection.ErrorInfo{Category: "timeout_error", Message: "Task timed out"},
		TaskGoal: "call an API",
	}

	rec, err := eng.Reflect(ctx, rc)
	require.NoError(t, err)
	assert.Equal(t, "Failure reflection", rec.Content)
	assert.Contains(t, stub.lastPrompt, "traces")
	assert.Contains(t, stub.lastPrompt, "timed out")
}

func TestEngine_ReflectPropagatesLLMError(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	stub := &stubLLM{err: errors.New("llm error")}
	eng := reflection.NewEngine(store, stub)

	_, err := eng.Reflect(ctx, reflection.Context{TenantID: "tenant-4", Project: "default", Outcome: reflection.OutcomeSuccess})
	require.Error(t, err)
	assert.ErrorIs(t, err, memory.ErrLLMOperation)
}

func TestEngine_ReflectRequiresLLMProvider(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	eng := reflection.NewEngine(store, nil)
	_, err := eng.Reflect(ctx, reflection.Context{TenantID: "tenant-5", Project: "default", Outcome: reflection.OutcomeSuccess})
	require.Error(t, err)
	assert.ErrorIs(t, err, memory.ErrInvalidConfig)
}

func TestEngine_GenerateReflectionLoadsSeedMemories(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	tenantID, project := "tenant-seed", "default"

	rec := memory.NewRecord(tenantID, project, "an important observation")
	rec.Layer = memory.LayerEpisodic
	require.NoError(t, store.Insert(ctx, rec))

	stub := &stubLLM{response: `{"reflection": "pattern found", "importance": 0.7, "confidence": 0.6, "tags": []}`}
	eng := reflection.NewEngine(store, stub)

	result, err := eng.GenerateReflection(ctx, tenantID, project, "", []uuid.UUID{rec.ID})
	require.NoError(t, err)
	assert.Equal(t, "pattern found", result.Content)
	assert.Contains(t, stub.lastPrompt, "an important observation")
}

func TestEngine_QueryReflectionsFiltersByImportance(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	tenantID, project := "tenant-query", "default"

	high := memory.NewRecord(tenantID, project, "high importance reflection")
	high.Layer = memory.LayerReflective
	high.Importance = 0.9
	require.NoError(t, store.Insert(ctx, high))

	low := memory.NewRecord(tenantID, project, "low importance reflection")
	low.Layer = memory.LayerReflective
	low.Importance = 0.2
	require.NoError(t, store.Insert(ctx, low))

	eng := reflection.NewEngine(store, nil)
	results, err := eng.QueryReflections(ctx, tenantID, project, 0.5, 100)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "high importance reflection", results[0].Content)
}
