package context_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceanbase/agentmem/pkg/cache/memcache"
	ctxbuild "github.com/oceanbase/agentmem/pkg/context"
	"github.com/oceanbase/agentmem/pkg/engine"
	"github.com/oceanbase/agentmem/pkg/graphstore/memgraph"
	"github.com/oceanbase/agentmem/pkg/memory"
	"github.com/oceanbase/agentmem/pkg/reflection"
	"github.com/oceanbase/agentmem/pkg/storage/sqlite"
	"github.com/oceanbase/agentmem/pkg/vectorstore/memvec"
)

func newTestEngine(t *testing.T) *engine.Engine {
	t.Helper()
	store, err := sqlite.NewClient(sqlite.Config{DBPath: filepath.Join(t.TempDir(), "test.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	eng := engine.New(store, memvec.New(), memgraph.New(), memcache.New(0), nil, nil)
	t.Cleanup(func() { _ = eng.Close() })
	return eng
}

type stubProfileStore struct {
	items []ctxbuild.ProfileItem
}

func (s stubProfileStore) GetProfile(ctx context.Context, tenantID, agentID string) ([]ctxbuild.ProfileItem, error) {
	return s.items, nil
}

func TestBuilder_BuildIncludesStoredMemoryAsLTMItem(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	_, err := eng.Store(ctx, "tenant-1", "proj-a", "agent-1", "the quarterly report is due Friday", engine.WithImportance(0.6))
	require.NoError(t, err)

	builder := ctxbuild.NewBuilder(eng, nil, nil)
	built, err := builder.Build(ctx, "tenant-1", "proj-a", "agent-1", "quarterly report", ctxbuild.Options{})
	require.NoError(t, err)

	require.Len(t, built.LTMItems, 1)
	assert.Contains(t, built.LTMItems[0].Content, "quarterly report")
	assert.Equal(t, 1, built.RetrievalStats.ItemsReturned)
	assert.Contains(t, built.RenderedText, "quarterly report")
}

func TestBuilder_BuildTrimsMessagesToDefault(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	var messages []ctxbuild.Message
	for i := 0; i < 15; i++ {
		messages = append(messages, ctxbuild.Message{Role: "user", Content: "msg"})
	}

	builder := ctxbuild.NewBuilder(eng, nil, nil)
	built, err := builder.Build(ctx, "tenant-2", "proj-a", "agent-1", "", ctxbuild.Options{RecentMessages: messages})
	require.NoError(t, err)
	assert.Len(t, built.Messages, ctxbuild.DefaultRecentMessages)
}

func TestBuilder_BuildInjectsProfileItems(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	profiles := stubProfileStore{items: []ctxbuild.ProfileItem{{Key: "occupation", Content: "software engineer"}}}
	builder := ctxbuild.NewBuilder(eng, nil, profiles)

	built, err := builder.Build(ctx, "tenant-3", "proj-a", "agent-1", "", ctxbuild.Options{})
	require.NoError(t, err)
	require.Len(t, built.ProfileItems, 1)
	assert.Contains(t, built.RenderedText, "software engineer")
}

func TestBuilder_BuildInjectsReflectionsWhenEnabled(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	_, err := eng.Store(ctx, "tenant-4", "proj-a", "agent-1", "a reflection about patterns", engine.WithLayer(memory.LayerReflective), engine.WithImportance(0.8))
	require.NoError(t, err)

	refl := reflection.NewEngine(eng.Records(), nil)
	builder := ctxbuild.NewBuilder(eng, refl, nil)

	built, err := builder.Build(ctx, "tenant-4", "proj-a", "agent-1", "", ctxbuild.Options{ReflectiveEnabled: true, Mode: ctxbuild.ModeLite})
	require.NoError(t, err)
	require.Len(t, built.Reflections, 1)
	assert.Contains(t, built.SystemPrompt, "Lessons Learned")
	assert.Contains(t, built.SystemPrompt, "a reflection about patterns")
}

func TestBuilder_BuildSkipsReflectionsWhenDisabled(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	refl := reflection.NewEngine(eng.Records(), nil)
	builder := ctxbuild.NewBuilder(eng, refl, nil)

	built, err := builder.Build(ctx, "tenant-5", "proj-a", "agent-1", "", ctxbuild.Options{ReflectiveEnabled: false})
	require.NoError(t, err)
	assert.Empty(t, built.Reflections)
}

func TestBuilder_BuildRespectsTokenBudgetByDroppingLTMItems(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := eng.Store(ctx, "tenant-6", "proj-a", "agent-1", "a reasonably long memory about quarterly planning and budget review", engine.WithImportance(0.6))
		require.NoError(t, err)
	}

	builder := ctxbuild.NewBuilder(eng, nil, nil)
	built, err := builder.Build(ctx, "tenant-6", "proj-a", "agent-1", "quarterly planning", ctxbuild.Options{MaxTokens: 20})
	require.NoError(t, err)
	assert.LessOrEqual(t, built.TotalTokens, 20)
}
