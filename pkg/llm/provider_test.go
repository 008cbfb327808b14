package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	response string
}

func (f *fakeProvider) Generate(ctx context.Context, prompt string, opts ...GenerateOption) (string, error) {
	return f.response, nil
}
func (f *fakeProvider) GenerateWithMessages(ctx context.Context, messages []Message, opts ...GenerateOption) (string, error) {
	return f.response, nil
}
func (f *fakeProvider) CountTokens(text string) int       { return EstimateTokens(text) }
func (f *fakeProvider) SupportsFunctionCalling() bool     { return false }
func (f *fakeProvider) ExtractEntities(ctx context.Context, text string) ([]Entity, error) {
	return ExtractEntitiesViaPrompt(ctx, f, text)
}
func (f *fakeProvider) Summarize(ctx context.Context, text string, maxTokens int) (string, error) {
	return SummarizeViaPrompt(ctx, f, text, maxTokens)
}
func (f *fakeProvider) Close() error { return nil }

func TestApplyGenerateOptions_Defaults(t *testing.T) {
	opts := ApplyGenerateOptions(nil)
	assert.Equal(t, 0.7, opts.Temperature)
	assert.Equal(t, 1000, opts.MaxTokens)
	assert.Equal(t, 1.0, opts.TopP)
}

func TestApplyGenerateOptions_Overrides(t *testing.T) {
	opts := ApplyGenerateOptions([]GenerateOption{WithTemperature(0.1), WithMaxTokens(50), WithTopP(0.5), WithStop("END")})
	assert.Equal(t, 0.1, opts.Temperature)
	assert.Equal(t, 50, opts.MaxTokens)
	assert.Equal(t, 0.5, opts.TopP)
	assert.Equal(t, []string{"END"}, opts.Stop)
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens(""))
	assert.Greater(t, EstimateTokens("a reasonably long sentence of english text"), 0)
}

func TestExtractEntitiesViaPrompt_ParsesJSONAroundProse(t *testing.T) {
	p := &fakeProvider{response: "Sure, here you go:\n[{\"name\":\"Alice\",\"type\":\"person\",\"relations\":[{\"target\":\"Bob\",\"relation\":\"knows\"}]}]\nHope that helps!"}
	entities, err := p.ExtractEntities(context.Background(), "Alice knows Bob.")
	require.NoError(t, err)
	require.Len(t, entities, 1)
	assert.Equal(t, "Alice", entities[0].Name)
	assert.Equal(t, "Bob", entities[0].Relations[0].Target)
}

func TestSummarizeViaPrompt(t *testing.T) {
	p := &fakeProvider{response: "a short summary"}
	out, err := p.Summarize(context.Background(), "long text here", 50)
	require.NoError(t, err)
	assert.Equal(t, "a short summary", out)
}
