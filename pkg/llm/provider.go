// Package llm provides interfaces and shared prompting helpers for Large
// Language Model providers. It defines the Provider interface that all
// LLM implementations must satisfy, along with message types and
// generation options, generalizing the teacher's llm.Provider with the
// entity-extraction and summarization operations the reflection and
// consolidation workers need.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Provider defines the interface for LLM providers.
//
// All LLM implementations (OpenAI, Anthropic, Ollama, DeepSeek, Qwen)
// must implement this interface.
type Provider interface {
	// Generate generates text from a single prompt.
	Generate(ctx context.Context, prompt string, opts ...GenerateOption) (string, error)

	// GenerateWithMessages generates text from a conversation history.
	GenerateWithMessages(ctx context.Context, messages []Message, opts ...GenerateOption) (string, error)

	// CountTokens estimates the token count of text for the provider's
	// tokenizer family. Implementations without an exact tokenizer fall
	// back to a length-based heuristic; callers should treat the result
	// as an estimate, not an exact count.
	CountTokens(text string) int

	// SupportsFunctionCalling reports whether this provider exposes a
	// structured tool/function-calling API, which the context builder
	// uses to decide whether to request JSON output via a function
	// schema or via a plain-text JSON-in-prose instruction.
	SupportsFunctionCalling() bool

	// ExtractEntities identifies named entities and the relationships
	// between them in text, used by consolidation to populate the
	// knowledge graph.
	ExtractEntities(ctx context.Context, text string) ([]Entity, error)

	// Summarize produces a summary of text within maxTokens, used by the
	// summarization worker to compress aging episodic clusters.
	Summarize(ctx context.Context, text string, maxTokens int) (string, error)

	// Close closes the provider and releases resources.
	Close() error
}

// Message represents a single message in a conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Entity is a named entity extracted from text, with its relationships
// to other entities in the same extraction pass.
type Entity struct {
	Name      string     `json:"name"`
	Type      string     `json:"type"`
	Relations []Relation `json:"relations,omitempty"`
}

// Relation is a directed, typed relationship from the owning Entity to
// another named entity.
type Relation struct {
	Target   string  `json:"target"`
	Relation string  `json:"relation"`
	Weight   float64 `json:"weight,omitempty"`
}

// GenerateOptions contains options for text generation.
type GenerateOptions struct {
	Temperature float64
	MaxTokens   int
	TopP        float64
	Stop        []string
}

// GenerateOption configures a GenerateOptions value.
type GenerateOption func(*GenerateOptions)

// WithTemperature sets sampling temperature (0.0 deterministic, 2.0 very random).
func WithTemperature(temp float64) GenerateOption {
	return func(o *GenerateOptions) { o.Temperature = temp }
}

// WithMaxTokens caps the response length.
func WithMaxTokens(max int) GenerateOption {
	return func(o *GenerateOptions) { o.MaxTokens = max }
}

// WithTopP sets nucleus-sampling mass.
func WithTopP(topP float64) GenerateOption {
	return func(o *GenerateOptions) { o.TopP = topP }
}

// WithStop sets stop sequences.
func WithStop(stop ...string) GenerateOption {
	return func(o *GenerateOptions) { o.Stop = stop }
}

// ApplyGenerateOptions folds opts onto the documented defaults
// (Temperature=0.7, MaxTokens=1000, TopP=1.0).
func ApplyGenerateOptions(opts []GenerateOption) *GenerateOptions {
	options := &GenerateOptions{Temperature: 0.7, MaxTokens: 1000, TopP: 1.0}
	for _, opt := range opts {
		opt(options)
	}
	return options
}

// EstimateTokens is the shared fallback token-count heuristic (roughly
// 4 characters per token for English prose) used by providers with no
// exact tokenizer in this module's dependency set.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	return (len(text) + 3) / 4
}

const entityExtractionPrompt = `Extract the named entities and relationships from the following text. Respond with ONLY a JSON array, no prose, matching this shape:
[{"name": "...", "type": "...", "relations": [{"target": "...", "relation": "...", "weight": 1.0}]}]

Text:
%s`

// ExtractEntitiesViaPrompt is the shared entity-extraction strategy every
// hand-rolled (non-function-calling) provider delegates to: ask the model
// for a JSON array in a plain completion and parse it. Providers with a
// native structured-output mode may override this in their own
// ExtractEntities instead of calling this helper.
func ExtractEntitiesViaPrompt(ctx context.Context, p Provider, text string) ([]Entity, error) {
	prompt := fmt.Sprintf(entityExtractionPrompt, text)
	raw, err := p.Generate(ctx, prompt, WithTemperature(0.0), WithMaxTokens(1024))
	if err != nil {
		return nil, err
	}

	var entities []Entity
	if err := json.Unmarshal([]byte(extractJSONArray(raw)), &entities); err != nil {
		return nil, fmt.Errorf("llm: parse entity extraction response: %w", err)
	}
	return entities, nil
}

const summarizePrompt = `Summarize the following text in no more than roughly %d tokens. Preserve concrete facts, names, and numbers; omit filler. Respond with only the summary.

Text:
%s`

// SummarizeViaPrompt is the shared summarization strategy every provider
// delegates to.
func SummarizeViaPrompt(ctx context.Context, p Provider, text string, maxTokens int) (string, error) {
	prompt := fmt.Sprintf(summarizePrompt, maxTokens, text)
	return p.Generate(ctx, prompt, WithTemperature(0.3), WithMaxTokens(maxTokens))
}

// extractJSONArray trims leading/trailing prose a model sometimes adds
// around the requested JSON array despite being told not to.
func extractJSONArray(s string) string {
	start := strings.IndexByte(s, '[')
	end := strings.LastIndexByte(s, ']')
	if start == -1 || end == -1 || end < start {
		return s
	}
	return s[start : end+1]
}
