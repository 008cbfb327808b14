// Package openai implements llm.Provider using the OpenAI Chat
// Completions API via the sashabaranov/go-openai SDK.
package openai

import (
	"context"
	"fmt"

	sdk "github.com/sashabaranov/go-openai"

	"github.com/oceanbase/agentmem/pkg/llm"
	"github.com/oceanbase/agentmem/pkg/memory"
)

// Client implements llm.Provider over the OpenAI chat API.
type Client struct {
	client *sdk.Client
	model  string
}

// Config configures a Client.
type Config struct {
	APIKey  string
	Model   string
	BaseURL string
}

// NewClient creates an OpenAI LLM client. Model defaults to "gpt-4".
func NewClient(cfg Config) (*Client, error) {
	conf := sdk.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		conf.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = "gpt-4"
	}
	return &Client{client: sdk.NewClientWithConfig(conf), model: model}, nil
}

// Generate implements llm.Provider.
func (c *Client) Generate(ctx context.Context, prompt string, opts ...llm.GenerateOption) (string, error) {
	return c.GenerateWithMessages(ctx, []llm.Message{{Role: "user", Content: prompt}}, opts...)
}

// GenerateWithMessages implements llm.Provider.
func (c *Client) GenerateWithMessages(ctx context.Context, messages []llm.Message, opts ...llm.GenerateOption) (string, error) {
	options := llm.ApplyGenerateOptions(opts)

	chatMessages := make([]sdk.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		chatMessages[i] = sdk.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}

	resp, err := c.client.CreateChatCompletion(ctx, sdk.ChatCompletionRequest{
		Model:       c.model,
		Messages:    chatMessages,
		Temperature: float32(options.Temperature),
		MaxTokens:   options.MaxTokens,
		TopP:        float32(options.TopP),
		Stop:        options.Stop,
	})
	if err != nil {
		return "", memory.WrapOp("openai.GenerateWithMessages", fmt.Errorf("%w: %v", memory.ErrLLMOperation, err))
	}
	if len(resp.Choices) == 0 {
		return "", memory.WrapOp("openai.GenerateWithMessages", fmt.Errorf("%w: no choices returned", memory.ErrLLMOperation))
	}
	return resp.Choices[0].Message.Content, nil
}

// CountTokens implements llm.Provider using the shared heuristic; this
// module carries no tiktoken-style tokenizer dependency.
func (c *Client) CountTokens(text string) int {
	return llm.EstimateTokens(text)
}

// SupportsFunctionCalling implements llm.Provider. The OpenAI API's tool-
// calling support is not wired here since the module has no structured
// function schema layer yet; ExtractEntities falls back to prompting.
func (c *Client) SupportsFunctionCalling() bool {
	return false
}

// ExtractEntities implements llm.Provider.
func (c *Client) ExtractEntities(ctx context.Context, text string) ([]llm.Entity, error) {
	return llm.ExtractEntitiesViaPrompt(ctx, c, text)
}

// Summarize implements llm.Provider.
func (c *Client) Summarize(ctx context.Context, text string, maxTokens int) (string, error) {
	return llm.SummarizeViaPrompt(ctx, c, text, maxTokens)
}

// Close implements llm.Provider. The SDK client needs no explicit
// teardown; kept for interface conformance.
func (c *Client) Close() error {
	return nil
}

var _ llm.Provider = (*Client)(nil)
