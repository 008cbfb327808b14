// Package deepseek implements llm.Provider over the DeepSeek API, which
// is OpenAI-compatible and so reuses the sashabaranov/go-openai SDK
// against a different base URL, exactly as the teacher's client does.
package deepseek

import (
	"context"
	"fmt"

	sdk "github.com/sashabaranov/go-openai"

	"github.com/oceanbase/agentmem/pkg/llm"
	"github.com/oceanbase/agentmem/pkg/memory"
)

// Client implements llm.Provider over the DeepSeek chat API.
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

// NewClient creates a DeepSeek LLM client. Model defaults to
// "deepseek-chat"; BaseURL defaults to the DeepSeek API.
func NewClient(cfg Config) (*Client, error) {
	conf := sdk.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		conf.BaseURL = cfg.BaseURL
	} else {
		conf.BaseURL = "https://api.deepseek.com"
	}
	model := cfg.Model
	if model == "" {
		model = "deepseek-chat"
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
		return "", memory.WrapOp("deepseek.GenerateWithMessages", fmt.Errorf("%w: %v", memory.ErrLLMOperation, err))
	}
	if len(resp.Choices) == 0 {
		return "", memory.WrapOp("deepseek.GenerateWithMessages", fmt.Errorf("%w: no choices returned", memory.ErrLLMOperation))
	}
	return resp.Choices[0].Message.Content, nil
}

// CountTokens implements llm.Provider using the shared heuristic.
func (c *Client) CountTokens(text string) int {
	return llm.EstimateTokens(text)
}

// SupportsFunctionCalling implements llm.Provider.
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

// Close implements llm.Provider.
func (c *Client) Close() error {
	return nil
}

var _ llm.Provider = (*Client)(nil)
