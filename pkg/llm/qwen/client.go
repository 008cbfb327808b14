// Package qwen implements llm.Provider using Alibaba Cloud DashScope's
// text-generation API.
package qwen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/oceanbase/agentmem/pkg/llm"
	"github.com/oceanbase/agentmem/pkg/memory"
)

// Client implements llm.Provider over DashScope's generation API.
type Client struct {
	client  *http.Client
	apiKey  string
	model   string
	baseURL string
}

// Config configures a Client.
type Config struct {
	APIKey     string
	Model      string
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient creates a DashScope LLM client. Model defaults to "qwen-plus".
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, memory.WrapOp("qwen.NewClient", fmt.Errorf("%w: API key is required", memory.ErrInvalidConfig))
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://dashscope.aliyuncs.com/api/v1"
	}
	model := cfg.Model
	if model == "" {
		model = "qwen-plus"
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	return &Client{client: httpClient, apiKey: cfg.APIKey, model: model, baseURL: baseURL}, nil
}

// Generate implements llm.Provider.
func (c *Client) Generate(ctx context.Context, prompt string, opts ...llm.GenerateOption) (string, error) {
	return c.GenerateWithMessages(ctx, []llm.Message{{Role: "user", Content: prompt}}, opts...)
}

// GenerateWithMessages implements llm.Provider.
func (c *Client) GenerateWithMessages(ctx context.Context, messages []llm.Message, opts ...llm.GenerateOption) (string, error) {
	options := llm.ApplyGenerateOptions(opts)

	chatMessages := make([]map[string]string, len(messages))
	for i, m := range messages {
		chatMessages[i] = map[string]string{"role": m.Role, "content": m.Content}
	}

	params := map[string]interface{}{
		"temperature": options.Temperature,
		"max_tokens":  options.MaxTokens,
		"top_p":       options.TopP,
	}
	if len(options.Stop) > 0 {
		params["stop"] = options.Stop
	}

	reqBody := map[string]interface{}{
		"model":      c.model,
		"input":      map[string]interface{}{"messages": chatMessages},
		"parameters": params,
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	url := c.baseURL + "/services/aigc/text-generation/generation"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", memory.WrapOp("qwen.GenerateWithMessages", fmt.Errorf("%w: %v", memory.ErrLLMOperation, err))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", memory.WrapOp("qwen.GenerateWithMessages",
			fmt.Errorf("%w: status %d: %s", memory.ErrLLMOperation, resp.StatusCode, body))
	}

	var response struct {
		Output struct {
			Choices []struct {
				Message struct {
					Content string `json:"content"`
				} `json:"message"`
			} `json:"choices"`
		} `json:"output"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(response.Output.Choices) == 0 {
		return "", memory.WrapOp("qwen.GenerateWithMessages", fmt.Errorf("%w: no choices returned", memory.ErrLLMOperation))
	}
	return response.Output.Choices[0].Message.Content, nil
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
