// Package anthropic implements llm.Provider over the Anthropic Messages
// API. No official Go SDK is in this module's dependency set, so the
// client is a hand-rolled net/http caller, same as the teacher's.
package anthropic

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

// Client implements llm.Provider over the Anthropic Messages API.
// Supports system-message separation per the Messages API's shape.
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

// NewClient creates an Anthropic LLM client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, memory.WrapOp("anthropic.NewClient", fmt.Errorf("%w: API key is required", memory.ErrInvalidConfig))
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.anthropic.com"
	}
	model := cfg.Model
	if model == "" {
		model = "claude-3-5-sonnet-20240620"
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 120 * time.Second}
	}

	return &Client{client: httpClient, apiKey: cfg.APIKey, model: model, baseURL: baseURL}, nil
}

// Generate implements llm.Provider.
func (c *Client) Generate(ctx context.Context, prompt string, opts ...llm.GenerateOption) (string, error) {
	return c.GenerateWithMessages(ctx, []llm.Message{{Role: "user", Content: prompt}}, opts...)
}

// GenerateWithMessages implements llm.Provider. Anthropic requires
// system messages out-of-band from the messages array.
func (c *Client) GenerateWithMessages(ctx context.Context, messages []llm.Message, opts ...llm.GenerateOption) (string, error) {
	options := llm.ApplyGenerateOptions(opts)

	var systemMessage string
	var filtered []map[string]string
	for _, m := range messages {
		if m.Role == "system" {
			systemMessage = m.Content
			continue
		}
		filtered = append(filtered, map[string]string{"role": m.Role, "content": m.Content})
	}

	reqBody := map[string]interface{}{
		"model":       c.model,
		"max_tokens":  options.MaxTokens,
		"temperature": options.Temperature,
		"top_p":       options.TopP,
		"messages":    filtered,
	}
	if systemMessage != "" {
		reqBody["system"] = systemMessage
	}
	if len(options.Stop) > 0 {
		reqBody["stop_sequences"] = options.Stop
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", memory.WrapOp("anthropic.GenerateWithMessages", fmt.Errorf("%w: %v", memory.ErrLLMOperation, err))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", memory.WrapOp("anthropic.GenerateWithMessages",
			fmt.Errorf("%w: status %d: %s", memory.ErrLLMOperation, resp.StatusCode, body))
	}

	var response struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(response.Content) == 0 {
		return "", memory.WrapOp("anthropic.GenerateWithMessages", fmt.Errorf("%w: no content returned", memory.ErrLLMOperation))
	}
	return response.Content[0].Text, nil
}

// CountTokens implements llm.Provider using the shared heuristic.
func (c *Client) CountTokens(text string) int {
	return llm.EstimateTokens(text)
}

// SupportsFunctionCalling implements llm.Provider. Claude's tool-use API
// is not wired here since this hand-rolled client targets the plain
// Messages endpoint only.
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
