// Package ollama implements llm.Provider over a local or remote Ollama
// server's chat API.
package ollama

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

// Client implements llm.Provider over Ollama's /api/chat endpoint.
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

// NewClient creates an Ollama LLM client. APIKey is optional; local
// deployments typically omit it.
func NewClient(cfg Config) (*Client, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	model := cfg.Model
	if model == "" {
		model = "llama3.1:70b"
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

// GenerateWithMessages implements llm.Provider. Ollama names its
// generation-length parameter num_predict rather than max_tokens.
func (c *Client) GenerateWithMessages(ctx context.Context, messages []llm.Message, opts ...llm.GenerateOption) (string, error) {
	options := llm.ApplyGenerateOptions(opts)

	chatMessages := make([]map[string]string, len(messages))
	for i, m := range messages {
		chatMessages[i] = map[string]string{"role": m.Role, "content": m.Content}
	}

	reqBody := map[string]interface{}{
		"model":    c.model,
		"messages": chatMessages,
		"stream":   false,
		"options": map[string]interface{}{
			"temperature": options.Temperature,
			"num_predict": options.MaxTokens,
			"top_p":       options.TopP,
		},
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", memory.WrapOp("ollama.GenerateWithMessages", fmt.Errorf("%w: %v", memory.ErrLLMOperation, err))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", memory.WrapOp("ollama.GenerateWithMessages",
			fmt.Errorf("%w: status %d: %s", memory.ErrLLMOperation, resp.StatusCode, body))
	}

	var response struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if response.Message.Content == "" {
		return "", memory.WrapOp("ollama.GenerateWithMessages", fmt.Errorf("%w: empty response", memory.ErrLLMOperation))
	}
	return response.Message.Content, nil
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
