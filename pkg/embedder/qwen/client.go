// Package qwen implements embedder.Provider using Alibaba Cloud
// DashScope's Text Embedding API. DashScope has no official Go SDK, so
// this hand-rolls a net/http client in the same style as the teacher's
// Anthropic/Ollama/DeepSeek LLM clients.
package qwen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/oceanbase/agentmem/pkg/embedder"
	"github.com/oceanbase/agentmem/pkg/memory"
)

// Client implements embedder.Provider over DashScope's text-embedding API.
type Client struct {
	client     *http.Client
	apiKey     string
	model      string
	baseURL    string
	dimensions int
}

// Config configures a Client.
type Config struct {
	APIKey     string
	Model      string
	BaseURL    string
	Dimensions int
	HTTPClient *http.Client
}

// NewClient creates a DashScope embedder client.
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
		model = "text-embedding-v4"
	}
	dims := cfg.Dimensions
	if dims == 0 {
		dims = 1536
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	return &Client{client: httpClient, apiKey: cfg.APIKey, model: model, baseURL: baseURL, dimensions: dims}, nil
}

func textType(t embedder.TaskType) string {
	if t == embedder.TaskQuery {
		return "query"
	}
	return "document"
}

type embedResponse struct {
	Output struct {
		Embeddings []struct {
			Embedding []float32 `json:"embedding"`
		} `json:"embeddings"`
	} `json:"output"`
}

func (c *Client) embed(ctx context.Context, texts []string, taskType embedder.TaskType) ([][]float32, error) {
	reqBody := map[string]interface{}{
		"model": c.model,
		"input": map[string]interface{}{
			"texts": texts,
		},
		"text_type": textType(taskType),
	}
	if c.dimensions > 0 {
		reqBody["parameters"] = map[string]interface{}{"dimension": c.dimensions}
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/services/embeddings/text-embedding/text-embedding", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("dashscope request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var out embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(out.Output.Embeddings) != len(texts) {
		return nil, fmt.Errorf("unexpected result count: got %d, expected %d", len(out.Output.Embeddings), len(texts))
	}

	embeddings := make([][]float32, len(texts))
	for i, e := range out.Output.Embeddings {
		embeddings[i] = e.Embedding
	}
	return embeddings, nil
}

// Embed implements embedder.Provider.
func (c *Client) Embed(ctx context.Context, text string, taskType embedder.TaskType) ([]float32, error) {
	out, err := c.embed(ctx, []string{text}, taskType)
	if err != nil {
		return nil, memory.WrapOp("qwen.Embed", fmt.Errorf("%w: %v", memory.ErrEmbeddingFailed, err))
	}
	return out[0], nil
}

// EmbedBatch implements embedder.Provider.
func (c *Client) EmbedBatch(ctx context.Context, texts []string, taskType embedder.TaskType) ([][]float32, error) {
	out, err := c.embed(ctx, texts, taskType)
	if err != nil {
		return nil, memory.WrapOp("qwen.EmbedBatch", fmt.Errorf("%w: %v", memory.ErrEmbeddingFailed, err))
	}
	return out, nil
}

// Dimensions implements embedder.Provider.
func (c *Client) Dimensions() int {
	return c.dimensions
}

// Close implements embedder.Provider.
func (c *Client) Close() error {
	return nil
}

var _ embedder.Provider = (*Client)(nil)
