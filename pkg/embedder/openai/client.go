// Package openai implements embedder.Provider using the OpenAI
// Embeddings API via the sashabaranov/go-openai SDK.
package openai

import (
	"context"
	"fmt"

	sdk "github.com/sashabaranov/go-openai"

	"github.com/oceanbase/agentmem/pkg/embedder"
	"github.com/oceanbase/agentmem/pkg/memory"
)

// Client implements embedder.Provider over the OpenAI Embeddings API.
//
// OpenAI's embedding models are symmetric (no separate query/document
// encoder), so TaskType is accepted for interface conformance but does
// not change the request.
type Client struct {
	client     *sdk.Client
	model      sdk.EmbeddingModel
	dimensions int
}

// Config configures a Client.
type Config struct {
	APIKey     string
	Model      string
	BaseURL    string
	Dimensions int
}

// NewClient creates an OpenAI embedder client.
func NewClient(cfg Config) (*Client, error) {
	conf := sdk.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		conf.BaseURL = cfg.BaseURL
	}

	model := sdk.AdaEmbeddingV2
	if cfg.Model != "" {
		model = sdk.EmbeddingModel(cfg.Model)
	}

	dims := cfg.Dimensions
	if dims == 0 {
		dims = 1536
	}

	return &Client{
		client:     sdk.NewClientWithConfig(conf),
		model:      model,
		dimensions: dims,
	}, nil
}

// Embed implements embedder.Provider.
func (c *Client) Embed(ctx context.Context, text string, _ embedder.TaskType) ([]float32, error) {
	resp, err := c.client.CreateEmbeddings(ctx, sdk.EmbeddingRequest{
		Input: []string{text},
		Model: c.model,
	})
	if err != nil {
		return nil, memory.WrapOp("openai.Embed", fmt.Errorf("%w: %v", memory.ErrEmbeddingFailed, err))
	}
	if len(resp.Data) == 0 {
		return nil, memory.WrapOp("openai.Embed", fmt.Errorf("%w: no data returned", memory.ErrEmbeddingFailed))
	}
	return resp.Data[0].Embedding, nil
}

// EmbedBatch implements embedder.Provider.
func (c *Client) EmbedBatch(ctx context.Context, texts []string, _ embedder.TaskType) ([][]float32, error) {
	resp, err := c.client.CreateEmbeddings(ctx, sdk.EmbeddingRequest{
		Input: texts,
		Model: c.model,
	})
	if err != nil {
		return nil, memory.WrapOp("openai.EmbedBatch", fmt.Errorf("%w: %v", memory.ErrEmbeddingFailed, err))
	}
	if len(resp.Data) != len(texts) {
		return nil, memory.WrapOp("openai.EmbedBatch", fmt.Errorf("%w: got %d results, expected %d",
			memory.ErrEmbeddingFailed, len(resp.Data), len(texts)))
	}

	out := make([][]float32, len(texts))
	for i, d := range resp.Data {
		out[i] = d.Embedding
	}
	return out, nil
}

// Dimensions implements embedder.Provider.
func (c *Client) Dimensions() int {
	return c.dimensions
}

// Close implements embedder.Provider. The SDK client needs no explicit
// teardown; kept for interface conformance.
func (c *Client) Close() error {
	return nil
}

var _ embedder.Provider = (*Client)(nil)
