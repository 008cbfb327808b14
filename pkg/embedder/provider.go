// Package embedder provides interfaces for text embedding providers.
//
// It defines the Provider interface that all embedding implementations
// must satisfy, enabling text-to-vector conversion for similarity search.
package embedder

import "context"

// TaskType hints a provider to use an asymmetric embedding model variant
// tuned for the text's role, which several modern embedding APIs expose
// (query vs document encoders commonly outperform a single symmetric
// encoder on retrieval benchmarks).
type TaskType string

const (
	TaskDocument TaskType = "document"
	TaskQuery    TaskType = "query"
)

// Provider defines the interface for embedding providers.
//
// All embedding implementations (OpenAI, Qwen, etc.) must implement this
// interface.
type Provider interface {
	// Embed converts a text string into a vector embedding, using
	// taskType to select a query or document encoding when the
	// underlying provider supports it.
	Embed(ctx context.Context, text string, taskType TaskType) ([]float32, error)

	// EmbedBatch converts multiple text strings into vector embeddings
	// in one request where the provider supports batching.
	EmbedBatch(ctx context.Context, texts []string, taskType TaskType) ([][]float32, error)

	// Dimensions returns the dimension of embedding vectors produced by
	// this provider.
	Dimensions() int

	// Close closes the provider and releases resources.
	Close() error
}
