package embedder

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"
)

const (
	// DefaultModel is used when no embedding model is configured.
	DefaultModel = "text-embedding-3-small"
	// DefaultDimensions matches the default model's output width.
	DefaultDimensions = 1536
	// DefaultBatchSize bounds how many texts go into one API request.
	DefaultBatchSize = 100
)

// Config holds configuration for the OpenAI embedder.
type Config struct {
	APIKey     string `json:"api_key"`
	Model      string `json:"model"`
	BaseURL    string `json:"base_url,omitempty"`
	Dimensions int    `json:"dimensions"`
	BatchSize  int    `json:"batch_size"`
}

// OpenAIEmbedder implements Client against OpenAI or any compatible API.
type OpenAIEmbedder struct {
	client *openai.Client
	config Config
}

// NewOpenAIEmbedder creates a new OpenAI embedding client.
func NewOpenAIEmbedder(config Config) (*OpenAIEmbedder, error) {
	if config.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if config.Model == "" {
		config.Model = DefaultModel
	}
	if config.Dimensions <= 0 {
		config.Dimensions = DefaultDimensions
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultBatchSize
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}

	return &OpenAIEmbedder{
		client: openai.NewClientWithConfig(clientConfig),
		config: config,
	}, nil
}

// Embed converts texts to vectors. Inputs are sent in batches of the
// configured size; batches run sequentially to bound in-flight work.
func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.config.BatchSize {
		end := start + e.config.BatchSize
		if end > len(texts) {
			end = len(texts)
		}

		resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Model: openai.EmbeddingModel(e.config.Model),
			Input: texts[start:end],
		})
		if err != nil {
			return nil, fmt.Errorf("embedding request failed: %w", err)
		}
		if len(resp.Data) != end-start {
			return nil, fmt.Errorf("embedder: got %d embeddings for %d inputs", len(resp.Data), end-start)
		}

		for _, item := range resp.Data {
			if len(item.Embedding) != e.config.Dimensions {
				return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(item.Embedding), e.config.Dimensions)
			}
			vectors = append(vectors, item.Embedding)
		}
	}
	return vectors, nil
}

// EmbedSingle embeds one text.
func (e *OpenAIEmbedder) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("embedder: no embedding returned")
	}
	return vectors[0], nil
}

// Dimensions returns the configured embedding dimension.
func (e *OpenAIEmbedder) Dimensions() int {
	return e.config.Dimensions
}

// Close releases resources. The underlying HTTP client needs no cleanup.
func (e *OpenAIEmbedder) Close() error {
	return nil
}
