package relaygraph

import (
	"context"
	"fmt"
	"log/slog"

	rg "github.com/relaygraph/relaygraph"
	"github.com/relaygraph/relaygraph/pkg/config"
	"github.com/relaygraph/relaygraph/pkg/embedder"
	"github.com/relaygraph/relaygraph/pkg/llm"
	"github.com/relaygraph/relaygraph/pkg/search"
	"github.com/relaygraph/relaygraph/pkg/store/neo4j"
	"github.com/relaygraph/relaygraph/pkg/store/postgres"
)

// buildClient wires stores and capabilities from config into the facade,
// creating schema objects on first contact.
func buildClient(ctx context.Context, cfg *config.Config, log *slog.Logger) (*rg.Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	chunks, err := postgres.New(ctx, cfg.Postgres.URL, cfg.Embedding.Dimensions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	if err := chunks.EnsureSchema(ctx); err != nil {
		chunks.Close()
		return nil, fmt.Errorf("failed to prepare postgres schema: %w", err)
	}

	graph, err := neo4j.New(cfg.Neo4j.URI, cfg.Neo4j.Username, cfg.Neo4j.Password, cfg.Neo4j.Database)
	if err != nil {
		chunks.Close()
		return nil, fmt.Errorf("failed to connect to neo4j: %w", err)
	}
	if err := graph.EnsureSchema(ctx); err != nil {
		chunks.Close()
		graph.Close()
		return nil, fmt.Errorf("failed to prepare neo4j schema: %w", err)
	}

	chatClient, err := buildChatClient(cfg)
	if err != nil {
		chunks.Close()
		graph.Close()
		return nil, err
	}

	embedClient, err := buildEmbedClient(cfg)
	if err != nil {
		chunks.Close()
		graph.Close()
		return nil, err
	}

	return rg.NewClient(chunks, graph, chatClient, embedClient, &rg.Config{
		ChunkSize:             cfg.Ingestion.ChunkSize,
		ChunkOverlap:          cfg.Ingestion.ChunkOverlap,
		ExtractionConcurrency: cfg.Ingestion.ExtractionConcurrency,
		MaxExtractionAttempts: cfg.Ingestion.MaxExtractionAttempts,
		Retrieval: rg.RetrieveOptions{
			MaxChunks:             cfg.Retrieval.MaxChunks,
			MaxEntities:           cfg.Retrieval.MaxEntities,
			MaxGraphTriples:       cfg.Retrieval.MaxGraphTriples,
			ChunkThreshold:        cfg.Retrieval.ChunkThreshold,
			Reranker:              search.RerankerType(cfg.Retrieval.Reranker),
			BFSDepth:              cfg.Retrieval.BFSDepth,
			RRFK:                  cfg.Retrieval.RRFK,
			MMRLambda:             &cfg.Retrieval.MMRLambda,
			CrossEncoderThreshold: &cfg.Retrieval.CrossEncoderThreshold,
		},
	}, log)
}

func buildChatClient(cfg *config.Config) (llm.Client, error) {
	llmConfig := llm.Config{
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		BaseURL:     cfg.LLM.BaseURL,
		Temperature: &cfg.LLM.Temperature,
	}
	if cfg.LLM.MaxTokens > 0 {
		llmConfig.MaxTokens = &cfg.LLM.MaxTokens
	}
	base, err := llm.NewOpenAIClient(llmConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat client: %w", err)
	}

	var client llm.Client = base
	if cfg.LLM.MaxRetries > 0 {
		retryConfig := llm.DefaultRetryConfig()
		retryConfig.MaxRetries = cfg.LLM.MaxRetries
		client = llm.NewRetryClient(client, retryConfig)
	}
	if cfg.LLM.Breaker {
		client = llm.NewBreakerClient(client, nil)
	}
	return client, nil
}

func buildEmbedClient(cfg *config.Config) (embedder.Client, error) {
	base, err := embedder.NewOpenAIEmbedder(embedder.Config{
		APIKey:     cfg.Embedding.APIKey,
		Model:      cfg.Embedding.Model,
		BaseURL:    cfg.Embedding.BaseURL,
		Dimensions: cfg.Embedding.Dimensions,
		BatchSize:  cfg.Embedding.BatchSize,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding client: %w", err)
	}
	if cfg.Embedding.CachePath == "off" {
		return base, nil
	}
	cached, err := embedder.NewCachedClient(base, cfg.Embedding.CachePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open embedding cache: %w", err)
	}
	return cached, nil
}
