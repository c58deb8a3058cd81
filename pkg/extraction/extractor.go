package extraction

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/relaygraph/relaygraph/pkg/llm"
	"github.com/relaygraph/relaygraph/pkg/types"
)

// DefaultMaxAttempts bounds how many times a chunk extraction is retried
// when the model returns undecodable output.
const DefaultMaxAttempts = 3

// Extractor extracts entities and relationships from chunk text using the
// chat capability.
type Extractor struct {
	client      llm.Client
	maxAttempts int
	logger      *slog.Logger
}

// ExtractorOption configures an Extractor.
type ExtractorOption func(*Extractor)

// WithMaxAttempts sets the attempt budget per chunk.
func WithMaxAttempts(n int) ExtractorOption {
	return func(e *Extractor) {
		if n > 0 {
			e.maxAttempts = n
		}
	}
}

// WithExtractorLogger sets the logger.
func WithExtractorLogger(logger *slog.Logger) ExtractorOption {
	return func(e *Extractor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewExtractor creates an extractor backed by the given chat client.
func NewExtractor(client llm.Client, opts ...ExtractorOption) *Extractor {
	e := &Extractor{
		client:      client,
		maxAttempts: DefaultMaxAttempts,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract asks the model for entities and relationships mentioned in the
// chunk text. The same prompt is retried up to the attempt budget when the
// response cannot be decoded; a chat-transport error is returned as-is
// since the client already retries transient failures.
func (e *Extractor) Extract(ctx context.Context, text string) (*types.ExtractionResult, error) {
	if strings.TrimSpace(text) == "" {
		return &types.ExtractionResult{}, nil
	}

	messages := []llm.Message{
		llm.NewSystemMessage(extractionSystemPrompt),
		llm.NewUserMessage(extractionUserPrompt(text)),
	}

	var lastErr error
	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		resp, err := e.client.ChatJSON(ctx, messages)
		if err != nil {
			return nil, fmt.Errorf("extraction chat failed: %w", err)
		}

		var result types.ExtractionResult
		if err := llm.DecodeJSON(resp.Content, &result); err != nil {
			lastErr = err
			e.logger.Warn("undecodable extraction output, retrying",
				"attempt", attempt, "error", err)
			continue
		}
		return &result, nil
	}
	return nil, fmt.Errorf("extraction produced no decodable output after %d attempts: %w", e.maxAttempts, lastErr)
}
