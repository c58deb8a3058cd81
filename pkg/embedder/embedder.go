// Package embedder provides the text embedding capability: batched
// conversion of text to fixed-dimension float vectors, with an optional
// persistent cache keyed by content hash.
package embedder

import (
	"context"
	"errors"
)

// Client defines the embedding capability. Batched calls preserve input
// order in the output.
type Client interface {
	// Embed converts texts to vectors, one per input, in input order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedSingle is a convenience wrapper for one text.
	EmbedSingle(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the fixed embedding dimension.
	Dimensions() int

	// Close cleans up any resources.
	Close() error
}

var (
	// ErrMissingAPIKey is returned at construction when no credential is
	// configured.
	ErrMissingAPIKey = errors.New("embedder: api key is required")
	// ErrDimensionMismatch is returned when the backend produced vectors
	// of an unexpected dimension.
	ErrDimensionMismatch = errors.New("embedder: unexpected embedding dimension")
)
