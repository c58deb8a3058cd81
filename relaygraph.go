package relaygraph

import (
	"errors"
	"log/slog"

	"github.com/relaygraph/relaygraph/pkg/embedder"
	"github.com/relaygraph/relaygraph/pkg/extraction"
	"github.com/relaygraph/relaygraph/pkg/llm"
	"github.com/relaygraph/relaygraph/pkg/search"
	"github.com/relaygraph/relaygraph/pkg/store"
)

// Ingestion defaults.
const (
	DefaultChunkSize             = 1200
	DefaultChunkOverlap          = 200
	DefaultExtractionConcurrency = 4
)

var (
	// ErrMissingStore is returned at construction when a store is nil.
	ErrMissingStore = errors.New("relaygraph: chunk store and graph store are required")
	// ErrMissingCapability is returned at construction when the chat or
	// embedding client is nil.
	ErrMissingCapability = errors.New("relaygraph: llm and embedder clients are required")
)

// Config holds tuning knobs for the Client. The zero value is usable;
// unset fields fall back to defaults.
type Config struct {
	// ChunkSize and ChunkOverlap control document splitting, in runes.
	ChunkSize    int
	ChunkOverlap int
	// ExtractionConcurrency bounds parallel per-chunk extraction calls.
	ExtractionConcurrency int
	// MaxExtractionAttempts bounds retries on undecodable extraction
	// output.
	MaxExtractionAttempts int
	// Retrieval holds the default retrieval options; per-call options
	// override it.
	Retrieval RetrieveOptions
}

func (c *Config) normalize() {
	if c.ChunkSize <= 0 {
		c.ChunkSize = DefaultChunkSize
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		c.ChunkOverlap = DefaultChunkOverlap
		if c.ChunkOverlap >= c.ChunkSize {
			c.ChunkOverlap = c.ChunkSize / 4
		}
	}
	if c.ExtractionConcurrency <= 0 {
		c.ExtractionConcurrency = DefaultExtractionConcurrency
	}
	if c.MaxExtractionAttempts <= 0 {
		c.MaxExtractionAttempts = extraction.DefaultMaxAttempts
	}
	c.Retrieval.normalize()
}

// Client is the facade over ingestion and retrieval.
type Client struct {
	chunks   store.ChunkStore
	graph    store.GraphStore
	llm      llm.Client
	embedder embedder.Client

	coordinator *search.Coordinator
	expander    *search.Expander
	extractor   *extraction.Extractor

	config Config
	logger *slog.Logger
}

// NewClient wires the stores and capabilities into a Client. Nil config
// uses defaults; nil logger uses slog.Default.
func NewClient(chunks store.ChunkStore, graph store.GraphStore, llmClient llm.Client, embedderClient embedder.Client, config *Config, logger *slog.Logger) (*Client, error) {
	if chunks == nil || graph == nil {
		return nil, ErrMissingStore
	}
	if llmClient == nil || embedderClient == nil {
		return nil, ErrMissingCapability
	}
	if config == nil {
		config = &Config{}
	}
	config.normalize()
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		chunks:      chunks,
		graph:       graph,
		llm:         llmClient,
		embedder:    embedderClient,
		coordinator: search.NewCoordinator(chunks, graph, embedderClient, logger),
		expander:    search.NewExpander(graph),
		extractor: extraction.NewExtractor(llmClient,
			extraction.WithMaxAttempts(config.MaxExtractionAttempts),
			extraction.WithExtractorLogger(logger)),
		config: *config,
		logger: logger,
	}, nil
}

// Close releases both stores and both capability clients.
func (c *Client) Close() error {
	var errs []error
	if err := c.chunks.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := c.graph.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := c.llm.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := c.embedder.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
