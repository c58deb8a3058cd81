package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/relaygraph/relaygraph/pkg/embedder"
	"github.com/relaygraph/relaygraph/pkg/store"
	"github.com/relaygraph/relaygraph/pkg/types"
	"github.com/relaygraph/relaygraph/pkg/utils"
)

// Options controls one coordinated search call.
type Options struct {
	// Methods to fan out to. Empty means all three.
	Methods []types.SearchMethod
	// ChunkLimit and EntityLimit bound raw candidates per method.
	ChunkLimit  int
	EntityLimit int
	// ChunkScoreThreshold excludes semantic chunk hits below it.
	ChunkScoreThreshold float64
	// BFSDepth bounds graph-method traversal from seed entities.
	BFSDepth int
	// MaxConcurrency bounds the fan-out width.
	MaxConcurrency int
}

// Candidates is the coordinator's output: per-method tagged raw results.
// The same logical item may appear once per method that found it.
type Candidates struct {
	Chunks   []types.SearchResult[types.Chunk]
	Entities []types.SearchResult[types.Entity]
}

// Coordinator fans one query out to lexical, semantic, and graph search
// across the two stores, normalizes each method's scores, and tags every
// result with its origin. All sub-searches run concurrently; the call
// completes only when all have settled, and any sub-search failure fails
// the call after the siblings finish.
type Coordinator struct {
	chunks   store.ChunkStore
	graph    store.GraphStore
	embedder embedder.Client
	logger   *slog.Logger
}

// NewCoordinator creates a search coordinator.
func NewCoordinator(chunks store.ChunkStore, graph store.GraphStore, embedderClient embedder.Client, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{chunks: chunks, graph: graph, embedder: embedderClient, logger: logger}
}

// Search runs the multi-method fan-out. Empty result sets from a method
// are not errors.
func (c *Coordinator) Search(ctx context.Context, query string, opts Options) (*Candidates, error) {
	if strings.TrimSpace(query) == "" {
		return &Candidates{}, nil
	}
	methods := opts.Methods
	if len(methods) == 0 {
		methods = []types.SearchMethod{types.LexicalSearch, types.SemanticSearch, types.GraphSearch}
	}

	// Semantic search needs the query embedded once, before the fan-out.
	var queryVector []float32
	if containsMethod(methods, types.SemanticSearch) {
		vector, err := c.embedder.EmbedSingle(ctx, strings.ReplaceAll(query, "\n", " "))
		if err != nil {
			return nil, fmt.Errorf("failed to embed query: %w", err)
		}
		queryVector = vector
	}

	// Each sub-search fills its own slot; slots are merged after the
	// gather joins.
	var (
		lexicalChunks  []types.SearchResult[types.Chunk]
		semanticChunks []types.SearchResult[types.Chunk]
		lexicalEnts    []types.SearchResult[types.Entity]
		graphEnts      []types.SearchResult[types.Entity]
	)

	var subSearches []func() error
	for _, method := range methods {
		switch method {
		case types.LexicalSearch:
			subSearches = append(subSearches,
				func() error {
					results, err := c.lexicalChunkSearch(ctx, query, opts.ChunkLimit)
					lexicalChunks = results
					return err
				},
				func() error {
					results, err := c.lexicalEntitySearch(ctx, query, opts.EntityLimit)
					lexicalEnts = results
					return err
				},
			)
		case types.SemanticSearch:
			subSearches = append(subSearches, func() error {
				results, err := c.semanticChunkSearch(ctx, queryVector, opts.ChunkLimit, opts.ChunkScoreThreshold)
				semanticChunks = results
				return err
			})
		case types.GraphSearch:
			subSearches = append(subSearches, func() error {
				results, err := c.graphEntitySearch(ctx, query, opts.EntityLimit, opts.BFSDepth)
				graphEnts = results
				return err
			})
		}
	}

	errs := utils.SemaphoreGather(ctx, opts.MaxConcurrency, subSearches...)
	if err := utils.FirstError(errs); err != nil {
		return nil, fmt.Errorf("search fan-out failed: %w", err)
	}

	candidates := &Candidates{}
	candidates.Chunks = append(candidates.Chunks, lexicalChunks...)
	candidates.Chunks = append(candidates.Chunks, semanticChunks...)
	candidates.Entities = append(candidates.Entities, lexicalEnts...)
	candidates.Entities = append(candidates.Entities, graphEnts...)

	c.logger.Debug("search fan-out complete",
		"query", query,
		"methods", len(methods),
		"chunk_candidates", len(candidates.Chunks),
		"entity_candidates", len(candidates.Entities))

	return candidates, nil
}

// lexicalChunkSearch normalizes raw engine scores by the batch maximum so
// the top hit scores exactly 1.0. A divisor floor of 1 guards the
// all-zero batch.
func (c *Coordinator) lexicalChunkSearch(ctx context.Context, query string, limit int) ([]types.SearchResult[types.Chunk], error) {
	hits, err := c.chunks.SearchLexical(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("lexical chunk search: %w", err)
	}

	divisor := maxScore(hitScores(hits))
	results := make([]types.SearchResult[types.Chunk], 0, len(hits))
	for _, hit := range hits {
		results = append(results, types.SearchResult[types.Chunk]{
			Item:   hit.Chunk,
			Score:  hit.Score / divisor,
			Source: types.LexicalSearch,
		})
	}
	return results, nil
}

// semanticChunkSearch uses the store's cosine similarity, already in
// [0,1], as-is.
func (c *Coordinator) semanticChunkSearch(ctx context.Context, queryVector []float32, limit int, threshold float64) ([]types.SearchResult[types.Chunk], error) {
	hits, err := c.chunks.SearchChunks(ctx, queryVector, limit, threshold)
	if err != nil {
		return nil, fmt.Errorf("semantic chunk search: %w", err)
	}

	results := make([]types.SearchResult[types.Chunk], 0, len(hits))
	for _, hit := range hits {
		results = append(results, types.SearchResult[types.Chunk]{
			Item:   hit.Chunk,
			Score:  hit.Score,
			Source: types.SemanticSearch,
		})
	}
	return results, nil
}

func (c *Coordinator) lexicalEntitySearch(ctx context.Context, query string, limit int) ([]types.SearchResult[types.Entity], error) {
	hits, err := c.graph.SearchEntitiesWithScore(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("lexical entity search: %w", err)
	}

	scores := make([]float64, len(hits))
	for i, hit := range hits {
		scores[i] = hit.Score
	}
	divisor := maxScore(scores)

	results := make([]types.SearchResult[types.Entity], 0, len(hits))
	for _, hit := range hits {
		results = append(results, types.SearchResult[types.Entity]{
			Item:   hit.Entity,
			Score:  hit.Score / divisor,
			Source: types.LexicalSearch,
		})
	}
	return results, nil
}

// graphEntitySearch finds seed entities by name match, then walks out
// from them. Discovered entities score 1/(depth+1): direct neighbors
// score 0.5, and the seeds themselves are excluded.
func (c *Coordinator) graphEntitySearch(ctx context.Context, query string, limit, depth int) ([]types.SearchResult[types.Entity], error) {
	if depth <= 0 {
		depth = 1
	}

	seeds, err := c.graph.SearchEntities(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("graph seed search: %w", err)
	}
	if len(seeds) == 0 {
		return nil, nil
	}

	seedIDs := make([]string, len(seeds))
	for i, seed := range seeds {
		seedIDs[i] = seed.ID
	}

	hits, err := c.graph.BFSSearch(ctx, seedIDs, depth, limit)
	if err != nil {
		return nil, fmt.Errorf("graph bfs search: %w", err)
	}

	results := make([]types.SearchResult[types.Entity], 0, len(hits))
	for _, hit := range hits {
		results = append(results, types.SearchResult[types.Entity]{
			Item:   hit.Entity,
			Score:  1.0 / float64(hit.Depth+1),
			Source: types.GraphSearch,
		})
	}
	return results, nil
}

func hitScores(hits []store.ChunkHit) []float64 {
	scores := make([]float64, len(hits))
	for i, hit := range hits {
		scores[i] = hit.Score
	}
	return scores
}

// maxScore returns the batch maximum with a floor of 1, the divisor for
// batch normalization.
func maxScore(scores []float64) float64 {
	max := 0.0
	for _, score := range scores {
		if score > max {
			max = score
		}
	}
	if max <= 0 {
		return 1
	}
	return max
}
