package relaygraph

import (
	"context"
	"fmt"
	"strings"

	"github.com/relaygraph/relaygraph/pkg/llm"
	"github.com/relaygraph/relaygraph/pkg/search"
	"github.com/relaygraph/relaygraph/pkg/store"
	"github.com/relaygraph/relaygraph/pkg/types"
	"github.com/relaygraph/relaygraph/pkg/utils"
)

// Retrieval defaults.
const (
	DefaultMaxChunks       = 10
	DefaultMaxEntities     = 15
	DefaultMaxGraphTriples = 20
	DefaultChunkThreshold  = 0.3
	DefaultBFSDepth        = 2

	// overfetchFactor inflates raw candidate limits so the reranker has
	// material to fuse before truncation.
	overfetchFactor = 3
)

// NoRelevantInformation is the fixed answer Synthesize returns when
// retrieval found no chunks. The chat capability is not invoked in that
// case.
const NoRelevantInformation = "No relevant information was found to answer this question."

// RetrieveOptions configures one Retrieve call. The zero value means
// defaults throughout.
type RetrieveOptions struct {
	MaxChunks       int
	MaxEntities     int
	MaxGraphTriples int
	// ChunkThreshold excludes semantic chunk hits scoring below it.
	ChunkThreshold float64
	// Methods defaults to all three search methods.
	Methods []types.SearchMethod
	// Reranker selects the fusion strategy, default reciprocal rank
	// fusion.
	Reranker search.RerankerType

	BFSDepth int
	RRFK     int
	// MMRLambda and CrossEncoderThreshold are nil-means-default; an
	// explicit zero selects pure-diversity MMR or a keep-all
	// cross-encoder.
	MMRLambda             *float64
	CrossEncoderThreshold *float64
}

func (o *RetrieveOptions) normalize() {
	if o.MaxChunks <= 0 {
		o.MaxChunks = DefaultMaxChunks
	}
	if o.MaxEntities <= 0 {
		o.MaxEntities = DefaultMaxEntities
	}
	if o.MaxGraphTriples <= 0 {
		o.MaxGraphTriples = DefaultMaxGraphTriples
	}
	if o.ChunkThreshold <= 0 {
		o.ChunkThreshold = DefaultChunkThreshold
	}
	if len(o.Methods) == 0 {
		o.Methods = []types.SearchMethod{types.LexicalSearch, types.SemanticSearch, types.GraphSearch}
	}
	if o.Reranker == "" {
		o.Reranker = search.RRFRerankType
	}
	if o.BFSDepth <= 0 {
		o.BFSDepth = DefaultBFSDepth
	}
	if o.RRFK <= 0 {
		o.RRFK = search.DefaultRankConstant
	}
	if o.MMRLambda != nil && (*o.MMRLambda < 0 || *o.MMRLambda > 1) {
		o.MMRLambda = nil
	}
}

// Retrieve runs the full read path: multi-method search with overfetched
// limits, independent chunk and entity reranking in parallel, truncation
// to the configured limits, and knowledge-graph expansion from the top
// entities when the graph method was requested and any entity survived.
//
// A reranking failure fails the whole call; raw unranked candidates are
// never returned as if complete.
func (c *Client) Retrieve(ctx context.Context, query string, opts *RetrieveOptions) (*types.RetrievalResult, error) {
	options := c.config.Retrieval
	if opts != nil {
		options = *opts
	}
	options.normalize()

	candidates, err := c.coordinator.Search(ctx, query, search.Options{
		Methods:             options.Methods,
		ChunkLimit:          options.MaxChunks * overfetchFactor,
		EntityLimit:         options.MaxEntities * overfetchFactor,
		ChunkScoreThreshold: options.ChunkThreshold,
		BFSDepth:            options.BFSDepth,
	})
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	rerankerOpts := search.RerankerOptions{
		LLM:                   c.llm,
		Embedder:              c.embedder,
		RankConstant:          options.RRFK,
		MMRLambda:             options.MMRLambda,
		CrossEncoderThreshold: options.CrossEncoderThreshold,
	}
	chunkReranker, err := search.NewReranker[types.Chunk](options.Reranker, rerankerOpts)
	if err != nil {
		return nil, err
	}
	entityReranker, err := search.NewReranker[types.Entity](options.Reranker, rerankerOpts)
	if err != nil {
		return nil, err
	}

	// Chunk and entity reranking are independent; run them in parallel
	// and join before truncation.
	var rankedChunks []types.RankedResult[types.Chunk]
	var rankedEntities []types.RankedResult[types.Entity]
	errs := utils.SemaphoreGather(ctx, 2,
		func() error {
			ranked, err := chunkReranker.Rerank(ctx, query, candidates.Chunks)
			if err != nil {
				return fmt.Errorf("chunk reranking failed: %w", err)
			}
			rankedChunks = ranked
			return nil
		},
		func() error {
			ranked, err := entityReranker.Rerank(ctx, query, candidates.Entities)
			if err != nil {
				return fmt.Errorf("entity reranking failed: %w", err)
			}
			rankedEntities = ranked
			return nil
		},
	)
	if err := utils.FirstError(errs); err != nil {
		return nil, err
	}

	if len(rankedChunks) > options.MaxChunks {
		rankedChunks = rankedChunks[:options.MaxChunks]
	}
	if len(rankedEntities) > options.MaxEntities {
		rankedEntities = rankedEntities[:options.MaxEntities]
	}

	result := &types.RetrievalResult{
		Query:    query,
		Chunks:   rankedChunks,
		Entities: rankedEntities,
	}

	if containsMethod(options.Methods, types.GraphSearch) && len(rankedEntities) > 0 {
		seedIDs := make([]string, 0, len(rankedEntities))
		for _, ranked := range rankedEntities {
			seedIDs = append(seedIDs, ranked.Item.ID)
		}
		triples, err := c.expander.Expand(ctx, seedIDs, options.BFSDepth, options.MaxGraphTriples)
		if err != nil {
			return nil, fmt.Errorf("graph expansion failed: %w", err)
		}
		result.KnowledgeGraph = triples
	}

	return result, nil
}

// Synthesize answers the query from a retrieval result via the chat
// capability. With zero retrieved chunks it returns the fixed
// no-information answer without a model call.
func (c *Client) Synthesize(ctx context.Context, query string, result *types.RetrievalResult) (string, error) {
	if result == nil || len(result.Chunks) == 0 {
		return NoRelevantInformation, nil
	}

	resp, err := c.llm.Chat(ctx, []llm.Message{
		llm.NewSystemMessage(synthesisSystemPrompt),
		llm.NewUserMessage(synthesisUserPrompt(query, result)),
	})
	if err != nil {
		return "", fmt.Errorf("synthesis failed: %w", err)
	}
	return strings.TrimSpace(resp.Content), nil
}

const synthesisSystemPrompt = `You answer questions using only the provided context. The context contains text passages, known entities, and knowledge-graph facts. If the context does not contain the answer, say so. Cite passages by their number when useful.`

func synthesisUserPrompt(query string, result *types.RetrievalResult) string {
	var b strings.Builder
	b.WriteString("<PASSAGES>\n")
	for i, chunk := range result.Chunks {
		fmt.Fprintf(&b, "[%d] %s\n", i+1, chunk.Item.Content)
	}
	b.WriteString("</PASSAGES>\n")

	if len(result.Entities) > 0 {
		b.WriteString("<ENTITIES>\n")
		for _, entity := range result.Entities {
			fmt.Fprintf(&b, "- %s (%s): %s\n", entity.Item.Name, entity.Item.Type, entity.Item.Description)
		}
		b.WriteString("</ENTITIES>\n")
	}
	if len(result.KnowledgeGraph) > 0 {
		b.WriteString("<FACTS>\n")
		for _, triple := range result.KnowledgeGraph {
			fmt.Fprintf(&b, "- %s %s %s\n", triple.Source.Name, triple.Relationship, triple.Target.Name)
		}
		b.WriteString("</FACTS>\n")
	}

	fmt.Fprintf(&b, "\nQuestion: %s", query)
	return b.String()
}

// Stats reports combined store contents.
type Stats struct {
	Documents     int `json:"documents"`
	Chunks        int `json:"chunks"`
	Entities      int `json:"entities"`
	Relationships int `json:"relationships"`
}

// Stats queries both stores.
func (c *Client) Stats(ctx context.Context) (*Stats, error) {
	var chunkStats *store.ChunkStoreStats
	var graphStats *store.GraphStats
	errs := utils.SemaphoreGather(ctx, 2,
		func() error {
			stats, err := c.chunks.Stats(ctx)
			if err != nil {
				return fmt.Errorf("chunk store stats failed: %w", err)
			}
			chunkStats = stats
			return nil
		},
		func() error {
			stats, err := c.graph.Stats(ctx)
			if err != nil {
				return fmt.Errorf("graph store stats failed: %w", err)
			}
			graphStats = stats
			return nil
		},
	)
	if err := utils.FirstError(errs); err != nil {
		return nil, err
	}
	return &Stats{
		Documents:     chunkStats.DocumentCount,
		Chunks:        chunkStats.ChunkCount,
		Entities:      graphStats.EntityCount,
		Relationships: graphStats.RelationshipCount,
	}, nil
}

func containsMethod(methods []types.SearchMethod, method types.SearchMethod) bool {
	for _, m := range methods {
		if m == method {
			return true
		}
	}
	return false
}
