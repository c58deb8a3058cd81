package search

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/relaygraph/relaygraph/pkg/embedder"
	"github.com/relaygraph/relaygraph/pkg/llm"
	"github.com/relaygraph/relaygraph/pkg/types"
	"github.com/relaygraph/relaygraph/pkg/utils"
)

// RerankerType selects a fusion strategy.
type RerankerType string

const (
	RRFRerankType          RerankerType = "rrf"
	CrossEncoderRerankType RerankerType = "cross_encoder"
	MMRRerankType          RerankerType = "mmr"
	NoopRerankType         RerankerType = "noop"
)

// Fusion defaults.
const (
	DefaultRankConstant          = 60
	DefaultMMRLambda             = 0.5
	DefaultCrossEncoderThreshold = 0.5
)

// Reranker merges per-method result lists into one ranked, deduplicated
// list. Output order is a total order by the strategy's score, ties
// broken by discovery order.
type Reranker[T any] interface {
	Rerank(ctx context.Context, query string, results []types.SearchResult[T]) ([]types.RankedResult[T], error)
}

// RerankerOptions carries the capabilities and tuning knobs reranker
// construction may need.
type RerankerOptions struct {
	// LLM scores query-item relevance for the cross-encoder strategy.
	LLM llm.Client
	// Embedder embeds query and candidates for the MMR strategy.
	Embedder embedder.Client

	RankConstant int
	// MMRLambda and CrossEncoderThreshold are nil-means-default so an
	// explicit zero (pure-diversity MMR, keep-all cross-encoder) stays
	// representable.
	MMRLambda             *float64
	CrossEncoderThreshold *float64
	MaxConcurrency        int
}

// ErrRerankerCapabilityMissing is returned when a strategy is requested
// without the capability it needs. This is a hard construction failure,
// not a silent fallback to RRF.
var ErrRerankerCapabilityMissing = errors.New("search: reranker requires a capability that is not configured")

// ErrUnknownRerankerType is returned for a reranker type outside the
// closed strategy set.
var ErrUnknownRerankerType = errors.New("search: unknown reranker type")

// NewReranker constructs the requested strategy. Unknown types error.
func NewReranker[T any](kind RerankerType, opts RerankerOptions) (Reranker[T], error) {
	switch kind {
	case RRFRerankType, "":
		return &RRFReranker[T]{RankConstant: opts.RankConstant}, nil
	case CrossEncoderRerankType:
		if opts.LLM == nil {
			return nil, fmt.Errorf("%w: cross_encoder needs a language-model client", ErrRerankerCapabilityMissing)
		}
		threshold := DefaultCrossEncoderThreshold
		if opts.CrossEncoderThreshold != nil {
			threshold = *opts.CrossEncoderThreshold
		}
		return &CrossEncoderReranker[T]{
			llm:            opts.LLM,
			Threshold:      threshold,
			MaxConcurrency: opts.MaxConcurrency,
		}, nil
	case MMRRerankType:
		if opts.Embedder == nil {
			return nil, fmt.Errorf("%w: mmr needs an embedding client", ErrRerankerCapabilityMissing)
		}
		lambda := DefaultMMRLambda
		if opts.MMRLambda != nil {
			lambda = *opts.MMRLambda
		}
		return &MMRReranker[T]{embedder: opts.Embedder, Lambda: lambda}, nil
	case NoopRerankType:
		return &NoopReranker[T]{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownRerankerType, kind)
	}
}

// RRFReranker implements reciprocal rank fusion: items are scored by
// their rank within each method's list, not by raw scores, and the
// rank-scores sum across methods. An item found by several methods is
// structurally favored over a single-method item; that is the intended
// trade-off.
type RRFReranker[T any] struct {
	// RankConstant is the damping constant k in 1/(k+rank+1).
	RankConstant int
}

// Rerank implements Reranker.
func (r *RRFReranker[T]) Rerank(ctx context.Context, query string, results []types.SearchResult[T]) ([]types.RankedResult[T], error) {
	k := r.RankConstant
	if k <= 0 {
		k = DefaultRankConstant
	}

	// Group by source method, preserving per-method discovery order.
	groups := make(map[types.SearchMethod][]types.SearchResult[T])
	var methodOrder []types.SearchMethod
	for _, result := range results {
		if _, seen := groups[result.Source]; !seen {
			methodOrder = append(methodOrder, result.Source)
		}
		groups[result.Source] = append(groups[result.Source], result)
	}

	type fused struct {
		item    T
		score   float64
		sources []types.SearchMethod
		order   int
	}
	index := make(map[string]int)
	var entries []fused

	for _, method := range methodOrder {
		group := groups[method]
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].Score > group[j].Score
		})

		for rank, result := range group {
			rankScore := 1.0 / float64(k+rank+1)
			key := structuralKey(result.Item)
			if i, seen := index[key]; seen {
				entries[i].score += rankScore
				if !containsMethod(entries[i].sources, method) {
					entries[i].sources = append(entries[i].sources, method)
				}
				continue
			}
			index[key] = len(entries)
			entries = append(entries, fused{
				item:    result.Item,
				score:   rankScore,
				sources: []types.SearchMethod{method},
				order:   len(entries),
			})
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].score != entries[j].score {
			return entries[i].score > entries[j].score
		}
		return entries[i].order < entries[j].order
	})

	ranked := make([]types.RankedResult[T], len(entries))
	for i, entry := range entries {
		ranked[i] = types.RankedResult[T]{Item: entry.item, Score: entry.score, Sources: entry.sources}
	}
	return ranked, nil
}

// NoopReranker deduplicates keeping the maximum score seen across
// methods and sorts descending. Used when fusion nuance is unneeded.
type NoopReranker[T any] struct{}

// Rerank implements Reranker.
func (n *NoopReranker[T]) Rerank(ctx context.Context, query string, results []types.SearchResult[T]) ([]types.RankedResult[T], error) {
	deduped := dedupe(results)
	sort.SliceStable(deduped, func(i, j int) bool {
		if deduped[i].maxScore != deduped[j].maxScore {
			return deduped[i].maxScore > deduped[j].maxScore
		}
		return deduped[i].order < deduped[j].order
	})

	ranked := make([]types.RankedResult[T], len(deduped))
	for i, entry := range deduped {
		ranked[i] = types.RankedResult[T]{Item: entry.item, Score: entry.maxScore, Sources: entry.sources}
	}
	return ranked, nil
}

// CrossEncoderReranker asks the language model to rate query-item
// relevance in [0,1] per unique item and filters out items below the
// threshold. It is the only strategy allowed to drop items entirely.
type CrossEncoderReranker[T any] struct {
	llm            llm.Client
	Threshold      float64
	MaxConcurrency int
}

const crossEncoderSystemPrompt = `You rate how relevant a passage is to a query.
Respond with a single number between 0.0 and 1.0, nothing else.
1.0 means the passage directly answers the query; 0.0 means it is unrelated.`

// Rerank implements Reranker.
func (c *CrossEncoderReranker[T]) Rerank(ctx context.Context, query string, results []types.SearchResult[T]) ([]types.RankedResult[T], error) {
	threshold := c.Threshold

	deduped := dedupe(results)
	if len(deduped) == 0 {
		return nil, nil
	}

	calls := make([]func() (float64, error), len(deduped))
	for i, entry := range deduped {
		entry := entry
		calls[i] = func() (float64, error) {
			return c.scoreItem(ctx, query, scoringText(entry.item))
		}
	}
	scores, errs := utils.GatherWithResults(ctx, c.MaxConcurrency, calls...)
	if err := utils.FirstError(errs); err != nil {
		return nil, fmt.Errorf("cross-encoder scoring failed: %w", err)
	}

	type scored struct {
		entry dedupedResult[T]
		score float64
	}
	var kept []scored
	for i, entry := range deduped {
		if scores[i] >= threshold {
			kept = append(kept, scored{entry: entry, score: scores[i]})
		}
	}

	sort.SliceStable(kept, func(i, j int) bool {
		if kept[i].score != kept[j].score {
			return kept[i].score > kept[j].score
		}
		return kept[i].entry.order < kept[j].entry.order
	})

	ranked := make([]types.RankedResult[T], len(kept))
	for i, entry := range kept {
		ranked[i] = types.RankedResult[T]{Item: entry.entry.item, Score: entry.score, Sources: entry.entry.sources}
	}
	return ranked, nil
}

func (c *CrossEncoderReranker[T]) scoreItem(ctx context.Context, query, text string) (float64, error) {
	resp, err := c.llm.Chat(ctx, []llm.Message{
		llm.NewSystemMessage(crossEncoderSystemPrompt),
		llm.NewUserMessage(fmt.Sprintf("Query: %s\n\nPassage: %s", query, text)),
	})
	if err != nil {
		return 0, err
	}
	return parseRelevance(resp.Content), nil
}

// parseRelevance extracts a relevance score from model output. Values
// outside [0,1] clamp; unparsable output defaults to 0.
func parseRelevance(content string) float64 {
	trimmed := strings.TrimSpace(content)

	score, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		var payload struct {
			Score float64 `json:"score"`
		}
		if llm.DecodeJSON(trimmed, &payload) != nil {
			return 0
		}
		score = payload.Score
	}

	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// MMRReranker implements maximal marginal relevance: a greedy selection
// balancing relevance to the query against similarity to already selected
// items. It produces a full ranked permutation and never truncates; each
// pick changes subsequent scores.
type MMRReranker[T any] struct {
	embedder embedder.Client
	Lambda   float64
}

// Rerank implements Reranker.
func (m *MMRReranker[T]) Rerank(ctx context.Context, query string, results []types.SearchResult[T]) ([]types.RankedResult[T], error) {
	lambda := m.Lambda

	deduped := dedupe(results)
	if len(deduped) == 0 {
		return nil, nil
	}

	texts := make([]string, 0, len(deduped)+1)
	texts = append(texts, query)
	for _, entry := range deduped {
		texts = append(texts, scoringText(entry.item))
	}

	vectors, err := m.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("mmr embedding failed: %w", err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("mmr: got %d embeddings for %d texts", len(vectors), len(texts))
	}

	queryVector := utils.NormalizeL2(vectors[0])
	candidateVectors := make([][]float32, len(deduped))
	relevance := make([]float64, len(deduped))
	for i := range deduped {
		candidateVectors[i] = utils.NormalizeL2(vectors[i+1])
		relevance[i] = utils.CosineSimilarity(queryVector, candidateVectors[i])
	}

	// Greedy selection: one pick per iteration until the pool is empty.
	remaining := make([]int, len(deduped))
	for i := range remaining {
		remaining[i] = i
	}
	var selected []int

	ranked := make([]types.RankedResult[T], 0, len(deduped))
	for len(remaining) > 0 {
		bestPos := 0
		bestScore := mmrScore(remaining[0], selected, relevance, candidateVectors, lambda)
		for pos := 1; pos < len(remaining); pos++ {
			score := mmrScore(remaining[pos], selected, relevance, candidateVectors, lambda)
			if score > bestScore {
				bestScore = score
				bestPos = pos
			}
		}

		chosen := remaining[bestPos]
		remaining = append(remaining[:bestPos], remaining[bestPos+1:]...)
		selected = append(selected, chosen)

		ranked = append(ranked, types.RankedResult[T]{
			Item:    deduped[chosen].item,
			Score:   bestScore,
			Sources: deduped[chosen].sources,
		})
	}
	return ranked, nil
}

func mmrScore(candidate int, selected []int, relevance []float64, vectors [][]float32, lambda float64) float64 {
	maxSim := 0.0
	for _, s := range selected {
		if sim := utils.CosineSimilarity(vectors[candidate], vectors[s]); sim > maxSim {
			maxSim = sim
		}
	}
	return lambda*relevance[candidate] - (1-lambda)*maxSim
}
