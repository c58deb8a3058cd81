package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaygraph/relaygraph/pkg/types"
)

func chunkResult(id, content string, score float64, source types.SearchMethod) types.SearchResult[types.Chunk] {
	return types.SearchResult[types.Chunk]{
		Item:   types.Chunk{ID: id, Content: content},
		Score:  score,
		Source: source,
	}
}

func TestRRFMultiMethodItemOutranksSingleMethod(t *testing.T) {
	// Same per-method raw score, but "both" is found by two methods.
	results := []types.SearchResult[types.Chunk]{
		chunkResult("both", "found twice", 0.8, types.LexicalSearch),
		chunkResult("both", "found twice", 0.8, types.SemanticSearch),
		chunkResult("single", "found once", 0.8, types.LexicalSearch),
	}

	reranker := &RRFReranker[types.Chunk]{}
	ranked, err := reranker.Rerank(context.Background(), "q", results)
	require.NoError(t, err)
	require.Len(t, ranked, 2)

	assert.Equal(t, "both", ranked[0].Item.ID)
	assert.Equal(t, "single", ranked[1].Item.ID)
	assert.Greater(t, ranked[0].Score, ranked[1].Score)
	assert.ElementsMatch(t,
		[]types.SearchMethod{types.LexicalSearch, types.SemanticSearch},
		ranked[0].Sources)
}

func TestRRFRankScores(t *testing.T) {
	results := []types.SearchResult[types.Chunk]{
		chunkResult("a", "alpha", 0.9, types.LexicalSearch),
		chunkResult("b", "beta", 0.5, types.LexicalSearch),
	}

	reranker := &RRFReranker[types.Chunk]{RankConstant: 60}
	ranked, err := reranker.Rerank(context.Background(), "q", results)
	require.NoError(t, err)
	require.Len(t, ranked, 2)

	// rank 0 scores 1/61, rank 1 scores 1/62.
	assert.InDelta(t, 1.0/61.0, ranked[0].Score, 1e-12)
	assert.InDelta(t, 1.0/62.0, ranked[1].Score, 1e-12)
}

func TestRRFTieBrokenByDiscoveryOrder(t *testing.T) {
	results := []types.SearchResult[types.Chunk]{
		chunkResult("first", "one", 0.7, types.LexicalSearch),
		chunkResult("second", "two", 0.7, types.SemanticSearch),
	}

	reranker := &RRFReranker[types.Chunk]{}
	ranked, err := reranker.Rerank(context.Background(), "q", results)
	require.NoError(t, err)
	require.Len(t, ranked, 2)
	assert.Equal(t, "first", ranked[0].Item.ID)
}

func TestNoopKeepsMaxScoreAcrossMethods(t *testing.T) {
	results := []types.SearchResult[types.Chunk]{
		chunkResult("x", "same item", 0.7, types.LexicalSearch),
		chunkResult("x", "same item", 0.9, types.SemanticSearch),
	}

	reranker := &NoopReranker[types.Chunk]{}
	ranked, err := reranker.Rerank(context.Background(), "q", results)
	require.NoError(t, err)
	require.Len(t, ranked, 1)
	assert.Equal(t, 0.9, ranked[0].Score)
	assert.ElementsMatch(t,
		[]types.SearchMethod{types.LexicalSearch, types.SemanticSearch},
		ranked[0].Sources)
}

func TestStructuralDedupKeepsDifferingItemsApart(t *testing.T) {
	// Same id but different content: structurally distinct, so no merge.
	results := []types.SearchResult[types.Chunk]{
		chunkResult("x", "variant one", 0.7, types.LexicalSearch),
		chunkResult("x", "variant two", 0.9, types.SemanticSearch),
	}

	reranker := &NoopReranker[types.Chunk]{}
	ranked, err := reranker.Rerank(context.Background(), "q", results)
	require.NoError(t, err)
	assert.Len(t, ranked, 2)
}

func TestCrossEncoderThresholdFilter(t *testing.T) {
	results := []types.SearchResult[types.Chunk]{
		chunkResult("a", "passage alpha", 0.5, types.LexicalSearch),
		chunkResult("b", "passage beta", 0.5, types.LexicalSearch),
		chunkResult("c", "passage gamma", 0.5, types.LexicalSearch),
	}
	mock := &mockRelevanceLLM{scores: map[string]string{
		"passage alpha": "0.9",
		"passage beta":  "0.3",
		"passage gamma": "0.6",
	}}

	reranker := &CrossEncoderReranker[types.Chunk]{llm: mock, Threshold: 0.5}
	ranked, err := reranker.Rerank(context.Background(), "q", results)
	require.NoError(t, err)
	require.Len(t, ranked, 2)
	assert.Equal(t, "a", ranked[0].Item.ID)
	assert.Equal(t, 0.9, ranked[0].Score)
	assert.Equal(t, "c", ranked[1].Item.ID)
	assert.Equal(t, 0.6, ranked[1].Score)
}

func TestParseRelevance(t *testing.T) {
	assert.Equal(t, 0.7, parseRelevance("0.7"))
	assert.Equal(t, 0.7, parseRelevance("  0.7\n"))
	assert.Equal(t, 0.42, parseRelevance(`{"score": 0.42}`))
	assert.Equal(t, 1.0, parseRelevance("3.5"))
	assert.Equal(t, 0.0, parseRelevance("-2"))
	assert.Equal(t, 0.0, parseRelevance("not a number"))
	assert.Equal(t, 0.0, parseRelevance(""))
}

func TestMMRTerminationAndCompleteness(t *testing.T) {
	results := []types.SearchResult[types.Chunk]{
		chunkResult("a", "alpha text", 0.9, types.SemanticSearch),
		chunkResult("b", "beta text", 0.8, types.SemanticSearch),
		chunkResult("c", "alpha text near duplicate", 0.7, types.SemanticSearch),
		chunkResult("a", "alpha text", 0.6, types.LexicalSearch),
	}
	embedder := &mockEmbedder{vectors: map[string][]float32{
		"q":                         {1, 0, 0},
		"alpha text":                {1, 0, 0},
		"alpha text near duplicate": {0.95, 0.05, 0},
		"beta text":                 {0, 1, 0},
	}}

	reranker := &MMRReranker[types.Chunk]{embedder: embedder, Lambda: 0.5}
	ranked, err := reranker.Rerank(context.Background(), "q", results)
	require.NoError(t, err)

	// 3 unique items in, exactly 3 out, each exactly once.
	require.Len(t, ranked, 3)
	seen := map[string]int{}
	for _, r := range ranked {
		seen[r.Item.ID]++
	}
	assert.Equal(t, map[string]int{"a": 1, "b": 1, "c": 1}, seen)
}

func TestMMRFavorsDiversityAfterFirstPick(t *testing.T) {
	results := []types.SearchResult[types.Chunk]{
		chunkResult("a", "alpha text", 0.9, types.SemanticSearch),
		chunkResult("dup", "alpha text duplicate", 0.8, types.SemanticSearch),
		chunkResult("div", "different topic", 0.7, types.SemanticSearch),
	}
	embedder := &mockEmbedder{vectors: map[string][]float32{
		"q":                    {1, 0, 0},
		"alpha text":           {0.8, 0.6, 0},
		"alpha text duplicate": {0.8, 0.6, 0.01},
		"different topic":      {0.6, -0.8, 0},
	}}

	reranker := &MMRReranker[types.Chunk]{embedder: embedder, Lambda: 0.5}
	ranked, err := reranker.Rerank(context.Background(), "q", results)
	require.NoError(t, err)
	require.Len(t, ranked, 3)

	// Most relevant first; then the diverse item beats the near-duplicate.
	assert.Equal(t, "a", ranked[0].Item.ID)
	assert.Equal(t, "div", ranked[1].Item.ID)
	assert.Equal(t, "dup", ranked[2].Item.ID)
}

func TestNewRerankerTuningDefaultsAndExplicitZero(t *testing.T) {
	mock := &mockRelevanceLLM{scores: map[string]string{}}
	embedder := &mockEmbedder{vectors: map[string][]float32{}}

	r, err := NewReranker[types.Chunk](CrossEncoderRerankType, RerankerOptions{LLM: mock})
	require.NoError(t, err)
	assert.Equal(t, DefaultCrossEncoderThreshold, r.(*CrossEncoderReranker[types.Chunk]).Threshold)

	zero := 0.0
	r, err = NewReranker[types.Chunk](CrossEncoderRerankType, RerankerOptions{LLM: mock, CrossEncoderThreshold: &zero})
	require.NoError(t, err)
	assert.Zero(t, r.(*CrossEncoderReranker[types.Chunk]).Threshold)

	r, err = NewReranker[types.Chunk](MMRRerankType, RerankerOptions{Embedder: embedder})
	require.NoError(t, err)
	assert.Equal(t, DefaultMMRLambda, r.(*MMRReranker[types.Chunk]).Lambda)

	r, err = NewReranker[types.Chunk](MMRRerankType, RerankerOptions{Embedder: embedder, MMRLambda: &zero})
	require.NoError(t, err)
	assert.Zero(t, r.(*MMRReranker[types.Chunk]).Lambda)
}

func TestCrossEncoderZeroThresholdKeepsAll(t *testing.T) {
	results := []types.SearchResult[types.Chunk]{
		chunkResult("a", "passage alpha", 0.5, types.LexicalSearch),
		chunkResult("b", "passage beta", 0.5, types.LexicalSearch),
	}
	mock := &mockRelevanceLLM{scores: map[string]string{
		"passage alpha": "0.9",
		"passage beta":  "0.1",
	}}

	reranker := &CrossEncoderReranker[types.Chunk]{llm: mock, Threshold: 0}
	ranked, err := reranker.Rerank(context.Background(), "q", results)
	require.NoError(t, err)
	require.Len(t, ranked, 2)
	assert.Equal(t, "a", ranked[0].Item.ID)
	assert.Equal(t, "b", ranked[1].Item.ID)
}

func TestNewRerankerCapabilityRequirements(t *testing.T) {
	_, err := NewReranker[types.Chunk](CrossEncoderRerankType, RerankerOptions{})
	assert.ErrorIs(t, err, ErrRerankerCapabilityMissing)

	_, err = NewReranker[types.Chunk](MMRRerankType, RerankerOptions{})
	assert.ErrorIs(t, err, ErrRerankerCapabilityMissing)

	_, err = NewReranker[types.Chunk](RRFRerankType, RerankerOptions{})
	assert.NoError(t, err)

	_, err = NewReranker[types.Chunk]("bogus", RerankerOptions{})
	assert.ErrorIs(t, err, ErrUnknownRerankerType)
}
