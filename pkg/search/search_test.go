package search

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaygraph/relaygraph/pkg/store"
	"github.com/relaygraph/relaygraph/pkg/types"
)

func TestCoordinatorEmptyQuery(t *testing.T) {
	coordinator := NewCoordinator(&mockChunkStore{}, &mockGraphStore{}, &mockEmbedder{}, nil)

	candidates, err := coordinator.Search(context.Background(), "   ", Options{})
	require.NoError(t, err)
	assert.Empty(t, candidates.Chunks)
	assert.Empty(t, candidates.Entities)
}

func TestCoordinatorLexicalNormalization(t *testing.T) {
	chunks := &mockChunkStore{lexicalHits: []store.ChunkHit{
		{Chunk: types.Chunk{ID: "top", Content: "top hit"}, Score: 4.0},
		{Chunk: types.Chunk{ID: "mid", Content: "mid hit"}, Score: 2.0},
	}}
	coordinator := NewCoordinator(chunks, &mockGraphStore{}, &mockEmbedder{}, nil)

	candidates, err := coordinator.Search(context.Background(), "query", Options{
		Methods:    []types.SearchMethod{types.LexicalSearch},
		ChunkLimit: 10,
	})
	require.NoError(t, err)
	require.Len(t, candidates.Chunks, 2)

	// Top raw score maps to exactly 1.0.
	assert.Equal(t, 1.0, candidates.Chunks[0].Score)
	assert.Equal(t, 0.5, candidates.Chunks[1].Score)
	assert.Equal(t, types.LexicalSearch, candidates.Chunks[0].Source)
}

func TestCoordinatorLexicalAllZeroScores(t *testing.T) {
	chunks := &mockChunkStore{lexicalHits: []store.ChunkHit{
		{Chunk: types.Chunk{ID: "a", Content: "a"}, Score: 0},
		{Chunk: types.Chunk{ID: "b", Content: "b"}, Score: 0},
	}}
	coordinator := NewCoordinator(chunks, &mockGraphStore{}, &mockEmbedder{}, nil)

	candidates, err := coordinator.Search(context.Background(), "query", Options{
		Methods: []types.SearchMethod{types.LexicalSearch},
	})
	require.NoError(t, err)
	for _, result := range candidates.Chunks {
		assert.Equal(t, 0.0, result.Score)
	}
}

func TestCoordinatorSemanticPassthrough(t *testing.T) {
	chunks := &mockChunkStore{semanticHits: []store.ChunkHit{
		{Chunk: types.Chunk{ID: "s", Content: "semantic"}, Score: 0.83},
	}}
	embedder := &mockEmbedder{}
	coordinator := NewCoordinator(chunks, &mockGraphStore{}, embedder, nil)

	candidates, err := coordinator.Search(context.Background(), "query", Options{
		Methods: []types.SearchMethod{types.SemanticSearch},
	})
	require.NoError(t, err)
	require.Len(t, candidates.Chunks, 1)
	assert.Equal(t, 0.83, candidates.Chunks[0].Score)
	assert.Equal(t, types.SemanticSearch, candidates.Chunks[0].Source)
	assert.Equal(t, 1, embedder.calls, "query embedded exactly once")
}

func TestCoordinatorGraphEntityScores(t *testing.T) {
	graph := &mockGraphStore{
		entities: []types.Entity{{ID: "seed", Name: "Seed"}},
		bfsHits: []store.BFSHit{
			{Entity: types.Entity{ID: "near", Name: "Near"}, Depth: 1},
			{Entity: types.Entity{ID: "far", Name: "Far"}, Depth: 2},
		},
	}
	coordinator := NewCoordinator(&mockChunkStore{}, graph, &mockEmbedder{}, nil)

	candidates, err := coordinator.Search(context.Background(), "query", Options{
		Methods:  []types.SearchMethod{types.GraphSearch},
		BFSDepth: 2,
	})
	require.NoError(t, err)
	require.Len(t, candidates.Entities, 2)

	// Direct neighbors score 0.5, two hops out scores 1/3.
	assert.Equal(t, 0.5, candidates.Entities[0].Score)
	assert.InDelta(t, 1.0/3.0, candidates.Entities[1].Score, 1e-12)
	assert.Equal(t, types.GraphSearch, candidates.Entities[0].Source)
}

func TestCoordinatorGraphMethodNoSeeds(t *testing.T) {
	coordinator := NewCoordinator(&mockChunkStore{}, &mockGraphStore{}, &mockEmbedder{}, nil)

	candidates, err := coordinator.Search(context.Background(), "query", Options{
		Methods: []types.SearchMethod{types.GraphSearch},
	})
	require.NoError(t, err)
	assert.Empty(t, candidates.Entities, "no seeds means empty, not an error")
}

func TestCoordinatorMergesAllMethods(t *testing.T) {
	chunks := &mockChunkStore{
		lexicalHits:  []store.ChunkHit{{Chunk: types.Chunk{ID: "l", Content: "lex"}, Score: 1}},
		semanticHits: []store.ChunkHit{{Chunk: types.Chunk{ID: "s", Content: "sem"}, Score: 0.9}},
	}
	graph := &mockGraphStore{
		entities:   []types.Entity{{ID: "seed", Name: "Seed"}},
		scoredHits: []store.EntityHit{{Entity: types.Entity{ID: "e", Name: "Ent"}, Score: 2.5}},
		bfsHits:    []store.BFSHit{{Entity: types.Entity{ID: "n", Name: "Near"}, Depth: 1}},
	}
	coordinator := NewCoordinator(chunks, graph, &mockEmbedder{}, nil)

	candidates, err := coordinator.Search(context.Background(), "query", Options{
		ChunkLimit:  10,
		EntityLimit: 10,
		BFSDepth:    2,
	})
	require.NoError(t, err)
	assert.Len(t, candidates.Chunks, 2)
	assert.Len(t, candidates.Entities, 2)
}

func TestCoordinatorSubSearchFailureFailsCall(t *testing.T) {
	boom := errors.New("store offline")
	chunks := &mockChunkStore{
		lexicalErr:   boom,
		semanticHits: []store.ChunkHit{{Chunk: types.Chunk{ID: "s", Content: "sem"}, Score: 0.9}},
	}
	coordinator := NewCoordinator(chunks, &mockGraphStore{}, &mockEmbedder{}, nil)

	_, err := coordinator.Search(context.Background(), "query", Options{
		Methods: []types.SearchMethod{types.LexicalSearch, types.SemanticSearch},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestCoordinatorEmbeddingFailure(t *testing.T) {
	embedder := &mockEmbedder{err: errors.New("embedding down")}
	coordinator := NewCoordinator(&mockChunkStore{}, &mockGraphStore{}, embedder, nil)

	_, err := coordinator.Search(context.Background(), "query", Options{
		Methods: []types.SearchMethod{types.SemanticSearch},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to embed query")
}
