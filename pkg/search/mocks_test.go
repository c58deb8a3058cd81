package search

import (
	"context"
	"strings"

	"github.com/relaygraph/relaygraph/pkg/llm"
	"github.com/relaygraph/relaygraph/pkg/store"
	"github.com/relaygraph/relaygraph/pkg/types"
)

// mockChunkStore implements store.ChunkStore for testing.
type mockChunkStore struct {
	lexicalHits  []store.ChunkHit
	semanticHits []store.ChunkHit
	lexicalErr   error
	semanticErr  error
}

func (m *mockChunkStore) UpsertDocument(ctx context.Context, name, content string, metadata map[string]string) (*store.UpsertDocumentResult, error) {
	return nil, nil
}

func (m *mockChunkStore) AddChunks(ctx context.Context, documentID string, chunks []*types.Chunk) ([]string, error) {
	return nil, nil
}

func (m *mockChunkStore) DeleteDocument(ctx context.Context, documentID string) error { return nil }

func (m *mockChunkStore) SearchChunks(ctx context.Context, embedding []float32, limit int, threshold float64) ([]store.ChunkHit, error) {
	return m.semanticHits, m.semanticErr
}

func (m *mockChunkStore) SearchLexical(ctx context.Context, query string, limit int) ([]store.ChunkHit, error) {
	return m.lexicalHits, m.lexicalErr
}

func (m *mockChunkStore) Stats(ctx context.Context) (*store.ChunkStoreStats, error) {
	return &store.ChunkStoreStats{}, nil
}

func (m *mockChunkStore) Close() error { return nil }

// mockGraphStore implements store.GraphStore for testing.
type mockGraphStore struct {
	entities    []types.Entity
	scoredHits  []store.EntityHit
	bfsHits     []store.BFSHit
	neighbors   map[string][]types.KnowledgeGraphTriple
	searchErr   error
	bfsErr      error
	neighborErr error

	bfsCalls      [][]string
	neighborCalls [][]string
}

func (m *mockGraphStore) UpsertEntity(ctx context.Context, entity *types.Entity) error { return nil }

func (m *mockGraphStore) UpsertRelationship(ctx context.Context, rel *types.Relationship) error {
	return nil
}

func (m *mockGraphStore) SearchEntities(ctx context.Context, query string, limit int) ([]types.Entity, error) {
	return m.entities, m.searchErr
}

func (m *mockGraphStore) SearchEntitiesWithScore(ctx context.Context, query string, limit int) ([]store.EntityHit, error) {
	return m.scoredHits, m.searchErr
}

func (m *mockGraphStore) GetNeighbors(ctx context.Context, entityIDs []string) ([]types.KnowledgeGraphTriple, error) {
	m.neighborCalls = append(m.neighborCalls, entityIDs)
	if m.neighborErr != nil {
		return nil, m.neighborErr
	}
	var triples []types.KnowledgeGraphTriple
	for _, id := range entityIDs {
		triples = append(triples, m.neighbors[id]...)
	}
	return triples, nil
}

func (m *mockGraphStore) BFSSearch(ctx context.Context, seedIDs []string, depth, limit int) ([]store.BFSHit, error) {
	m.bfsCalls = append(m.bfsCalls, seedIDs)
	if m.bfsErr != nil {
		return nil, m.bfsErr
	}
	hits := m.bfsHits
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func (m *mockGraphStore) Stats(ctx context.Context) (*store.GraphStats, error) {
	return &store.GraphStats{}, nil
}

func (m *mockGraphStore) Close() error { return nil }

// mockEmbedder returns deterministic vectors keyed by text.
type mockEmbedder struct {
	vectors  map[string][]float32
	fallback []float32
	err      error
	calls    int
}

func (m *mockEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if v, ok := m.vectors[text]; ok {
			out[i] = v
		} else if m.fallback != nil {
			out[i] = m.fallback
		} else {
			out[i] = []float32{1, 0, 0}
		}
	}
	return out, nil
}

func (m *mockEmbedder) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	vectors, err := m.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (m *mockEmbedder) Dimensions() int { return 3 }
func (m *mockEmbedder) Close() error    { return nil }

// mockRelevanceLLM returns canned relevance scores keyed by passage
// substring, simulating the cross-encoder capability.
type mockRelevanceLLM struct {
	scores map[string]string
	err    error
}

func (m *mockRelevanceLLM) Chat(ctx context.Context, messages []llm.Message) (*llm.Response, error) {
	if m.err != nil {
		return nil, m.err
	}
	prompt := messages[len(messages)-1].Content
	for marker, score := range m.scores {
		if strings.Contains(prompt, marker) {
			return &llm.Response{Content: score}, nil
		}
	}
	return &llm.Response{Content: "0"}, nil
}

func (m *mockRelevanceLLM) ChatJSON(ctx context.Context, messages []llm.Message) (*llm.Response, error) {
	return m.Chat(ctx, messages)
}

func (m *mockRelevanceLLM) Close() error { return nil }
