package relaygraph

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/relaygraph/relaygraph/pkg/llm"
	"github.com/relaygraph/relaygraph/pkg/store"
	"github.com/relaygraph/relaygraph/pkg/types"
	"github.com/relaygraph/relaygraph/pkg/utils"
)

// memChunkStore is an in-memory store.ChunkStore with content-hash
// document dedup, cosine vector search, and term-overlap lexical search.
type memChunkStore struct {
	docIDByHash map[string]string
	docs        map[string]string
	chunks      []*types.Chunk
	nextID      int
}

func newMemChunkStore() *memChunkStore {
	return &memChunkStore{
		docIDByHash: make(map[string]string),
		docs:        make(map[string]string),
	}
}

func (m *memChunkStore) UpsertDocument(ctx context.Context, name, content string, metadata map[string]string) (*store.UpsertDocumentResult, error) {
	sum := sha256.Sum256([]byte(content))
	hash := hex.EncodeToString(sum[:])
	if id, ok := m.docIDByHash[hash]; ok {
		return &store.UpsertDocumentResult{ID: id, IsNew: false}, nil
	}
	m.nextID++
	id := fmt.Sprintf("doc-%d", m.nextID)
	m.docIDByHash[hash] = id
	m.docs[id] = hash
	return &store.UpsertDocumentResult{ID: id, IsNew: true}, nil
}

func (m *memChunkStore) AddChunks(ctx context.Context, documentID string, chunks []*types.Chunk) ([]string, error) {
	ids := make([]string, len(chunks))
	for i, chunk := range chunks {
		m.nextID++
		chunk.ID = fmt.Sprintf("chunk-%d", m.nextID)
		chunk.DocumentID = documentID
		m.chunks = append(m.chunks, chunk)
		ids[i] = chunk.ID
	}
	return ids, nil
}

func (m *memChunkStore) DeleteDocument(ctx context.Context, documentID string) error {
	hash, ok := m.docs[documentID]
	if !ok {
		return nil
	}
	delete(m.docs, documentID)
	delete(m.docIDByHash, hash)
	kept := m.chunks[:0]
	for _, chunk := range m.chunks {
		if chunk.DocumentID != documentID {
			kept = append(kept, chunk)
		}
	}
	m.chunks = kept
	return nil
}

func (m *memChunkStore) SearchChunks(ctx context.Context, embedding []float32, limit int, threshold float64) ([]store.ChunkHit, error) {
	var hits []store.ChunkHit
	for _, chunk := range m.chunks {
		score := utils.CosineSimilarity(embedding, chunk.Embedding)
		if score >= threshold {
			hits = append(hits, store.ChunkHit{Chunk: *chunk, Score: score})
		}
	}
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func (m *memChunkStore) SearchLexical(ctx context.Context, query string, limit int) ([]store.ChunkHit, error) {
	terms := strings.Fields(strings.ToLower(query))
	var hits []store.ChunkHit
	for _, chunk := range m.chunks {
		content := strings.ToLower(chunk.Content)
		overlap := 0
		for _, term := range terms {
			if strings.Contains(content, strings.Trim(term, "?.,!")) {
				overlap++
			}
		}
		if overlap > 0 {
			hits = append(hits, store.ChunkHit{Chunk: *chunk, Score: float64(overlap)})
		}
	}
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func (m *memChunkStore) Stats(ctx context.Context) (*store.ChunkStoreStats, error) {
	return &store.ChunkStoreStats{DocumentCount: len(m.docs), ChunkCount: len(m.chunks)}, nil
}

func (m *memChunkStore) Close() error { return nil }

// memGraphStore is an in-memory store.GraphStore with endpoint existence
// enforcement and real one-hop BFS.
type memGraphStore struct {
	order    []string
	entities map[string]*types.Entity
	rels     []*types.Relationship
}

func newMemGraphStore() *memGraphStore {
	return &memGraphStore{entities: make(map[string]*types.Entity)}
}

func (m *memGraphStore) UpsertEntity(ctx context.Context, entity *types.Entity) error {
	if _, ok := m.entities[entity.ID]; !ok {
		m.order = append(m.order, entity.ID)
	}
	copied := *entity
	m.entities[entity.ID] = &copied
	return nil
}

func (m *memGraphStore) UpsertRelationship(ctx context.Context, rel *types.Relationship) error {
	if _, ok := m.entities[rel.SourceID]; !ok {
		return store.ErrEndpointMissing
	}
	if _, ok := m.entities[rel.TargetID]; !ok {
		return store.ErrEndpointMissing
	}
	for i, existing := range m.rels {
		if existing.ID == rel.ID {
			m.rels[i] = rel
			return nil
		}
	}
	m.rels = append(m.rels, rel)
	return nil
}

func (m *memGraphStore) SearchEntities(ctx context.Context, query string, limit int) ([]types.Entity, error) {
	lowered := strings.ToLower(query)
	var found []types.Entity
	for _, id := range m.order {
		entity := m.entities[id]
		if strings.Contains(lowered, strings.ToLower(entity.Name)) ||
			strings.Contains(strings.ToLower(entity.Name), lowered) {
			found = append(found, *entity)
		}
	}
	if len(found) > limit {
		found = found[:limit]
	}
	return found, nil
}

func (m *memGraphStore) SearchEntitiesWithScore(ctx context.Context, query string, limit int) ([]store.EntityHit, error) {
	entities, err := m.SearchEntities(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	hits := make([]store.EntityHit, len(entities))
	for i, entity := range entities {
		hits[i] = store.EntityHit{Entity: entity, Score: 1.0}
	}
	return hits, nil
}

func (m *memGraphStore) GetNeighbors(ctx context.Context, entityIDs []string) ([]types.KnowledgeGraphTriple, error) {
	wanted := make(map[string]struct{}, len(entityIDs))
	for _, id := range entityIDs {
		wanted[id] = struct{}{}
	}
	var triples []types.KnowledgeGraphTriple
	for _, rel := range m.rels {
		_, src := wanted[rel.SourceID]
		_, dst := wanted[rel.TargetID]
		if !src && !dst {
			continue
		}
		triples = append(triples, types.KnowledgeGraphTriple{
			Source:       m.ref(rel.SourceID),
			Relationship: rel.Type,
			Target:       m.ref(rel.TargetID),
			Fact:         rel.Fact,
		})
	}
	return triples, nil
}

func (m *memGraphStore) ref(id string) types.EntityRef {
	if entity, ok := m.entities[id]; ok {
		return entity.Ref()
	}
	return types.EntityRef{ID: id, Name: id}
}

func (m *memGraphStore) BFSSearch(ctx context.Context, seedIDs []string, depth, limit int) ([]store.BFSHit, error) {
	seen := make(map[string]int, len(seedIDs))
	frontier := seedIDs
	for _, id := range seedIDs {
		seen[id] = 0
	}
	var hits []store.BFSHit
	for d := 1; d <= depth && len(frontier) > 0; d++ {
		var next []string
		for _, rel := range m.rels {
			for _, id := range frontier {
				var other string
				if rel.SourceID == id {
					other = rel.TargetID
				} else if rel.TargetID == id {
					other = rel.SourceID
				} else {
					continue
				}
				if _, ok := seen[other]; ok {
					continue
				}
				seen[other] = d
				next = append(next, other)
				if entity, ok := m.entities[other]; ok && len(hits) < limit {
					hits = append(hits, store.BFSHit{Entity: *entity, Depth: d})
				}
			}
		}
		frontier = next
	}
	return hits, nil
}

func (m *memGraphStore) Stats(ctx context.Context) (*store.GraphStats, error) {
	return &store.GraphStats{EntityCount: len(m.entities), RelationshipCount: len(m.rels)}, nil
}

func (m *memGraphStore) Close() error { return nil }

// fakeLLM answers extraction prompts with a canned JSON payload and every
// other prompt with a fixed answer.
type fakeLLM struct {
	extraction string
	answer     string
	err        error

	chatCalls int
	jsonCalls int
}

func (f *fakeLLM) Chat(ctx context.Context, messages []llm.Message) (*llm.Response, error) {
	f.chatCalls++
	if f.err != nil {
		return nil, f.err
	}
	return &llm.Response{Content: f.answer}, nil
}

func (f *fakeLLM) ChatJSON(ctx context.Context, messages []llm.Message) (*llm.Response, error) {
	f.jsonCalls++
	if f.err != nil {
		return nil, f.err
	}
	return &llm.Response{Content: f.extraction}, nil
}

func (f *fakeLLM) Close() error { return nil }

// fakeEmbedder serves fixed vectors by exact text, with a default for
// anything unlisted.
type fakeEmbedder struct {
	vectors map[string][]float32
	base    []float32
}

func newFakeEmbedder() *fakeEmbedder {
	return &fakeEmbedder{vectors: make(map[string][]float32), base: []float32{0, 0, 1}}
}

func (f *fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = f.vectorFor(text)
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	return f.vectorFor(text), nil
}

func (f *fakeEmbedder) vectorFor(text string) []float32 {
	if v, ok := f.vectors[text]; ok {
		return v
	}
	return f.base
}

func (f *fakeEmbedder) Dimensions() int { return 3 }

func (f *fakeEmbedder) Close() error { return nil }
