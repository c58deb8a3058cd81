// Package store defines the two persistence contracts relaygraph is
// built on: a relational chunk store for documents, text chunks, and
// their embeddings, and a property-graph store for entities and typed
// relationships. The stores do not reference each other; cross-store
// links are opaque id strings with no referential integrity enforced.
package store

import (
	"context"
	"errors"

	"github.com/relaygraph/relaygraph/pkg/types"
)

// UpsertDocumentResult reports the outcome of a content-addressed
// document write. IsNew is false when content with the same hash already
// existed; the caller treats that as a no-op.
type UpsertDocumentResult struct {
	ID    string
	IsNew bool
}

// ChunkHit is one chunk search result with its raw engine score:
// cosine similarity for vector search, the engine's relevance score for
// lexical search. Normalization is the search coordinator's job.
type ChunkHit struct {
	Chunk types.Chunk
	Score float64
}

// ChunkStoreStats summarizes the relational store's contents.
type ChunkStoreStats struct {
	DocumentCount int `json:"document_count"`
	ChunkCount    int `json:"chunk_count"`
}

// ChunkStore is the relational store contract for documents and chunks.
type ChunkStore interface {
	// UpsertDocument writes a document keyed by the hash of content.
	// Identical content returns the existing id with IsNew=false.
	UpsertDocument(ctx context.Context, name, content string, metadata map[string]string) (*UpsertDocumentResult, error)

	// AddChunks stores chunks with embeddings for a document and returns
	// the chunk ids in input order.
	AddChunks(ctx context.Context, documentID string, chunks []*types.Chunk) ([]string, error)

	// DeleteDocument removes a document and its chunks. Used for
	// ingestion rollback.
	DeleteDocument(ctx context.Context, documentID string) error

	// SearchChunks runs vector similarity search; scores are cosine
	// similarity in [0,1] and results below threshold are excluded.
	SearchChunks(ctx context.Context, embedding []float32, limit int, threshold float64) ([]ChunkHit, error)

	// SearchLexical runs full-text search; scores are raw engine scores.
	SearchLexical(ctx context.Context, query string, limit int) ([]ChunkHit, error)

	// Stats reports document and chunk counts.
	Stats(ctx context.Context) (*ChunkStoreStats, error)

	// Close releases the underlying connections.
	Close() error
}

// EntityHit is one entity search result with its raw engine score.
type EntityHit struct {
	Entity types.Entity
	Score  float64
}

// BFSHit is one entity discovered by bounded breadth-first traversal,
// with its hop distance from the nearest seed.
type BFSHit struct {
	Entity types.Entity
	Depth  int
}

// GraphStats summarizes the graph store's contents.
type GraphStats struct {
	EntityCount       int `json:"entity_count"`
	RelationshipCount int `json:"relationship_count"`
}

// GraphStore is the property-graph store contract.
type GraphStore interface {
	// UpsertEntity creates or updates an entity node. Writes are
	// idempotent on the entity id.
	UpsertEntity(ctx context.Context, entity *types.Entity) error

	// UpsertRelationship creates or updates a typed edge. Both endpoints
	// must already exist; ErrEndpointMissing is returned otherwise.
	UpsertRelationship(ctx context.Context, rel *types.Relationship) error

	// SearchEntities finds entities whose name or description matches
	// the query text.
	SearchEntities(ctx context.Context, query string, limit int) ([]types.Entity, error)

	// SearchEntitiesWithScore finds entities with engine relevance
	// scores attached.
	SearchEntitiesWithScore(ctx context.Context, query string, limit int) ([]EntityHit, error)

	// GetNeighbors returns every edge touching any of the given entity
	// ids, as triples.
	GetNeighbors(ctx context.Context, entityIDs []string) ([]types.KnowledgeGraphTriple, error)

	// BFSSearch traverses out from the seed entities up to depth hops
	// and returns discovered entities with hop distance, excluding the
	// seeds themselves.
	BFSSearch(ctx context.Context, seedIDs []string, depth, limit int) ([]BFSHit, error)

	// Stats reports entity and relationship counts.
	Stats(ctx context.Context) (*GraphStats, error)

	// Close releases the underlying connections.
	Close() error
}

// ErrEndpointMissing is returned when a relationship references an entity
// that does not exist. Callers record it as a linkage failure; it is
// never fatal to a batch.
var ErrEndpointMissing = errors.New("store: relationship endpoint does not exist")
