package types

import (
	"errors"
	"time"
)

// Validation errors
var (
	ErrEmptyName    = errors.New("name cannot be empty")
	ErrEmptyID      = errors.New("id cannot be empty")
	ErrEmptyContent = errors.New("content cannot be empty")
	ErrInvalidLimit = errors.New("limit must be positive")
)

// Entity is a canonical node in the knowledge graph. Its ID is derived
// deterministically from the display name by slug normalization, so two
// mentions of the same name always resolve to the same node.
type Entity struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Type        string            `json:"type"`
	Description string            `json:"description,omitempty"`
	Attributes  map[string]string `json:"attributes,omitempty"`

	// SourceChunkIDs records which chunks mentioned this entity. Append-only.
	SourceChunkIDs []string `json:"source_chunk_ids,omitempty"`
}

// Validate checks if the Entity has all required fields set.
func (e *Entity) Validate() error {
	if e.ID == "" {
		return ErrEmptyID
	}
	if e.Name == "" {
		return ErrEmptyName
	}
	return nil
}

// Relationship is a directed typed edge between two entities. Type is an
// open string extracted by the language model; it is sanitized once at the
// graph-write boundary before being used as an edge label.
type Relationship struct {
	ID         string            `json:"id"`
	SourceID   string            `json:"source_id"`
	TargetID   string            `json:"target_id"`
	Type       string            `json:"type"`
	Fact       string            `json:"fact,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`

	SourceChunkIDs []string `json:"source_chunk_ids,omitempty"`
}

// Validate checks if the Relationship has all required fields set.
func (r *Relationship) Validate() error {
	if r.SourceID == "" || r.TargetID == "" {
		return ErrEmptyID
	}
	if r.Type == "" {
		return ErrEmptyName
	}
	return nil
}

// Chunk is a span of source text, the unit of embedding and lexical
// indexing. Chunks are created once during ingestion and immutable
// thereafter; they are deleted only on ingestion rollback.
type Chunk struct {
	ID         string            `json:"id"`
	DocumentID string            `json:"document_id"`
	Content    string            `json:"content"`
	Embedding  []float32         `json:"embedding,omitempty"`
	ChunkIndex int               `json:"chunk_index"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// Validate checks if the Chunk has all required fields set.
func (c *Chunk) Validate() error {
	if c.Content == "" {
		return ErrEmptyContent
	}
	return nil
}

// Document is the content-addressed unit of ingestion. ContentHash is the
// dedup key: re-ingesting identical content is a no-op.
type Document struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	ContentHash string            `json:"content_hash"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

// SearchMethod identifies the search method that produced a result.
type SearchMethod string

const (
	LexicalSearch  SearchMethod = "lexical"
	SemanticSearch SearchMethod = "semantic"
	GraphSearch    SearchMethod = "graph"
)

// SearchResult carries one candidate item together with its raw score and
// the method that found it. The same logical item may appear once per
// method; deduplication is deferred to the reranking engine.
type SearchResult[T any] struct {
	Item   T            `json:"item"`
	Score  float64      `json:"score"`
	Source SearchMethod `json:"source"`
}

// RankedResult is the output of fusion: one entry per unique item, with
// the fused score and the set of methods that surfaced it.
type RankedResult[T any] struct {
	Item    T              `json:"item"`
	Score   float64        `json:"score"`
	Sources []SearchMethod `json:"sources"`
}

// EntityRef is a lightweight entity reference used in triples.
type EntityRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

// KnowledgeGraphTriple is a (source, relationship, target) edge exposed to
// retrieval consumers. Ephemeral, never persisted.
type KnowledgeGraphTriple struct {
	Source       EntityRef `json:"source"`
	Relationship string    `json:"relationship"`
	Fact         string    `json:"fact,omitempty"`
	Target       EntityRef `json:"target"`
}

// Ref returns an EntityRef for the entity.
func (e *Entity) Ref() EntityRef {
	return EntityRef{ID: e.ID, Name: e.Name, Type: e.Type}
}

// ExtractedEntity is an entity mention produced by the language model for
// a single chunk, before canonicalization.
type ExtractedEntity struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
}

// ExtractedRelationship is a relationship mention produced by the language
// model. Source and Target are raw display names; they are resolved to
// canonical entity ids by the entity linker.
type ExtractedRelationship struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Type   string `json:"type"`
	Fact   string `json:"fact"`
}

// ExtractionResult holds everything extracted from one chunk.
type ExtractionResult struct {
	Entities      []ExtractedEntity       `json:"entities"`
	Relationships []ExtractedRelationship `json:"relationships"`
}

// IngestionResult summarizes one Ingest call.
type IngestionResult struct {
	DocumentID       string `json:"document_id"`
	IsNewDocument    bool   `json:"is_new_document"`
	ChunkCount       int    `json:"chunk_count"`
	EntityCount      int    `json:"entity_count"`
	RelationCount    int    `json:"relation_count"`
	ProcessingTimeMs int64  `json:"processing_time_ms"`
}

// RetrievalResult is the fused output of one Retrieve call.
type RetrievalResult struct {
	Chunks         []RankedResult[Chunk]  `json:"chunks"`
	Entities       []RankedResult[Entity] `json:"entities"`
	KnowledgeGraph []KnowledgeGraphTriple `json:"knowledge_graph"`
	Query          string                 `json:"query"`
}
