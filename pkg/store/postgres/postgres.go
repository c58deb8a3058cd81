// Package postgres implements the relational chunk store on PostgreSQL
// with the pgvector extension: vector similarity over chunk embeddings
// and full-text search over chunk content.
package postgres

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/relaygraph/relaygraph/pkg/store"
	"github.com/relaygraph/relaygraph/pkg/types"
)

// ChunkStore implements store.ChunkStore on a pgx connection pool.
type ChunkStore struct {
	pool       *pgxpool.Pool
	dimensions int
}

// New connects to PostgreSQL and registers pgvector types on every
// connection. dimensions is the system-wide embedding width and fixes
// the vector column type.
func New(ctx context.Context, connString string, dimensions int) (*ChunkStore, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("postgres: embedding dimensions must be positive, got %d", dimensions)
	}

	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("postgres: invalid connection string: %w", err)
	}
	config.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to connect: %w", err)
	}

	return &ChunkStore{pool: pool, dimensions: dimensions}, nil
}

// EnsureSchema creates the extension, tables, and indexes if missing.
func (s *ChunkStore) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE TABLE IF NOT EXISTS documents (
			id UUID PRIMARY KEY,
			name TEXT NOT NULL,
			content_hash TEXT NOT NULL UNIQUE,
			metadata JSONB NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS chunks (
			id UUID PRIMARY KEY,
			document_id UUID NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
			content TEXT NOT NULL,
			embedding vector(%d) NOT NULL,
			chunk_index INT NOT NULL,
			metadata JSONB NOT NULL DEFAULT '{}'
		)`, s.dimensions),
		`CREATE INDEX IF NOT EXISTS chunks_document_id_idx ON chunks (document_id)`,
		`CREATE INDEX IF NOT EXISTS chunks_embedding_idx ON chunks
			USING hnsw (embedding vector_cosine_ops)`,
		`CREATE INDEX IF NOT EXISTS chunks_content_fts_idx ON chunks
			USING gin (to_tsvector('english', content))`,
	}

	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres: schema statement failed: %w", err)
		}
	}
	return nil
}

// UpsertDocument writes a document keyed by the content hash. Identical
// content returns the existing id with IsNew=false and writes nothing.
func (s *ChunkStore) UpsertDocument(ctx context.Context, name, content string, metadata map[string]string) (*store.UpsertDocumentResult, error) {
	hash := ContentHash(content)

	var existingID string
	err := s.pool.QueryRow(ctx,
		`SELECT id FROM documents WHERE content_hash = $1`, hash,
	).Scan(&existingID)
	if err == nil {
		return &store.UpsertDocumentResult{ID: existingID, IsNew: false}, nil
	}
	if err != pgx.ErrNoRows {
		return nil, fmt.Errorf("postgres: document lookup failed: %w", err)
	}

	id := uuid.NewString()
	metaJSON, err := marshalMetadata(metadata)
	if err != nil {
		return nil, err
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO documents (id, name, content_hash, metadata) VALUES ($1, $2, $3, $4)`,
		id, name, hash, metaJSON,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: document insert failed: %w", err)
	}

	return &store.UpsertDocumentResult{ID: id, IsNew: true}, nil
}

// AddChunks inserts chunks in one transaction and returns their ids in
// input order. Chunks without an id are assigned one.
func (s *ChunkStore) AddChunks(ctx context.Context, documentID string, chunks []*types.Chunk) ([]string, error) {
	if len(chunks) == 0 {
		return nil, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("postgres: begin failed: %w", err)
	}
	defer tx.Rollback(ctx)

	ids := make([]string, len(chunks))
	for i, chunk := range chunks {
		if len(chunk.Embedding) != s.dimensions {
			return nil, fmt.Errorf("postgres: chunk %d embedding has %d dimensions, want %d",
				i, len(chunk.Embedding), s.dimensions)
		}
		if chunk.ID == "" {
			chunk.ID = uuid.NewString()
		}
		ids[i] = chunk.ID

		metaJSON, err := marshalMetadata(chunk.Metadata)
		if err != nil {
			return nil, err
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO chunks (id, document_id, content, embedding, chunk_index, metadata)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			chunk.ID, documentID, chunk.Content, pgvector.NewVector(chunk.Embedding), chunk.ChunkIndex, metaJSON,
		)
		if err != nil {
			return nil, fmt.Errorf("postgres: chunk insert failed: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("postgres: commit failed: %w", err)
	}
	return ids, nil
}

// DeleteDocument removes a document; its chunks cascade.
func (s *ChunkStore) DeleteDocument(ctx context.Context, documentID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM documents WHERE id = $1`, documentID)
	if err != nil {
		return fmt.Errorf("postgres: document delete failed: %w", err)
	}
	return nil
}

// SearchChunks runs cosine similarity search. Scores are 1 - cosine
// distance, in [0,1] for normalized embeddings; hits below threshold are
// excluded.
func (s *ChunkStore) SearchChunks(ctx context.Context, embedding []float32, limit int, threshold float64) ([]store.ChunkHit, error) {
	if len(embedding) != s.dimensions {
		return nil, fmt.Errorf("postgres: query embedding has %d dimensions, want %d", len(embedding), s.dimensions)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, document_id, content, chunk_index, 1 - (embedding <=> $1) AS similarity
		 FROM chunks
		 WHERE 1 - (embedding <=> $1) >= $2
		 ORDER BY embedding <=> $1
		 LIMIT $3`,
		pgvector.NewVector(embedding), threshold, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: vector search failed: %w", err)
	}
	defer rows.Close()

	return scanHits(rows)
}

// SearchLexical runs full-text search ranked by ts_rank_cd. Scores are
// the raw rank values; callers normalize.
func (s *ChunkStore) SearchLexical(ctx context.Context, query string, limit int) ([]store.ChunkHit, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, document_id, content, chunk_index,
		        ts_rank_cd(to_tsvector('english', content), websearch_to_tsquery('english', $1)) AS score
		 FROM chunks
		 WHERE to_tsvector('english', content) @@ websearch_to_tsquery('english', $1)
		 ORDER BY score DESC
		 LIMIT $2`,
		query, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: lexical search failed: %w", err)
	}
	defer rows.Close()

	return scanHits(rows)
}

// Stats reports document and chunk counts.
func (s *ChunkStore) Stats(ctx context.Context) (*store.ChunkStoreStats, error) {
	stats := &store.ChunkStoreStats{}
	err := s.pool.QueryRow(ctx,
		`SELECT (SELECT count(*) FROM documents), (SELECT count(*) FROM chunks)`,
	).Scan(&stats.DocumentCount, &stats.ChunkCount)
	if err != nil {
		return nil, fmt.Errorf("postgres: stats query failed: %w", err)
	}
	return stats, nil
}

// Close releases the connection pool.
func (s *ChunkStore) Close() error {
	s.pool.Close()
	return nil
}

// ContentHash returns the hex SHA-256 of content, the document dedup key.
func ContentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

func marshalMetadata(metadata map[string]string) ([]byte, error) {
	if metadata == nil {
		return []byte("{}"), nil
	}
	data, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("postgres: metadata marshal failed: %w", err)
	}
	return data, nil
}

func scanHits(rows pgx.Rows) ([]store.ChunkHit, error) {
	var hits []store.ChunkHit
	for rows.Next() {
		var hit store.ChunkHit
		if err := rows.Scan(&hit.Chunk.ID, &hit.Chunk.DocumentID, &hit.Chunk.Content, &hit.Chunk.ChunkIndex, &hit.Score); err != nil {
			return nil, fmt.Errorf("postgres: row scan failed: %w", err)
		}
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: rows iteration failed: %w", err)
	}
	return hits, nil
}
