package relaygraph

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/relaygraph/relaygraph/pkg/extraction"
	"github.com/relaygraph/relaygraph/pkg/types"
	"github.com/relaygraph/relaygraph/pkg/utils"
)

// Ingest chunks and embeds the text, extracts entities and relationships
// from every chunk in parallel, links them into a canonical set, and
// writes chunks to the relational store and the linked graph to the graph
// store. Re-ingesting identical content is a no-op: the existing document
// id comes back with IsNewDocument false and zero counts.
//
// If extraction fails after chunks were durably written, the document and
// its chunks are deleted before the error propagates.
func (c *Client) Ingest(ctx context.Context, text string, metadata map[string]string) (*types.IngestionResult, error) {
	start := time.Now()
	if strings.TrimSpace(text) == "" {
		return nil, types.ErrEmptyContent
	}

	name := metadata["name"]
	if name == "" {
		name = deriveDocumentName(text)
	}

	upserted, err := c.chunks.UpsertDocument(ctx, name, text, metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert document: %w", err)
	}
	if !upserted.IsNew {
		c.logger.Info("document already ingested", "document_id", upserted.ID)
		return &types.IngestionResult{
			DocumentID:       upserted.ID,
			ProcessingTimeMs: time.Since(start).Milliseconds(),
		}, nil
	}
	documentID := upserted.ID

	pieces := splitText(text, c.config.ChunkSize, c.config.ChunkOverlap)
	vectors, err := c.embedder.Embed(ctx, pieces)
	if err != nil {
		c.rollback(ctx, documentID)
		return nil, fmt.Errorf("failed to embed chunks: %w", err)
	}

	chunks := make([]*types.Chunk, len(pieces))
	for i, piece := range pieces {
		chunks[i] = &types.Chunk{
			DocumentID: documentID,
			Content:    piece,
			Embedding:  vectors[i],
			ChunkIndex: i,
		}
	}
	chunkIDs, err := c.chunks.AddChunks(ctx, documentID, chunks)
	if err != nil {
		c.rollback(ctx, documentID)
		return nil, fmt.Errorf("failed to store chunks: %w", err)
	}

	// Per-chunk extraction fans out concurrently; each task writes only
	// its own slot.
	extractions := make([]extraction.ChunkExtraction, len(pieces))
	tasks := make([]func() error, len(pieces))
	for i := range pieces {
		i := i
		tasks[i] = func() error {
			result, err := c.extractor.Extract(ctx, pieces[i])
			if err != nil {
				return fmt.Errorf("chunk %d: %w", i, err)
			}
			extractions[i] = extraction.ChunkExtraction{ChunkID: chunkIDs[i], Result: result}
			return nil
		}
	}
	if err := utils.FirstError(utils.SemaphoreGather(ctx, c.config.ExtractionConcurrency, tasks...)); err != nil {
		c.rollback(ctx, documentID)
		return nil, fmt.Errorf("extraction failed: %w", err)
	}

	linked := extraction.Link(extractions)

	// Entities land before relationships since the graph store enforces
	// endpoint existence. Individual write failures are counted, never
	// fatal.
	entityCount := 0
	for _, entity := range linked.Entities {
		if err := c.graph.UpsertEntity(ctx, entity); err != nil {
			c.logger.Warn("entity upsert failed", "entity_id", entity.ID, "error", err)
			continue
		}
		entityCount++
	}
	relationCount := 0
	for _, rel := range linked.Relationships {
		if err := c.graph.UpsertRelationship(ctx, rel); err != nil {
			c.logger.Warn("relationship upsert failed",
				"source", rel.SourceID, "target", rel.TargetID, "error", err)
			continue
		}
		relationCount++
	}
	if linked.FailedRelations > 0 {
		c.logger.Info("some relationship endpoints did not resolve",
			"failed", linked.FailedRelations, "attempted", linked.AttemptedRelations)
	}

	return &types.IngestionResult{
		DocumentID:       documentID,
		IsNewDocument:    true,
		ChunkCount:       len(chunks),
		EntityCount:      entityCount,
		RelationCount:    relationCount,
		ProcessingTimeMs: time.Since(start).Milliseconds(),
	}, nil
}

func (c *Client) rollback(ctx context.Context, documentID string) {
	if err := c.chunks.DeleteDocument(ctx, documentID); err != nil {
		c.logger.Error("rollback failed, document left partially ingested",
			"document_id", documentID, "error", err)
	}
}

func deriveDocumentName(text string) string {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) > 60 {
		runes = runes[:60]
	}
	name := string(runes)
	if idx := strings.IndexAny(name, "\n\r"); idx > 0 {
		name = name[:idx]
	}
	return strings.TrimSpace(name)
}

// splitText splits text into rune-bounded pieces of at most size runes
// with the given overlap, preferring to break just after a sentence end in
// the second half of the window.
func splitText(text string, size, overlap int) []string {
	runes := []rune(text)
	if len(runes) <= size {
		trimmed := strings.TrimSpace(text)
		if trimmed == "" {
			return nil
		}
		return []string{trimmed}
	}

	var pieces []string
	start := 0
	for start < len(runes) {
		end := start + size
		if end >= len(runes) {
			end = len(runes)
		} else {
			if cut := sentenceBreak(runes, start+size/2, end); cut > start {
				end = cut
			}
		}
		piece := strings.TrimSpace(string(runes[start:end]))
		if piece != "" {
			pieces = append(pieces, piece)
		}
		if end == len(runes) {
			break
		}
		next := end - overlap
		if next <= start {
			next = start + 1
		}
		start = next
	}
	return pieces
}

// sentenceBreak returns the index just past the last sentence terminator
// in runes[from:to], or 0 when none exists.
func sentenceBreak(runes []rune, from, to int) int {
	for i := to - 1; i >= from; i-- {
		switch runes[i] {
		case '.', '!', '?', '\n':
			return i + 1
		}
	}
	return 0
}
