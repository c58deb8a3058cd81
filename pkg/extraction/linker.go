package extraction

import (
	"strings"

	"github.com/relaygraph/relaygraph/pkg/identity"
	"github.com/relaygraph/relaygraph/pkg/types"
)

// ChunkExtraction pairs one chunk's id with what the model extracted from
// it.
type ChunkExtraction struct {
	ChunkID string
	Result  *types.ExtractionResult
}

// LinkResult is the canonical outcome of linking one document's
// extraction results. Entities are in first-seen order; Relationships
// reference canonical entity ids only.
type LinkResult struct {
	Entities           []*types.Entity
	Relationships      []*types.Relationship
	AttemptedRelations int
	FailedRelations    int
}

// Link merges per-chunk entity mentions into a canonical entity set and
// resolves relationship endpoints against it. Mentions sharing a slug id
// merge: the first-seen name and type win, descriptions accrete unless the
// new text is already contained in the accumulated one. Relationships
// whose endpoints cannot be resolved are counted as failed and skipped.
// Resolved relationships get the derived id sourceID-type-targetID, so
// repeated mentions of the same edge across chunks collapse into one
// record with accreted source chunk ids.
func Link(chunks []ChunkExtraction) *LinkResult {
	byID := make(map[string]*types.Entity)
	var order []string

	for _, chunk := range chunks {
		if chunk.Result == nil {
			continue
		}
		for _, mention := range chunk.Result.Entities {
			id := identity.Slugify(mention.Name)
			if id == "" {
				continue
			}
			entity, ok := byID[id]
			if !ok {
				entity = &types.Entity{
					ID:          id,
					Name:        mention.Name,
					Type:        mention.Type,
					Description: mention.Description,
				}
				byID[id] = entity
				order = append(order, id)
			} else if desc := strings.TrimSpace(mention.Description); desc != "" && !strings.Contains(entity.Description, desc) {
				if entity.Description == "" {
					entity.Description = desc
				} else {
					entity.Description += " " + desc
				}
			}
			entity.SourceChunkIDs = appendUnique(entity.SourceChunkIDs, chunk.ChunkID)
		}
	}

	candidates := make([]identity.Candidate, 0, len(order))
	for _, id := range order {
		candidates = append(candidates, identity.Candidate{ID: id, Name: byID[id].Name})
	}

	result := &LinkResult{}
	for _, id := range order {
		result.Entities = append(result.Entities, byID[id])
	}

	relByID := make(map[string]*types.Relationship)
	for _, chunk := range chunks {
		if chunk.Result == nil {
			continue
		}
		for _, rel := range chunk.Result.Relationships {
			result.AttemptedRelations++
			sourceID, ok := identity.Resolve(rel.Source, candidates)
			if !ok {
				result.FailedRelations++
				continue
			}
			targetID, ok := identity.Resolve(rel.Target, candidates)
			if !ok {
				result.FailedRelations++
				continue
			}
			relID := sourceID + "-" + rel.Type + "-" + targetID
			existing, ok := relByID[relID]
			if !ok {
				existing = &types.Relationship{
					ID:       relID,
					SourceID: sourceID,
					TargetID: targetID,
					Type:     rel.Type,
					Fact:     rel.Fact,
				}
				relByID[relID] = existing
				result.Relationships = append(result.Relationships, existing)
			} else if fact := strings.TrimSpace(rel.Fact); fact != "" && !strings.Contains(existing.Fact, fact) {
				if existing.Fact == "" {
					existing.Fact = fact
				} else {
					existing.Fact += " " + fact
				}
			}
			existing.SourceChunkIDs = appendUnique(existing.SourceChunkIDs, chunk.ChunkID)
		}
	}
	return result
}

func appendUnique(ids []string, id string) []string {
	if id == "" {
		return ids
	}
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}
