package search

import (
	"context"
	"fmt"

	"github.com/relaygraph/relaygraph/pkg/store"
	"github.com/relaygraph/relaygraph/pkg/types"
)

// Expansion bounds: at most this many seeds feed the deep traversal, and
// at most this many newly discovered entities contribute extra triples.
const (
	maxBFSSeeds      = 5
	maxBFSDiscovered = 10
)

// Expander retrieves the knowledge-graph neighborhood of top-ranked
// entities: direct neighbor edges first, then edges of entities reachable
// by bounded BFS when depth allows.
type Expander struct {
	graph store.GraphStore
}

// NewExpander creates a knowledge-graph expander.
func NewExpander(graph store.GraphStore) *Expander {
	return &Expander{graph: graph}
}

// Expand returns at most limit deduplicated triples around the seed
// entities. Triple identity is the (source, target, relationship) tuple.
func (e *Expander) Expand(ctx context.Context, seedIDs []string, depth, limit int) ([]types.KnowledgeGraphTriple, error) {
	if len(seedIDs) == 0 || limit <= 0 {
		return nil, nil
	}

	seen := make(map[string]struct{})
	var triples []types.KnowledgeGraphTriple

	appendTriples := func(batch []types.KnowledgeGraphTriple) {
		for _, triple := range batch {
			if len(triples) >= limit {
				return
			}
			if triple.Source.ID == "" || triple.Target.ID == "" {
				continue
			}
			key := triple.Source.ID + "\x00" + triple.Target.ID + "\x00" + triple.Relationship
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			triples = append(triples, triple)
		}
	}

	direct, err := e.graph.GetNeighbors(ctx, seedIDs)
	if err != nil {
		return nil, fmt.Errorf("neighbor expansion failed: %w", err)
	}
	appendTriples(direct)

	if depth <= 1 || len(triples) >= limit {
		return triples, nil
	}

	bfsSeeds := seedIDs
	if len(bfsSeeds) > maxBFSSeeds {
		bfsSeeds = bfsSeeds[:maxBFSSeeds]
	}

	hits, err := e.graph.BFSSearch(ctx, bfsSeeds, depth, maxBFSDiscovered)
	if err != nil {
		return nil, fmt.Errorf("bfs expansion failed: %w", err)
	}
	if len(hits) == 0 {
		return triples, nil
	}

	discovered := make([]string, 0, len(hits))
	for _, hit := range hits {
		discovered = append(discovered, hit.Entity.ID)
	}

	deeper, err := e.graph.GetNeighbors(ctx, discovered)
	if err != nil {
		return nil, fmt.Errorf("deep neighbor expansion failed: %w", err)
	}
	appendTriples(deeper)

	return triples, nil
}
