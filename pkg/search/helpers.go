package search

import (
	"encoding/json"
	"fmt"

	"github.com/relaygraph/relaygraph/pkg/types"
)

// scorable is implemented by items that know what text a relevance
// judgment should be made over.
type scorable interface {
	ScoringText() string
}

// structuralKey is the deduplication identity: the serialized form of the
// whole item, not just its id. Results for the same entity that differ in
// any field do not merge.
func structuralKey(item any) string {
	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Sprintf("%+v", item)
	}
	return string(data)
}

// scoringText selects the text used for cross-encoder and MMR scoring:
// the item's own notion of content when it has one, else its serialized
// form. The preference order matters; it determines what the relevance
// judgment is actually made over.
func scoringText(item any) string {
	if s, ok := item.(scorable); ok {
		if text := s.ScoringText(); text != "" {
			return text
		}
	}
	return structuralKey(item)
}

// dedupedResult is one unique item with the evidence collected across
// methods. order preserves first-seen position for stable tie-breaks.
type dedupedResult[T any] struct {
	item     T
	maxScore float64
	sources  []types.SearchMethod
	order    int
}

// dedupe collapses results to unique items by structural key, keeping the
// maximum score seen and the union of source methods, in first-seen
// order.
func dedupe[T any](results []types.SearchResult[T]) []dedupedResult[T] {
	index := make(map[string]int, len(results))
	var deduped []dedupedResult[T]

	for _, result := range results {
		key := structuralKey(result.Item)
		if i, seen := index[key]; seen {
			if result.Score > deduped[i].maxScore {
				deduped[i].maxScore = result.Score
			}
			if !containsMethod(deduped[i].sources, result.Source) {
				deduped[i].sources = append(deduped[i].sources, result.Source)
			}
			continue
		}
		index[key] = len(deduped)
		deduped = append(deduped, dedupedResult[T]{
			item:     result.Item,
			maxScore: result.Score,
			sources:  []types.SearchMethod{result.Source},
			order:    len(deduped),
		})
	}
	return deduped
}

func containsMethod(methods []types.SearchMethod, method types.SearchMethod) bool {
	for _, m := range methods {
		if m == method {
			return true
		}
	}
	return false
}
