// Package search implements the hybrid retrieval core: concurrent
// multi-method candidate search across the chunk and graph stores,
// pluggable result fusion (RRF, cross-encoder, MMR, no-op), and bounded
// knowledge-graph expansion around top-ranked entities.
//
// Each search method produces results on its own score scale; the
// coordinator normalizes per method and tags every result with its
// origin. Fusion merges same-item results across methods into one ranked
// list. Item identity for fusion is structural: two results merge only if
// every field of the carried item matches.
package search
