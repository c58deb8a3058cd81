// Package extraction turns raw chunk text into knowledge-graph material.
//
// The Extractor asks the chat capability for entity and relationship
// mentions in a single JSON-constrained call per chunk, retrying on
// malformed output. The Linker then merges per-chunk mentions into one
// canonical entity set per document and resolves relationship endpoints
// to canonical ids before anything touches the graph store.
package extraction
