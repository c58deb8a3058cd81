// Package types defines the core data model shared across relaygraph:
// entities and relationships owned by the graph store, documents and
// chunks owned by the relational store, and the ephemeral search result
// containers produced at retrieval time.
package types
