// Package relaygraph implements a hybrid retrieval-augmented knowledge
// graph. Documents are chunked, embedded, and mined for entities and
// relationships which land in a property graph; queries fan out across
// lexical, semantic, and graph search, fuse the results with a pluggable
// reranker, and expand the knowledge-graph neighborhood of the top
// entities.
//
// The Client facade wires a relational chunk store, a graph store, a chat
// capability, and an embedding capability together. All four are injected
// as interfaces so callers can swap backends or substitute fakes.
package relaygraph
