package server

import (
	"github.com/relaygraph/relaygraph"
	"github.com/relaygraph/relaygraph/pkg/search"
	"github.com/relaygraph/relaygraph/pkg/types"
)

// IngestRequest is the body of POST /api/v1/ingest.
type IngestRequest struct {
	Text     string            `json:"text" binding:"required"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// QueryRequest is the body of POST /api/v1/query. Zero-valued tuning
// fields fall back to the server's configured defaults.
type QueryRequest struct {
	Query           string   `json:"query" binding:"required"`
	MaxChunks       int      `json:"max_chunks,omitempty"`
	MaxEntities     int      `json:"max_entities,omitempty"`
	MaxGraphTriples int      `json:"max_graph_triples,omitempty"`
	ChunkThreshold  float64  `json:"chunk_threshold,omitempty"`
	Methods         []string `json:"methods,omitempty"`
	Reranker        string   `json:"reranker,omitempty"`
	BFSDepth        int      `json:"bfs_depth,omitempty"`

	// Pointer fields distinguish "absent, use the default" from an
	// explicit zero.
	MMRLambda             *float64 `json:"mmr_lambda,omitempty"`
	CrossEncoderThreshold *float64 `json:"cross_encoder_threshold,omitempty"`

	// Synthesize additionally asks the model for an answer over the
	// retrieved context.
	Synthesize bool `json:"synthesize,omitempty"`
}

// Options converts the request into retrieval options.
func (r *QueryRequest) Options() *relaygraph.RetrieveOptions {
	opts := &relaygraph.RetrieveOptions{
		MaxChunks:       r.MaxChunks,
		MaxEntities:     r.MaxEntities,
		MaxGraphTriples: r.MaxGraphTriples,
		ChunkThreshold:  r.ChunkThreshold,
		Reranker:        search.RerankerType(r.Reranker),
		BFSDepth:        r.BFSDepth,

		MMRLambda:             r.MMRLambda,
		CrossEncoderThreshold: r.CrossEncoderThreshold,
	}
	for _, method := range r.Methods {
		opts.Methods = append(opts.Methods, types.SearchMethod(method))
	}
	return opts
}

// QueryResponse is the body returned by POST /api/v1/query.
type QueryResponse struct {
	Result *types.RetrievalResult `json:"result"`
	Answer string                 `json:"answer,omitempty"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
