// Package vectorindex defines the vector-index contract backing the policy
// (RAG) agent's corpus search, and a postgres/pgvector-backed implementation.
package vectorindex

import "context"

// Chunk is a single embedded policy-corpus passage.
type Chunk struct {
	ID       string
	DocID    string
	Content  string
	Metadata map[string]any
	Vector   []float32
}

// ScoredChunk pairs a Chunk with its similarity score from a search.
type ScoredChunk struct {
	Chunk
	Score float32
}

// Index is the vector-index contract PostgresIndex implements. The policy
// agent depends on its own narrower interface (Search plus KeywordSearch).
type Index interface {
	// Upsert stores or replaces a chunk's embedding and metadata.
	Upsert(ctx context.Context, chunk Chunk) error

	// Search returns the top-k chunks by cosine similarity to vector,
	// optionally narrowed by metadata filter (e.g. doc category).
	Search(ctx context.Context, vector []float32, limit int, filter map[string]any) ([]ScoredChunk, error)

	// Delete removes a chunk from the index.
	Delete(ctx context.Context, id string) error
}
