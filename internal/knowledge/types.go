// Package knowledge implements knowledge-base routing: a
// vector-backed path that embeds queries and searches an external
// vector store, and a non-vector path that delegates to a text-search
// collaborator. Both the vector store and the embedding model are
// external collaborators; this package only owns the routing
// decision and response shaping.
package knowledge

import "context"

// Document is one retrieved passage, with an optional relevance Score
// populated by the vector path (the text-search path may leave it zero).
type Document struct {
	ID       string
	Content  string
	Score    float64
	Metadata map[string]any
}

// QueryResult groups the documents retrieved for one keyword/query string.
type QueryResult struct {
	Keyword   string
	Documents []Document
}

// Result is the routing response shape: `{ queries: [{keyword, documents}], documents? }`.
// Documents is only populated by the non-vector path, which has no
// per-keyword breakdown to report.
type Result struct {
	Queries   []QueryResult
	Documents []Document
}

// EmbeddingModel turns a query string into its vector representation.
// The concrete model is selected by config.KnowledgeBase.EmbeddingModel
// and is an external collaborator — no embedding model ships in this core.
type EmbeddingModel interface {
	Embed(ctx context.Context, model, text string) ([]float64, error)
}

// VectorStore is queried once per embedded query vector. base identifies
// which configured knowledge base (and therefore which collection/index)
// to search.
type VectorStore interface {
	Query(ctx context.Context, base string, vector []float64, topK int) ([]Document, error)
}

// TextSearcher is the non-vector path's collaborator: a keyword/full-text
// search over base's documents.
type TextSearcher interface {
	Search(ctx context.Context, base string, keywords []string) ([]Document, error)
}
