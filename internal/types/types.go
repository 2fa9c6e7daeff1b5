package types

import (
	"context"

	"github.com/polyana-labs/concierge/internal/models"
)

// DocumentRef identifies a knowledge document before its text is fetched.
type DocumentRef struct {
	ID       string
	Category models.Category
	TextPath string
}

// KnowledgeSource enumerates and fetches raw knowledge documents. Implemented
// by the filesystem, HTTP and Postgres sources in pkg/knowledge; callers
// outside the core may bring their own.
type KnowledgeSource interface {
	ListDocuments(ctx context.Context) ([]DocumentRef, error)
	FetchText(ctx context.Context, ref DocumentRef) (string, error)
}

// Embedder maps texts to fixed-length vectors, one vector per input text,
// order-preserving. A failed call returns no partial results.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Splitter divides a document into retrieval-sized chunks.
type Splitter interface {
	Split(doc models.Document) ([]models.Chunk, error)
}

// Searcher is the read side of a vector index: results sorted by descending
// similarity, ties stable by insertion order, k capped at the entry count.
type Searcher interface {
	Search(vector []float32, k int) ([]models.SearchResult, error)
	Len() int
}
