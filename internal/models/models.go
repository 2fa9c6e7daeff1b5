package models

import "fmt"

// Category is the canonical topic taxonomy for knowledge documents.
// Legacy labels from earlier data exports ("instructors", "resort_info")
// are folded into the canonical values at load time.
type Category string

const (
	CategoryResort  Category = "resort"
	CategorySafety  Category = "safety"
	CategoryFAQ     Category = "faq"
	CategoryPricing Category = "pricing"
)

// Categories lists all canonical categories in priority order.
var Categories = []Category{CategoryResort, CategorySafety, CategoryFAQ, CategoryPricing}

// ParseCategory normalizes a raw category label into the canonical enum.
func ParseCategory(raw string) (Category, error) {
	switch raw {
	case "resort", "resorts", "resort_info":
		return CategoryResort, nil
	case "safety", "instructors", "certification":
		return CategorySafety, nil
	case "faq", "questions":
		return CategoryFAQ, nil
	case "pricing", "prices":
		return CategoryPricing, nil
	}
	return "", fmt.Errorf("unknown category %q", raw)
}

// Document is a raw knowledge-base document held in memory during ingestion.
type Document struct {
	SourceID string
	Category Category
	Text     string
}

// Chunk is the unit of retrieval: a bounded segment of a source document.
type Chunk struct {
	ChunkID       string
	SourceID      string
	Category      Category
	Text          string
	SequenceIndex int
}

// VectorEntry pairs a chunk with its embedding. Entries are created once at
// index-build time and never mutated afterwards.
type VectorEntry struct {
	Chunk  Chunk
	Vector []float32
}

// SearchResult is a chunk ranked by similarity to a query vector.
type SearchResult struct {
	Chunk Chunk
	Score float32
}
