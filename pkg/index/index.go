package index

import (
	"fmt"
	"math"
	"sort"

	"github.com/polyana-labs/concierge/internal/models"
)

// Index is an immutable in-memory vector index over knowledge chunks. It is
// built in one shot and never mutated, so concurrent searches need no locking.
// Brute-force cosine scan is the right tool at this corpus scale: a few dozen
// documents make a few hundred chunks.
type Index struct {
	entries []models.VectorEntry
	norms   []float32
	dim     int
}

// Build constructs an index from embedded entries. All vectors must share one
// dimensionality; mixing models in a single index is a configuration error and
// fails fast.
func Build(entries []models.VectorEntry) (*Index, error) {
	idx := &Index{
		entries: make([]models.VectorEntry, len(entries)),
		norms:   make([]float32, len(entries)),
	}
	copy(idx.entries, entries)

	for i, entry := range entries {
		if len(entry.Vector) == 0 {
			return nil, fmt.Errorf("entry %s has an empty vector", entry.Chunk.ChunkID)
		}
		if idx.dim == 0 {
			idx.dim = len(entry.Vector)
		} else if len(entry.Vector) != idx.dim {
			return nil, fmt.Errorf("entry %s has dimension %d, index has %d",
				entry.Chunk.ChunkID, len(entry.Vector), idx.dim)
		}
		idx.norms[i] = norm(entry.Vector)
	}

	return idx, nil
}

// Len returns the number of indexed entries.
func (idx *Index) Len() int {
	return len(idx.entries)
}

// Dim returns the vector dimensionality, or 0 for an empty index.
func (idx *Index) Dim() int {
	return idx.dim
}

// Search returns up to k entries ranked by cosine similarity, descending.
// Equal scores keep insertion order. Asking for more results than the index
// holds returns everything without error.
func (idx *Index) Search(vector []float32, k int) ([]models.SearchResult, error) {
	if len(idx.entries) == 0 {
		return nil, nil
	}
	if len(vector) != idx.dim {
		return nil, fmt.Errorf("query vector has dimension %d, index has %d", len(vector), idx.dim)
	}
	if k <= 0 {
		return nil, nil
	}

	queryNorm := norm(vector)

	order := make([]int, len(idx.entries))
	scores := make([]float32, len(idx.entries))
	for i := range idx.entries {
		order[i] = i
		scores[i] = cosine(idx.entries[i].Vector, idx.norms[i], vector, queryNorm)
	}

	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})

	if k > len(order) {
		k = len(order)
	}
	results := make([]models.SearchResult, 0, k)
	for _, i := range order[:k] {
		results = append(results, models.SearchResult{
			Chunk: idx.entries[i].Chunk,
			Score: scores[i],
		})
	}
	return results, nil
}

func cosine(a []float32, aNorm float32, b []float32, bNorm float32) float32 {
	if aNorm == 0 || bNorm == 0 {
		return 0
	}
	var dot float32
	for i := range a {
		dot += a[i] * b[i]
	}
	return dot / (aNorm * bNorm)
}

func norm(v []float32) float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return float32(math.Sqrt(sum))
}
