package index_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/polyana-labs/concierge/internal/models"
	"github.com/polyana-labs/concierge/pkg/index"
)

func entry(id string, vector ...float32) models.VectorEntry {
	return models.VectorEntry{
		Chunk:  models.Chunk{ChunkID: id, Category: models.CategoryResort, Text: "text " + id},
		Vector: vector,
	}
}

func TestBuildRejectsMixedDimensions(t *testing.T) {
	_, err := index.Build([]models.VectorEntry{
		entry("a", 1, 0, 0),
		entry("b", 0, 1),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dimension")
}

func TestBuildRejectsEmptyVector(t *testing.T) {
	_, err := index.Build([]models.VectorEntry{entry("a")})
	assert.Error(t, err)
}

func TestSearchRanksByCosineSimilarity(t *testing.T) {
	idx, err := index.Build([]models.VectorEntry{
		entry("east", 1, 0),
		entry("north", 0, 1),
		entry("northeast", 1, 1),
	})
	require.NoError(t, err)

	results, err := idx.Search([]float32{1, 0.1}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "east", results[0].Chunk.ChunkID)
	assert.Equal(t, "northeast", results[1].Chunk.ChunkID)
	assert.Greater(t, results[0].Score, results[1].Score)
}

func TestSearchScoresDescending(t *testing.T) {
	var entries []models.VectorEntry
	for i := 0; i < 20; i++ {
		entries = append(entries, entry(fmt.Sprintf("e%d", i), float32(i), float32(20-i), 1))
	}
	idx, err := index.Build(entries)
	require.NoError(t, err)

	results, err := idx.Search([]float32{3, 1, 2}, 10)
	require.NoError(t, err)
	require.Len(t, results, 10)

	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
	}
}

func TestSearchTiesKeepInsertionOrder(t *testing.T) {
	idx, err := index.Build([]models.VectorEntry{
		entry("first", 2, 0),
		entry("second", 4, 0), // same direction, same cosine score
		entry("third", 1, 0),
		entry("other", 0, 1),
	})
	require.NoError(t, err)

	results, err := idx.Search([]float32{1, 0}, 3)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "first", results[0].Chunk.ChunkID)
	assert.Equal(t, "second", results[1].Chunk.ChunkID)
	assert.Equal(t, "third", results[2].Chunk.ChunkID)
}

func TestSearchKLargerThanIndex(t *testing.T) {
	idx, err := index.Build([]models.VectorEntry{
		entry("a", 1, 0),
		entry("b", 0, 1),
	})
	require.NoError(t, err)

	results, err := idx.Search([]float32{1, 1}, 50)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestSearchEmptyIndex(t *testing.T) {
	idx, err := index.Build(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, idx.Len())

	results, err := idx.Search([]float32{1, 2, 3}, 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearchDimensionMismatch(t *testing.T) {
	idx, err := index.Build([]models.VectorEntry{entry("a", 1, 2, 3)})
	require.NoError(t, err)

	_, err = idx.Search([]float32{1, 2}, 1)
	assert.Error(t, err)
}
