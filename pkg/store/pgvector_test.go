package store_test

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/polyana-labs/concierge/internal/models"
	"github.com/polyana-labs/concierge/pkg/store"
)

// Integration test: needs a Postgres with the pgvector extension.
func TestStoreReplaceAndSearch(t *testing.T) {
	connString := os.Getenv("TEST_DATABASE_URL")
	if connString == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	s, err := store.NewWithConfig(ctx, store.StoreConfig{
		ConnString: connString,
		TableName:  "test_knowledge_chunks",
		VectorDim:  3,
	})
	require.NoError(t, err)
	defer s.Close()

	entries := []models.VectorEntry{
		{
			Chunk:  models.Chunk{ChunkID: "gazprom.md:0", SourceID: "gazprom.md", Category: models.CategoryResort, Text: "Laura slope"},
			Vector: []float32{1, 0, 0},
		},
		{
			Chunk:  models.Chunk{ChunkID: "faq.md:0", SourceID: "faq.md", Category: models.CategoryFAQ, Text: "Rental hours", SequenceIndex: 0},
			Vector: []float32{0, 1, 0},
		},
	}
	require.NoError(t, s.Replace(ctx, entries))
	assert.Equal(t, 2, s.Len())

	results, err := s.Search([]float32{1, 0.1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "gazprom.md:0", results[0].Chunk.ChunkID)
	assert.Equal(t, models.CategoryResort, results[0].Chunk.Category)

	// Replace is wholesale: the old rows are gone.
	require.NoError(t, s.Replace(ctx, entries[:1]))
	assert.Equal(t, 1, s.Len())
}

func TestStoreRejectsWrongDimension(t *testing.T) {
	connString := os.Getenv("TEST_DATABASE_URL")
	if connString == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	s, err := store.NewWithConfig(ctx, store.StoreConfig{
		ConnString: connString,
		TableName:  "test_knowledge_chunks_dim",
		VectorDim:  3,
	})
	require.NoError(t, err)
	defer s.Close()

	err = s.Replace(ctx, []models.VectorEntry{
		{Chunk: models.Chunk{ChunkID: "x:0"}, Vector: []float32{1, 2}},
	})
	assert.Error(t, err)
}
