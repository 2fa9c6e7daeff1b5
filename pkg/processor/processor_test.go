package processor_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/polyana-labs/concierge/internal/models"
	"github.com/polyana-labs/concierge/pkg/processor"
)

func testDocument(text string) models.Document {
	return models.Document{
		SourceID: "resorts/gazprom.md",
		Category: models.CategoryResort,
		Text:     text,
	}
}

func TestNewSplitterRejectsBadOverlap(t *testing.T) {
	tests := []struct {
		name   string
		config processor.SplitterConfig
	}{
		{"overlap equals chunk size", processor.SplitterConfig{ChunkSize: 100, ChunkOverlap: 100}},
		{"overlap exceeds chunk size", processor.SplitterConfig{ChunkSize: 100, ChunkOverlap: 150}},
		{"negative overlap", processor.SplitterConfig{ChunkSize: 100, ChunkOverlap: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := processor.NewSplitter(tt.config)
			assert.Error(t, err)
		})
	}
}

func TestSplitShortDocumentSingleChunk(t *testing.T) {
	s, err := processor.NewSplitter(processor.SplitterConfig{ChunkSize: 1000, ChunkOverlap: 200})
	require.NoError(t, err)

	doc := testDocument("Gazprom Polyana combines the Laura and Alpika slopes.")
	chunks, err := s.Split(doc)
	require.NoError(t, err)

	require.Len(t, chunks, 1)
	assert.Equal(t, doc.Text, chunks[0].Text)
	assert.Equal(t, "resorts/gazprom.md:0", chunks[0].ChunkID)
	assert.Equal(t, doc.SourceID, chunks[0].SourceID)
	assert.Equal(t, models.CategoryResort, chunks[0].Category)
	assert.Equal(t, 0, chunks[0].SequenceIndex)
}

func TestSplitEmptyDocument(t *testing.T) {
	s, err := processor.NewSplitter(processor.SplitterConfig{ChunkSize: 100, ChunkOverlap: 20})
	require.NoError(t, err)

	chunks, err := s.Split(testDocument("  \n\n "))
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestSplitRespectsChunkSizeAndOverlap(t *testing.T) {
	const chunkSize = 120
	const overlap = 30

	s, err := processor.NewSplitter(processor.SplitterConfig{ChunkSize: chunkSize, ChunkOverlap: overlap})
	require.NoError(t, err)

	var b strings.Builder
	for i := 0; i < 12; i++ {
		b.WriteString("\n## Section\nThe slopes open at nine in the morning and lifts close at half past four in the afternoon.\n")
	}
	doc := testDocument(b.String())

	chunks, err := s.Split(doc)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	for i, chunk := range chunks {
		assert.LessOrEqual(t, len([]rune(chunk.Text)), chunkSize, "chunk %d too large", i)
		assert.Equal(t, i, chunk.SequenceIndex)
	}

	// Adjacent chunks share the configured overlap.
	for i := 0; i < len(chunks)-1; i++ {
		prev := []rune(chunks[i].Text)
		if len(prev) < overlap {
			continue
		}
		shared := string(prev[len(prev)-overlap:])
		assert.True(t, strings.HasPrefix(chunks[i+1].Text, shared),
			"chunk %d does not begin with the tail of chunk %d", i+1, i)
	}
}

func TestSplitRoundTrip(t *testing.T) {
	const overlap = 25
	s, err := processor.NewSplitter(processor.SplitterConfig{ChunkSize: 90, ChunkOverlap: overlap})
	require.NoError(t, err)

	doc := testDocument(strings.Repeat("Ski passes are cheaper outside the peak season. Evening skiing runs on Laura only. ", 20))
	chunks, err := s.Split(doc)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	// Removing the shared overlap from each chunk after the first must
	// reconstruct the original text exactly.
	recon := chunks[0].Text
	for _, chunk := range chunks[1:] {
		runes := []rune(chunk.Text)
		shared := overlap
		if got := len([]rune(recon)); got < shared {
			shared = got
		}
		recon += string(runes[shared:])
	}
	assert.Equal(t, doc.Text, recon)
}

func TestSplitFallsBackToHardCut(t *testing.T) {
	s, err := processor.NewSplitter(processor.SplitterConfig{ChunkSize: 40, ChunkOverlap: 10})
	require.NoError(t, err)

	// No separator ever matches, so the splitter must cut on raw runes.
	doc := testDocument(strings.Repeat("x", 200))
	chunks, err := s.Split(doc)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	for _, chunk := range chunks {
		assert.LessOrEqual(t, len([]rune(chunk.Text)), 40)
	}
}

func TestSplitPrefersHeadingBoundaries(t *testing.T) {
	s, err := processor.NewSplitter(processor.SplitterConfig{ChunkSize: 80, ChunkOverlap: 0})
	require.NoError(t, err)

	// Each section is longer than half a chunk, so no two sections can be
	// merged and every cut must land on a heading boundary.
	section := "piste conditions are groomed daily and lifts spin from nine" // 59 runes
	doc := testDocument(section + "\n## Lifts\n" + section + "\n## Slopes\n" + section)

	chunks, err := s.Split(doc)
	require.NoError(t, err)
	require.Len(t, chunks, 3)

	assert.True(t, strings.HasPrefix(chunks[1].Text, "\n## Lifts\n"))
	assert.True(t, strings.HasPrefix(chunks[2].Text, "\n## Slopes\n"))
}
