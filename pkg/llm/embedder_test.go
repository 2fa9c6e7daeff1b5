package llm_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/polyana-labs/concierge/pkg/llm"
)

// fakeBackend records every CreateEmbedding call and returns one vector per
// text, tagged so the test can verify ordering across batches.
type fakeBackend struct {
	calls   [][]string
	failAt  int // 1-based call number that should fail; 0 means never
	callNum int
}

func (f *fakeBackend) CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error) {
	f.callNum++
	f.calls = append(f.calls, texts)
	if f.failAt != 0 && f.callNum == f.failAt {
		return nil, errors.New("provider unavailable")
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = []float32{float32(len(text)), float32(f.callNum)}
	}
	return out, nil
}

func testConfig() llm.EmbedderConfig {
	return llm.EmbedderConfig{
		Backend:   "openai",
		Model:     "text-embedding-3-small",
		BatchSize: 3,
		RateLimit: 1000,
	}
}

func TestEmbedSplitsBatchesAndPreservesOrder(t *testing.T) {
	backend := &fakeBackend{}
	emb := llm.NewEmbedderWithBackend(backend, testConfig())

	texts := make([]string, 8)
	for i := range texts {
		texts[i] = fmt.Sprintf("chunk-%d-%s", i, string(make([]byte, i)))
	}

	vectors, err := emb.Embed(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, vectors, len(texts))

	// 8 texts with batch size 3 means calls of 3, 3 and 2.
	require.Len(t, backend.calls, 3)
	assert.Len(t, backend.calls[0], 3)
	assert.Len(t, backend.calls[1], 3)
	assert.Len(t, backend.calls[2], 2)

	for i, vec := range vectors {
		assert.Equal(t, float32(len(texts[i])), vec[0], "vector %d out of order", i)
	}
}

func TestEmbedFailFast(t *testing.T) {
	backend := &fakeBackend{failAt: 2}
	emb := llm.NewEmbedderWithBackend(backend, testConfig())

	texts := make([]string, 7)
	for i := range texts {
		texts[i] = fmt.Sprintf("text %d", i)
	}

	vectors, err := emb.Embed(context.Background(), texts)
	assert.Error(t, err)
	assert.Nil(t, vectors, "no partial results on batch failure")
	assert.Len(t, backend.calls, 2, "embedding must stop at the failed batch")
}

func TestEmbedEmptyInput(t *testing.T) {
	backend := &fakeBackend{}
	emb := llm.NewEmbedderWithBackend(backend, testConfig())

	vectors, err := emb.Embed(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vectors)
	assert.Empty(t, backend.calls)
}

func TestEmbedRejectsShortProviderResponse(t *testing.T) {
	emb := llm.NewEmbedderWithBackend(&truncatingBackend{}, testConfig())

	_, err := emb.Embed(context.Background(), []string{"one", "two"})
	assert.ErrorContains(t, err, "returned 1 vectors for 2 texts")
}

type truncatingBackend struct{}

func (truncatingBackend) CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error) {
	return [][]float32{{1, 2}}, nil
}

func TestNewEmbedderWithConfigUnknownBackend(t *testing.T) {
	_, err := llm.NewEmbedderWithConfig(llm.EmbedderConfig{Backend: "fax"})
	assert.Error(t, err)
}
