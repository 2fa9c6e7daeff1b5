package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configData := `
embedding:
  backend: "ollama"
  base_url: "http://localhost:11434"
  model: "nomic-embed-text"
  batch_size: 32
  rate_limit: 2.5

knowledge:
  dir: "testdata/kb"

processor:
  chunk_size: 500
  chunk_overlap: 100

retrieval:
  top_k: 3
  oversample: 2

store:
  url: "postgres://localhost:5432/test"
  table_name: "test_chunks"
  vector_dim: 768

server:
  port: "9090"
`
	err := os.WriteFile(configPath, []byte(configData), 0644)
	require.NoError(t, err)

	config, err := LoadConfig(configPath)
	require.NoError(t, err)

	assert.Equal(t, "ollama", config.Embedding.Backend)
	assert.Equal(t, "http://localhost:11434", config.Embedding.BaseURL)
	assert.Equal(t, "nomic-embed-text", config.Embedding.Model)
	assert.Equal(t, 32, config.Embedding.BatchSize)
	assert.Equal(t, 2.5, config.Embedding.RateLimit)
	assert.Equal(t, "testdata/kb", config.Knowledge.Dir)
	assert.Equal(t, 500, config.Processor.ChunkSize)
	assert.Equal(t, 3, config.Retrieval.TopK)
	assert.Equal(t, "test_chunks", config.Store.TableName)
	assert.Equal(t, "9090", config.Server.Port)
}

func TestLoadConfigDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	require.NoError(t, os.WriteFile(configPath, []byte("{}\n"), 0644))

	config, err := LoadConfig(configPath)
	require.NoError(t, err)

	assert.Equal(t, "openai", config.Embedding.Backend)
	assert.Equal(t, "text-embedding-3-small", config.Embedding.Model)
	assert.Equal(t, 1000, config.Processor.ChunkSize)
	assert.Equal(t, 200, config.Processor.ChunkOverlap)
	assert.Equal(t, []string{"\n## ", "\n### ", "\n\n", "\n", " ", ""}, config.Processor.Separators)
	assert.Equal(t, 4, config.Retrieval.TopK)
	assert.Equal(t, 2, config.Retrieval.Oversample)
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name         string
		mutate       func(*Config)
		expectedErrs []string
	}{
		{
			name:         "valid defaults",
			mutate:       func(c *Config) {},
			expectedErrs: nil,
		},
		{
			name: "bad backend and batch size",
			mutate: func(c *Config) {
				c.Embedding.Backend = "carrier-pigeon"
				c.Embedding.BatchSize = 0
			},
			expectedErrs: []string{
				"embedding.backend: unsupported backend: carrier-pigeon",
				"embedding.batch_size: batch_size must be positive",
			},
		},
		{
			name: "overlap not below chunk size",
			mutate: func(c *Config) {
				c.Processor.ChunkSize = 100
				c.Processor.ChunkOverlap = 100
			},
			expectedErrs: []string{
				"processor.chunk_overlap: chunk_overlap must be non-negative and less than chunk_size",
			},
		},
		{
			name: "store configured without dimension",
			mutate: func(c *Config) {
				c.Store.URL = "postgres://localhost:5432/concierge"
				c.Store.VectorDim = -1
			},
			expectedErrs: []string{
				"store.vector_dim: vector_dim must be positive",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := &Config{}
			applyDefaults(config)
			tt.mutate(config)

			errors := config.Validate()
			assert.Len(t, errors, len(tt.expectedErrs))
			for i, msg := range tt.expectedErrs {
				assert.Equal(t, msg, errors[i].Error())
			}
		})
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	os.Setenv("EMBEDDING_BASE_URL", "http://env-ollama:11434")
	os.Setenv("DATABASE_URL", "postgres://env-db:5432/concierge")
	defer func() {
		os.Unsetenv("EMBEDDING_BASE_URL")
		os.Unsetenv("DATABASE_URL")
	}()

	config := &Config{}
	mergeWithEnv(config)

	assert.Equal(t, "http://env-ollama:11434", config.Embedding.BaseURL)
	assert.Equal(t, "postgres://env-db:5432/concierge", config.Store.URL)
	assert.Equal(t, "postgres://env-db:5432/concierge", config.Knowledge.DatabaseURL)
}
