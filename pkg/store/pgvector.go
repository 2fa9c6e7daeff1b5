package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"github.com/polyana-labs/concierge/internal/models"
)

type StoreConfig struct {
	ConnString string
	TableName  string
	VectorDim  int
	BatchSize  int
}

// Store is a pgvector-backed chunk index. It offers the same search contract
// as the in-memory index but survives restarts, so ingestion does not have to
// re-embed an unchanged knowledge base.
type Store struct {
	config StoreConfig
	pool   *pgxpool.Pool
}

func NewWithConfig(ctx context.Context, config StoreConfig) (*Store, error) {
	if config.TableName == "" {
		config.TableName = "knowledge_chunks"
	}
	if config.VectorDim == 0 {
		config.VectorDim = 1536 // text-embedding-3-small
	}
	if config.BatchSize == 0 {
		config.BatchSize = 100
	}

	pool, err := pgxpool.New(ctx, config.ConnString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %v", err)
	}

	s := &Store{config: config, pool: pool}
	if err := s.initialize(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initialize(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector")
	if err != nil {
		return fmt.Errorf("failed to create vector extension: %v", err)
	}

	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			chunk_id TEXT PRIMARY KEY,
			source_id TEXT NOT NULL,
			category TEXT NOT NULL,
			content TEXT NOT NULL,
			sequence_index INTEGER NOT NULL,
			embedding vector(%d)
		)`, s.config.TableName, s.config.VectorDim)
	if _, err = s.pool.Exec(ctx, createTable); err != nil {
		return fmt.Errorf("failed to create table: %v", err)
	}

	createIndex := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS %s_embedding_idx
		ON %s
		USING ivfflat (embedding vector_cosine_ops)
		WITH (lists = 100)`,
		s.config.TableName, s.config.TableName)
	if _, err = s.pool.Exec(ctx, createIndex); err != nil {
		return fmt.Errorf("failed to create index: %v", err)
	}

	return nil
}

// Replace swaps the stored index for the given entries in one transaction, so
// readers never observe a partially rebuilt table.
func (s *Store) Replace(ctx context.Context, entries []models.VectorEntry) error {
	for _, entry := range entries {
		if len(entry.Vector) != s.config.VectorDim {
			return fmt.Errorf("entry %s has dimension %d, store expects %d",
				entry.Chunk.ChunkID, len(entry.Vector), s.config.VectorDim)
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %v", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, fmt.Sprintf("DELETE FROM %s", s.config.TableName)); err != nil {
		return fmt.Errorf("failed to clear table: %v", err)
	}

	stmt := fmt.Sprintf(`
		INSERT INTO %s (chunk_id, source_id, category, content, sequence_index, embedding)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		s.config.TableName)

	for _, entry := range entries {
		_, err = tx.Exec(ctx, stmt,
			entry.Chunk.ChunkID,
			entry.Chunk.SourceID,
			string(entry.Chunk.Category),
			entry.Chunk.Text,
			entry.Chunk.SequenceIndex,
			pgvector.NewVector(entry.Vector),
		)
		if err != nil {
			return fmt.Errorf("failed to insert chunk %s: %v", entry.Chunk.ChunkID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %v", err)
	}
	return nil
}

// Search returns up to k chunks ordered by cosine similarity, descending.
func (s *Store) Search(vector []float32, k int) ([]models.SearchResult, error) {
	ctx := context.Background()

	if k <= 0 {
		return nil, nil
	}

	query := fmt.Sprintf(`
		SELECT chunk_id, source_id, category, content, sequence_index,
		       1 - (embedding <=> $1) AS score
		FROM %s
		ORDER BY embedding <=> $1, chunk_id
		LIMIT $2`,
		s.config.TableName)

	rows, err := s.pool.Query(ctx, query, pgvector.NewVector(vector), k)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %v", err)
	}
	defer rows.Close()

	var results []models.SearchResult
	for rows.Next() {
		var chunk models.Chunk
		var category string
		var score float32
		err := rows.Scan(&chunk.ChunkID, &chunk.SourceID, &category, &chunk.Text, &chunk.SequenceIndex, &score)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %v", err)
		}
		chunk.Category = models.Category(category)
		results = append(results, models.SearchResult{Chunk: chunk, Score: score})
	}
	return results, rows.Err()
}

// Len reports the number of stored chunks, 0 if the count cannot be read.
func (s *Store) Len() int {
	var count int
	query := fmt.Sprintf("SELECT count(*) FROM %s", s.config.TableName)
	if err := s.pool.QueryRow(context.Background(), query).Scan(&count); err != nil {
		return 0
	}
	return count
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}
