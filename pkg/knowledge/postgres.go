package knowledge

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/polyana-labs/concierge/internal/models"
	"github.com/polyana-labs/concierge/internal/types"
)

// PostgresSource reads the admin-managed knowledge_base table. Inactive
// entries are invisible to retrieval; rows with a category outside the
// canonical taxonomy are normalized at listing time.
type PostgresSource struct {
	pool *pgxpool.Pool
}

func NewPostgresSource(ctx context.Context, connString string) (*PostgresSource, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %v", err)
	}

	s := &PostgresSource{pool: pool}
	if err := s.initialize(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresSource) initialize(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS knowledge_base (
			id SERIAL PRIMARY KEY,
			title TEXT NOT NULL,
			category TEXT NOT NULL,
			content TEXT NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT true,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	if err != nil {
		return fmt.Errorf("failed to create knowledge_base table: %v", err)
	}
	return nil
}

func (s *PostgresSource) ListDocuments(ctx context.Context) ([]types.DocumentRef, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, title, category FROM knowledge_base WHERE is_active ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list knowledge entries: %v", err)
	}
	defer rows.Close()

	var refs []types.DocumentRef
	for rows.Next() {
		var id int
		var title, rawCategory string
		if err := rows.Scan(&id, &title, &rawCategory); err != nil {
			return nil, fmt.Errorf("failed to scan knowledge row: %v", err)
		}

		category, err := models.ParseCategory(rawCategory)
		if err != nil {
			return nil, fmt.Errorf("entry %d (%s): %w", id, title, err)
		}

		refs = append(refs, types.DocumentRef{
			ID:       title,
			Category: category,
			TextPath: strconv.Itoa(id),
		})
	}
	return refs, rows.Err()
}

func (s *PostgresSource) FetchText(ctx context.Context, ref types.DocumentRef) (string, error) {
	var content string
	err := s.pool.QueryRow(ctx,
		`SELECT content FROM knowledge_base WHERE id = $1`, ref.TextPath).Scan(&content)
	if err != nil {
		return "", fmt.Errorf("failed to fetch knowledge entry %s: %v", ref.ID, err)
	}
	return content, nil
}

func (s *PostgresSource) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}
