package knowledge

import (
	"context"
	"fmt"
	"log"

	"github.com/polyana-labs/concierge/internal/models"
	"github.com/polyana-labs/concierge/internal/types"
)

// Loader turns a knowledge source into in-memory documents. A single
// unreachable or malformed document is skipped and logged, not fatal: a
// partial knowledge base still serves retrieval. Listing failure is fatal
// because nothing can be loaded at all.
type Loader struct {
	source types.KnowledgeSource
}

func NewLoader(source types.KnowledgeSource) *Loader {
	return &Loader{source: source}
}

// LoadAll fetches every listed document. Fetch failures within one pass are
// treated as permanent; the caller retries by re-running the whole pass.
func (l *Loader) LoadAll(ctx context.Context) ([]models.Document, error) {
	refs, err := l.source.ListDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list knowledge documents: %w", err)
	}

	documents := make([]models.Document, 0, len(refs))
	for _, ref := range refs {
		text, err := l.source.FetchText(ctx, ref)
		if err != nil {
			log.Printf("skipping knowledge document %s: %v", ref.ID, err)
			continue
		}
		documents = append(documents, models.Document{
			SourceID: ref.ID,
			Category: ref.Category,
			Text:     text,
		})
	}

	return documents, nil
}
