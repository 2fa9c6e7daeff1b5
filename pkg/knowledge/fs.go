package knowledge

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/polyana-labs/concierge/internal/models"
	"github.com/polyana-labs/concierge/internal/types"
)

// FSSource reads a knowledge base laid out as <root>/<category>/<file>.md.
// Directory names are normalized to the canonical category taxonomy, so both
// "resorts" and legacy "instructors" layouts load cleanly.
type FSSource struct {
	root string
}

func NewFSSource(root string) *FSSource {
	return &FSSource{root: root}
}

func (s *FSSource) ListDocuments(ctx context.Context) ([]types.DocumentRef, error) {
	var refs []types.DocumentRef

	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".md" && ext != ".txt" {
			return nil
		}

		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		dir := filepath.Dir(rel)
		category, err := models.ParseCategory(filepath.Base(dir))
		if err != nil {
			return fmt.Errorf("directory %s: %w", dir, err)
		}

		refs = append(refs, types.DocumentRef{
			ID:       filepath.ToSlash(rel),
			Category: category,
			TextPath: path,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk knowledge dir %s: %w", s.root, err)
	}

	return refs, nil
}

func (s *FSSource) FetchText(ctx context.Context, ref types.DocumentRef) (string, error) {
	data, err := os.ReadFile(ref.TextPath)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
