package knowledge

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/polyana-labs/concierge/internal/models"
	"github.com/polyana-labs/concierge/internal/types"
	"golang.org/x/time/rate"
)

// FileRef names one remote knowledge document relative to the source base URL.
type FileRef struct {
	Path     string          `yaml:"path"`
	Category models.Category `yaml:"category"`
}

// DefaultManifest is the published knowledge base of the concierge site.
var DefaultManifest = []FileRef{
	{Path: "/knowledge-base/resorts/roza-hutor.md", Category: models.CategoryResort},
	{Path: "/knowledge-base/resorts/krasnaya-polyana.md", Category: models.CategoryResort},
	{Path: "/knowledge-base/resorts/gazprom.md", Category: models.CategoryResort},
	{Path: "/knowledge-base/instructors/certification-and-safety.md", Category: models.CategorySafety},
	{Path: "/knowledge-base/faq/common-questions.md", Category: models.CategoryFAQ},
	{Path: "/knowledge-base/pricing/pricing-structure.md", Category: models.CategoryPricing},
}

type HTTPSourceConfig struct {
	BaseURL   string
	Manifest  []FileRef
	RateLimit float64 // requests per second
	Timeout   time.Duration
}

// HTTPSource fetches knowledge documents over HTTP. Markdown and plain text
// pass through as-is; HTML pages are reduced to their main textual content.
type HTTPSource struct {
	config  HTTPSourceConfig
	client  *http.Client
	limiter *rate.Limiter
}

func NewHTTPSource(config HTTPSourceConfig) *HTTPSource {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.RateLimit == 0 {
		config.RateLimit = 2
	}
	if len(config.Manifest) == 0 {
		config.Manifest = DefaultManifest
	}

	return &HTTPSource{
		config:  config,
		client:  &http.Client{Timeout: config.Timeout},
		limiter: rate.NewLimiter(rate.Limit(config.RateLimit), 1),
	}
}

func (s *HTTPSource) ListDocuments(ctx context.Context) ([]types.DocumentRef, error) {
	refs := make([]types.DocumentRef, 0, len(s.config.Manifest))
	for _, file := range s.config.Manifest {
		refs = append(refs, types.DocumentRef{
			ID:       strings.TrimPrefix(file.Path, "/"),
			Category: file.Category,
			TextPath: s.config.BaseURL + file.Path,
		})
	}
	return refs, nil
}

func (s *HTTPSource) FetchText(ctx context.Context, ref types.DocumentRef) (string, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref.TextPath, nil)
	if err != nil {
		return "", err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("received status code %d for URL: %s", resp.StatusCode, ref.TextPath)
	}

	if strings.Contains(resp.Header.Get("Content-Type"), "text/html") {
		doc, err := goquery.NewDocumentFromReader(resp.Body)
		if err != nil {
			return "", err
		}
		return extractMainContent(doc), nil
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func extractMainContent(doc *goquery.Document) string {
	selectors := []string{"main", "article", ".content", "#content"}

	var content string
	for _, selector := range selectors {
		if selected := doc.Find(selector); selected.Length() > 0 {
			content = selected.Text()
			break
		}
	}
	if content == "" {
		content = doc.Find("body").Text()
	}

	return strings.TrimSpace(strings.Join(strings.Fields(content), " "))
}
