package processor

import (
	"fmt"
	"strings"

	"github.com/polyana-labs/concierge/internal/models"
)

// DefaultSeparators mirrors the markdown structure of the knowledge base:
// section headings first, then paragraph breaks, lines, words, raw cuts.
var DefaultSeparators = []string{"\n## ", "\n### ", "\n\n", "\n", " ", ""}

type SplitterConfig struct {
	ChunkSize    int
	ChunkOverlap int
	Separators   []string
}

// Splitter divides documents into overlapping chunks. Splits prefer the
// highest-priority separator that produces pieces small enough; only when no
// separator helps does it fall back to raw character cuts.
type Splitter struct {
	config SplitterConfig
	step   int // chunk body size; the remaining ChunkOverlap runes come from the previous chunk
}

func NewSplitter(config SplitterConfig) (*Splitter, error) {
	if config.ChunkSize == 0 {
		config.ChunkSize = 1000
	}
	if config.ChunkSize < 1 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", config.ChunkSize)
	}
	if config.ChunkOverlap < 0 || config.ChunkOverlap >= config.ChunkSize {
		return nil, fmt.Errorf("chunk overlap %d must be non-negative and less than chunk size %d",
			config.ChunkOverlap, config.ChunkSize)
	}
	if len(config.Separators) == 0 {
		config.Separators = DefaultSeparators
	}

	return &Splitter{
		config: config,
		step:   config.ChunkSize - config.ChunkOverlap,
	}, nil
}

// Split produces the chunks of doc. A document no longer than ChunkSize yields
// exactly one chunk. Adjacent chunks share the configured overlap: each chunk
// after the first is prefixed with the trailing ChunkOverlap runes of the text
// that precedes its body, so concatenating chunk bodies reconstructs the
// document.
func (s *Splitter) Split(doc models.Document) ([]models.Chunk, error) {
	text := doc.Text
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	if runeLen(text) <= s.config.ChunkSize {
		return []models.Chunk{s.newChunk(doc, text, 0)}, nil
	}

	bodies := s.splitRecursive(text, s.config.Separators)
	bodies = s.mergeSmall(bodies)

	chunks := make([]models.Chunk, 0, len(bodies))
	prefix := ""
	for i, body := range bodies {
		chunkText := tailRunes(prefix, s.config.ChunkOverlap) + body
		chunks = append(chunks, s.newChunk(doc, chunkText, i))
		prefix += body
	}
	return chunks, nil
}

func (s *Splitter) newChunk(doc models.Document, text string, seq int) models.Chunk {
	return models.Chunk{
		ChunkID:       fmt.Sprintf("%s:%d", doc.SourceID, seq),
		SourceID:      doc.SourceID,
		Category:      doc.Category,
		Text:          text,
		SequenceIndex: seq,
	}
}

// splitRecursive cuts text into pieces of at most step runes, trying each
// separator in priority order. Separators are kept attached to the piece they
// introduce so that concatenating all pieces reproduces the input exactly.
func (s *Splitter) splitRecursive(text string, separators []string) []string {
	if runeLen(text) <= s.step {
		return []string{text}
	}
	if len(separators) == 0 {
		return s.hardCut(text)
	}

	sep := separators[0]
	if sep == "" {
		return s.hardCut(text)
	}

	parts := strings.Split(text, sep)
	if len(parts) == 1 {
		return s.splitRecursive(text, separators[1:])
	}
	for i := 1; i < len(parts); i++ {
		parts[i] = sep + parts[i]
	}

	var pieces []string
	for _, part := range parts {
		if part == "" {
			continue
		}
		if runeLen(part) <= s.step {
			pieces = append(pieces, part)
		} else {
			pieces = append(pieces, s.splitRecursive(part, separators[1:])...)
		}
	}
	return pieces
}

func (s *Splitter) hardCut(text string) []string {
	runes := []rune(text)
	var out []string
	for start := 0; start < len(runes); start += s.step {
		end := start + s.step
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, string(runes[start:end]))
	}
	return out
}

// mergeSmall greedily joins consecutive pieces while the result still fits in
// one chunk body, so that heading-dense documents do not explode into tiny
// chunks.
func (s *Splitter) mergeSmall(pieces []string) []string {
	var merged []string
	current := ""
	for _, piece := range pieces {
		if current != "" && runeLen(current)+runeLen(piece) > s.step {
			merged = append(merged, current)
			current = ""
		}
		current += piece
	}
	if current != "" {
		merged = append(merged, current)
	}
	return merged
}

func runeLen(s string) int {
	return len([]rune(s))
}

func tailRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[len(runes)-n:])
}
