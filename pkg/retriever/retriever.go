package retriever

import (
	"context"
	"fmt"
	"path"
	"strings"
	"sync"

	"github.com/polyana-labs/concierge/internal/models"
	"github.com/polyana-labs/concierge/internal/types"
	"github.com/polyana-labs/concierge/pkg/index"
	"github.com/polyana-labs/concierge/pkg/knowledge"
)

// State is the engine lifecycle. Transitions: Uninitialized → Initializing →
// Ready, or Initializing → Failed. Once Ready, only an explicit Rebuild runs
// the pipeline again.
type State int

const (
	StateUninitialized State = iota
	StateInitializing
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// IngestStats describes one completed ingestion pass.
type IngestStats struct {
	Documents  int
	Chunks     int
	Characters int
}

// Persistence receives the freshly built entries after every successful
// pipeline run. Optional; the pgvector store satisfies it.
type Persistence interface {
	Replace(ctx context.Context, entries []models.VectorEntry) error
}

type EngineConfig struct {
	// Oversample multiplies k on the underlying search when a category filter
	// is set, compensating for post-filter losses.
	Oversample int
	Persist    Persistence
}

// Engine coordinates loader, splitter, embedder and index. Initialization is
// memoized and single-flight: however many requests arrive during cold start,
// the pipeline runs once and they all share its outcome.
type Engine struct {
	source   types.KnowledgeSource
	splitter types.Splitter
	embedder types.Embedder
	config   EngineConfig

	mu       sync.Mutex
	state    State
	initErr  error
	done     chan struct{} // closed when the running attempt finishes
	searcher types.Searcher
	stats    IngestStats

	rebuildMu sync.Mutex
}

func NewEngine(source types.KnowledgeSource, splitter types.Splitter, embedder types.Embedder, config EngineConfig) *Engine {
	if config.Oversample < 1 {
		config.Oversample = 2
	}
	return &Engine{
		source:   source,
		splitter: splitter,
		embedder: embedder,
		config:   config,
	}
}

// State reports the current lifecycle state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Stats reports the last successful ingestion pass.
func (e *Engine) Stats() IngestStats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats
}

// Initialize runs the ingestion pipeline once. Concurrent callers during a
// running attempt block and share its result. After a failure the engine stays
// Failed and returns the stored error; Rebuild is the explicit retry.
func (e *Engine) Initialize(ctx context.Context) error {
	e.mu.Lock()
	switch e.state {
	case StateReady:
		e.mu.Unlock()
		return nil
	case StateFailed:
		err := e.initErr
		e.mu.Unlock()
		return fmt.Errorf("retrieval engine not ready: %w", err)
	case StateInitializing:
		done := e.done
		e.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
		e.mu.Lock()
		err := e.initErr
		e.mu.Unlock()
		if err != nil {
			return fmt.Errorf("retrieval engine not ready: %w", err)
		}
		return nil
	}

	e.state = StateInitializing
	e.done = make(chan struct{})
	done := e.done
	e.mu.Unlock()

	searcher, stats, err := e.buildIndex(ctx)

	e.mu.Lock()
	if err != nil {
		e.state = StateFailed
		e.initErr = err
	} else {
		e.state = StateReady
		e.searcher = searcher
		e.stats = stats
	}
	close(done)
	e.mu.Unlock()

	return err
}

// Rebuild runs the pipeline again and atomically swaps the index. The old
// index keeps serving searches until the new one is fully built; a failed
// rebuild of a Ready engine leaves it Ready on the old index.
func (e *Engine) Rebuild(ctx context.Context) error {
	e.rebuildMu.Lock()
	defer e.rebuildMu.Unlock()

	searcher, stats, err := e.buildIndex(ctx)

	e.mu.Lock()
	defer e.mu.Unlock()
	if err != nil {
		if e.state != StateReady {
			e.state = StateFailed
			e.initErr = err
		}
		return err
	}
	e.state = StateReady
	e.initErr = nil
	e.searcher = searcher
	e.stats = stats
	return nil
}

func (e *Engine) buildIndex(ctx context.Context) (types.Searcher, IngestStats, error) {
	var stats IngestStats

	docs, err := knowledge.NewLoader(e.source).LoadAll(ctx)
	if err != nil {
		return nil, stats, err
	}
	stats.Documents = len(docs)

	var chunks []models.Chunk
	for _, doc := range docs {
		split, err := e.splitter.Split(doc)
		if err != nil {
			return nil, stats, fmt.Errorf("failed to split %s: %w", doc.SourceID, err)
		}
		chunks = append(chunks, split...)
	}
	stats.Chunks = len(chunks)
	for _, chunk := range chunks {
		stats.Characters += len(chunk.Text)
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}

	// A partial index is worse than none: a single embedding failure fails the
	// whole pass.
	vectors, err := e.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, stats, fmt.Errorf("failed to embed knowledge base: %w", err)
	}

	entries := make([]models.VectorEntry, len(chunks))
	for i := range chunks {
		entries[i] = models.VectorEntry{Chunk: chunks[i], Vector: vectors[i]}
	}

	idx, err := index.Build(entries)
	if err != nil {
		return nil, stats, err
	}

	if e.config.Persist != nil {
		if err := e.config.Persist.Replace(ctx, entries); err != nil {
			return nil, stats, fmt.Errorf("failed to persist index: %w", err)
		}
	}

	return idx, stats, nil
}

// Search embeds the query and returns up to k chunks, optionally narrowed to
// one category. An empty result is a valid answer, not an error. A cold engine
// initializes on first use; a Failed engine returns the stored error.
func (e *Engine) Search(ctx context.Context, query string, k int, cat models.Category) ([]models.Chunk, error) {
	if k <= 0 {
		return nil, nil
	}

	if err := e.Initialize(ctx); err != nil {
		return nil, err
	}

	vectors, err := e.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("retrieval unavailable: %w", err)
	}

	e.mu.Lock()
	searcher := e.searcher
	e.mu.Unlock()

	if searcher.Len() == 0 {
		return nil, nil
	}

	fetch := k
	if cat != "" {
		fetch = k * e.config.Oversample
	}

	results, err := searcher.Search(vectors[0], fetch)
	if err != nil {
		return nil, err
	}

	chunks := make([]models.Chunk, 0, k)
	for _, result := range results {
		if cat != "" && result.Chunk.Category != cat {
			continue
		}
		chunks = append(chunks, result.Chunk)
		if len(chunks) == k {
			break
		}
	}
	return chunks, nil
}

// NoContextFound is the explicit empty-retrieval marker handed to generation.
const NoContextFound = "No relevant information found."

// AssembleContext renders retrieved chunks into the prompt fragment consumed
// by the downstream generation call. The core never calls the model itself.
func AssembleContext(chunks []models.Chunk) string {
	if len(chunks) == 0 {
		return NoContextFound
	}

	parts := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		source := strings.TrimSuffix(path.Base(chunk.SourceID), path.Ext(chunk.SourceID))
		parts = append(parts, fmt.Sprintf("[Source %d: %s]\n%s", i+1, source, chunk.Text))
	}
	return strings.Join(parts, "\n\n---\n\n")
}
