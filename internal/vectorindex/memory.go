package vectorindex

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/joseph-ayodele/contracts-analyzer/internal/cache"
	"github.com/joseph-ayodele/contracts-analyzer/internal/entity"
	"github.com/joseph-ayodele/contracts-analyzer/internal/llm"
)

// MemoryIndex is a brute-force cosine index held in process memory.
// It is rebuilt per batch and can be persisted through its Entries.
type MemoryIndex struct {
	mu      sync.RWMutex
	emb     *embedder
	entries []Entry
	built   bool
	logger  *slog.Logger
}

// Option configures a MemoryIndex or PGIndex.
type Option func(*embedder)

// WithEmbeddingCache memoizes chunk embeddings per (model, text).
func WithEmbeddingCache(store cache.Store, model string) Option {
	return func(e *embedder) {
		e.store = store
		e.model = model
	}
}

func newEmbedder(inner llm.Embedder, cfg Config, logger *slog.Logger, opts []Option) *embedder {
	e := &embedder{inner: inner, cfg: cfg.withDefaults(), logger: logger}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func NewMemoryIndex(emb llm.Embedder, cfg Config, logger *slog.Logger, opts ...Option) *MemoryIndex {
	if logger == nil {
		logger = slog.Default()
	}
	return &MemoryIndex{emb: newEmbedder(emb, cfg, logger, opts), logger: logger}
}

// LoadMemoryIndex restores a previously built index from persisted entries.
func LoadMemoryIndex(emb llm.Embedder, entries []Entry, logger *slog.Logger) *MemoryIndex {
	idx := NewMemoryIndex(emb, Config{}, logger)
	idx.entries = entries
	idx.built = true
	return idx
}

// Build embeds every chunk and replaces the index contents. Any embedding failure aborts the build.
func (m *MemoryIndex) Build(ctx context.Context, chunks []entity.Chunk) error {
	start := time.Now()
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	vecs, err := m.emb.embedAll(ctx, texts)
	if err != nil {
		return err
	}

	entries := make([]Entry, len(chunks))
	dims := 0
	for i, c := range chunks {
		if dims == 0 {
			dims = len(vecs[i])
		}
		if len(vecs[i]) != dims {
			return fmt.Errorf("%w: dimension mismatch %d != %d", ErrEmbedding, len(vecs[i]), dims)
		}
		entries[i] = Entry{Chunk: c, Vector: vecs[i]}
	}

	m.mu.Lock()
	m.entries = entries
	m.built = true
	m.mu.Unlock()

	m.logger.Info("vectorindex.build.ok",
		"chunks", len(chunks),
		"dims", dims,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// Search ranks chunks by cosine similarity to query. The sourceID filter is applied
// before ranking; ties keep insertion order.
func (m *MemoryIndex) Search(ctx context.Context, query string, k int, sourceID string) ([]Hit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.built {
		return nil, ErrNotBuilt
	}
	if k <= 0 {
		return nil, nil
	}

	var candidates []Entry
	for _, e := range m.entries {
		if sourceID == "" || e.Chunk.SourceID == sourceID {
			candidates = append(candidates, e)
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	qv, err := m.emb.embedQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	hits := make([]Hit, len(candidates))
	for i, e := range candidates {
		hits[i] = Hit{Chunk: e.Chunk, Score: cosine(qv, e.Vector)}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > k {
		hits = hits[:k]
	}
	m.logger.Debug("vectorindex.search.ok", "source_id", sourceID, "k", k, "hits", len(hits))
	return hits, nil
}

// Entries returns a copy of the indexed entries for persistence.
func (m *MemoryIndex) Entries() []Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Entry, len(m.entries))
	copy(out, m.entries)
	return out
}

// Len reports the number of indexed chunks.
func (m *MemoryIndex) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
