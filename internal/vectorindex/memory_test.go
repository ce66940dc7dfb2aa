package vectorindex

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/contracts-analyzer/internal/cache"
	"github.com/joseph-ayodele/contracts-analyzer/internal/common"
	"github.com/joseph-ayodele/contracts-analyzer/internal/entity"
	"github.com/joseph-ayodele/contracts-analyzer/internal/llm"
)

var vocabulary = []string{"interest", "penalty", "bank", "term", "fee"}

// bagOfWords embeds a text as counts of a tiny fixed vocabulary plus a bias term.
func bagOfWords(text string) []float32 {
	v := make([]float32, len(vocabulary)+1)
	lower := strings.ToLower(text)
	for i, w := range vocabulary {
		v[i] = float32(strings.Count(lower, w))
	}
	v[len(vocabulary)] = 0.01
	return v
}

type countingEmbedder struct {
	mu      sync.Mutex
	calls   int
	batches []int
	fail    error
}

func (c *countingEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	c.mu.Lock()
	c.calls++
	c.batches = append(c.batches, len(texts))
	c.mu.Unlock()
	if c.fail != nil {
		return nil, c.fail
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = bagOfWords(t)
	}
	return out, nil
}

func chunk(source string, i int, text string) entity.Chunk {
	return entity.Chunk{SourceID: source, Index: i, Text: text}
}

func corpus() []entity.Chunk {
	return []entity.Chunk{
		chunk("a.pdf", 0, "the bank charges interest monthly"),
		chunk("a.pdf", 1, "early termination penalty of 2%"),
		chunk("b.pdf", 0, "penalty penalty penalty for late payment"),
		chunk("b.pdf", 1, "annual fee waived in the first term"),
		chunk("c.pdf", 0, "interest interest interest rate schedule"),
	}
}

func TestSearch_ScopedToSource(t *testing.T) {
	idx := NewMemoryIndex(&countingEmbedder{}, Config{}, nil)
	require.NoError(t, idx.Build(context.Background(), corpus()))

	queries := []string{"penalty", "interest", "bank fee", "nothing relevant"}
	for _, q := range queries {
		for k := 1; k <= 6; k++ {
			hits, err := idx.Search(context.Background(), q, k, "a.pdf")
			require.NoError(t, err)
			assert.LessOrEqual(t, len(hits), 2)
			for _, h := range hits {
				assert.Equal(t, "a.pdf", h.Chunk.SourceID, "query %q k=%d", q, k)
			}
		}
	}
}

func TestSearch_RanksByCosine(t *testing.T) {
	idx := NewMemoryIndex(&countingEmbedder{}, Config{}, nil)
	require.NoError(t, idx.Build(context.Background(), corpus()))

	hits, err := idx.Search(context.Background(), "penalty", 2, "")
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "b.pdf", hits[0].Chunk.SourceID)
	assert.Equal(t, "a.pdf", hits[1].Chunk.SourceID)
	assert.GreaterOrEqual(t, hits[0].Score, hits[1].Score)
}

func TestSearch_TiesKeepInsertionOrder(t *testing.T) {
	chunks := []entity.Chunk{
		chunk("a.pdf", 0, "fee"),
		chunk("a.pdf", 1, "fee"),
		chunk("a.pdf", 2, "fee"),
	}
	idx := NewMemoryIndex(&countingEmbedder{}, Config{}, nil)
	require.NoError(t, idx.Build(context.Background(), chunks))

	hits, err := idx.Search(context.Background(), "fee", 3, "a.pdf")
	require.NoError(t, err)
	require.Len(t, hits, 3)
	for i, h := range hits {
		assert.Equal(t, i, h.Chunk.Index)
	}
}

func TestSearch_UnknownSourceSkipsQueryEmbedding(t *testing.T) {
	emb := &countingEmbedder{}
	idx := NewMemoryIndex(emb, Config{}, nil)
	require.NoError(t, idx.Build(context.Background(), corpus()))
	before := emb.calls

	hits, err := idx.Search(context.Background(), "interest", 5, "missing.pdf")
	require.NoError(t, err)
	assert.Empty(t, hits)
	assert.Equal(t, before, emb.calls)
}

func TestSearch_BeforeBuild(t *testing.T) {
	_, err := NewMemoryIndex(&countingEmbedder{}, Config{}, nil).Search(context.Background(), "q", 1, "")
	assert.ErrorIs(t, err, ErrNotBuilt)
}

func TestSearch_PrefersQueryEmbedder(t *testing.T) {
	var queried string
	emb := struct {
		llm.Embedder
		llm.QueryEmbedder
	}{
		Embedder: &countingEmbedder{},
		QueryEmbedder: queryFunc(func(_ context.Context, q string) ([]float32, error) {
			queried = q
			return bagOfWords(q), nil
		}),
	}
	idx := NewMemoryIndex(emb, Config{}, nil)
	require.NoError(t, idx.Build(context.Background(), corpus()))

	_, err := idx.Search(context.Background(), "bank", 1, "")
	require.NoError(t, err)
	assert.Equal(t, "bank", queried)
}

type queryFunc func(ctx context.Context, q string) ([]float32, error)

func (f queryFunc) EmbedQuery(ctx context.Context, q string) ([]float32, error) { return f(ctx, q) }

func TestBuild_BatchesEmbeddings(t *testing.T) {
	var chunks []entity.Chunk
	for i := range 10 {
		chunks = append(chunks, chunk("a.pdf", i, fmt.Sprintf("term %d", i)))
	}
	emb := &countingEmbedder{}
	idx := NewMemoryIndex(emb, Config{BatchSize: 4, Concurrency: 2}, nil)
	require.NoError(t, idx.Build(context.Background(), chunks))

	assert.Equal(t, 3, emb.calls)
	assert.ElementsMatch(t, []int{4, 4, 2}, emb.batches)
	assert.Equal(t, 10, idx.Len())
	for i, e := range idx.Entries() {
		assert.Equal(t, i, e.Chunk.Index)
	}
}

func TestBuild_EmbeddingFailureIsFatal(t *testing.T) {
	idx := NewMemoryIndex(&countingEmbedder{fail: errors.New("quota exceeded")}, Config{}, nil)
	err := idx.Build(context.Background(), corpus())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEmbedding)
	assert.ErrorIs(t, err, common.ErrEmbedding)

	_, err = idx.Search(context.Background(), "q", 1, "")
	assert.ErrorIs(t, err, ErrNotBuilt)
}

func TestBuild_ShortResponseIsFatal(t *testing.T) {
	emb := llm.EmbedderFunc(func(context.Context, []string) ([][]float32, error) {
		return [][]float32{{1, 0}}, nil
	})
	err := NewMemoryIndex(emb, Config{}, nil).Build(context.Background(), corpus())
	assert.ErrorIs(t, err, ErrEmbedding)
}

func TestBuild_EmbeddingCache(t *testing.T) {
	store := cache.NewMemoryStore()
	emb := &countingEmbedder{}

	first := NewMemoryIndex(emb, Config{}, nil, WithEmbeddingCache(store, "test-model"))
	require.NoError(t, first.Build(context.Background(), corpus()))
	require.Equal(t, 1, emb.calls)
	assert.Equal(t, len(corpus()), store.Len())

	second := NewMemoryIndex(emb, Config{}, nil, WithEmbeddingCache(store, "test-model"))
	require.NoError(t, second.Build(context.Background(), corpus()))
	assert.Equal(t, 1, emb.calls)
	assert.Equal(t, first.Entries(), second.Entries())
}

func TestLoadMemoryIndex(t *testing.T) {
	emb := &countingEmbedder{}
	built := NewMemoryIndex(emb, Config{}, nil)
	require.NoError(t, built.Build(context.Background(), corpus()))

	loaded := LoadMemoryIndex(emb, built.Entries(), nil)
	want, err := built.Search(context.Background(), "penalty", 3, "")
	require.NoError(t, err)
	got, err := loaded.Search(context.Background(), "penalty", 3, "")
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, []string{"a.pdf", "b.pdf", "c.pdf"}, Sources(loaded.Entries()))
}

func TestVectorCodec(t *testing.T) {
	v := []float32{0, 1.5, -2.25, 3e-7}
	got, ok := DecodeVector(EncodeVector(v))
	require.True(t, ok)
	assert.Equal(t, v, got)

	_, ok = DecodeVector([]byte{1, 2, 3})
	assert.False(t, ok)
}

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, cosine([]float32{1, 2}, []float32{2, 4}), 1e-9)
	assert.InDelta(t, 0.0, cosine([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.Zero(t, cosine([]float32{1}, []float32{1, 2}))
	assert.Zero(t, cosine([]float32{0, 0}, []float32{1, 2}))
}
