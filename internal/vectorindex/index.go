// Package vectorindex embeds chunks and answers similarity searches, optionally
// restricted to a single source document.
package vectorindex

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/joseph-ayodele/contracts-analyzer/internal/common"
	"github.com/joseph-ayodele/contracts-analyzer/internal/entity"
)

// ErrEmbedding is fatal to Build: there is no index without embeddings.
var ErrEmbedding = fmt.Errorf("vectorindex: %w", common.ErrEmbedding)

// ErrNotBuilt is returned by Search before Build has completed.
var ErrNotBuilt = errors.New("vectorindex: index not built")

// Hit is one ranked search result.
type Hit struct {
	Chunk entity.Chunk `json:"chunk"`
	Score float64      `json:"score"`
}

// Entry pairs a chunk with its embedding; it is the unit of persistence.
type Entry struct {
	Chunk  entity.Chunk `json:"chunk"`
	Vector []float32    `json:"-"`
}

// Index is the contract shared by the in-memory and pgvector implementations.
// Search with a non-empty sourceID never returns chunks from another source.
type Index interface {
	Build(ctx context.Context, chunks []entity.Chunk) error
	Search(ctx context.Context, query string, k int, sourceID string) ([]Hit, error)
}

// Config tunes embedding calls during Build.
type Config struct {
	BatchSize   int // chunks per Embed call, default 64
	Concurrency int // concurrent Embed calls, default 2
}

func (c Config) withDefaults() Config {
	if c.BatchSize <= 0 {
		c.BatchSize = 64
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 2
	}
	return c
}

// cosine returns the cosine similarity of a and b; mismatched or zero vectors score 0.
func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// Sources returns the distinct source ids of entries in first-seen order.
func Sources(entries []Entry) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, e := range entries {
		if _, ok := seen[e.Chunk.SourceID]; ok {
			continue
		}
		seen[e.Chunk.SourceID] = struct{}{}
		out = append(out, e.Chunk.SourceID)
	}
	return out
}

// EncodeVector packs v as little-endian float32s.
func EncodeVector(v []float32) []byte {
	b := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(b[4*i:], math.Float32bits(f))
	}
	return b
}

// DecodeVector is the inverse of EncodeVector; ok=false when b is not a whole number of floats.
func DecodeVector(b []byte) ([]float32, bool) {
	if len(b)%4 != 0 {
		return nil, false
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v, true
}
