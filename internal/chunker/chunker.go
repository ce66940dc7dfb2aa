// Package chunker splits extracted page fragments into overlapping, bounded windows for embedding.
package chunker

import (
	"unicode"

	"github.com/joseph-ayodele/contracts-analyzer/internal/entity"
)

// DefaultChunkSize is the default number of characters per chunk.
const DefaultChunkSize = 1500

// DefaultChunkOverlap is the default number of overlapping characters.
const DefaultChunkOverlap = 200

// Chunker splits fragments into chunks. It holds only configuration and is safe for concurrent use.
type Chunker struct {
	chunkSize int
	overlap   int
}

// Option configures the chunker.
type Option func(*Chunker)

// WithChunkSize sets the chunk size in characters.
func WithChunkSize(size int) Option {
	return func(c *Chunker) {
		if size > 0 {
			c.chunkSize = size
		}
	}
}

// WithOverlap sets the overlap between chunks in characters.
func WithOverlap(overlap int) Option {
	return func(c *Chunker) {
		if overlap >= 0 {
			c.overlap = overlap
		}
	}
}

// New creates a chunker with the given options.
func New(opts ...Option) *Chunker {
	c := &Chunker{
		chunkSize: DefaultChunkSize,
		overlap:   DefaultChunkOverlap,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.overlap >= c.chunkSize {
		c.overlap = c.chunkSize / 4
	}
	return c
}

// Size returns the configured window size.
func (c *Chunker) Size() int { return c.chunkSize }

// Overlap returns the configured overlap.
func (c *Chunker) Overlap() int { return c.overlap }

// Split turns fragments into chunks. Each fragment is windowed independently so a chunk
// never spans pages or documents. Chunk.Index counts per source document.
func (c *Chunker) Split(fragments []entity.TextFragment) []entity.Chunk {
	var out []entity.Chunk
	next := map[string]int{}
	for _, f := range fragments {
		runes := []rune(f.Text)
		for _, w := range c.windows(runes) {
			out = append(out, entity.Chunk{
				SourceID:  f.SourceID,
				PageIndex: f.PageIndex,
				Method:    f.Method,
				Text:      string(runes[w[0]:w[1]]),
				Index:     next[f.SourceID],
				Offset:    w[0],
			})
			next[f.SourceID]++
		}
	}
	return out
}

// windows returns [start,end) rune ranges covering runes.
// A window prefers to end after whitespace in its last quarter.
func (c *Chunker) windows(runes []rune) [][2]int {
	n := len(runes)
	if n == 0 || isBlank(runes) {
		return nil
	}
	var out [][2]int
	start := 0
	for {
		end := start + c.chunkSize
		if end >= n {
			out = append(out, [2]int{start, n})
			return out
		}
		floor := start + c.chunkSize*3/4
		for i := end - 1; i >= floor && i > start; i-- {
			if unicode.IsSpace(runes[i]) {
				end = i + 1
				break
			}
		}
		out = append(out, [2]int{start, end})

		nextStart := end - c.overlap
		if nextStart <= start {
			nextStart = start + 1
		}
		start = nextStart
	}
}

func isBlank(runes []rune) bool {
	for _, r := range runes {
		if !unicode.IsSpace(r) {
			return false
		}
	}
	return true
}

// Reconstruct reverses Split: chunks are regrouped per (source, page) in first-seen order
// and their overlap regions dropped using the recorded offsets.
func Reconstruct(chunks []entity.Chunk) []entity.TextFragment {
	type key struct {
		source string
		page   int
	}
	var order []key
	texts := map[key][]rune{}
	methods := map[key]entity.TextFragment{}
	for _, ch := range chunks {
		k := key{ch.SourceID, ch.PageIndex}
		cur, seen := texts[k]
		if !seen {
			order = append(order, k)
			methods[k] = entity.TextFragment{SourceID: ch.SourceID, PageIndex: ch.PageIndex, Method: ch.Method}
		}
		r := []rune(ch.Text)
		skip := len(cur) - ch.Offset
		if skip < 0 {
			skip = 0
		}
		if skip < len(r) {
			cur = append(cur, r[skip:]...)
		}
		texts[k] = cur
	}
	out := make([]entity.TextFragment, 0, len(order))
	for _, k := range order {
		f := methods[k]
		f.Text = string(texts[k])
		out = append(out, f)
	}
	return out
}
