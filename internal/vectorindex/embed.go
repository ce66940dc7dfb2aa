package vectorindex

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/contracts-analyzer/internal/cache"
	"github.com/joseph-ayodele/contracts-analyzer/internal/llm"
)

// embedder wraps an llm.Embedder with batching, bounded concurrency and an optional
// per-text cache keyed by (model, text).
type embedder struct {
	inner  llm.Embedder
	cfg    Config
	store  cache.Store
	model  string
	logger *slog.Logger
}

func (e *embedder) embedAll(ctx context.Context, texts []string) ([][]float32, error) {
	start := time.Now()
	out := make([][]float32, len(texts))

	var todo []int
	for i, t := range texts {
		if e.store == nil {
			todo = append(todo, i)
			continue
		}
		raw, ok, err := e.store.Get(ctx, e.key(t))
		if err == nil && ok {
			if v, ok := DecodeVector(raw); ok && len(v) > 0 {
				out[i] = v
				continue
			}
		}
		todo = append(todo, i)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Concurrency)
	for lo := 0; lo < len(todo); lo += e.cfg.BatchSize {
		hi := min(lo+e.cfg.BatchSize, len(todo))
		batch := todo[lo:hi]
		g.Go(func() error {
			in := make([]string, len(batch))
			for j, idx := range batch {
				in[j] = texts[idx]
			}
			vecs, err := e.inner.Embed(gctx, in)
			if err != nil {
				return fmt.Errorf("%w: batch of %d: %w", ErrEmbedding, len(in), err)
			}
			if len(vecs) != len(in) {
				return fmt.Errorf("%w: got %d vectors for %d texts", ErrEmbedding, len(vecs), len(in))
			}
			for j, idx := range batch {
				if len(vecs[j]) == 0 {
					return fmt.Errorf("%w: empty vector for text %d", ErrEmbedding, idx)
				}
				out[idx] = vecs[j]
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		e.logger.Error("vectorindex.embed.failed", "texts", len(texts), "error", err)
		return nil, err
	}

	if e.store != nil {
		for _, idx := range todo {
			if err := e.store.Put(ctx, e.key(texts[idx]), EncodeVector(out[idx])); err != nil {
				e.logger.Warn("vectorindex.embed.cache_put_failed", "error", err)
				break
			}
		}
	}
	e.logger.Debug("vectorindex.embed.ok",
		"texts", len(texts),
		"embedded", len(todo),
		"cached", len(texts)-len(todo),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}

func (e *embedder) embedQuery(ctx context.Context, query string) ([]float32, error) {
	if qe, ok := e.inner.(llm.QueryEmbedder); ok {
		v, err := qe.EmbedQuery(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("%w: query: %w", ErrEmbedding, err)
		}
		return v, nil
	}
	vecs, err := e.inner.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("%w: query: %w", ErrEmbedding, err)
	}
	if len(vecs) != 1 || len(vecs[0]) == 0 {
		return nil, fmt.Errorf("%w: query: no vector returned", ErrEmbedding)
	}
	return vecs[0], nil
}

func (e *embedder) key(text string) string {
	return cache.StringKey("embedding/v1", e.model, text)
}
