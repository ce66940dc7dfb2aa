// Package extraction answers each field question per document from retrieved context
// and turns the answers into typed, validated records.
package extraction

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/contracts-analyzer/constants"
	"github.com/joseph-ayodele/contracts-analyzer/internal/cache"
	"github.com/joseph-ayodele/contracts-analyzer/internal/common"
	"github.com/joseph-ayodele/contracts-analyzer/internal/entity"
	"github.com/joseph-ayodele/contracts-analyzer/internal/llm"
	"github.com/joseph-ayodele/contracts-analyzer/internal/vectorindex"
)

// ContextSeparator joins retrieved chunks into one context block.
const ContextSeparator = "\n\n---\n\n"

// Retriever is the slice of the vector index extraction depends on.
type Retriever interface {
	Search(ctx context.Context, query string, k int, sourceID string) ([]vectorindex.Hit, error)
}

type Config struct {
	TopK        int           // chunks per field, default 5
	Timeout     time.Duration // per model call, default 60s
	Concurrency int           // documents in flight, default 1
}

func (c Config) withDefaults() Config {
	if c.TopK <= 0 {
		c.TopK = 5
	}
	if c.Timeout <= 0 {
		c.Timeout = 60 * time.Second
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 1
	}
	return c
}

type Extractor struct {
	retriever Retriever
	model     llm.TextModel
	limiter   *llm.RateLimiter
	cfg       Config
	store     cache.Store
	modelName string
	logger    *slog.Logger
}

type Option func(*Extractor)

// WithCache memoizes raw answers by (model, question, context).
func WithCache(store cache.Store, modelName string) Option {
	return func(e *Extractor) {
		e.store = store
		e.modelName = modelName
	}
}

// New builds an extractor. The limiter is shared across documents and may be nil.
func New(retriever Retriever, model llm.TextModel, limiter *llm.RateLimiter, cfg Config, logger *slog.Logger, opts ...Option) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Extractor{
		retriever: retriever,
		model:     model,
		limiter:   limiter,
		cfg:       cfg.withDefaults(),
		logger:    logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ExtractAll returns one record per source id, in input order. With Concurrency > 1 documents
// run in parallel behind the shared limiter; the output is the same either way.
func (e *Extractor) ExtractAll(ctx context.Context, sourceIDs []string, specs []entity.FieldSpec) []entity.ExtractedRecord {
	records := make([]entity.ExtractedRecord, len(sourceIDs))
	if e.cfg.Concurrency <= 1 {
		for i, id := range sourceIDs {
			records[i] = e.ExtractDocument(ctx, id, specs)
		}
		return records
	}

	var g errgroup.Group
	g.SetLimit(e.cfg.Concurrency)
	for i, id := range sourceIDs {
		g.Go(func() error {
			records[i] = e.ExtractDocument(ctx, id, specs)
			return nil
		})
	}
	_ = g.Wait()
	return records
}

// ExtractDocument fills every field for one document, then validates the record.
// Failures degrade to sentinel cells; the row is always returned.
func (e *Extractor) ExtractDocument(ctx context.Context, sourceID string, specs []entity.FieldSpec) entity.ExtractedRecord {
	start := time.Now()
	ctx = common.WithSourceID(ctx, sourceID)
	logger := common.LoggerWith(ctx, e.logger)

	rec := entity.NewRecord(sourceID, specs)
	for _, spec := range specs {
		rec.Values[spec.Key] = e.extractField(ctx, sourceID, spec, logger)
	}

	rec = ValidateRecord(rec, specs)
	if rec.ValidationError != "" {
		logger.Warn("extraction.record.invalid", "error", rec.ValidationError)
	}

	logger.Info("extraction.record.ok",
		"fields", len(specs),
		"missing", countKind(rec, entity.KindMissing),
		"errors", countKind(rec, entity.KindError),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return rec
}

func (e *Extractor) extractField(ctx context.Context, sourceID string, spec entity.FieldSpec, logger *slog.Logger) entity.Value {
	logger = logger.With("field", spec.Key)

	hits, err := e.retriever.Search(ctx, spec.Question, e.cfg.TopK, sourceID)
	if err != nil {
		logger.Error("extraction.field.retrieval_failed", "error", err)
		return entity.Error(constants.SentinelError)
	}
	passage := joinContext(hits)
	if passage == "" {
		logger.Debug("extraction.field.no_context")
		return entity.ContextNotFound()
	}

	start := time.Now()
	key := cache.StringKey("answer/v1", e.modelName, spec.Question, passage)
	answer, hit, err := cache.GetOrCompute(ctx, e.store, key, func(ctx context.Context) (string, error) {
		return e.ask(ctx, spec.Question, passage)
	})
	if err != nil {
		logger.Error("extraction.field.model_failed", "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		return entity.Error(constants.SentinelError)
	}

	v := Normalize(spec.Type, answer)
	logger.Debug("extraction.field.ok",
		"kind", v.Kind,
		"cache_hit", hit,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return v
}

func (e *Extractor) ask(ctx context.Context, question, passage string) (string, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return "", err
	}
	callCtx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	answer, err := e.model.Generate(callCtx, llm.BuildFieldPrompt(question, passage))
	if err != nil {
		if errors.Is(err, llm.ErrRateLimited) {
			e.limiter.RecordRateLimitError(0)
		}
		return "", err
	}
	return answer, nil
}

func joinContext(hits []vectorindex.Hit) string {
	parts := make([]string, 0, len(hits))
	for _, h := range hits {
		if t := strings.TrimSpace(h.Chunk.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, ContextSeparator)
}

func countKind(rec entity.ExtractedRecord, kind entity.ValueKind) int {
	n := 0
	for _, v := range rec.Values {
		if v.Kind == kind {
			n++
		}
	}
	return n
}
