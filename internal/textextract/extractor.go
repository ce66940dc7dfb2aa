// Package textextract turns one source document into page-level text fragments by trying
// progressively more expensive tiers until one yields substantial text.
package textextract

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joseph-ayodele/contracts-analyzer/constants"
	"github.com/joseph-ayodele/contracts-analyzer/internal/cache"
	"github.com/joseph-ayodele/contracts-analyzer/internal/common"
	"github.com/joseph-ayodele/contracts-analyzer/internal/entity"
	"github.com/joseph-ayodele/contracts-analyzer/internal/llm"
)

// DefaultMinChars is the non-whitespace character count a non-final tier must exceed.
const DefaultMinChars = 100

type Config struct {
	MinChars int    // default 100
	TempDir  string // parent for the per-document spill file; "" = os temp dir
}

type Extractor struct {
	cfg    Config
	tiers  []Tier
	word   WordConverter
	cache  cache.Store
	logger *slog.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithWordConverter replaces the docconv-based Word converter.
func WithWordConverter(fn WordConverter) Option {
	return func(e *Extractor) {
		if fn != nil {
			e.word = fn
		}
	}
}

// WithCache memoizes successful extractions by content hash.
func WithCache(store cache.Store) Option {
	return func(e *Extractor) { e.cache = store }
}

// NewExtractor builds an extractor over an ordered tier list. Order is the fallback order.
func NewExtractor(cfg Config, tiers []Tier, logger *slog.Logger, opts ...Option) *Extractor {
	if cfg.MinChars <= 0 {
		cfg.MinChars = DefaultMinChars
	}
	if logger == nil {
		logger = slog.Default()
	}
	e := &Extractor{cfg: cfg, tiers: tiers, word: docconvConvert, logger: logger}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// DefaultTiers returns native → raster → vision wired from configuration.
func DefaultTiers(cfg common.ExtractionConfig, vision llm.VisionModel, limiter *llm.RateLimiter, runner Runner, logger *slog.Logger) []Tier {
	if runner == nil {
		runner = NewExecRunner(logger)
	}
	return []Tier{
		NewNativeTier(logger),
		NewRasterTier(cfg.Pdftotext, runner, logger),
		NewVisionTier(VisionConfig{
			Pdftoppm: cfg.Pdftoppm,
			DPI:      cfg.DPI,
			MaxPages: cfg.MaxPages,
			Timeout:  cfg.VisionTimeout,
			TempDir:  cfg.TempDir,
		}, vision, limiter, runner, logger),
	}
}

type extraction struct {
	Fragments []entity.TextFragment      `json:"fragments"`
	Method    constants.ExtractionMethod `json:"method"`
	Warnings  []string                   `json:"warnings,omitempty"`
}

// Extract runs the fallback chain for one document. It never returns an error: exhaustion of
// all tiers is reported as an unprocessable DocumentResult so the batch can continue.
func (e *Extractor) Extract(ctx context.Context, doc entity.SourceDocument) (entity.DocumentResult, bool) {
	start := time.Now()
	logger := common.LoggerWith(common.WithSourceID(ctx, doc.ID), e.logger)
	res := entity.DocumentResult{SourceID: doc.ID, Status: constants.DocumentStatusUnprocessable}

	logger.Info("textextract.start", "ext", doc.Ext, "bytes", doc.Size)

	key := cache.Key("textextract/v1", doc.Data, []byte(e.fingerprint()))
	out, hit, err := cache.GetOrCompute(ctx, e.cache, key, func(ctx context.Context) (extraction, error) {
		return e.extract(ctx, doc, logger)
	})
	res.Duration = time.Since(start)
	if err != nil {
		res.Err = err.Error()
		res.Warnings = append(res.Warnings, out.Warnings...)
		logger.Error("textextract.unprocessable", "error", err, "elapsed_ms", res.Duration.Milliseconds())
		return res, false
	}

	// cached fragments carry the id of whichever document filled the entry
	for i := range out.Fragments {
		out.Fragments[i].SourceID = doc.ID
	}

	res.Status = constants.DocumentStatusProcessed
	res.Method = out.Method
	res.Fragments = out.Fragments
	res.Warnings = out.Warnings
	for _, f := range out.Fragments {
		if f.PageIndex+1 > res.Pages {
			res.Pages = f.PageIndex + 1
		}
	}
	logger.Info("textextract.ok",
		"method", res.Method,
		"fragments", len(res.Fragments),
		"cache_hit", hit,
		"elapsed_ms", res.Duration.Milliseconds(),
	)
	return res, true
}

func (e *Extractor) extract(ctx context.Context, doc entity.SourceDocument, logger *slog.Logger) (extraction, error) {
	switch constants.MapExtToFormat(doc.Ext) {
	case constants.WORD:
		frags, err := e.extractWord(doc)
		if err != nil {
			return extraction{Warnings: []string{err.Error()}}, fmt.Errorf("%w: %w", common.ErrUnprocessable, err)
		}
		return extraction{Fragments: frags, Method: constants.MethodDocx}, nil
	case constants.PDF:
		return e.runTiers(ctx, doc, logger)
	default:
		return extraction{}, fmt.Errorf("%w: unsupported extension %q", common.ErrUnprocessable, doc.Ext)
	}
}

func (e *Extractor) runTiers(ctx context.Context, doc entity.SourceDocument, logger *slog.Logger) (extraction, error) {
	tmpDir, err := os.MkdirTemp(e.cfg.TempDir, "ca-doc-*")
	if err != nil {
		return extraction{}, fmt.Errorf("temp dir: %w", err)
	}
	defer func(path string) {
		if err := os.RemoveAll(path); err != nil {
			logger.Warn("textextract.cleanup_failed", "dir", path, "error", err)
		}
	}(tmpDir)

	path := filepath.Join(tmpDir, "document.pdf")
	if err := os.WriteFile(path, doc.Data, 0o600); err != nil {
		return extraction{}, fmt.Errorf("spill document: %w", err)
	}
	in := Input{Doc: doc, Path: path}

	var warnings []string
	for i, tier := range e.tiers {
		if err := ctx.Err(); err != nil {
			warnings = append(warnings, err.Error())
			break
		}
		final := i == len(e.tiers)-1
		tierStart := time.Now()

		frags, err := tier.Attempt(ctx, in)
		if err == nil {
			err = e.check(tier.Method(), frags, final)
		}
		if err != nil {
			warnings = append(warnings, err.Error())
			logger.Warn("textextract.tier.failed", "tier", tier.Method(), "error", err,
				"elapsed_ms", time.Since(tierStart).Milliseconds())
			continue
		}

		logger.Debug("textextract.tier.ok", "tier", tier.Method(), "fragments", len(frags),
			"elapsed_ms", time.Since(tierStart).Milliseconds())
		return extraction{Fragments: frags, Method: tier.Method(), Warnings: warnings}, nil
	}
	return extraction{Warnings: warnings}, fmt.Errorf("%w: all %d tiers failed: %s",
		common.ErrUnprocessable, len(e.tiers), strings.Join(warnings, "; "))
}

// check applies the success criterion: more than MinChars non-whitespace characters,
// or for the final tier at least one non-empty page.
func (e *Extractor) check(method constants.ExtractionMethod, frags []entity.TextFragment, final bool) error {
	if final {
		if len(frags) == 0 {
			return failure(method, "no non-empty pages", nil)
		}
		return nil
	}
	if n := aggregateLen(frags); n <= e.cfg.MinChars {
		return failure(method, fmt.Sprintf("under threshold: %d <= %d characters", n, e.cfg.MinChars), nil)
	}
	return nil
}

func (e *Extractor) fingerprint() string {
	parts := []string{strconv.Itoa(e.cfg.MinChars)}
	for _, t := range e.tiers {
		parts = append(parts, string(t.Method()))
	}
	return strings.Join(parts, ",")
}
