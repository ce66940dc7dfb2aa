package textextract

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/joseph-ayodele/contracts-analyzer/constants"
	"github.com/joseph-ayodele/contracts-analyzer/internal/entity"
	"github.com/joseph-ayodele/contracts-analyzer/internal/llm"
)

// VisionConfig configures the vision OCR tier.
type VisionConfig struct {
	Pdftoppm string        // binary name or absolute path; default "pdftoppm"
	DPI      int           // rasterization DPI, default 300, never below 200
	MaxPages int           // 0 = no limit
	Timeout  time.Duration // per-page model call timeout, default 90s
	Prompt   string        // default llm.VisionOCRPrompt
	TempDir  string        // parent for per-document page images; "" = os temp dir
}

// PageCounter reports a PDF's page count from its path.
type PageCounter func(path string) (int, error)

// VisionTier rasterizes each page and asks a vision model to transcribe it.
// It is the only tier with per-page cost, so calls go through a shared rate limiter.
type VisionTier struct {
	cfg       VisionConfig
	model     llm.VisionModel
	limiter   *llm.RateLimiter
	runner    Runner
	pageCount PageCounter
	logger    *slog.Logger
}

func NewVisionTier(cfg VisionConfig, model llm.VisionModel, limiter *llm.RateLimiter, runner Runner, logger *slog.Logger) *VisionTier {
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	if cfg.DPI < 200 {
		cfg.DPI = 200
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 90 * time.Second
	}
	if cfg.Prompt == "" {
		cfg.Prompt = llm.VisionOCRPrompt
	}
	if logger == nil {
		logger = slog.Default()
	}
	if runner == nil {
		runner = NewExecRunner(logger)
	}
	return &VisionTier{
		cfg:       cfg,
		model:     model,
		limiter:   limiter,
		runner:    runner,
		pageCount: api.PageCountFile,
		logger:    logger,
	}
}

func (t *VisionTier) Method() constants.ExtractionMethod { return constants.MethodVision }

func (t *VisionTier) Attempt(ctx context.Context, in Input) ([]entity.TextFragment, error) {
	if t.model == nil {
		return nil, failure(constants.MethodVision, "no vision model configured", nil)
	}

	tmpDir, err := os.MkdirTemp(t.cfg.TempDir, "ca-vision-*")
	if err != nil {
		return nil, failure(constants.MethodVision, "temp dir", err)
	}
	defer func(path string) {
		if err := os.RemoveAll(path); err != nil {
			t.logger.Warn("textextract.vision.cleanup_failed", "dir", path, "error", err)
		}
	}(tmpDir)

	pages, err := t.pageCount(in.Path)
	if err != nil || pages <= 0 {
		t.logger.Warn("textextract.vision.page_count_failed", "source_id", in.Doc.ID, "error", err)
		return t.attemptRenderAll(ctx, in, tmpDir)
	}
	if t.cfg.MaxPages > 0 && pages > t.cfg.MaxPages {
		pages = t.cfg.MaxPages
	}

	var frags []entity.TextFragment
	for page := 1; page <= pages; page++ {
		img, err := t.renderPage(ctx, in.Path, tmpDir, page)
		if err != nil {
			if ctx.Err() != nil {
				return frags, failure(constants.MethodVision, "cancelled", ctx.Err())
			}
			t.logger.Warn("textextract.vision.render_failed", "source_id", in.Doc.ID, "page", page, "error", err)
			continue
		}
		if f, ok := t.describe(ctx, in.Doc.ID, page-1, img); ok {
			frags = append(frags, f)
		}
		_ = os.Remove(img)
		if ctx.Err() != nil {
			return frags, failure(constants.MethodVision, "cancelled", ctx.Err())
		}
	}
	return frags, nil
}

// renderPage rasterizes one page: pdftoppm -r DPI -png -f N -l N -singlefile <in.pdf> <dir/page-N>
func (t *VisionTier) renderPage(ctx context.Context, path, dir string, page int) (string, error) {
	prefix := filepath.Join(dir, fmt.Sprintf("page-%d", page))
	n := strconv.Itoa(page)
	_, errb, err := t.runner.Run(ctx, t.cfg.Pdftoppm,
		"-r", strconv.Itoa(t.cfg.DPI), "-png", "-f", n, "-l", n, "-singlefile", path, prefix)
	if err != nil {
		return "", fmt.Errorf("pdftoppm: %s: %w", truncate(strings.TrimSpace(string(errb)), 256), err)
	}
	return prefix + ".png", nil
}

// attemptRenderAll is the fallback when the page count is unknown: render every page at once
// and glob the generated images (prefix-1.png, prefix-2.png, ...).
func (t *VisionTier) attemptRenderAll(ctx context.Context, in Input, dir string) ([]entity.TextFragment, error) {
	prefix := filepath.Join(dir, "all")
	args := []string{"-r", strconv.Itoa(t.cfg.DPI), "-png"}
	if t.cfg.MaxPages > 0 {
		args = append(args, "-l", strconv.Itoa(t.cfg.MaxPages))
	}
	args = append(args, in.Path, prefix)
	if _, errb, err := t.runner.Run(ctx, t.cfg.Pdftoppm, args...); err != nil {
		return nil, failure(constants.MethodVision, "pdftoppm: "+truncate(strings.TrimSpace(string(errb)), 256), err)
	}

	matches, _ := filepath.Glob(prefix + "-*.png")
	sort.Slice(matches, func(i, j int) bool { return pageNumber(matches[i]) < pageNumber(matches[j]) })
	if len(matches) == 0 {
		return nil, failure(constants.MethodVision, "pdftoppm produced no images", nil)
	}

	var frags []entity.TextFragment
	for _, img := range matches {
		if f, ok := t.describe(ctx, in.Doc.ID, pageNumber(img)-1, img); ok {
			frags = append(frags, f)
		}
		if ctx.Err() != nil {
			return frags, failure(constants.MethodVision, "cancelled", ctx.Err())
		}
	}
	return frags, nil
}

func (t *VisionTier) describe(ctx context.Context, sourceID string, pageIndex int, imgPath string) (entity.TextFragment, bool) {
	img, err := os.ReadFile(imgPath)
	if err != nil {
		t.logger.Warn("textextract.vision.read_image_failed", "source_id", sourceID, "page", pageIndex+1, "error", err)
		return entity.TextFragment{}, false
	}
	if err := t.limiter.Wait(ctx); err != nil {
		return entity.TextFragment{}, false
	}

	start := time.Now()
	callCtx, cancel := context.WithTimeout(ctx, t.cfg.Timeout)
	defer cancel()
	text, err := t.model.Describe(callCtx, t.cfg.Prompt, img, "image/png")
	if err != nil {
		t.logger.Warn("textextract.vision.page_failed", "source_id", sourceID, "page", pageIndex+1,
			"error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return entity.TextFragment{}, false
	}
	t.logger.Debug("textextract.vision.page_ok", "source_id", sourceID, "page", pageIndex+1,
		"chars", len(text), "elapsed_ms", time.Since(start).Milliseconds())
	return pageFragment(sourceID, pageIndex, text, constants.MethodVision)
}

// pageNumber parses N from ".../prefix-N.png" (pdftoppm may zero-pad N).
func pageNumber(path string) int {
	base := strings.TrimSuffix(filepath.Base(path), ".png")
	i := strings.LastIndexByte(base, '-')
	if i < 0 {
		return 0
	}
	n, _ := strconv.Atoi(base[i+1:])
	return n
}
