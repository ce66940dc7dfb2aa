package textextract

import (
	"context"
	"log/slog"
	"strings"

	"github.com/joseph-ayodele/contracts-analyzer/constants"
	"github.com/joseph-ayodele/contracts-analyzer/internal/entity"
)

// RasterTier re-extracts with poppler's pdftotext, whose font and encoding
// heuristics differ from the native reader.
type RasterTier struct {
	bin    string
	runner Runner
	logger *slog.Logger
}

func NewRasterTier(bin string, runner Runner, logger *slog.Logger) *RasterTier {
	if bin == "" {
		bin = "pdftotext"
	}
	if logger == nil {
		logger = slog.Default()
	}
	if runner == nil {
		runner = NewExecRunner(logger)
	}
	return &RasterTier{bin: bin, runner: runner, logger: logger}
}

func (t *RasterTier) Method() constants.ExtractionMethod { return constants.MethodRaster }

func (t *RasterTier) Attempt(ctx context.Context, in Input) ([]entity.TextFragment, error) {
	// pdftotext -layout -enc UTF-8 -eol unix <path> -
	out, errb, err := t.runner.Run(ctx, t.bin, "-layout", "-enc", "UTF-8", "-eol", "unix", in.Path, "-")
	if err != nil {
		return nil, failure(constants.MethodRaster, "pdftotext: "+truncate(strings.TrimSpace(string(errb)), 256), err)
	}

	// form feed separates pages; the trailing one yields an empty tail
	pages := strings.Split(string(out), "\f")
	var frags []entity.TextFragment
	for i, p := range pages {
		if f, ok := pageFragment(in.Doc.ID, i, p, constants.MethodRaster); ok {
			frags = append(frags, f)
		}
	}
	t.logger.Debug("textextract.raster.done", "source_id", in.Doc.ID, "pages", len(pages), "non_empty", len(frags))
	return frags, nil
}
