package textextract

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/ledongthuc/pdf"

	"github.com/joseph-ayodele/contracts-analyzer/constants"
	"github.com/joseph-ayodele/contracts-analyzer/internal/entity"
)

// NativeTier reads the embedded text layer page by page.
type NativeTier struct {
	logger *slog.Logger
}

func NewNativeTier(logger *slog.Logger) *NativeTier {
	if logger == nil {
		logger = slog.Default()
	}
	return &NativeTier{logger: logger}
}

func (t *NativeTier) Method() constants.ExtractionMethod { return constants.MethodNative }

func (t *NativeTier) Attempt(ctx context.Context, in Input) (frags []entity.TextFragment, err error) {
	// the pdf package panics on some malformed xref tables
	defer func() {
		if r := recover(); r != nil {
			frags = nil
			err = failure(constants.MethodNative, "pdf reader panic", fmt.Errorf("%v", r))
		}
	}()

	data := in.Doc.Data
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, failure(constants.MethodNative, "open pdf", err)
	}

	total := reader.NumPage()
	t.logger.Debug("textextract.native.start", "source_id", in.Doc.ID, "total_pages", total)

	for i := 1; i <= total; i++ {
		if err := ctx.Err(); err != nil {
			return nil, failure(constants.MethodNative, "cancelled", err)
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			t.logger.Debug("textextract.native.null_page", "source_id", in.Doc.ID, "page", i)
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			t.logger.Warn("textextract.native.page_failed", "source_id", in.Doc.ID, "page", i, "error", err)
			continue
		}
		if f, ok := pageFragment(in.Doc.ID, i-1, text, constants.MethodNative); ok {
			frags = append(frags, f)
		}
	}
	return frags, nil
}
