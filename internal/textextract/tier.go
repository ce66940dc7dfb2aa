package textextract

import (
	"context"
	"fmt"

	"github.com/joseph-ayodele/contracts-analyzer/constants"
	"github.com/joseph-ayodele/contracts-analyzer/internal/entity"
)

// Input is what a tier sees: the document plus a temp-file copy of its bytes
// for tools that only read from disk. The file is removed by the Extractor.
type Input struct {
	Doc  entity.SourceDocument
	Path string
}

// Tier is one strategy in the ordered fallback chain.
// Attempt returns the non-empty page fragments it could read, or a *TierFailure.
type Tier interface {
	Method() constants.ExtractionMethod
	Attempt(ctx context.Context, in Input) ([]entity.TextFragment, error)
}

// TierFailure records why a tier did not produce substantial text.
type TierFailure struct {
	Tier   constants.ExtractionMethod
	Reason string
	Cause  error
}

func (f *TierFailure) Error() string {
	if f.Cause != nil {
		return fmt.Sprintf("tier %s: %s: %v", f.Tier, f.Reason, f.Cause)
	}
	return fmt.Sprintf("tier %s: %s", f.Tier, f.Reason)
}

func (f *TierFailure) Unwrap() error { return f.Cause }

func failure(tier constants.ExtractionMethod, reason string, cause error) *TierFailure {
	return &TierFailure{Tier: tier, Reason: reason, Cause: cause}
}

// pageFragment builds a normalized fragment, ok=false when the page is blank.
func pageFragment(sourceID string, page int, text string, method constants.ExtractionMethod) (entity.TextFragment, bool) {
	text = Normalize(text)
	if text == "" {
		return entity.TextFragment{}, false
	}
	return entity.TextFragment{SourceID: sourceID, PageIndex: page, Text: text, Method: method}, true
}

func aggregateLen(frags []entity.TextFragment) int {
	n := 0
	for _, f := range frags {
		n += nonSpaceLen(f.Text)
	}
	return n
}
