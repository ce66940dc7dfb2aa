package discovery

import (
	"fmt"
	"strings"

	"github.com/joseph-ayodele/contracts-analyzer/internal/entity"
)

// BuildSample assembles at most budget runes of text across docs. Each document gets an
// equal share; budget a short document leaves unused rolls forward to the next ones.
// Unprocessable documents are skipped.
func BuildSample(docs []entity.DocumentResult, budget int) string {
	var usable []entity.DocumentResult
	for _, d := range docs {
		if d.OK() {
			usable = append(usable, d)
		}
	}
	if len(usable) == 0 || budget <= 0 {
		return ""
	}

	var b strings.Builder
	remaining := budget
	for i, d := range usable {
		share := remaining / (len(usable) - i)
		text := []rune(d.Text())
		if len(text) > share {
			text = text[:share]
		}
		remaining -= len(text)
		fmt.Fprintf(&b, "=== Document: %s ===\n", d.SourceID)
		b.WriteString(string(text))
		b.WriteString("\n\n")
	}
	return b.String()
}
