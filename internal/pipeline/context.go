package pipeline

import (
	"fmt"

	"github.com/joseph-ayodele/contracts-analyzer/internal/entity"
	"github.com/joseph-ayodele/contracts-analyzer/internal/vectorindex"
)

// Context carries everything one analysis run produces. Each stage reads what earlier
// stages wrote and appends its own output; nothing outside the run shares it.
type Context struct {
	BatchID   string
	Documents []entity.SourceDocument
	Results   []entity.DocumentResult
	Chunks    []entity.Chunk
	Index     vectorindex.Index
	Specs     []entity.FieldSpec
	Records   []entity.ExtractedRecord
	Findings  []entity.AnomalyFinding
	Events    []entity.Event
	Warnings  []string
}

// SourceIDs returns the id of every input document in input order, processable or not.
func (c *Context) SourceIDs() []string {
	out := make([]string, len(c.Documents))
	for i, d := range c.Documents {
		out[i] = d.ID
	}
	return out
}

// Processed returns the results that produced usable text.
func (c *Context) Processed() []entity.DocumentResult {
	var out []entity.DocumentResult
	for _, r := range c.Results {
		if r.OK() {
			out = append(out, r)
		}
	}
	return out
}

func (c *Context) warnf(format string, args ...any) {
	c.Warnings = append(c.Warnings, fmt.Sprintf(format, args...))
}
