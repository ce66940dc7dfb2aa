package extraction

import (
	"github.com/joseph-ayodele/contracts-analyzer/constants"
	"github.com/joseph-ayodele/contracts-analyzer/internal/entity"
	"github.com/joseph-ayodele/contracts-analyzer/internal/llm"
)

// ValidateRecord checks a finished record against the schema implied by the field types.
// Offending cells become "validation error" sentinels and the record is kept.
func ValidateRecord(rec entity.ExtractedRecord, specs []entity.FieldSpec) entity.ExtractedRecord {
	doc := make(map[string]any, len(specs))
	for _, s := range specs {
		doc[s.Key] = rec.Get(s.Key).Any()
	}

	err := llm.ValidateValue(llm.BuildRecordJSONSchema(specs), doc)
	if err == nil {
		return rec
	}

	rec.ValidationError = err.Error()
	for _, key := range llm.FailingProperties(err) {
		if _, ok := rec.Values[key]; ok {
			rec.Values[key] = entity.Error(constants.SentinelValidationError)
		}
	}
	return rec
}
