package llm

import (
	"github.com/joseph-ayodele/contracts-analyzer/constants"
	"github.com/joseph-ayodele/contracts-analyzer/internal/entity"
)

// BuildDiscoveryJSONSchema constrains FieldDiscovery output to min..max field specs.
func BuildDiscoveryJSONSchema(min, max int) map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []string{"fields"},
		"properties": map[string]any{
			"fields": map[string]any{
				"type":     "array",
				"minItems": min,
				"maxItems": max,
				"items": map[string]any{
					"type":                 "object",
					"additionalProperties": false,
					"required":             []string{"key", "question", "type"},
					"properties": map[string]any{
						"key":      map[string]any{"type": "string", "pattern": `^[a-z][a-z0-9]*(_[a-z0-9]+)*$`},
						"question": map[string]any{"type": "string", "minLength": 5},
						"type":     map[string]any{"type": "string", "enum": constants.FieldTypesAsStrings()},
					},
				},
			},
		},
	}
}

// BuildRecordJSONSchema describes one finished ExtractedRecord. Sentinel cells are encoded
// as null, so every property also admits null.
func BuildRecordJSONSchema(specs []entity.FieldSpec) map[string]any {
	props := make(map[string]any, len(specs))
	required := make([]string, 0, len(specs))
	for _, s := range specs {
		required = append(required, s.Key)
		switch s.Type {
		case constants.FieldNumber:
			props[s.Key] = map[string]any{"type": []string{"number", "null"}}
		case constants.FieldInteger:
			props[s.Key] = map[string]any{"type": []string{"integer", "null"}}
		case constants.FieldTernary:
			props[s.Key] = map[string]any{"enum": []any{constants.TernaryYes, constants.TernaryNo, constants.TernaryUnclear, nil}}
		default:
			props[s.Key] = map[string]any{"type": []string{"string", "null"}, "minLength": 1, "maxLength": 2000}
		}
	}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           props,
		"required":             required,
	}
}

// BuildEventsJSONSchema constrains event extraction output.
func BuildEventsJSONSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []string{"events"},
		"properties": map[string]any{
			"events": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":                 "object",
					"additionalProperties": false,
					"required":             []string{"description", "date"},
					"properties": map[string]any{
						"description": map[string]any{"type": "string", "minLength": 1},
						"date":        map[string]any{"type": "string", "pattern": `^\d{4}-\d{2}-\d{2}$`},
						"excerpt":     map[string]any{"type": "string"},
					},
				},
			},
		},
	}
}
