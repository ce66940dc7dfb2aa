package constants

import (
	"strings"
)

// FieldType declares how a discovered field's raw answer is normalized.
type FieldType string

const (
	FieldNumber   FieldType = "number"
	FieldInteger  FieldType = "integer"
	FieldTernary  FieldType = "ternary"
	FieldCategory FieldType = "category"
	FieldText     FieldType = "text"
)

var allFieldTypes = []FieldType{
	FieldNumber,
	FieldInteger,
	FieldTernary,
	FieldCategory,
	FieldText,
}

// FieldTypesAsStrings returns the field types in declaration order, for schema enums.
func FieldTypesAsStrings() []string {
	result := make([]string, len(allFieldTypes))
	for i, ft := range allFieldTypes {
		result[i] = string(ft)
	}
	return result
}

// CanonicalizeFieldType maps loose model output ("Numeric", "bool", "yes/no") onto a FieldType.
// Unknown inputs fall back to FieldText with ok=false.
func CanonicalizeFieldType(input string) (FieldType, bool) {
	if input == "" {
		return FieldText, false
	}

	normalized := strings.ToLower(strings.TrimSpace(input))
	for _, ft := range allFieldTypes {
		if string(ft) == normalized {
			return ft, true
		}
	}

	switch normalized {
	case "float", "decimal", "numeric", "money", "currency", "percentage", "percent", "amount":
		return FieldNumber, true
	case "int", "months", "days", "count":
		return FieldInteger, true
	case "bool", "boolean", "yes/no", "yesno", "ternary_yes_no":
		return FieldTernary, true
	case "enum", "categorical", "entity":
		return FieldCategory, true
	case "string", "free_text", "freetext":
		return FieldText, true
	}
	return FieldText, false
}

// Ternary answer categories. Unclear is never silently mapped to Yes or No.
const (
	TernaryYes     = "yes"
	TernaryNo      = "no"
	TernaryUnclear = "unclear"
)

// Sentinel reasons carried by Missing and Error values.
const (
	SentinelNotFound        = "not found"
	SentinelContextNotFound = "context not found"
	SentinelError           = "error"
	SentinelValidationError = "validation error"
)
