package common

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// ValidationError represents validation failures
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation failed for field '%s' with value '%v': %s", e.Field, e.Value, e.Message)
}

// Validator provides validation utilities
type Validator struct {
	errors []ValidationError
}

// NewValidator creates a new validator instance
func NewValidator() *Validator {
	return &Validator{
		errors: make([]ValidationError, 0),
	}
}

// Field validates a field and collects errors
func (v *Validator) Field(fieldName string, value interface{}, rules ...ValidationRule) *Validator {
	for _, rule := range rules {
		if err := rule(fieldName, value); err != nil {
			v.errors = append(v.errors, *err)
		}
	}
	return v
}

// HasErrors returns true if there are validation errors
func (v *Validator) HasErrors() bool {
	return len(v.errors) > 0
}

// Errors returns all validation errors
func (v *Validator) Errors() []ValidationError {
	return v.errors
}

// Error returns a combined error wrapping ErrValidation
func (v *Validator) Error() error {
	if !v.HasErrors() {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrValidation, v.ErrorMessage())
}

// ErrorMessage returns a combined error message as string
func (v *Validator) ErrorMessage() string {
	if !v.HasErrors() {
		return ""
	}

	var messages []string
	for _, err := range v.errors {
		messages = append(messages, err.Error())
	}
	return strings.Join(messages, "; ")
}

// ValidationRule represents a single validation rule
type ValidationRule func(fieldName string, value interface{}) *ValidationError

// Required rejects nil and blank strings.
func Required(fieldName string, value interface{}) *ValidationError {
	if value == nil {
		return &ValidationError{Field: fieldName, Value: value, Message: "is required"}
	}
	if s, ok := value.(string); ok && strings.TrimSpace(s) == "" {
		return &ValidationError{Field: fieldName, Value: value, Message: "is required"}
	}
	return nil
}

// OneOf accepts only the listed string values.
func OneOf(allowed ...string) ValidationRule {
	return func(fieldName string, value interface{}) *ValidationError {
		s, _ := value.(string)
		for _, a := range allowed {
			if s == a {
				return nil
			}
		}
		return &ValidationError{Field: fieldName, Value: value, Message: "must be one of " + strings.Join(allowed, ", ")}
	}
}

// AtLeast accepts ints greater than or equal to min.
func AtLeast(min int) ValidationRule {
	return func(fieldName string, value interface{}) *ValidationError {
		n, ok := value.(int)
		if !ok {
			return &ValidationError{Field: fieldName, Value: value, Message: "must be an integer"}
		}
		if n < min {
			return &ValidationError{Field: fieldName, Value: value, Message: fmt.Sprintf("must be >= %d", min)}
		}
		return nil
	}
}

// Fraction accepts float64 values in [0, 1].
func Fraction(fieldName string, value interface{}) *ValidationError {
	f, ok := value.(float64)
	if !ok || f < 0 || f > 1 {
		return &ValidationError{Field: fieldName, Value: value, Message: "must be a fraction between 0 and 1"}
	}
	return nil
}

var snakeCaseRegex = regexp.MustCompile(`^[a-z][a-z0-9]*(_[a-z0-9]+)*$`)

// SnakeCase accepts identifiers like "annual_interest_rate".
func SnakeCase(fieldName string, value interface{}) *ValidationError {
	s, _ := value.(string)
	if !snakeCaseRegex.MatchString(s) {
		return &ValidationError{Field: fieldName, Value: value, Message: "must be snake_case"}
	}
	return nil
}

// ToSnakeCase folds an arbitrary label ("Annual Interest-Rate %") into a snake_case key.
// Accented letters are reduced to their ASCII base where a simple mapping exists.
func ToSnakeCase(s string) string {
	var b strings.Builder
	lastUnderscore := true
	for _, r := range strings.TrimSpace(s) {
		r = foldAccent(r)
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			if unicode.IsUpper(r) && !lastUnderscore && b.Len() > 0 {
				// camelCase boundary
				prev := b.String()[b.Len()-1]
				if prev >= 'a' && prev <= 'z' {
					b.WriteByte('_')
				}
			}
			b.WriteRune(unicode.ToLower(r))
			lastUnderscore = false
		default:
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	out := strings.Trim(b.String(), "_")
	if out != "" && out[0] >= '0' && out[0] <= '9' {
		out = "f_" + out
	}
	return out
}

func foldAccent(r rune) rune {
	switch r {
	case 'á', 'à', 'â', 'ã', 'ä':
		return 'a'
	case 'é', 'è', 'ê', 'ë':
		return 'e'
	case 'í', 'ì', 'î', 'ï':
		return 'i'
	case 'ó', 'ò', 'ô', 'õ', 'ö':
		return 'o'
	case 'ú', 'ù', 'û', 'ü':
		return 'u'
	case 'ç':
		return 'c'
	case 'ñ':
		return 'n'
	}
	return r
}

// IsValidation reports whether err carries ErrValidation.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}
