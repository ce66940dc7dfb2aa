package extraction

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/joseph-ayodele/contracts-analyzer/constants"
	"github.com/joseph-ayodele/contracts-analyzer/internal/entity"
)

var reNumber = regexp.MustCompile(`-?\d+(?:[.,]\d+)*`)

// notFoundPhrases are the ways models say an answer is absent, across the languages the
// contracts come in. Matching is on the lowercased answer with punctuation trimmed.
var notFoundPhrases = []string{
	"not found",
	"not mentioned",
	"not specified",
	"not stated",
	"not available",
	"not provided",
	"no information",
	"não encontrado",
	"nao encontrado",
	"não encontrada",
	"não consta",
	"não informado",
	"não especificado",
	"não mencionado",
	"não há informação",
	"sem informação",
	"no encontrado",
	"no se encuentra",
	"no especificado",
	"sin información",
	"n/a",
	"unknown",
	"desconhecido",
}

var (
	yesWords = map[string]struct{}{"yes": {}, "sim": {}, "sí": {}, "si": {}}
	noWords  = map[string]struct{}{"no": {}, "não": {}, "nao": {}}
)

// Normalize coerces a raw model answer into a typed Value according to the field type.
func Normalize(ft constants.FieldType, raw string) entity.Value {
	switch ft {
	case constants.FieldNumber:
		return NormalizeNumber(raw, false)
	case constants.FieldInteger:
		return NormalizeNumber(raw, true)
	case constants.FieldTernary:
		return NormalizeTernary(raw)
	case constants.FieldCategory:
		s, ok := cleanText(raw)
		if !ok {
			return entity.NotFound()
		}
		return entity.Category(s)
	default:
		s, ok := cleanText(raw)
		if !ok {
			return entity.NotFound()
		}
		return entity.Text(s)
	}
}

// NormalizeNumber takes the first number-like substring of raw. No match is "not found",
// never zero. Integers truncate toward zero.
func NormalizeNumber(raw string, integer bool) entity.Value {
	if IsNotFound(raw) {
		return entity.NotFound()
	}
	tok := reNumber.FindString(raw)
	if tok == "" {
		return entity.NotFound()
	}
	f, ok := ParseNumber(tok)
	if !ok {
		return entity.NotFound()
	}
	if integer {
		return entity.Integer(int64(f))
	}
	return entity.Number(f)
}

// ParseNumber resolves thousands and decimal separators in a token matched by reNumber.
//
//	"1.234,56" -> 1234.56   both present: the last one is the decimal mark
//	"1,234.56" -> 1234.56
//	"1.234.567" -> 1234567  a repeated separator groups thousands
//	"1.234"    -> 1234      one separator, three digits after, short non-zero integer part
//	"10000.50" -> 10000.5   anything else is a decimal mark
func ParseNumber(tok string) (float64, bool) {
	neg := strings.HasPrefix(tok, "-")
	body := strings.TrimPrefix(tok, "-")

	dots := strings.Count(body, ".")
	commas := strings.Count(body, ",")
	switch {
	case dots > 0 && commas > 0:
		dec := strings.LastIndexAny(body, ".,")
		intPart := strings.NewReplacer(".", "", ",", "").Replace(body[:dec])
		body = intPart + "." + body[dec+1:]
	case dots+commas > 1:
		body = strings.NewReplacer(".", "", ",", "").Replace(body)
	case dots+commas == 1:
		sep := strings.IndexAny(body, ".,")
		intPart, frac := body[:sep], body[sep+1:]
		if len(frac) == 3 && len(intPart) <= 3 && !strings.HasPrefix(intPart, "0") {
			body = intPart + frac
		} else {
			body = intPart + "." + frac
		}
	}

	f, err := strconv.ParseFloat(body, 64)
	if err != nil {
		return 0, false
	}
	if neg {
		f = -f
	}
	return f, true
}

// NormalizeTernary maps an answer onto yes, no or unclear. It never defaults to yes or no:
// answers naming both, neither, or saying the answer is absent are unclear.
func NormalizeTernary(raw string) entity.Value {
	if IsNotFound(raw) {
		return entity.Category(constants.TernaryUnclear)
	}
	var yes, no bool
	for _, w := range strings.FieldsFunc(strings.ToLower(raw), func(r rune) bool {
		return !unicode.IsLetter(r)
	}) {
		if _, ok := yesWords[w]; ok {
			yes = true
		}
		if _, ok := noWords[w]; ok {
			no = true
		}
	}
	switch {
	case yes && !no:
		return entity.Category(constants.TernaryYes)
	case no && !yes:
		return entity.Category(constants.TernaryNo)
	default:
		return entity.Category(constants.TernaryUnclear)
	}
}

// IsNotFound reports whether raw is empty or a not-found phrasing in any supported language.
func IsNotFound(raw string) bool {
	s := strings.ToLower(strings.TrimFunc(raw, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r) && r != '/'
	}))
	if s == "" {
		return true
	}
	for _, p := range notFoundPhrases {
		if s == p || (len(s) <= 80 && strings.Contains(s, p)) {
			return true
		}
	}
	return false
}

func cleanText(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	s = strings.Trim(s, `"'`)
	s = strings.TrimSpace(s)
	if IsNotFound(s) {
		return "", false
	}
	return s, true
}
