package textextract

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	reCRLF       = regexp.MustCompile(`\r\n?`)
	reTabs       = regexp.MustCompile(`\t+`)
	reMultiSpace = regexp.MustCompile(` {2,}`)
	reMultiBlank = regexp.MustCompile(`\n{3,}`)
	reHyphenWrap = regexp.MustCompile(`(\p{L})-\n(\p{Ll})`)
)

// Normalize collapses noisy whitespace from layout-preserving extractors.
// Line breaks are kept; runs of blank lines collapse to one; words hyphenated across lines are rejoined.
func Normalize(s string) string {
	if s == "" {
		return s
	}
	s = strings.ReplaceAll(s, "\x00", "")
	s = reCRLF.ReplaceAllString(s, "\n")
	s = reTabs.ReplaceAllString(s, " ")
	s = reMultiSpace.ReplaceAllString(s, " ")
	s = reHyphenWrap.ReplaceAllString(s, "$1$2")
	lines := strings.Split(s, "\n")
	for i := range lines {
		lines[i] = strings.TrimRight(lines[i], " ")
	}
	s = strings.Join(lines, "\n")
	s = reMultiBlank.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// nonSpaceLen counts non-whitespace runes, the measure behind the "substantial text" threshold.
func nonSpaceLen(s string) int {
	n := 0
	for _, r := range s {
		if !unicode.IsSpace(r) {
			n++
		}
	}
	return n
}
