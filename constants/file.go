package constants

import "strings"

const (
	PDF  = "PDF"
	WORD = "WORD"
)

// FileTypes holds the document formats the extractor accepts.
var FileTypes = []string{PDF, WORD}

// AllowedExtensions holds the default allowed file extensions for contract ingestion.
var AllowedExtensions = map[string]struct{}{
	"pdf":  {},
	"docx": {},
	"doc":  {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}

// MapExtToFormat maps a normalized extension to one of FileTypes, or "" when unsupported.
func MapExtToFormat(ext string) string {
	switch NormalizeExt(ext) {
	case "pdf":
		return PDF
	case "docx", "doc":
		return WORD
	default:
		return ""
	}
}

// MimeForExt returns the MIME type docconv expects for Word inputs.
func MimeForExt(ext string) string {
	switch NormalizeExt(ext) {
	case "docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case "doc":
		return "application/msword"
	case "pdf":
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}
