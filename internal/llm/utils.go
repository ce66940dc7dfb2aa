package llm

import (
	"encoding/base64"
	"mime"
	"path/filepath"
	"strings"
)

// MaxVisionBytes caps page images sent to vision models.
const MaxVisionBytes = 20 << 20

// DataURL encodes image bytes as a data: URL for providers that take inline images.
func DataURL(image []byte, mimeType string) string {
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(image)
}

// MimeTypeForPath guesses an image MIME type from a file extension.
func MimeTypeForPath(path string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	if mt := mime.TypeByExtension("." + ext); mt != "" {
		return mt
	}
	switch ext {
	case "jpg", "jpeg":
		return "image/jpeg"
	case "png":
		return "image/png"
	default:
		return "application/octet-stream"
	}
}
