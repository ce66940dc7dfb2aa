package entity

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joseph-ayodele/contracts-analyzer/constants"
)

// SourceDocument is one uploaded contract. Data is released once extraction finishes.
type SourceDocument struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Ext         string `json:"ext"`
	Data        []byte `json:"-"`
	ContentHash string `json:"content_hash"`
	Size        int    `json:"size"`
}

// NewSourceDocument builds a document whose stable id is its file name.
func NewSourceDocument(name string, data []byte) SourceDocument {
	sum := sha256.Sum256(data)
	return SourceDocument{
		ID:          name,
		Name:        name,
		Ext:         constants.NormalizeExt(filepath.Ext(name)),
		Data:        data,
		ContentHash: hex.EncodeToString(sum[:]),
		Size:        len(data),
	}
}

// LoadSourceDocument reads path into a SourceDocument keyed by its base name.
func LoadSourceDocument(path string) (SourceDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return SourceDocument{}, err
	}
	return NewSourceDocument(filepath.Base(path), data), nil
}

// TextFragment is one page of extracted text plus the tier that produced it.
type TextFragment struct {
	SourceID  string                     `json:"source_id"`
	PageIndex int                        `json:"page_index"`
	Text      string                     `json:"text"`
	Method    constants.ExtractionMethod `json:"extraction_method"`
}

// DocumentResult is the per-document outcome of text extraction.
type DocumentResult struct {
	SourceID  string                     `json:"source_id"`
	Status    constants.DocumentStatus   `json:"status"`
	Method    constants.ExtractionMethod `json:"method,omitempty"`
	Pages     int                        `json:"pages"`
	Fragments []TextFragment             `json:"fragments,omitempty"`
	Warnings  []string                   `json:"warnings,omitempty"`
	Err       string                     `json:"error,omitempty"`
	Duration  time.Duration              `json:"duration"`
}

// OK reports whether the document produced any usable text.
func (r DocumentResult) OK() bool {
	return r.Status == constants.DocumentStatusProcessed && len(r.Fragments) > 0
}

// Text joins the fragment texts in page order.
func (r DocumentResult) Text() string {
	parts := make([]string, 0, len(r.Fragments))
	for _, f := range r.Fragments {
		parts = append(parts, f.Text)
	}
	return strings.Join(parts, "\n\n")
}

// Chunk is a bounded window of one fragment's text.
// Offset is the rune offset of Text within the fragment.
type Chunk struct {
	SourceID  string                     `json:"source_id"`
	PageIndex int                        `json:"page_index"`
	Method    constants.ExtractionMethod `json:"method"`
	Text      string                     `json:"text"`
	Index     int                        `json:"index"`
	Offset    int                        `json:"offset"`
}

// FieldSpec is one discovered column of the extraction schema.
type FieldSpec struct {
	Key      string              `json:"key"`
	Question string              `json:"question"`
	Type     constants.FieldType `json:"type"`
}

// Event is a dated obligation or milestone found in a contract.
type Event struct {
	SourceID    string `json:"source_id"`
	Description string `json:"description"`
	Date        string `json:"date"`
	Excerpt     string `json:"excerpt"`
}
