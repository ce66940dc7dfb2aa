package textextract

import (
	"bytes"

	"code.sajari.com/docconv/v2"

	"github.com/joseph-ayodele/contracts-analyzer/constants"
	"github.com/joseph-ayodele/contracts-analyzer/internal/entity"
)

// WordConverter turns a Word document into plain text.
type WordConverter func(data []byte, mimeType string) (string, error)

func docconvConvert(data []byte, mimeType string) (string, error) {
	res, err := docconv.Convert(bytes.NewReader(data), mimeType, false)
	if err != nil {
		return "", err
	}
	return res.Body, nil
}

// extractWord returns the whole document as one fragment; Word files carry no page boundaries.
func (e *Extractor) extractWord(doc entity.SourceDocument) ([]entity.TextFragment, error) {
	body, err := e.word(doc.Data, constants.MimeForExt(doc.Ext))
	if err != nil {
		return nil, failure(constants.MethodDocx, "convert word document", err)
	}
	f, ok := pageFragment(doc.ID, 0, body, constants.MethodDocx)
	if !ok {
		return nil, failure(constants.MethodDocx, "no text content", nil)
	}
	return []entity.TextFragment{f}, nil
}
