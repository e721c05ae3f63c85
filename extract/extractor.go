package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// ErrNoTextContent means the PDF parsed fine but holds no extractable text,
// e.g. a pure image scan.
var ErrNoTextContent = errors.New("no text content found in PDF")

// ErrInvalidPDF means the bytes are not a well-formed PDF document.
var ErrInvalidPDF = errors.New("invalid PDF document")

type Extractor struct {
	conf *model.Configuration
}

func New() *Extractor {
	return &Extractor{
		conf: model.NewDefaultConfiguration(),
	}
}

// Extract validates the document and returns its plain text and page count.
func (e *Extractor) Extract(ctx context.Context, data []byte) (string, int, error) {
	if ctx.Err() != nil {
		return "", 0, ctx.Err()
	}

	pdfCtx, err := api.ReadContext(bytes.NewReader(data), e.conf)
	if err != nil {
		return "", 0, fmt.Errorf("%w: %v", ErrInvalidPDF, err)
	}
	if err := api.ValidateContext(pdfCtx); err != nil {
		return "", 0, fmt.Errorf("%w: %v", ErrInvalidPDF, err)
	}
	pages := pdfCtx.PageCount

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", 0, fmt.Errorf("%w: %v", ErrInvalidPDF, err)
	}

	var b strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		if ctx.Err() != nil {
			return "", 0, ctx.Err()
		}

		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			// a single broken page must not sink the whole document
			continue
		}
		b.WriteString(text)
		b.WriteString("\n")
	}

	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", pages, ErrNoTextContent
	}
	return text, pages, nil
}
