package ingest

import (
	"bytes"
	"fmt"

	"github.com/ledongthuc/pdf"
)

// Document is the raw extraction result of a source PDF.
type Document struct {
	Text      string
	PageCount int
}

// ExtractPDF reads a PDF file and returns its plain text and page count.
func ExtractPDF(path string) (Document, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return Document{}, fmt.Errorf("opening pdf %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	reader, err := r.GetPlainText()
	if err != nil {
		return Document{}, fmt.Errorf("extracting text from %s: %w", path, err)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(reader); err != nil {
		return Document{}, fmt.Errorf("reading extracted text from %s: %w", path, err)
	}

	return Document{
		Text:      buf.String(),
		PageCount: r.NumPage(),
	}, nil
}
