package parser

import (
	"fmt"
	"io"

	"github.com/dgallion1/tocindex/internal/doctree"
)

// TextParser handles plain text files. Form feeds separate pages, as in
// pdftotext output.
type TextParser struct{}

func (p *TextParser) Parse(r io.Reader, filename string) (*doctree.Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read text: %w", err)
	}
	doc := &doctree.Document{Title: baseTitle(filename)}
	if len(data) > 0 {
		doc.Pages = splitPages(string(data))
	}
	return doc, nil
}
