package parser

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dgallion1/tocindex/internal/doctree"
	"github.com/fumiama/go-docx"
)

// DOCXParser handles .docx files. Paragraphs become lines, table rows
// become one line each, and explicit page breaks start a new page.
type DOCXParser struct{}

func (p *DOCXParser) Parse(r io.Reader, filename string) (*doctree.Document, error) {
	// go-docx needs a ReadSeeker+size, so write to temp file.
	tmp, err := os.CreateTemp("", "tocindex-docx-*.docx")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	size, err := io.Copy(tmp, r)
	if err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("seek temp file: %w", err)
	}

	parsed, err := docx.Parse(tmp, size)
	tmp.Close()
	if err != nil {
		return nil, fmt.Errorf("parse docx: %w", err)
	}

	doc := &doctree.Document{Title: baseTitle(filename)}
	var current []string
	flush := func() {
		doc.Pages = append(doc.Pages, doctree.Page{Number: len(doc.Pages) + 1, Text: strings.Join(current, "\n")})
		current = nil
	}

	for _, item := range parsed.Document.Body.Items {
		switch it := item.(type) {
		case *docx.Paragraph:
			segments := docxParagraphSegments(it)
			for i, seg := range segments {
				if i > 0 {
					flush()
				}
				if seg != "" {
					current = append(current, seg)
				}
			}
		case *docx.Table:
			for _, row := range it.TableRows {
				if line := docxRowText(row); line != "" {
					current = append(current, line)
				}
			}
		}
	}
	if len(current) > 0 || len(doc.Pages) > 0 {
		flush()
	}
	return doc, nil
}

// docxParagraphSegments returns the paragraph text split at page breaks.
// A paragraph without breaks yields one segment.
func docxParagraphSegments(para *docx.Paragraph) []string {
	var segs []string
	var buf strings.Builder
	for _, child := range para.Children {
		run, ok := child.(*docx.Run)
		if !ok {
			continue
		}
		for _, rc := range run.Children {
			switch v := rc.(type) {
			case *docx.Text:
				buf.WriteString(v.Text)
			case *docx.Tab:
				buf.WriteByte(' ')
			case *docx.BarterRabbet:
				if v.Type == "page" {
					segs = append(segs, strings.TrimSpace(buf.String()))
					buf.Reset()
				}
			}
		}
	}
	return append(segs, strings.TrimSpace(buf.String()))
}

func docxRowText(row *docx.WTableRow) string {
	var cells []string
	for _, cell := range row.TableCells {
		var parts []string
		for _, para := range cell.Paragraphs {
			if t := strings.Join(docxParagraphSegments(para), " "); strings.TrimSpace(t) != "" {
				parts = append(parts, strings.TrimSpace(t))
			}
		}
		if len(parts) > 0 {
			cells = append(cells, strings.Join(parts, " "))
		}
	}
	return strings.Join(cells, " ")
}
