package parser

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/dgallion1/tocindex/internal/doctree"
)

// Parser converts raw document bytes into ordered page text.
type Parser interface {
	Parse(r io.Reader, filename string) (*doctree.Document, error)
}

// Options tune format-specific extraction.
type Options struct {
	// FallbackPdftotext lets the PDF parser shell out to pdftotext when the
	// in-process engines find no text.
	FallbackPdftotext bool
}

// SupportedExtensions lists file extensions this service can handle.
var SupportedExtensions = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
	".csv":      true,
	".html":     true,
	".htm":      true,
	".pdf":      true,
	".docx":     true,
}

// ForFile returns the appropriate parser for a filename.
func ForFile(filename string, opts Options) (Parser, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".txt":
		return &TextParser{}, nil
	case ".md", ".markdown":
		return &MarkdownParser{}, nil
	case ".csv":
		return &CSVParser{}, nil
	case ".html", ".htm":
		return &HTMLParser{}, nil
	case ".pdf":
		return &PDFParser{FallbackPdftotext: opts.FallbackPdftotext}, nil
	case ".docx":
		return &DOCXParser{}, nil
	default:
		return nil, fmt.Errorf("unsupported file extension: %s", ext)
	}
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return SupportedExtensions[ext]
}

// baseTitle strips the directory and extension from a filename.
func baseTitle(filename string) string {
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// splitPages numbers form-feed separated text from 1. Empty pages keep
// their number so later page numbers stay aligned.
func splitPages(text string) []doctree.Page {
	parts := strings.Split(text, "\f")
	pages := make([]doctree.Page, 0, len(parts))
	for i, p := range parts {
		pages = append(pages, doctree.Page{Number: i + 1, Text: strings.ReplaceAll(p, "\r\n", "\n")})
	}
	// A trailing form feed does not open a page.
	if n := len(pages); n > 1 && strings.TrimSpace(pages[n-1].Text) == "" {
		pages = pages[:n-1]
	}
	return pages
}

// singlePage wraps lines as page 1, or returns no pages for no lines.
func singlePage(lines []string) []doctree.Page {
	if len(lines) == 0 {
		return nil
	}
	return []doctree.Page{{Number: 1, Text: strings.Join(lines, "\n")}}
}
