package parser

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/dgallion1/tocindex/internal/doctree"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// MarkdownParser handles Markdown files using goldmark. The document is a
// single page; every block contributes its text lines, headings included,
// so numbered headings reach the segmenter as plain lines.
type MarkdownParser struct{}

func (p *MarkdownParser) Parse(r io.Reader, filename string) (*doctree.Document, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	md := goldmark.New()
	root := md.Parser().Parse(text.NewReader(src))

	doc := &doctree.Document{Title: baseTitle(filename)}
	var lines []string
	for n := root.FirstChild(); n != nil; n = n.NextSibling() {
		if h, ok := n.(*ast.Heading); ok && h.Level == 1 && doc.Title == baseTitle(filename) {
			if t := strings.TrimSpace(string(h.Text(src))); t != "" && !startsWithDigit(t) {
				doc.Title = t
			}
		}
		for _, l := range strings.Split(extractText(n, src), "\n") {
			if l = strings.TrimSpace(l); l != "" {
				lines = append(lines, l)
			}
		}
	}
	doc.Pages = singlePage(lines)
	return doc, nil
}

// extractText gets the text content of a goldmark AST node, one source
// line per output line.
func extractText(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	if n.Type() == ast.TypeBlock && n.FirstChild() == nil {
		lines := n.Lines()
		for i := 0; i < lines.Len(); i++ {
			line := lines.At(i)
			buf.Write(line.Value(src))
		}
		return strings.TrimSpace(buf.String())
	}
	// Ordered list markers are syntax to goldmark but section numbers here.
	number := 0
	if l, ok := n.(*ast.List); ok && l.IsOrdered() {
		number = l.Start
	}
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if number > 0 {
			if buf.Len() > 0 {
				buf.WriteByte('\n')
			}
			fmt.Fprintf(&buf, "%d. %s", number, extractText(c, src))
			number++
			continue
		}
		if t, ok := c.(*ast.Text); ok {
			buf.Write(t.Value(src))
			if t.HardLineBreak() || t.SoftLineBreak() {
				buf.WriteByte('\n')
			}
			continue
		}
		// Nested blocks (list items, quotes) start on their own line.
		if c.Type() == ast.TypeBlock && buf.Len() > 0 {
			buf.WriteByte('\n')
		}
		buf.WriteString(extractText(c, src))
	}
	return strings.TrimSpace(buf.String())
}

func startsWithDigit(s string) bool {
	return s != "" && s[0] >= '0' && s[0] <= '9'
}
