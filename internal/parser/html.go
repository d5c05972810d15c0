package parser

import (
	"fmt"
	"io"
	"strings"

	"github.com/dgallion1/tocindex/internal/doctree"
	"golang.org/x/net/html"
)

// HTMLParser handles HTML files. Block elements become lines; table rows
// become one line with cells joined by spaces. An element styled with a
// print page break before it starts a new page.
type HTMLParser struct{}

func (p *HTMLParser) Parse(r io.Reader, filename string) (*doctree.Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	doc := &doctree.Document{Title: baseTitle(filename)}
	if title := findTitle(root); title != "" {
		doc.Title = title
	}

	var pages [][]string
	var current []string
	emit := func(s string) {
		for _, l := range strings.Split(s, "\n") {
			if l = strings.Join(strings.Fields(l), " "); l != "" {
				current = append(current, l)
			}
		}
	}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if breaksBefore(n) && len(current) > 0 {
				pages = append(pages, current)
				current = nil
			}
			switch n.Data {
			case "script", "style", "nav", "head":
				return
			case "h1", "h2", "h3", "h4", "h5", "h6", "p", "li", "dt", "dd", "blockquote", "caption":
				emit(textContent(n))
				return
			case "tr":
				emit(rowText(n))
				return
			case "pre":
				emit(preText(n))
				return
			case "br":
				return
			}
		}
		if n.Type == html.TextNode && n.Parent != nil && n.Parent.Data == "div" {
			emit(n.Data)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	// Find <body> or use whole document.
	if body := findBody(root); body != nil {
		walk(body)
	} else {
		walk(root)
	}
	if len(current) > 0 {
		pages = append(pages, current)
	}

	for i, lines := range pages {
		doc.Pages = append(doc.Pages, doctree.Page{Number: i + 1, Text: strings.Join(lines, "\n")})
	}
	return doc, nil
}

// breaksBefore reports an inline page-break-before style.
func breaksBefore(n *html.Node) bool {
	for _, a := range n.Attr {
		if a.Key != "style" {
			continue
		}
		s := strings.ReplaceAll(strings.ToLower(a.Val), " ", "")
		return strings.Contains(s, "page-break-before:always") || strings.Contains(s, "break-before:page")
	}
	return false
}

func rowText(tr *html.Node) string {
	var cells []string
	for c := tr.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && (c.Data == "td" || c.Data == "th") {
			if t := textContent(c); t != "" {
				cells = append(cells, t)
			}
		}
	}
	return strings.Join(cells, " ")
}

// textContent concatenates descendant text. <br> becomes a newline.
func textContent(n *html.Node) string {
	var buf strings.Builder
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		switch {
		case n.Type == html.TextNode:
			buf.WriteString(strings.ReplaceAll(n.Data, "\n", " "))
		case n.Type == html.ElementNode && n.Data == "br":
			buf.WriteByte('\n')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}
	extract(n)
	return strings.TrimSpace(buf.String())
}

// preText keeps source line breaks.
func preText(n *html.Node) string {
	var buf strings.Builder
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}
	extract(n)
	return buf.String()
}

func findTitle(n *html.Node) string {
	if n.Type == html.ElementNode && n.Data == "title" {
		return strings.Join(strings.Fields(textContent(n)), " ")
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := findTitle(c); t != "" {
			return t
		}
	}
	return ""
}

func findBody(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.Data == "body" {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if b := findBody(c); b != nil {
			return b
		}
	}
	return nil
}
