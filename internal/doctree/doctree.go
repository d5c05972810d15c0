package doctree

import "strings"

// Document is an ordered sequence of page texts produced by a parser.
type Document struct {
	Title string // Document title (from metadata or filename)
	Pages []Page // Pages in document order, numbered from 1
}

// Page is the plain text of one physical page.
type Page struct {
	Number int
	Text   string
}

// Lines splits the page text into raw lines.
func (p Page) Lines() []string {
	text := strings.ReplaceAll(p.Text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	return strings.Split(text, "\n")
}

// HasText reports whether any page carries non-whitespace text.
func (d *Document) HasText() bool {
	if d == nil {
		return false
	}
	for _, p := range d.Pages {
		if strings.TrimSpace(p.Text) != "" {
			return true
		}
	}
	return false
}

// PageRange returns pages first..last inclusive (1-based numbers), clamped
// to the document bounds.
func (d *Document) PageRange(first, last int) []Page {
	var out []Page
	for _, p := range d.Pages {
		if p.Number >= first && p.Number <= last {
			out = append(out, p)
		}
	}
	return out
}

// SectionEntry is one node of a section hierarchy.
type SectionEntry struct {
	DocTitle    string   `json:"doc_title,omitempty"`
	Identifier  string   `json:"section_id"`
	Title       string   `json:"title"`
	Page        int      `json:"page"`
	Level       int      `json:"level"`
	ParentID    string   `json:"parent_id,omitempty"`
	DisplayPath string   `json:"full_path"`
	Tags        []string `json:"tags"`
}

// NewSectionEntry derives level, parent and display path from the identifier.
func NewSectionEntry(id, title string, page int, tags []string) SectionEntry {
	if tags == nil {
		tags = []string{}
	}
	return SectionEntry{
		Identifier:  id,
		Title:       title,
		Page:        page,
		Level:       Level(id),
		ParentID:    Parent(id),
		DisplayPath: DisplayPath(id, title),
		Tags:        tags,
	}
}

// Reference is a table or figure marker observed in body text. ID and
// Caption both hold the literal line.
type Reference struct {
	ID      string `json:"id"`
	Caption string `json:"caption"`
	Page    int    `json:"page"`
}

// ContentRecord is a section detected in body text together with the text
// accumulated until the next detected header.
type ContentRecord struct {
	SectionEntry
	Body      string      `json:"content"`
	PageStart int         `json:"page_start"`
	PageEnd   int         `json:"page_end"`
	WordCount int         `json:"word_count"`
	Tables    []Reference `json:"tables"`
	Figures   []Reference `json:"figures"`
}

// Components splits a dotted identifier into its parts.
func Components(id string) []string {
	if id == "" {
		return nil
	}
	return strings.Split(id, ".")
}

// Level is the number of components in id.
func Level(id string) int {
	return len(Components(id))
}

// Parent returns id with its last component removed, or "" for a root.
func Parent(id string) string {
	i := strings.LastIndexByte(id, '.')
	if i < 0 {
		return ""
	}
	return id[:i]
}

// DisplayPath joins identifier and title.
func DisplayPath(id, title string) string {
	return id + " " + title
}

// ValidIdentifier reports whether id is a dot-separated sequence of
// decimal components.
func ValidIdentifier(id string) bool {
	parts := Components(id)
	if len(parts) == 0 {
		return false
	}
	for _, p := range parts {
		if p == "" {
			return false
		}
		for _, r := range p {
			if r < '0' || r > '9' {
				return false
			}
		}
	}
	return true
}
