package parser

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/dgallion1/tocindex/internal/doctree"
)

// CSVParser handles spreadsheet exports of a contents listing. Each row
// (identifier, title, page) becomes one dot-leader line, so the result
// reads like a printed table of contents on a single page.
type CSVParser struct{}

func (p *CSVParser) Parse(r io.Reader, filename string) (*doctree.Document, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}

	doc := &doctree.Document{Title: baseTitle(filename)}
	if len(records) == 0 {
		return doc, nil
	}

	cols := columns{id: 0, title: 1, page: 2}
	rows := records
	// A first row that does not start with an identifier is a header.
	if first := records[0]; len(first) > 0 && !doctree.ValidIdentifier(strings.TrimSpace(first[0])) {
		cols = headerColumns(first)
		rows = records[1:]
	}

	var lines []string
	for _, row := range rows {
		id, title, page := cols.get(row, cols.id), cols.get(row, cols.title), cols.get(row, cols.page)
		switch {
		case id == "" && title == "":
			continue
		case page == "":
			lines = append(lines, strings.TrimSpace(id+" "+title))
		default:
			lines = append(lines, fmt.Sprintf("%s %s ........ %s", id, title, page))
		}
	}
	doc.Pages = singlePage(lines)
	return doc, nil
}

type columns struct {
	id, title, page int
}

func (c columns) get(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// headerColumns maps known header names to positions, falling back to
// the first three columns.
func headerColumns(header []string) columns {
	c := columns{id: 0, title: 1, page: 2}
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case "section_id", "id", "section", "number":
			c.id = i
		case "title", "name", "heading":
			c.title = i
		case "page", "page_number", "page_start":
			c.page = i
		}
	}
	return c
}
