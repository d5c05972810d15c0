// Package segment splits full document text into content records, one per
// section header detected in the body.
package segment

import (
	"strings"

	"github.com/dgallion1/tocindex/internal/classify"
	"github.com/dgallion1/tocindex/internal/doctree"
	"github.com/dgallion1/tocindex/internal/hierarchy"
)

// Config controls header detection in body text.
type Config struct {
	HeaderMaxLen int // Lines this long or longer are never headers.
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{HeaderMaxLen: 100}
}

// Marker tokens that flag a table or figure reference.
const (
	TableMarker  = "Table"
	FigureMarker = "Figure"
)

// Accumulator collects every table and figure reference of one run in
// document order.
type Accumulator struct {
	Tables  []doctree.Reference `json:"tables"`
	Figures []doctree.Reference `json:"figures"`
}

// Segmenter walks pages in order and emits content records.
type Segmenter struct {
	classifier *classify.Classifier
	builder    *hierarchy.Builder
}

// New returns a Segmenter. A nil builder uses the default tag table.
func New(cfg Config, b *hierarchy.Builder) *Segmenter {
	if cfg.HeaderMaxLen <= 0 {
		cfg.HeaderMaxLen = DefaultConfig().HeaderMaxLen
	}
	if b == nil {
		b = hierarchy.New("", nil)
	}
	return &Segmenter{classifier: classify.NewBody(cfg.HeaderMaxLen), builder: b}
}

// run holds the state of one pass.
type run struct {
	s       *Segmenter
	acc     *Accumulator
	records []doctree.ContentRecord
	open    *doctree.ContentRecord
	body    []string
	last    int
}

// Segment scans pages in the order given. Lines before the first detected
// header belong to no record and are dropped. Records are returned in scan
// order, repeated identifiers included.
func (s *Segmenter) Segment(pages []doctree.Page) ([]doctree.ContentRecord, *Accumulator) {
	r := &run{s: s, acc: &Accumulator{Tables: []doctree.Reference{}, Figures: []doctree.Reference{}}}
	for _, p := range pages {
		for _, raw := range p.Lines() {
			line := classify.Normalize(raw)
			if line == "" {
				continue
			}
			r.consume(line, p.Number)
		}
	}
	r.finalize()
	return r.records, r.acc
}

func (r *run) consume(line string, page int) {
	if cand, ok := r.s.classifier.Classify(line); ok {
		r.finalize()
		e := r.s.builder.Entry(cand.Identifier, cand.Title, page)
		r.open = &doctree.ContentRecord{
			SectionEntry: e,
			PageStart:    page,
			PageEnd:      page,
			Tables:       []doctree.Reference{},
			Figures:      []doctree.Reference{},
		}
		r.body = r.body[:0]
		r.last = page
		return
	}
	if r.open == nil {
		return
	}
	r.body = append(r.body, line)
	r.last = page
	if IsReference(line, TableMarker) {
		ref := doctree.Reference{ID: line, Caption: line, Page: page}
		r.open.Tables = append(r.open.Tables, ref)
		r.acc.Tables = append(r.acc.Tables, ref)
	}
	if IsReference(line, FigureMarker) {
		ref := doctree.Reference{ID: line, Caption: line, Page: page}
		r.open.Figures = append(r.open.Figures, ref)
		r.acc.Figures = append(r.acc.Figures, ref)
	}
}

// finalize closes the open record. pageEnd is the page of the last line the
// record consumed, so it never precedes pageStart.
func (r *run) finalize() {
	if r.open == nil {
		return
	}
	r.open.Body = strings.Join(r.body, " ")
	r.open.WordCount = WordCount(r.open.Body)
	r.open.PageEnd = r.last
	r.records = append(r.records, *r.open)
	r.open = nil
}

// IsReference reports whether line carries marker and at least one digit.
func IsReference(line, marker string) bool {
	return strings.Contains(line, marker) && strings.ContainsAny(line, "0123456789")
}
