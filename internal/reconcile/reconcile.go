// Package reconcile compares a listing-derived section tree with the tree
// observed in body text.
package reconcile

import (
	"strings"

	"github.com/dgallion1/tocindex/internal/doctree"
	"github.com/dgallion1/tocindex/internal/segment"
)

// DefaultTolerance is the page offset accepted between a listing page and
// the page where the header was observed.
const DefaultTolerance = 2

// Input holds both trees and optional external reference counts.
type Input struct {
	Listing *doctree.Tree
	Content *doctree.Tree

	// References from the segmentation run. When nil, counts are summed over
	// the content tree's records.
	References *segment.Accumulator

	AuthoritativeTables  *int
	AuthoritativeFigures *int

	// Tolerance in pages; values below zero select DefaultTolerance.
	Tolerance int
}

// Section is an entry present in only one tree.
type Section struct {
	Identifier string `json:"section_id"`
	Title      string `json:"title"`
	Page       int    `json:"page"`
}

// OrderError is a matched section whose pages differ by more than the
// tolerance.
type OrderError struct {
	Identifier  string `json:"section_id"`
	ListingPage int    `json:"toc_page"`
	ContentPage int    `json:"content_page"`
	Diff        int    `json:"difference"`
}

// TitleMismatch is a matched section whose titles disagree after
// normalisation.
type TitleMismatch struct {
	Identifier   string `json:"section_id"`
	ListingTitle string `json:"toc_title"`
	ContentTitle string `json:"content_title"`
}

// Counts compares reference counts from the listing, the body scan and an
// external authority.
type Counts struct {
	ListingReferences int  `json:"toc_references"`
	ContentFound      int  `json:"content_found"`
	Authoritative     *int `json:"metadata_count,omitempty"`
}

// Report is the outcome of one reconciliation.
type Report struct {
	ListingSections  int             `json:"toc_sections"`
	ContentSections  int             `json:"parsed_sections"`
	Tolerance        int             `json:"tolerance"`
	Matches          []string        `json:"matches"`
	MissingInContent []Section       `json:"missing_in_content"`
	ExtraInContent   []Section       `json:"extra_in_content"`
	OrderErrors      []OrderError    `json:"order_errors"`
	TitleMismatches  []TitleMismatch `json:"title_mismatches"`
	ListingGaps      []doctree.Gap   `json:"toc_gaps"`
	ContentGaps      []doctree.Gap   `json:"content_gaps"`
	TableCounts      Counts          `json:"table_counts"`
	FigureCounts     Counts          `json:"figure_counts"`
	OutlineDiff      string          `json:"outline_diff,omitempty"`
}

// Run reconciles the listing tree against the content tree. Identifier
// equality is the only join key. Run never fails; discrepancies are its
// output.
func Run(in Input) *Report {
	a, b := in.Listing, in.Content
	if a == nil {
		a = doctree.NewTree(nil)
	}
	if b == nil {
		b = doctree.NewTree(nil)
	}
	tol := in.Tolerance
	if tol < 0 {
		tol = DefaultTolerance
	}

	rep := &Report{
		ListingSections:  a.Len(),
		ContentSections:  b.Len(),
		Tolerance:        tol,
		Matches:          []string{},
		MissingInContent: []Section{},
		ExtraInContent:   []Section{},
		OrderErrors:      []OrderError{},
		TitleMismatches:  []TitleMismatch{},
		ListingGaps:      a.Gaps(),
		ContentGaps:      b.Gaps(),
	}

	for _, ea := range a.Entries() {
		eb, ok := b.Get(ea.Identifier)
		if !ok {
			rep.MissingInContent = append(rep.MissingInContent, Section{ea.Identifier, ea.Title, ea.Page})
			continue
		}
		rep.Matches = append(rep.Matches, ea.Identifier)

		observed := contentPage(b, eb)
		if d := abs(ea.Page - observed); d > tol {
			rep.OrderErrors = append(rep.OrderErrors, OrderError{
				Identifier:  ea.Identifier,
				ListingPage: ea.Page,
				ContentPage: observed,
				Diff:        d,
			})
		}
		if !SameTitle(ea.Title, eb.Title) {
			rep.TitleMismatches = append(rep.TitleMismatches, TitleMismatch{ea.Identifier, ea.Title, eb.Title})
		}
	}

	for _, eb := range b.Entries() {
		if _, ok := a.Get(eb.Identifier); !ok {
			rep.ExtraInContent = append(rep.ExtraInContent, Section{eb.Identifier, eb.Title, contentPage(b, eb)})
		}
	}

	tables, figures := contentReferences(in.References, b)
	rep.TableCounts = Counts{
		ListingReferences: titleReferences(a, "table"),
		ContentFound:      tables,
		Authoritative:     in.AuthoritativeTables,
	}
	rep.FigureCounts = Counts{
		ListingReferences: titleReferences(a, "figure"),
		ContentFound:      figures,
		Authoritative:     in.AuthoritativeFigures,
	}

	rep.OutlineDiff = OutlineDiff(a, b)
	return rep
}

func contentPage(t *doctree.Tree, e *doctree.SectionEntry) int {
	if r, ok := t.Record(e.Identifier); ok {
		return r.PageStart
	}
	return e.Page
}

func contentReferences(acc *segment.Accumulator, t *doctree.Tree) (tables, figures int) {
	if acc != nil {
		return len(acc.Tables), len(acc.Figures)
	}
	for _, e := range t.Entries() {
		if r, ok := t.Record(e.Identifier); ok {
			tables += len(r.Tables)
			figures += len(r.Figures)
		}
	}
	return tables, figures
}

func titleReferences(t *doctree.Tree, word string) int {
	n := 0
	for _, e := range t.Entries() {
		if strings.Contains(strings.ToLower(e.Title), word) {
			n++
		}
	}
	return n
}

// SameTitle reports whether two titles agree once case, whitespace runs and
// trailing dots are ignored. A title that contains the other also agrees,
// which absorbs wrapped titles truncated on one side.
func SameTitle(a, b string) bool {
	na, nb := normalizeTitle(a), normalizeTitle(b)
	if na == "" || nb == "" {
		return na == nb
	}
	return strings.Contains(na, nb) || strings.Contains(nb, na)
}

func normalizeTitle(s string) string {
	s = strings.ToLower(strings.Join(strings.Fields(s), " "))
	return strings.TrimRight(s, ". ")
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
