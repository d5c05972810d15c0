// Package hierarchy turns flat classified headers into section trees.
package hierarchy

import (
	"github.com/dgallion1/tocindex/internal/classify"
	"github.com/dgallion1/tocindex/internal/doctree"
)

// Builder derives level, parent, display path and tags for each candidate.
type Builder struct {
	Tags     TagTable
	DocTitle string
}

// New returns a Builder using tags, or DefaultTags when tags is nil.
func New(docTitle string, tags TagTable) *Builder {
	if tags == nil {
		tags = DefaultTags
	}
	return &Builder{Tags: tags, DocTitle: docTitle}
}

// Entries converts candidates to section entries in scan order.
func (b *Builder) Entries(cands []classify.Candidate) []doctree.SectionEntry {
	out := make([]doctree.SectionEntry, 0, len(cands))
	for _, c := range cands {
		out = append(out, b.Entry(c.Identifier, c.Title, c.Page))
	}
	return out
}

// Entry builds a single section entry.
func (b *Builder) Entry(id, title string, page int) doctree.SectionEntry {
	e := doctree.NewSectionEntry(id, title, page, b.Tags.Tags(title))
	e.DocTitle = b.DocTitle
	return e
}

// Build assembles the listing tree. Running it twice on the same input
// yields equal trees.
func (b *Builder) Build(cands []classify.Candidate) *doctree.Tree {
	return doctree.NewTree(b.Entries(cands))
}

// BuildContent assembles the content tree from segmented records.
func (b *Builder) BuildContent(recs []doctree.ContentRecord) *doctree.Tree {
	return doctree.NewContentTree(recs)
}
