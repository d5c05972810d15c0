// Package report builds the document-level summary of an indexing run.
package report

import (
	"strconv"
	"time"

	"github.com/dgallion1/tocindex/internal/doctree"
	"github.com/dgallion1/tocindex/internal/segment"
	"github.com/dgallion1/tocindex/internal/stats"
)

// Page buckets for the distribution of content sections.
var PageBuckets = []struct {
	Label string
	Max   int // inclusive; 0 means unbounded
}{
	{"1-50", 50},
	{"51-100", 100},
	{"101-200", 200},
	{"201+", 0},
}

// Summary describes one indexed document.
type Summary struct {
	DocumentID        string         `json:"document_id"`
	DocumentTitle     string         `json:"document_title"`
	TotalPages        int            `json:"total_pages"`
	ListingPages      []int          `json:"toc_pages"`
	ListingSections   int            `json:"toc_sections"`
	ContentSections   int            `json:"total_sections"`
	TotalTables       int            `json:"total_tables"`
	TotalFigures      int            `json:"total_figures"`
	UnmatchedLines    int            `json:"unmatched_lines"`
	StructuralGaps    int            `json:"structural_gaps"`
	DuplicateIDs      int            `json:"duplicate_ids"`
	MaxDepth          int            `json:"max_depth"`
	LevelDistribution map[string]int `json:"level_distribution"`
	PageDistribution  map[string]int `json:"page_distribution"`
	WordStats         stats.Snapshot `json:"word_stats"`
	EstimatedTokens   int            `json:"estimated_tokens"`
	ExtractedAt       time.Time      `json:"extraction_date"`
}

// Input gathers what Build summarises.
type Input struct {
	DocumentID    string
	DocumentTitle string
	TotalPages    int
	ListingPages  []int
	Listing       *doctree.Tree
	Content       *doctree.Tree
	References    *segment.Accumulator
	Unmatched     int
	Now           time.Time
}

// Build computes the summary. Depth and level distribution describe the
// listing tree; page distribution and word statistics describe the content
// tree.
func Build(in Input) *Summary {
	listing, content := in.Listing, in.Content
	if listing == nil {
		listing = doctree.NewTree(nil)
	}
	if content == nil {
		content = doctree.NewTree(nil)
	}
	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	listingPages := in.ListingPages
	if listingPages == nil {
		listingPages = []int{}
	}

	s := &Summary{
		DocumentID:        in.DocumentID,
		DocumentTitle:     in.DocumentTitle,
		TotalPages:        in.TotalPages,
		ListingPages:      listingPages,
		ListingSections:   listing.Len(),
		ContentSections:   content.Len(),
		UnmatchedLines:    in.Unmatched,
		StructuralGaps:    len(listing.Gaps()) + len(content.Gaps()),
		DuplicateIDs:      len(listing.Duplicates()) + len(content.Duplicates()),
		MaxDepth:          listing.MaxDepth(),
		LevelDistribution: LevelDistribution(listing),
		PageDistribution:  PageDistribution(content),
		ExtractedAt:       now,
	}
	if in.References != nil {
		s.TotalTables = len(in.References.Tables)
		s.TotalFigures = len(in.References.Figures)
	}

	var words []int64
	for _, e := range content.Entries() {
		r, ok := content.Record(e.Identifier)
		if !ok {
			continue
		}
		words = append(words, int64(r.WordCount))
		s.EstimatedTokens += segment.EstimateTokens(r.Body)
	}
	s.WordStats = stats.Summarize(words)
	return s
}

// LevelDistribution counts entries per level, keyed by the level number.
func LevelDistribution(t *doctree.Tree) map[string]int {
	out := map[string]int{}
	for _, e := range t.Entries() {
		out[strconv.Itoa(e.Level)]++
	}
	return out
}

// PageDistribution buckets entries by starting page. An empty tree yields
// an empty map.
func PageDistribution(t *doctree.Tree) map[string]int {
	out := map[string]int{}
	if t.Len() == 0 {
		return out
	}
	for _, b := range PageBuckets {
		out[b.Label] = 0
	}
	for _, e := range t.Entries() {
		page := e.Page
		if r, ok := t.Record(e.Identifier); ok {
			page = r.PageStart
		}
		out[bucket(page)]++
	}
	return out
}

func bucket(page int) string {
	for _, b := range PageBuckets {
		if b.Max == 0 || page <= b.Max {
			return b.Label
		}
	}
	return PageBuckets[len(PageBuckets)-1].Label
}
