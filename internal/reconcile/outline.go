package reconcile

import (
	"strings"

	difflib "github.com/pmezard/go-difflib/difflib"

	"github.com/dgallion1/tocindex/internal/doctree"
)

// Outline renders one "identifier title" line per entry, indented by level.
func Outline(t *doctree.Tree) string {
	var b strings.Builder
	for _, e := range t.Entries() {
		b.WriteString(strings.Repeat("  ", max(e.Level-1, 0)))
		b.WriteString(e.DisplayPath)
		b.WriteByte('\n')
	}
	return b.String()
}

// OutlineDiff is a unified diff from the listing outline to the content
// outline. It is empty when both outlines agree.
func OutlineDiff(listing, content *doctree.Tree) string {
	a, b := Outline(listing), Outline(content)
	if a == b {
		return ""
	}
	u := difflib.UnifiedDiff{
		A:        difflib.SplitLines(a),
		B:        difflib.SplitLines(b),
		FromFile: "toc",
		ToFile:   "content",
		Context:  1,
	}
	s, err := difflib.GetUnifiedDiffString(u)
	if err != nil {
		return ""
	}
	return s
}
