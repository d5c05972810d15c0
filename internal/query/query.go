// Package query answers read-only lookups over an assembled section tree.
package query

import (
	"fmt"
	"strings"

	"github.com/dgallion1/tocindex/internal/doctree"
)

// Field names accepted by Search.
const (
	FieldTitle       = "title"
	FieldTags        = "tags"
	FieldIdentifier  = "section_id"
	FieldDisplayPath = "full_path"
)

// DefaultFields is the field set searched when none is given.
var DefaultFields = []string{FieldTitle, FieldTags, FieldIdentifier, FieldDisplayPath}

var fieldAliases = map[string]string{
	"title":        FieldTitle,
	"tags":         FieldTags,
	"tag":          FieldTags,
	"section_id":   FieldIdentifier,
	"id":           FieldIdentifier,
	"identifier":   FieldIdentifier,
	"full_path":    FieldDisplayPath,
	"path":         FieldDisplayPath,
	"display_path": FieldDisplayPath,
}

// ParseFields resolves user-supplied field names. An empty list selects
// DefaultFields.
func ParseFields(names []string) ([]string, error) {
	if len(names) == 0 {
		return DefaultFields, nil
	}
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.ToLower(strings.TrimSpace(n))
		if n == "" {
			continue
		}
		f, ok := fieldAliases[n]
		if !ok {
			return nil, fmt.Errorf("unknown search field: %q", n)
		}
		out = append(out, f)
	}
	if len(out) == 0 {
		return DefaultFields, nil
	}
	return out, nil
}

// Match is one field value that contained the search term.
type Match struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

// Hit is an entry together with every field value that matched.
type Hit struct {
	Entry   *doctree.SectionEntry `json:"entry"`
	Matches []Match               `json:"match_details"`
}

// Engine queries one tree. The tree is never modified.
type Engine struct {
	tree *doctree.Tree
}

// New returns an Engine over t.
func New(t *doctree.Tree) *Engine {
	if t == nil {
		t = doctree.NewTree(nil)
	}
	return &Engine{tree: t}
}

// Tree returns the underlying tree.
func (e *Engine) Tree() *doctree.Tree { return e.tree }

// Search finds entries where term occurs, case-insensitively, in any of the
// given fields. Each matching tag is reported separately.
func (e *Engine) Search(term string, fields []string) []Hit {
	if len(fields) == 0 {
		fields = DefaultFields
	}
	needle := strings.ToLower(term)
	var hits []Hit
	for _, ent := range e.tree.Entries() {
		var ms []Match
		for _, f := range fields {
			switch f {
			case FieldTags:
				for _, tag := range ent.Tags {
					if strings.Contains(strings.ToLower(tag), needle) {
						ms = append(ms, Match{Field: f, Value: tag})
					}
				}
			default:
				v := fieldValue(ent, f)
				if strings.Contains(strings.ToLower(v), needle) {
					ms = append(ms, Match{Field: f, Value: v})
				}
			}
		}
		if len(ms) > 0 {
			hits = append(hits, Hit{Entry: ent, Matches: ms})
		}
	}
	return hits
}

func fieldValue(e *doctree.SectionEntry, f string) string {
	switch f {
	case FieldTitle:
		return e.Title
	case FieldIdentifier:
		return e.Identifier
	case FieldDisplayPath:
		return e.DisplayPath
	}
	return ""
}

// ByLevel returns entries at depth n.
func (e *Engine) ByLevel(n int) []*doctree.SectionEntry {
	return e.filter(func(s *doctree.SectionEntry) bool { return s.Level == n })
}

// ByPageRange returns entries whose page lies in [lo, hi]. An inverted
// range is empty.
func (e *Engine) ByPageRange(lo, hi int) []*doctree.SectionEntry {
	return e.filter(func(s *doctree.SectionEntry) bool { return s.Page >= lo && s.Page <= hi })
}

func (e *Engine) filter(keep func(*doctree.SectionEntry) bool) []*doctree.SectionEntry {
	var out []*doctree.SectionEntry
	for _, s := range e.tree.Entries() {
		if keep(s) {
			out = append(out, s)
		}
	}
	return out
}

// Children returns the entries whose parent is id.
func (e *Engine) Children(id string) []*doctree.SectionEntry {
	return e.tree.Children(id)
}

// Descendants returns every entry below id in depth-first preorder. The walk
// uses an explicit stack and visits each identifier at most once.
func (e *Engine) Descendants(id string) []*doctree.SectionEntry {
	var out []*doctree.SectionEntry
	seen := map[string]bool{id: true}
	stack := reversed(e.tree.Children(id))
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[n.Identifier] {
			continue
		}
		seen[n.Identifier] = true
		out = append(out, n)
		stack = append(stack, reversed(e.tree.Children(n.Identifier))...)
	}
	return out
}

func reversed(in []*doctree.SectionEntry) []*doctree.SectionEntry {
	out := make([]*doctree.SectionEntry, len(in))
	for i, s := range in {
		out[len(in)-1-i] = s
	}
	return out
}

// PathToRoot returns the chain from the topmost reachable ancestor down to
// id. The walk stops at the first parent that does not resolve. An unknown
// id yields nil.
func (e *Engine) PathToRoot(id string) []*doctree.SectionEntry {
	cur, ok := e.tree.Get(id)
	if !ok {
		return nil
	}
	var path []*doctree.SectionEntry
	seen := map[string]bool{}
	for ok && !seen[cur.Identifier] {
		seen[cur.Identifier] = true
		path = append(path, cur)
		if cur.ParentID == "" {
			break
		}
		cur, ok = e.tree.Get(cur.ParentID)
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

// ByID looks up a single entry.
func (e *Engine) ByID(id string) (*doctree.SectionEntry, bool) {
	return e.tree.Get(id)
}

// Record returns the content record for id when the tree carries records.
func (e *Engine) Record(id string) (*doctree.ContentRecord, bool) {
	return e.tree.Record(id)
}
