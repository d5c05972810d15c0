package doctree

// Tree is a forest of section entries keyed by identifier. It is built once
// and only read afterwards, so it is safe for concurrent readers.
type Tree struct {
	order      []string
	entries    map[string]*SectionEntry
	records    map[string]*ContentRecord
	children   map[string][]string
	duplicates []string
}

// Gap is an entry whose parent identifier resolves to nothing in its tree.
type Gap struct {
	Identifier    string `json:"section_id"`
	MissingParent string `json:"missing_parent"`
}

// NewTree assembles a tree from entries in scan order. A repeated identifier
// replaces the earlier entry but keeps its first-seen position.
func NewTree(entries []SectionEntry) *Tree {
	t := newTree(len(entries))
	for i := range entries {
		e := entries[i]
		t.put(&e)
	}
	t.link()
	return t
}

// NewContentTree assembles a tree from content records, with the same
// replacement policy as NewTree.
func NewContentTree(records []ContentRecord) *Tree {
	t := newTree(len(records))
	t.records = make(map[string]*ContentRecord, len(records))
	for i := range records {
		r := records[i]
		t.put(&r.SectionEntry)
		t.records[r.Identifier] = &r
	}
	t.link()
	return t
}

func newTree(n int) *Tree {
	return &Tree{
		entries:  make(map[string]*SectionEntry, n),
		children: make(map[string][]string),
	}
}

func (t *Tree) put(e *SectionEntry) {
	if _, seen := t.entries[e.Identifier]; seen {
		t.duplicates = append(t.duplicates, e.Identifier)
	} else {
		t.order = append(t.order, e.Identifier)
	}
	t.entries[e.Identifier] = e
}

func (t *Tree) link() {
	for _, id := range t.order {
		p := t.entries[id].ParentID
		if p != "" {
			t.children[p] = append(t.children[p], id)
		}
	}
}

// Len is the number of distinct identifiers.
func (t *Tree) Len() int { return len(t.order) }

// Entries returns the entries in first-seen order.
func (t *Tree) Entries() []*SectionEntry {
	out := make([]*SectionEntry, len(t.order))
	for i, id := range t.order {
		out[i] = t.entries[id]
	}
	return out
}

// Get looks up an entry. A miss returns (nil, false).
func (t *Tree) Get(id string) (*SectionEntry, bool) {
	e, ok := t.entries[id]
	return e, ok
}

// Record looks up the content record behind an entry. Listing trees carry
// no records and always miss.
func (t *Tree) Record(id string) (*ContentRecord, bool) {
	if t.records == nil {
		return nil, false
	}
	r, ok := t.records[id]
	return r, ok
}

// HasRecords reports whether the tree was built from content records.
func (t *Tree) HasRecords() bool { return t.records != nil }

// Children returns the direct children of id in first-seen order.
func (t *Tree) Children(id string) []*SectionEntry {
	ids := t.children[id]
	out := make([]*SectionEntry, len(ids))
	for i, cid := range ids {
		out[i] = t.entries[cid]
	}
	return out
}

// Roots returns level-one entries and entries whose parent is missing.
func (t *Tree) Roots() []*SectionEntry {
	var out []*SectionEntry
	for _, id := range t.order {
		e := t.entries[id]
		if e.ParentID == "" {
			out = append(out, e)
			continue
		}
		if _, ok := t.entries[e.ParentID]; !ok {
			out = append(out, e)
		}
	}
	return out
}

// Gaps lists entries whose parent identifier is absent from the tree.
func (t *Tree) Gaps() []Gap {
	var out []Gap
	for _, id := range t.order {
		e := t.entries[id]
		if e.ParentID == "" {
			continue
		}
		if _, ok := t.entries[e.ParentID]; !ok {
			out = append(out, Gap{Identifier: id, MissingParent: e.ParentID})
		}
	}
	return out
}

// Duplicates lists identifiers that replaced an earlier entry, once per
// replacement.
func (t *Tree) Duplicates() []string {
	return append([]string(nil), t.duplicates...)
}

// MaxDepth is the largest level in the tree, 0 when empty.
func (t *Tree) MaxDepth() int {
	max := 0
	for _, e := range t.entries {
		if e.Level > max {
			max = e.Level
		}
	}
	return max
}
