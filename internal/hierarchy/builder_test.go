package hierarchy

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/dgallion1/tocindex/internal/classify"
)

func TestBuilder_EntryFromListingRow(t *testing.T) {
	cand, ok := classify.NewListing().Classify("2.1.3 Power Contract Negotiation ......... 47")
	if !ok {
		t.Fatal("expected listing row to classify")
	}
	e := New("USB PD", nil).Entry(cand.Identifier, cand.Title, cand.Page)

	if e.Identifier != "2.1.3" || e.Title != "Power Contract Negotiation" || e.Page != 47 {
		t.Errorf("unexpected entry %+v", e)
	}
	if e.Level != 3 {
		t.Errorf("expected level 3, got %d", e.Level)
	}
	if e.ParentID != "2.1" {
		t.Errorf("expected parent %q, got %q", "2.1", e.ParentID)
	}
	want := []string{"contracts", "negotiation", "power"}
	if !reflect.DeepEqual(e.Tags, want) {
		t.Errorf("expected tags %v, got %v", want, e.Tags)
	}
	if e.DocTitle != "USB PD" {
		t.Errorf("expected doc title, got %q", e.DocTitle)
	}
}

func TestTagTable_Tags(t *testing.T) {
	tests := []struct {
		title string
		want  []string
	}{
		{"Introduction", []string{}},
		{"SINK Capabilities", []string{"sink"}},
		{"Device Policy Manager", []string{"devices", "policy"}},
		{"Collision Avoidance for Data Messages", []string{"avoidance", "messages", "data"}},
		{"Source and Sink Power Data", []string{"power", "source", "sink", "data"}},
	}
	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			got := DefaultTags.Tags(tt.title)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestTagTable_NoDuplicateTags(t *testing.T) {
	table := TagTable{{"msg", "messages"}, {"message", "messages"}}
	got := table.Tags("Message msg")
	if len(got) != 1 || got[0] != "messages" {
		t.Errorf("expected a single messages tag, got %v", got)
	}
}

func TestBuilder_Idempotent(t *testing.T) {
	cands := []classify.Candidate{
		{Identifier: "1", Title: "Introduction", Page: 1},
		{Identifier: "1.1", Title: "Scope", Page: 2},
		{Identifier: "2", Title: "Power Rules", Page: 5},
		{Identifier: "1.1", Title: "Scope (continued)", Page: 3},
	}
	b := New("", nil)
	first, second := b.Build(cands), b.Build(cands)
	if !reflect.DeepEqual(first.Entries(), second.Entries()) {
		t.Error("expected identical trees from identical input")
	}
	e, _ := first.Get("1.1")
	if e.Title != "Scope (continued)" {
		t.Errorf("expected last write to win, got %q", e.Title)
	}
}

func TestLoadTags(t *testing.T) {
	dir := t.TempDir()

	extend := filepath.Join(dir, "extend.yaml")
	os.WriteFile(extend, []byte("keywords:\n  - keyword: pps\n    tag: programmable-power\n"), 0o644)
	table, err := LoadTags(extend, DefaultTags)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(table) != len(DefaultTags)+1 {
		t.Fatalf("expected %d keywords, got %d", len(DefaultTags)+1, len(table))
	}
	if got := table.Tags("PPS Power"); !reflect.DeepEqual(got, []string{"power", "programmable-power"}) {
		t.Errorf("unexpected tags %v", got)
	}

	replace := filepath.Join(dir, "replace.yaml")
	os.WriteFile(replace, []byte("replace: true\nkeywords:\n  - {keyword: usb, tag: usb}\n"), 0o644)
	table, err = LoadTags(replace, DefaultTags)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(table) != 1 {
		t.Fatalf("expected replaced table of 1, got %d", len(table))
	}

	bad := filepath.Join(dir, "bad.yaml")
	os.WriteFile(bad, []byte("keywords:\n  - keyword: x\n"), 0o644)
	if _, err := LoadTags(bad, DefaultTags); err == nil {
		t.Error("expected error for entry without tag")
	}

	if _, err := LoadTags(filepath.Join(dir, "missing.yaml"), DefaultTags); err == nil {
		t.Error("expected error for missing file")
	}
}
