package jsonl

import (
	"bytes"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/dgallion1/tocindex/internal/doctree"
	"github.com/dgallion1/tocindex/internal/hierarchy"
)

func TestEntriesRoundTrip(t *testing.T) {
	b := hierarchy.New("USB Power Delivery", nil)
	in := []doctree.SectionEntry{
		b.Entry("1", "Introduction", 1),
		b.Entry("2.1.3", "Power Contract Negotiation", 47),
		b.Entry("2.1.3", "Power Contract Negotiation <draft> & notes", 48),
	}

	var buf bytes.Buffer
	if err := Write(&buf, in); err != nil {
		t.Fatalf("write: %v", err)
	}
	if lines := strings.Count(buf.String(), "\n"); lines != 3 {
		t.Fatalf("expected 3 lines, got %d", lines)
	}
	if !strings.Contains(buf.String(), "<draft> & notes") {
		t.Error("expected HTML characters to be written unescaped")
	}

	out, err := ReadEntries(&buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !reflect.DeepEqual(in, out) {
		t.Errorf("round trip mismatch:\n in: %+v\nout: %+v", in, out)
	}
}

func TestRecordsRoundTripFile(t *testing.T) {
	rec := doctree.ContentRecord{
		SectionEntry: hierarchy.New("", nil).Entry("6", "Message Formats", 40),
		Body:         "Table 6-1 Header",
		PageStart:    40,
		PageEnd:      42,
		WordCount:    3,
		Tables:       []doctree.Reference{{ID: "Table 6-1 Header", Caption: "Table 6-1 Header", Page: 40}},
		Figures:      []doctree.Reference{},
	}
	path := filepath.Join(t.TempDir(), "spec.jsonl")
	if err := WriteFile(path, []doctree.ContentRecord{rec}); err != nil {
		t.Fatalf("write: %v", err)
	}
	out, err := ReadFile[doctree.ContentRecord](path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(out) != 1 || !reflect.DeepEqual(out[0], rec) {
		t.Errorf("round trip mismatch: %+v", out)
	}
}

func TestReadEntries_Validation(t *testing.T) {
	tests := []struct {
		name string
		line string
		ok   bool
	}{
		{"derived fields filled", `{"section_id":"2.1","title":"Scope","page":3}`, true},
		{"bad identifier", `{"section_id":"2.x","title":"Scope","page":3}`, false},
		{"level disagrees", `{"section_id":"2.1","title":"Scope","page":3,"level":1}`, false},
		{"parent disagrees", `{"section_id":"2.1","title":"Scope","page":3,"level":2,"parent_id":"3"}`, false},
		{"malformed json", `{"section_id":`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries, err := ReadEntries(strings.NewReader("\n" + tt.line + "\n"))
			if tt.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tt.ok {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			e := entries[0]
			if e.Level != 2 || e.ParentID != "2" || e.DisplayPath != "2.1 Scope" || e.Tags == nil {
				t.Errorf("expected derived fields, got %+v", e)
			}
		})
	}
}

func TestRead_ErrorNamesLine(t *testing.T) {
	_, err := Read[map[string]any](strings.NewReader("{}\n\nnot json\n"))
	if err == nil || !strings.Contains(err.Error(), "line 3") {
		t.Errorf("expected error naming line 3, got %v", err)
	}
}

func TestReadRecords_PageOrder(t *testing.T) {
	line := `{"section_id":"1","title":"A","page":5,"page_start":5,"page_end":4}`
	if _, err := ReadRecords(strings.NewReader(line)); err == nil {
		t.Error("expected error when page_end precedes page_start")
	}
}
