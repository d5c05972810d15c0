package segment

import (
	"reflect"
	"strings"
	"testing"

	"github.com/dgallion1/tocindex/internal/doctree"
)

func pages(texts ...string) []doctree.Page {
	out := make([]doctree.Page, len(texts))
	for i, t := range texts {
		out[i] = doctree.Page{Number: i + 1, Text: t}
	}
	return out
}

func TestSegment_RecordsAndPageSpans(t *testing.T) {
	in := pages(
		"Front matter that has no header\nCopyright 2024",
		"1 Introduction\nThis document describes power rules.\nMore intro text.",
		"continues on the next page\n1.1 Scope\nScope text here.",
		"2 Power Negotiation\nNegotiation body.",
	)
	recs, acc := New(DefaultConfig(), nil).Segment(in)

	if len(recs) != 3 {
		t.Fatalf("expected 3 records, got %d", len(recs))
	}

	intro := recs[0]
	if intro.Identifier != "1" || intro.Title != "Introduction" {
		t.Errorf("unexpected first record %+v", intro.SectionEntry)
	}
	if intro.PageStart != 2 || intro.PageEnd != 3 {
		t.Errorf("expected pages 2-3, got %d-%d", intro.PageStart, intro.PageEnd)
	}
	if intro.Page != intro.PageStart {
		t.Errorf("expected entry page to equal pageStart, got %d", intro.Page)
	}
	wantBody := "This document describes power rules. More intro text. continues on the next page"
	if intro.Body != wantBody {
		t.Errorf("expected body %q, got %q", wantBody, intro.Body)
	}
	if intro.WordCount != 13 {
		t.Errorf("expected 13 words, got %d", intro.WordCount)
	}

	scope := recs[1]
	if scope.ParentID != "1" || scope.Level != 2 {
		t.Errorf("expected 1.1 under 1, got parent %q level %d", scope.ParentID, scope.Level)
	}
	if scope.PageStart != 3 || scope.PageEnd != 3 {
		t.Errorf("expected pages 3-3, got %d-%d", scope.PageStart, scope.PageEnd)
	}

	last := recs[2]
	if !reflect.DeepEqual(last.Tags, []string{"negotiation", "power"}) {
		t.Errorf("unexpected tags %v", last.Tags)
	}
	if last.PageEnd < last.PageStart {
		t.Errorf("pageEnd %d before pageStart %d", last.PageEnd, last.PageStart)
	}

	if len(acc.Tables) != 0 || len(acc.Figures) != 0 {
		t.Errorf("expected no references, got %+v", acc)
	}
}

func TestSegment_HeaderOnlyRecordKeepsPage(t *testing.T) {
	recs, _ := New(DefaultConfig(), nil).Segment(pages("1 Alpha", "2 Beta\ntext"))
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	if recs[0].PageEnd != 1 || recs[0].WordCount != 0 || recs[0].Body != "" {
		t.Errorf("unexpected empty record %+v", recs[0])
	}
}

func TestSegment_References(t *testing.T) {
	in := pages(
		"Table 0-1 appears before any header",
		"6 Message Formats\nTable 6-1 Message Header\nFigure 6-2 Packet Layout\nSee Table and Figure 6-3 for detail\nTable without digits",
	)
	recs, acc := New(DefaultConfig(), nil).Segment(in)
	if len(recs) != 1 {
		t.Fatalf("expected 1 record, got %d", len(recs))
	}

	rec := recs[0]
	if len(rec.Tables) != 2 {
		t.Fatalf("expected 2 tables, got %d: %+v", len(rec.Tables), rec.Tables)
	}
	if rec.Tables[0].ID != "Table 6-1 Message Header" || rec.Tables[0].Caption != rec.Tables[0].ID {
		t.Errorf("unexpected table reference %+v", rec.Tables[0])
	}
	if rec.Tables[0].Page != 2 {
		t.Errorf("expected page 2, got %d", rec.Tables[0].Page)
	}
	if len(rec.Figures) != 2 {
		t.Fatalf("expected 2 figures, got %d", len(rec.Figures))
	}

	if !reflect.DeepEqual(acc.Tables, rec.Tables) || !reflect.DeepEqual(acc.Figures, rec.Figures) {
		t.Error("expected accumulator to mirror the only record")
	}
	if !strings.Contains(rec.Body, "Table 6-1 Message Header") {
		t.Error("reference lines must stay in the body text")
	}
}

func TestSegment_SkipsListingRowsAndLongLines(t *testing.T) {
	long := "3 " + strings.Repeat("the sink shall ", 10) + "respond within 15 ms"
	in := pages(
		"1 Overview\n2.1 Power Rules ........ 12\n" + long,
	)
	recs, _ := New(DefaultConfig(), nil).Segment(in)
	if len(recs) != 1 {
		t.Fatalf("expected 1 record, got %d", len(recs))
	}
	if !strings.Contains(recs[0].Body, "2.1 Power Rules ........ 12") {
		t.Errorf("expected listing row in body, got %q", recs[0].Body)
	}
}

func TestSegment_RepeatedIdentifiersKept(t *testing.T) {
	recs, _ := New(DefaultConfig(), nil).Segment(pages("1 Intro\na", "1 Intro\nb"))
	if len(recs) != 2 {
		t.Fatalf("expected both records, got %d", len(recs))
	}
	tree := doctree.NewContentTree(recs)
	r, _ := tree.Record("1")
	if r.Body != "b" {
		t.Errorf("expected last record to win in the tree, got %q", r.Body)
	}
}

func TestSegment_Empty(t *testing.T) {
	recs, acc := New(Config{}, nil).Segment(nil)
	if len(recs) != 0 {
		t.Errorf("expected no records, got %d", len(recs))
	}
	if acc == nil || acc.Tables == nil || acc.Figures == nil {
		t.Error("expected an initialised accumulator")
	}
}

func TestWordCountAndTokens(t *testing.T) {
	if WordCount("  one two\tthree\n") != 3 {
		t.Error("expected 3 words")
	}
	if EstimateTokens("") != 0 {
		t.Error("expected 0 tokens for empty text")
	}
	if got := EstimateTokens("one two three"); got != 3 {
		t.Errorf("expected 3 tokens, got %d", got)
	}
}
