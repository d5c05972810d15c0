package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/dgallion1/tocindex/internal/doctree"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleDocument() *doctree.Document {
	return &doctree.Document{
		Title: "Power Delivery",
		Pages: []doctree.Page{
			{Number: 1, Text: "Power Delivery Specification\nRevision 3"},
			{Number: 2, Text: "Table of Contents\n1 Introduction ........ 3\n2 Power Contract\nNegotiation ......... 4\n2.1 Source Capabilities .... 5\n3 Cable Messages ....... 9"},
			{Number: 3, Text: "1 Introduction\nThis specification defines power rules.\nTable 1-1 Terms"},
			{Number: 4, Text: "2 Power Contract Negotiation\nThe sink requests power.\nFigure 2-1 Sequence"},
			{Number: 5, Text: "2.1 Source Capabilities\nSources advertise capabilities."},
			{Number: 6, Text: "more text on page six"},
			{Number: 7, Text: "4 Appendix\nExtra section not listed."},
		},
	}
}

func newTestIndexer() *Indexer {
	return NewIndexer(DefaultOptions(), quietLogger())
}

func TestIndexer_EndToEnd(t *testing.T) {
	res, err := newTestIndexer().Index(context.Background(), Request{DocID: "doc-1", Document: sampleDocument()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := res.ListingPages; len(got) != 6 || got[0] != 2 {
		t.Errorf("expected toc region to start at page 2 and cover 6 pages, got %v", got)
	}
	if res.Listing.Len() != 4 {
		t.Fatalf("expected 4 toc entries, got %d", res.Listing.Len())
	}
	e, ok := res.Listing.Get("2")
	if !ok || e.Title != "Power Contract Negotiation" || e.Page != 4 {
		t.Errorf("expected wrapped title to merge, got %+v", e)
	}
	if e.DocTitle != "Power Delivery" {
		t.Errorf("expected doc title on entries, got %q", e.DocTitle)
	}

	if res.Content.Len() != 4 {
		t.Errorf("expected 4 content records, got %d", res.Content.Len())
	}
	if len(res.References.Tables) != 1 || len(res.References.Figures) != 1 {
		t.Errorf("unexpected references %+v", res.References)
	}

	rep := res.Report
	if len(rep.Matches) != 3 {
		t.Errorf("expected 3 matches, got %v", rep.Matches)
	}
	if len(rep.MissingInContent) != 1 || rep.MissingInContent[0].Identifier != "3" {
		t.Errorf("unexpected missing %+v", rep.MissingInContent)
	}
	if len(rep.ExtraInContent) != 1 || rep.ExtraInContent[0].Identifier != "4" {
		t.Errorf("unexpected extra %+v", rep.ExtraInContent)
	}
	if len(rep.OrderErrors) != 0 {
		t.Errorf("expected no order errors, got %+v", rep.OrderErrors)
	}

	if res.Summary.TotalPages != 7 || res.Summary.ListingSections != 4 {
		t.Errorf("unexpected summary %+v", res.Summary)
	}
}

func TestIndexer_RepeatedContentHeaderLastWins(t *testing.T) {
	// The wrapped toc row "2 Power Contract" also reads as a body header on
	// page 2; the real header on page 4 replaces it in the content tree.
	res, err := newTestIndexer().Index(context.Background(), Request{DocID: "d", Document: sampleDocument()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Records) != 5 {
		t.Fatalf("expected 5 records in scan order, got %d", len(res.Records))
	}
	r, ok := res.Content.Record("2")
	if !ok || r.PageStart != 4 {
		t.Errorf("expected page 4 record to win, got %+v", r)
	}
	if d := res.Content.Duplicates(); len(d) != 1 || d[0] != "2" {
		t.Errorf("expected duplicate 2, got %v", d)
	}
}

func TestIndexer_ExplicitListingRange(t *testing.T) {
	doc := sampleDocument()
	res, err := newTestIndexer().Index(context.Background(), Request{
		DocID:        "d",
		Document:     doc,
		ListingPages: PageRange{First: 2, Last: 2},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.ListingPages) != 1 || res.ListingPages[0] != 2 {
		t.Errorf("expected listing page [2], got %v", res.ListingPages)
	}
}

func TestIndexer_NoMarker(t *testing.T) {
	doc := &doctree.Document{Title: "x", Pages: []doctree.Page{{Number: 1, Text: "1 Scope\nbody"}}}
	res, err := newTestIndexer().Index(context.Background(), Request{DocID: "d", Document: doc})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Listing.Len() != 0 || len(res.ListingPages) != 0 {
		t.Errorf("expected empty listing, got %d entries", res.Listing.Len())
	}
	if len(res.Report.ExtraInContent) != 1 {
		t.Errorf("expected content section reported as extra, got %+v", res.Report.ExtraInContent)
	}
}

func TestIndexer_NoPages(t *testing.T) {
	for _, doc := range []*doctree.Document{nil, {}, {Pages: []doctree.Page{{Number: 1, Text: " "}}}} {
		_, err := newTestIndexer().Index(context.Background(), Request{DocID: "d", Document: doc})
		if !errors.Is(err, ErrNoPages) {
			t.Errorf("expected ErrNoPages, got %v", err)
		}
	}
}

func TestIndexer_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestIndexer().Index(ctx, Request{DocID: "d", Document: sampleDocument()})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestParsePageRange(t *testing.T) {
	tests := []struct {
		in   string
		want PageRange
		ok   bool
	}{
		{"", PageRange{}, true},
		{"3", PageRange{3, 3}, true},
		{"2-5", PageRange{2, 5}, true},
		{" 2 - 5 ", PageRange{2, 5}, true},
		{"5-2", PageRange{}, false},
		{"0-2", PageRange{}, false},
		{"a-b", PageRange{}, false},
	}
	for _, tt := range tests {
		got, err := ParsePageRange(tt.in)
		if (err == nil) != tt.ok {
			t.Errorf("ParsePageRange(%q): expected ok=%v, got err=%v", tt.in, tt.ok, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParsePageRange(%q): expected %+v, got %+v", tt.in, tt.want, got)
		}
	}
}

func TestLocateListing(t *testing.T) {
	pages := make([]doctree.Page, 15)
	for i := range pages {
		pages[i] = doctree.Page{Number: i + 1, Text: "body"}
	}
	pages[3].Text = "Contents"
	got := LocateListing(pages, DefaultListingMarkers, 10)
	if len(got) != 10 || got[0].Number != 4 || got[9].Number != 13 {
		t.Errorf("unexpected region %v", pageNumbers(got))
	}
	if got := LocateListing(pages[10:], DefaultListingMarkers, 10); got != nil {
		t.Errorf("expected no region, got %v", pageNumbers(got))
	}
}
