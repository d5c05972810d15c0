package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/dgallion1/tocindex/internal/classify"
	"github.com/dgallion1/tocindex/internal/doctree"
	"github.com/dgallion1/tocindex/internal/hierarchy"
	"github.com/dgallion1/tocindex/internal/reconcile"
	"github.com/dgallion1/tocindex/internal/report"
	"github.com/dgallion1/tocindex/internal/segment"
)

// ErrNoPages means the page supplier produced no text. The run is aborted
// before any output exists.
var ErrNoPages = errors.New("document has no page text")

// DefaultListingMarkers are the captions that open a listing region.
var DefaultListingMarkers = []string{"Table of Contents", "Contents"}

// Options are fixed for every document an Indexer handles.
type Options struct {
	Tolerance       int
	ListingMarkers  []string
	ListingMaxPages int
	HeaderMaxLen    int
	Tags            hierarchy.TagTable
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		Tolerance:       reconcile.DefaultTolerance,
		ListingMarkers:  DefaultListingMarkers,
		ListingMaxPages: 10,
		HeaderMaxLen:    segment.DefaultConfig().HeaderMaxLen,
		Tags:            hierarchy.DefaultTags,
	}
}

// PageRange is an inclusive 1-based page span. The zero value means
// "locate by marker".
type PageRange struct {
	First int `json:"first"`
	Last  int `json:"last"`
}

// IsZero reports whether no range was given.
func (r PageRange) IsZero() bool { return r.First == 0 && r.Last == 0 }

// ParsePageRange reads "first-last" or a single page number.
func ParsePageRange(s string) (PageRange, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return PageRange{}, nil
	}
	a, b, found := strings.Cut(s, "-")
	first, err := strconv.Atoi(strings.TrimSpace(a))
	if err != nil {
		return PageRange{}, fmt.Errorf("invalid page range %q", s)
	}
	last := first
	if found {
		if last, err = strconv.Atoi(strings.TrimSpace(b)); err != nil {
			return PageRange{}, fmt.Errorf("invalid page range %q", s)
		}
	}
	if first < 1 || last < first {
		return PageRange{}, fmt.Errorf("invalid page range %q", s)
	}
	return PageRange{First: first, Last: last}, nil
}

// Request describes one document to index.
type Request struct {
	DocID        string
	Document     *doctree.Document
	ListingPages PageRange

	AuthoritativeTables  *int
	AuthoritativeFigures *int
}

// Result is everything one run produces.
type Result struct {
	DocID        string
	Title        string
	TotalPages   int
	ListingPages []int

	Entries    []doctree.SectionEntry  // listing entries in scan order
	Records    []doctree.ContentRecord // content records in scan order
	Listing    *doctree.Tree
	Content    *doctree.Tree
	Unmatched  []string
	References *segment.Accumulator

	Report  *reconcile.Report
	Summary *report.Summary
}

// Indexer runs the listing pass, the content pass, reconciliation and the
// summary for one document at a time.
type Indexer struct {
	opts Options
	log  *slog.Logger
}

// NewIndexer fills unset options from DefaultOptions.
func NewIndexer(opts Options, log *slog.Logger) *Indexer {
	def := DefaultOptions()
	if len(opts.ListingMarkers) == 0 {
		opts.ListingMarkers = def.ListingMarkers
	}
	if opts.ListingMaxPages <= 0 {
		opts.ListingMaxPages = def.ListingMaxPages
	}
	if opts.HeaderMaxLen <= 0 {
		opts.HeaderMaxLen = def.HeaderMaxLen
	}
	if opts.Tags == nil {
		opts.Tags = def.Tags
	}
	if opts.Tolerance < 0 {
		opts.Tolerance = def.Tolerance
	}
	if log == nil {
		log = slog.Default()
	}
	return &Indexer{opts: opts, log: log}
}

// Index processes one document. Both passes read the same immutable pages
// and each consumes them strictly in page order.
func (ix *Indexer) Index(ctx context.Context, req Request) (*Result, error) {
	doc := req.Document
	if !doc.HasText() {
		return nil, ErrNoPages
	}
	log := ix.log.With("doc_id", req.DocID)

	listingPages := ix.listingRegion(doc, req.ListingPages)
	builder := hierarchy.New(doc.Title, ix.opts.Tags)
	res := &Result{
		DocID:        req.DocID,
		Title:        doc.Title,
		TotalPages:   len(doc.Pages),
		ListingPages: pageNumbers(listingPages),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := gctx.Err(); err != nil {
			return err
		}
		var lines []string
		for _, p := range listingPages {
			lines = append(lines, p.Lines()...)
		}
		cands, unmatched := classify.ClassifyLines(classify.NewListing(), lines)
		res.Entries = builder.Entries(cands)
		res.Listing = doctree.NewTree(res.Entries)
		res.Unmatched = unmatched
		if res.Unmatched == nil {
			res.Unmatched = []string{}
		}
		return nil
	})
	g.Go(func() error {
		if err := gctx.Err(); err != nil {
			return err
		}
		seg := segment.New(segment.Config{HeaderMaxLen: ix.opts.HeaderMaxLen}, builder)
		res.Records, res.References = seg.Segment(doc.Pages)
		res.Content = builder.BuildContent(res.Records)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("index %s: %w", req.DocID, err)
	}

	log.Info("toc parsed", "pages", res.ListingPages, "entries", len(res.Entries), "unmatched", len(res.Unmatched))
	log.Info("content segmented", "records", len(res.Records), "tables", len(res.References.Tables), "figures", len(res.References.Figures))
	if d := res.Listing.Duplicates(); len(d) > 0 {
		log.Warn("duplicate toc identifiers replaced", "ids", d)
	}
	if len(listingPages) == 0 {
		log.Warn("no toc region found", "markers", ix.opts.ListingMarkers)
	}

	res.Report = reconcile.Run(reconcile.Input{
		Listing:              res.Listing,
		Content:              res.Content,
		References:           res.References,
		AuthoritativeTables:  req.AuthoritativeTables,
		AuthoritativeFigures: req.AuthoritativeFigures,
		Tolerance:            ix.opts.Tolerance,
	})
	res.Summary = report.Build(report.Input{
		DocumentID:    req.DocID,
		DocumentTitle: doc.Title,
		TotalPages:    len(doc.Pages),
		ListingPages:  res.ListingPages,
		Listing:       res.Listing,
		Content:       res.Content,
		References:    res.References,
		Unmatched:     len(res.Unmatched),
	})
	log.Info("reconciled",
		"matches", len(res.Report.Matches),
		"missing", len(res.Report.MissingInContent),
		"extra", len(res.Report.ExtraInContent),
		"order_errors", len(res.Report.OrderErrors))
	return res, nil
}

// listingRegion returns the explicit range when given. Otherwise it is the
// first page containing a marker plus the pages after it, up to the
// configured page count.
func (ix *Indexer) listingRegion(doc *doctree.Document, r PageRange) []doctree.Page {
	if !r.IsZero() {
		return doc.PageRange(r.First, r.Last)
	}
	return LocateListing(doc.Pages, ix.opts.ListingMarkers, ix.opts.ListingMaxPages)
}

// LocateListing finds the listing region by marker text.
func LocateListing(pages []doctree.Page, markers []string, maxPages int) []doctree.Page {
	for i, p := range pages {
		if !containsAny(p.Text, markers) {
			continue
		}
		end := min(i+maxPages, len(pages))
		return pages[i:end]
	}
	return nil
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if sub != "" && strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func pageNumbers(pages []doctree.Page) []int {
	out := make([]int, len(pages))
	for i, p := range pages {
		out[i] = p.Number
	}
	return out
}
