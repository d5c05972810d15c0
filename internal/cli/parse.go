package cli

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dgallion1/tocindex/internal/hierarchy"
	"github.com/dgallion1/tocindex/internal/jsonl"
	"github.com/dgallion1/tocindex/internal/parser"
	"github.com/dgallion1/tocindex/internal/pipeline"
	"github.com/dgallion1/tocindex/internal/report"
)

// Output file names written by parse.
const (
	ListingFile   = "toc.jsonl"
	ContentFile   = "spec.jsonl"
	MetadataFile  = "metadata.json"
	ReportFile    = "report.json"
	UnmatchedFile = "unmatched.txt"
)

type parseFlags struct {
	out          string
	docID        string
	title        string
	listingPages string
	tolerance    int
	markers      []string
	maxPages     int
	tagsFile     string
	noPdftotext  bool
	tables       int
	figures      int
}

func newParseCmd(logger func(*cobra.Command) *slog.Logger) *cobra.Command {
	f := parseFlags{}
	cmd := &cobra.Command{
		Use:   "parse FILE",
		Short: "Index a document and write the exports",
		Long: `Parse a document (.pdf, .docx, .md, .html, .csv or .txt), build the listing
and content trees, reconcile them and write toc.jsonl, spec.jsonl,
metadata.json, report.json and unmatched.txt to the output directory.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runParse(cmd, logger(cmd), args[0], f)
		},
	}
	fl := cmd.Flags()
	fl.StringVarP(&f.out, "out", "o", ".", "Output directory")
	fl.StringVar(&f.docID, "doc-id", "", "Document id (default: file name without extension)")
	fl.StringVar(&f.title, "title", "", "Override the document title")
	fl.StringVar(&f.listingPages, "listing-pages", "", "Explicit table of contents pages, e.g. 2-5")
	fl.IntVar(&f.tolerance, "tolerance", pipeline.DefaultOptions().Tolerance, "Accepted page offset between toc and body")
	fl.StringSliceVar(&f.markers, "markers", pipeline.DefaultListingMarkers, "Captions that open the table of contents")
	fl.IntVar(&f.maxPages, "listing-max-pages", pipeline.DefaultOptions().ListingMaxPages, "Pages scanned after the toc marker")
	fl.StringVar(&f.tagsFile, "tags-file", "", "YAML keyword file extending the tag table")
	fl.BoolVar(&f.noPdftotext, "no-pdftotext", false, "Do not fall back to the pdftotext binary")
	fl.IntVar(&f.tables, "tables", 0, "Authoritative table count from document metadata")
	fl.IntVar(&f.figures, "figures", 0, "Authoritative figure count from document metadata")
	return cmd
}

func runParse(cmd *cobra.Command, log *slog.Logger, path string, f parseFlags) error {
	ctx := cmd.Context()

	opts := pipeline.DefaultOptions()
	opts.Tolerance = f.tolerance
	opts.ListingMarkers = f.markers
	opts.ListingMaxPages = f.maxPages
	if f.tagsFile != "" {
		tags, err := hierarchy.LoadTags(f.tagsFile, hierarchy.DefaultTags)
		if err != nil {
			return err
		}
		opts.Tags = tags
	}
	listing, err := pipeline.ParsePageRange(f.listingPages)
	if err != nil {
		return err
	}

	p, err := parser.ForFile(path, parser.Options{FallbackPdftotext: !f.noPdftotext})
	if err != nil {
		return err
	}
	in, err := os.Open(path)
	if err != nil {
		return err
	}
	doc, err := p.Parse(in, filepath.Base(path))
	in.Close()
	if err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	if f.title != "" {
		doc.Title = f.title
	}

	docID := f.docID
	if docID == "" {
		docID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	req := pipeline.Request{DocID: docID, Document: doc, ListingPages: listing}
	if cmd.Flags().Changed("tables") {
		req.AuthoritativeTables = &f.tables
	}
	if cmd.Flags().Changed("figures") {
		req.AuthoritativeFigures = &f.figures
	}

	res, err := pipeline.NewIndexer(opts, log).Index(ctx, req)
	if err != nil {
		return err
	}
	if err := writeExports(f.out, res); err != nil {
		return err
	}
	log.Info("exports written", "dir", f.out)

	report.Render(cmd.OutOrStdout(), res.Summary, res.Report)
	return nil
}

func writeExports(dir string, res *pipeline.Result) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	if err := jsonl.WriteFile(filepath.Join(dir, ListingFile), res.Entries); err != nil {
		return err
	}
	if err := jsonl.WriteFile(filepath.Join(dir, ContentFile), res.Records); err != nil {
		return err
	}
	if err := writeJSONFile(filepath.Join(dir, MetadataFile), res.Summary); err != nil {
		return err
	}
	if err := writeJSONFile(filepath.Join(dir, ReportFile), res.Report); err != nil {
		return err
	}
	var b strings.Builder
	for _, line := range res.Unmatched {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return os.WriteFile(filepath.Join(dir, UnmatchedFile), []byte(b.String()), 0o644)
}

func writeJSONFile(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}
