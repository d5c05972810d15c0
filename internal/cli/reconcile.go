package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dgallion1/tocindex/internal/doctree"
	"github.com/dgallion1/tocindex/internal/jsonl"
	"github.com/dgallion1/tocindex/internal/reconcile"
)

func newReconcileCmd() *cobra.Command {
	var (
		listingPath string
		contentPath string
		tolerance   int
		tables      int
		figures     int
		showDiff    bool
	)
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Reconcile a toc export against a content export",
		Long: `Re-run reconciliation from previously written toc.jsonl and spec.jsonl files
and print the report as JSON.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := readEntriesFile(listingPath)
			if err != nil {
				return err
			}
			records, err := readRecordsFile(contentPath)
			if err != nil {
				return err
			}
			in := reconcile.Input{
				Listing:   doctree.NewTree(entries),
				Content:   doctree.NewContentTree(records),
				Tolerance: tolerance,
			}
			if cmd.Flags().Changed("tables") {
				in.AuthoritativeTables = &tables
			}
			if cmd.Flags().Changed("figures") {
				in.AuthoritativeFigures = &figures
			}
			rep := reconcile.Run(in)

			if showDiff {
				fmt.Fprint(cmd.OutOrStdout(), rep.OutlineDiff)
				return nil
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(rep)
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&listingPath, "listing", ListingFile, "Listing export (toc.jsonl)")
	fl.StringVar(&contentPath, "content", ContentFile, "Content export (spec.jsonl)")
	fl.IntVar(&tolerance, "tolerance", reconcile.DefaultTolerance, "Accepted page offset between toc and body")
	fl.IntVar(&tables, "tables", 0, "Authoritative table count")
	fl.IntVar(&figures, "figures", 0, "Authoritative figure count")
	fl.BoolVar(&showDiff, "diff", false, "Print only the outline diff")
	return cmd
}

func readEntriesFile(path string) ([]doctree.SectionEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	entries, err := jsonl.ReadEntries(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return entries, nil
}

func readRecordsFile(path string) ([]doctree.ContentRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	records, err := jsonl.ReadRecords(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return records, nil
}
