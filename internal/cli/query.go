package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/dgallion1/tocindex/internal/doctree"
	"github.com/dgallion1/tocindex/internal/jsonl"
	"github.com/dgallion1/tocindex/internal/query"
)

var (
	idStyle   = lipgloss.NewStyle().Bold(true)
	pageStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

const queryUsage = `search TERM | level N | pages LO HI | children ID | descendants ID | path ID | get ID`

func newQueryCmd() *cobra.Command {
	var (
		content bool
		fields  []string
		asJSON  bool
	)
	cmd := &cobra.Command{
		Use:   "query FILE.jsonl " + queryUsage,
		Short: "Query a toc or content export",
		Long: `Load an export written by parse and run one lookup over it.

  search TERM        case-insensitive substring search (--fields narrows it)
  level N            entries at depth N
  pages LO HI        entries whose page lies in [LO, HI]
  children ID        direct children of ID
  descendants ID     every entry below ID
  path ID            chain from the top-level ancestor down to ID
  get ID             one entry (with its body text for content exports)`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			tree, err := loadTree(args[0], content)
			if err != nil {
				return err
			}
			return runQuery(cmd.OutOrStdout(), query.New(tree), args[1], args[2:], fields, asJSON)
		},
	}
	cmd.Flags().BoolVar(&content, "content", false, "The file is a content export (spec.jsonl)")
	cmd.Flags().StringSliceVar(&fields, "fields", nil, "Fields searched: title, tags, section_id, full_path")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print results as JSON lines")
	return cmd
}

func loadTree(path string, content bool) (*doctree.Tree, error) {
	if content {
		records, err := readRecordsFile(path)
		if err != nil {
			return nil, err
		}
		return doctree.NewContentTree(records), nil
	}
	entries, err := readEntriesFile(path)
	if err != nil {
		return nil, err
	}
	return doctree.NewTree(entries), nil
}

func runQuery(w io.Writer, eng *query.Engine, op string, args, fieldNames []string, asJSON bool) error {
	need := func(n int) error {
		if len(args) != n {
			return fmt.Errorf("%s expects %d argument(s), got %d", op, n, len(args))
		}
		return nil
	}

	var out []*doctree.SectionEntry
	switch op {
	case "search":
		if err := need(1); err != nil {
			return err
		}
		fields, err := query.ParseFields(fieldNames)
		if err != nil {
			return err
		}
		hits := eng.Search(args[0], fields)
		if asJSON {
			return jsonl.Write(w, hits)
		}
		for _, h := range hits {
			var ms []string
			for _, m := range h.Matches {
				ms = append(ms, m.Field+"="+strconv.Quote(m.Value))
			}
			fmt.Fprintf(w, "%s  %s\n", entryLine(h.Entry), pageStyle.Render(strings.Join(ms, " ")))
		}
		return nil
	case "level":
		if err := need(1); err != nil {
			return err
		}
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("level must be an integer: %q", args[0])
		}
		out = eng.ByLevel(n)
	case "pages":
		if err := need(2); err != nil {
			return err
		}
		lo, err1 := strconv.Atoi(args[0])
		hi, err2 := strconv.Atoi(args[1])
		if err1 != nil || err2 != nil {
			return fmt.Errorf("pages expects two integers, got %q %q", args[0], args[1])
		}
		out = eng.ByPageRange(lo, hi)
	case "children", "descendants":
		if err := need(1); err != nil {
			return err
		}
		id := args[0]
		if op == "children" {
			out = eng.Children(id)
		} else {
			out = eng.Descendants(id)
		}
		// A structural gap has no entry of its own but may still have children.
		if _, known := eng.ByID(id); !known && len(out) == 0 {
			return fmt.Errorf("section %s not found", id)
		}
	case "path", "get":
		if err := need(1); err != nil {
			return err
		}
		id := args[0]
		e, ok := eng.ByID(id)
		if !ok {
			return fmt.Errorf("section %s not found", id)
		}
		if op == "path" {
			out = eng.PathToRoot(id)
			break
		}
		if rec, ok := eng.Record(id); ok {
			if asJSON {
				return jsonl.Write(w, []*doctree.ContentRecord{rec})
			}
			fmt.Fprintf(w, "%s\n%s\n", entryLine(&rec.SectionEntry), rec.Body)
			return nil
		}
		out = []*doctree.SectionEntry{e}
	default:
		return fmt.Errorf("unknown query %q (want %s)", op, queryUsage)
	}

	if asJSON {
		return jsonl.Write(w, out)
	}
	for _, e := range out {
		fmt.Fprintln(w, entryLine(e))
	}
	return nil
}

func entryLine(e *doctree.SectionEntry) string {
	return fmt.Sprintf("%s%s %s %s",
		strings.Repeat("  ", max(e.Level-1, 0)),
		idStyle.Render(e.Identifier),
		e.Title,
		pageStyle.Render(fmt.Sprintf("p.%d", e.Page)))
}
