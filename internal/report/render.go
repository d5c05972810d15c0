package report

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/dgallion1/tocindex/internal/reconcile"
)

var (
	// titleStyle for bold section headers
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("33"))

	// dimStyle for labels
	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("42"))

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("33")).
			Padding(0, 1)
)

// Render writes the summary and, when rep is non-nil, the reconciliation
// outcome as a boxed console panel.
func Render(w io.Writer, s *Summary, rep *reconcile.Report) {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", titleStyle.Render(s.DocumentTitle))
	line(&b, "Pages", fmt.Sprintf("%d (toc %s)", s.TotalPages, pageList(s.ListingPages)))
	line(&b, "TOC sections", fmt.Sprintf("%d, max depth %d", s.ListingSections, s.MaxDepth))
	line(&b, "Content sections", fmt.Sprintf("%d", s.ContentSections))
	line(&b, "Tables / figures", fmt.Sprintf("%d / %d", s.TotalTables, s.TotalFigures))
	line(&b, "Levels", distribution(s.LevelDistribution))
	line(&b, "Pages by start", distribution(s.PageDistribution))
	line(&b, "Words", fmt.Sprintf("avg %.0f, p50 %.0f, p95 %.0f, max %d", s.WordStats.Avg, s.WordStats.P50, s.WordStats.P95, s.WordStats.Max))
	line(&b, "Unmatched lines", count(s.UnmatchedLines))
	line(&b, "Structural gaps", count(s.StructuralGaps))

	if rep != nil {
		fmt.Fprintf(&b, "\n%s\n", titleStyle.Render("Reconciliation"))
		line(&b, "Matches", okStyle.Render(fmt.Sprintf("%d", len(rep.Matches))))
		line(&b, "Missing in content", count(len(rep.MissingInContent)))
		line(&b, "Extra in content", count(len(rep.ExtraInContent)))
		line(&b, "Order errors", count(len(rep.OrderErrors)))
		line(&b, "Title mismatches", count(len(rep.TitleMismatches)))
		line(&b, "Tables toc/found", fmt.Sprintf("%d / %d", rep.TableCounts.ListingReferences, rep.TableCounts.ContentFound))
		line(&b, "Figures toc/found", fmt.Sprintf("%d / %d", rep.FigureCounts.ListingReferences, rep.FigureCounts.ContentFound))
	}

	fmt.Fprintln(w, boxStyle.Render(strings.TrimRight(b.String(), "\n")))
}

func line(b *strings.Builder, label, value string) {
	fmt.Fprintf(b, "%s %s\n", dimStyle.Render(label+":"), value)
}

func count(n int) string {
	if n == 0 {
		return okStyle.Render("0")
	}
	return warnStyle.Render(fmt.Sprintf("%d", n))
}

func pageList(pages []int) string {
	if len(pages) == 0 {
		return "none"
	}
	if len(pages) == 1 {
		return fmt.Sprintf("%d", pages[0])
	}
	return fmt.Sprintf("%d-%d", pages[0], pages[len(pages)-1])
}

// distribution renders a map in key order.
func distribution(m map[string]int) string {
	if len(m) == 0 {
		return "-"
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return bucketKey(keys[i]) < bucketKey(keys[j]) })
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s:%d", k, m[k])
	}
	return strings.Join(parts, " ")
}

// bucketKey orders "2" before "10" and "51-100" before "101-200".
func bucketKey(k string) int {
	n := 0
	for _, r := range k {
		if r < '0' || r > '9' {
			break
		}
		n = n*10 + int(r-'0')
	}
	return n
}
