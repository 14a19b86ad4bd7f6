// Package report renders a markdown summary of an imported classification
// run for the CLI and the local server.
package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mkoessler/eldersift/internal/store"
)

// titlePreviewLen bounds how much of a record title the report shows.
const titlePreviewLen = 80

// Build renders the run report as markdown: totals, label distribution, and
// the most confident elderly rows.
func Build(stats *store.Stats, top []store.Verdict) string {
	var b strings.Builder

	b.WriteString("# Classification Run Report\n\n")

	if stats.Total == 0 {
		b.WriteString("No verdicts imported yet. Run `eldersift classify` and `eldersift import` first.\n")
		return b.String()
	}

	fmt.Fprintf(&b, "**%d** records classified, **%d** confident elderly matches.\n\n", stats.Total, stats.Confident)
	if stats.LastSource != "" {
		fmt.Fprintf(&b, "Last import: `%s` at %s.\n\n", stats.LastSource, stats.LastImport)
	}

	b.WriteString("## Label distribution\n\n")
	b.WriteString("| Label | Count | Share |\n")
	b.WriteString("|---|---|---|\n")
	for _, label := range sortedLabels(stats.ByLabel) {
		count := stats.ByLabel[label]
		share := float64(count) / float64(stats.Total) * 100
		fmt.Fprintf(&b, "| %s | %d | %.1f%% |\n", label, count, share)
	}
	b.WriteString("\n")

	if len(top) > 0 {
		b.WriteString("## Top confident matches\n\n")
		for _, v := range top {
			fmt.Fprintf(&b, "- **%.2f** — %s (row %d)\n", v.Confidence, previewTitle(v.Title), v.RowID)
		}
	}

	return b.String()
}

// sortedLabels orders labels by descending count, ties broken alphabetically
// so the report is stable across runs.
func sortedLabels(byLabel map[string]int) []string {
	labels := make([]string, 0, len(byLabel))
	for label := range byLabel {
		labels = append(labels, label)
	}
	sort.Slice(labels, func(i, j int) bool {
		if byLabel[labels[i]] != byLabel[labels[j]] {
			return byLabel[labels[i]] > byLabel[labels[j]]
		}
		return labels[i] < labels[j]
	})
	return labels
}

func previewTitle(title string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return "(untitled)"
	}
	runes := []rune(title)
	if len(runes) <= titlePreviewLen {
		return title
	}
	return string(runes[:titlePreviewLen]) + "..."
}
