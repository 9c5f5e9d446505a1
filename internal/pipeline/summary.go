package pipeline

import (
	"fmt"
	"io"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/ppiankov/rulinstat/internal/model"
)

// RenderSummary prints the place totals and busiest chapters to w
func RenderSummary(w io.Writer, report *model.Report, manifest *model.Manifest) {
	fmt.Fprintf(w, "\nSource: %s\n", manifest.Source)
	fmt.Fprintf(w, "Chapters: %d used of %d found (%s)\n\n", manifest.ChaptersUsed, manifest.ChaptersFound, manifest.SegmentMode)

	totals := make([]model.PlaceTotal, len(report.PlaceTotals))
	copy(totals, report.PlaceTotals)
	sort.SliceStable(totals, func(i, j int) bool { return totals[i].Total > totals[j].Total })

	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleRounded)
	tw.SetTitle("Place totals")
	tw.AppendHeader(table.Row{"Place", "Mentions"})
	sum := 0
	for _, pt := range totals {
		tw.AppendRow(table.Row{pt.Place, pt.Total})
		sum += pt.Total
	}
	tw.AppendFooter(table.Row{"Total", sum})
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight, AlignFooter: text.AlignRight},
	})
	tw.Render()

	if len(report.Cooccurrences) == 0 {
		fmt.Fprintln(w, "\nNo character-place co-occurrence found.")
		return
	}

	type pair struct {
		character, place string
		chapters         int
	}
	var pairs []pair
	m := report.Matrix
	for ci, character := range m.Characters {
		for pi, place := range m.Places {
			if n := m.Cells[ci][pi]; n > 0 {
				pairs = append(pairs, pair{character, place, n})
			}
		}
	}
	sort.SliceStable(pairs, func(i, j int) bool { return pairs[i].chapters > pairs[j].chapters })
	if len(pairs) > 10 {
		pairs = pairs[:10]
	}

	fmt.Fprintln(w)
	pw := table.NewWriter()
	pw.SetOutputMirror(w)
	pw.SetStyle(table.StyleRounded)
	pw.SetTitle("Top character-place pairs")
	pw.AppendHeader(table.Row{"Character", "Place", "Chapters"})
	for _, p := range pairs {
		pw.AppendRow(table.Row{p.character, p.place, p.chapters})
	}
	pw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 3, Align: text.AlignRight},
	})
	pw.Render()
}
