package main

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"siosearch/internal/core"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#444444"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#AAAAAA"))
)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		Headers(headers...)
}

// renderRunSummary prints per-source match counts, written files and the
// download outcome.
func renderRunSummary(w io.Writer, res core.Result) {
	fmt.Fprintln(w, titleStyle.Render("==== MAPS SiO Archive Search ===="))
	fmt.Fprintln(w, mutedStyle.Render("run "+res.RunID+", "+strconv.Itoa(res.ObservationRows)+" archive rows"))
	if len(res.SkippedTargets) > 0 {
		fmt.Fprintln(w, mutedStyle.Render("no rows from: "+strings.Join(res.SkippedTargets, ", ")))
	}
	if res.NoMatches {
		fmt.Fprintln(w, "No SiO SPWs found.")
		return
	}

	counts := make(map[string]int)
	for _, r := range res.Spw.Records {
		counts[r.Source]++
	}
	sources := make([]string, 0, len(counts))
	for s := range counts {
		sources = append(sources, s)
	}
	sort.Strings(sources)
	perSource := newTable("Source", "SiO SPWs")
	for _, s := range sources {
		perSource.Row(s, strconv.Itoa(counts[s]))
	}
	fmt.Fprintln(w, perSource.Render())
	fmt.Fprintf(w, "%d SPW rows, %d unique MOUS IDs\n", len(res.Spw.Records), len(res.Mous.Rows))

	files := newTable("File", "Rows", "Bytes", "URL")
	for _, a := range res.Artifacts {
		files.Row(a.Path, strconv.Itoa(a.Rows), strconv.FormatInt(a.SizeBytes, 10), a.URL)
	}
	fmt.Fprintln(w, files.Render())

	if d := res.Download; d != nil {
		fmt.Fprintf(w, "Downloaded %d of %d MOUS datasets\n", d.Retrieved, d.Requested)
		for _, f := range d.Failures {
			fmt.Fprintf(w, "  failed %s: %s\n", f.MousID, f.Error)
		}
	} else {
		fmt.Fprintln(w, mutedStyle.Render("Download stage disabled"))
	}
}
