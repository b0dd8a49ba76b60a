package main

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/JaimeStill/verdict/internal/controller"
	"github.com/JaimeStill/verdict/internal/evaluation"
	"github.com/JaimeStill/verdict/internal/store"
)

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	return t
}

func printReport(w io.Writer, r controller.Report) {
	if r.Status == "" {
		return
	}

	t := newTable(w)
	t.SetTitle("Run " + r.RunID)
	t.AppendRows([]table.Row{
		{"Status", r.Status},
		{"Attempted", humanize.Comma(int64(r.Summary.Attempted))},
		{"Succeeded", humanize.Comma(int64(r.Summary.Succeeded))},
		{"Failed", humanize.Comma(int64(r.Summary.Failed))},
		{"Committed", fmt.Sprintf("%s in %d commits", humanize.Comma(int64(r.Summary.Committed)), r.Summary.Commits)},
	})
	t.Render()

	if r.Metrics != nil {
		printMetrics(w, *r.Metrics)
	}
}

func printMetrics(w io.Writer, m evaluation.Metrics) {
	t := newTable(w)
	t.SetTitle("Metrics (" + m.Aggregator + ")")
	t.AppendHeader(table.Row{"Metric", "Value"})
	t.AppendRows([]table.Row{
		{"total", humanize.Comma(int64(m.Total))},
		{"errored", humanize.Comma(int64(m.Errored))},
		{"evaluated", humanize.Comma(int64(m.Evaluated))},
	})
	t.AppendSeparator()
	for _, name := range slices.Sorted(maps.Keys(m.Scores)) {
		t.AppendRow(table.Row{name, fmt.Sprintf("%.4f", m.Scores[name])})
	}
	t.AppendSeparator()
	t.AppendRows([]table.Row{
		{"latency mean", fmt.Sprintf("%.0f ms", m.Latency.MeanMS)},
		{"tokens in", humanize.Comma(m.Tokens.Input)},
		{"tokens out", humanize.Comma(m.Tokens.Output)},
	})
	t.Render()
}

func printRun(w io.Writer, run *store.Run, stats store.ResultStats) {
	t := newTable(w)
	t.SetTitle("Run " + run.RunID)
	t.AppendRows([]table.Row{
		{"Name", run.Name},
		{"Source", run.SourceName},
		{"Status", run.Status},
		{"Progress", fmt.Sprintf("%s of %s", humanize.Comma(int64(run.CompletedItems)), humanize.Comma(int64(run.TotalItems)))},
		{"Results", fmt.Sprintf("%s (%s errored)", humanize.Comma(int64(stats.Total)), humanize.Comma(int64(stats.Errored)))},
		{"Started", when(&run.StartedAt)},
		{"Last progress", when(run.LastProgressAt)},
		{"ETA", when(run.EstimatedCompletionAt)},
		{"Ended", when(run.EndedAt)},
	})
	if run.FailureReason != nil {
		t.AppendRow(table.Row{"Failure", *run.FailureReason})
	}
	t.Render()
}

func printRuns(w io.Writer, runs []store.Run, page, totalPages, total int) {
	t := newTable(w)
	t.AppendHeader(table.Row{"Run", "Name", "Source", "Status", "Progress", "Started"})
	for _, run := range runs {
		t.AppendRow(table.Row{
			run.RunID,
			run.Name,
			run.SourceName,
			run.Status,
			fmt.Sprintf("%d/%d", run.CompletedItems, run.TotalItems),
			when(&run.StartedAt),
		})
	}
	t.AppendFooter(table.Row{"", "", "", "", fmt.Sprintf("page %d of %d", page, totalPages), fmt.Sprintf("%d runs", total)})
	t.Render()
}

func when(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return fmt.Sprintf("%s (%s)", t.Local().Format(time.DateTime), humanize.Time(*t))
}
