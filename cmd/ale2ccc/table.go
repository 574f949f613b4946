package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/hpungsan/ale2ccc/internal/ops"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := 0; i < columns; i++ {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := 0; i < columns; i++ {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	columnConfigs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		columnConfigs = append(columnConfigs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(columnConfigs)

	return tw.Render()
}

// inspectTable renders an Inspect result: a header block, then one row per
// ALE data row or CCC entry.
func inspectTable(out *ops.InspectOutput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s)\n", out.Path, out.Kind)
	if out.NamingPattern != "" {
		fmt.Fprintf(&b, "naming pattern: %s\n", out.NamingPattern)
	}
	if len(out.Heading) > 0 {
		keys := make([]string, 0, len(out.Heading))
		for k := range out.Heading {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "  %s: %s\n", k, out.Heading[k])
		}
	}
	if out.Columns != nil {
		fmt.Fprintf(&b, "columns: Name=%d ASC_SOP=%d ASC_SAT=%d\n", out.Columns.Name, out.Columns.SOP, out.Columns.SAT)
	}
	fmt.Fprintf(&b, "%d entries, %d skipped, %d renamed\n", out.Entries, out.Skipped, out.Renamed)

	if out.Kind == ops.KindCCC {
		rows := make([][]string, 0, len(out.Rows))
		for _, r := range out.Rows {
			rows = append(rows, []string{r.ID, r.Slope, r.Offset, r.Power, r.Saturation})
		}
		b.WriteString(renderTable(
			[]string{"ID", "SLOPE", "OFFSET", "POWER", "SAT"},
			rows,
			[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight},
		))
		return b.String()
	}

	rows := make([][]string, 0, len(out.Rows))
	for _, r := range out.Rows {
		outcome := r.Outcome
		if r.Message != "" {
			outcome += ": " + r.Message
		}
		rows = append(rows, []string{strconv.Itoa(r.Line), r.RawName, r.ID, r.Slope, r.Offset, r.Power, r.Saturation, outcome})
	}
	b.WriteString(renderTable(
		[]string{"LINE", "NAME", "ID", "SLOPE", "OFFSET", "POWER", "SAT", "OUTCOME"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
	))
	return b.String()
}

// historyTable renders a HistoryList result.
func historyTable(out *ops.HistoryListOutput) string {
	if len(out.Runs) == 0 {
		return "No runs recorded."
	}
	rows := make([][]string, 0, len(out.Runs))
	for _, r := range out.Runs {
		rows = append(rows, []string{
			r.ID,
			time.Unix(r.StartedAt, 0).UTC().Format("2006-01-02 15:04"),
			r.Status,
			r.Output,
			strconv.Itoa(len(r.Inputs)),
			strconv.Itoa(r.Entries),
			strconv.Itoa(r.Skipped),
			strconv.Itoa(r.Renamed),
		})
	}
	tbl := renderTable(
		[]string{"RUN", "STARTED", "STATUS", "OUTPUT", "INPUTS", "ENTRIES", "SKIPPED", "RENAMED"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight},
	)
	footer := fmt.Sprintf("%d-%d of %d", out.Pagination.Offset+1, out.Pagination.Offset+len(out.Runs), out.Pagination.Total)
	if out.Pagination.HasMore {
		footer += fmt.Sprintf(" (next: --offset %d)", out.Pagination.Offset+out.Pagination.Limit)
	}
	return tbl + "\n" + footer
}
