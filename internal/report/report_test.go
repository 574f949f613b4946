package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRun() Run {
	return Run{
		ID:            "01JABCDEF",
		Output:        "/shows/pilot/grade.ccc",
		Status:        "ok",
		NamingPattern: `^(\d+\w\w_\d+)`,
		Inputs: []Input{
			{Path: "reel1.ale", Rows: 2, Converted: 1, Skipped: 1},
			{Path: "reel2.ale", Rows: 1, Converted: 1},
		},
		RowsRead: 3,
		Entries:  2,
		Skipped:  1,
		Renamed:  1,
		Renames: []Rename{
			{Source: "reel2.ale", Line: 8, RawName: "9XY_001_B", DerivedID: "9XY_001", ID: "9XY_001_v1"},
		},
		Skips: []Skip{
			{Source: "reel1.ale", Line: 9, Code: "ROW_PARSE", Message: "reel1.ale:9: ASC_SOP has 6 decimal values | want 9"},
		},
		IDs:       []string{"9XY_001", "9XY_001_v1"},
		StartedAt: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		Duration:  1500 * time.Millisecond,
	}
}

func TestMarkdown(t *testing.T) {
	out := string(Markdown(sampleRun()))

	assert.True(t, strings.HasPrefix(out, "# Conversion 01JABCDEF\n"))
	assert.Contains(t, out, "- Output: `/shows/pilot/grade.ccc`")
	assert.Contains(t, out, "- Status: **ok**")
	assert.Contains(t, out, "- Started: 2024-05-01T10:00:00Z")
	assert.Contains(t, out, "- Duration: 1.5s")
	assert.Contains(t, out, "| 3 | 2 | 1 | 1 |")
	assert.Contains(t, out, "| reel1.ale | 2 | 1 | 1 |")
	assert.Contains(t, out, "| reel2.ale | 8 | 9XY_001_B | 9XY_001 | 9XY_001_v1 |")
	// Pipes inside a cell are escaped
	assert.Contains(t, out, `6 decimal values \| want 9`)
	assert.Contains(t, out, "- `9XY_001_v1`")
}

func TestMarkdown_MinimalRun(t *testing.T) {
	out := string(Markdown(Run{Output: "out.ccc", Status: "failed", Error: "SCHEMA: a.ale: header row is missing required columns: [ASC_SAT]"}))

	assert.Contains(t, out, "# Conversion -")
	assert.Contains(t, out, "- Error: SCHEMA: a.ale: header row is missing required columns: \\[ASC_SAT\\]")
	assert.NotContains(t, out, "## Inputs")
	assert.NotContains(t, out, "## Renamed ids")
	assert.NotContains(t, out, "## Skipped rows")
	assert.NotContains(t, out, "## Entries")
}

func TestHTML(t *testing.T) {
	out, err := HTML(sampleRun())
	require.NoError(t, err)

	html := string(out)
	assert.True(t, strings.HasPrefix(html, "<!DOCTYPE html>"))
	assert.Contains(t, html, "<title>Conversion 01JABCDEF</title>")
	assert.Contains(t, html, "<h1>Conversion 01JABCDEF</h1>")
	assert.Contains(t, html, "<table>")
	assert.Contains(t, html, "<td>9XY_001_v1</td>")
	assert.Contains(t, html, "<code>9XY_001</code>")
}

func TestHTMLFragment_EscapesMarkup(t *testing.T) {
	r := Run{ID: "x", Skips: []Skip{{Source: "a.ale", Line: 1, Code: "NAMING_CONVENTION", Message: `<script>alert(1)</script>`}}}

	out, err := HTMLFragment(r)
	require.NoError(t, err)
	assert.NotContains(t, string(out), "<script>")
	assert.Contains(t, string(out), "&lt;script&gt;")
}

func TestRender(t *testing.T) {
	md, err := Render("run.md", sampleRun())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(md), "# Conversion"))

	page, err := Render("run.HTML", sampleRun())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(page), "<!DOCTYPE html>"))
}

func TestIsReport(t *testing.T) {
	md, err := Render("run.md", sampleRun())
	require.NoError(t, err)
	page, err := Render("run.html", sampleRun())
	require.NoError(t, err)

	assert.True(t, IsReport(bytes.NewReader(md)))
	assert.True(t, IsReport(bytes.NewReader(page)))
	assert.True(t, IsReport(strings.NewReader("\ufeff# Conversion 01J\n")))
	assert.False(t, IsReport(strings.NewReader("")))
	assert.False(t, IsReport(strings.NewReader("# Notes\n")))
	assert.False(t, IsReport(strings.NewReader("<html><body>mine</body></html>")))
}
