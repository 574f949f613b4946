// Package report renders a conversion run as Markdown, or as a standalone
// HTML page converted from that Markdown with goldmark.
package report

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// Run is everything a report shows about one conversion.
type Run struct {
	ID            string
	Output        string
	Status        string
	NamingPattern string
	Inputs        []Input
	RowsRead      int
	Entries       int
	Skipped       int
	Renamed       int
	Renames       []Rename
	Skips         []Skip
	IDs           []string
	Error         string
	StartedAt     time.Time
	Duration      time.Duration
}

// Input summarizes one ALE file.
type Input struct {
	Path      string
	Rows      int
	Converted int
	Skipped   int
}

// Rename is a record that was written under a versioned id.
type Rename struct {
	Source    string
	Line      int
	RawName   string
	DerivedID string
	ID        string
}

// Skip is a row left out of the collection.
type Skip struct {
	Source  string
	Line    int
	Code    string
	Message string
}

var md = goldmark.New(goldmark.WithExtensions(extension.Table))

var page = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: system-ui, sans-serif; margin: 2rem auto; max-width: 60rem; color: #222; }
table { border-collapse: collapse; margin: 1rem 0; }
th, td { border: 1px solid #ccc; padding: .25rem .6rem; text-align: left; }
code { background: #f4f4f4; padding: 0 .2rem; }
</style>
</head>
<body>
{{.Body}}
</body>
</html>
`))

// Markdown renders r as a Markdown document.
func Markdown(r Run) []byte {
	var b bytes.Buffer

	fmt.Fprintf(&b, "# Conversion %s\n\n", mdText(orDash(r.ID)))
	fmt.Fprintf(&b, "- Output: `%s`\n", mdCode(r.Output))
	fmt.Fprintf(&b, "- Status: **%s**\n", mdText(orDash(r.Status)))
	if r.NamingPattern != "" {
		fmt.Fprintf(&b, "- Naming convention: `%s`\n", mdCode(r.NamingPattern))
	}
	if !r.StartedAt.IsZero() {
		fmt.Fprintf(&b, "- Started: %s\n", r.StartedAt.UTC().Format(time.RFC3339))
	}
	if r.Duration > 0 {
		fmt.Fprintf(&b, "- Duration: %s\n", r.Duration.Round(time.Millisecond))
	}
	if r.Error != "" {
		fmt.Fprintf(&b, "- Error: %s\n", mdText(r.Error))
	}
	b.WriteString("\n")

	b.WriteString("| Rows read | Entries | Skipped | Renamed |\n")
	b.WriteString("|---:|---:|---:|---:|\n")
	fmt.Fprintf(&b, "| %d | %d | %d | %d |\n\n", r.RowsRead, r.Entries, r.Skipped, r.Renamed)

	if len(r.Inputs) > 0 {
		b.WriteString("## Inputs\n\n")
		b.WriteString("| File | Rows | Converted | Skipped |\n")
		b.WriteString("|---|---:|---:|---:|\n")
		for _, in := range r.Inputs {
			fmt.Fprintf(&b, "| %s | %d | %d | %d |\n", mdCell(in.Path), in.Rows, in.Converted, in.Skipped)
		}
		b.WriteString("\n")
	}

	if len(r.Renames) > 0 {
		b.WriteString("## Renamed ids\n\n")
		b.WriteString("| Source | Line | Name | Derived id | Written as |\n")
		b.WriteString("|---|---:|---|---|---|\n")
		for _, rn := range r.Renames {
			fmt.Fprintf(&b, "| %s | %d | %s | %s | %s |\n",
				mdCell(rn.Source), rn.Line, mdCell(rn.RawName), mdCell(rn.DerivedID), mdCell(rn.ID))
		}
		b.WriteString("\n")
	}

	if len(r.Skips) > 0 {
		b.WriteString("## Skipped rows\n\n")
		b.WriteString("| Source | Line | Code | Reason |\n")
		b.WriteString("|---|---:|---|---|\n")
		for _, s := range r.Skips {
			fmt.Fprintf(&b, "| %s | %d | %s | %s |\n", mdCell(s.Source), s.Line, mdCell(s.Code), mdCell(s.Message))
		}
		b.WriteString("\n")
	}

	if len(r.IDs) > 0 {
		b.WriteString("## Entries\n\n")
		for _, id := range r.IDs {
			fmt.Fprintf(&b, "- `%s`\n", mdCode(id))
		}
		b.WriteString("\n")
	}

	return b.Bytes()
}

// HTMLFragment converts the Markdown report to an HTML fragment.
func HTMLFragment(r Run) (template.HTML, error) {
	var buf bytes.Buffer
	if err := md.Convert(Markdown(r), &buf); err != nil {
		return "", fmt.Errorf("render report: %w", err)
	}
	return template.HTML(buf.String()), nil
}

// HTML renders r as a standalone HTML page.
func HTML(r Run) ([]byte, error) {
	body, err := HTMLFragment(r)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	err = page.Execute(&buf, struct {
		Title string
		Body  template.HTML
	}{Title: "Conversion " + orDash(r.ID), Body: body})
	if err != nil {
		return nil, fmt.Errorf("render report: %w", err)
	}
	return buf.Bytes(), nil
}

// Extensions lists the file suffixes a report may be written under.
var Extensions = []string{".md", ".markdown", ".html", ".htm"}

// IsHTMLPath reports whether path selects the HTML rendering.
func IsHTMLPath(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		return true
	}
	return false
}

// Render returns the report in the format path's extension selects:
// HTML for .html/.htm, Markdown otherwise.
func Render(path string, r Run) ([]byte, error) {
	if IsHTMLPath(path) {
		return HTML(r)
	}
	return Markdown(r), nil
}

// IsReport reports whether rd starts like a document Render produced.
func IsReport(rd io.Reader) bool {
	head := make([]byte, 64)
	n, _ := io.ReadFull(rd, head)
	head = bytes.TrimPrefix(head[:n], []byte("\xef\xbb\xbf"))
	return bytes.HasPrefix(head, []byte("# Conversion ")) || bytes.HasPrefix(head, []byte("<!DOCTYPE html>"))
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// mdCell makes s safe inside a table cell.
func mdCell(s string) string {
	s = strings.NewReplacer("\r", " ", "\n", " ", "\t", " ").Replace(s)
	s = mdText(s)
	if s == "" {
		return " "
	}
	return s
}

var mdEscaper = strings.NewReplacer(
	`\`, `\\`, "|", `\|`, "*", `\*`, "`", "\\`",
	"[", `\[`, "]", `\]`, "<", `\<`, ">", `\>`,
)

func mdText(s string) string {
	return mdEscaper.Replace(s)
}

// mdCode keeps s inside a single-backtick span.
func mdCode(s string) string {
	return strings.ReplaceAll(s, "`", "'")
}
