package ops

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/hpungsan/ale2ccc/internal/ale"
	"github.com/hpungsan/ale2ccc/internal/cdl"
	"github.com/hpungsan/ale2ccc/internal/errors"
)

// Inspected file kinds.
const (
	KindALE = "ale"
	KindCCC = "ccc"
)

// Row outcomes reported by Inspect.
const (
	OutcomeOK      = "ok"
	OutcomeRenamed = "renamed"
)

// InspectInput contains parameters for the Inspect operation.
type InspectInput struct {
	Path          string // required, an ALE log or a CCC document
	NamingPattern string // optional, overrides config naming_pattern (ALE only)
}

// InspectRow is one data row of an ALE log or one entry of a CCC document.
type InspectRow struct {
	Line       int    `json:"line,omitempty" yaml:"line,omitempty"`
	RawName    string `json:"raw_name,omitempty" yaml:"raw_name,omitempty"`
	ID         string `json:"id,omitempty" yaml:"id,omitempty"`
	Slope      string `json:"slope,omitempty" yaml:"slope,omitempty"`
	Offset     string `json:"offset,omitempty" yaml:"offset,omitempty"`
	Power      string `json:"power,omitempty" yaml:"power,omitempty"`
	Saturation string `json:"saturation,omitempty" yaml:"saturation,omitempty"`
	Outcome    string `json:"outcome" yaml:"outcome"`
	Message    string `json:"message,omitempty" yaml:"message,omitempty"`
}

// InspectColumns is the resolved column map of an ALE log.
type InspectColumns struct {
	Name int `json:"name" yaml:"name"`
	SOP  int `json:"asc_sop" yaml:"asc_sop"`
	SAT  int `json:"asc_sat" yaml:"asc_sat"`
}

// InspectOutput contains the result of the Inspect operation.
type InspectOutput struct {
	Path          string            `json:"path" yaml:"path"`
	Kind          string            `json:"kind" yaml:"kind"`
	NamingPattern string            `json:"naming_pattern,omitempty" yaml:"naming_pattern,omitempty"`
	Heading       map[string]string `json:"heading,omitempty" yaml:"heading,omitempty"`
	Columns       *InspectColumns   `json:"columns,omitempty" yaml:"columns,omitempty"`
	Rows          []InspectRow      `json:"rows" yaml:"rows"`
	Entries       int               `json:"entries" yaml:"entries"`
	Skipped       int               `json:"skipped" yaml:"skipped"`
	Renamed       int               `json:"renamed" yaml:"renamed"`
}

// Inspect parses one file without writing anything.
// ALE rows are run through a fresh collection, so the ids shown are the ids a
// single-file conversion would write (in row order, before sorting).
func Inspect(ctx context.Context, deps Deps, input InspectInput) (*InspectOutput, error) {
	if strings.TrimSpace(input.Path) == "" {
		return nil, errors.NewInvalidRequest("path is required")
	}
	if err := ValidateInputs([]string{input.Path}); err != nil {
		return nil, err
	}

	f, err := os.Open(input.Path)
	if err != nil {
		return nil, errors.NewInputRead(input.Path, err)
	}
	defer f.Close()

	kind, err := detectKind(input.Path, f)
	if err != nil {
		return nil, err
	}

	if kind == KindCCC {
		return inspectCCC(input.Path, f)
	}

	pattern := input.NamingPattern
	if pattern == "" {
		pattern = deps.cfg().NamingPattern
	}
	naming, err := cdl.CompileNamingPattern(pattern)
	if err != nil {
		return nil, err
	}
	return inspectALE(ctx, input.Path, f, naming.String(), cdl.NewCollection(cdl.WithNamingPattern(naming)))
}

// detectKind decides by extension, then by sniffing for a CCC root element.
// f is rewound afterwards.
func detectKind(path string, f *os.File) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ale":
		return KindALE, nil
	case ".ccc", ".xml":
		return KindCCC, nil
	}

	kind := KindALE
	if cdl.IsCollection(f) {
		kind = KindCCC
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", errors.NewInputRead(path, err)
	}
	return kind, nil
}

func inspectCCC(path string, r io.Reader) (*InspectOutput, error) {
	coll, err := cdl.Decode(r)
	if err != nil {
		return nil, errors.NewInputRead(path, err)
	}

	out := &InspectOutput{Path: path, Kind: KindCCC, Rows: make([]InspectRow, 0, coll.Len())}
	for _, e := range coll.Entries() {
		out.Rows = append(out.Rows, InspectRow{
			ID:         e.ID,
			Slope:      e.Slope.String(),
			Offset:     e.Offset.String(),
			Power:      e.Power.String(),
			Saturation: e.Saturation,
			Outcome:    OutcomeOK,
		})
	}
	out.Entries = coll.Len()
	return out, nil
}

func inspectALE(ctx context.Context, path string, r io.Reader, pattern string, coll *cdl.Collection) (*InspectOutput, error) {
	out := &InspectOutput{Path: path, Kind: KindALE, NamingPattern: pattern, Rows: []InspectRow{}}
	rd := ale.NewReader(r, ale.WithSource(path))

	for {
		if ctx.Err() != nil {
			return nil, errors.NewCancelled("inspect")
		}

		rec, err := rd.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			if !errors.IsRecoverable(err) {
				return nil, err
			}
			code, msg := errorInfo(err)
			out.Rows = append(out.Rows, InspectRow{Line: rd.Line(), Outcome: code, Message: msg})
			out.Skipped++
			continue
		}

		row := InspectRow{
			Line:       rec.Line,
			RawName:    rec.RawName,
			Slope:      cdl.Triplet(rec.Slope()).String(),
			Offset:     cdl.Triplet(rec.Offset()).String(),
			Power:      cdl.Triplet(rec.Power()).String(),
			Saturation: rec.Saturation,
			Outcome:    OutcomeOK,
		}
		derived, _ := coll.DeriveID(rec.RawName)
		id, err := coll.Add(rec.RawName, rec.Slope(), rec.Offset(), rec.Power(), rec.Saturation)
		if err != nil {
			row.Outcome, row.Message = errorInfo(err)
			out.Skipped++
		} else {
			row.ID = id
			out.Entries++
			if id != derived {
				row.Outcome = OutcomeRenamed
				row.Message = "derived id " + derived + " already taken"
				out.Renamed++
			}
		}
		out.Rows = append(out.Rows, row)
	}

	if heading := rd.Heading(); len(heading) > 0 {
		out.Heading = make(map[string]string, len(heading))
		for _, h := range heading {
			out.Heading[h.Key] = h.Value
		}
	}
	if cols, ok := rd.Columns(); ok {
		out.Columns = &InspectColumns{Name: cols.Name, SOP: cols.SOP, SAT: cols.SAT}
	}
	return out, nil
}
