package ops

import (
	"context"
	stderrors "errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hpungsan/ale2ccc/internal/ale"
	"github.com/hpungsan/ale2ccc/internal/cdl"
	"github.com/hpungsan/ale2ccc/internal/db"
	"github.com/hpungsan/ale2ccc/internal/errors"
	"github.com/hpungsan/ale2ccc/internal/logger"
	"github.com/hpungsan/ale2ccc/internal/metrics"
	"github.com/hpungsan/ale2ccc/internal/report"
)

// ConvertInput contains parameters for the Convert operation.
type ConvertInput struct {
	Inputs []string // ALE paths, processed in order; later files win collisions
	Output string   // CCC path

	NamingPattern string // optional, overrides config naming_pattern
	ReportFile    string // optional, overrides config report_file
	MetricsFile   string // optional, overrides config metrics_file
	Force         bool   // replace an existing output or report that this tool did not write
}

// InputSummary describes what one ALE file contributed.
type InputSummary struct {
	Path      string            `json:"path"`
	Rows      int               `json:"rows"`
	Converted int               `json:"converted"`
	Skipped   int               `json:"skipped"`
	Heading   map[string]string `json:"heading,omitempty"`
}

// Rename records a row stored under a versioned id.
type Rename struct {
	Source    string `json:"source"`
	Line      int    `json:"line"`
	RawName   string `json:"raw_name"`
	DerivedID string `json:"derived_id"`
	ID        string `json:"id"`
}

// Skip records a row left out of the collection.
type Skip struct {
	Source  string `json:"source"`
	Line    int    `json:"line"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ConvertOutput contains the result of the Convert operation.
type ConvertOutput struct {
	RunID         string         `json:"run_id"`
	Output        string         `json:"output"`
	Status        string         `json:"status"`
	NamingPattern string         `json:"naming_pattern"`
	Inputs        []InputSummary `json:"inputs"`
	RowsRead      int            `json:"rows_read"`
	Entries       int            `json:"entries"`
	Skipped       int            `json:"skipped"`
	Renamed       int            `json:"renamed"`
	Renames       []Rename       `json:"renames"`
	Skips         []Skip         `json:"skipped_rows"`
	IDs           []string       `json:"ids"`
	Error         *ErrorInfo     `json:"error,omitempty"`
	StartedAt     int64          `json:"started_at"`
	DurationMS    int64          `json:"duration_ms"`
}

// ErrorInfo is the coded error that ended a run.
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// provenance remembers where an entry came from, for history.
type provenance struct {
	source  string
	line    int
	rawName string
}

// Convert reads the ALE inputs in order, builds the collection and writes
// the CCC document.
//
// Rows that fail to parse or whose name does not match the naming convention
// are logged and skipped. A SCHEMA or INPUT_READ error aborts the run before
// anything is written. Once processing has started, the returned output is
// non-nil even when err is not, so callers can report what happened.
func Convert(ctx context.Context, deps Deps, input ConvertInput) (*ConvertOutput, error) {
	cfg := deps.cfg()
	log := deps.log().Named("convert")

	pattern := input.NamingPattern
	if pattern == "" {
		pattern = cfg.NamingPattern
	}
	naming, err := cdl.CompileNamingPattern(pattern)
	if err != nil {
		return nil, err
	}

	if err := ValidateInputs(input.Inputs); err != nil {
		return nil, err
	}
	if err := ValidateOutput(input.Output, input.Inputs, input.Force); err != nil {
		return nil, err
	}
	if reportFile := firstNonEmpty(input.ReportFile, cfg.ReportFile); reportFile != "" {
		if err := ValidateReport(reportFile, input.Output, input.Inputs, input.Force); err != nil {
			return nil, err
		}
	}

	started := time.Now()
	runID, err := generateULID(started)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	log = log.With(logger.String("run_id", runID))

	run := &conversion{
		deps: deps,
		log:  log,
		coll: cdl.NewCollection(cdl.WithNamingPattern(naming)),
		prov: make(map[string]provenance),
		out: &ConvertOutput{
			RunID:         runID,
			Output:        input.Output,
			NamingPattern: naming.String(),
			Inputs:        make([]InputSummary, 0, len(input.Inputs)),
			Renames:       []Rename{},
			Skips:         []Skip{},
			IDs:           []string{},
			StartedAt:     started.Unix(),
		},
	}

	for _, path := range input.Inputs {
		if err := run.readFile(ctx, path); err != nil {
			run.finish(started, input, db.StatusFailed, err)
			return run.out, err
		}
	}

	run.coll.SortByID()
	run.out.Entries = run.coll.Len()
	run.out.IDs = run.coll.IDs()

	lockTimeout := time.Duration(cfg.LockTimeoutMS) * time.Millisecond
	if err := WriteCollection(ctx, input.Output, run.coll, lockTimeout); err != nil {
		log.Error(ctx, "output write failed", logger.String("output", input.Output), logger.Error(err))
		run.finish(started, input, db.StatusWriteFailed, err)
		return run.out, err
	}

	run.finish(started, input, db.StatusOK, nil)
	return run.out, nil
}

// conversion is the state of one Convert call.
type conversion struct {
	deps Deps
	log  logger.Logger
	coll *cdl.Collection
	prov map[string]provenance
	out  *ConvertOutput
}

// readFile streams one ALE file into the collection.
func (c *conversion) readFile(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.NewInputRead(path, err)
	}
	defer f.Close()

	summary := InputSummary{Path: path}
	rd := ale.NewReader(f, ale.WithSource(path))
	flog := c.log.With(logger.String("file", filepath.Base(path)))

	// A file aborted part way still shows up with the rows it got through.
	defer func() {
		if heading := rd.Heading(); len(heading) > 0 {
			summary.Heading = make(map[string]string, len(heading))
			for _, h := range heading {
				summary.Heading[h.Key] = h.Value
			}
		}
		c.out.RowsRead += summary.Rows
		c.out.Inputs = append(c.out.Inputs, summary)
	}()

	for {
		if ctx.Err() != nil {
			return errors.NewCancelled("convert")
		}

		rec, err := rd.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			if !errors.IsRecoverable(err) {
				flog.Error(ctx, "aborting conversion", logger.Error(err))
				return err
			}
			summary.Rows++
			summary.Skipped++
			c.skip(ctx, flog, rd.Source(), rd.Line(), err)
			flog.Debug(ctx, "skipped row", logger.Int("line", rd.Line()), logger.String("row", rd.Text()))
			continue
		}

		summary.Rows++
		if c.add(ctx, flog, rec) {
			summary.Converted++
		} else {
			summary.Skipped++
		}
	}

	flog.Info(ctx, "file read",
		logger.Int("rows", summary.Rows),
		logger.Int("converted", summary.Converted),
		logger.Int("skipped", summary.Skipped))
	return nil
}

// add inserts rec and reports whether it made it into the collection.
func (c *conversion) add(ctx context.Context, log logger.Logger, rec *ale.ShotRecord) bool {
	derived, _ := c.coll.DeriveID(rec.RawName)
	id, err := c.coll.Add(rec.RawName, rec.Slope(), rec.Offset(), rec.Power(), rec.Saturation)
	if err != nil {
		c.skip(ctx, log, rec.Source, rec.Line, err)
		return false
	}

	c.prov[id] = provenance{source: rec.Source, line: rec.Line, rawName: rec.RawName}
	c.deps.Metrics.RecordRow(metrics.OutcomeConverted)

	if id != derived {
		c.out.Renamed++
		c.out.Renames = append(c.out.Renames, Rename{
			Source:    rec.Source,
			Line:      rec.Line,
			RawName:   rec.RawName,
			DerivedID: derived,
			ID:        id,
		})
		c.deps.Metrics.RecordCollision()
		log.Info(ctx, "id collision, versioned",
			logger.Int("line", rec.Line),
			logger.String("id", derived),
			logger.String("written_as", id))
	}
	return true
}

// skip records and logs a recoverable row failure.
func (c *conversion) skip(ctx context.Context, log logger.Logger, source string, line int, err error) {
	code, msg := errorInfo(err)
	c.out.Skipped++
	c.out.Skips = append(c.out.Skips, Skip{Source: source, Line: line, Code: code, Message: msg})

	switch code {
	case string(errors.ErrNamingConvention):
		c.deps.Metrics.RecordRow(metrics.OutcomeNamingConvention)
		log.Warn(ctx, "naming convention", logger.Int("line", line), logger.Error(err))
	default:
		c.deps.Metrics.RecordRow(metrics.OutcomeRowParse)
		log.Error(ctx, "row skipped", logger.Int("line", line), logger.Error(err))
	}
}

// finish stamps the outcome and hands it to history, metrics and the report.
// Failures in those sinks are logged, never returned.
func (c *conversion) finish(started time.Time, input ConvertInput, status string, runErr error) {
	ctx := context.Background()
	cfg := c.deps.cfg()
	finished := time.Now()

	c.out.Status = status
	c.out.DurationMS = finished.Sub(started).Milliseconds()
	if runErr != nil {
		code, msg := errorInfo(runErr)
		c.out.Error = &ErrorInfo{Code: code, Message: msg}
	}

	if c.deps.DB != nil && cfg.HistoryEnabled {
		if err := db.InsertRun(c.deps.DB, c.historyRun(finished), c.historyCorrections()); err != nil {
			c.log.Warn(ctx, "history not recorded", logger.Error(err))
		}
	}

	c.deps.Metrics.RecordRun(status, writtenEntries(status, c.out.Entries), finished.Sub(started), finished)
	metricsFile := firstNonEmpty(input.MetricsFile, cfg.MetricsFile)
	if err := c.deps.Metrics.WriteTextfile(metricsFile); err != nil {
		c.log.Warn(ctx, "metrics not written", logger.String("path", metricsFile), logger.Error(err))
	}

	if reportFile := firstNonEmpty(input.ReportFile, cfg.ReportFile); reportFile != "" {
		if err := WriteReport(reportFile, c.out.Report()); err != nil {
			c.log.Warn(ctx, "report not written", logger.String("path", reportFile), logger.Error(err))
		}
	}

	c.log.Info(ctx, "conversion finished",
		logger.String("status", status),
		logger.Int("entries", c.out.Entries),
		logger.Int("skipped", c.out.Skipped),
		logger.Int("renamed", c.out.Renamed),
		logger.Any("duration_ms", c.out.DurationMS))
}

func (c *conversion) historyRun(finished time.Time) *db.Run {
	r := &db.Run{
		ID:         c.out.RunID,
		Inputs:     make([]string, 0, len(c.out.Inputs)),
		Output:     c.out.Output,
		Naming:     c.out.NamingPattern,
		Status:     c.out.Status,
		RowsRead:   c.out.RowsRead,
		Entries:    c.out.Entries,
		Skipped:    c.out.Skipped,
		Renamed:    c.out.Renamed,
		StartedAt:  c.out.StartedAt,
		FinishedAt: finished.Unix(),
	}
	for _, in := range c.out.Inputs {
		r.Inputs = append(r.Inputs, in.Path)
	}
	if c.out.Error != nil {
		r.ErrorCode = &c.out.Error.Code
		r.ErrorMessage = &c.out.Error.Message
	}
	return r
}

// historyCorrections lists the entries that reached the output, in output order.
func (c *conversion) historyCorrections() []db.Correction {
	if c.out.Status != db.StatusOK {
		return nil
	}
	entries := c.coll.Entries()
	out := make([]db.Correction, len(entries))
	for i, e := range entries {
		p := c.prov[e.ID]
		out[i] = db.Correction{
			Position:   i,
			ID:         e.ID,
			RawName:    p.rawName,
			Source:     p.source,
			Line:       p.line,
			Slope:      e.Slope.String(),
			Offset:     e.Offset.String(),
			Power:      e.Power.String(),
			Saturation: e.Saturation,
		}
	}
	return out
}

// Report converts the output to the report model.
func (o *ConvertOutput) Report() report.Run {
	r := report.Run{
		ID:            o.RunID,
		Output:        o.Output,
		Status:        o.Status,
		NamingPattern: o.NamingPattern,
		RowsRead:      o.RowsRead,
		Entries:       o.Entries,
		Skipped:       o.Skipped,
		Renamed:       o.Renamed,
		IDs:           o.IDs,
		StartedAt:     time.Unix(o.StartedAt, 0),
		Duration:      time.Duration(o.DurationMS) * time.Millisecond,
	}
	if o.Status != db.StatusOK {
		// Nothing was written
		r.IDs = nil
	}
	for _, in := range o.Inputs {
		r.Inputs = append(r.Inputs, report.Input{Path: in.Path, Rows: in.Rows, Converted: in.Converted, Skipped: in.Skipped})
	}
	for _, rn := range o.Renames {
		r.Renames = append(r.Renames, report.Rename(rn))
	}
	for _, s := range o.Skips {
		r.Skips = append(r.Skips, report.Skip(s))
	}
	if o.Error != nil {
		r.Error = o.Error.Code + ": " + o.Error.Message
	}
	return r
}

// errorInfo extracts the code and message of a coded error.
func errorInfo(err error) (string, string) {
	var cErr *errors.CDLError
	if stderrors.As(err, &cErr) {
		return string(cErr.Code), cErr.Message
	}
	return string(errors.ErrInternal), err.Error()
}

func writtenEntries(status string, entries int) int {
	if status != db.StatusOK {
		return 0
	}
	return entries
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
