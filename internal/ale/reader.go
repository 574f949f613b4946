// Package ale reads Avid Log Exchange logs and yields the rows that carry
// ASC CDL grading data.
//
// An ALE log is line oriented and tab delimited. A Heading block carries
// global key/value pairs, a Column line is followed by the header row naming
// every field, and a Data line starts the shot rows, which run to the end of
// the file. Reader resolves the Name, ASC_SOP and ASC_SAT positions from the
// header row and turns each data row into a ShotRecord.
package ale

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/hpungsan/ale2ccc/internal/errors"
)

// Section keywords. A line whose first token equals one of these switches section.
const (
	keywordHeading = "Heading"
	keywordColumn  = "Column"
	keywordData    = "Data"
)

const (
	defaultSource       = "<input>"
	defaultMaxLineBytes = 1024 * 1024
)

type section int

const (
	sectionNone section = iota
	sectionHeading
	sectionData
)

// HeadingField is one key/value pair from the Heading block.
type HeadingField struct {
	Key   string
	Value string
}

// Option configures a Reader.
type Option func(*Reader)

// WithSource sets the name used in diagnostics and on every ShotRecord.
func WithSource(name string) Option {
	return func(r *Reader) {
		if name != "" {
			r.source = name
		}
	}
}

// WithMaxLineBytes raises or lowers the longest line the Reader accepts.
func WithMaxLineBytes(n int) Option {
	return func(r *Reader) {
		if n > 0 {
			r.maxLine = n
		}
	}
}

// Reader streams ShotRecords from an ALE log in a single forward pass.
// It is not safe for concurrent use and cannot be rewound.
type Reader struct {
	source  string
	maxLine int
	scanner *bufio.Scanner

	line    int
	text    string
	section section
	columns *ColumnMap
	heading []HeadingField

	// err is sticky: once set, Next keeps returning it
	err error
}

// NewReader returns a Reader over r. A leading UTF-8 byte order mark is dropped.
func NewReader(r io.Reader, opts ...Option) *Reader {
	rd := &Reader{
		source:  defaultSource,
		maxLine: defaultMaxLineBytes,
	}
	for _, opt := range opts {
		opt(rd)
	}

	decoded := transform.NewReader(r, unicode.UTF8BOM.NewDecoder())
	rd.scanner = bufio.NewScanner(decoded)
	rd.scanner.Buffer(make([]byte, 0, min(64*1024, rd.maxLine)), rd.maxLine)
	return rd
}

// Source returns the name the Reader reports in diagnostics.
func (r *Reader) Source() string { return r.source }

// Line returns the number of the last line consumed.
func (r *Reader) Line() int { return r.line }

// Text returns the last line consumed, without its terminator.
func (r *Reader) Text() string { return r.text }

// Heading returns the Heading block fields seen so far, in file order.
func (r *Reader) Heading() []HeadingField {
	out := make([]HeadingField, len(r.heading))
	copy(out, r.heading)
	return out
}

// Columns returns the active column map, if a Column block has been read.
func (r *Reader) Columns() (ColumnMap, bool) {
	if r.columns == nil {
		return ColumnMap{}, false
	}
	return *r.columns, true
}

// Next returns the next record.
//
// It returns io.EOF once the input is exhausted. A row that cannot be parsed
// yields a ROW_PARSE error; the caller may report it and call Next again.
// Schema and read failures are fatal and returned on every later call.
func (r *Reader) Next() (*ShotRecord, error) {
	if r.err != nil {
		return nil, r.err
	}

	for {
		text, ok := r.readLine()
		if !ok {
			return nil, r.err
		}

		trimmed := strings.TrimSpace(text)
		if trimmed == "" {
			continue
		}

		first, _, more := strings.Cut(trimmed, "\t")
		if more && r.section == sectionData {
			// Inside Data only a bare keyword line opens a new section.
			first = ""
		}
		switch first {
		case keywordHeading:
			r.section = sectionHeading
			continue
		case keywordColumn:
			r.section = sectionNone
			if err := r.readHeader(); err != nil {
				r.err = err
				return nil, err
			}
			continue
		case keywordData:
			if r.columns == nil {
				r.err = errors.NewSchemaNoColumns(r.source, r.line)
				return nil, r.err
			}
			r.section = sectionData
			continue
		}

		switch r.section {
		case sectionHeading:
			key, value, _ := strings.Cut(trimmed, "\t")
			r.heading = append(r.heading, HeadingField{Key: key, Value: strings.TrimSpace(value)})
		case sectionData:
			return r.parseRow(text)
		}
	}
}

// readLine advances the scanner. On false, r.err is io.EOF or a read error.
func (r *Reader) readLine() (string, bool) {
	if !r.scanner.Scan() {
		if err := r.scanner.Err(); err != nil {
			r.err = errors.NewInputRead(r.source, err)
		} else {
			r.err = io.EOF
		}
		return "", false
	}
	r.line++
	r.text = r.scanner.Text()
	return r.text, true
}

// readHeader consumes the line after a Column keyword and resolves the column map.
func (r *Reader) readHeader() error {
	text, ok := r.readLine()
	if !ok {
		if r.err == io.EOF {
			return errors.NewSchema(r.source, RequiredColumns)
		}
		return r.err
	}

	cols, missing := ResolveColumns(strings.Split(text, "\t"))
	if len(missing) > 0 {
		return errors.NewSchema(r.source, missing)
	}
	r.columns = &cols
	return nil
}

// parseRow splits a data row without trimming and extracts the graded fields.
func (r *Reader) parseRow(text string) (*ShotRecord, error) {
	fields := strings.Split(text, "\t")
	cols := *r.columns
	if cols.maxIndex() >= len(fields) {
		return nil, errors.NewRowParse(r.source, r.line,
			fmt.Sprintf("row has %d fields, header needs %d", len(fields), cols.maxIndex()+1))
	}

	sop, err := ParseSOP(fields[cols.SOP])
	if err != nil {
		return nil, errors.NewRowParse(r.source, r.line, err.Error())
	}

	return &ShotRecord{
		Source:     r.source,
		Line:       r.line,
		RawName:    fields[cols.Name],
		SOP:        sop,
		Saturation: fields[cols.SAT],
	}, nil
}
