package ale

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpungsan/ale2ccc/internal/errors"
)

// sampleALE is a minimal log with a Heading block and two graded shots.
const sampleALE = "Heading\n" +
	"FIELD_DELIM\tTABS\n" +
	"VIDEO_FORMAT\t1080\n" +
	"FPS\t23.976\n" +
	"\n" +
	"Column\n" +
	"Name\tTracks\tASC_SOP\tASC_SAT\tStart\n" +
	"\n" +
	"Data\n" +
	"123AB_456_take1\tV\t(1.0 1.0 1.0)(0.0 0.0 0.0)(1.0 1.0 1.0)\t1.0\t01:00:00:00\n" +
	"124CD_001\tV\t(0.9 0.8 0.7)(0.01 0.02 0.03)(1.1 1.2 1.3)\t0.85\t01:00:10:00\n"

// collect drains r, splitting records from recoverable errors.
func collect(t *testing.T, r *Reader) ([]*ShotRecord, []error) {
	t.Helper()
	var recs []*ShotRecord
	var errs []error
	for {
		rec, err := r.Next()
		if err == io.EOF {
			return recs, errs
		}
		if err != nil {
			if !errors.IsRecoverable(err) {
				t.Fatalf("Next() fatal error: %v", err)
			}
			errs = append(errs, err)
			continue
		}
		recs = append(recs, rec)
	}
}

func TestReader_Sample(t *testing.T) {
	r := NewReader(strings.NewReader(sampleALE), WithSource("sample.ale"))
	recs, errs := collect(t, r)

	require.Empty(t, errs)
	require.Len(t, recs, 2)

	first := recs[0]
	assert.Equal(t, "sample.ale", first.Source)
	assert.Equal(t, 10, first.Line)
	assert.Equal(t, "123AB_456_take1", first.RawName)
	assert.Equal(t, [3]string{"1.0", "1.0", "1.0"}, first.Slope())
	assert.Equal(t, [3]string{"0.0", "0.0", "0.0"}, first.Offset())
	assert.Equal(t, [3]string{"1.0", "1.0", "1.0"}, first.Power())
	assert.Equal(t, "1.0", first.Saturation)

	second := recs[1]
	assert.Equal(t, [3]string{"0.9", "0.8", "0.7"}, second.Slope())
	assert.Equal(t, [3]string{"0.01", "0.02", "0.03"}, second.Offset())
	assert.Equal(t, [3]string{"1.1", "1.2", "1.3"}, second.Power())
	assert.Equal(t, "0.85", second.Saturation)

	cols, ok := r.Columns()
	require.True(t, ok)
	assert.Equal(t, ColumnMap{Name: 0, SOP: 2, SAT: 3}, cols)

	assert.Equal(t, []HeadingField{
		{Key: "FIELD_DELIM", Value: "TABS"},
		{Key: "VIDEO_FORMAT", Value: "1080"},
		{Key: "FPS", Value: "23.976"},
	}, r.Heading())
}

func TestReader_EndToEndRow(t *testing.T) {
	input := "Column\nName\tASC_SOP\tASC_SAT\nData\n" +
		"123AB_456\t(1.0 1.0 1.0)(0.0 0.0 0.0)(1.0 1.0 1.0)\t1.0\n"

	recs, errs := collect(t, NewReader(strings.NewReader(input)))
	require.Empty(t, errs)
	require.Len(t, recs, 1)
	assert.Equal(t, "123AB_456", recs[0].RawName)
	assert.Equal(t, []string{"1.0", "1.0", "1.0", "0.0", "0.0", "0.0", "1.0", "1.0", "1.0"}, recs[0].SOP)
	assert.Equal(t, "<input>", recs[0].Source)
}

func TestReader_CRLF(t *testing.T) {
	input := "Column\r\nName\tASC_SOP\tASC_SAT\r\nData\r\n" +
		"9XY_001\t(1.0 1.0 1.0)(0.0 0.0 0.0)(1.0 1.0 1.0)\t0.5\r\n"

	recs, errs := collect(t, NewReader(strings.NewReader(input)))
	require.Empty(t, errs)
	require.Len(t, recs, 1)
	assert.Equal(t, "0.5", recs[0].Saturation)
}

func TestReader_ByteOrderMark(t *testing.T) {
	input := "\ufeffColumn\nName\tASC_SOP\tASC_SAT\nData\n" +
		"9XY_001\t(1.0 1.0 1.0)(0.0 0.0 0.0)(1.0 1.0 1.0)\t1.0\n"

	recs, errs := collect(t, NewReader(strings.NewReader(input)))
	require.Empty(t, errs)
	require.Len(t, recs, 1)
}

func TestReader_ShortSOPIsRecoverable(t *testing.T) {
	input := "Column\nName\tASC_SOP\tASC_SAT\nData\n" +
		"100AA_001\t(1.0 1.0 1.0)(0.0 0.0 0.0)\t1.0\n" +
		"100AA_002\t(1.0 1.0 1.0)(0.0 0.0 0.0)(1.0 1.0 1.0)\t1.0\n"

	recs, errs := collect(t, NewReader(strings.NewReader(input), WithSource("short.ale")))
	require.Len(t, recs, 1)
	assert.Equal(t, "100AA_002", recs[0].RawName)

	require.Len(t, errs, 1)
	assert.True(t, errors.Is(errs[0], errors.ErrRowParse))
	assert.Contains(t, errs[0].Error(), "short.ale:4")
}

func TestReader_TextTracksLastLine(t *testing.T) {
	input := "Column\r\nName\tASC_SOP\tASC_SAT\r\nData\r\nbad row\r\n"

	rd := NewReader(strings.NewReader(input))
	_, err := rd.Next()
	require.Error(t, err)
	assert.Equal(t, "bad row", rd.Text())
	assert.Equal(t, 4, rd.Line())
}

func TestReader_MissingFieldIsRecoverable(t *testing.T) {
	input := "Column\nName\tASC_SOP\tASC_SAT\nData\n" +
		"100AA_001\t(1.0 1.0 1.0)(0.0 0.0 0.0)(1.0 1.0 1.0)\n"

	recs, errs := collect(t, NewReader(strings.NewReader(input)))
	assert.Empty(t, recs)
	require.Len(t, errs, 1)
	assert.True(t, errors.Is(errs[0], errors.ErrRowParse))
}

func TestReader_SchemaMissingColumn(t *testing.T) {
	input := "Column\nName\tASC_SOP\tStart\nData\nx\ty\tz\n"
	r := NewReader(strings.NewReader(input), WithSource("bad.ale"))

	_, err := r.Next()
	require.Error(t, err)
	require.True(t, errors.Is(err, errors.ErrSchema))
	assert.Contains(t, err.Error(), "ASC_SAT")

	// Fatal errors are sticky
	_, again := r.Next()
	assert.Equal(t, err, again)
}

func TestReader_ColumnAtEOF(t *testing.T) {
	r := NewReader(strings.NewReader("Column\n"))
	_, err := r.Next()
	require.True(t, errors.Is(err, errors.ErrSchema))
}

func TestReader_DataWithoutColumn(t *testing.T) {
	r := NewReader(strings.NewReader("Data\n123AB_456\t(1.0)\t1.0\n"))
	_, err := r.Next()
	require.True(t, errors.Is(err, errors.ErrSchema))
}

func TestReader_LatestColumnBlockWins(t *testing.T) {
	input := "Column\nName\tASC_SOP\tASC_SAT\nData\n" +
		"1AA_1\t(1.0 1.0 1.0)(0.0 0.0 0.0)(1.0 1.0 1.0)\t1.0\n" +
		"Column\nASC_SAT\tASC_SOP\tName\nData\n" +
		"0.5\t(2.0 2.0 2.0)(0.1 0.1 0.1)(1.5 1.5 1.5)\t2BB_2\n"

	recs, errs := collect(t, NewReader(strings.NewReader(input)))
	require.Empty(t, errs)
	require.Len(t, recs, 2)
	assert.Equal(t, "1AA_1", recs[0].RawName)
	assert.Equal(t, "2BB_2", recs[1].RawName)
	assert.Equal(t, "0.5", recs[1].Saturation)
	assert.Equal(t, [3]string{"2.0", "2.0", "2.0"}, recs[1].Slope())
}

func TestReader_KeywordNamedRowsStayData(t *testing.T) {
	sop := "\t(1.0 1.0 1.0)(0.0 0.0 0.0)(1.0 1.0 1.0)\t1.0\n"
	input := "Column\nName\tASC_SOP\tASC_SAT\nData\n" +
		"Column" + sop +
		"Data" + sop +
		"Heading" + sop +
		"1AA_1" + sop

	recs, errs := collect(t, NewReader(strings.NewReader(input)))
	require.Empty(t, errs)
	require.Len(t, recs, 4)
	for i, want := range []string{"Column", "Data", "Heading", "1AA_1"} {
		assert.Equal(t, want, recs[i].RawName)
		assert.Equal(t, 4+i, recs[i].Line)
	}
}

func TestReader_EmptyInput(t *testing.T) {
	r := NewReader(strings.NewReader(""))
	_, err := r.Next()
	assert.Equal(t, io.EOF, err)
}

func TestReader_LineTooLong(t *testing.T) {
	input := "Column\nName\tASC_SOP\tASC_SAT\nData\n" + strings.Repeat("x", 200) + "\n"
	r := NewReader(strings.NewReader(input), WithMaxLineBytes(64))

	_, err := r.Next()
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInputRead))
}

func TestResolveColumns(t *testing.T) {
	tests := []struct {
		name        string
		header      []string
		wantCols    ColumnMap
		wantMissing []string
	}{
		{
			name:     "in order",
			header:   []string{"Name", "ASC_SOP", "ASC_SAT"},
			wantCols: ColumnMap{Name: 0, SOP: 1, SAT: 2},
		},
		{
			name:     "shuffled with extras",
			header:   []string{"Start", "ASC_SAT", "Tape", "Name", "ASC_SOP"},
			wantCols: ColumnMap{Name: 3, SOP: 4, SAT: 1},
		},
		{
			name:     "first duplicate wins",
			header:   []string{"Name", "Name", "ASC_SOP", "ASC_SAT"},
			wantCols: ColumnMap{Name: 0, SOP: 2, SAT: 3},
		},
		{
			name:        "exact match only",
			header:      []string{"name", "ASC_SOP ", "ASC_SAT"},
			wantCols:    ColumnMap{Name: -1, SOP: -1, SAT: 2},
			wantMissing: []string{"Name", "ASC_SOP"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cols, missing := ResolveColumns(tt.header)
			assert.Equal(t, tt.wantCols, cols)
			assert.Equal(t, tt.wantMissing, missing)
		})
	}
}

func TestParseSOP(t *testing.T) {
	tests := []struct {
		name    string
		field   string
		want    []string
		wantErr bool
	}{
		{
			name:  "parenthesised",
			field: "(1.0 1.0 1.0)(0.0 0.0 0.0)(1.0 1.0 1.0)",
			want:  []string{"1.0", "1.0", "1.0", "0.0", "0.0", "0.0", "1.0", "1.0", "1.0"},
		},
		{
			name:  "extra tokens ignored",
			field: "(1.1 1.2 1.3)(0.1 0.2 0.3)(0.9 0.8 0.7) 5.5",
			want:  []string{"1.1", "1.2", "1.3", "0.1", "0.2", "0.3", "0.9", "0.8", "0.7"},
		},
		{
			name:  "sign is not part of the token",
			field: "(1.0 1.0 1.0)(-0.02 0.0 0.0)(1.0 1.0 1.0)",
			want:  []string{"1.0", "1.0", "1.0", "0.02", "0.0", "0.0", "1.0", "1.0", "1.0"},
		},
		{
			name:    "integers do not count",
			field:   "(1 1 1)(0 0 0)(1 1 1)",
			wantErr: true,
		},
		{
			name:    "empty",
			field:   "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSOP(tt.field)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
