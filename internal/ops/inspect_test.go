package ops

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpungsan/ale2ccc/internal/errors"
)

func TestInspect_ALE(t *testing.T) {
	dir := t.TempDir()
	in := writeALE(t, dir, "day.ale",
		row("9XY_001_a", unitySOP, "1.0"),
		row("9XY_001_b", "(1.1 1.2 1.3)(0.01 0.02 0.03)(0.9 1.0 1.1)", "0.85"),
		row("slate", unitySOP, "1.0"),
		"broken",
	)

	out, err := Inspect(context.Background(), Deps{}, InspectInput{Path: in})
	require.NoError(t, err)

	assert.Equal(t, KindALE, out.Kind)
	assert.Equal(t, "24", out.Heading["FPS"])
	require.NotNil(t, out.Columns)
	assert.Equal(t, InspectColumns{Name: 0, SOP: 2, SAT: 3}, *out.Columns)
	assert.Equal(t, 2, out.Entries)
	assert.Equal(t, 2, out.Skipped)
	assert.Equal(t, 1, out.Renamed)

	require.Len(t, out.Rows, 4)
	assert.Equal(t, InspectRow{
		Line:       9,
		RawName:    "9XY_001_a",
		ID:         "9XY_001",
		Slope:      "1.0 1.0 1.0",
		Offset:     "0.0 0.0 0.0",
		Power:      "1.0 1.0 1.0",
		Saturation: "1.0",
		Outcome:    OutcomeOK,
	}, out.Rows[0])
	assert.Equal(t, "9XY_001_v1", out.Rows[1].ID)
	assert.Equal(t, OutcomeRenamed, out.Rows[1].Outcome)
	assert.Equal(t, "0.01 0.02 0.03", out.Rows[1].Offset)
	assert.Equal(t, string(errors.ErrNamingConvention), out.Rows[2].Outcome)
	assert.Empty(t, out.Rows[2].ID)
	assert.Equal(t, string(errors.ErrRowParse), out.Rows[3].Outcome)
	assert.Equal(t, 12, out.Rows[3].Line)

	// Inspect never writes
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestInspect_CCC(t *testing.T) {
	dir := t.TempDir()
	in := writeALE(t, dir, "day.ale", row("20B_200", unitySOP, "0.9"), row("10A_100", unitySOP, "1.0"))
	ccc := filepath.Join(dir, "day.ccc")
	_, err := Convert(context.Background(), Deps{}, ConvertInput{Inputs: []string{in}, Output: ccc})
	require.NoError(t, err)

	out, err := Inspect(context.Background(), Deps{}, InspectInput{Path: ccc})
	require.NoError(t, err)

	assert.Equal(t, KindCCC, out.Kind)
	assert.Equal(t, 2, out.Entries)
	require.Len(t, out.Rows, 2)
	assert.Equal(t, "10A_100", out.Rows[0].ID)
	assert.Equal(t, "0.9", out.Rows[1].Saturation)
	assert.Nil(t, out.Columns)
}

func TestInspect_SniffsUnknownExtension(t *testing.T) {
	dir := t.TempDir()
	in := writeALE(t, dir, "day.ale", row("10A_100", unitySOP, "1.0"))
	ccc := filepath.Join(dir, "grade.cdl")
	_, err := Convert(context.Background(), Deps{}, ConvertInput{Inputs: []string{in}, Output: ccc})
	require.NoError(t, err)

	out, err := Inspect(context.Background(), Deps{}, InspectInput{Path: ccc})
	require.NoError(t, err)
	assert.Equal(t, KindCCC, out.Kind)

	txt := filepath.Join(dir, "log.txt")
	data, err := os.ReadFile(in)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(txt, data, 0644))

	out, err = Inspect(context.Background(), Deps{}, InspectInput{Path: txt})
	require.NoError(t, err)
	assert.Equal(t, KindALE, out.Kind)
	assert.Equal(t, 1, out.Entries)
}

func TestInspect_NamingPatternOverride(t *testing.T) {
	dir := t.TempDir()
	in := writeALE(t, dir, "day.ale", row("A001C003_220101", unitySOP, "1.0"))

	out, err := Inspect(context.Background(), Deps{}, InspectInput{Path: in, NamingPattern: `^(A\d{3}C\d{3})`})
	require.NoError(t, err)
	assert.Equal(t, `^(A\d{3}C\d{3})`, out.NamingPattern)
	assert.Equal(t, "A001C003", out.Rows[0].ID)
}

func TestInspect_Errors(t *testing.T) {
	dir := t.TempDir()
	noCols := filepath.Join(dir, "nocols.ale")
	require.NoError(t, os.WriteFile(noCols, []byte("Data\nx\n"), 0644))
	badCCC := filepath.Join(dir, "bad.ccc")
	require.NoError(t, os.WriteFile(badCCC, []byte("<ColorCorrectionCollection><ColorCorrection/></ColorCorrectionCollection>"), 0644))

	tests := []struct {
		name string
		path string
		code errors.ErrorCode
	}{
		{"empty path", " ", errors.ErrInvalidRequest},
		{"missing file", filepath.Join(dir, "nope.ale"), errors.ErrInputRead},
		{"directory", dir, errors.ErrInputRead},
		{"schema", noCols, errors.ErrSchema},
		{"invalid ccc", badCCC, errors.ErrInputRead},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Inspect(context.Background(), Deps{}, InspectInput{Path: tc.path})
			assert.True(t, errors.Is(err, tc.code), "expected %s, got %v", tc.code, err)
		})
	}
}
