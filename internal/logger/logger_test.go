package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_TextDefaults(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(Options{Output: &buf})
	require.NoError(t, err)

	ctx := context.Background()
	log.Debug(ctx, "hidden")
	log.Info(ctx, "converted", String("file", "a.ale"), Int("rows", 3))

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "msg=converted")
	assert.Contains(t, out, "file=a.ale")
	assert.Contains(t, out, "rows=3")
	assert.NotContains(t, out, "source=")
}

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(Options{Format: "json", Level: "warn", Output: &buf})
	require.NoError(t, err)

	log.Info(context.Background(), "skipped")
	log.Warn(context.Background(), "naming convention", Error(fmt.Errorf("no match")))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "WARN", entry["level"])
	assert.Equal(t, "naming convention", entry["msg"])
	assert.Equal(t, "no match", entry["error"])
}

func TestNew_DebugAddsSource(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(Options{Level: "debug", Output: &buf})
	require.NoError(t, err)

	log.Debug(context.Background(), "row")
	assert.Contains(t, buf.String(), "source=logger/logger_test.go:")
}

func TestNew_InvalidOptions(t *testing.T) {
	_, err := New(Options{Level: "loud"})
	assert.Error(t, err)

	_, err = New(Options{Format: "xml"})
	assert.Error(t, err)
}

func TestWithAndNamed(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(Options{Output: &buf})
	require.NoError(t, err)

	log.With(String("run_id", "01ABC")).Named("convert").Info(context.Background(), "done", Int("entries", 2))

	out := buf.String()
	assert.Contains(t, out, "run_id=01ABC")
	assert.Contains(t, out, "convert.entries=2")
}

func TestNop(t *testing.T) {
	log := Nop()
	require.NotNil(t, log)
	log.Error(context.Background(), "discarded")
	log.Named("x").With(String("k", "v")).Warn(context.Background(), "discarded")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"", slog.LevelInfo, false},
		{"INFO", slog.LevelInfo, false},
		{" warning ", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"trace", slog.LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
