package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"DEBUG", zerolog.DebugLevel},
		{"warn", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"off", zerolog.Disabled},
		{"", zerolog.InfoLevel},
		{"bogus", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestNewWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "info")
	logger.Info().Str("source", "/tmp/a").Msg("imported")
	logger.Debug().Msg("hidden")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &entry))
	assert.Equal(t, "imported", entry["message"])
	assert.Equal(t, "/tmp/a", entry["source"])
	assert.Equal(t, "info", entry["level"])
}

func TestAppendFileAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "intake.log")

	f, err := AppendFile(path)
	require.NoError(t, err)
	first := New(f, "info")
	first.Info().Msg("first")
	require.NoError(t, f.Close())

	f, err = AppendFile(path)
	require.NoError(t, err)
	second := New(f, "info")
	second.Info().Msg("second")
	require.NoError(t, f.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, bytes.Count(data, []byte("\n")))
}

func TestConsoleWriterIsReadable(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(ConsoleWriter(&buf))
	logger.Warn().Str("reason", "already_exists").Msg("import item")

	out := buf.String()
	assert.Contains(t, out, "import item")
	assert.Contains(t, out, "already_exists")
	assert.NotContains(t, out, "{")
}
