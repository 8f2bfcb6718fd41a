package logx

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()
	tests := []struct {
		raw  string
		want zerolog.Level
	}{
		{raw: "debug", want: zerolog.DebugLevel},
		{raw: " WARNING ", want: zerolog.WarnLevel},
		{raw: "critical", want: LevelCritical},
		{raw: "", want: zerolog.InfoLevel},
		{raw: "nonsense", want: zerolog.InfoLevel},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLevel(tt.raw, zerolog.InfoLevel), tt.raw)
	}
}

func TestCriticalDoesNotExit(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	log := NewWriter(&buf, "info").With(String("comp", "test"))

	log.Critical("credential missing", String("name", "PRACTICUM_TOKEN"), Err(errors.New("empty")))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, zerolog.LevelFatalValue, line["level"])
	assert.Equal(t, "credential missing", line["message"])
	assert.Equal(t, "test", line["comp"])
	assert.Equal(t, "PRACTICUM_TOKEN", line["name"])
	assert.NotEmpty(t, line["caller"])
}

func TestLevelFiltering(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	log := NewWriter(&buf, "warn")

	log.Info("hidden")
	assert.Zero(t, buf.Len())
	assert.False(t, log.Enabled(LevelInfo))
	assert.True(t, log.Enabled(LevelError))
}

func TestServiceFileSinkAndApply(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bot.log")
	svc, log := New(Config{Level: "info", File: FileConfig{Enabled: true, Path: path}})
	t.Cleanup(func() { _ = svc.Close() })

	log.Debug("not yet")
	svc.Apply(Config{Level: "debug", File: FileConfig{Enabled: true, Path: path}})
	log.Debug("now visible")

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(b), "not yet")
	assert.Contains(t, string(b), "now visible")
	assert.Equal(t, "debug", svc.Config().Level)
}

func TestZeroLoggerIsNop(t *testing.T) {
	t.Parallel()
	var l Logger
	assert.True(t, l.IsZero())
	assert.NotPanics(t, func() { l.Error("dropped") })
}
