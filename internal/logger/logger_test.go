package logger

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

func TestNew_DefaultLogger(t *testing.T) {
	cfg := NewDefaultFileLogConfig()
	_, err := New(cfg)
	require.NoError(t, err)
}

func TestLoggerBuilder_JSONOutput(t *testing.T) {
	var buf bytes.Buffer
	l, err := NewLoggerBuilder().
		WithConfig(FileLogConfig{LogLevel: "debug", LogFormat: "json"}).
		WithConsoleOutput(&buf).
		Build()
	require.NoError(t, err)

	l.GetZerolog().Debug().Str("op", "fetch").Msg("hello")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "debug", entry["level"])
	assert.Equal(t, "fetch", entry["op"])
	assert.Equal(t, "hello", entry["message"])
	assert.Contains(t, entry, "time")
}

func TestLoggerBuilder_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	l, err := NewLoggerBuilder().
		WithConfig(FileLogConfig{LogLevel: "warn", LogFormat: "json"}).
		WithConsoleOutput(&buf).
		Build()
	require.NoError(t, err)
	defer zerolog.SetGlobalLevel(zerolog.TraceLevel)

	l.GetZerolog().Info().Msg("dropped")
	assert.Zero(t, buf.Len())

	l.GetZerolog().Warn().Msg("kept")
	assert.Contains(t, buf.String(), "kept")
}

func TestLoggerBuilder_InvalidLevelFallsBack(t *testing.T) {
	var buf bytes.Buffer
	l, err := NewLoggerBuilder().
		WithConfig(FileLogConfig{LogLevel: "chatty", LogFormat: "json"}).
		WithConsoleOutput(&buf).
		Build()
	require.NoError(t, err)

	assert.Equal(t, zerolog.InfoLevel, l.Config().Level)
	assert.Contains(t, buf.String(), "Invalid log configuration value")
}

func TestLoggerBuilder_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "ratekeeper.log")

	l, err := NewLoggerBuilder().
		WithConfig(FileLogConfig{LogFormat: "json", LogFile: path}).
		WithConsoleOutput(nil).
		Build()
	require.NoError(t, err)
	assert.False(t, l.Config().EnableConsole)

	l.GetZerolog().Info().Msg("to file")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "to file")
}

func TestLoggerBuilder_NoWriters(t *testing.T) {
	_, err := NewLoggerBuilder().WithConsoleOutput(nil).Build()
	assert.Error(t, err)
}

func TestConfigConverter_Defaults(t *testing.T) {
	cfg, err := NewConfigConverter().ConvertConfig(FileLogConfig{LogFormat: "text"})
	require.NoError(t, err)
	assert.Equal(t, FormatText, cfg.Format)
	assert.Equal(t, zerolog.InfoLevel, cfg.Level)
	assert.Equal(t, DefaultMaxLogSizeMB, cfg.MaxSizeMB)
	assert.Equal(t, DefaultMaxLogBackups, cfg.MaxBackups)
	assert.False(t, cfg.EnableFile)
}

func TestLogFormat_String(t *testing.T) {
	assert.Equal(t, "json", FormatJSON.String())
	assert.Equal(t, "console", FormatConsole.String())
	assert.Equal(t, "text", FormatText.String())
	assert.Equal(t, "console", NewLogFormatParser().ParseFormat("unknown").String())
}
