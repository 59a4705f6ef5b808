package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	testCases := []struct {
		input    string
		expected LogLevel
		wantErr  bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{"", LevelInfo, false},
		{"warning", LevelWarn, false},
		{"error", LevelError, false},
		{"loud", LevelInfo, true},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			level, err := ParseLevel(tc.input)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, level)
		})
	}
}

func TestLoggerJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&LoggerConfig{Level: LevelDebug, Format: "json", Output: &buf})

	logger.WithComponent("registry").
		With("run_id", "abc").
		Warn(context.Background(), errors.New("boom"), "Task failed", "task", "js")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "WARN", entry["level"])
	assert.Equal(t, "Task failed", entry["msg"])
	assert.Equal(t, "registry", entry["component"])
	assert.Equal(t, "boom", entry["error"])
	assert.Equal(t, "abc", entry["run_id"])
	assert.Equal(t, "js", entry["task"])
}

func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&LoggerConfig{Level: LevelWarn, Output: &buf})
	ctx := context.Background()

	logger.Debug(ctx, "hidden debug")
	logger.Info(ctx, "hidden info")
	logger.Error(ctx, nil, "visible error")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "visible error")
}

func TestMultiLogger(t *testing.T) {
	var a, b bytes.Buffer
	multi := NewMultiLogger(
		NewLogger(&LoggerConfig{Output: &a}),
		NewLogger(&LoggerConfig{Output: &b}),
	)

	multi.WithComponent("watcher").Info(context.Background(), "hello")

	assert.Contains(t, a.String(), "hello")
	assert.Contains(t, b.String(), "component=watcher")
}

func TestFileLogger(t *testing.T) {
	dir := t.TempDir()
	logger, err := NewFileLogger(DefaultConfig(), dir)
	require.NoError(t, err)

	logger.Info(context.Background(), "written to file")
	require.NoError(t, logger.Close())

	data, err := os.ReadFile(logger.Path())
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "written to file"))
}

func TestOperation(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&LoggerConfig{Output: &buf})

	op := StartOperation(logger, "css")
	op.End(context.Background())

	assert.Contains(t, buf.String(), "operation=css")
	assert.Contains(t, buf.String(), "duration_ms=")
}
