package logger

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestLogger initializes the logger with a temp file and restores the
// slog default afterwards.
func setupTestLogger(t *testing.T) string {
	t.Helper()
	prev := slog.Default()
	Reset()
	t.Cleanup(func() {
		Reset()
		slog.SetDefault(prev)
	})

	logPath := filepath.Join(t.TempDir(), "logs", "monitor.log")
	require.NoError(t, Init(logPath))
	return logPath
}

func TestInitWritesStructuredLines(t *testing.T) {
	logPath := setupTestLogger(t)

	Get().Info("stream opened", "transport", "sse", "attempt", 2)

	content, err := os.ReadFile(logPath)
	require.NoError(t, err)
	s := string(content)
	assert.Contains(t, s, "logger initialized")
	assert.Contains(t, s, `msg="stream opened"`)
	assert.Contains(t, s, "transport=sse")
	assert.Contains(t, s, "attempt=2")
}

func TestInitSetsDefault(t *testing.T) {
	logPath := setupTestLogger(t)
	slog.Info("via default")

	content, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(content), "via default")
}

func TestSetDebug(t *testing.T) {
	logPath := setupTestLogger(t)

	Get().Debug("hidden")
	SetDebug(true)
	Get().Debug("shown")
	SetDebug(false)
	Get().Debug("hidden again")

	content, err := os.ReadFile(logPath)
	require.NoError(t, err)
	s := string(content)
	assert.NotContains(t, s, "hidden")
	assert.Contains(t, s, "shown")
}

func TestWithSession(t *testing.T) {
	logPath := setupTestLogger(t)

	WithSession("abc123").Info("first")
	WithSession("abc123").Info("second")

	content, err := os.ReadFile(logPath)
	require.NoError(t, err)
	var ids []string
	for _, line := range strings.Split(string(content), "\n") {
		if !strings.Contains(line, "session_id=abc123") {
			continue
		}
		_, rest, ok := strings.Cut(line, "monitor_id=")
		require.True(t, ok, line)
		ids = append(ids, strings.Fields(rest)[0])
	}
	require.Len(t, ids, 2)
	assert.NotEqual(t, ids[0], ids[1])
}

func TestInitWriter(t *testing.T) {
	prev := slog.Default()
	Reset()
	t.Cleanup(func() {
		Reset()
		slog.SetDefault(prev)
	})

	var buf bytes.Buffer
	InitWriter(&buf)
	WithComponent("cli").Warn("careful")
	assert.Contains(t, buf.String(), "component=cli")
	assert.Contains(t, buf.String(), "level=WARN")
}

func TestInitBadPath(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0644))
	err := Init(filepath.Join(blocker, "sub", "monitor.log"))
	assert.Error(t, err)
}
