// Package logger configures the process-wide slog logger. The TUI owns the
// terminal, so in that mode logs go to a file.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

var (
	root     *slog.Logger
	levelVar = new(slog.LevelVar)
	logFile  *os.File
	mu       sync.Mutex
	initDone bool
)

// DefaultLogPath returns the log file used when none is configured.
func DefaultLogPath() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "research-monitor", "monitor.log")
	}
	return filepath.Join(os.TempDir(), "research-monitor.log")
}

// SetDebug enables or disables debug level logging
func SetDebug(enabled bool) {
	if enabled {
		levelVar.Set(slog.LevelDebug)
	} else {
		levelVar.Set(slog.LevelInfo)
	}
}

// SetLevel sets the minimum level.
func SetLevel(l slog.Level) {
	levelVar.Set(l)
}

// Init sends logs to an append-only file and makes it the slog default.
// Calling it again after a successful call is a no-op.
func Init(path string) error {
	mu.Lock()
	defer mu.Unlock()

	if initDone {
		return nil
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory %s: %w", dir, err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file %s: %w", path, err)
	}
	logFile = f
	install(f)

	root.Info("logger initialized", "path", path)
	return nil
}

// InitWriter sends logs to w, typically stderr in console mode.
func InitWriter(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()

	if initDone {
		return
	}
	install(w)
}

// caller holds mu
func install(w io.Writer) {
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: levelVar})
	root = slog.New(handler)
	slog.SetDefault(root)
	initDone = true
}

// Get returns the root logger, or slog.Default before initialisation.
func Get() *slog.Logger {
	mu.Lock()
	defer mu.Unlock()

	if root == nil {
		return slog.Default()
	}
	return root
}

// WithSession returns a logger tagged with the research session id and a
// fresh monitor_id, so two monitors of the same session can be told apart.
func WithSession(sessionID string) *slog.Logger {
	return Get().With("session_id", sessionID, "monitor_id", uuid.NewString())
}

// WithComponent returns a logger tagged with a component name.
func WithComponent(component string) *slog.Logger {
	return Get().With("component", component)
}

// Close closes the log file
func Close() {
	mu.Lock()
	defer mu.Unlock()

	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
	root = nil
}

// Reset resets the logger state, allowing reinitialization.
// This is primarily for testing purposes.
func Reset() {
	mu.Lock()
	defer mu.Unlock()

	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
	initDone = false
	root = nil
	levelVar = new(slog.LevelVar)
}
