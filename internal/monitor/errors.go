package monitor

import (
	"errors"
	"fmt"
)

// ErrAlreadyStarted is returned by Run when the monitor has already run.
var ErrAlreadyStarted = errors.New("monitor: already started")

// ErrMissingDeps is returned by Run when Deps lacks a dialer or fetcher.
var ErrMissingDeps = errors.New("monitor: dialer and fetcher are required")

// ErrNoResultSource is returned by Fetch on a fetcher without a Source.
var ErrNoResultSource = errors.New("monitor: fetcher has no result source")

var (
	errEmptyResult = errors.New("empty result")
	errStreamEnded = errors.New("stream closed before a terminal event")
)

// PipelineError is the server's explicit error event. It is fatal to the
// session and carries the event message verbatim.
type PipelineError struct {
	SessionID string
	Message   string
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("session %s: pipeline error: %s", e.SessionID, e.Message)
}

// StreamDisruptionError reports that the live connection failed or closed
// before a terminal event. It is not fatal; the monitor falls back to
// fetching the result.
type StreamDisruptionError struct {
	SessionID string
	Err       error
}

func (e *StreamDisruptionError) Error() string {
	return fmt.Sprintf("session %s: stream disrupted: %v", e.SessionID, e.Err)
}

func (e *StreamDisruptionError) Unwrap() error { return e.Err }

// ResultUnavailableError is returned when every fetch attempt failed. It
// means the result could not be determined, not that the pipeline failed.
type ResultUnavailableError struct {
	SessionID string
	Attempts  int
	Last      error
}

func (e *ResultUnavailableError) Error() string {
	return fmt.Sprintf("session %s: result unavailable after %d attempts: %v", e.SessionID, e.Attempts, e.Last)
}

func (e *ResultUnavailableError) Unwrap() error { return e.Last }
