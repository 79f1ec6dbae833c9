package monitor

import (
	"context"
	"log/slog"
	"time"

	"github.com/research-assistant/monitor/internal/client"
)

const (
	DefaultMaxAttempts   = 10
	DefaultRetryDelay    = 3 * time.Second
	DefaultGraceInterval = 3 * time.Second
)

// ResultSource returns a session's authoritative result. Any error means
// "not yet available".
type ResultSource interface {
	GetResult(ctx context.Context, sessionID string) (*client.SessionResult, error)
}

// Fetcher retrieves a finished session's result with a bounded number of
// attempts and a fixed delay between them. Source is required. It holds no
// per-session state, so repeated calls are independent.
type Fetcher struct {
	Source      ResultSource
	MaxAttempts int
	RetryDelay  time.Duration
	Logger      *slog.Logger

	// wait is replaced in tests to observe delays.
	wait func(ctx context.Context, d time.Duration) error
}

// NewFetcher returns a fetcher with the default retry budget.
func NewFetcher(src ResultSource, logger *slog.Logger) *Fetcher {
	return &Fetcher{
		Source:      src,
		MaxAttempts: DefaultMaxAttempts,
		RetryDelay:  DefaultRetryDelay,
		Logger:      logger,
	}
}

// Fetch returns the first successful result. After MaxAttempts failures it
// returns *ResultUnavailableError. There is no delay after the last attempt.
func (f *Fetcher) Fetch(ctx context.Context, sessionID string) (*client.SessionResult, error) {
	if f.Source == nil {
		return nil, ErrNoResultSource
	}
	attempts := f.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultMaxAttempts
	}
	delay := f.RetryDelay
	if delay < 0 {
		delay = 0
	}
	log := f.logger().With("session_id", sessionID)
	wait := f.wait
	if wait == nil {
		wait = sleep
	}

	var last error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res, err := f.Source.GetResult(ctx, sessionID)
		if err == nil && res != nil {
			log.Debug("result fetched", "attempt", attempt)
			return res, nil
		}
		if err == nil {
			err = errEmptyResult
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		last = err
		log.Debug("result not yet available", "attempt", attempt, "max", attempts, "error", err)

		if attempt < attempts {
			if err := wait(ctx, delay); err != nil {
				return nil, err
			}
		}
	}

	log.Warn("giving up on result", "attempts", attempts, "error", last)
	return nil, &ResultUnavailableError{SessionID: sessionID, Attempts: attempts, Last: last}
}

func (f *Fetcher) logger() *slog.Logger {
	if f.Logger != nil {
		return f.Logger
	}
	return slog.Default()
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
