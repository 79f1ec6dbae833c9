// Package monitor follows one research session from its live event stream
// to its authoritative result.
package monitor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/research-assistant/monitor/internal/client"
	"github.com/research-assistant/monitor/internal/pipeline"
)

// Disposition is how a session ended from the monitor's point of view.
type Disposition int

const (
	DispositionPending   Disposition = iota
	DispositionCompleted             // authoritative result fetched
	DispositionErrored               // server sent an error event
	DispositionAbandoned             // fetch budget exhausted
	DispositionCancelled             // caller's context ended
)

func (d Disposition) String() string {
	switch d {
	case DispositionCompleted:
		return "completed"
	case DispositionErrored:
		return "errored"
	case DispositionAbandoned:
		return "abandoned"
	case DispositionCancelled:
		return "cancelled"
	}
	return "pending"
}

// Update is one entry of a session's timeline. Exactly one field group is
// set: Diff, Malformed, Degraded, Fetching, or Final.
type Update struct {
	SessionID string

	Diff      *pipeline.StateDiff
	Malformed *pipeline.MalformedEventError
	Degraded  *StreamDisruptionError
	Fetching  bool

	Final       bool
	Result      *client.SessionResult
	Err         error
	Disposition Disposition
}

// Observer receives updates on the monitor's goroutine, in order.
type Observer interface {
	Observe(Update)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Update)

func (f ObserverFunc) Observe(u Update) { f(u) }

// Deps are the monitor's collaborators. Both are required; Run returns
// ErrMissingDeps otherwise.
type Deps struct {
	Dialer  client.Dialer
	Fetcher *Fetcher
}

// Options tune a monitor. Zero values select defaults.
type Options struct {
	GraceInterval time.Duration
	Logger        *slog.Logger
	Clock         func() time.Time
}

// Monitor owns the derived state of a single session. Create one per
// session with New; Run may be called once.
type Monitor struct {
	id    string
	deps  Deps
	grace time.Duration
	log   *slog.Logger
	wait  func(ctx context.Context, d time.Duration) error

	started atomic.Bool

	machine *pipeline.Machine
	acc     *pipeline.Accumulator

	mu          sync.Mutex
	snapshot    pipeline.Snapshot
	accumulated *client.SessionResult
	result      *client.SessionResult
	disposition Disposition
}

// New returns a monitor for sessionID.
func New(sessionID string, deps Deps, opts Options) *Monitor {
	grace := opts.GraceInterval
	if grace <= 0 {
		grace = DefaultGraceInterval
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default().With("session_id", sessionID)
	}
	machine := pipeline.NewMachine()
	if opts.Clock != nil {
		machine.SetClock(opts.Clock)
	}
	return &Monitor{
		id:          sessionID,
		deps:        deps,
		grace:       grace,
		log:         log,
		wait:        sleep,
		machine:     machine,
		acc:         pipeline.NewAccumulator(),
		snapshot:    machine.Snapshot(),
		accumulated: &client.SessionResult{},
	}
}

// SessionID returns the monitored session id.
func (m *Monitor) SessionID() string {
	return m.id
}

// Run consumes the session's stream until it ends, then returns the
// authoritative result. The observer sees every update, ending with exactly
// one Final update. Only *PipelineError, *ResultUnavailableError and context
// errors are returned once the run starts; ErrMissingDeps and
// ErrAlreadyStarted are returned without running.
func (m *Monitor) Run(ctx context.Context, obs Observer) (*client.SessionResult, error) {
	if m.deps.Dialer == nil || m.deps.Fetcher == nil {
		return nil, ErrMissingDeps
	}
	if !m.started.CompareAndSwap(false, true) {
		return nil, ErrAlreadyStarted
	}
	if obs == nil {
		obs = ObserverFunc(func(Update) {})
	}

	res, err := m.run(ctx, obs)
	disp := dispositionOf(ctx, err)

	m.mu.Lock()
	m.result = res
	m.disposition = disp
	m.mu.Unlock()

	switch disp {
	case DispositionCompleted:
		m.log.Info("session finished", "disposition", disp)
	default:
		m.log.Warn("session finished", "disposition", disp, "error", err)
	}
	obs.Observe(Update{SessionID: m.id, Final: true, Result: res, Err: err, Disposition: disp})
	return res, err
}

// Watch runs the monitor in a goroutine and delivers its updates on the
// returned channel, which is closed after the Final update. If ctx ends and
// the receiver has stopped reading, remaining updates are dropped.
func (m *Monitor) Watch(ctx context.Context) <-chan Update {
	ch := make(chan Update, 16)
	go func() {
		defer close(ch)
		_, err := m.Run(ctx, ObserverFunc(func(u Update) {
			select {
			case ch <- u:
			case <-ctx.Done():
				// Still try to hand over the final update without blocking.
				if u.Final {
					select {
					case ch <- u:
					default:
					}
				}
			}
		}))
		if errors.Is(err, ErrAlreadyStarted) || errors.Is(err, ErrMissingDeps) {
			ch <- Update{SessionID: m.id, Final: true, Err: err}
		}
	}()
	return ch
}

// Result returns the authoritative result once Run has completed it.
func (m *Monitor) Result() *client.SessionResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.result
}

// Accumulated returns a copy of the result built from stream payloads.
func (m *Monitor) Accumulated() *client.SessionResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.accumulated.Clone()
}

// Snapshot returns the latest published machine state.
func (m *Monitor) Snapshot() pipeline.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshot
}

// Disposition returns how the session ended, or DispositionPending.
func (m *Monitor) Disposition() Disposition {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.disposition
}

func (m *Monitor) run(ctx context.Context, obs Observer) (*client.SessionResult, error) {
	stream, err := m.deps.Dialer.Dial(ctx, m.id)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return m.fallback(ctx, obs, err)
	}
	stop := context.AfterFunc(ctx, func() { stream.Close() })
	defer stop()
	defer stream.Close()

	last, err := m.consume(stream, obs)
	stream.Close()
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if err != nil {
		return m.fallback(ctx, obs, err)
	}

	if last.Stage == pipeline.StageError {
		return nil, &PipelineError{SessionID: m.id, Message: last.Message}
	}
	m.log.Debug("terminal event received", "stage", last.Tag)
	return m.fetch(ctx, obs)
}

// consume applies messages until a terminal event, returning it, or until
// the stream fails.
func (m *Monitor) consume(stream client.Stream, obs Observer) (pipeline.Event, error) {
	for {
		raw, err := stream.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = errStreamEnded
			}
			return pipeline.Event{}, err
		}

		ev, err := pipeline.Decode(raw)
		if err != nil {
			var me *pipeline.MalformedEventError
			if !errors.As(err, &me) {
				me = &pipeline.MalformedEventError{Raw: raw, Reason: "undecodable", Err: err}
			}
			m.log.Warn("discarding malformed event", "reason", me.Reason, "error", me.Err)
			obs.Observe(Update{SessionID: m.id, Malformed: me})
			continue
		}

		diff := m.machine.Apply(ev)
		if diff.Ignored {
			continue
		}
		if err := m.acc.Add(ev); err != nil {
			m.log.Warn("payload not merged", "stage", ev.Tag, "error", err)
			diff.PayloadErr = err
		}
		m.publish(diff.Snapshot, ev.HasData() && diff.PayloadErr == nil)
		if ev.Stage == pipeline.StageHeartbeat {
			m.log.Debug("heartbeat")
		}
		obs.Observe(Update{SessionID: m.id, Diff: &diff})

		if diff.Terminal {
			return ev, nil
		}
	}
}

func (m *Monitor) fallback(ctx context.Context, obs Observer, cause error) (*client.SessionResult, error) {
	de := &StreamDisruptionError{SessionID: m.id, Err: cause}
	m.log.Warn("stream lost, falling back to result fetch", "grace", m.grace, "error", cause)
	obs.Observe(Update{SessionID: m.id, Degraded: de})

	if err := m.wait(ctx, m.grace); err != nil {
		return nil, err
	}
	return m.fetch(ctx, obs)
}

func (m *Monitor) fetch(ctx context.Context, obs Observer) (*client.SessionResult, error) {
	obs.Observe(Update{SessionID: m.id, Fetching: true})
	return m.deps.Fetcher.Fetch(ctx, m.id)
}

func (m *Monitor) publish(snap pipeline.Snapshot, resultChanged bool) {
	var acc *client.SessionResult
	if resultChanged {
		acc = m.acc.Result()
	}
	m.mu.Lock()
	m.snapshot = snap
	if acc != nil {
		m.accumulated = acc
	}
	m.mu.Unlock()
}

// dispositionOf classifies how run ended. Cancellation is read from ctx,
// not from err: a fetch that timed out on its own wraps DeadlineExceeded
// but still means the result is unavailable.
func dispositionOf(ctx context.Context, err error) Disposition {
	var (
		pe *PipelineError
		ue *ResultUnavailableError
	)
	switch {
	case err == nil:
		return DispositionCompleted
	case errors.As(err, &pe):
		return DispositionErrored
	case errors.As(err, &ue):
		return DispositionAbandoned
	case ctx.Err() != nil:
		return DispositionCancelled
	}
	return DispositionAbandoned
}
