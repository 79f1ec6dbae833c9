package pipeline

import "time"

const numRoles = 5

// IterationRecord is one refinement pass as seen on the stream.
type IterationRecord struct {
	Index    int // 1-based
	Accepted bool
}

// LogEntry is one line of the append-only activity log.
type LogEntry struct {
	Time    time.Time
	Stage   Stage
	Tag     string
	Message string
}

// RoleTransition records a role status change caused by one event.
type RoleTransition struct {
	Role Role
	From Status
	To   Status
}

// Snapshot is a value copy of the machine's structural state.
type Snapshot struct {
	Roles [numRoles]Status
	// Connectors[r] is lit when the link from r's predecessor into r has
	// carried work. Connectors[RolePlanner] is never lit.
	Connectors    [numRoles]bool
	Iteration     int
	Iterations    []IterationRecord
	LastStage     Stage
	Terminal      bool
	TerminalCause Stage
}

// Status returns the status of one role.
func (s Snapshot) Status(r Role) Status {
	if r < 0 || int(r) >= numRoles {
		return StatusWaiting
	}
	return s.Roles[r]
}

// Active lists the roles currently active, in pipeline order.
func (s Snapshot) Active() []Role {
	var out []Role
	for _, r := range Roles {
		if s.Roles[r] == StatusActive {
			out = append(out, r)
		}
	}
	return out
}

// CurrentIteration returns the open iteration record, if any.
func (s Snapshot) CurrentIteration() (IterationRecord, bool) {
	if len(s.Iterations) == 0 {
		return IterationRecord{}, false
	}
	return s.Iterations[len(s.Iterations)-1], true
}

// StateDiff describes what one Apply changed. It is a value; observers may
// keep it without synchronisation.
type StateDiff struct {
	Event   Event
	LogLine LogEntry

	Transitions []RoleTransition
	// ConnectorLit is set when a role completed after a predecessor; the
	// connector leading into ConnectorRole is lit.
	ConnectorLit    bool
	ConnectorRole   Role
	ConnectorsReset bool

	IterationStarted  int // index opened by this event, 0 if none
	IterationAccepted int // index accepted by this event, 0 if none

	Terminal bool // this event made the machine terminal
	// Ignored is set for events applied after the machine went terminal.
	Ignored bool
	// PayloadErr is set when the event's data could not be merged into the
	// result. The structural update above still happened.
	PayloadErr error

	Snapshot Snapshot
}

// Changed reports whether the diff altered structural state.
func (d StateDiff) Changed() bool {
	return len(d.Transitions) > 0 || d.ConnectorLit || d.ConnectorsReset ||
		d.IterationStarted > 0 || d.IterationAccepted > 0 || d.Terminal
}

// Machine is the stage state machine for one session. It is not safe for
// concurrent use.
type Machine struct {
	roles      [numRoles]Status
	connectors [numRoles]bool
	iteration  int
	iterations []IterationRecord
	lastStage  Stage
	terminal   bool
	cause      Stage
	log        []LogEntry

	now func() time.Time
}

// NewMachine returns a machine with every role waiting and no iteration open.
func NewMachine() *Machine {
	return &Machine{now: time.Now}
}

// SetClock replaces the clock used to stamp log entries.
func (m *Machine) SetClock(now func() time.Time) {
	m.now = now
}

// Apply folds one event into the state. Once terminal, further events are
// ignored and leave both state and log untouched.
func (m *Machine) Apply(ev Event) StateDiff {
	if m.terminal {
		return StateDiff{Event: ev, Ignored: true, Snapshot: m.Snapshot()}
	}

	d := StateDiff{Event: ev, LogLine: m.appendLog(ev)}

	if role, ok := RoleFor(ev.Stage); ok {
		if ev.Stage.IsDone() {
			m.complete(role, &d)
		} else {
			m.activate(role, &d)
		}
	}

	switch ev.Stage {
	case StageIterationStart:
		m.startIteration(&d)
	case StageIterationAccepted:
		m.acceptIteration(&d)
	}

	if ev.Stage != StageUnknown && ev.Stage != StageHeartbeat {
		m.lastStage = ev.Stage
	}
	if ev.Stage.IsTerminal() {
		m.terminal = true
		m.cause = ev.Stage
		d.Terminal = true
	}

	d.Snapshot = m.Snapshot()
	return d
}

// Terminal reports whether a terminal stage has been applied, and which.
func (m *Machine) Terminal() (Stage, bool) {
	return m.cause, m.terminal
}

// Iteration returns the current iteration counter (0 before the first).
func (m *Machine) Iteration() int {
	return m.iteration
}

// Snapshot returns a copy of the structural state.
func (m *Machine) Snapshot() Snapshot {
	iters := make([]IterationRecord, len(m.iterations))
	copy(iters, m.iterations)
	return Snapshot{
		Roles:         m.roles,
		Connectors:    m.connectors,
		Iteration:     m.iteration,
		Iterations:    iters,
		LastStage:     m.lastStage,
		Terminal:      m.terminal,
		TerminalCause: m.cause,
	}
}

// Log returns a copy of the activity log.
func (m *Machine) Log() []LogEntry {
	out := make([]LogEntry, len(m.log))
	copy(out, m.log)
	return out
}

func (m *Machine) appendLog(ev Event) LogEntry {
	entry := LogEntry{Time: m.now(), Stage: ev.Stage, Tag: ev.Tag, Message: ev.Message}
	m.log = append(m.log, entry)
	return entry
}

func (m *Machine) activate(r Role, d *StateDiff) {
	if m.roles[r] == StatusActive {
		return
	}
	d.Transitions = append(d.Transitions, RoleTransition{Role: r, From: m.roles[r], To: StatusActive})
	m.roles[r] = StatusActive
}

// complete only moves an active role; a done marker for a waiting or
// already completed role changes nothing.
func (m *Machine) complete(r Role, d *StateDiff) {
	if m.roles[r] != StatusActive {
		return
	}
	d.Transitions = append(d.Transitions, RoleTransition{Role: r, From: StatusActive, To: StatusCompleted})
	m.roles[r] = StatusCompleted
	if _, ok := r.Previous(); ok {
		m.connectors[r] = true
		d.ConnectorLit = true
		d.ConnectorRole = r
	}
}

func (m *Machine) startIteration(d *StateDiff) {
	m.iteration++
	m.iterations = append(m.iterations, IterationRecord{Index: m.iteration})
	d.IterationStarted = m.iteration

	for _, r := range Roles {
		if m.roles[r] != StatusWaiting {
			d.Transitions = append(d.Transitions, RoleTransition{Role: r, From: m.roles[r], To: StatusWaiting})
			m.roles[r] = StatusWaiting
		}
	}
	m.connectors = [numRoles]bool{}
	d.ConnectorsReset = true
}

func (m *Machine) acceptIteration(d *StateDiff) {
	if m.iteration == 0 {
		return
	}
	rec := &m.iterations[len(m.iterations)-1]
	if rec.Accepted {
		return
	}
	rec.Accepted = true
	d.IterationAccepted = rec.Index
}
