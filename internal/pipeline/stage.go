// Package pipeline turns a research session's event stream into derived
// state: which role is working, how many iterations have run, and the
// partial result assembled so far. Nothing in this package performs I/O
// or locking; callers apply events from a single goroutine.
package pipeline

import "strings"

// Stage is the closed set of stage tags the server emits.
type Stage int

const (
	StageUnknown Stage = iota
	StagePlanning
	StagePlanningDone
	StageRetrieving
	StageRetrievingDone
	StageAnalyzing
	StageAnalyzingDone
	StageCritiquing
	StageCritiquingDone
	StageRefining
	StageRefiningDone
	StageReporting
	StageReportingDone
	StageIterationStart
	StageIterationAccepted
	StageHeartbeat
	StageComplete
	StageError
	StageDone
)

var stageTags = map[Stage]string{
	StagePlanning:          "planning",
	StagePlanningDone:      "planning_done",
	StageRetrieving:        "retrieving",
	StageRetrievingDone:    "retrieving_done",
	StageAnalyzing:         "analyzing",
	StageAnalyzingDone:     "analyzing_done",
	StageCritiquing:        "critiquing",
	StageCritiquingDone:    "critiquing_done",
	StageRefining:          "refining",
	StageRefiningDone:      "refining_done",
	StageReporting:         "reporting",
	StageReportingDone:     "reporting_done",
	StageIterationStart:    "iteration_start",
	StageIterationAccepted: "iteration_accepted",
	StageHeartbeat:         "heartbeat",
	StageComplete:          "complete",
	StageError:             "error",
	StageDone:              "done",
}

var stagesByTag = func() map[string]Stage {
	m := make(map[string]Stage, len(stageTags))
	for s, tag := range stageTags {
		m[tag] = s
	}
	return m
}()

const doneSuffix = "_done"

// ParseStage maps a wire tag to a Stage. Unrecognised tags map to
// StageUnknown; they are not an error.
func ParseStage(tag string) Stage {
	return stagesByTag[tag]
}

// String returns the wire tag, or "unknown".
func (s Stage) String() string {
	if tag, ok := stageTags[s]; ok {
		return tag
	}
	return "unknown"
}

// IsDone reports whether the stage is the completion marker of a role's work.
func (s Stage) IsDone() bool {
	_, ok := stageRoles[s]
	return ok && strings.HasSuffix(s.String(), doneSuffix)
}

// IsTerminal reports whether the stage ends stream consumption.
func (s Stage) IsTerminal() bool {
	switch s {
	case StageDone, StageError, StageComplete:
		return true
	}
	return false
}

// Role is one of the five pipeline responsibilities.
type Role int

const (
	RolePlanner Role = iota
	RoleRetriever
	RoleAnalyzer
	RoleCritic
	RoleReporter
)

// Roles lists every role in pipeline order.
var Roles = []Role{RolePlanner, RoleRetriever, RoleAnalyzer, RoleCritic, RoleReporter}

func (r Role) String() string {
	switch r {
	case RolePlanner:
		return "planner"
	case RoleRetriever:
		return "retriever"
	case RoleAnalyzer:
		return "analyzer"
	case RoleCritic:
		return "critic"
	case RoleReporter:
		return "reporter"
	}
	return "unknown"
}

// Previous returns the role before r in pipeline order. The planner has none.
func (r Role) Previous() (Role, bool) {
	if r <= RolePlanner || r > RoleReporter {
		return 0, false
	}
	return r - 1, true
}

// Refinement is carried out by the planner, so refining maps to it too.
var stageRoles = map[Stage]Role{
	StagePlanning:       RolePlanner,
	StagePlanningDone:   RolePlanner,
	StageRefining:       RolePlanner,
	StageRefiningDone:   RolePlanner,
	StageRetrieving:     RoleRetriever,
	StageRetrievingDone: RoleRetriever,
	StageAnalyzing:      RoleAnalyzer,
	StageAnalyzingDone:  RoleAnalyzer,
	StageCritiquing:     RoleCritic,
	StageCritiquingDone: RoleCritic,
	StageReporting:      RoleReporter,
	StageReportingDone:  RoleReporter,
}

// RoleFor returns the role a stage belongs to, if any.
func RoleFor(s Stage) (Role, bool) {
	r, ok := stageRoles[s]
	return r, ok
}

// Status is a role's derived lifecycle state.
type Status int

const (
	StatusWaiting Status = iota
	StatusActive
	StatusCompleted
)

func (s Status) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusCompleted:
		return "completed"
	default:
		return "waiting"
	}
}
