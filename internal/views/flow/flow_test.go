package flow

import (
	"strings"
	"testing"

	"github.com/research-assistant/monitor/internal/pipeline"
)

func machineAfter(tags ...string) pipeline.Snapshot {
	m := pipeline.NewMachine()
	for _, tag := range tags {
		m.Apply(pipeline.Event{Stage: pipeline.ParseStage(tag), Tag: tag, Message: tag})
	}
	return m.Snapshot()
}

func TestViewShowsRoleStates(t *testing.T) {
	v := Model{Width: 100, Snapshot: machineAfter("planning", "planning_done", "retrieving")}.View()

	for _, want := range []string{"PLAN", "FIND", "ANLZ", "CRIT", "RPRT", "completed", "active", "waiting"} {
		if !strings.Contains(v, want) {
			t.Errorf("view should contain %q", want)
		}
	}
	if !strings.Contains(v, "1/5 roles") {
		t.Error("progress should count one completed role")
	}
}

func TestViewIterations(t *testing.T) {
	v := New().View()
	if !strings.Contains(v, "none yet") {
		t.Error("empty iteration list should say none yet")
	}

	snap := machineAfter("iteration_start", "iteration_accepted", "iteration_start")
	v = Model{Width: 100, Snapshot: snap}.View()
	if !strings.Contains(v, "#1 ✓") {
		t.Error("accepted iteration should carry a tick")
	}
	if !strings.Contains(v, "[#2]") {
		t.Error("open iteration should have a plain badge")
	}
}

func TestBadge(t *testing.T) {
	tests := []struct {
		rec  pipeline.IterationRecord
		want string
	}{
		{pipeline.IterationRecord{Index: 3}, "#3"},
		{pipeline.IterationRecord{Index: 1, Accepted: true}, "#1 ✓"},
	}
	for _, tt := range tests {
		if got := Badge(tt.rec); !strings.Contains(got, tt.want) {
			t.Errorf("Badge(%+v) = %q, want it to contain %q", tt.rec, got, tt.want)
		}
	}
}
