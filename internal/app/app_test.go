package app

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/research-assistant/monitor/internal/client"
	"github.com/research-assistant/monitor/internal/monitor"
	"github.com/research-assistant/monitor/internal/pipeline"
	"github.com/research-assistant/monitor/internal/views/feed"
	"github.com/research-assistant/monitor/internal/views/results"
	"github.com/research-assistant/monitor/internal/views/status"
)

type fakeSource struct {
	ch  chan monitor.Update
	acc *client.SessionResult
}

func newFakeSource() *fakeSource {
	return &fakeSource{ch: make(chan monitor.Update, 4), acc: &client.SessionResult{}}
}

func (f *fakeSource) SessionID() string                           { return "sess-1234abcd" }
func (f *fakeSource) Watch(context.Context) <-chan monitor.Update { return f.ch }
func (f *fakeSource) Accumulated() *client.SessionResult          { return f.acc.Clone() }

func step(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// diffs applies events to a fresh machine and returns one diff per event.
func diffs(events ...pipeline.Event) []pipeline.StateDiff {
	mach := pipeline.NewMachine()
	out := make([]pipeline.StateDiff, 0, len(events))
	for _, ev := range events {
		out = append(out, mach.Apply(ev))
	}
	return out
}

func event(tag, msg, data string) pipeline.Event {
	ev := pipeline.Event{Stage: pipeline.ParseStage(tag), Tag: tag, Message: msg}
	if data != "" {
		ev.Data = json.RawMessage(data)
	}
	return ev
}

func TestViewBeforeResize(t *testing.T) {
	m := New(newFakeSource(), Options{})
	if v := m.View(); v != "Initializing..." {
		t.Errorf("View() = %q, want Initializing...", v)
	}
}

func TestStartedWaitsForUpdates(t *testing.T) {
	src := newFakeSource()
	m := New(src, Options{Transport: "sse"})

	m, cmd := step(t, m, startedMsg{updates: src.ch})
	if cmd == nil {
		t.Fatal("started should wait for the first update")
	}
	if m.statusBar.StartedAt.IsZero() {
		t.Error("start time should be recorded")
	}

	src.ch <- monitor.Update{Fetching: true}
	if _, ok := cmd().(updateMsg); !ok {
		t.Error("command should deliver the pending update")
	}
	close(src.ch)
	if _, ok := waitForUpdate(src.ch)().(closedMsg); !ok {
		t.Error("closed channel should yield closedMsg")
	}
}

func TestDiffUpdatesViews(t *testing.T) {
	m := New(newFakeSource(), Options{})
	ds := diffs(event("planning", "Planning research...", ""))

	m, cmd := step(t, m, updateMsg{Diff: &ds[0]})
	if cmd == nil {
		t.Error("a diff should keep the update loop going")
	}
	if m.statusBar.Link != status.LinkStreaming {
		t.Errorf("Link = %v, want streaming", m.statusBar.Link)
	}
	if got := m.flow.Snapshot.Status(pipeline.RolePlanner); got != pipeline.StatusActive {
		t.Errorf("planner = %v, want active", got)
	}
	if n := len(m.feed.Entries); n != 1 {
		t.Fatalf("feed has %d entries, want 1", n)
	}
	if e := m.feed.Entries[0]; e.Kind != feed.KindStage || e.Message != "Planning research..." {
		t.Errorf("feed entry = %+v", e)
	}
}

func TestDataEventShowsPartialResult(t *testing.T) {
	src := newFakeSource()
	src.acc.Plan = &client.Plan{MainTopic: "Retrieval-augmented generation"}
	m := New(src, Options{})

	ds := diffs(
		event("planning", "Planning", ""),
		event("planning_done", "Plan ready", `{"main_topic":"Retrieval-augmented generation"}`),
	)
	for i := range ds {
		m, _ = step(t, m, updateMsg{Diff: &ds[i]})
	}
	if m.statusBar.Topic != "Retrieval-augmented generation" {
		t.Errorf("Topic = %q", m.statusBar.Topic)
	}
	if m.results.Result() == nil {
		t.Error("partial result should be shown")
	}
}

func TestPayloadErrorIsFlagged(t *testing.T) {
	m := New(newFakeSource(), Options{})
	ds := diffs(event("planning_done", "Plan ready", `{"main_topic":42}`))
	ds[0].PayloadErr = errors.New("bad main_topic")

	m, _ = step(t, m, updateMsg{Diff: &ds[0]})
	last := m.feed.Entries[len(m.feed.Entries)-1]
	if last.Kind != feed.KindWarn || !strings.Contains(last.Message, "bad main_topic") {
		t.Errorf("last entry = %+v", last)
	}
	if m.results.Result() != nil {
		t.Error("a payload error should not replace the shown result")
	}
}

func TestDegradedThenFetching(t *testing.T) {
	m := New(newFakeSource(), Options{})

	m, _ = step(t, m, updateMsg{Degraded: &monitor.StreamDisruptionError{SessionID: "s", Err: errors.New("EOF")}})
	if m.statusBar.Link != status.LinkDegraded {
		t.Errorf("Link = %v, want degraded", m.statusBar.Link)
	}
	m, _ = step(t, m, updateMsg{Fetching: true})
	if m.statusBar.Link != status.LinkFetching {
		t.Errorf("Link = %v, want fetching", m.statusBar.Link)
	}
	if n := len(m.feed.Entries); n != 2 {
		t.Errorf("feed has %d entries, want 2", n)
	}
}

func TestMalformedIsWarned(t *testing.T) {
	m := New(newFakeSource(), Options{})
	m, _ = step(t, m, updateMsg{Malformed: &pipeline.MalformedEventError{Reason: "not a JSON object"}})
	if e := m.feed.Entries[0]; e.Kind != feed.KindWarn {
		t.Errorf("kind = %s, want warn", e.Kind)
	}
	if m.statusBar.Link != status.LinkConnecting {
		t.Error("a malformed message should not change the link state")
	}
}

func TestFinalResult(t *testing.T) {
	m := New(newFakeSource(), Options{})
	res := &client.SessionResult{FinalReport: "Report", Plan: &client.Plan{MainTopic: "RAG"}}

	m, cmd := step(t, m, updateMsg{Final: true, Result: res, Disposition: monitor.DispositionCompleted})
	if !m.final || m.statusBar.Link != status.LinkDone {
		t.Errorf("final = %v, link = %v", m.final, m.statusBar.Link)
	}
	if m.results.Result() != res {
		t.Error("results view should show the fetched result")
	}
	if cmd == nil {
		t.Error("the counter animation should start")
	}
	if m.statusBar.EndedAt.IsZero() {
		t.Error("end time should be recorded")
	}
}

func TestFinalPipelineError(t *testing.T) {
	m := New(newFakeSource(), Options{})
	m, _ = step(t, m, tea.WindowSizeMsg{Width: 100, Height: 40})

	err := &monitor.PipelineError{SessionID: "s", Message: "LLM quota exceeded"}
	m, _ = step(t, m, updateMsg{Final: true, Err: err, Disposition: monitor.DispositionErrored})

	if m.statusBar.Link != status.LinkFailed {
		t.Errorf("Link = %v, want failed", m.statusBar.Link)
	}
	if !errors.Is(m.Err(), err) {
		t.Errorf("Err() = %v", m.Err())
	}
	last := m.feed.Entries[len(m.feed.Entries)-1]
	if last.Kind != feed.KindError || last.Message != "pipeline error: LLM quota exceeded" {
		t.Errorf("last entry = %+v", last)
	}
	if !strings.Contains(m.View(), "LLM quota exceeded") {
		t.Error("view should show the error")
	}
}

func TestKeys(t *testing.T) {
	m := New(newFakeSource(), Options{})
	m, _ = step(t, m, updateMsg{Final: true, Result: &client.SessionResult{
		Papers: client.Papers{"q": {{ArxivID: "2401.1", Title: "ColBERT"}}},
	}})

	m, _ = step(t, m, runes("3"))
	if m.results.Tab() != results.TabAnalysis {
		t.Errorf("tab = %s, want Analysis", m.results.Tab())
	}
	m, _ = step(t, m, tea.KeyMsg{Type: tea.KeyTab})
	if m.results.Tab() != results.TabCritic {
		t.Errorf("tab = %s, want Critic", m.results.Tab())
	}
	m, _ = step(t, m, tea.KeyMsg{Type: tea.KeyShiftTab})
	if m.results.Tab() != results.TabAnalysis {
		t.Errorf("tab = %s, want Analysis", m.results.Tab())
	}

	m, _ = step(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.overlay != OverlayNone {
		t.Error("enter outside the papers tab should do nothing")
	}
	m, _ = step(t, m, runes("5"))
	m, _ = step(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.overlay != OverlayDetail || m.detail.Paper == nil || m.detail.Paper.ArxivID != "2401.1" {
		t.Fatalf("overlay = %v, detail = %+v", m.overlay, m.detail.Paper)
	}
	m, _ = step(t, m, runes("3"))
	if m.results.Tab() != results.TabPapers {
		t.Error("keys other than esc should not leak through an overlay")
	}
	m, _ = step(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	if m.overlay != OverlayNone {
		t.Error("esc should close the overlay")
	}

	m, _ = step(t, m, runes("l"))
	if m.overlay != OverlayLog {
		t.Error("l should open the activity log")
	}
	m, _ = step(t, m, runes("l"))
	if m.overlay != OverlayNone {
		t.Error("l should close the activity log")
	}

	_, cmd := step(t, m, runes("q"))
	if cmd == nil {
		t.Fatal("q should quit")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q should return tea.Quit")
	}
	if m.ctx.Err() == nil {
		t.Error("quitting should cancel the monitor")
	}
}

func TestFeedKind(t *testing.T) {
	tests := []struct {
		stage pipeline.Stage
		want  string
	}{
		{pipeline.StagePlanning, feed.KindStage},
		{pipeline.StageRetrievingDone, feed.KindDone},
		{pipeline.StageIterationStart, feed.KindIteration},
		{pipeline.StageIterationAccepted, feed.KindIteration},
		{pipeline.StageHeartbeat, feed.KindHeartbeat},
		{pipeline.StageComplete, feed.KindDone},
		{pipeline.StageError, feed.KindError},
		{pipeline.StageUnknown, feed.KindStage},
	}
	for _, tt := range tests {
		if got := feedKind(tt.stage); got != tt.want {
			t.Errorf("feedKind(%s) = %s, want %s", tt.stage, got, tt.want)
		}
	}
}
