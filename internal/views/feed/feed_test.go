package feed

import (
	"strings"
	"testing"
	"time"
)

func TestAddEntry(t *testing.T) {
	m := New()
	m.Add(KindStage, "Planner is working")
	if len(m.Entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(m.Entries))
	}
	if m.Entries[0].Kind != KindStage {
		t.Errorf("expected kind %q, got %q", KindStage, m.Entries[0].Kind)
	}
}

func TestAddAtKeepsTime(t *testing.T) {
	m := New()
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	m.AddAt(ts, KindDone, "done")
	if !m.Entries[0].Time.Equal(ts) {
		t.Errorf("expected time %v, got %v", ts, m.Entries[0].Time)
	}
	if v := m.View(80, 10); !strings.Contains(v, "03:04:05") {
		t.Error("view should show the entry timestamp")
	}
}

func TestMaxEntries(t *testing.T) {
	m := New()
	for i := 0; i < maxEntries+50; i++ {
		m.Add(KindStage, "msg")
	}
	if len(m.Entries) != maxEntries {
		t.Errorf("expected %d entries, got %d", maxEntries, len(m.Entries))
	}
}

func TestScrollUpDown(t *testing.T) {
	m := New()
	for i := 0; i < 20; i++ {
		m.Add(KindStage, "msg")
	}
	if m.Offset != 0 {
		t.Fatal("expected offset 0 after adds")
	}

	m.ScrollUp(5)
	if m.Offset != 5 {
		t.Errorf("expected offset 5, got %d", m.Offset)
	}

	m.ScrollDown(3)
	if m.Offset != 2 {
		t.Errorf("expected offset 2, got %d", m.Offset)
	}

	m.ScrollDown(10) // shouldn't go below 0
	if m.Offset != 0 {
		t.Errorf("expected offset 0, got %d", m.Offset)
	}
}

func TestScrollUpCapped(t *testing.T) {
	m := New()
	for i := 0; i < 5; i++ {
		m.Add(KindStage, "msg")
	}
	m.ScrollUp(100)
	if m.Offset != 4 { // max is len-1
		t.Errorf("expected offset 4, got %d", m.Offset)
	}
}

func TestViewEmpty(t *testing.T) {
	m := New()
	v := m.View(80, 20)
	if !strings.Contains(v, "Waiting for the first event") {
		t.Error("empty view should show the waiting message")
	}
}

func TestViewWithEntries(t *testing.T) {
	m := New()
	m.Add(KindStage, "retrieving papers")
	m.Add(KindError, "stream dropped")
	v := m.View(80, 20)
	if !strings.Contains(v, "retrieving papers") {
		t.Error("view should contain 'retrieving papers'")
	}
	if !strings.Contains(v, "stream dropped") {
		t.Error("view should contain 'stream dropped'")
	}
}

func TestAddResetsScroll(t *testing.T) {
	m := New()
	for i := 0; i < 10; i++ {
		m.Add(KindStage, "msg")
	}
	m.ScrollUp(5)
	m.Add(KindStage, "new")
	if m.Offset != 0 {
		t.Error("adding entry should reset scroll to 0")
	}
}
