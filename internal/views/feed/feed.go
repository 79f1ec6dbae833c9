// Package feed provides the scrollable activity feed: one line per stream
// message plus monitor notices.
package feed

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/research-assistant/monitor/internal/theme"
)

const maxEntries = 500

// Entry kinds.
const (
	KindStage     = "stg"
	KindDone      = "done"
	KindIteration = "iter"
	KindHeartbeat = "hb"
	KindNetwork   = "net"
	KindWarn      = "warn"
	KindError     = "err"
)

// Entry is a single feed line.
type Entry struct {
	Time    time.Time
	Kind    string
	Message string
}

// Model holds feed state.
type Model struct {
	Entries []Entry
	Offset  int // scroll offset (from bottom)
}

// New creates an empty feed.
func New() Model {
	return Model{}
}

// Add appends an entry stamped with the current time.
func (m *Model) Add(kind, message string) {
	m.AddAt(time.Now(), kind, message)
}

// AddAt appends an entry and caps the buffer.
func (m *Model) AddAt(t time.Time, kind, message string) {
	m.Entries = append(m.Entries, Entry{Time: t, Kind: kind, Message: message})
	if len(m.Entries) > maxEntries {
		m.Entries = m.Entries[len(m.Entries)-maxEntries:]
	}
	// Reset scroll to bottom on new entry.
	m.Offset = 0
}

// ScrollUp moves the viewport up.
func (m *Model) ScrollUp(n int) {
	m.Offset += n
	max := len(m.Entries) - 1
	if max < 0 {
		max = 0
	}
	if m.Offset > max {
		m.Offset = max
	}
}

// ScrollDown moves the viewport down.
func (m *Model) ScrollDown(n int) {
	m.Offset -= n
	if m.Offset < 0 {
		m.Offset = 0
	}
}

func panelStyle(width int) lipgloss.Style {
	return lipgloss.NewStyle().
		Width(width).
		Padding(0, 1).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(theme.ColorBorder)
}

// View renders the feed in a panel of the given outer size.
func (m Model) View(width, height int) string {
	innerW := width - 4
	if innerW < 20 {
		innerW = 20
	}
	visibleLines := height - 4
	if visibleLines < 3 {
		visibleLines = 3
	}

	title := theme.StyleHeader.Render("Activity")

	if len(m.Entries) == 0 {
		body := theme.StyleDimmed.Render("  Waiting for the first event...")
		return panelStyle(innerW).Render(lipgloss.JoinVertical(lipgloss.Left, title, body))
	}

	// Build visible lines from bottom (minus offset).
	end := len(m.Entries) - m.Offset
	start := end - visibleLines
	if start < 0 {
		start = 0
	}
	if end < 0 {
		end = 0
	}

	var lines []string
	for i := start; i < end; i++ {
		e := m.Entries[i]
		tsStr := theme.StyleDimmed.Render(e.Time.Format("15:04:05"))
		kindStr := lipgloss.NewStyle().Foreground(KindColor(e.Kind)).Width(5).Render(e.Kind)
		msgStr := e.Message
		if len(msgStr) > innerW-16 && innerW > 20 {
			msgStr = msgStr[:innerW-19] + "..."
		}
		lines = append(lines, fmt.Sprintf("%s %s %s", tsStr, kindStr, msgStr))
	}

	body := strings.Join(lines, "\n")
	parts := []string{title, body}
	if m.Offset > 0 {
		parts = append(parts, theme.StyleDimmed.Render(fmt.Sprintf(" ↓ %d more", m.Offset)))
	}
	return panelStyle(innerW).Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}

// KindColor returns the color used for an entry kind.
func KindColor(kind string) lipgloss.Color {
	switch kind {
	case KindStage:
		return theme.ColorStage
	case KindDone:
		return theme.ColorCompleted
	case KindIteration:
		return theme.ColorIterate
	case KindHeartbeat:
		return theme.ColorHeartbeat
	case KindNetwork:
		return theme.ColorNetwork
	case KindWarn:
		return theme.ColorWarning
	case KindError:
		return theme.ColorDanger
	default:
		return theme.ColorDimmed
	}
}
