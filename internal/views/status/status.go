package status

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/research-assistant/monitor/internal/theme"
)

// Link is the state of the connection to the server.
type Link int

const (
	LinkConnecting Link = iota
	LinkStreaming
	LinkDegraded // stream lost, waiting to fetch
	LinkFetching
	LinkDone
	LinkFailed
)

func (l Link) String() string {
	switch l {
	case LinkStreaming:
		return "Streaming"
	case LinkDegraded:
		return "Stream lost"
	case LinkFetching:
		return "Fetching result"
	case LinkDone:
		return "Complete"
	case LinkFailed:
		return "Failed"
	}
	return "Connecting..."
}

// Model holds the status bar state.
type Model struct {
	SessionID string
	Topic     string
	Link      Link
	Iteration int
	Transport string
	StartedAt time.Time
	EndedAt   time.Time
	Width     int
}

// New creates a status bar model.
func New(sessionID, transport string) Model {
	return Model{SessionID: sessionID, Transport: transport}
}

// Elapsed returns the run time so far, frozen once the session ended.
func (m Model) Elapsed(now time.Time) time.Duration {
	if m.StartedAt.IsZero() {
		return 0
	}
	end := now
	if !m.EndedAt.IsZero() {
		end = m.EndedAt
	}
	return end.Sub(m.StartedAt).Truncate(time.Second)
}

// View renders the status bar.
func (m Model) View() string {
	width := m.Width
	if width < 40 {
		width = 40
	}

	var color lipgloss.Color
	glyph := "●"
	switch m.Link {
	case LinkStreaming, LinkDone:
		color = theme.ColorHealthy
	case LinkDegraded, LinkFetching:
		color = theme.ColorWarning
	case LinkFailed:
		color = theme.ColorDanger
	default:
		color = theme.ColorDimmed
		glyph = "○"
	}
	linkStr := lipgloss.NewStyle().Foreground(color).Render(glyph + " " + m.Link.String())

	id := m.SessionID
	if len(id) > 8 {
		id = id[:8]
	}
	sep := lipgloss.NewStyle().Foreground(theme.ColorBorder).Render(" | ")
	content := linkStr + sep + theme.StyleHeader.Render(id)
	if m.Topic != "" {
		topic := m.Topic
		if len(topic) > 40 {
			topic = topic[:39] + "…"
		}
		content += sep + topic
	}
	if m.Iteration > 0 {
		content += sep + lipgloss.NewStyle().Foreground(theme.ColorIterate).
			Render(fmt.Sprintf("iteration %d", m.Iteration))
	}
	if m.Transport != "" {
		content += sep + theme.StyleDimmed.Render(m.Transport)
	}
	if !m.StartedAt.IsZero() {
		content += sep + theme.StyleDimmed.Render(m.Elapsed(time.Now()).String())
	}

	return lipgloss.NewStyle().
		Width(width).
		Padding(0, 1).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorBorder).
		Render(content)
}
