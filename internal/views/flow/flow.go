// Package flow renders the role cards, their connectors and the
// iteration badges for one session.
package flow

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/research-assistant/monitor/internal/pipeline"
	"github.com/research-assistant/monitor/internal/theme"
)

const cardWidth = 11

// Model holds the latest machine snapshot.
type Model struct {
	Width    int
	Snapshot pipeline.Snapshot
}

// New creates a pipeline view with every role waiting.
func New() Model {
	return Model{}
}

// View renders the role row, a progress bar and the iteration badges.
func (m Model) View() string {
	width := m.Width
	if width < 40 {
		width = 40
	}

	sections := []string{
		m.renderRoles(),
		m.renderProgress(width),
		m.renderIterations(),
	}
	return lipgloss.NewStyle().
		Width(width).
		Padding(0, 1).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(theme.ColorBorder).
		Render(lipgloss.JoinVertical(lipgloss.Left, sections...))
}

func (m Model) renderRoles() string {
	var cells []string
	for i, r := range pipeline.Roles {
		if i > 0 {
			cells = append(cells, renderConnector(m.Snapshot.Connectors[r]))
		}
		cells = append(cells, renderCard(r, m.Snapshot.Status(r)))
	}
	return lipgloss.JoinHorizontal(lipgloss.Center, cells...)
}

func renderCard(r pipeline.Role, s pipeline.Status) string {
	status := s.String()
	border := theme.StatusColor(status)
	label := lipgloss.NewStyle().Bold(true).Foreground(theme.RoleColor(r.String())).
		Render(theme.RoleIcon(r.String()))
	state := lipgloss.NewStyle().Foreground(theme.StatusColor(status)).
		Render(theme.StatusGlyph(status) + " " + status)

	style := lipgloss.NewStyle().
		Width(cardWidth).
		Align(lipgloss.Center).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(border)
	if s == pipeline.StatusActive {
		style = style.BorderStyle(lipgloss.ThickBorder())
	}
	return style.Render(label + "\n" + state)
}

// renderConnector draws the arrow between two cards, lit once work has
// flowed through it in the current iteration.
func renderConnector(lit bool) string {
	color := theme.ColorBorder
	if lit {
		color = theme.ColorCompleted
	}
	return lipgloss.NewStyle().Foreground(color).Render("──▶")
}

// renderProgress shows how many roles completed in this iteration.
func (m Model) renderProgress(width int) string {
	done := 0
	for _, r := range pipeline.Roles {
		if m.Snapshot.Status(r) == pipeline.StatusCompleted {
			done++
		}
	}
	barWidth := width - 20
	if barWidth < 10 {
		barWidth = 10
	}
	pct := float64(done) / float64(len(pipeline.Roles))
	return renderBar(pct, barWidth) + theme.StyleDimmed.Render(fmt.Sprintf(" %d/%d roles", done, len(pipeline.Roles)))
}

func renderBar(pct float64, width int) string {
	filled := max(0, min(int(pct*float64(width)), width))
	empty := width - filled
	bar := lipgloss.NewStyle().Foreground(theme.ColorCompleted).Render(strings.Repeat("█", filled))
	return bar + lipgloss.NewStyle().Foreground(theme.ColorBorder).Render(strings.Repeat("░", empty))
}

func (m Model) renderIterations() string {
	if len(m.Snapshot.Iterations) == 0 {
		return theme.StyleDimmed.Render("Iterations: none yet")
	}
	badges := make([]string, 0, len(m.Snapshot.Iterations))
	for _, it := range m.Snapshot.Iterations {
		badges = append(badges, Badge(it))
	}
	return theme.StyleDimmed.Render("Iterations: ") + strings.Join(badges, " ")
}

// Badge renders one iteration record, with a tick once it was accepted.
func Badge(it pipeline.IterationRecord) string {
	text := fmt.Sprintf("#%d", it.Index)
	color := theme.ColorIterate
	if it.Accepted {
		text += " ✓"
		color = theme.ColorCompleted
	}
	return lipgloss.NewStyle().Foreground(color).Render("[" + text + "]")
}
