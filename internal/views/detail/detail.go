// Package detail renders the paper info flyout overlay.
package detail

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/research-assistant/monitor/internal/client"
	"github.com/research-assistant/monitor/internal/theme"
)

const (
	panelWidth = 72
	labelWidth = 12
)

var (
	stylePanel = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(theme.ColorBorder).
			Padding(0, 1)

	styleLabel = lipgloss.NewStyle().
			Foreground(theme.ColorDimmed).
			Width(labelWidth)

	styleValue = lipgloss.NewStyle().
			Foreground(theme.ColorBright)

	styleTitle = lipgloss.NewStyle().
			Bold(true).
			Foreground(theme.ColorBright)

	styleFooter = lipgloss.NewStyle().
			Foreground(theme.ColorDimmed)

	styleSectionHeader = lipgloss.NewStyle().
				Bold(true).
				Foreground(theme.ColorDimmed)
)

// Model holds the state for the detail overlay.
type Model struct {
	Paper *client.Paper
}

// New creates a detail model for the given paper.
func New(p client.Paper) Model {
	return Model{Paper: &p}
}

// View renders the detail panel. Returns an empty string if no paper is set.
func (m Model) View() string {
	if m.Paper == nil {
		return ""
	}
	return stylePanel.Width(panelWidth).Render(m.renderInner(m.Paper))
}

func (m Model) renderInner(p *client.Paper) string {
	var b strings.Builder

	b.WriteString(styleTitle.Width(panelWidth-4).Render(p.Title) + "\n")
	b.WriteString(strings.Repeat("─", panelWidth-4) + "\n")

	writeRow(&b, "arXiv", p.ArxivID)
	if len(p.Authors) > 0 {
		writeRow(&b, "Authors", truncate(authorList(p.Authors), panelWidth-labelWidth-6))
	}
	if p.Published != "" {
		writeRow(&b, "Published", dateOnly(p.Published))
	}
	if p.Updated != "" && p.Updated != p.Published {
		writeRow(&b, "Updated", dateOnly(p.Updated))
	}
	if p.PrimaryCategory != "" {
		writeRow(&b, "Category", p.PrimaryCategory)
	}
	if len(p.Categories) > 1 {
		writeRow(&b, "Also in", strings.Join(p.Categories, ", "))
	}
	if p.PDFURL != "" {
		writeRow(&b, "PDF", truncate(p.PDFURL, panelWidth-labelWidth-6))
	}

	if p.Abstract != "" {
		b.WriteString("\n")
		b.WriteString(styleSectionHeader.Render("Abstract") + "\n")
		b.WriteString(lipgloss.NewStyle().Width(panelWidth-4).Render(strings.Join(strings.Fields(p.Abstract), " ")) + "\n")
	}

	b.WriteString("\n")
	b.WriteString(styleFooter.Render("[esc] close"))
	return b.String()
}

func writeRow(b *strings.Builder, label, value string) {
	b.WriteString(styleLabel.Render(label+":") + styleValue.Render(value) + "\n")
}

// authorList shortens long author lists the way citations do.
func authorList(authors []string) string {
	if len(authors) > 3 {
		return strings.Join(authors[:3], ", ") + " et al."
	}
	return strings.Join(authors, ", ")
}

// dateOnly trims an RFC 3339 timestamp to its date.
func dateOnly(s string) string {
	if len(s) >= 10 {
		return s[:10]
	}
	return s
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-1] + "…"
}
