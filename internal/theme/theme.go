// Package theme provides the Lip Gloss color palette and reusable styles
// for the research monitor TUI. It is a leaf package with no internal
// imports to avoid import cycles.
package theme

import "github.com/charmbracelet/lipgloss"

// Role colors, in pipeline order.
var (
	ColorPlanner   = lipgloss.Color("#a855f7")
	ColorRetriever = lipgloss.Color("#3b82f6")
	ColorAnalyzer  = lipgloss.Color("#06b6d4")
	ColorCritic    = lipgloss.Color("#f59e0b")
	ColorReporter  = lipgloss.Color("#22c55e")
	ColorDefault   = lipgloss.Color("#9ca3af")
)

// Role status colors.
var (
	ColorWaiting   = lipgloss.Color("#4b5563")
	ColorActive    = lipgloss.Color("#2563eb")
	ColorCompleted = lipgloss.Color("#16a34a")
)

// Feed kind colors.
var (
	ColorStage     = lipgloss.Color("#7c3aed")
	ColorIterate   = lipgloss.Color("#d97706")
	ColorNetwork   = lipgloss.Color("#0ea5e9")
	ColorHeartbeat = lipgloss.Color("#374151")
)

// Coverage score thresholds (score out of 10).
var (
	ColorCoverageLow  = lipgloss.Color("#dc2626") // <5
	ColorCoverageMid  = lipgloss.Color("#d97706") // 5-7
	ColorCoverageHigh = lipgloss.Color("#22c55e") // >=7
)

// UI chrome colors.
var (
	ColorBorder  = lipgloss.Color("#4b5563")
	ColorDimmed  = lipgloss.Color("#6b7280")
	ColorBright  = lipgloss.Color("#f9fafb")
	ColorBg      = lipgloss.Color("#111827")
	ColorHealthy = lipgloss.Color("#22c55e")
	ColorWarning = lipgloss.Color("#d97706")
	ColorDanger  = lipgloss.Color("#dc2626")
)

// RoleColor returns the Lip Gloss color for a role name.
func RoleColor(role string) lipgloss.Color {
	switch role {
	case "planner":
		return ColorPlanner
	case "retriever":
		return ColorRetriever
	case "analyzer":
		return ColorAnalyzer
	case "critic":
		return ColorCritic
	case "reporter":
		return ColorReporter
	default:
		return ColorDefault
	}
}

// StatusColor returns the color for a role status string.
func StatusColor(status string) lipgloss.Color {
	switch status {
	case "active":
		return ColorActive
	case "completed":
		return ColorCompleted
	default:
		return ColorWaiting
	}
}

// StatusGlyph returns a Unicode glyph for a role status string.
func StatusGlyph(status string) string {
	switch status {
	case "active":
		return "●"
	case "completed":
		return "✓"
	default:
		return "○"
	}
}

// RoleIcon returns the short label shown on a role card.
func RoleIcon(role string) string {
	switch role {
	case "planner":
		return "PLAN"
	case "retriever":
		return "FIND"
	case "analyzer":
		return "ANLZ"
	case "critic":
		return "CRIT"
	case "reporter":
		return "RPRT"
	default:
		return "????"
	}
}

// CoverageColor returns the color for a coverage score out of 10.
func CoverageColor(score float64) lipgloss.Color {
	switch {
	case score >= 7:
		return ColorCoverageHigh
	case score >= 5:
		return ColorCoverageMid
	default:
		return ColorCoverageLow
	}
}

// Reusable styles.
var (
	StyleBorder = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(ColorBorder)

	StyleHeader = lipgloss.NewStyle().
		Bold(true).
		Foreground(ColorBright)

	StyleDimmed = lipgloss.NewStyle().
		Foreground(ColorDimmed)

	StyleSelected = lipgloss.NewStyle().
		Bold(true).
		Foreground(ColorBright)

	StyleError = lipgloss.NewStyle().
		Foreground(ColorDanger)
)
