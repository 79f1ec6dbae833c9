// Package results renders a finished session: a stats row with animated
// counters and one tab per result section.
package results

import (
	"fmt"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/harmonica"
	"github.com/charmbracelet/lipgloss"
	"github.com/research-assistant/monitor/internal/client"
	"github.com/research-assistant/monitor/internal/markdown"
	"github.com/research-assistant/monitor/internal/theme"
)

// Tab identifies a result section.
type Tab int

const (
	TabReport Tab = iota
	TabPlan
	TabAnalysis
	TabCritic
	TabPapers
	TabLog
	numTabs
)

var tabNames = [numTabs]string{"Report", "Plan", "Analysis", "Critic", "Papers", "Log"}

func (t Tab) String() string {
	if t < 0 || t >= numTabs {
		return "?"
	}
	return tabNames[t]
}

const fps = 60

// TickMsg advances the counter animation.
type TickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(time.Second/fps, func(t time.Time) tea.Msg { return TickMsg(t) })
}

// Stats are the headline numbers of a result.
type Stats struct {
	Papers     int
	Iterations int
	Clusters   int
	Coverage   client.Score
}

// StatsFrom derives the headline numbers. Papers are counted once per
// arXiv id; the server's total is used when no paper list is present.
func StatsFrom(r *client.SessionResult) Stats {
	if r == nil {
		return Stats{}
	}
	s := Stats{
		Papers:     r.UniquePaperCount(),
		Iterations: r.IterationCount(),
	}
	if s.Papers == 0 && r.TotalPapers != nil {
		s.Papers = *r.TotalPapers
	}
	if r.Analysis != nil {
		s.Clusters = len(r.Analysis.ThematicClusters)
	}
	switch {
	case r.CoverageScore != nil:
		s.Coverage = *r.CoverageScore
	case r.CriticEvaluation != nil:
		s.Coverage = r.CriticEvaluation.OverallCoverageScore
	}
	return s
}

// counter eases a displayed value towards its target.
type counter struct {
	pos, vel, target float64
}

func (c *counter) step(s harmonica.Spring) {
	c.pos, c.vel = s.Update(c.pos, c.vel, c.target)
}

func (c counter) settled() bool {
	return abs(c.pos-c.target) < 0.5 && abs(c.vel) < 0.5
}

func (c counter) value() int {
	if c.settled() {
		return int(c.target)
	}
	return int(c.pos + 0.5)
}

// Model holds the results view state.
type Model struct {
	Width  int
	Height int

	result   *client.SessionResult
	stats    Stats
	report   string
	tab      Tab
	selected int
	offset   int

	spring    harmonica.Spring
	counters  [3]counter // papers, iterations, clusters
	animating bool

	md *markdown.Renderer
}

// New creates an empty results view. md may be nil, in which case the
// report is shown as plain text.
func New(md *markdown.Renderer) Model {
	return Model{
		md:     md,
		spring: harmonica.NewSpring(harmonica.FPS(fps), 6.0, 1.0),
	}
}

// SetResult replaces the shown result and starts the counter animation.
func (m *Model) SetResult(r *client.SessionResult) tea.Cmd {
	m.result = r
	m.stats = StatsFrom(r)
	m.report = ""
	if r != nil {
		m.report = m.md.RenderOrPlain(r.FinalReport)
	}
	m.selected = 0
	m.offset = 0
	m.counters[0].target = float64(m.stats.Papers)
	m.counters[1].target = float64(m.stats.Iterations)
	m.counters[2].target = float64(m.stats.Clusters)
	if m.animating {
		return nil
	}
	m.animating = true
	return tick()
}

// Result returns the shown result.
func (m Model) Result() *client.SessionResult {
	return m.result
}

// Stats returns the headline numbers of the shown result.
func (m Model) Stats() Stats {
	return m.stats
}

// Update advances the animation.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if _, ok := msg.(TickMsg); !ok {
		return m, nil
	}
	done := true
	for i := range m.counters {
		m.counters[i].step(m.spring)
		if !m.counters[i].settled() {
			done = false
		}
	}
	if done {
		m.animating = false
		return m, nil
	}
	return m, tick()
}

// Animating reports whether the counters are still moving.
func (m Model) Animating() bool {
	return m.animating
}

// Tab returns the active tab.
func (m Model) Tab() Tab {
	return m.tab
}

// SetTab switches tab and resets the scroll position.
func (m *Model) SetTab(t Tab) {
	if t < 0 || t >= numTabs {
		return
	}
	m.tab = t
	m.offset = 0
}

// NextTab cycles forward through the tabs.
func (m *Model) NextTab() { m.SetTab((m.tab + 1) % numTabs) }

// PrevTab cycles backward through the tabs.
func (m *Model) PrevTab() { m.SetTab((m.tab + numTabs - 1) % numTabs) }

// Down moves the paper selection on the papers tab and scrolls elsewhere.
func (m *Model) Down() {
	if m.tab == TabPapers {
		if n := len(m.papers()); n > 0 {
			m.selected = (m.selected + 1) % n
		}
		return
	}
	m.offset++
}

// Up is the reverse of Down.
func (m *Model) Up() {
	if m.tab == TabPapers {
		if n := len(m.papers()); n > 0 {
			m.selected = (m.selected - 1 + n) % n
		}
		return
	}
	if m.offset > 0 {
		m.offset--
	}
}

// SelectedPaper returns the highlighted paper on the papers tab.
func (m Model) SelectedPaper() (client.Paper, bool) {
	papers := m.papers()
	if m.tab != TabPapers || m.selected >= len(papers) {
		return client.Paper{}, false
	}
	return papers[m.selected], true
}

func (m Model) papers() []client.Paper {
	if m.result == nil {
		return nil
	}
	return m.result.Papers.Unique()
}

// View renders the stats row, the tab bar and the active tab.
func (m Model) View() string {
	width := m.Width
	if width < 40 {
		width = 40
	}
	if m.result == nil {
		return theme.StyleDimmed.Render("  No result yet.")
	}

	body := m.renderTab(width - 4)
	lines := strings.Split(body, "\n")
	visible := m.Height - 8
	if visible < 5 {
		visible = 5
	}
	off := m.offset
	if off > len(lines)-1 {
		off = max(0, len(lines)-1)
	}
	end := min(len(lines), off+visible)
	body = strings.Join(lines[off:end], "\n")

	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderStats(width),
		m.renderTabBar(),
		lipgloss.NewStyle().Width(width).Padding(0, 1).Render(body),
	)
}

func (m Model) renderStats(width int) string {
	statStyle := lipgloss.NewStyle().Padding(0, 1)
	cov := m.stats.Coverage
	covColor := theme.ColorDimmed
	if cov.Valid {
		covColor = theme.CoverageColor(cov.Value)
	}

	stats := []string{
		statStyle.Foreground(theme.ColorRetriever).Render(
			fmt.Sprintf("Papers: %s", formatCount(m.counters[0].value()))),
		statStyle.Foreground(theme.ColorIterate).Render(
			fmt.Sprintf("Iterations: %d", m.counters[1].value())),
		statStyle.Foreground(theme.ColorAnalyzer).Render(
			fmt.Sprintf("Clusters: %d", m.counters[2].value())),
		statStyle.Foreground(covColor).Render(
			fmt.Sprintf("Coverage: %s", cov)),
	}
	content := strings.Join(stats, lipgloss.NewStyle().Foreground(theme.ColorBorder).Render(" | "))

	return lipgloss.NewStyle().
		Width(width).
		Padding(0, 1).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(theme.ColorBorder).
		Render(content)
}

func (m Model) renderTabBar() string {
	parts := make([]string, 0, numTabs)
	for t := Tab(0); t < numTabs; t++ {
		label := fmt.Sprintf(" %d %s ", int(t)+1, t)
		if t == m.tab {
			parts = append(parts, theme.StyleSelected.Underline(true).Render(label))
		} else {
			parts = append(parts, theme.StyleDimmed.Render(label))
		}
	}
	return strings.Join(parts, " ")
}

func (m Model) renderTab(width int) string {
	r := m.result
	switch m.tab {
	case TabReport:
		if m.report == "" {
			return theme.StyleDimmed.Render("No report.")
		}
		return m.report
	case TabPlan:
		return renderPlan(r.Plan)
	case TabAnalysis:
		return renderAnalysis(r.Analysis)
	case TabCritic:
		return renderCritic(r.CriticEvaluation)
	case TabPapers:
		return m.renderPapers(width)
	case TabLog:
		return renderLog(r.AgentLog)
	}
	return ""
}

func section(title string) string {
	return theme.StyleHeader.Render(title)
}

func bullets(b *strings.Builder, items []string) {
	for _, it := range items {
		b.WriteString("  • " + it + "\n")
	}
}

func renderPlan(p *client.Plan) string {
	if p == nil {
		return theme.StyleDimmed.Render("No plan.")
	}
	if p.Raw != "" && p.MainTopic == "" {
		return p.Raw
	}
	var b strings.Builder
	b.WriteString(section("Topic") + "\n  " + p.MainTopic + "\n\n")
	if len(p.ResearchQuestions) > 0 {
		b.WriteString(section("Research questions") + "\n")
		for _, q := range p.ResearchQuestions {
			line := fmt.Sprintf("  %s  %s", q.ID, q.Question)
			if q.Priority != "" {
				line += theme.StyleDimmed.Render(" [" + q.Priority + "]")
			}
			b.WriteString(line + "\n")
		}
		b.WriteString("\n")
	}
	if len(p.SearchQueries) > 0 {
		b.WriteString(section("Search queries") + "\n")
		for _, q := range p.SearchQueries {
			b.WriteString(fmt.Sprintf("  %s  %s", q.ID, q.Query))
			if len(q.TargetsQuestions) > 0 {
				b.WriteString(theme.StyleDimmed.Render(" → " + strings.Join(q.TargetsQuestions, ", ")))
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	if p.ScopeNotes != "" {
		b.WriteString(section("Scope") + "\n  " + p.ScopeNotes + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderAnalysis(a *client.Analysis) string {
	if a == nil {
		return theme.StyleDimmed.Render("No analysis.")
	}
	var b strings.Builder
	if len(a.ThematicClusters) > 0 {
		b.WriteString(section("Thematic clusters") + "\n")
		for _, c := range a.ThematicClusters {
			b.WriteString(fmt.Sprintf("  %s %s\n", c.Theme,
				theme.StyleDimmed.Render(fmt.Sprintf("(%d papers)", len(c.PaperIDs)))))
			if c.Description != "" {
				b.WriteString("    " + c.Description + "\n")
			}
			for _, f := range c.KeyFindings {
				b.WriteString("    - " + f + "\n")
			}
		}
		b.WriteString("\n")
	}
	if len(a.QuestionCoverage) > 0 {
		b.WriteString(section("Question coverage") + "\n")
		for _, q := range a.QuestionCoverage {
			b.WriteString(fmt.Sprintf("  %-4s %-8s %s\n", q.QuestionID, q.CoverageLevel, q.Summary))
		}
		b.WriteString("\n")
	}
	if ml := a.MethodologyLandscape; ml != nil {
		b.WriteString(section("Methodology") + "\n")
		if len(ml.DominantMethods) > 0 {
			b.WriteString("  dominant: " + strings.Join(ml.DominantMethods, ", ") + "\n")
		}
		if len(ml.EmergingMethods) > 0 {
			b.WriteString("  emerging: " + strings.Join(ml.EmergingMethods, ", ") + "\n")
		}
		if ml.ComparisonNotes != "" {
			b.WriteString("  " + ml.ComparisonNotes + "\n")
		}
		b.WriteString("\n")
	}
	if a.TimelineTrends != "" {
		b.WriteString(section("Timeline") + "\n  " + a.TimelineTrends + "\n\n")
	}
	if len(a.CrossCuttingInsights) > 0 {
		b.WriteString(section("Insights") + "\n")
		bullets(&b, a.CrossCuttingInsights)
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderCritic(c *client.CriticEvaluation) string {
	if c == nil {
		return theme.StyleDimmed.Render("No critic evaluation.")
	}
	var b strings.Builder
	score := c.OverallCoverageScore
	color := theme.ColorDimmed
	if score.Valid {
		color = theme.CoverageColor(score.Value)
	}
	b.WriteString(section("Overall coverage") + "  " +
		lipgloss.NewStyle().Foreground(color).Render(score.String()) + "\n")
	if c.Recommendation != "" {
		b.WriteString(section("Recommendation") + "  " + c.Recommendation + "\n")
	}
	b.WriteString("\n")

	if len(c.DimensionScores) > 0 {
		dims := make([]string, 0, len(c.DimensionScores))
		for k := range c.DimensionScores {
			dims = append(dims, k)
		}
		sort.Strings(dims)
		b.WriteString(section("Dimensions") + "\n")
		for _, d := range dims {
			b.WriteString(fmt.Sprintf("  %-24s %s\n", d, c.DimensionScores[d]))
		}
		b.WriteString("\n")
	}
	if len(c.CoveredWell) > 0 {
		b.WriteString(section("Covered well") + "\n")
		bullets(&b, c.CoveredWell)
		b.WriteString("\n")
	}
	if len(c.KnowledgeGaps) > 0 {
		b.WriteString(section("Knowledge gaps") + "\n")
		for _, g := range c.KnowledgeGaps {
			b.WriteString(fmt.Sprintf("  [%s] %s\n", g.Severity, g.Gap))
		}
		b.WriteString("\n")
	}
	if len(c.QualityIssues) > 0 {
		b.WriteString(section("Quality issues") + "\n")
		bullets(&b, c.QualityIssues)
		b.WriteString("\n")
	}
	if c.Reasoning != "" {
		b.WriteString(section("Reasoning") + "\n  " + c.Reasoning + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m Model) renderPapers(width int) string {
	papers := m.papers()
	var failed []string
	for _, qid := range sortedQueries(m.result.Papers) {
		for _, p := range m.result.Papers[qid] {
			if p.Error != "" {
				failed = append(failed, fmt.Sprintf("%s: %s", qid, p.Error))
			}
		}
	}
	if len(papers) == 0 && len(failed) == 0 {
		return theme.StyleDimmed.Render("No papers.")
	}

	titleW := width - 20
	if titleW < 20 {
		titleW = 20
	}
	var lines []string
	for i, p := range papers {
		prefix := "  "
		if i == m.selected {
			prefix = "> "
		}
		title := p.Title
		if len(title) > titleW {
			title = title[:titleW-1] + "…"
		}
		year := p.Published
		if len(year) > 4 {
			year = year[:4]
		}
		line := prefix + theme.StyleDimmed.Render(fmt.Sprintf("%-12s %4s ", p.ArxivID, year)) + title
		if i == m.selected {
			line = theme.StyleSelected.Render(line)
		}
		lines = append(lines, line)
	}
	for _, f := range failed {
		lines = append(lines, theme.StyleError.Render("  query failed "+f))
	}
	return strings.Join(lines, "\n")
}

func renderLog(entries []client.AgentLogEntry) string {
	if len(entries) == 0 {
		return theme.StyleDimmed.Render("No log entries.")
	}
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		ts := ""
		if !e.Timestamp.IsZero() {
			ts = e.Timestamp.Local().Format("15:04:05")
		}
		agent := lipgloss.NewStyle().Foreground(theme.RoleColor(strings.ToLower(e.Agent))).Width(10).Render(e.Agent)
		line := fmt.Sprintf("%s %s %s", theme.StyleDimmed.Render(ts), agent, e.Action)
		if e.Detail != "" {
			line += theme.StyleDimmed.Render("  " + e.Detail)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func sortedQueries(p client.Papers) []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// formatCount formats large numbers with K/M suffixes.
func formatCount(n int) string {
	switch {
	case n >= 1_000_000:
		return fmt.Sprintf("%.1fM", float64(n)/1_000_000)
	case n >= 1_000:
		return fmt.Sprintf("%.1fK", float64(n)/1_000)
	default:
		return fmt.Sprintf("%d", n)
	}
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
