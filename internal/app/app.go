// Package app is the Bubble Tea front end for a single monitored session.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/research-assistant/monitor/internal/client"
	"github.com/research-assistant/monitor/internal/markdown"
	"github.com/research-assistant/monitor/internal/monitor"
	"github.com/research-assistant/monitor/internal/pipeline"
	"github.com/research-assistant/monitor/internal/theme"
	"github.com/research-assistant/monitor/internal/views/detail"
	"github.com/research-assistant/monitor/internal/views/feed"
	"github.com/research-assistant/monitor/internal/views/flow"
	"github.com/research-assistant/monitor/internal/views/results"
	"github.com/research-assistant/monitor/internal/views/status"
)

// Overlay identifies which modal is active.
type Overlay int

const (
	OverlayNone Overlay = iota
	OverlayDetail
	OverlayLog
)

// Source is the session being watched. *monitor.Monitor implements it.
type Source interface {
	SessionID() string
	Watch(ctx context.Context) <-chan monitor.Update
	Accumulated() *client.SessionResult
}

// Options configure the root model.
type Options struct {
	Topic     string
	Transport string
	Markdown  *markdown.Renderer
}

type (
	startedMsg struct{ updates <-chan monitor.Update }
	updateMsg  monitor.Update
	closedMsg  struct{}
	clockMsg   time.Time
)

// Model is the root Bubble Tea model.
type Model struct {
	src     Source
	updates <-chan monitor.Update
	ctx     context.Context
	cancel  context.CancelFunc

	keys   KeyMap
	width  int
	height int

	overlay Overlay
	final   bool
	err     error

	// Sub-views.
	statusBar status.Model
	flow      flow.Model
	feed      feed.Model
	results   results.Model
	detail    detail.Model
}

// New creates the root model. Watching starts in Init.
func New(src Source, opts Options) Model {
	ctx, cancel := context.WithCancel(context.Background())
	sb := status.New(src.SessionID(), opts.Transport)
	sb.Topic = opts.Topic
	return Model{
		src:       src,
		ctx:       ctx,
		cancel:    cancel,
		keys:      DefaultKeyMap(),
		statusBar: sb,
		flow:      flow.New(),
		feed:      feed.New(),
		results:   results.New(opts.Markdown),
	}
}

// Init starts the monitor.
func (m Model) Init() tea.Cmd {
	src, ctx := m.src, m.ctx
	return tea.Batch(
		func() tea.Msg { return startedMsg{updates: src.Watch(ctx)} },
		clock(),
	)
}

func waitForUpdate(ch <-chan monitor.Update) tea.Cmd {
	return func() tea.Msg {
		u, ok := <-ch
		if !ok {
			return closedMsg{}
		}
		return updateMsg(u)
	}
}

func clock() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return clockMsg(t) })
}

// Err returns the session's terminal error, if any.
func (m Model) Err() error {
	return m.err
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.statusBar.Width = msg.Width
		m.flow.Width = msg.Width
		m.results.Width = msg.Width
		m.results.Height = msg.Height - 12
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case startedMsg:
		m.updates = msg.updates
		m.statusBar.StartedAt = time.Now()
		m.feed.Add(feed.KindNetwork, "connecting via "+m.statusBar.Transport)
		return m, waitForUpdate(m.updates)

	case updateMsg:
		cmd := m.applyUpdate(monitor.Update(msg))
		if m.final {
			return m, cmd
		}
		return m, tea.Batch(cmd, waitForUpdate(m.updates))

	case closedMsg:
		return m, nil

	case clockMsg:
		if m.final {
			return m, nil
		}
		return m, clock()

	case results.TickMsg:
		var cmd tea.Cmd
		m.results, cmd = m.results.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m *Model) applyUpdate(u monitor.Update) tea.Cmd {
	switch {
	case u.Diff != nil:
		return m.applyDiff(u.Diff)

	case u.Malformed != nil:
		m.feed.Add(feed.KindWarn, "discarded "+u.Malformed.Error())

	case u.Degraded != nil:
		m.statusBar.Link = status.LinkDegraded
		m.feed.Add(feed.KindNetwork, fmt.Sprintf("stream lost (%v), waiting before fetching the result", u.Degraded.Err))

	case u.Fetching:
		m.statusBar.Link = status.LinkFetching
		m.feed.Add(feed.KindNetwork, "fetching result")

	case u.Final:
		m.final = true
		m.statusBar.EndedAt = time.Now()
		return m.applyFinal(u)
	}
	return nil
}

func (m *Model) applyDiff(d *pipeline.StateDiff) tea.Cmd {
	if d.Ignored {
		return nil
	}
	if m.statusBar.Link == status.LinkConnecting {
		m.statusBar.Link = status.LinkStreaming
	}
	m.flow.Snapshot = d.Snapshot
	m.statusBar.Iteration = d.Snapshot.Iteration

	line := d.LogLine
	m.feed.AddAt(line.Time, feedKind(line.Stage), line.Message)

	if d.PayloadErr != nil {
		m.feed.Add(feed.KindWarn, fmt.Sprintf("%s payload not merged: %v", line.Tag, d.PayloadErr))
		return nil
	}
	if !d.Event.HasData() {
		return nil
	}
	acc := m.src.Accumulated()
	if m.statusBar.Topic == "" && acc.Plan != nil {
		m.statusBar.Topic = acc.Plan.MainTopic
	}
	return m.results.SetResult(acc)
}

func (m *Model) applyFinal(u monitor.Update) tea.Cmd {
	if u.Err != nil {
		m.err = u.Err
		m.statusBar.Link = status.LinkFailed
		var pe *monitor.PipelineError
		switch {
		case errors.As(u.Err, &pe):
			m.feed.Add(feed.KindError, "pipeline error: "+pe.Message)
		case u.Disposition == monitor.DispositionCancelled:
			m.feed.Add(feed.KindWarn, "monitoring cancelled")
		default:
			m.feed.Add(feed.KindError, u.Err.Error())
		}
		return nil
	}
	m.statusBar.Link = status.LinkDone
	m.feed.Add(feed.KindDone, "result received")
	if m.statusBar.Topic == "" && u.Result != nil && u.Result.Plan != nil {
		m.statusBar.Topic = u.Result.Plan.MainTopic
	}
	return m.results.SetResult(u.Result)
}

// feedKind picks the feed category for a stage.
func feedKind(s pipeline.Stage) string {
	switch {
	case s == pipeline.StageHeartbeat:
		return feed.KindHeartbeat
	case s == pipeline.StageIterationStart, s == pipeline.StageIterationAccepted:
		return feed.KindIteration
	case s == pipeline.StageError:
		return feed.KindError
	case s.IsDone(), s == pipeline.StageComplete, s == pipeline.StageDone:
		return feed.KindDone
	}
	return feed.KindStage
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		m.cancel()
		return m, tea.Quit
	}

	switch m.overlay {
	case OverlayDetail:
		if key.Matches(msg, m.keys.Escape, m.keys.Enter) {
			m.overlay = OverlayNone
		}
		return m, nil
	case OverlayLog:
		switch {
		case key.Matches(msg, m.keys.Escape, m.keys.Log):
			m.overlay = OverlayNone
		case key.Matches(msg, m.keys.Up):
			m.feed.ScrollUp(1)
		case key.Matches(msg, m.keys.Down):
			m.feed.ScrollDown(1)
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Log):
		m.overlay = OverlayLog

	case key.Matches(msg, m.keys.NextTab):
		m.results.NextTab()

	case key.Matches(msg, m.keys.PrevTab):
		m.results.PrevTab()

	case key.Matches(msg, m.keys.JumpTab):
		m.results.SetTab(results.Tab(msg.String()[0] - '1'))

	case key.Matches(msg, m.keys.Down):
		m.results.Down()

	case key.Matches(msg, m.keys.Up):
		m.results.Up()

	case key.Matches(msg, m.keys.Enter):
		if p, ok := m.results.SelectedPaper(); ok {
			m.detail = detail.New(p)
			m.overlay = OverlayDetail
		}
	}
	return m, nil
}

// View renders the full TUI.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	header := lipgloss.JoinVertical(lipgloss.Left, m.statusBar.View(), m.flow.View())
	footer := m.renderFooter()
	bodyHeight := m.height - lipgloss.Height(header) - lipgloss.Height(footer)

	var body string
	switch {
	case m.overlay == OverlayDetail:
		body = lipgloss.Place(m.width, bodyHeight, lipgloss.Center, lipgloss.Center, m.detail.View())
	case m.overlay == OverlayLog:
		body = m.feed.View(m.width, bodyHeight)
	case m.results.Result() == nil:
		body = m.feed.View(m.width, bodyHeight)
	default:
		body = m.results.View()
	}

	return lipgloss.JoinVertical(lipgloss.Left, header, body, footer)
}

func (m Model) renderFooter() string {
	help := theme.StyleDimmed.Render("  tab/1-6:tabs  j/k:navigate  enter:paper  l:log  q:quit")
	if m.overlay != OverlayNone {
		help = theme.StyleDimmed.Render("  esc:close  j/k:scroll  q:quit")
	}
	if m.err == nil {
		return help
	}
	return lipgloss.JoinVertical(lipgloss.Left, theme.StyleError.Render("  "+m.err.Error()), help)
}
