// Package console prints monitor updates as plain lines, for --no-tui runs
// and for watching several sessions at once.
package console

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/research-assistant/monitor/internal/client"
	"github.com/research-assistant/monitor/internal/markdown"
	"github.com/research-assistant/monitor/internal/monitor"
	"github.com/research-assistant/monitor/internal/pipeline"
	"github.com/research-assistant/monitor/internal/theme"
)

// Printer writes one line per update. It is safe for concurrent use by
// several monitors; lines from different sessions never interleave.
type Printer struct {
	// Prefix tags each line with a short session id.
	Prefix bool
	Now    func() time.Time

	mu sync.Mutex
	w  io.Writer
}

// New returns a printer writing to w.
func New(w io.Writer) *Printer {
	return &Printer{w: w, Now: time.Now}
}

// Observe implements monitor.Observer.
func (p *Printer) Observe(u monitor.Update) {
	var lines []string
	switch {
	case u.Diff != nil:
		lines = diffLines(u.Diff)
	case u.Malformed != nil:
		lines = []string{warn("discarded " + u.Malformed.Error())}
	case u.Degraded != nil:
		lines = []string{warn(fmt.Sprintf("stream lost: %v", u.Degraded.Err))}
	case u.Fetching:
		lines = []string{"fetching result..."}
	case u.Final:
		lines = []string{finalLine(u)}
	}
	if len(lines) == 0 {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	ts := theme.StyleDimmed.Render(p.Now().Format("15:04:05"))
	for _, l := range lines {
		if p.Prefix {
			fmt.Fprintf(p.w, "%s %s %s\n", ts, shortID(u.SessionID), l)
		} else {
			fmt.Fprintf(p.w, "%s %s\n", ts, l)
		}
	}
}

func diffLines(d *pipeline.StateDiff) []string {
	if d.Ignored {
		return nil
	}
	tag := lipgloss.NewStyle().Foreground(stageColor(d.LogLine.Stage)).
		Render("[" + d.LogLine.Tag + "]")
	lines := []string{tag + " " + d.LogLine.Message}
	if d.IterationAccepted > 0 {
		lines = append(lines, fmt.Sprintf("iteration %d accepted", d.IterationAccepted))
	}
	if d.PayloadErr != nil {
		lines = append(lines, warn(fmt.Sprintf("%s payload not merged: %v", d.LogLine.Tag, d.PayloadErr)))
	}
	return lines
}

func stageColor(s pipeline.Stage) lipgloss.Color {
	if r, ok := pipeline.RoleFor(s); ok {
		return theme.RoleColor(r.String())
	}
	switch s {
	case pipeline.StageIterationStart, pipeline.StageIterationAccepted:
		return theme.ColorIterate
	case pipeline.StageError:
		return theme.ColorDanger
	case pipeline.StageComplete, pipeline.StageDone:
		return theme.ColorCompleted
	}
	return theme.ColorDimmed
}

func finalLine(u monitor.Update) string {
	var pe *monitor.PipelineError
	switch {
	case u.Err == nil:
		return lipgloss.NewStyle().Foreground(theme.ColorCompleted).Render("completed: ") + Summary(u.Result)
	case errors.As(u.Err, &pe):
		return theme.StyleError.Render("pipeline error: " + pe.Message)
	case u.Disposition == monitor.DispositionCancelled:
		return warn("cancelled")
	}
	return theme.StyleError.Render(u.Disposition.String() + ": " + u.Err.Error())
}

func warn(s string) string {
	return lipgloss.NewStyle().Foreground(theme.ColorWarning).Render(s)
}

func shortID(id string) string {
	if len(id) > 8 {
		id = id[:8]
	}
	return theme.StyleHeader.Render(id)
}

// Summary is a one-line digest of a result.
func Summary(r *client.SessionResult) string {
	if r == nil {
		return "no result"
	}
	papers := r.UniquePaperCount()
	if papers == 0 && r.TotalPapers != nil {
		papers = *r.TotalPapers
	}
	parts := []string{fmt.Sprintf("%d papers", papers)}
	if n := r.IterationCount(); n > 0 {
		parts = append(parts, fmt.Sprintf("%d iterations", n))
	}
	if r.CoverageScore != nil {
		parts = append(parts, "coverage "+r.CoverageScore.String())
	} else if r.CriticEvaluation != nil {
		parts = append(parts, "coverage "+r.CriticEvaluation.OverallCoverageScore.String())
	}
	return strings.Join(parts, ", ")
}

// WriteResult prints a result's topic, digest and rendered report.
func WriteResult(w io.Writer, r *client.SessionResult, md *markdown.Renderer) error {
	if r == nil {
		return errors.New("no result")
	}
	if r.Plan != nil && r.Plan.MainTopic != "" {
		if _, err := fmt.Fprintln(w, theme.StyleHeader.Render(r.Plan.MainTopic)); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintln(w, theme.StyleDimmed.Render(Summary(r))); err != nil {
		return err
	}
	if r.FinalReport == "" {
		return nil
	}
	_, err := fmt.Fprintln(w, "\n"+md.RenderOrPlain(r.FinalReport))
	return err
}
