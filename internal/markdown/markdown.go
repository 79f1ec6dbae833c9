// Package markdown renders report markdown for the terminal.
package markdown

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
)

// Renderer turns markdown into styled terminal text.
type Renderer struct {
	tr *glamour.TermRenderer
}

// New returns a renderer. style is a glamour standard style name ("dark",
// "light", "notty", ...) or "auto"; wrap is the word-wrap width, 0 for none.
func New(style string, wrap int) (*Renderer, error) {
	opts := []glamour.TermRendererOption{glamour.WithWordWrap(wrap)}
	switch strings.ToLower(style) {
	case "", "auto":
		opts = append(opts, glamour.WithAutoStyle())
	default:
		opts = append(opts, glamour.WithStandardStyle(style))
	}
	tr, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return nil, fmt.Errorf("markdown renderer: %w", err)
	}
	return &Renderer{tr: tr}, nil
}

// Render returns the styled report. Empty input renders as empty output.
func (r *Renderer) Render(md string) (string, error) {
	if strings.TrimSpace(md) == "" {
		return "", nil
	}
	out, err := r.tr.Render(md)
	if err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return out, nil
}

// RenderOrPlain renders md, falling back to the raw text on error.
func (r *Renderer) RenderOrPlain(md string) string {
	if r == nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return out
}
