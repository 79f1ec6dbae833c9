package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/sync/errgroup"

	"github.com/research-assistant/monitor/internal/app"
	"github.com/research-assistant/monitor/internal/console"
)

// follow monitors the given sessions until each reaches a final state. A
// single session gets the TUI unless it is disabled; several sessions are
// printed as prefixed lines, at most parallel at a time.
func follow(ctx context.Context, s *services, ids []string, topic string, parallel int) error {
	if len(ids) == 1 && !s.cfg.UI.NoTUI {
		return followTUI(ctx, s, ids[0], topic)
	}
	return followConsole(ctx, s, os.Stdout, ids, parallel)
}

func followTUI(ctx context.Context, s *services, id, topic string) error {
	mon := s.monitor(id)
	m := app.New(mon, app.Options{
		Topic:     topic,
		Transport: s.cfg.Stream.Transport,
		Markdown:  s.md,
	})
	final, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("run TUI: %w", err)
	}
	if r := mon.Result(); r != nil {
		fmt.Printf("%s: %s\n", id, console.Summary(r))
	}
	if fm, ok := final.(app.Model); ok && fm.Err() != nil {
		return fm.Err()
	}
	return ctx.Err()
}

func followConsole(ctx context.Context, s *services, w io.Writer, ids []string, parallel int) error {
	printer := console.New(w)
	printer.Prefix = len(ids) > 1

	// Sessions are independent: one failing must not cancel the others.
	var g errgroup.Group
	if parallel > 0 {
		g.SetLimit(parallel)
	}
	errs := make([]error, len(ids))
	for i, id := range ids {
		mon := s.monitor(id)
		g.Go(func() error {
			res, err := mon.Run(ctx, printer)
			if err != nil {
				errs[i] = err
				return nil
			}
			if len(ids) == 1 {
				errs[i] = console.WriteResult(w, res, s.md)
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}
