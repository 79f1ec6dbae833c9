package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run <topic...>",
	Short: "Start a research session and follow it",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if err := setupLogging(cfg, !cfg.UI.NoTUI); err != nil {
			return err
		}
		s, err := newServices(cfg)
		if err != nil {
			return err
		}

		topic := strings.Join(args, " ")
		resp, err := s.http.StartResearch(cmd.Context(), topic)
		if err != nil {
			return fmt.Errorf("start session: %w", err)
		}
		fmt.Fprintf(os.Stderr, "Started session %s\n", resp.SessionID)

		return follow(cmd.Context(), s, []string{resp.SessionID}, topic, 1)
	},
}
