package main

import (
	"github.com/spf13/cobra"
)

var watchParallel int

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().IntVar(&watchParallel, "parallel", 4, "maximum sessions followed at once")
}

var watchCmd = &cobra.Command{
	Use:   "watch <session-id>...",
	Short: "Follow running sessions",
	Long: `Follow one or more existing sessions until each finishes.

A single session is shown in the TUI unless --no-tui is given. Several
sessions are printed as lines tagged with a short session id.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		tui := len(args) == 1 && !cfg.UI.NoTUI
		if err := setupLogging(cfg, tui); err != nil {
			return err
		}
		s, err := newServices(cfg)
		if err != nil {
			return err
		}
		return follow(cmd.Context(), s, args, "", watchParallel)
	},
}
