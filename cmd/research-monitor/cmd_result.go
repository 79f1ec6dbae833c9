package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/research-assistant/monitor/internal/console"
)

var resultJSON bool

func init() {
	rootCmd.AddCommand(resultCmd)
	resultCmd.Flags().BoolVar(&resultJSON, "json", false, "print the raw result as JSON")
}

var resultCmd = &cobra.Command{
	Use:   "result <session-id>",
	Short: "Fetch a finished session's result",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if err := setupLogging(cfg, false); err != nil {
			return err
		}
		s, err := newServices(cfg)
		if err != nil {
			return err
		}

		res, err := s.fetcher().Fetch(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if resultJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		}
		return console.WriteResult(os.Stdout, res, s.md)
	},
}
