package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Refresh scans for all tracked entities once",
	Long:  "Fans ensure-fresh out over every tracked entity and scan type, replays transient failures, and runs change detection. Intended to be run weekly by an external scheduler.",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initApp(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		report, err := env.Service.TriggerWeeklyScan(cmd.Context())
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	},
}

func init() {
	rootCmd.AddCommand(sweepCmd)
}
