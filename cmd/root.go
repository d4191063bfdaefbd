package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/competitor-intel/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "competitor-intel",
	Short: "Cross-tenant competitor intelligence cache",
	Long:  "Resolves competitor domains to shared entities, keeps scan data fresh per TTL policy, synthesizes competitive gaps, and alerts tenants when competitor messaging changes.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
