package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/capstone-impacta/engagement-cli/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:          "engagement-cli",
	Short:        "Video engagement ETL and dashboard",
	Long:         "Backfills daily video engagement CSVs from S3 into the gold fact tables and serves the engagement dashboard over them.",
	SilenceUsage: true,
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
