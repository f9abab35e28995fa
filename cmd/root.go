package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/acuworks/finops-cli/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "finops-cli",
	Short: "AI platform FinOps telemetry pipeline",
	Long:  "Ingests enterprise usage telemetry, computes cost and adoption metrics across three layers, and exports CSV/XLSX/JSON reports.",
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
