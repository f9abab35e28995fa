package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/acuworks/finops-cli/internal/pipeline"
)

var (
	reportStart string
	reportEnd   string
	reportOut   string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Run the full cost report pipeline",
	Long:  "Ingests usage logs, fans out over the report endpoints, computes the aggregate and FinOps metric layers, and exports CSV, XLSX and JSON artifacts with a business summary.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("report"); err != nil {
			return err
		}
		ctx := cmd.Context()

		runner := pipeline.NewRunner(cfg, newCollector(cfg))
		res, err := runner.Run(ctx, pipeline.Options{
			StartDate: reportStart,
			EndDate:   reportEnd,
			OutDir:    reportOut,
		})
		if err != nil {
			return err
		}

		zap.L().Info("report complete",
			zap.Int("sessions", len(res.Dataset.Sessions)),
			zap.Int("finops_metrics", len(res.FinOps)),
			zap.Strings("artifacts", res.Artifacts),
		)
		return nil
	},
}

func init() {
	reportCmd.Flags().StringVar(&reportStart, "start", "", "start date (YYYY-MM-DD)")
	reportCmd.Flags().StringVar(&reportEnd, "end", "", "end date (YYYY-MM-DD)")
	reportCmd.Flags().StringVar(&reportOut, "out", "", "output directory (default from config)")
	_ = reportCmd.MarkFlagRequired("start")
	_ = reportCmd.MarkFlagRequired("end")
	rootCmd.AddCommand(reportCmd)
}
