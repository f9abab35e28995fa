package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/acuworks/finops-cli/internal/pipeline"
	"github.com/acuworks/finops-cli/internal/resilience"
	"github.com/acuworks/finops-cli/pkg/github"
	"github.com/acuworks/finops-cli/pkg/jira"
)

var (
	kpiStart     string
	kpiEnd       string
	kpiGitHubOrg string
	kpiOut       string
)

var kpiCmd = &cobra.Command{
	Use:   "kpi",
	Short: "Compute the KPI report from enterprise, GitHub, and Jira sources",
	Long:  "Collects session and PR telemetry, enriches merged PRs with GitHub review, CI and security data plus Jira issue tracking, and writes the KPI catalog as JSON. Missing sources degrade individual KPIs instead of failing the run.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("kpi"); err != nil {
			return err
		}
		ctx := cmd.Context()

		retry := resilience.FromRetryConfig(cfg.Retry.MaxRetries, cfg.Retry.BaseDelayMs, cfg.Retry.MaxDelayMs)

		gh := github.NewClient(cfg.GitHub.Token,
			github.WithBaseURL(cfg.GitHub.BaseURL),
			github.WithRetryPolicy(retry),
		)

		// Jira is optional; without it the Jira KPIs report as unavailable.
		var jc jira.Client
		if cfg.Jira.BaseURL != "" {
			jc = jira.NewClient(cfg.Jira.BaseURL, cfg.Jira.Email, cfg.Jira.Token,
				jira.WithRetryPolicy(retry),
			)
		}

		runner := pipeline.NewKPIRunner(cfg, newCollector(cfg), gh, jc)
		report, err := runner.Run(ctx, pipeline.KPIOptions{
			StartDate: kpiStart,
			EndDate:   kpiEnd,
			GitHubOrg: kpiGitHubOrg,
			OutDir:    kpiOut,
		})
		if err != nil {
			return err
		}

		computed := 0
		for _, m := range report.Metrics {
			if m.IsComputed() {
				computed++
			}
		}
		zap.L().Info("kpi report complete",
			zap.Int("metrics", len(report.Metrics)),
			zap.Int("computed", computed),
		)
		return nil
	},
}

func init() {
	kpiCmd.Flags().StringVar(&kpiStart, "start", "", "start date (YYYY-MM-DD)")
	kpiCmd.Flags().StringVar(&kpiEnd, "end", "", "end date (YYYY-MM-DD)")
	kpiCmd.Flags().StringVar(&kpiGitHubOrg, "github-org", "", "GitHub org for secret scanning alerts")
	kpiCmd.Flags().StringVar(&kpiOut, "out", "", "output directory (default from config)")
	_ = kpiCmd.MarkFlagRequired("start")
	_ = kpiCmd.MarkFlagRequired("end")
	rootCmd.AddCommand(kpiCmd)
}
