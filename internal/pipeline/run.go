// Package pipeline sequences a full reporting run: collect, transform,
// calculate, compose, export. Phase failures carry their phase name out;
// per-endpoint failures inside a phase are data and never abort the run.
package pipeline

import (
	"context"
	"encoding/json"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/acuworks/finops-cli/internal/config"
	"github.com/acuworks/finops-cli/internal/ingest"
	"github.com/acuworks/finops-cli/internal/metrics"
	"github.com/acuworks/finops-cli/internal/model"
	"github.com/acuworks/finops-cli/internal/report"
	"github.com/acuworks/finops-cli/internal/resilience"
	"github.com/acuworks/finops-cli/internal/transform"
)

// ReportEndpoints is the fan-out catalog for the cost report.
var ReportEndpoints = map[string]string{
	"consumption_daily": "/consumption/daily",
	"metrics_prs":       "/metrics/prs",
	"metrics_sessions":  "/metrics/sessions",
}

// KPIEndpoints is the fan-out catalog for the KPI report. Audit logs live on
// the org root, the client's URL resolution handles the split.
var KPIEndpoints = map[string]string{
	"metrics_sessions": "/metrics/sessions",
	"metrics_prs":      "/metrics/prs",
	"sessions_list":    "/sessions",
	"audit_logs":       "/audit-logs",
}

// Artifact file names within the output directory.
const (
	FileRawLogs        = "raw_usage_data.json"
	FileRawConsumption = "consumption_raw_data.json"
	FileRawAPI         = "api_raw_data.json"
	FileHealthCSV      = "api_health_report.csv"
	FileMetricsCSV     = "finops_metrics_report.csv"
	FileReportXLSX     = "finops_report.xlsx"
	FileFinOpsJSON     = "finops_metrics.json"
)

// Options bounds one reporting run.
type Options struct {
	StartDate string // YYYY-MM-DD, inclusive
	EndDate   string // YYYY-MM-DD, inclusive
	OutDir    string
	// UsageLogsPath is the paginated raw log endpoint. Defaults to
	// /usage_logs.
	UsageLogsPath string
	// Summary receives the end-of-run digest. Defaults to stdout.
	Summary io.Writer
}

// RunResult carries everything a run produced, for callers that want to
// inspect beyond the artifact files.
type RunResult struct {
	Dataset   model.Dataset
	Endpoints map[string]ingest.FetchResult
	Metrics   metrics.Result
	Facts     metrics.Facts
	FinOps    map[string]model.FinOpsMetric
	Artifacts []string
}

// Runner drives the report pipeline.
type Runner struct {
	cfg       *config.Config
	collector *ingest.Collector
}

// NewRunner creates a pipeline runner over an assembled collector.
func NewRunner(cfg *config.Config, collector *ingest.Collector) *Runner {
	return &Runner{cfg: cfg, collector: collector}
}

// Run executes the full report pipeline. The first phase-fatal error aborts
// the run; degraded endpoints only narrow the output.
func (r *Runner) Run(ctx context.Context, opts Options) (*RunResult, error) {
	log := zap.L().With(zap.String("start", opts.StartDate), zap.String("end", opts.EndDate))
	log.Info("pipeline: starting report run")
	start := time.Now()

	if opts.OutDir == "" {
		opts.OutDir = r.cfg.Output.Dir
	}
	if opts.UsageLogsPath == "" {
		opts.UsageLogsPath = "/usage_logs"
	}
	if opts.Summary == nil {
		opts.Summary = os.Stdout
	}
	if err := os.MkdirAll(opts.OutDir, 0o755); err != nil {
		return nil, resilience.WrapPhase("export", opts.OutDir, err)
	}

	res := &RunResult{}

	// Phase 1: collect.
	logs, err := r.collector.CollectUsageLogs(ctx, opts.UsageLogsPath, 0)
	if err != nil {
		return nil, resilience.WrapPhase("collect", opts.UsageLogsPath, err)
	}
	params := make(map[string]url.Values, len(ReportEndpoints))
	for name := range ReportEndpoints {
		params[name] = url.Values{
			"start_date": []string{opts.StartDate},
			"end_date":   []string{opts.EndDate},
		}
	}
	res.Endpoints = r.collector.CollectEndpoints(ctx, ReportEndpoints, params)

	if err := r.persistRaw(opts.OutDir, logs, res); err != nil {
		return nil, resilience.WrapPhase("collect", "persist snapshots", err)
	}
	log.Info("pipeline: collect complete",
		zap.Int("usage_logs", len(logs)),
		zap.Int("endpoints", len(res.Endpoints)),
	)

	// Phase 2: transform.
	res.Dataset = transform.Normalize(logs, opts.StartDate, opts.EndDate, transform.Options{})

	// Phase 3: calculate the core aggregates.
	res.Metrics = metrics.NewCalculator(r.cfg.Metrics).CalculateAll(res.Dataset)

	// Phase 4: compose the business catalog.
	month := monthPrefix(opts.EndDate)
	res.Facts = metrics.ExtractFacts(res.Endpoints, r.cfg.Metrics)
	res.FinOps = metrics.NewEngine(r.cfg.Metrics).Compose(res.Facts, month, previousMonth(month))
	log.Info("pipeline: metrics composed",
		zap.Int("aggregates", len(res.Metrics.Metrics)),
		zap.Int("finops", len(res.FinOps)),
	)

	// Phase 5: export.
	if err := r.export(opts, res); err != nil {
		return nil, resilience.WrapPhase("export", opts.OutDir, err)
	}

	report.BuildSummary(res.Metrics, res.Facts, r.cfg.Metrics).Render(opts.Summary)
	log.Info("pipeline: report run complete",
		zap.Duration("elapsed", time.Since(start)),
		zap.Strings("artifacts", res.Artifacts),
	)
	return res, nil
}

func (r *Runner) persistRaw(outDir string, logs []model.UsageLog, res *RunResult) error {
	rawLogs := filepath.Join(outDir, FileRawLogs)
	if err := ingest.WriteRawLogs(rawLogs, logs); err != nil {
		return err
	}
	rawAPI := filepath.Join(outDir, FileRawAPI)
	if err := ingest.WriteResults(rawAPI, res.Endpoints); err != nil {
		return err
	}
	health := filepath.Join(outDir, FileHealthCSV)
	if err := ingest.WriteHealthCSV(health, res.Endpoints); err != nil {
		return err
	}
	res.Artifacts = append(res.Artifacts, rawLogs, rawAPI, health)
	return nil
}

func (r *Runner) export(opts Options, res *RunResult) error {
	csvPath := filepath.Join(opts.OutDir, FileMetricsCSV)
	if err := report.WriteCSV(csvPath, report.Flatten(res.Metrics)); err != nil {
		return err
	}
	if err := ValidateCSV(csvPath, r.cfg.Metrics.Currency); err != nil {
		return err
	}

	xlsxPath := filepath.Join(opts.OutDir, FileReportXLSX)
	if err := report.WriteXLSX(xlsxPath, res.FinOps, res.Facts); err != nil {
		return err
	}

	jsonPath := filepath.Join(opts.OutDir, FileFinOpsJSON)
	if err := writeJSON(jsonPath, map[string]any{
		"reporting_period": res.Metrics.ReportingPeriod,
		"metrics":          res.Metrics.Metrics,
		"finops_metrics":   res.FinOps,
	}); err != nil {
		return err
	}

	res.Artifacts = append(res.Artifacts, csvPath, xlsxPath, jsonPath)
	return nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return eris.Wrap(err, "pipeline: marshal report json")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "pipeline: write %s", path)
	}
	return nil
}

// monthPrefix reduces a YYYY-MM-DD date to its YYYY-MM month.
func monthPrefix(date string) string {
	if len(date) < 7 {
		return date
	}
	return date[:7]
}

// previousMonth steps a YYYY-MM prefix back one month. Unparseable input comes
// back unchanged so the trend metrics degrade instead of panicking.
func previousMonth(month string) string {
	t, err := time.Parse("2006-01", month)
	if err != nil {
		return month
	}
	return t.AddDate(0, -1, 0).Format("2006-01")
}
