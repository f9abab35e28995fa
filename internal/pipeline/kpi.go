package pipeline

import (
	"context"
	"encoding/json"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/acuworks/finops-cli/internal/config"
	"github.com/acuworks/finops-cli/internal/ingest"
	"github.com/acuworks/finops-cli/internal/kpi"
	"github.com/acuworks/finops-cli/internal/resilience"
	"github.com/acuworks/finops-cli/pkg/github"
	"github.com/acuworks/finops-cli/pkg/jira"
)

// FileKPIJSON is the KPI report artifact name.
const FileKPIJSON = "kpi_results.json"

// KPIOptions bounds one KPI run.
type KPIOptions struct {
	StartDate string
	EndDate   string
	// GitHubOrg enables the org-wide secret scanning lookup when set.
	GitHubOrg string
	OutDir    string
}

// KPIRunner assembles every KPI data source and runs the engine. The Jira
// client may be nil when Jira is not configured; Jira KPIs then degrade.
type KPIRunner struct {
	cfg       *config.Config
	collector *ingest.Collector
	github    github.Client
	jira      jira.Client
}

// NewKPIRunner creates a KPI pipeline runner.
func NewKPIRunner(cfg *config.Config, collector *ingest.Collector, gh github.Client, jc jira.Client) *KPIRunner {
	return &KPIRunner{cfg: cfg, collector: collector, github: gh, jira: jc}
}

// Run collects the enterprise, GitHub, and Jira sources, computes all KPIs,
// and writes the JSON artifact. Individual source failures narrow the report
// instead of aborting it.
func (r *KPIRunner) Run(ctx context.Context, opts KPIOptions) (*kpi.Report, error) {
	log := zap.L().With(zap.String("start", opts.StartDate), zap.String("end", opts.EndDate))
	log.Info("kpi: starting report run")

	if opts.OutDir == "" {
		opts.OutDir = r.cfg.Output.Dir
	}
	if err := os.MkdirAll(opts.OutDir, 0o755); err != nil {
		return nil, resilience.WrapPhase("export", opts.OutDir, err)
	}

	params := map[string]url.Values{
		"metrics_sessions": {
			"start_date": []string{opts.StartDate},
			"end_date":   []string{opts.EndDate},
		},
		"metrics_prs": {
			"start_date": []string{opts.StartDate},
			"end_date":   []string{opts.EndDate},
		},
		"sessions_list": {
			"created_date_from": []string{opts.StartDate},
			"created_date_to":   []string{opts.EndDate},
		},
	}
	results := r.collector.CollectEndpoints(ctx, KPIEndpoints, params)

	in := kpi.Inputs{
		SessionsCount: extractSessionsCount(results),
		Sessions:      extractList[kpi.SessionRecord](results, "sessions_list", "sessions"),
		AuditLogs:     extractList[kpi.AuditEvent](results, "audit_logs", "events"),
	}
	if body, ok := decodeEndpoint[kpi.PRCounters](results, "metrics_prs"); ok {
		in.PRCounters = body
	}
	log.Info("kpi: enterprise sources collected",
		zap.Float64("sessions_count", in.SessionsCount),
		zap.Int("sessions", len(in.Sessions)),
		zap.Int("audit_events", len(in.AuditLogs)),
	)

	prURLs := extractPRURLs(in.Sessions)
	forbidden := github.NewForbiddenRepos()
	in.PRData = github.FetchAllPRData(ctx, r.github, prURLs, forbidden)

	r.fetchSecurityData(ctx, opts.GitHubOrg, &in)
	r.fetchJiraData(ctx, &in)

	report := kpi.CalculateAll(in)

	path := filepath.Join(opts.OutDir, FileKPIJSON)
	if err := writeJSON(path, report); err != nil {
		return nil, resilience.WrapPhase("export", path, err)
	}
	log.Info("kpi: report run complete",
		zap.Int("metrics", len(report.Metrics)),
		zap.String("path", path),
	)
	return &report, nil
}

// fetchSecurityData fills the GitHub security inputs: per-repo code scanning
// and Dependabot alerts, per-PR dependency review, and the org-wide secret
// scanning lookup. Failures log and leave the slot empty.
func (r *KPIRunner) fetchSecurityData(ctx context.Context, org string, in *kpi.Inputs) {
	in.CodeScanningAlerts = make(map[string][]github.Alert)
	in.DependabotAlerts = make(map[string][]github.Alert)
	in.DependencyReviews = make(map[string][]github.DependencyChange)

	for _, repo := range uniqueRepos(in.PRData) {
		owner, name, _ := strings.Cut(repo, "/")

		alerts, err := r.github.CodeScanningAlerts(ctx, owner, name, "")
		if err != nil {
			zap.L().Warn("kpi: code scanning fetch failed", zap.String("repo", repo), zap.Error(err))
		} else {
			in.CodeScanningAlerts[repo] = alerts
		}

		dep, err := r.github.DependabotAlerts(ctx, owner, name)
		if err != nil {
			zap.L().Warn("kpi: dependabot fetch failed", zap.String("repo", repo), zap.Error(err))
		} else {
			in.DependabotAlerts[repo] = dep
		}
	}

	for prURL, data := range in.PRData {
		if data.Details == nil || data.Details.Base.SHA == "" || data.Details.Head.SHA == "" {
			continue
		}
		changes, err := r.github.DependencyReview(ctx,
			data.Ref.Owner, data.Ref.Repo, data.Details.Base.SHA, data.Details.Head.SHA)
		if err != nil {
			zap.L().Warn("kpi: dependency review fetch failed", zap.String("pr", prURL), zap.Error(err))
			continue
		}
		if len(changes) > 0 {
			in.DependencyReviews[prURL] = changes
		}
	}

	if org != "" {
		alerts, err := r.github.SecretScanningAlertsOrg(ctx, org)
		if err != nil {
			zap.L().Warn("kpi: secret scanning fetch failed", zap.String("org", org), zap.Error(err))
		} else {
			in.SecretScanningAlerts = alerts
		}
	}
}

// fetchJiraData extracts issue keys from PR titles, bodies, and branch names,
// then pulls those issues with their changelogs.
func (r *KPIRunner) fetchJiraData(ctx context.Context, in *kpi.Inputs) {
	if r.jira == nil {
		zap.L().Info("kpi: jira not configured, skipping issue fetch")
		return
	}

	seen := make(map[string]struct{})
	var keys []string
	for _, data := range in.PRData {
		if data.Details == nil {
			continue
		}
		for _, key := range jira.ExtractKeysFromTexts(data.Details.Title, data.Details.Body, data.Details.Head.Ref) {
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			keys = append(keys, key)
		}
	}
	if len(keys) == 0 {
		return
	}
	in.JiraData = jira.FetchIssueData(ctx, r.jira, keys)
}

// extractSessionsCount reads the session total off the metrics endpoint,
// tolerating both field spellings the provider has used.
func extractSessionsCount(results map[string]ingest.FetchResult) float64 {
	body, ok := decodeEndpoint[struct {
		SessionsCount *float64 `json:"sessions_count"`
		TotalSessions *float64 `json:"total_sessions"`
	}](results, "metrics_sessions")
	if !ok {
		return 0
	}
	if body.SessionsCount != nil {
		return *body.SessionsCount
	}
	if body.TotalSessions != nil {
		return *body.TotalSessions
	}
	return 0
}

// extractList decodes an endpoint that may answer with a bare array or an
// object wrapping it under a well-known key ("sessions"/"events", "data",
// "items").
func extractList[T any](results map[string]ingest.FetchResult, name, primaryKey string) []T {
	res, ok := results[name]
	if !ok || res.StatusCode != 200 || len(res.Response) == 0 {
		zap.L().Warn("kpi: endpoint unavailable", zap.String("endpoint", name), zap.Int("status", res.StatusCode))
		return nil
	}

	var direct []T
	if err := json.Unmarshal(res.Response, &direct); err == nil {
		return direct
	}

	var wrapped map[string]json.RawMessage
	if err := json.Unmarshal(res.Response, &wrapped); err != nil {
		zap.L().Warn("kpi: unparseable endpoint body", zap.String("endpoint", name), zap.Error(err))
		return nil
	}
	for _, key := range []string{primaryKey, "data", "items"} {
		raw, ok := wrapped[key]
		if !ok {
			continue
		}
		var out []T
		if err := json.Unmarshal(raw, &out); err == nil {
			return out
		}
	}
	return nil
}

func decodeEndpoint[T any](results map[string]ingest.FetchResult, name string) (T, bool) {
	var body T
	res, ok := results[name]
	if !ok || res.StatusCode != 200 || len(res.Response) == 0 {
		return body, false
	}
	if err := json.Unmarshal(res.Response, &body); err != nil {
		zap.L().Warn("kpi: unparseable endpoint body", zap.String("endpoint", name), zap.Error(err))
		return body, false
	}
	return body, true
}

// extractPRURLs collects the unique GitHub PR URLs attached to sessions.
func extractPRURLs(sessions []kpi.SessionRecord) []string {
	seen := make(map[string]struct{})
	var urls []string
	for _, s := range sessions {
		for _, pr := range s.PullRequests {
			if pr.URL == "" || !strings.Contains(pr.URL, "github.com") {
				continue
			}
			if _, ok := seen[pr.URL]; ok {
				continue
			}
			seen[pr.URL] = struct{}{}
			urls = append(urls, pr.URL)
		}
	}
	return urls
}

// uniqueRepos lists the distinct repositories behind the fetched PRs.
func uniqueRepos(prData map[string]github.PRData) []string {
	seen := make(map[string]struct{})
	var repos []string
	for _, data := range prData {
		key := data.Ref.RepoKey()
		if key == "/" || key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		repos = append(repos, key)
	}
	return repos
}
