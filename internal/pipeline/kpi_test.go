package pipeline

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acuworks/finops-cli/internal/ingest"
	"github.com/acuworks/finops-cli/internal/kpi"
	"github.com/acuworks/finops-cli/internal/model"
	"github.com/acuworks/finops-cli/internal/resilience"
	"github.com/acuworks/finops-cli/pkg/github"
)

// fakeGitHub serves a single canned PR with security data.
type fakeGitHub struct {
	pr          *github.PullRequest
	secops      []github.Alert
	secretCalls []string
}

func (f *fakeGitHub) PullRequest(_ context.Context, _ github.PRRef) (*github.PullRequest, error) {
	return f.pr, nil
}

func (f *fakeGitHub) Reviews(_ context.Context, _ github.PRRef) ([]github.Review, error) {
	return []github.Review{{State: "APPROVED"}}, nil
}

func (f *fakeGitHub) Commits(_ context.Context, _ github.PRRef) ([]github.Commit, error) {
	return []github.Commit{{SHA: "abc"}}, nil
}

func (f *fakeGitHub) Files(_ context.Context, _ github.PRRef) ([]github.PRFile, error) {
	return []github.PRFile{{Filename: "main.go", Additions: 10}}, nil
}

func (f *fakeGitHub) CheckRuns(_ context.Context, _, _, _ string) ([]github.CheckRun, error) {
	return []github.CheckRun{{Conclusion: "success"}}, nil
}

func (f *fakeGitHub) RepoPulls(_ context.Context, _, _, _ string, _ int) ([]github.PullRequest, error) {
	return nil, nil
}

func (f *fakeGitHub) CodeScanningAlerts(_ context.Context, _, _, _ string) ([]github.Alert, error) {
	return f.secops, nil
}

func (f *fakeGitHub) SecretScanningAlertsOrg(_ context.Context, org string) ([]github.Alert, error) {
	f.secretCalls = append(f.secretCalls, org)
	return []github.Alert{{State: "open"}}, nil
}

func (f *fakeGitHub) DependabotAlerts(_ context.Context, _, _ string) ([]github.Alert, error) {
	return []github.Alert{{State: "open"}, {State: "fixed"}}, nil
}

func (f *fakeGitHub) DependencyReview(_ context.Context, _, _, _, _ string) ([]github.DependencyChange, error) {
	return []github.DependencyChange{{
		Name:       "left-pad",
		ChangeType: "added",
		Vulnerabilities: []github.Vulnerability{
			{Severity: "high", AdvisoryGHSAID: "GHSA-xxxx"},
		},
	}}, nil
}

func kpiFakeClient() *fakeClient {
	return &fakeClient{
		responses: map[string]json.RawMessage{
			"/metrics/sessions": json.RawMessage(`{"sessions_count": 40}`),
			"/metrics/prs":      json.RawMessage(`{"prs_opened": 10, "prs_closed": 2, "prs_merged": 6}`),
			"/sessions": json.RawMessage(`{"sessions": [
				{"session_id": "s1", "user_id": "bob", "status": "completed", "acus_consumed": 120,
				 "pull_requests": [{"url": "https://github.com/acme/widgets/pull/7"}]},
				{"session_id": "s2", "created_by": "ana", "status_enum": "failed", "acu_consumed": 30}
			]}`),
			"/audit-logs": json.RawMessage(`[
				{"event_type": "login"},
				{"event_type": "login"},
				{"action": "export"}
			]`),
		},
	}
}

func newTestKPIRunner(fc *fakeClient, gh github.Client, outDir string) *KPIRunner {
	collector := ingest.NewCollector(fc, resilience.NewEndpointBreakers(resilience.DefaultCircuitBreakerConfig()))
	return NewKPIRunner(testRunnerConfig(outDir), collector, gh, nil)
}

func TestKPIRun_FullFlow(t *testing.T) {
	outDir := t.TempDir()
	created := time.Date(2024, 9, 1, 10, 0, 0, 0, time.UTC)
	merged := created.Add(8 * time.Hour)
	gh := &fakeGitHub{
		pr: &github.PullRequest{
			Number:    7,
			Title:     "PROJ-12 fix pagination",
			Merged:    true,
			CreatedAt: &created,
			MergedAt:  &merged,
			Base:      github.GitRef{SHA: "base000"},
			Head:      github.GitRef{Ref: "fix/PROJ-12", SHA: "head111"},
		},
	}

	report, err := newTestKPIRunner(kpiFakeClient(), gh, outDir).Run(context.Background(), KPIOptions{
		StartDate: "2024-09-01",
		EndDate:   "2024-09-30",
		GitHubOrg: "acme",
	})
	require.NoError(t, err)

	m := report.Metrics
	assert.Equal(t, 40.0, m["Sessions count"].Value)
	assert.Equal(t, 10.0, m["PRs opened"].Value)

	// One PR, merged after 8 hours.
	assert.InDelta(t, 8.0, m["Average PR lead time (hours)"].Value, 0.001)

	// Security inputs flowed through: dependabot 2 alerts for acme/widgets,
	// dependency review vulnerability, org secret scanning.
	assert.Equal(t, 1.0, m["Open Dependabot alerts"].Value)
	assert.Equal(t, 1.0, m["Dependency review vulnerability findings"].Value)
	assert.Equal(t, []string{"acme"}, gh.secretCalls)

	assert.Equal(t, map[string]int{"completed": 1, "failed": 1}, report.SessionsByStatus)
	assert.Equal(t, map[string]int{"login": 2, "export": 1}, report.AuditEventsByType)

	// The artifact round-trips.
	data, err := os.ReadFile(filepath.Join(outDir, FileKPIJSON))
	require.NoError(t, err)
	var back kpi.Report
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Len(t, back.Metrics, len(m))
}

func TestKPIRun_DegradedEnterpriseEndpoints(t *testing.T) {
	fc := &fakeClient{errs: map[string]error{
		"/metrics/sessions": &resilience.StatusError{Code: 500, Endpoint: "/metrics/sessions"},
		"/metrics/prs":      &resilience.StatusError{Code: 500, Endpoint: "/metrics/prs"},
		"/sessions":         &resilience.StatusError{Code: 500, Endpoint: "/sessions"},
		"/audit-logs":       &resilience.StatusError{Code: 500, Endpoint: "/audit-logs"},
	}}

	report, err := newTestKPIRunner(fc, &fakeGitHub{}, t.TempDir()).Run(context.Background(), KPIOptions{
		StartDate: "2024-09-01",
		EndDate:   "2024-09-30",
	})
	require.NoError(t, err)

	// No sources, but the catalog still comes out with degraded variants.
	assert.NotEmpty(t, report.Metrics)
	assert.Equal(t, model.StatusUnavailable, report.Metrics["PR success rate"].Status)
}

func TestExtractPRURLs_DedupesAndFiltersNonGitHub(t *testing.T) {
	sessions := []kpi.SessionRecord{
		{PullRequests: []kpi.PRLink{
			{URL: "https://github.com/acme/widgets/pull/7"},
			{URL: "https://github.com/acme/widgets/pull/7"},
			{URL: "https://gitlab.com/acme/widgets/-/merge_requests/3"},
			{URL: ""},
		}},
		{PullRequests: []kpi.PRLink{{URL: "https://github.com/acme/gears/pull/1"}}},
	}

	urls := extractPRURLs(sessions)
	assert.Equal(t, []string{
		"https://github.com/acme/widgets/pull/7",
		"https://github.com/acme/gears/pull/1",
	}, urls)
}

func TestExtractList_BareArrayAndWrapped(t *testing.T) {
	results := map[string]ingest.FetchResult{
		"audit_logs": {StatusCode: 200, Response: json.RawMessage(`[{"event_type":"login"}]`)},
		"sessions_list": {StatusCode: 200, Response: json.RawMessage(
			`{"items": [{"session_id":"s1"}]}`)},
		"broken": {StatusCode: 200, Response: json.RawMessage(`{{`)},
	}

	events := extractList[kpi.AuditEvent](results, "audit_logs", "events")
	require.Len(t, events, 1)
	assert.Equal(t, "login", events[0].Kind())

	sessions := extractList[kpi.SessionRecord](results, "sessions_list", "sessions")
	require.Len(t, sessions, 1)
	assert.Equal(t, "s1", sessions[0].SessionID)

	assert.Nil(t, extractList[kpi.AuditEvent](results, "broken", "events"))
	assert.Nil(t, extractList[kpi.AuditEvent](results, "absent", "events"))
}

func TestExtractSessionsCount_FieldFallback(t *testing.T) {
	count := extractSessionsCount(map[string]ingest.FetchResult{
		"metrics_sessions": {StatusCode: 200, Response: json.RawMessage(`{"total_sessions": 17}`)},
	})
	assert.Equal(t, 17.0, count)

	count = extractSessionsCount(map[string]ingest.FetchResult{
		"metrics_sessions": {StatusCode: 200, Response: json.RawMessage(`{"sessions_count": 9, "total_sessions": 17}`)},
	})
	assert.Equal(t, 9.0, count)

	assert.Zero(t, extractSessionsCount(map[string]ingest.FetchResult{}))
}
