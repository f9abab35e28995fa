package kpi

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acuworks/finops-cli/internal/model"
	"github.com/acuworks/finops-cli/pkg/github"
	"github.com/acuworks/finops-cli/pkg/jira"
)

func ts(s string) *time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return &t
}

func acus(v float64) *float64 { return &v }

func sampleInputs() Inputs {
	prURL := "https://github.com/acme/widgets/pull/1"
	unmergedURL := "https://github.com/acme/widgets/pull/2"

	return Inputs{
		SessionsCount: 3,
		PRCounters:    PRCounters{Opened: 10, Closed: 2, Merged: 6},
		Sessions: []SessionRecord{
			{SessionID: "s-1", UserID: "u-1", Status: "finished", ACUsConsumed: acus(100),
				PullRequests: []PRLink{{URL: prURL}}},
			{SessionID: "s-2", UserID: "u-2", Status: "finished", ACUsConsumed: acus(60),
				PullRequests: []PRLink{{URL: unmergedURL}}},
			{SessionID: "s-3", CreatedBy: "u-1", StatusEnum: "expired", ACUConsumed: acus(40)},
		},
		PRData: map[string]github.PRData{
			prURL: {
				URL: prURL,
				Details: &github.PullRequest{
					Title:        "PROJ-9: fix login",
					CreatedAt:    ts("2024-09-01T08:00:00Z"),
					MergedAt:     ts("2024-09-01T18:00:00Z"),
					ChangedFiles: 4, Additions: 120, Deletions: 30,
					Head: github.GitRef{Ref: "fix/PROJ-9", SHA: "abc"},
				},
				Reviews: []github.Review{
					{State: "CHANGES_REQUESTED", SubmittedAt: ts("2024-09-01T10:00:00Z")},
					{State: "APPROVED", SubmittedAt: ts("2024-09-01T16:00:00Z")},
				},
				Commits: []github.Commit{{SHA: "a"}, {SHA: "b"}, {SHA: "c"}},
				Files: []github.PRFile{
					{Filename: "auth/login.go"},
					{Filename: "auth/login_test.go"},
				},
				CheckRuns: []github.CheckRun{
					{Conclusion: "success", StartedAt: ts("2024-09-01T08:05:00Z"), CompletedAt: ts("2024-09-01T08:15:00Z")},
					{Conclusion: "skipped", StartedAt: ts("2024-09-01T08:06:00Z"), CompletedAt: ts("2024-09-01T08:25:00Z")},
				},
			},
			unmergedURL: {
				URL: unmergedURL,
				Details: &github.PullRequest{
					Title:        "cleanup",
					CreatedAt:    ts("2024-09-02T08:00:00Z"),
					ChangedFiles: 1, Additions: 10, Deletions: 2,
				},
				Files:     []github.PRFile{{Filename: "README.md"}},
				CheckRuns: []github.CheckRun{{Conclusion: "failure"}},
			},
		},
		CodeScanningAlerts: map[string][]github.Alert{
			"acme/widgets": {{State: "open"}, {State: "open"}, {State: "fixed"}},
		},
		SecretScanningAlerts: []github.Alert{{State: "open"}, {State: "resolved"}},
		DependabotAlerts: map[string][]github.Alert{
			"acme/widgets": {{State: "open"}, {State: "dismissed"}},
		},
		DependencyReviews: map[string][]github.DependencyChange{
			"acme/widgets#1": {{Name: "leftpad", Vulnerabilities: []github.Vulnerability{{Severity: "high"}}}},
		},
		JiraData: map[string]jira.IssueData{
			"PROJ-9": {Changelog: []jira.ChangelogEntry{
				{Created: "2024-09-01T09:00:00Z", Items: []jira.ChangelogItem{{Field: "status", ToString: "In Progress"}}},
				{Created: "2024-09-01T17:00:00Z", Items: []jira.ChangelogItem{{Field: "status", ToString: "Done"}}},
			}},
		},
		AuditLogs: []AuditEvent{
			{EventType: "session.created"},
			{EventType: "session.created"},
			{Action: "user.login"},
			{},
		},
	}
}

func TestCalculateAll_Adoption(t *testing.T) {
	t.Parallel()
	report := CalculateAll(sampleInputs())
	m := report.Metrics

	assert.InDelta(t, 3.0, m["Sessions count"].Value, 1e-9)
	assert.InDelta(t, 2.0, m["Active users"].Value, 1e-9)
	assert.InDelta(t, 200.0, m["Total ACU consumption"].Value, 1e-9)
	assert.InDelta(t, 66.67, m["ACU per session"].Value, 1e-9)
	assert.InDelta(t, 60.0, m["PR success rate"].Value, 1e-9)
	// Only s-1 has a merged PR.
	assert.InDelta(t, 100.0, m["ACU per merged PR"].Value, 1e-9)
	assert.Equal(t, map[string]int{"finished": 2, "expired": 1}, report.SessionsByStatus)
}

func TestCalculateAll_Productivity(t *testing.T) {
	t.Parallel()
	m := CalculateAll(sampleInputs()).Metrics

	assert.InDelta(t, 10.0, m["Average PR lead time (hours)"].Value, 1e-9)
	assert.InDelta(t, 2.0, m["Average time to first review (hours)"].Value, 1e-9)
	assert.InDelta(t, 0.5, m["Review iterations (avg)"].Value, 1e-9)
	assert.InDelta(t, 2.5, m["Average files changed per PR"].Value, 1e-9)
	assert.InDelta(t, 65.0, m["Average additions per PR"].Value, 1e-9)
	assert.InDelta(t, 1.5, m["Average commits per PR"].Value, 1e-9)
	assert.InDelta(t, 2.0, m["Agent PR count"].Value, 1e-9)
}

func TestCalculateAll_Quality(t *testing.T) {
	t.Parallel()
	m := CalculateAll(sampleInputs()).Metrics

	// PR 1 passes (success + skipped), PR 2 fails.
	assert.InDelta(t, 50.0, m["CI pass rate %"].Value, 1e-9)
	// Earliest start 08:05, latest completion 08:25.
	assert.InDelta(t, 20.0, m["Average CI duration (minutes)"].Value, 1e-9)
	assert.InDelta(t, 50.0, m["% PRs modifying tests"].Value, 1e-9)

	assert.Equal(t, model.StatusUnavailable, m["Coverage delta"].Status)
	assert.Equal(t, model.StatusUnavailable, m["Flaky test rate"].Status)
}

func TestCalculateAll_Security(t *testing.T) {
	t.Parallel()
	m := CalculateAll(sampleInputs()).Metrics

	assert.InDelta(t, 2.0, m["Open code scanning alerts"].Value, 1e-9)
	assert.InDelta(t, 1.0, m["Resolved code scanning alerts"].Value, 1e-9)
	assert.InDelta(t, 1.0, m["Net new code scanning alerts"].Value, 1e-9)
	assert.InDelta(t, 2.0, m["Secret scanning alerts"].Value, 1e-9)
	assert.InDelta(t, 1.0, m["Open secret scanning alerts"].Value, 1e-9)
	assert.InDelta(t, 1.0, m["Open Dependabot alerts"].Value, 1e-9)
	assert.InDelta(t, 1.0, m["Dependency review vulnerability findings"].Value, 1e-9)
}

func TestCalculateAll_Jira(t *testing.T) {
	t.Parallel()
	m := CalculateAll(sampleInputs()).Metrics

	// PR 1 carries PROJ-9; PR 2 has no key.
	assert.InDelta(t, 50.0, m["% PRs with Jira key"].Value, 1e-9)
	assert.InDelta(t, 8.0, m["Average issue cycle time (hours)"].Value, 1e-9)
	assert.InDelta(t, 0.0, m["Issue reopen rate %"].Value, 1e-9)
}

func TestCalculateAll_Governance(t *testing.T) {
	t.Parallel()
	report := CalculateAll(sampleInputs())

	assert.InDelta(t, 4.0, report.Metrics["Audit events volume"].Value, 1e-9)
	assert.Equal(t, map[string]int{
		"session.created": 2,
		"user.login":      1,
		"unknown":         1,
	}, report.AuditEventsByType)
}

func TestCalculateAll_EmptyInputs(t *testing.T) {
	t.Parallel()
	report := CalculateAll(Inputs{})
	m := report.Metrics

	require.NotEmpty(t, m)
	assert.Equal(t, model.StatusUnavailable, m["PR success rate"].Status)
	assert.Equal(t, "N/A (zero base)", m["PR success rate"].Reason)
	assert.Equal(t, model.StatusUnavailable, m["% PRs with Jira key"].Status)
	assert.Zero(t, m["Total ACU consumption"].Value)
	assert.Zero(t, m["CI pass rate %"].Value)
}

func TestSessionRecord_Accessors(t *testing.T) {
	t.Parallel()
	s := SessionRecord{CreatedBy: "legacy-user", StatusEnum: "working", ACUConsumed: acus(7)}
	assert.Equal(t, "legacy-user", s.User())
	assert.Equal(t, "working", s.StatusName())
	assert.InDelta(t, 7.0, s.ACUs(), 1e-9)

	assert.Equal(t, "unknown", SessionRecord{}.StatusName())
	assert.Zero(t, SessionRecord{}.ACUs())
}

func TestP95(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 0, p95(nil))
	assert.Equal(t, 5, p95([]int{5}))
	vals := make([]int, 100)
	for i := range vals {
		vals[i] = i
	}
	assert.Equal(t, 95, p95(vals))
}
