// Package kpi computes the engineering KPI catalog across six categories
// from enterprise session data, GitHub PR data, Jira issues, and audit logs.
package kpi

import (
	"sort"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/acuworks/finops-cli/internal/model"
	"github.com/acuworks/finops-cli/pkg/github"
	"github.com/acuworks/finops-cli/pkg/jira"
)

// KPI categories.
const (
	CategoryAdoption     = "ADOPTION"
	CategoryProductivity = "PRODUCTIVITY"
	CategoryQuality      = "QUALITY"
	CategorySecurity     = "SECURITY"
	CategoryJira         = "JIRA"
	CategoryGovernance   = "GOVERNANCE"
)

// SessionRecord is one entry of the sessions list endpoint. Providers have
// shipped both old and new field names, so the alternates are kept and
// resolved through accessors.
type SessionRecord struct {
	SessionID    string   `json:"session_id"`
	UserID       string   `json:"user_id"`
	CreatedBy    string   `json:"created_by"`
	Status       string   `json:"status"`
	StatusEnum   string   `json:"status_enum"`
	ACUsConsumed *float64 `json:"acus_consumed"`
	ACUConsumed  *float64 `json:"acu_consumed"`
	PullRequests []PRLink `json:"pull_requests"`
}

// PRLink is a pull request reference attached to a session.
type PRLink struct {
	URL string `json:"url"`
}

// User resolves the session's user, preferring the current field name.
func (s SessionRecord) User() string {
	if s.UserID != "" {
		return s.UserID
	}
	return s.CreatedBy
}

// StatusName resolves the session's status, defaulting to "unknown".
func (s SessionRecord) StatusName() string {
	if s.Status != "" {
		return s.Status
	}
	if s.StatusEnum != "" {
		return s.StatusEnum
	}
	return "unknown"
}

// ACUs resolves the session's consumption across field spellings.
func (s SessionRecord) ACUs() float64 {
	if s.ACUsConsumed != nil {
		return *s.ACUsConsumed
	}
	if s.ACUConsumed != nil {
		return *s.ACUConsumed
	}
	return 0
}

// AuditEvent is one audit log entry. Event type naming drifted across
// provider versions.
type AuditEvent struct {
	EventType string `json:"event_type"`
	Type      string `json:"type"`
	Action    string `json:"action"`
}

// Kind resolves the event type, defaulting to "unknown".
func (e AuditEvent) Kind() string {
	for _, v := range []string{e.EventType, e.Type, e.Action} {
		if v != "" {
			return v
		}
	}
	return "unknown"
}

// PRCounters are the aggregate PR counts from the PR metrics endpoint.
type PRCounters struct {
	Opened float64 `json:"prs_opened"`
	Closed float64 `json:"prs_closed"`
	Merged float64 `json:"prs_merged"`
}

// Inputs bundles every data source the KPI engine consumes. Zero-valued
// fields mean the source was not collected; dependent KPIs degrade to the
// unavailable variant.
type Inputs struct {
	SessionsCount        float64
	PRCounters           PRCounters
	Sessions             []SessionRecord
	PRData               map[string]github.PRData
	CodeScanningAlerts   map[string][]github.Alert
	SecretScanningAlerts []github.Alert
	DependabotAlerts     map[string][]github.Alert
	DependencyReviews    map[string][]github.DependencyChange
	JiraData             map[string]jira.IssueData
	AuditLogs            []AuditEvent
}

// Report is the full KPI engine output. The grouped tallies that have no
// fixed key set (session statuses, audit event types) ride alongside the
// scalar metric catalog instead of being squeezed into it.
type Report struct {
	Metrics           map[string]model.FinOpsMetric `json:"metrics"`
	SessionsByStatus  map[string]int                `json:"sessions_by_status"`
	AuditEventsByType map[string]int                `json:"audit_events_by_type"`
}

// CalculateAll runs every category calculator and merges the results.
func CalculateAll(in Inputs) Report {
	report := Report{
		Metrics:           make(map[string]model.FinOpsMetric),
		SessionsByStatus:  make(map[string]int),
		AuditEventsByType: make(map[string]int),
	}

	groups := []struct {
		name string
		fn   func(Inputs, *Report)
	}{
		{"adoption", calculateAdoption},
		{"productivity", calculateProductivity},
		{"quality", calculateQuality},
		{"security", calculateSecurity},
		{"jira", calculateJira},
		{"governance", calculateGovernance},
	}
	for _, g := range groups {
		before := len(report.Metrics)
		g.fn(in, &report)
		zap.L().Info("calculated KPI group",
			zap.String("group", g.name),
			zap.Int("metrics", len(report.Metrics)-before),
		)
	}

	zap.L().Info("KPI calculation complete", zap.Int("total", len(report.Metrics)))
	return report
}

func safeDiv(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}

func round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

func mean(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	var sum float64
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

// p95 returns the 95th percentile by rank, matching index int(n*0.95) on the
// sorted values.
func p95(vals []int) int {
	if len(vals) == 0 {
		return 0
	}
	sorted := make([]int, len(vals))
	copy(sorted, vals)
	sort.Ints(sorted)
	idx := int(float64(len(sorted)) * 0.95)
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
