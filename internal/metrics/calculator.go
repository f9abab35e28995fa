// Package metrics implements the three-layer metrics engine: base fact
// extraction from raw endpoint responses, the derived session aggregates, and
// the composed business metrics.
package metrics

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/acuworks/finops-cli/internal/config"
	"github.com/acuworks/finops-cli/internal/model"
)

// Calculator derives the twenty foundational aggregates from a normalized
// dataset. Every method is pure and total: empty input yields zeros and empty
// maps, never an error.
type Calculator struct {
	cfg config.MetricsConfig
}

// NewCalculator creates a calculator with the given pricing assumptions.
func NewCalculator(cfg config.MetricsConfig) *Calculator {
	return &Calculator{cfg: cfg}
}

// Result is the full output of a calculator run.
type Result struct {
	Config          config.MetricsConfig  `json:"config"`
	ReportingPeriod model.ReportingPeriod `json:"reporting_period"`
	Metrics         map[string]any        `json:"metrics"`
}

// MetricKeys lists every key CalculateAll emits, in report order.
var MetricKeys = []string{
	"01_total_monthly_cost",
	"02_total_acus",
	"03_cost_per_user",
	"04_acus_per_session",
	"05_average_acus_per_session",
	"06_total_sessions",
	"07_sessions_per_user",
	"08_total_duration_minutes",
	"09_average_session_duration",
	"10_acus_per_minute",
	"11_cost_per_minute",
	"12_unique_users",
	"13_sessions_by_task_type",
	"14_acus_by_task_type",
	"15_cost_by_task_type",
	"16_sessions_by_department",
	"17_acus_by_department",
	"18_cost_by_department",
	"19_average_cost_per_user",
	"20_efficiency_ratio",
}

// TotalMonthlyCost is total ACUs priced at the configured rate.
func (c *Calculator) TotalMonthlyCost(ds model.Dataset) float64 {
	return float64(c.TotalACUs(ds)) * c.cfg.PricePerACU
}

// TotalACUs sums compute units across all sessions.
func (c *Calculator) TotalACUs(ds model.Dataset) int {
	total := 0
	for _, s := range ds.Sessions {
		total += s.ACUsConsumed
	}
	return total
}

// CostPerUser maps each user to their priced consumption.
func (c *Calculator) CostPerUser(ds model.Dataset) map[string]float64 {
	out := make(map[string]float64)
	for _, s := range ds.Sessions {
		out[s.UserEmail] += float64(s.ACUsConsumed) * c.cfg.PricePerACU
	}
	return out
}

// ACUsPerSession maps each session to its consumption.
func (c *Calculator) ACUsPerSession(ds model.Dataset) map[string]int {
	out := make(map[string]int, len(ds.Sessions))
	for _, s := range ds.Sessions {
		out[s.SessionID] = s.ACUsConsumed
	}
	return out
}

// AverageACUsPerSession is mean consumption per session.
func (c *Calculator) AverageACUsPerSession(ds model.Dataset) float64 {
	if len(ds.Sessions) == 0 {
		return 0
	}
	return float64(c.TotalACUs(ds)) / float64(len(ds.Sessions))
}

// TotalSessions counts sessions.
func (c *Calculator) TotalSessions(ds model.Dataset) int {
	return len(ds.Sessions)
}

// SessionsPerUser maps each user to their session count.
func (c *Calculator) SessionsPerUser(ds model.Dataset) map[string]int {
	out := make(map[string]int)
	for _, s := range ds.Sessions {
		out[s.UserEmail]++
	}
	return out
}

// TotalDurationMinutes sums session durations.
func (c *Calculator) TotalDurationMinutes(ds model.Dataset) int {
	total := 0
	for _, s := range ds.Sessions {
		total += s.DurationMinutes
	}
	return total
}

// AverageSessionDuration is mean minutes per session.
func (c *Calculator) AverageSessionDuration(ds model.Dataset) float64 {
	if len(ds.Sessions) == 0 {
		return 0
	}
	return float64(c.TotalDurationMinutes(ds)) / float64(len(ds.Sessions))
}

// ACUsPerMinute is consumption intensity over the whole period.
func (c *Calculator) ACUsPerMinute(ds model.Dataset) float64 {
	mins := c.TotalDurationMinutes(ds)
	if mins == 0 {
		return 0
	}
	return float64(c.TotalACUs(ds)) / float64(mins)
}

// CostPerMinute prices the per-minute intensity.
func (c *Calculator) CostPerMinute(ds model.Dataset) float64 {
	return c.ACUsPerMinute(ds) * c.cfg.PricePerACU
}

// UniqueUsers counts distinct users observed in sessions.
func (c *Calculator) UniqueUsers(ds model.Dataset) int {
	seen := make(map[string]struct{})
	for _, s := range ds.Sessions {
		seen[s.UserEmail] = struct{}{}
	}
	return len(seen)
}

// SessionsByTaskType groups session counts by task type.
func (c *Calculator) SessionsByTaskType(ds model.Dataset) map[string]int {
	out := make(map[string]int)
	for _, s := range ds.Sessions {
		out[taskOrUnknown(s.TaskType)]++
	}
	return out
}

// ACUsByTaskType groups consumption by task type.
func (c *Calculator) ACUsByTaskType(ds model.Dataset) map[string]int {
	out := make(map[string]int)
	for _, s := range ds.Sessions {
		out[taskOrUnknown(s.TaskType)] += s.ACUsConsumed
	}
	return out
}

// CostByTaskType prices per-task-type consumption.
func (c *Calculator) CostByTaskType(ds model.Dataset) map[string]float64 {
	out := make(map[string]float64)
	for task, acus := range c.ACUsByTaskType(ds) {
		out[task] = float64(acus) * c.cfg.PricePerACU
	}
	return out
}

// SessionsByDepartment groups session counts by the user's department.
func (c *Calculator) SessionsByDepartment(ds model.Dataset) map[string]int {
	depts := departmentIndex(ds)
	out := make(map[string]int)
	for _, s := range ds.Sessions {
		out[depts[s.UserEmail]]++
	}
	return out
}

// ACUsByDepartment groups consumption by department.
func (c *Calculator) ACUsByDepartment(ds model.Dataset) map[string]int {
	depts := departmentIndex(ds)
	out := make(map[string]int)
	for _, s := range ds.Sessions {
		out[depts[s.UserEmail]] += s.ACUsConsumed
	}
	return out
}

// CostByDepartment prices per-department consumption.
func (c *Calculator) CostByDepartment(ds model.Dataset) map[string]float64 {
	out := make(map[string]float64)
	for dept, acus := range c.ACUsByDepartment(ds) {
		out[dept] = float64(acus) * c.cfg.PricePerACU
	}
	return out
}

// AverageCostPerUser is total cost spread over distinct users.
func (c *Calculator) AverageCostPerUser(ds model.Dataset) float64 {
	users := c.UniqueUsers(ds)
	if users == 0 {
		return 0
	}
	return c.TotalMonthlyCost(ds) / float64(users)
}

// EfficiencyRatio is ACUs consumed per hour of session time.
func (c *Calculator) EfficiencyRatio(ds model.Dataset) float64 {
	hours := float64(c.TotalDurationMinutes(ds)) / 60
	if hours == 0 {
		return 0
	}
	return float64(c.TotalACUs(ds)) / hours
}

// CalculateAll computes the full metric catalog. Every key in MetricKeys is
// always present; a metric that panics is logged and left nil so one bad
// aggregate cannot take the report down.
func (c *Calculator) CalculateAll(ds model.Dataset) Result {
	compute := map[string]func() any{
		"01_total_monthly_cost":       func() any { return c.TotalMonthlyCost(ds) },
		"02_total_acus":               func() any { return c.TotalACUs(ds) },
		"03_cost_per_user":            func() any { return c.CostPerUser(ds) },
		"04_acus_per_session":         func() any { return c.ACUsPerSession(ds) },
		"05_average_acus_per_session": func() any { return c.AverageACUsPerSession(ds) },
		"06_total_sessions":           func() any { return c.TotalSessions(ds) },
		"07_sessions_per_user":        func() any { return c.SessionsPerUser(ds) },
		"08_total_duration_minutes":   func() any { return c.TotalDurationMinutes(ds) },
		"09_average_session_duration": func() any { return c.AverageSessionDuration(ds) },
		"10_acus_per_minute":          func() any { return c.ACUsPerMinute(ds) },
		"11_cost_per_minute":          func() any { return c.CostPerMinute(ds) },
		"12_unique_users":             func() any { return c.UniqueUsers(ds) },
		"13_sessions_by_task_type":    func() any { return c.SessionsByTaskType(ds) },
		"14_acus_by_task_type":        func() any { return c.ACUsByTaskType(ds) },
		"15_cost_by_task_type":        func() any { return c.CostByTaskType(ds) },
		"16_sessions_by_department":   func() any { return c.SessionsByDepartment(ds) },
		"17_acus_by_department":       func() any { return c.ACUsByDepartment(ds) },
		"18_cost_by_department":       func() any { return c.CostByDepartment(ds) },
		"19_average_cost_per_user":    func() any { return c.AverageCostPerUser(ds) },
		"20_efficiency_ratio":         func() any { return c.EfficiencyRatio(ds) },
	}

	out := make(map[string]any, len(MetricKeys))
	for _, key := range MetricKeys {
		out[key] = safeCompute(key, compute[key])
	}

	return Result{
		Config:          c.cfg,
		ReportingPeriod: ds.ReportingPeriod,
		Metrics:         out,
	}
}

// safeCompute isolates a single metric: a panic becomes a nil slot instead of
// a dead report.
func safeCompute(name string, fn func() any) (val any) {
	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("metric calculation failed",
				zap.String("metric", name),
				zap.String("panic", fmt.Sprint(r)),
			)
			val = nil
		}
	}()
	return fn()
}

func departmentIndex(ds model.Dataset) map[string]string {
	idx := make(map[string]string, len(ds.Users))
	for _, u := range ds.Users {
		idx[u.Email] = u.Department
	}
	// Sessions from users missing in the roster fall into Unknown.
	for _, s := range ds.Sessions {
		if _, ok := idx[s.UserEmail]; !ok {
			idx[s.UserEmail] = "Unknown"
		}
	}
	return idx
}

func taskOrUnknown(task string) string {
	if task == "" {
		return "unknown"
	}
	return task
}
