// Package model holds the shared data types flowing between ingestion,
// transformation, and the metrics layers.
package model

import "time"

// SessionOutcome is the terminal state of an agent session.
type SessionOutcome string

const (
	OutcomeSuccess SessionOutcome = "Success"
	OutcomeFailure SessionOutcome = "Failure"
	OutcomeIdle    SessionOutcome = "Idle"
)

// TaskType categorizes the work a session performed.
type TaskType string

const (
	TaskBugFix        TaskType = "BugFix"
	TaskRefactor      TaskType = "Refactor"
	TaskFeature       TaskType = "Feature"
	TaskTesting       TaskType = "Testing"
	TaskDocumentation TaskType = "Documentation"
)

// UsageLog is a raw usage record exactly as the provider API returns it.
type UsageLog struct {
	SessionID      string         `json:"session_id"`
	UserID         string         `json:"user_id"`
	OrganizationID string         `json:"organization_id"`
	ProjectID      string         `json:"project_id"`
	PullRequestID  string         `json:"pull_request_id,omitempty"`
	Timestamp      time.Time      `json:"timestamp"`
	ACUConsumed    float64        `json:"acu_consumed"`
	BusinessUnit   string         `json:"business_unit"`
	TaskType       TaskType       `json:"task_type"`
	IsOutOfHours   bool           `json:"is_out_of_hours"`
	IsMerged       bool           `json:"is_merged"`
	SessionOutcome SessionOutcome `json:"session_outcome"`
}

// Session is a normalized usage record. Immutable once produced by the
// transform step.
type Session struct {
	SessionID       string `json:"session_id"`
	UserEmail       string `json:"user_email"`
	DurationMinutes int    `json:"duration_minutes"`
	ACUsConsumed    int    `json:"acus_consumed"`
	TaskType        string `json:"task_type"`
	Status          string `json:"status"`
}

// User is a distinct person observed in the usage data.
type User struct {
	Email      string `json:"user_email"`
	Department string `json:"department"`
	Role       string `json:"role"`
}

// ReportingPeriod bounds a metrics run.
type ReportingPeriod struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Month     string `json:"month"`
}

// Dataset is the normalized input to the metrics calculator.
type Dataset struct {
	Organization    string          `json:"organization"`
	ReportingPeriod ReportingPeriod `json:"reporting_period"`
	Sessions        []Session       `json:"sessions"`
	Users           []User          `json:"user_details"`
}

// CostSettings mirrors the provider's cost configuration endpoint.
type CostSettings struct {
	ACUBaseCost          float64            `json:"acu_base_cost"`
	OutOfHoursMultiplier float64            `json:"out_of_hours_multiplier"`
	BusinessUnitRates    map[string]float64 `json:"business_unit_rates"`
}
