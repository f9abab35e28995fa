package kpi

import (
	"github.com/acuworks/finops-cli/internal/model"
)

func calculateGovernance(in Inputs, report *Report) {
	cat := CategoryGovernance

	for _, e := range in.AuditLogs {
		report.AuditEventsByType[e.Kind()]++
	}

	volume := float64(len(in.AuditLogs))
	report.Metrics["Audit events volume"] = model.Computed("Audit events volume", cat, volume,
		"count(audit log events) in time window; per-type tally in audit_events_by_type",
		model.SourceRef{Path: srcAuditLogs, RawValue: volume})
}
