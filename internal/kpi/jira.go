package kpi

import (
	"github.com/acuworks/finops-cli/internal/model"
	"github.com/acuworks/finops-cli/pkg/jira"
)

const (
	jiraStartStatus  = "In Progress"
	jiraDoneStatus   = "Done"
	jiraReopenStatus = "Reopened"
	reopenDays       = 30

	srcJiraChangelog = "Jira changelog API"
	srcPRJiraRegex   = "GitHub PR title/body/branch + Jira key regex"
)

func calculateJira(in Inputs, report *Report) {
	cat := CategoryJira
	m := report.Metrics

	var totalPRs, withJira float64
	for _, data := range in.PRData {
		if data.Details == nil {
			continue
		}
		totalPRs++
		keys := jira.ExtractKeysFromTexts(
			data.Details.Title,
			data.Details.Body,
			data.Details.Head.Ref,
		)
		if len(keys) > 0 {
			withJira++
		}
	}
	if totalPRs == 0 {
		m["% PRs with Jira key"] = model.Unavailable("% PRs with Jira key", cat, "N/A (zero base)")
	} else {
		m["% PRs with Jira key"] = model.Computed("% PRs with Jira key", cat,
			round2(safeDiv(withJira, totalPRs)*100),
			"count(PRs with a Jira key in title/body/branch) / count(PRs) * 100",
			model.SourceRef{Path: srcPRJiraRegex, RawValue: withJira})
	}

	var cycleTimes []float64
	var reopened, delivered float64
	for _, data := range in.JiraData {
		if len(data.Changelog) == 0 {
			continue
		}
		delivered++
		if hours, ok := jira.CycleTime(data.Changelog, jiraStartStatus, jiraDoneStatus); ok {
			cycleTimes = append(cycleTimes, hours)
		}
		if jira.WasReopened(data.Changelog, jiraDoneStatus, jiraReopenStatus, reopenDays) {
			reopened++
		}
	}

	m["Average issue cycle time (hours)"] = model.Computed("Average issue cycle time (hours)", cat,
		round2(mean(cycleTimes)),
		"avg(first Done transition - first In Progress transition) in hours",
		model.SourceRef{Path: srcJiraChangelog, RawValue: float64(len(cycleTimes))})

	m["Issue reopen rate %"] = model.Computed("Issue reopen rate %", cat,
		round2(safeDiv(reopened, delivered)*100),
		"count(issues reopened within 30 days of Done) / count(issues delivered) * 100",
		model.SourceRef{Path: srcJiraChangelog, RawValue: delivered})
}
