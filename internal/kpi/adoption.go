package kpi

import (
	"github.com/acuworks/finops-cli/internal/model"
)

const (
	srcMetricsSessions = "GET /v2/enterprise/metrics/sessions"
	srcMetricsPRs      = "GET /v2/enterprise/metrics/prs"
	srcSessionsList    = "GET /v2/enterprise/sessions"
	srcAuditLogs       = "GET /v2/audit-logs"
)

func calculateAdoption(in Inputs, report *Report) {
	cat := CategoryAdoption
	m := report.Metrics

	m["Sessions count"] = model.Computed("Sessions count", cat, in.SessionsCount,
		"count(sessions) in time window",
		model.SourceRef{Path: srcMetricsSessions, RawValue: in.SessionsCount})

	for _, s := range in.Sessions {
		report.SessionsByStatus[s.StatusName()]++
	}

	users := make(map[string]struct{})
	var totalACUs float64
	for _, s := range in.Sessions {
		if u := s.User(); u != "" {
			users[u] = struct{}{}
		}
		totalACUs += s.ACUs()
	}
	activeUsers := float64(len(users))
	totalACUs = round2(totalACUs)

	m["Active users"] = model.Computed("Active users", cat, activeUsers,
		"count(distinct user_id) over sessions in time window",
		model.SourceRef{Path: srcSessionsList, RawValue: activeUsers})

	m["Total ACU consumption"] = model.Computed("Total ACU consumption", cat, totalACUs,
		"sum(acus_consumed) over sessions in time window",
		model.SourceRef{Path: srcSessionsList, RawValue: totalACUs})

	sessionsForAvg := float64(len(in.Sessions))
	if sessionsForAvg == 0 {
		sessionsForAvg = in.SessionsCount
	}
	m["ACU per session"] = model.Computed("ACU per session", cat,
		round2(safeDiv(totalACUs, sessionsForAvg)),
		"sum(acus_consumed) / count(sessions)",
		model.SourceRef{Path: srcSessionsList, RawValue: totalACUs},
		model.SourceRef{Path: srcMetricsSessions, RawValue: sessionsForAvg})

	prs := in.PRCounters
	prRef := func(v float64) model.SourceRef {
		return model.SourceRef{Path: srcMetricsPRs, RawValue: v}
	}
	m["PRs opened"] = model.Computed("PRs opened", cat, prs.Opened,
		"prs_opened counter in time window", prRef(prs.Opened))
	m["PRs merged"] = model.Computed("PRs merged", cat, prs.Merged,
		"prs_merged counter in time window", prRef(prs.Merged))
	m["PRs closed"] = model.Computed("PRs closed", cat, prs.Closed,
		"prs_closed counter in time window", prRef(prs.Closed))

	if prs.Opened == 0 {
		m["PR success rate"] = model.Unavailable("PR success rate", cat, "N/A (zero base)")
	} else {
		rate := round2(safeDiv(prs.Merged, prs.Opened) * 100)
		if rate > 100 {
			rate = 100
		}
		m["PR success rate"] = model.Computed("PR success rate", cat, rate,
			"min(prs_merged / prs_opened * 100, 100)",
			prRef(prs.Opened), prRef(prs.Merged))
	}

	// A session counts toward merged-PR cost once, no matter how many of its
	// PRs merged.
	var mergedACUs float64
	var mergedCount int
	for _, s := range in.Sessions {
		for _, link := range s.PullRequests {
			data, ok := in.PRData[link.URL]
			if !ok || data.Details == nil || data.Details.MergedAt == nil {
				continue
			}
			mergedACUs += s.ACUs()
			mergedCount++
			break
		}
	}
	m["ACU per merged PR"] = model.Computed("ACU per merged PR", cat,
		round2(safeDiv(mergedACUs, float64(mergedCount))),
		"sum(acus for sessions with a merged PR) / count(sessions with a merged PR)",
		model.SourceRef{Path: srcSessionsList + " + GitHub PR merged_at", RawValue: round2(mergedACUs)})
}
