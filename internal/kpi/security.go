package kpi

import (
	"github.com/acuworks/finops-cli/internal/model"
)

const (
	srcCodeScanAPI   = "GitHub Code Scanning API"
	srcSecretScanAPI = "GitHub Secret Scanning API"
	srcDependabotAPI = "GitHub Dependabot API"
	srcDepReviewAPI  = "GitHub Dependency Review API"
)

func calculateSecurity(in Inputs, report *Report) {
	cat := CategorySecurity
	m := report.Metrics

	var csOpen, csFixed float64
	for _, alerts := range in.CodeScanningAlerts {
		for _, a := range alerts {
			switch a.State {
			case "open":
				csOpen++
			case "fixed", "dismissed":
				csFixed++
			}
		}
	}
	m["Open code scanning alerts"] = model.Computed("Open code scanning alerts", cat, csOpen,
		"count(code scanning alerts with state open) in touched repos",
		model.SourceRef{Path: srcCodeScanAPI, RawValue: csOpen})
	m["Resolved code scanning alerts"] = model.Computed("Resolved code scanning alerts", cat, csFixed,
		"count(code scanning alerts fixed or dismissed) in touched repos",
		model.SourceRef{Path: srcCodeScanAPI, RawValue: csFixed})
	m["Net new code scanning alerts"] = model.Computed("Net new code scanning alerts", cat, csOpen-csFixed,
		"alerts opened - alerts resolved in touched repos",
		model.SourceRef{Path: srcCodeScanAPI, RawValue: csOpen},
		model.SourceRef{Path: srcCodeScanAPI, RawValue: csFixed})

	secretTotal := float64(len(in.SecretScanningAlerts))
	var secretOpen float64
	for _, a := range in.SecretScanningAlerts {
		if a.State == "open" {
			secretOpen++
		}
	}
	m["Secret scanning alerts"] = model.Computed("Secret scanning alerts", cat, secretTotal,
		"count(secret scanning alerts) across the organization",
		model.SourceRef{Path: srcSecretScanAPI, RawValue: secretTotal})
	m["Open secret scanning alerts"] = model.Computed("Open secret scanning alerts", cat, secretOpen,
		"count(secret scanning alerts with state open)",
		model.SourceRef{Path: srcSecretScanAPI, RawValue: secretOpen})

	var depOpen, depResolved float64
	for _, alerts := range in.DependabotAlerts {
		for _, a := range alerts {
			switch a.State {
			case "open":
				depOpen++
			case "fixed", "dismissed":
				depResolved++
			}
		}
	}
	m["Open Dependabot alerts"] = model.Computed("Open Dependabot alerts", cat, depOpen,
		"count(dependabot alerts with state open) in touched repos",
		model.SourceRef{Path: srcDependabotAPI, RawValue: depOpen})
	m["Resolved Dependabot alerts"] = model.Computed("Resolved Dependabot alerts", cat, depResolved,
		"count(dependabot alerts fixed or dismissed) in touched repos",
		model.SourceRef{Path: srcDependabotAPI, RawValue: depResolved})

	var vulnFindings float64
	for _, changes := range in.DependencyReviews {
		for _, c := range changes {
			vulnFindings += float64(len(c.Vulnerabilities))
		}
	}
	m["Dependency review vulnerability findings"] = model.Computed(
		"Dependency review vulnerability findings", cat, vulnFindings,
		"sum(vulnerabilities) over dependency diffs between base and head",
		model.SourceRef{Path: srcDepReviewAPI, RawValue: vulnFindings})
}
