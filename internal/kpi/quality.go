package kpi

import (
	"regexp"

	"github.com/acuworks/finops-cli/internal/model"
)

// testFilePattern matches paths that belong to a test suite across common
// layout conventions.
var testFilePattern = regexp.MustCompile(`(?i)test[_/]|tests[_/]|__tests__|\.test\.|\.spec\.|_test\.|_spec\.|test_|spec_`)

func calculateQuality(in Inputs, report *Report) {
	cat := CategoryQuality
	m := report.Metrics

	var totalPRs, allPass, withTests float64
	var ciDurations []float64

	for _, data := range in.PRData {
		if data.Details == nil {
			continue
		}
		totalPRs++

		if len(data.CheckRuns) > 0 {
			pass := true
			for _, cr := range data.CheckRuns {
				switch cr.Conclusion {
				case "", "success", "skipped", "neutral":
				default:
					pass = false
				}
			}
			if pass {
				allPass++
			}

			var earliest, latest int64
			for _, cr := range data.CheckRuns {
				if cr.StartedAt != nil && (earliest == 0 || cr.StartedAt.Unix() < earliest) {
					earliest = cr.StartedAt.Unix()
				}
				if cr.CompletedAt != nil && cr.CompletedAt.Unix() > latest {
					latest = cr.CompletedAt.Unix()
				}
			}
			if earliest > 0 && latest > earliest {
				ciDurations = append(ciDurations, float64(latest-earliest)/60)
			}
		}

		for _, f := range data.Files {
			if testFilePattern.MatchString(f.Filename) {
				withTests++
				break
			}
		}
	}

	m["CI pass rate %"] = model.Computed("CI pass rate %", cat,
		round2(safeDiv(allPass, totalPRs)*100),
		"count(PRs where all checks succeed) / count(PRs) * 100",
		model.SourceRef{Path: srcChecksAPI, RawValue: totalPRs})

	m["Average CI duration (minutes)"] = model.Computed("Average CI duration (minutes)", cat,
		round2(mean(ciDurations)),
		"avg(max(check.completed_at) - min(check.started_at)) per PR in minutes",
		model.SourceRef{Path: srcChecksAPI, RawValue: float64(len(ciDurations))})

	m["% PRs modifying tests"] = model.Computed("% PRs modifying tests", cat,
		round2(safeDiv(withTests, totalPRs)*100),
		"count(PRs touching a test file) / count(PRs) * 100",
		model.SourceRef{Path: srcPRFilesAPI, RawValue: withTests})

	m["Coverage delta"] = model.Unavailable("Coverage delta", cat,
		"requires a coverage provider API", "Codecov or SonarQube integration")

	m["Flaky test rate"] = model.Unavailable("Flaky test rate", cat,
		"requires flaky-test detection telemetry", "CI flaky-test telemetry")
}
