package kpi

import (
	"github.com/acuworks/finops-cli/internal/model"
)

const (
	srcPRAPI        = "GitHub PR API"
	srcPRReviewsAPI = "GitHub PR Reviews API"
	srcPRCommitsAPI = "GitHub PR Commits API"
	srcPRFilesAPI   = "GitHub PR Files API"
	srcChecksAPI    = "GitHub Checks API"
)

func calculateProductivity(in Inputs, report *Report) {
	cat := CategoryProductivity
	m := report.Metrics

	var (
		leadTimes        []float64
		firstReviewTimes []float64
		changeRequests   []int
		filesChanged     []float64
		additions        []float64
		deletions        []float64
		commitsPerPR     []float64
		prCount          float64
	)

	for _, data := range in.PRData {
		details := data.Details
		if details == nil {
			continue
		}
		prCount++

		if details.CreatedAt != nil && details.MergedAt != nil {
			leadTimes = append(leadTimes, details.MergedAt.Sub(*details.CreatedAt).Hours())
		}

		if details.CreatedAt != nil {
			var firstReview float64
			found := false
			for _, r := range data.Reviews {
				if r.SubmittedAt == nil {
					continue
				}
				delta := r.SubmittedAt.Sub(*details.CreatedAt).Hours()
				if !found || delta < firstReview {
					firstReview = delta
					found = true
				}
			}
			if found {
				firstReviewTimes = append(firstReviewTimes, firstReview)
			}
		}

		cr := 0
		for _, r := range data.Reviews {
			if r.State == "CHANGES_REQUESTED" {
				cr++
			}
		}
		changeRequests = append(changeRequests, cr)

		filesChanged = append(filesChanged, float64(details.ChangedFiles))
		additions = append(additions, float64(details.Additions))
		deletions = append(deletions, float64(details.Deletions))
		commitsPerPR = append(commitsPerPR, float64(len(data.Commits)))
	}

	avgMetric := func(name string, vals []float64, formula, source string) {
		avg := round2(mean(vals))
		m[name] = model.Computed(name, cat, avg, formula,
			model.SourceRef{Path: source, RawValue: float64(len(vals))})
	}

	avgMetric("Average PR lead time (hours)", leadTimes,
		"avg(pr.merged_at - pr.created_at) in hours", srcPRAPI)
	avgMetric("Average time to first review (hours)", firstReviewTimes,
		"avg(first_review.submitted_at - pr.created_at) in hours", srcPRReviewsAPI)

	crFloats := make([]float64, len(changeRequests))
	for i, v := range changeRequests {
		crFloats[i] = float64(v)
	}
	m["Review iterations (avg)"] = model.Computed("Review iterations (avg)", cat,
		round2(mean(crFloats)),
		"avg(count(reviews with state CHANGES_REQUESTED) per PR)",
		model.SourceRef{Path: srcPRReviewsAPI, RawValue: prCount})
	m["Review iterations (p95)"] = model.Computed("Review iterations (p95)", cat,
		float64(p95(changeRequests)),
		"p95(count(reviews with state CHANGES_REQUESTED) per PR)",
		model.SourceRef{Path: srcPRReviewsAPI, RawValue: prCount})

	avgMetric("Average files changed per PR", filesChanged,
		"avg(pr.changed_files)", srcPRAPI)
	avgMetric("Average additions per PR", additions,
		"avg(pr.additions)", srcPRAPI)
	avgMetric("Average deletions per PR", deletions,
		"avg(pr.deletions)", srcPRAPI)
	avgMetric("Average commits per PR", commitsPerPR,
		"avg(count(commits on PR))", srcPRCommitsAPI)

	// The share of agent PRs over all repo PRs needs the repo-wide PR count
	// as a denominator; only the numerator is collectable here.
	m["Agent PR count"] = model.Computed("Agent PR count", cat, prCount,
		"count(PRs attached to agent sessions); repo-wide share needs total repo PRs",
		model.SourceRef{Path: srcPRAPI, RawValue: prCount})
}
