package report

import (
	"io"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/acuworks/finops-cli/internal/config"
	"github.com/acuworks/finops-cli/internal/metrics"
	"github.com/acuworks/finops-cli/internal/model"
)

// Summary is the end-of-run business digest. Figures come from the live
// consumption facts when the endpoint answered, otherwise from the calculated
// aggregates, so the digest survives a partial collection.
type Summary struct {
	DailyRecords    int
	TotalACUs       float64
	TotalCost       float64
	UniqueUsers     int
	SessionCount    int
	PRsMerged       int
	CostPerMergedPR float64
	AverageACUsDay  float64
	Currency        string
	ReportingPeriod model.ReportingPeriod
}

// BuildSummary folds the facts and the calculator result into a Summary.
func BuildSummary(res metrics.Result, facts metrics.Facts, cfg config.MetricsConfig) Summary {
	s := Summary{
		Currency:        cfg.Currency,
		ReportingPeriod: res.ReportingPeriod,
	}

	if facts.ConsumptionByDate != nil {
		s.DailyRecords = len(facts.ConsumptionByDate.Values)
	}
	if facts.TotalACUs != nil {
		s.TotalACUs = facts.TotalACUs.Value
		s.TotalCost = facts.TotalACUs.Value * cfg.PricePerACU
	}
	if facts.ConsumptionByUser != nil {
		s.UniqueUsers = len(facts.ConsumptionByUser.Values)
	}
	if facts.SessionCount != nil {
		s.SessionCount = int(facts.SessionCount.Value)
	}
	if facts.PRsMerged != nil {
		s.PRsMerged = int(facts.PRsMerged.Value)
	}

	// Fall back to the calculated aggregates when the consumption endpoint
	// gave us nothing.
	if s.TotalACUs == 0 {
		s.TotalACUs = numMetric(res, "02_total_acus")
		s.TotalCost = numMetric(res, "01_total_monthly_cost")
		s.UniqueUsers = int(numMetric(res, "12_unique_users"))
		s.DailyRecords = int(numMetric(res, "06_total_sessions"))
	}

	if s.PRsMerged > 0 {
		s.CostPerMergedPR = s.TotalCost / float64(s.PRsMerged)
	}

	days := s.DailyRecords
	if days == 0 {
		days = 31
	}
	s.AverageACUsDay = s.TotalACUs / float64(days)

	return s
}

// Render writes the digest as the banner-framed text block printed at the end
// of a report run.
func (s Summary) Render(w io.Writer) {
	p := message.NewPrinter(language.English)
	bar := strings.Repeat("=", 70)
	rule := strings.Repeat("-", 70)

	p.Fprintf(w, "\n%s\n", bar)
	p.Fprintf(w, "%30s\n", "BUSINESS SUMMARY")
	p.Fprintf(w, "%s\n\n", bar)

	p.Fprintf(w, "KEY METRICS:\n%s\n", rule)
	p.Fprintf(w, "  Daily consumption records:   %d\n", s.DailyRecords)
	p.Fprintf(w, "  Average ACUs per day:        %.2f\n", s.AverageACUsDay)
	p.Fprintf(w, "%s\n\n", rule)

	p.Fprintf(w, "ADDITIONAL STATISTICS:\n%s\n", rule)
	p.Fprintf(w, "  Total ACUs consumed:         %.2f\n", s.TotalACUs)
	p.Fprintf(w, "  Total cost:                  %.2f %s\n", s.TotalCost, s.Currency)
	p.Fprintf(w, "  Total PRs merged:            %d\n", s.PRsMerged)
	p.Fprintf(w, "  Total sessions:              %d\n", s.SessionCount)
	if s.PRsMerged > 0 {
		p.Fprintf(w, "  Cost per merged PR:          %.2f %s\n", s.CostPerMergedPR, s.Currency)
	} else {
		p.Fprintf(w, "  Cost per merged PR:          N/A\n")
	}
	p.Fprintf(w, "  Unique users:                %d\n", s.UniqueUsers)
	p.Fprintf(w, "  Reporting period:            %s to %s\n",
		orNA(s.ReportingPeriod.StartDate), orNA(s.ReportingPeriod.EndDate))
	p.Fprintf(w, "%s\n\n", rule)

	p.Fprintf(w, "%s\n%30s\n%s\n", bar, "REPORT COMPLETED", bar)
}

// numMetric pulls a scalar out of the calculated aggregates, tolerating the
// int/float split and nil failure slots.
func numMetric(res metrics.Result, key string) float64 {
	switch v := res.Metrics[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return 0
	}
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
