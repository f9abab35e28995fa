package metrics

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/acuworks/finops-cli/internal/config"
	"github.com/acuworks/finops-cli/internal/model"
)

// Business metric categories.
const (
	CategoryCostVisibility   = "COST VISIBILITY"
	CategoryCostOptimization = "COST OPTIMIZATION"
	CategoryForecast         = "FORECAST"
)

const reasonZeroBase = "N/A (zero base)"

// FinOpsKeys lists the business metric catalog in report order.
var FinOpsKeys = []string{
	"Current month ACUs",
	"Previous month ACUs",
	"Current month cost",
	"Previous month cost",
	"Month-over-month cost delta",
	"Month-over-month variation %",
	"Total ACUs consumed",
	"Total consumption cost",
	"Unique users",
	"Session count",
	"Average ACUs per user",
	"Average cost per user",
	"Current month ACUs per user",
	"Current month cost per user",
	"Average ACUs per session",
	"Average cost per session",
	"Organization count",
	"Average cost per organization",
	"Cost per IdP group",
	"PRs opened",
	"PRs closed",
	"PRs merged",
	"Total PRs",
	"ACUs per PR",
	"Cost per PR",
	"Average ACUs per merged PR",
	"Average cost per merged PR",
	"PRs per ACU",
	"Merged PRs per ACU",
	"PR success rate %",
}

// Engine composes base facts into the business metric catalog.
type Engine struct {
	cfg config.MetricsConfig
}

// NewEngine creates a business metrics engine with the given pricing.
func NewEngine(cfg config.MetricsConfig) *Engine {
	return &Engine{cfg: cfg}
}

// MonthlyACUs sums the daily consumption series for one month. The month is a
// YYYY-MM prefix matched against the ISO date keys.
func MonthlyACUs(byDate map[string]float64, monthPrefix string) float64 {
	var total float64
	for date, acus := range byDate {
		if strings.HasPrefix(date, monthPrefix) {
			total += acus
		}
	}
	return total
}

// CostFromACUs prices a consumption figure, rounded to cents.
func (e *Engine) CostFromACUs(acus float64) float64 {
	cost := decimal.NewFromFloat(acus).Mul(decimal.NewFromFloat(e.cfg.PricePerACU))
	return cost.Round(2).InexactFloat64()
}

// Compose builds the full business metric catalog from the extracted facts.
// month and previousMonth are YYYY-MM prefixes for the trend metrics. Every
// key in FinOpsKeys is always present: data that does not exist yields the
// unavailable variant, a computation that blows up yields the failed one.
func (e *Engine) Compose(facts Facts, month, previousMonth string) map[string]model.FinOpsMetric {
	out := make(map[string]model.FinOpsMetric, len(FinOpsKeys))

	add := func(name, category string, fn func() model.FinOpsMetric) {
		out[name] = composeSafe(name, category, fn)
	}

	var monthACUs, prevACUs float64
	hasDaily := facts.ConsumptionByDate != nil
	if hasDaily {
		monthACUs = MonthlyACUs(facts.ConsumptionByDate.Values, month)
		prevACUs = MonthlyACUs(facts.ConsumptionByDate.Values, previousMonth)
	}
	dailyRef := func(raw float64) model.SourceRef {
		return model.SourceRef{Path: facts.ConsumptionByDate.SourcePath, RawValue: raw}
	}

	add("Current month ACUs", CategoryCostVisibility, func() model.FinOpsMetric {
		if !hasDaily {
			return e.missingConsumption("Current month ACUs", CategoryCostVisibility)
		}
		return model.Computed("Current month ACUs", CategoryCostVisibility, monthACUs,
			fmt.Sprintf("sum(consumption_by_date[d] for d in %s)", month), dailyRef(monthACUs))
	})
	add("Previous month ACUs", CategoryCostVisibility, func() model.FinOpsMetric {
		if !hasDaily {
			return e.missingConsumption("Previous month ACUs", CategoryCostVisibility)
		}
		return model.Computed("Previous month ACUs", CategoryCostVisibility, prevACUs,
			fmt.Sprintf("sum(consumption_by_date[d] for d in %s)", previousMonth), dailyRef(prevACUs))
	})
	add("Current month cost", CategoryCostVisibility, func() model.FinOpsMetric {
		if !hasDaily {
			return e.missingConsumption("Current month cost", CategoryCostVisibility)
		}
		return model.Computed("Current month cost", CategoryCostVisibility, e.CostFromACUs(monthACUs),
			"month_acus * price_per_acu", dailyRef(monthACUs), e.priceRef(facts))
	})
	add("Previous month cost", CategoryCostVisibility, func() model.FinOpsMetric {
		if !hasDaily {
			return e.missingConsumption("Previous month cost", CategoryCostVisibility)
		}
		return model.Computed("Previous month cost", CategoryCostVisibility, e.CostFromACUs(prevACUs),
			"previous_month_acus * price_per_acu", dailyRef(prevACUs), e.priceRef(facts))
	})
	add("Month-over-month cost delta", CategoryForecast, func() model.FinOpsMetric {
		if !hasDaily {
			return e.missingConsumption("Month-over-month cost delta", CategoryForecast)
		}
		delta := e.CostFromACUs(monthACUs) - e.CostFromACUs(prevACUs)
		return model.Computed("Month-over-month cost delta", CategoryForecast, delta,
			"month_cost - previous_month_cost", dailyRef(monthACUs), dailyRef(prevACUs))
	})
	add("Month-over-month variation %", CategoryForecast, func() model.FinOpsMetric {
		if !hasDaily {
			return e.missingConsumption("Month-over-month variation %", CategoryForecast)
		}
		if prevACUs == 0 {
			return model.Unavailable("Month-over-month variation %", CategoryForecast, reasonZeroBase)
		}
		pct := round2((monthACUs - prevACUs) / prevACUs * 100)
		return model.Computed("Month-over-month variation %", CategoryForecast, pct,
			"(month_acus - previous_month_acus) / previous_month_acus * 100",
			dailyRef(monthACUs), dailyRef(prevACUs))
	})

	totalACUs, totalRef, hasTotal := e.totalACUs(facts)

	add("Total ACUs consumed", CategoryCostVisibility, func() model.FinOpsMetric {
		if !hasTotal {
			return e.missingConsumption("Total ACUs consumed", CategoryCostVisibility)
		}
		return model.Computed("Total ACUs consumed", CategoryCostVisibility, totalACUs,
			"sum(acus) over reporting period", totalRef)
	})
	add("Total consumption cost", CategoryCostVisibility, func() model.FinOpsMetric {
		if !hasTotal {
			return e.missingConsumption("Total consumption cost", CategoryCostVisibility)
		}
		return model.Computed("Total consumption cost", CategoryCostVisibility, e.CostFromACUs(totalACUs),
			"total_acus * price_per_acu", totalRef, e.priceRef(facts))
	})

	userCount := 0.0
	hasUsers := facts.ConsumptionByUser != nil
	if hasUsers {
		userCount = float64(len(facts.ConsumptionByUser.Values))
	}
	userRef := func() model.SourceRef {
		return model.SourceRef{Path: facts.ConsumptionByUser.SourcePath, RawValue: userCount}
	}

	add("Unique users", CategoryCostVisibility, func() model.FinOpsMetric {
		if !hasUsers {
			return e.missingConsumption("Unique users", CategoryCostVisibility)
		}
		return model.Computed("Unique users", CategoryCostVisibility, userCount,
			"count(distinct users in consumption_by_user)", userRef())
	})
	add("Session count", CategoryCostVisibility, func() model.FinOpsMetric {
		if facts.SessionCount == nil {
			return model.Unavailable("Session count", CategoryCostVisibility,
				"session metrics endpoint returned no data", "GET /v2/enterprise/metrics/sessions")
		}
		return model.Computed("Session count", CategoryCostVisibility, facts.SessionCount.Value,
			"count(sessions) in reporting period", ref(*facts.SessionCount))
	})
	add("Average ACUs per user", CategoryCostVisibility, func() model.FinOpsMetric {
		if !hasTotal || !hasUsers {
			return e.missingConsumption("Average ACUs per user", CategoryCostVisibility)
		}
		if userCount == 0 {
			return model.Unavailable("Average ACUs per user", CategoryCostVisibility, reasonZeroBase)
		}
		return model.Computed("Average ACUs per user", CategoryCostVisibility, round2(totalACUs/userCount),
			"total_acus / unique_users", totalRef, userRef())
	})
	add("Average cost per user", CategoryCostVisibility, func() model.FinOpsMetric {
		if !hasTotal || !hasUsers {
			return e.missingConsumption("Average cost per user", CategoryCostVisibility)
		}
		if userCount == 0 {
			return model.Unavailable("Average cost per user", CategoryCostVisibility, reasonZeroBase)
		}
		return model.Computed("Average cost per user", CategoryCostVisibility,
			round2(e.CostFromACUs(totalACUs)/userCount),
			"total_cost / unique_users", totalRef, userRef())
	})
	add("Current month ACUs per user", CategoryCostVisibility, func() model.FinOpsMetric {
		if !hasDaily || !hasUsers {
			return e.missingConsumption("Current month ACUs per user", CategoryCostVisibility)
		}
		if userCount == 0 {
			return model.Unavailable("Current month ACUs per user", CategoryCostVisibility, reasonZeroBase)
		}
		return model.Computed("Current month ACUs per user", CategoryCostVisibility,
			round2(monthACUs/userCount),
			"month_acus / unique_users", dailyRef(monthACUs), userRef())
	})
	add("Current month cost per user", CategoryCostVisibility, func() model.FinOpsMetric {
		if !hasDaily || !hasUsers {
			return e.missingConsumption("Current month cost per user", CategoryCostVisibility)
		}
		if userCount == 0 {
			return model.Unavailable("Current month cost per user", CategoryCostVisibility, reasonZeroBase)
		}
		return model.Computed("Current month cost per user", CategoryCostVisibility,
			round2(e.CostFromACUs(monthACUs)/userCount),
			"month_cost / unique_users", dailyRef(monthACUs), userRef())
	})
	add("Average ACUs per session", CategoryCostVisibility, func() model.FinOpsMetric {
		if !hasTotal || facts.SessionCount == nil {
			return model.Unavailable("Average ACUs per session", CategoryCostVisibility,
				"requires both consumption and session metrics",
				"GET /v2/enterprise/consumption/daily", "GET /v2/enterprise/metrics/sessions")
		}
		if facts.SessionCount.Value == 0 {
			return model.Unavailable("Average ACUs per session", CategoryCostVisibility, reasonZeroBase)
		}
		return model.Computed("Average ACUs per session", CategoryCostVisibility,
			round2(totalACUs/facts.SessionCount.Value),
			"total_acus / session_count", totalRef, ref(*facts.SessionCount))
	})
	add("Average cost per session", CategoryCostVisibility, func() model.FinOpsMetric {
		if !hasTotal || facts.SessionCount == nil {
			return model.Unavailable("Average cost per session", CategoryCostVisibility,
				"requires both consumption and session metrics",
				"GET /v2/enterprise/consumption/daily", "GET /v2/enterprise/metrics/sessions")
		}
		if facts.SessionCount.Value == 0 {
			return model.Unavailable("Average cost per session", CategoryCostVisibility, reasonZeroBase)
		}
		return model.Computed("Average cost per session", CategoryCostVisibility,
			round2(e.CostFromACUs(totalACUs)/facts.SessionCount.Value),
			"total_cost / session_count", totalRef, ref(*facts.SessionCount))
	})

	orgCount := 0.0
	hasOrgs := facts.ConsumptionByOrg != nil
	if hasOrgs {
		orgCount = float64(len(facts.ConsumptionByOrg.Values))
	}

	add("Organization count", CategoryCostVisibility, func() model.FinOpsMetric {
		if !hasOrgs {
			return e.missingConsumption("Organization count", CategoryCostVisibility)
		}
		return model.Computed("Organization count", CategoryCostVisibility, orgCount,
			"count(organizations in consumption_by_org_id)",
			model.SourceRef{Path: facts.ConsumptionByOrg.SourcePath, RawValue: orgCount})
	})
	add("Average cost per organization", CategoryCostVisibility, func() model.FinOpsMetric {
		if !hasOrgs {
			return e.missingConsumption("Average cost per organization", CategoryCostVisibility)
		}
		if orgCount == 0 {
			return model.Unavailable("Average cost per organization", CategoryCostVisibility, reasonZeroBase)
		}
		orgACUs := facts.ConsumptionByOrg.Total()
		return model.Computed("Average cost per organization", CategoryCostVisibility,
			round2(e.CostFromACUs(orgACUs)/orgCount),
			"cost(sum consumption_by_org_id) / organization_count",
			model.SourceRef{Path: facts.ConsumptionByOrg.SourcePath, RawValue: orgACUs})
	})
	add("Cost per IdP group", CategoryCostVisibility, func() model.FinOpsMetric {
		return model.Unavailable("Cost per IdP group", CategoryCostVisibility,
			"identity provider group membership is not exposed by the consumption API",
			"IdP group membership export")
	})

	e.composePRMetrics(add, facts, totalACUs, totalRef, hasTotal)
	return out
}

// composePRMetrics fills in the pull-request efficiency block.
func (e *Engine) composePRMetrics(add func(string, string, func() model.FinOpsMetric),
	facts Facts, totalACUs float64, totalRef model.SourceRef, hasTotal bool) {

	hasPRs := facts.PRsOpened != nil && facts.PRsClosed != nil && facts.PRsMerged != nil
	missingPRs := func(name string) model.FinOpsMetric {
		return model.Unavailable(name, CategoryCostOptimization,
			"PR metrics endpoint returned no data", "GET /v2/enterprise/metrics/prs")
	}

	scalar := func(name string, fact *model.BaseMetric, formula string) {
		add(name, CategoryCostOptimization, func() model.FinOpsMetric {
			if fact == nil {
				return missingPRs(name)
			}
			return model.Computed(name, CategoryCostOptimization, fact.Value, formula, ref(*fact))
		})
	}
	scalar("PRs opened", facts.PRsOpened, "count(prs opened) in reporting period")
	scalar("PRs closed", facts.PRsClosed, "count(prs closed) in reporting period")
	scalar("PRs merged", facts.PRsMerged, "count(prs merged) in reporting period")

	var totalPRs float64
	if hasPRs {
		totalPRs = facts.PRsOpened.Value + facts.PRsClosed.Value + facts.PRsMerged.Value
	}

	add("Total PRs", CategoryCostOptimization, func() model.FinOpsMetric {
		if !hasPRs {
			return missingPRs("Total PRs")
		}
		return model.Computed("Total PRs", CategoryCostOptimization, totalPRs,
			"prs_opened + prs_closed + prs_merged",
			ref(*facts.PRsOpened), ref(*facts.PRsClosed), ref(*facts.PRsMerged))
	})
	add("ACUs per PR", CategoryCostOptimization, func() model.FinOpsMetric {
		if !hasPRs || !hasTotal {
			return missingPRs("ACUs per PR")
		}
		if totalPRs == 0 {
			return model.Unavailable("ACUs per PR", CategoryCostOptimization, reasonZeroBase)
		}
		return model.Computed("ACUs per PR", CategoryCostOptimization, round2(totalACUs/totalPRs),
			"total_acus / total_prs", totalRef)
	})
	add("Cost per PR", CategoryCostOptimization, func() model.FinOpsMetric {
		if !hasPRs || !hasTotal {
			return missingPRs("Cost per PR")
		}
		if totalPRs == 0 {
			return model.Unavailable("Cost per PR", CategoryCostOptimization, reasonZeroBase)
		}
		return model.Computed("Cost per PR", CategoryCostOptimization,
			round2(e.CostFromACUs(totalACUs)/totalPRs),
			"total_cost / total_prs", totalRef)
	})
	add("Average ACUs per merged PR", CategoryCostOptimization, func() model.FinOpsMetric {
		if facts.PRsMerged == nil || !hasTotal {
			return missingPRs("Average ACUs per merged PR")
		}
		if facts.PRsMerged.Value == 0 {
			return model.Unavailable("Average ACUs per merged PR", CategoryCostOptimization, reasonZeroBase)
		}
		return model.Computed("Average ACUs per merged PR", CategoryCostOptimization,
			round2(totalACUs/facts.PRsMerged.Value),
			"total_acus / prs_merged", totalRef, ref(*facts.PRsMerged))
	})
	add("Average cost per merged PR", CategoryCostOptimization, func() model.FinOpsMetric {
		if facts.PRsMerged == nil || !hasTotal {
			return missingPRs("Average cost per merged PR")
		}
		if facts.PRsMerged.Value == 0 {
			return model.Unavailable("Average cost per merged PR", CategoryCostOptimization, reasonZeroBase)
		}
		return model.Computed("Average cost per merged PR", CategoryCostOptimization,
			round2(e.CostFromACUs(totalACUs)/facts.PRsMerged.Value),
			"total_cost / prs_merged", totalRef, ref(*facts.PRsMerged))
	})
	add("PRs per ACU", CategoryCostOptimization, func() model.FinOpsMetric {
		if !hasPRs || !hasTotal {
			return missingPRs("PRs per ACU")
		}
		if totalACUs == 0 {
			return model.Unavailable("PRs per ACU", CategoryCostOptimization, reasonZeroBase)
		}
		return model.Computed("PRs per ACU", CategoryCostOptimization, round4(totalPRs/totalACUs),
			"total_prs / total_acus", totalRef)
	})
	add("Merged PRs per ACU", CategoryCostOptimization, func() model.FinOpsMetric {
		if facts.PRsMerged == nil || !hasTotal {
			return missingPRs("Merged PRs per ACU")
		}
		if totalACUs == 0 {
			return model.Unavailable("Merged PRs per ACU", CategoryCostOptimization, reasonZeroBase)
		}
		return model.Computed("Merged PRs per ACU", CategoryCostOptimization,
			round4(facts.PRsMerged.Value/totalACUs),
			"prs_merged / total_acus", totalRef, ref(*facts.PRsMerged))
	})
	add("PR success rate %", CategoryCostOptimization, func() model.FinOpsMetric {
		if facts.PRsOpened == nil || facts.PRsMerged == nil {
			return missingPRs("PR success rate %")
		}
		if facts.PRsOpened.Value == 0 {
			return model.Unavailable("PR success rate %", CategoryCostOptimization, reasonZeroBase)
		}
		pct := round2(facts.PRsMerged.Value / facts.PRsOpened.Value * 100)
		if pct > 100 {
			pct = 100
		}
		return model.Computed("PR success rate %", CategoryCostOptimization, pct,
			"min(prs_merged / prs_opened * 100, 100)",
			ref(*facts.PRsOpened), ref(*facts.PRsMerged))
	})
}

// totalACUs prefers the provider's own total and falls back to summing the
// daily series when only that survived.
func (e *Engine) totalACUs(facts Facts) (float64, model.SourceRef, bool) {
	if facts.TotalACUs != nil {
		return facts.TotalACUs.Value, ref(*facts.TotalACUs), true
	}
	if facts.ConsumptionByDate != nil {
		total := facts.ConsumptionByDate.Total()
		return total, model.SourceRef{Path: facts.ConsumptionByDate.SourcePath, RawValue: total}, true
	}
	return 0, model.SourceRef{}, false
}

func (e *Engine) missingConsumption(name, category string) model.FinOpsMetric {
	return model.Unavailable(name, category,
		"consumption endpoint returned no data", "GET /v2/enterprise/consumption/daily")
}

func (e *Engine) priceRef(facts Facts) model.SourceRef {
	return ref(facts.PricePerACU)
}

// composeSafe turns a panicking metric into the failed variant instead of
// killing the whole catalog.
func composeSafe(name, category string, fn func() model.FinOpsMetric) (m model.FinOpsMetric) {
	defer func() {
		if r := recover(); r != nil {
			m = model.Failed(name, category, fmt.Sprintf("Failed to calculate %s: %v", name, r))
		}
	}()
	return fn()
}

func ref(b model.BaseMetric) model.SourceRef {
	return model.SourceRef{Path: b.SourcePath, RawValue: b.Value}
}

func round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

func round4(v float64) float64 {
	return decimal.NewFromFloat(v).Round(4).InexactFloat64()
}
