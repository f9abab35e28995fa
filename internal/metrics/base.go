package metrics

import (
	"encoding/json"

	"go.uber.org/zap"

	"github.com/acuworks/finops-cli/internal/config"
	"github.com/acuworks/finops-cli/internal/ingest"
	"github.com/acuworks/finops-cli/internal/model"
)

// Facts is the fixed catalog of base facts extracted from one collection run.
// A nil field means the source endpoint failed or its body did not parse;
// callers must not conflate that with a zero value.
type Facts struct {
	TotalACUs         *model.BaseMetric `json:"total_acus,omitempty"`
	ConsumptionByDate *BaseSeries       `json:"consumption_by_date,omitempty"`
	ConsumptionByUser *BaseSeries       `json:"consumption_by_user,omitempty"`
	ConsumptionByOrg  *BaseSeries       `json:"consumption_by_org_id,omitempty"`
	PRsOpened         *model.BaseMetric `json:"prs_opened,omitempty"`
	PRsClosed         *model.BaseMetric `json:"prs_closed,omitempty"`
	PRsMerged         *model.BaseMetric `json:"prs_merged,omitempty"`
	SessionCount      *model.BaseMetric `json:"session_count,omitempty"`
	PricePerACU       model.BaseMetric  `json:"price_per_acu"`
}

// BaseSeries is a keyed fact (per date, per user, per organization) carrying
// the same provenance as a scalar BaseMetric.
type BaseSeries struct {
	Values     map[string]float64 `json:"values"`
	SourcePath string             `json:"source_path"`
}

// Total sums the series.
func (s *BaseSeries) Total() float64 {
	var t float64
	for _, v := range s.Values {
		t += v
	}
	return t
}

type consumptionBody struct {
	TotalACUs         *float64           `json:"total_acus"`
	ConsumptionByDate map[string]float64 `json:"consumption_by_date"`
	ConsumptionByUser map[string]float64 `json:"consumption_by_user"`
	ConsumptionByOrg  map[string]float64 `json:"consumption_by_org_id"`
}

type prMetricsBody struct {
	PRsOpened *float64 `json:"prs_opened"`
	PRsClosed *float64 `json:"prs_closed"`
	PRsMerged *float64 `json:"prs_merged"`
}

// sessionMetricsBody accepts both field spellings the provider has shipped;
// sessions_count is the current one.
type sessionMetricsBody struct {
	SessionsCount *float64 `json:"sessions_count"`
	TotalSessions *float64 `json:"total_sessions"`
}

// ExtractFacts pulls the base fact catalog out of the raw fetch results.
// Results from failed endpoints are skipped, their facts stay nil.
func ExtractFacts(results map[string]ingest.FetchResult, cfg config.MetricsConfig) Facts {
	facts := Facts{
		PricePerACU: model.BaseMetric{Value: cfg.PricePerACU, SourcePath: "config.price_per_acu"},
	}

	if body, ok := decodeBody[consumptionBody](results, "consumption_daily"); ok {
		if body.TotalACUs != nil {
			facts.TotalACUs = &model.BaseMetric{
				Value:      *body.TotalACUs,
				SourcePath: "consumption_daily.response.total_acus",
			}
		}
		if body.ConsumptionByDate != nil {
			facts.ConsumptionByDate = &BaseSeries{
				Values:     body.ConsumptionByDate,
				SourcePath: "consumption_daily.response.consumption_by_date",
			}
		}
		if body.ConsumptionByUser != nil {
			facts.ConsumptionByUser = &BaseSeries{
				Values:     body.ConsumptionByUser,
				SourcePath: "consumption_daily.response.consumption_by_user",
			}
		}
		if body.ConsumptionByOrg != nil {
			facts.ConsumptionByOrg = &BaseSeries{
				Values:     body.ConsumptionByOrg,
				SourcePath: "consumption_daily.response.consumption_by_org_id",
			}
		}
	}

	if body, ok := decodeBody[prMetricsBody](results, "metrics_prs"); ok {
		facts.PRsOpened = scalarFact(body.PRsOpened, "metrics_prs.response.prs_opened")
		facts.PRsClosed = scalarFact(body.PRsClosed, "metrics_prs.response.prs_closed")
		facts.PRsMerged = scalarFact(body.PRsMerged, "metrics_prs.response.prs_merged")
	}

	if body, ok := decodeBody[sessionMetricsBody](results, "metrics_sessions"); ok {
		if body.SessionsCount != nil {
			facts.SessionCount = scalarFact(body.SessionsCount, "metrics_sessions.response.sessions_count")
		} else {
			facts.SessionCount = scalarFact(body.TotalSessions, "metrics_sessions.response.total_sessions")
		}
	}

	return facts
}

// decodeBody returns the parsed body of a successful fetch, or false when the
// endpoint is absent, failed, or unparseable.
func decodeBody[T any](results map[string]ingest.FetchResult, name string) (T, bool) {
	var body T
	res, ok := results[name]
	if !ok || res.StatusCode != 200 || len(res.Response) == 0 {
		return body, false
	}
	if err := json.Unmarshal(res.Response, &body); err != nil {
		zap.L().Warn("skipping unparseable endpoint body",
			zap.String("endpoint", name),
			zap.Error(err),
		)
		return body, false
	}
	return body, true
}

func scalarFact(v *float64, path string) *model.BaseMetric {
	if v == nil {
		return nil
	}
	return &model.BaseMetric{Value: *v, SourcePath: path}
}
