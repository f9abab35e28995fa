package metrics

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acuworks/finops-cli/internal/ingest"
)

func okResult(body string) ingest.FetchResult {
	return ingest.FetchResult{StatusCode: 200, Response: json.RawMessage(body)}
}

func fullResults() map[string]ingest.FetchResult {
	return map[string]ingest.FetchResult{
		"consumption_daily": okResult(`{
			"total_acus": 900.5,
			"consumption_by_date": {"2024-09-01": 300, "2024-09-15": 450.5, "2024-10-01": 150},
			"consumption_by_user": {"u-1": 600.5, "u-2": 300},
			"consumption_by_org_id": {"org-1": 900.5}
		}`),
		"metrics_prs":      okResult(`{"prs_opened": 40, "prs_closed": 10, "prs_merged": 25}`),
		"metrics_sessions": okResult(`{"total_sessions": 120}`),
	}
}

func TestExtractFacts_FullCatalog(t *testing.T) {
	t.Parallel()
	facts := ExtractFacts(fullResults(), testConfig())

	require.NotNil(t, facts.TotalACUs)
	assert.InDelta(t, 900.5, facts.TotalACUs.Value, 1e-9)
	assert.Equal(t, "consumption_daily.response.total_acus", facts.TotalACUs.SourcePath)

	require.NotNil(t, facts.ConsumptionByDate)
	assert.Len(t, facts.ConsumptionByDate.Values, 3)
	assert.Equal(t, "consumption_daily.response.consumption_by_date", facts.ConsumptionByDate.SourcePath)

	require.NotNil(t, facts.ConsumptionByUser)
	assert.InDelta(t, 900.5, facts.ConsumptionByUser.Total(), 1e-9)

	require.NotNil(t, facts.PRsOpened)
	assert.InDelta(t, 40, facts.PRsOpened.Value, 1e-9)
	assert.Equal(t, "metrics_prs.response.prs_merged", facts.PRsMerged.SourcePath)

	require.NotNil(t, facts.SessionCount)
	assert.InDelta(t, 120, facts.SessionCount.Value, 1e-9)

	assert.InDelta(t, 0.10, facts.PricePerACU.Value, 1e-9)
	assert.Equal(t, "config.price_per_acu", facts.PricePerACU.SourcePath)
}

func TestExtractFacts_FailedEndpointLeavesFactsNil(t *testing.T) {
	t.Parallel()
	results := fullResults()
	results["metrics_prs"] = ingest.FetchResult{StatusCode: 502, Error: "bad gateway"}

	facts := ExtractFacts(results, testConfig())

	assert.Nil(t, facts.PRsOpened)
	assert.Nil(t, facts.PRsClosed)
	assert.Nil(t, facts.PRsMerged)
	// Sibling endpoints still yield their facts.
	assert.NotNil(t, facts.TotalACUs)
	assert.NotNil(t, facts.SessionCount)
}

func TestExtractFacts_UnparseableBodySkipped(t *testing.T) {
	t.Parallel()
	results := fullResults()
	results["consumption_daily"] = okResult(`{"total_acus": not json`)

	facts := ExtractFacts(results, testConfig())

	assert.Nil(t, facts.TotalACUs)
	assert.Nil(t, facts.ConsumptionByDate)
	assert.NotNil(t, facts.PRsOpened)
}

func TestExtractFacts_SessionsCountFieldSpellings(t *testing.T) {
	t.Parallel()

	results := map[string]ingest.FetchResult{
		"metrics_sessions": okResult(`{"sessions_count": 42}`),
	}
	facts := ExtractFacts(results, testConfig())

	require.NotNil(t, facts.SessionCount)
	assert.InDelta(t, 42, facts.SessionCount.Value, 1e-9)
	assert.Equal(t, "metrics_sessions.response.sessions_count", facts.SessionCount.SourcePath)

	// The current spelling wins when a body carries both.
	results["metrics_sessions"] = okResult(`{"sessions_count": 42, "total_sessions": 7}`)
	facts = ExtractFacts(results, testConfig())

	require.NotNil(t, facts.SessionCount)
	assert.InDelta(t, 42, facts.SessionCount.Value, 1e-9)
}

func TestExtractFacts_MissingFieldIsNotZero(t *testing.T) {
	t.Parallel()
	results := map[string]ingest.FetchResult{
		"consumption_daily": okResult(`{"consumption_by_date": {"2024-09-01": 10}}`),
	}

	facts := ExtractFacts(results, testConfig())

	// total_acus absent from the body: the fact must be nil, not zero-valued.
	assert.Nil(t, facts.TotalACUs)
	require.NotNil(t, facts.ConsumptionByDate)
	assert.InDelta(t, 10, facts.ConsumptionByDate.Total(), 1e-9)
}

func TestExtractFacts_EmptyResults(t *testing.T) {
	t.Parallel()
	facts := ExtractFacts(map[string]ingest.FetchResult{}, testConfig())

	assert.Nil(t, facts.TotalACUs)
	assert.Nil(t, facts.ConsumptionByDate)
	assert.Nil(t, facts.SessionCount)
	assert.InDelta(t, 0.10, facts.PricePerACU.Value, 1e-9)
}
