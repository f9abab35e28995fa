package main

import (
	"context"
	"encoding/json"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acuworks/finops-cli/internal/ingest"
	"github.com/acuworks/finops-cli/internal/resilience"
	"github.com/acuworks/finops-cli/pkg/enterprise"
)

type fakeEnterprise struct {
	consumptionPages []*enterprise.ConsumptionPage
	consumptionCalls int
	logPages         []*enterprise.UsageLogsPage
}

func (f *fakeEnterprise) Get(ctx context.Context, path string, params url.Values) (json.RawMessage, int, error) {
	return nil, 200, nil
}

func (f *fakeEnterprise) GetConsumptionPage(ctx context.Context, path string, skip, limit int, params url.Values) (*enterprise.ConsumptionPage, error) {
	pg := f.consumptionPages[f.consumptionCalls]
	f.consumptionCalls++
	return pg, nil
}

func (f *fakeEnterprise) GetUsageLogsPage(ctx context.Context, path string, page, pageSize int) (*enterprise.UsageLogsPage, error) {
	return f.logPages[page-1], nil
}

func (f *fakeEnterprise) ResolveURL(path string) string {
	return "http://usage.test" + path
}

func testCollector(c enterprise.Client) *ingest.Collector {
	return ingest.NewCollector(c, resilience.NewEndpointBreakers(resilience.DefaultCircuitBreakerConfig()))
}

func TestRunIngest_ConsumptionDrain(t *testing.T) {
	fake := &fakeEnterprise{
		consumptionPages: []*enterprise.ConsumptionPage{
			{Data: []json.RawMessage{
				json.RawMessage(`{"date":"2024-09-01","acus":300}`),
				json.RawMessage(`{"date":"2024-09-02","acus":450}`),
			}, HasMore: true},
			{Data: []json.RawMessage{
				json.RawMessage(`{"date":"2024-09-03","acus":150}`),
			}, HasMore: false},
		},
	}

	out := filepath.Join(t.TempDir(), "consumption_raw_data.json")
	n, err := runIngest(context.Background(), testCollector(fake), "consumption", "", 0, out)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 2, fake.consumptionCalls)

	raw, err := os.ReadFile(out)
	require.NoError(t, err)

	var records []map[string]any
	require.NoError(t, json.Unmarshal(raw, &records))
	require.Len(t, records, 3)
	assert.Equal(t, "2024-09-03", records[2]["date"])
}

func TestRunIngest_UsageLogs(t *testing.T) {
	fake := &fakeEnterprise{
		logPages: []*enterprise.UsageLogsPage{
			{Data: []json.RawMessage{
				json.RawMessage(`{"session_id":"sess_000001","acu_consumed":42.5}`),
				json.RawMessage(`{"session_id":"sess_000002","acu_consumed":10}`),
			}, Total: 2, Page: 1, PageSize: 50, TotalPages: 1},
		},
	}

	out := filepath.Join(t.TempDir(), "raw_usage_data.json")
	n, err := runIngest(context.Background(), testCollector(fake), "usage_logs", "", 0, out)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	raw, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "sess_000002")
}

func TestRunIngest_UnknownKind(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out.json")
	_, err := runIngest(context.Background(), testCollector(&fakeEnterprise{}), "audit", "", 0, out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown ingest kind")
}

func TestIngestArtifact(t *testing.T) {
	name, err := ingestArtifact("usage_logs")
	require.NoError(t, err)
	assert.Equal(t, "raw_usage_data.json", name)

	name, err = ingestArtifact("consumption")
	require.NoError(t, err)
	assert.Equal(t, "consumption_raw_data.json", name)

	_, err = ingestArtifact("audit")
	assert.Error(t, err)
}
