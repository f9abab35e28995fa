package pipeline

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acuworks/finops-cli/internal/metrics"
	"github.com/acuworks/finops-cli/internal/model"
	"github.com/acuworks/finops-cli/internal/report"
)

func writeReportCSV(t *testing.T, rows [][]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "finops_metrics_report.csv")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w := csv.NewWriter(f)
	require.NoError(t, w.WriteAll(rows))
	return path
}

// validRows builds a report from a real calculator run, so the fixture can
// never drift from what the pipeline actually writes.
func validRows(t *testing.T) string {
	t.Helper()
	cfg := testRunnerConfig("").Metrics
	ds := model.Dataset{
		Sessions: []model.Session{
			{SessionID: "sess_1", UserEmail: "bob@corp.example", DurationMinutes: 60, ACUsConsumed: 600, TaskType: "Feature", Status: "Success"},
			{SessionID: "sess_2", UserEmail: "ana@corp.example", DurationMinutes: 30, ACUsConsumed: 300, TaskType: "BugFix", Status: "Success"},
		},
		Users: []model.User{
			{Email: "bob@corp.example", Department: "Engineering"},
			{Email: "ana@corp.example", Department: "Finance"},
		},
	}
	res := metrics.NewCalculator(cfg).CalculateAll(ds)

	path := filepath.Join(t.TempDir(), "finops_metrics_report.csv")
	require.NoError(t, report.WriteCSV(path, report.Flatten(res)))
	return path
}

func TestValidateCSV_ValidReport(t *testing.T) {
	assert.NoError(t, ValidateCSV(validRows(t), "USD"))
}

func TestValidateCSV_BadHeader(t *testing.T) {
	path := writeReportCSV(t, [][]string{
		{"name", "value", "unit"},
		{"Total Monthly Cost", "90", "USD"},
	})
	err := ValidateCSV(path, "USD")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "column 0")
}

func TestValidateCSV_MissingFamilies(t *testing.T) {
	path := writeReportCSV(t, [][]string{
		{"metric_name", "value", "unit"},
		{"Total Monthly Cost", "90", "USD"},
		{"Total ACUs", "900", "ACUs"},
	})
	err := ValidateCSV(path, "USD")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "metric families")
}

func TestValidateCSV_CostSumMismatch(t *testing.T) {
	// Start from a valid report, then corrupt one per-user cost row.
	path := validRows(t)

	f, err := os.Open(path)
	require.NoError(t, err)
	rows, err := csv.NewReader(f).ReadAll()
	f.Close()
	require.NoError(t, err)

	for _, row := range rows {
		if row[0] == "Cost Per User - bob@corp.example" {
			row[1] = "999"
		}
	}
	corrupted := writeReportCSV(t, rows)

	err = ValidateCSV(corrupted, "USD")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not reconcile")
}

func TestValidateCSV_NegativeCost(t *testing.T) {
	path := validRows(t)

	f, err := os.Open(path)
	require.NoError(t, err)
	rows, err := csv.NewReader(f).ReadAll()
	f.Close()
	require.NoError(t, err)

	for _, row := range rows {
		if row[0] == "Average Cost Per User" {
			row[1] = "-45"
		}
	}
	corrupted := writeReportCSV(t, rows)

	err = ValidateCSV(corrupted, "USD")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "negative cost")
}

func TestValidateCSV_MissingFile(t *testing.T) {
	assert.Error(t, ValidateCSV(filepath.Join(t.TempDir(), "nope.csv"), "USD"))
}
