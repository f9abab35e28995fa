// Package report renders finished metric catalogs into the flat artifacts
// consumed downstream: a CSV of the core aggregates, an XLSX workbook for the
// business catalog, and a plain-text run summary.
package report

import (
	"encoding/csv"
	"os"
	"sort"
	"strconv"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/acuworks/finops-cli/internal/metrics"
)

// Row is one line of the flattened metrics export.
type Row struct {
	MetricName string
	Value      string
	Unit       string
}

type metricDef struct {
	name string
	unit string
}

// metricDefs maps calculator keys to display names and units. Currency-priced
// metrics take their unit from the run configuration.
func metricDefs(currency string) map[string]metricDef {
	return map[string]metricDef{
		"01_total_monthly_cost":       {"Total Monthly Cost", currency},
		"02_total_acus":               {"Total ACUs", "ACUs"},
		"03_cost_per_user":            {"Cost Per User", currency},
		"04_acus_per_session":         {"ACUs Per Session", "ACUs"},
		"05_average_acus_per_session": {"Average ACUs Per Session", "ACUs"},
		"06_total_sessions":           {"Total Sessions", "sessions"},
		"07_sessions_per_user":        {"Sessions Per User", "sessions"},
		"08_total_duration_minutes":   {"Total Duration", "minutes"},
		"09_average_session_duration": {"Average Session Duration", "minutes"},
		"10_acus_per_minute":          {"ACUs Per Minute", "ACUs/min"},
		"11_cost_per_minute":          {"Cost Per Minute", currency + "/min"},
		"12_unique_users":             {"Unique Users", "users"},
		"13_sessions_by_task_type":    {"Sessions By Task Type", "sessions"},
		"14_acus_by_task_type":        {"ACUs By Task Type", "ACUs"},
		"15_cost_by_task_type":        {"Cost By Task Type", currency},
		"16_sessions_by_department":   {"Sessions By Department", "sessions"},
		"17_acus_by_department":       {"ACUs By Department", "ACUs"},
		"18_cost_by_department":       {"Cost By Department", currency},
		"19_average_cost_per_user":    {"Average Cost Per User", currency},
		"20_efficiency_ratio":         {"Efficiency Ratio", "ACUs/hour"},
	}
}

// Flatten explodes a calculator result into display rows. Scalar metrics emit
// one row; keyed metrics emit one row per key as "Name - key", keys sorted so
// the output is stable. A metric whose slot is nil (isolated failure) emits a
// single N/A row so the file always carries the full catalog.
func Flatten(res metrics.Result) []Row {
	defs := metricDefs(res.Config.Currency)
	rows := make([]Row, 0, len(metrics.MetricKeys))

	for _, key := range metrics.MetricKeys {
		def := defs[key]
		switch v := res.Metrics[key].(type) {
		case map[string]float64:
			for _, sub := range sortedKeys(v) {
				rows = append(rows, Row{def.name + " - " + sub, formatFloat(v[sub]), def.unit})
			}
		case map[string]int:
			for _, sub := range sortedKeys(v) {
				rows = append(rows, Row{def.name + " - " + sub, strconv.Itoa(v[sub]), def.unit})
			}
		case float64:
			rows = append(rows, Row{def.name, formatFloat(v), def.unit})
		case int:
			rows = append(rows, Row{def.name, strconv.Itoa(v), def.unit})
		default:
			rows = append(rows, Row{def.name, "N/A", def.unit})
		}
	}

	return rows
}

// WriteCSV writes flattened rows to path with the standard header.
func WriteCSV(path string, rows []Row) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "report: create %s", path)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"metric_name", "value", "unit"}); err != nil {
		return eris.Wrap(err, "report: write csv header")
	}
	for _, r := range rows {
		if err := w.Write([]string{r.MetricName, r.Value, r.Unit}); err != nil {
			return eris.Wrapf(err, "report: write csv row %s", r.MetricName)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return eris.Wrap(err, "report: flush csv")
	}

	zap.L().Info("wrote metrics csv", zap.String("path", path), zap.Int("rows", len(rows)))
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
