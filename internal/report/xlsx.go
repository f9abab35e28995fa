package report

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/acuworks/finops-cli/internal/metrics"
	"github.com/acuworks/finops-cli/internal/model"
)

const finopsSheetTitle = "Cost visibility and transparency"

// WriteXLSX renders the business metric catalog and the consumption breakdowns
// into one workbook: the FinOps sheet plus user, organization, and monthly
// history sheets for whichever series survived collection.
func WriteXLSX(path string, finops map[string]model.FinOpsMetric, facts metrics.Facts) error {
	f := xlsx.NewFile()

	if err := addFinOpsSheet(f, finops); err != nil {
		return err
	}
	if facts.ConsumptionByUser != nil && len(facts.ConsumptionByUser.Values) > 0 {
		if err := addSeriesSheet(f, "User Consumption", "User ID", facts.ConsumptionByUser.Values); err != nil {
			return err
		}
	} else {
		zap.L().Warn("no per-user consumption data, skipping user breakdown sheet")
	}
	if facts.ConsumptionByOrg != nil && len(facts.ConsumptionByOrg.Values) > 0 {
		if err := addSeriesSheet(f, "Organization Consumption", "Organization ID", facts.ConsumptionByOrg.Values); err != nil {
			return err
		}
	} else {
		zap.L().Warn("no per-organization consumption data, skipping organization breakdown sheet")
	}
	if facts.ConsumptionByDate != nil && len(facts.ConsumptionByDate.Values) > 0 {
		if err := addSeriesSheet(f, "Monthly Consumption", "Month", monthlyTotals(facts.ConsumptionByDate.Values)); err != nil {
			return err
		}
	} else {
		zap.L().Warn("no daily consumption data, skipping monthly history sheet")
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "report: save workbook %s", path)
	}
	zap.L().Info("wrote xlsx report", zap.String("path", path), zap.Int("sheets", len(f.Sheets)))
	return nil
}

// addFinOpsSheet writes the catalog in FinOpsKeys order: metric, result,
// formula, newline-joined source paths, and the raw values those sources
// carried. Unavailable and failed metrics put their reason in the formula
// column and the data they would need in the source column.
func addFinOpsSheet(f *xlsx.File, finops map[string]model.FinOpsMetric) error {
	sheet, err := f.AddSheet("FinOps Report")
	if err != nil {
		return eris.Wrap(err, "report: add finops sheet")
	}

	title := sheet.AddRow()
	title.AddCell().SetString(finopsSheetTitle)

	header := sheet.AddRow()
	for _, h := range []string{"FINOPS METRIC", "RESULT", "FORMULA / LOGIC", "JSON SOURCE", "RAW VALUE"} {
		header.AddCell().SetString(h)
	}

	for _, name := range metrics.FinOpsKeys {
		m, ok := finops[name]
		if !ok {
			continue
		}
		row := sheet.AddRow()
		row.AddCell().SetString(m.Name)

		if m.Status == model.StatusComputed {
			row.AddCell().SetFloatWithFormat(m.Value, "0.00")
			row.AddCell().SetString(m.Formula)
			paths := make([]string, len(m.Sources))
			raws := make([]string, len(m.Sources))
			for i, src := range m.Sources {
				paths[i] = src.Path
				raws[i] = formatFloat(src.RawValue)
			}
			row.AddCell().SetString(strings.Join(paths, "\n"))
			row.AddCell().SetString(strings.Join(raws, "\n"))
			continue
		}

		row.AddCell().SetString("N/A")
		row.AddCell().SetString(m.Reason)
		row.AddCell().SetString(strings.Join(m.RequiredData, "\n"))
		row.AddCell().SetString("N/A")
	}

	return nil
}

// addSeriesSheet writes a two-column breakdown sheet, keys sorted.
func addSeriesSheet(f *xlsx.File, title, keyHeader string, values map[string]float64) error {
	sheet, err := f.AddSheet(title)
	if err != nil {
		return eris.Wrapf(err, "report: add sheet %s", title)
	}

	header := sheet.AddRow()
	header.AddCell().SetString(keyHeader)
	header.AddCell().SetString("ACUs")

	for _, key := range sortedKeys(values) {
		row := sheet.AddRow()
		row.AddCell().SetString(key)
		row.AddCell().SetFloatWithFormat(values[key], "0.00")
	}

	return nil
}

// monthlyTotals folds the daily series into YYYY-MM totals.
func monthlyTotals(byDate map[string]float64) map[string]float64 {
	out := make(map[string]float64)
	for date, acus := range byDate {
		if len(date) < 7 {
			continue
		}
		out[date[:7]] += acus
	}
	return out
}
