package pipeline

import (
	"encoding/csv"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// expectedMetricFamilies is how many distinct base metric names the flattened
// report must carry once exploded map rows collapse back to their family.
const expectedMetricFamilies = 20

// costTolerance absorbs float noise when cross-checking cost sums.
const costTolerance = 0.01

// ValidateCSV checks a flattened metrics report for structural and financial
// integrity: the three-column layout, the full metric catalog, breakdown sums
// reconciling with the monthly total, and no negative cost anywhere.
func ValidateCSV(path, currency string) error {
	f, err := os.Open(path)
	if err != nil {
		return eris.Wrapf(err, "validate: open %s", path)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return eris.Wrapf(err, "validate: read %s", path)
	}
	if len(rows) == 0 {
		return eris.Errorf("validate: %s is empty", path)
	}

	if err := validateStructure(rows[0]); err != nil {
		return err
	}
	body := rows[1:]

	if err := validateMetricFamilies(body); err != nil {
		return err
	}
	if err := validateFinancialIntegrity(body, currency); err != nil {
		return err
	}

	zap.L().Info("report validation passed",
		zap.String("path", path),
		zap.Int("rows", len(body)),
	)
	return nil
}

func validateStructure(header []string) error {
	expected := []string{"metric_name", "value", "unit"}
	if len(header) != len(expected) {
		return eris.Errorf("validate: expected %d columns, got %d", len(expected), len(header))
	}
	for i, col := range expected {
		if header[i] != col {
			return eris.Errorf("validate: column %d is %q, want %q", i, header[i], col)
		}
	}
	return nil
}

func validateMetricFamilies(body [][]string) error {
	families := make(map[string]struct{})
	for _, row := range body {
		name, _, _ := strings.Cut(row[0], " - ")
		families[name] = struct{}{}
	}
	if len(families) != expectedMetricFamilies {
		return eris.Errorf("validate: expected %d metric families, found %d",
			expectedMetricFamilies, len(families))
	}
	return nil
}

// validateFinancialIntegrity reconciles the per-user, per-task, and
// per-department cost breakdowns against the monthly total and rejects
// negative money.
func validateFinancialIntegrity(body [][]string, currency string) error {
	var totalCost float64
	haveTotal := false
	sums := map[string]float64{
		"Cost Per User - ":      0,
		"Cost By Task Type - ":  0,
		"Cost By Department - ": 0,
	}

	for _, row := range body {
		name, raw, unit := row[0], row[1], row[2]

		if name == "Total Monthly Cost" {
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return eris.Wrapf(err, "validate: parse %s", name)
			}
			totalCost = v
			haveTotal = true
		}

		for prefix := range sums {
			if strings.HasPrefix(name, prefix) {
				v, err := strconv.ParseFloat(raw, 64)
				if err != nil {
					return eris.Wrapf(err, "validate: parse %s", name)
				}
				sums[prefix] += v
			}
		}

		if unit == currency {
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return eris.Wrapf(err, "validate: parse %s", name)
			}
			if v < 0 {
				return eris.Errorf("validate: negative cost in %s: %v", name, v)
			}
		}
	}

	if !haveTotal {
		return eris.New("validate: Total Monthly Cost row missing")
	}
	for prefix, sum := range sums {
		if math.Abs(sum-totalCost) > costTolerance {
			return eris.Errorf("validate: %q sum %.2f does not reconcile with Total Monthly Cost %.2f",
				strings.TrimSuffix(prefix, " - "), sum, totalCost)
		}
	}
	return nil
}
