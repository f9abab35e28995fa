package ingest

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"sort"
	"strconv"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// WriteRawLogs writes fetched records to a JSON snapshot, pretty-printed so
// the file doubles as a debugging artifact.
func WriteRawLogs(path string, records any) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return eris.Wrap(err, "ingest: marshal raw logs")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "ingest: write %s", path)
	}
	zap.L().Info("wrote raw snapshot", zap.String("path", path))
	return nil
}

// WriteResults persists the endpoint fan-out results keyed by endpoint name.
func WriteResults(path string, results map[string]FetchResult) error {
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return eris.Wrap(err, "ingest: marshal fetch results")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "ingest: write %s", path)
	}
	zap.L().Info("wrote fetch results", zap.String("path", path), zap.Int("endpoints", len(results)))
	return nil
}

// ReadResults loads a fetch result snapshot written by WriteResults.
func ReadResults(path string) (map[string]FetchResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: read %s", path)
	}
	var results map[string]FetchResult
	if err := json.Unmarshal(data, &results); err != nil {
		return nil, eris.Wrapf(err, "ingest: decode %s", path)
	}
	return results, nil
}

// WriteHealthCSV writes the API health report: one row per endpoint with the
// status observed during the last fan-out. Transport failures carry their
// failure tag in place of an HTTP status.
func WriteHealthCSV(path string, results map[string]FetchResult) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "ingest: create %s", path)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"endpoint_name", "full_url", "status_code", "timestamp"}); err != nil {
		return eris.Wrap(err, "ingest: write csv header")
	}

	names := make([]string, 0, len(results))
	for name := range results {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		r := results[name]
		status := strconv.Itoa(r.StatusCode)
		if r.StatusCode == 0 && r.FailureKind != "" {
			status = r.FailureKind
		}
		if err := w.Write([]string{name, r.FullURL, status, r.Timestamp}); err != nil {
			return eris.Wrapf(err, "ingest: write csv row %s", name)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return eris.Wrap(err, "ingest: flush csv")
	}

	zap.L().Info("wrote api health report", zap.String("path", path), zap.Int("endpoints", len(results)))
	return nil
}
