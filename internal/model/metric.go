package model

// BaseMetric is the provenance primitive of the metrics engine: a raw numeric
// fact paired with the dotted JSON path it was extracted from.
type BaseMetric struct {
	Value      float64 `json:"value"`
	SourcePath string  `json:"source_path"`
}

// SourceRef records one input that fed a computed business metric.
type SourceRef struct {
	Path     string  `json:"path"`
	RawValue float64 `json:"raw_value"`
}

// MetricStatus discriminates the variants of FinOpsMetric.
type MetricStatus string

const (
	// StatusComputed means the metric was calculated from available data.
	StatusComputed MetricStatus = "computed"
	// StatusUnavailable means required data was structurally absent.
	StatusUnavailable MetricStatus = "unavailable"
	// StatusFailed means data was present but the calculation failed.
	StatusFailed MetricStatus = "failed"
)

// FinOpsMetric is the output unit of the business layer. Exactly one variant
// applies; consumers branch on Status, never on message text.
type FinOpsMetric struct {
	Name     string       `json:"name"`
	Category string       `json:"category"`
	Status   MetricStatus `json:"status"`

	// Computed variant.
	Value   float64     `json:"value,omitempty"`
	Formula string      `json:"formula,omitempty"`
	Sources []SourceRef `json:"sources,omitempty"`

	// Unavailable / Failed variants.
	Reason       string   `json:"reason,omitempty"`
	RequiredData []string `json:"required_data,omitempty"`
}

// Computed builds the success variant.
func Computed(name, category string, value float64, formula string, sources ...SourceRef) FinOpsMetric {
	return FinOpsMetric{
		Name:     name,
		Category: category,
		Status:   StatusComputed,
		Value:    value,
		Formula:  formula,
		Sources:  sources,
	}
}

// Unavailable builds the variant for structurally missing data.
func Unavailable(name, category, reason string, requiredData ...string) FinOpsMetric {
	return FinOpsMetric{
		Name:         name,
		Category:     category,
		Status:       StatusUnavailable,
		Reason:       reason,
		RequiredData: requiredData,
	}
}

// Failed builds the variant for a calculation that errored on present data.
func Failed(name, category, reason string) FinOpsMetric {
	return FinOpsMetric{
		Name:     name,
		Category: category,
		Status:   StatusFailed,
		Reason:   reason,
	}
}

// IsComputed reports whether the metric produced a usable value.
func (m FinOpsMetric) IsComputed() bool {
	return m.Status == StatusComputed
}
