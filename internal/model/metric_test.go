package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputedVariant(t *testing.T) {
	t.Parallel()

	m := Computed("Monthly ACU Cost", "COST VISIBILITY", 90.0,
		"total_acus * price_per_acu",
		SourceRef{Path: "consumption_daily.response.total_acus", RawValue: 900},
	)

	assert.Equal(t, StatusComputed, m.Status)
	assert.True(t, m.IsComputed())
	assert.InDelta(t, 90.0, m.Value, 0.001)
	require.Len(t, m.Sources, 1)
	assert.Equal(t, "consumption_daily.response.total_acus", m.Sources[0].Path)
}

func TestUnavailableVariant(t *testing.T) {
	t.Parallel()

	m := Unavailable("Savings vs Baseline", "COST OPTIMIZATION",
		"no baseline month in dataset", "previous_month_consumption")

	assert.Equal(t, StatusUnavailable, m.Status)
	assert.False(t, m.IsComputed())
	assert.Equal(t, []string{"previous_month_consumption"}, m.RequiredData)
	assert.Zero(t, m.Value)
}

func TestFailedVariant(t *testing.T) {
	t.Parallel()

	m := Failed("Cost per PR", "COST VISIBILITY", "N/A (zero base)")

	assert.Equal(t, StatusFailed, m.Status)
	assert.False(t, m.IsComputed())
	assert.Equal(t, "N/A (zero base)", m.Reason)
}

func TestFinOpsMetric_JSONOmitsEmptyVariantFields(t *testing.T) {
	t.Parallel()

	b, err := json.Marshal(Unavailable("X", "FORECAST", "missing"))
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(b, &raw))
	assert.NotContains(t, raw, "formula")
	assert.NotContains(t, raw, "sources")
	assert.Contains(t, raw, "reason")
}

func TestSessionOutcomeValues(t *testing.T) {
	t.Parallel()

	tests := []struct {
		outcome SessionOutcome
		want    string
	}{
		{OutcomeSuccess, "Success"},
		{OutcomeFailure, "Failure"},
		{OutcomeIdle, "Idle"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, string(tt.outcome))
	}
}
