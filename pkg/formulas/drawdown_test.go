package formulas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateMaxDrawdown(t *testing.T) {
	tests := []struct {
		name   string
		prices []float64
		want   float64
	}{
		{"fifty percent loss", []float64{100, 50}, 0.5},
		{"monotonic rise", []float64{100, 110, 120, 130}, 0},
		{"dip and recover", []float64{100, 80, 120}, 0.2},
		{"peak mid-series", []float64{100, 150, 75, 140}, 0.5},
		{"single price", []float64{100}, 0},
		{"empty", nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, CalculateMaxDrawdown(tt.prices), 1e-9)
		})
	}
}

func TestCalculateDrawdownMetrics(t *testing.T) {
	m := CalculateDrawdownMetrics([]float64{100, 150, 120, 130})
	require.NotNil(t, m)
	assert.InDelta(t, 0.2, m.MaxDrawdown, 1e-9)
	assert.InDelta(t, (150.0-130.0)/150.0, m.CurrentDrawdown, 1e-9)
	assert.Equal(t, 2, m.DaysInDrawdown)
	assert.Equal(t, 150.0, m.PeakValue)
	assert.Equal(t, 130.0, m.CurrentValue)

	assert.Nil(t, CalculateDrawdownMetrics([]float64{100}))
}
