package formulas

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateReturns(t *testing.T) {
	tests := []struct {
		name   string
		prices []float64
		want   []float64
	}{
		{"ten percent gain", []float64{100, 110}, []float64{0.10}},
		{"gain then loss", []float64{100, 110, 99}, []float64{0.10, -0.10}},
		{"flat", []float64{50, 50, 50}, []float64{0, 0}},
		{"single price", []float64{100}, []float64{}},
		{"empty", []float64{}, []float64{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalculateReturns(tt.prices)
			require.Len(t, got, len(tt.want))
			for i := range tt.want {
				assert.InDelta(t, tt.want[i], got[i], 1e-9)
			}
		})
	}
}

func TestCalculateLogReturns(t *testing.T) {
	got := CalculateLogReturns([]float64{100, 110})
	require.Len(t, got, 1)
	assert.InDelta(t, math.Log(1.1), got[0], 1e-9)
}

func TestCalculateCumulativeReturns(t *testing.T) {
	got := CalculateCumulativeReturns([]float64{0.10, -0.10})
	require.Len(t, got, 2)
	assert.InDelta(t, 0.10, got[0], 1e-9)
	assert.InDelta(t, -0.01, got[1], 1e-9)

	assert.Empty(t, CalculateCumulativeReturns(nil))
}
