package analysis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seriesFromPrices(symbol string, start time.Time, prices []float64) *ProcessedSeries {
	dates := make([]time.Time, len(prices))
	for i := range prices {
		dates[i] = start.AddDate(0, 0, i)
	}
	s := &ProcessedSeries{
		Symbol:   symbol,
		Dates:    dates,
		AdjClose: prices,
	}
	s.Returns = ComputeReturns(prices)
	return s
}

func TestComputeCorrelations_IdenticalSeries(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	prices := []float64{100, 102, 101, 105, 103, 108}
	a := seriesFromPrices("AAA", start, prices)
	b := seriesFromPrices("BBB", start, prices)

	m := ComputeCorrelations([]*ProcessedSeries{a, b})
	require.NotNil(t, m)
	assert.InDelta(t, 1.0, m.Matrix[0][1], 1e-9)
	assert.InDelta(t, 1.0, m.AverageCorrelation, 1e-9)
	assert.InDelta(t, 0.0, m.DiversificationIndex, 1e-9)
}

func TestComputeCorrelations_MatrixShape(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	a := seriesFromPrices("AAA", start, []float64{100, 101, 103, 102, 104, 106})
	b := seriesFromPrices("BBB", start, []float64{50, 52, 51, 53, 52, 54})
	c := seriesFromPrices("CCC", start, []float64{200, 198, 202, 199, 203, 201})

	m := ComputeCorrelations([]*ProcessedSeries{a, b, c})
	require.NotNil(t, m)
	assert.Equal(t, []string{"AAA", "BBB", "CCC"}, m.Symbols)
	require.Len(t, m.Matrix, 3)

	for i := 0; i < 3; i++ {
		assert.Equal(t, 1.0, m.Matrix[i][i], "diagonal must be exactly 1")
		for j := 0; j < 3; j++ {
			assert.Equal(t, m.Matrix[i][j], m.Matrix[j][i], "matrix must be symmetric")
			assert.GreaterOrEqual(t, m.Matrix[i][j], -1.0)
			assert.LessOrEqual(t, m.Matrix[i][j], 1.0)
		}
	}
}

func TestComputeCorrelations_ZeroVariance(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	flat := seriesFromPrices("FLAT", start, []float64{100, 100, 100, 100})
	moving := seriesFromPrices("MOV", start, []float64{100, 105, 102, 108})

	m := ComputeCorrelations([]*ProcessedSeries{flat, moving})
	require.NotNil(t, m)
	assert.Zero(t, m.Matrix[0][1], "zero-variance pair correlates 0, not NaN")
}

func TestComputeCorrelations_AlignsOnCommonDates(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	a := seriesFromPrices("AAA", start, []float64{100, 102, 101, 105, 103})
	// Shifted two days later; only a partial overlap of dates exists.
	b := seriesFromPrices("BBB", start.AddDate(0, 0, 2), []float64{100, 102, 101, 105, 103})

	m := ComputeCorrelations([]*ProcessedSeries{a, b})
	require.NotNil(t, m)
	r := m.Matrix[0][1]
	assert.GreaterOrEqual(t, r, -1.0)
	assert.LessOrEqual(t, r, 1.0)
}

func TestComputeCorrelations_NeedsTwoSeries(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	a := seriesFromPrices("AAA", start, []float64{100, 102})
	assert.Nil(t, ComputeCorrelations([]*ProcessedSeries{a}))
	assert.Nil(t, ComputeCorrelations(nil))
}
