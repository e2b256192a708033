package analysis

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/market-analyzer/pkg/formulas"
)

func TestComputeReturns(t *testing.T) {
	r := ComputeReturns([]float64{100, 110, 99})

	require.Len(t, r.Daily, 2)
	assert.InDelta(t, 0.10, r.Daily[0], 1e-9)
	assert.InDelta(t, -0.10, r.Daily[1], 1e-9)
	assert.InDelta(t, math.Log(1.1), r.LogReturns[0], 1e-9)
	assert.InDelta(t, -0.01, r.Cumulative[1], 1e-9)
}

func TestComputeReturns_TooShort(t *testing.T) {
	r := ComputeReturns([]float64{100})
	assert.Empty(t, r.Daily)
	assert.Empty(t, r.LogReturns)
	assert.Empty(t, r.Cumulative)
}

func TestComputeMetrics(t *testing.T) {
	prices := []float64{100, 105, 103, 108, 110}
	returns := ComputeReturns(prices)
	m := ComputeMetrics(prices, returns)
	require.NotNil(t, m)

	assert.InDelta(t, 0.10, m.TotalReturn, 1e-9)
	assert.InDelta(t, formulas.AnnualizedReturn(0.10, 4), m.AnnualizedReturn, 1e-9)
	assert.InDelta(t, formulas.AnnualizedVolatility(returns.Daily), m.Volatility, 1e-9)
	assert.InDelta(t, (105.0-103.0)/105.0, m.MaxDrawdown, 1e-9)
	assert.InDelta(t, (m.AnnualizedReturn-0.02)/m.Volatility, m.SharpeRatio, 1e-9)
	assert.InDelta(t, m.AnnualizedReturn/m.MaxDrawdown, m.CalmarRatio, 1e-9)
}

func TestComputeMetrics_FlatSeries(t *testing.T) {
	prices := []float64{100, 100, 100}
	returns := ComputeReturns(prices)
	m := ComputeMetrics(prices, returns)

	assert.Zero(t, m.TotalReturn)
	assert.Zero(t, m.Volatility)
	assert.Zero(t, m.SharpeRatio, "zero volatility must yield a zero Sharpe, not NaN")
	assert.Zero(t, m.MaxDrawdown)
	assert.Zero(t, m.CalmarRatio)
}
