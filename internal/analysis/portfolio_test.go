package analysis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPortfolio_EqualWeightedAverage(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	aPrices := make([]float64, 10)
	bPrices := make([]float64, 10)
	for i := 0; i < 10; i++ {
		aPrices[i] = 100 + float64(i)
		bPrices[i] = 200 - float64(i)
	}
	a := seriesFromPrices("AAA", start, aPrices)
	b := seriesFromPrices("BBB", start, bPrices)

	p := BuildPortfolio([]*ProcessedSeries{a, b}, true)
	require.NotNil(t, p)
	require.Len(t, p.Dates, 10)
	require.Len(t, p.Values, 10)

	for i := 0; i < 10; i++ {
		assert.InDelta(t, (aPrices[i]+bPrices[i])/2, p.Values[i], 1e-9, "date %d", i)
	}
	assert.InDelta(t, 0.5, p.Weights["AAA"], 1e-9)
	assert.InDelta(t, 0.5, p.Weights["BBB"], 1e-9)
	require.NotNil(t, p.Metrics)
	assert.Len(t, p.Returns.Daily, 9)
}

func TestBuildPortfolio_UsesDateIntersection(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	a := seriesFromPrices("AAA", start, []float64{100, 101, 102, 103, 104})
	b := seriesFromPrices("BBB", start.AddDate(0, 0, 2), []float64{50, 51, 52, 53, 54})

	p := BuildPortfolio([]*ProcessedSeries{a, b}, false)
	require.NotNil(t, p)
	require.Len(t, p.Dates, 3, "only the three overlapping dates participate")
	assert.Equal(t, start.AddDate(0, 0, 2), p.Dates[0])
	assert.InDelta(t, (102.0+50.0)/2, p.Values[0], 1e-9)
	assert.Nil(t, p.Metrics)
}

func TestBuildPortfolio_NoOverlap(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	a := seriesFromPrices("AAA", start, []float64{100, 101})
	b := seriesFromPrices("BBB", start.AddDate(0, 1, 0), []float64{50, 51})

	assert.Nil(t, BuildPortfolio([]*ProcessedSeries{a, b}, true))
}

func TestBuildPortfolio_NeedsTwoSeries(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	a := seriesFromPrices("AAA", start, []float64{100, 101})

	assert.Nil(t, BuildPortfolio([]*ProcessedSeries{a}, true))
	assert.Nil(t, BuildPortfolio(nil, true))
}

func TestBuildPortfolio_ThreeWayWeights(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	a := seriesFromPrices("AAA", start, []float64{90, 91, 92})
	b := seriesFromPrices("BBB", start, []float64{60, 61, 62})
	c := seriesFromPrices("CCC", start, []float64{30, 31, 32})

	p := BuildPortfolio([]*ProcessedSeries{a, b, c}, false)
	require.NotNil(t, p)
	assert.InDelta(t, 1.0/3.0, p.Weights["CCC"], 1e-9)
	assert.InDelta(t, (90.0+60.0+30.0)/3, p.Values[0], 1e-9)
}
