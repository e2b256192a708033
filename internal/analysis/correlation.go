package analysis

import (
	"github.com/aristath/market-analyzer/pkg/formulas"
)

// ComputeCorrelations builds the symbol × symbol Pearson correlation
// matrix over daily returns. The matrix is symmetric with an exact 1.0
// diagonal; pairs where either series has zero variance correlate 0 by
// convention. Needs at least two series.
func ComputeCorrelations(series []*ProcessedSeries) *CorrelationMatrix {
	if len(series) < 2 {
		return nil
	}

	n := len(series)
	symbols := make([]string, n)
	matrix := make([][]float64, n)
	for i := range matrix {
		symbols[i] = series[i].Symbol
		matrix[i] = make([]float64, n)
		matrix[i][i] = 1.0
	}

	var sum float64
	var pairs int
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			x, y := alignReturns(series[i], series[j])
			r := formulas.Correlation(x, y)
			matrix[i][j] = r
			matrix[j][i] = r
			sum += r
			pairs++
		}
	}

	avg := 0.0
	if pairs > 0 {
		avg = sum / float64(pairs)
	}

	return &CorrelationMatrix{
		Symbols:              symbols,
		Matrix:               matrix,
		AverageCorrelation:   avg,
		DiversificationIndex: 1 - avg,
	}
}

// alignReturns pairs the two symbols' daily returns on their common
// dates. A return at index i belongs to the date at index i+1 of the
// price series.
func alignReturns(a, b *ProcessedSeries) ([]float64, []float64) {
	byDate := make(map[int64]float64, len(b.Returns.Daily))
	for i, r := range b.Returns.Daily {
		byDate[b.Dates[i+1].Unix()] = r
	}

	var x, y []float64
	for i, r := range a.Returns.Daily {
		if other, ok := byDate[a.Dates[i+1].Unix()]; ok {
			x = append(x, r)
			y = append(y, other)
		}
	}
	return x, y
}
