package formulas

import "math"

// CalculateReturns converts prices to simple per-period returns
// Returns[i] = (Price[i+1] - Price[i]) / Price[i]
//
// Fewer than 2 prices produce an empty slice.
func CalculateReturns(prices []float64) []float64 {
	if len(prices) < 2 {
		return []float64{}
	}

	returns := make([]float64, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		if prices[i-1] != 0 {
			returns[i-1] = (prices[i] - prices[i-1]) / prices[i-1]
		}
	}

	return returns
}

// CalculateLogReturns converts prices to continuously-compounded returns
// LogReturns[i] = ln(Price[i+1] / Price[i])
func CalculateLogReturns(prices []float64) []float64 {
	if len(prices) < 2 {
		return []float64{}
	}

	returns := make([]float64, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		if prices[i-1] > 0 && prices[i] > 0 {
			returns[i-1] = math.Log(prices[i] / prices[i-1])
		}
	}

	return returns
}

// CalculateCumulativeReturns compounds simple returns into a running
// cumulative return series:
//
//	Cumulative[i] = Π(1 + Returns[0..i]) - 1
func CalculateCumulativeReturns(returns []float64) []float64 {
	if len(returns) == 0 {
		return []float64{}
	}

	cumulative := make([]float64, len(returns))
	acc := 1.0
	for i, r := range returns {
		acc *= 1 + r
		cumulative[i] = acc - 1
	}

	return cumulative
}
