package analysis

import (
	"github.com/aristath/market-analyzer/pkg/formulas"
)

// riskFreeRate is the fixed 2% annual rate used for Sharpe. The 252
// trading-day annualization applies regardless of requested frequency;
// both are deliberate reproductions of the established convention and
// should not be "fixed" without a stakeholder decision.
const riskFreeRate = 0.02

// ComputeReturns derives simple, log and cumulative returns from a
// price path. Fewer than 2 points produce empty series.
func ComputeReturns(prices []float64) ReturnSeries {
	daily := formulas.CalculateReturns(prices)
	return ReturnSeries{
		Daily:      daily,
		LogReturns: formulas.CalculateLogReturns(prices),
		Cumulative: formulas.CalculateCumulativeReturns(daily),
	}
}

// ComputeMetrics derives the performance summary from a price path and
// its return series.
func ComputeMetrics(prices []float64, returns ReturnSeries) *PerformanceMetrics {
	totalReturn := 0.0
	if n := len(returns.Cumulative); n > 0 {
		totalReturn = returns.Cumulative[n-1]
	}

	annualized := formulas.AnnualizedReturn(totalReturn, len(returns.Daily))
	volatility := formulas.AnnualizedVolatility(returns.Daily)
	maxDrawdown := formulas.CalculateMaxDrawdown(prices)

	return &PerformanceMetrics{
		TotalReturn:      totalReturn,
		AnnualizedReturn: annualized,
		Volatility:       volatility,
		SharpeRatio:      formulas.SharpeRatio(annualized, riskFreeRate, volatility),
		MaxDrawdown:      maxDrawdown,
		CalmarRatio:      formulas.CalmarRatio(annualized, maxDrawdown),
	}
}
