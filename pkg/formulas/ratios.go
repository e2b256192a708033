package formulas

import "math"

// TradingDaysPerYear is the annualization convention used throughout.
// It is applied regardless of the actual sampling frequency; see the
// performance metrics documentation before changing it.
const TradingDaysPerYear = 252

// AnnualizedReturn converts a total return over `periods` observations
// into an annualized rate using the 252-period convention:
//
//	Annualized = (1 + Total)^(252/periods) - 1
func AnnualizedReturn(totalReturn float64, periods int) float64 {
	if periods <= 0 {
		return 0
	}
	return math.Pow(1+totalReturn, TradingDaysPerYear/float64(periods)) - 1
}

// SharpeRatio calculates the risk-adjusted return:
//
//	Sharpe = (Annualized Return - Risk-free Rate) / Annualized Volatility
//
// Zero volatility returns 0.
func SharpeRatio(annualizedReturn, riskFreeRate, volatility float64) float64 {
	if volatility == 0 {
		return 0
	}
	return (annualizedReturn - riskFreeRate) / volatility
}

// CalmarRatio calculates return per unit of maximum drawdown:
//
//	Calmar = Annualized Return / |Max Drawdown|
//
// A zero drawdown returns 0.
func CalmarRatio(annualizedReturn, maxDrawdown float64) float64 {
	if maxDrawdown == 0 {
		return 0
	}
	return annualizedReturn / math.Abs(maxDrawdown)
}
