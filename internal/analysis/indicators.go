package analysis

import (
	"math"

	"github.com/markcheno/go-talib"
)

// Indicator windows. The SMA triple matches the standard short/medium/
// long trend horizons; RSI and Bollinger use their conventional windows.
const (
	smaShortWindow  = 20
	smaMediumWindow = 50
	smaLongWindow   = 200
	rsiWindow       = 14
	bollingerWindow = 20
	bollingerDevs   = 2.0
	macdFastPeriod  = 12
	macdSlowPeriod  = 26
	macdSignalSpan  = 9
)

// ComputeIndicators derives the full technical indicator set from a
// price series. Every output slice is aligned to prices; positions where
// an indicator's window has not filled yet are NaN.
func ComputeIndicators(prices []float64) *IndicatorSet {
	upper, middle, lower := bollinger(prices)
	return &IndicatorSet{
		SMA20:  SMA(prices, smaShortWindow),
		SMA50:  SMA(prices, smaMediumWindow),
		SMA200: SMA(prices, smaLongWindow),
		RSI14:  RSI(prices, rsiWindow),
		Bollinger: BollingerBands{
			Upper:  upper,
			Middle: middle,
			Lower:  lower,
		},
		MACD: macd(prices),
	}
}

// SMA computes the simple moving average over a trailing window. Indices
// before the window fills are NaN.
func SMA(prices []float64, period int) []float64 {
	if len(prices) == 0 {
		return []float64{}
	}
	if len(prices) < period {
		return nanSlice(len(prices))
	}
	out := talib.Sma(prices, period)
	maskLookback(out, period-1)
	return out
}

// EMA computes the exponential moving average with k = 2/(period+1),
// seeded with the first price. With that seed the series is defined from
// index 0.
func EMA(prices []float64, period int) []float64 {
	if len(prices) == 0 {
		return []float64{}
	}
	k := 2.0 / (float64(period) + 1)
	out := make([]float64, len(prices))
	out[0] = prices[0]
	for i := 1; i < len(prices); i++ {
		out[i] = prices[i]*k + out[i-1]*(1-k)
	}
	return out
}

// RSI computes the 0-100 relative strength index over a trailing window
// of day-over-day changes, Wilder-smoothed. A window with zero average
// loss yields 100, including the degenerate flat window where the
// average gain is also zero.
func RSI(prices []float64, period int) []float64 {
	if len(prices) == 0 {
		return []float64{}
	}
	if len(prices) < period+1 {
		return nanSlice(len(prices))
	}

	out := nanSlice(len(prices))

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		change := prices[i] - prices[i-1]
		if change > 0 {
			avgGain += change
		} else {
			avgLoss -= change
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)
	out[period] = rsiValue(avgGain, avgLoss)

	for i := period + 1; i < len(prices); i++ {
		change := prices[i] - prices[i-1]
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		out[i] = rsiValue(avgGain, avgLoss)
	}

	return out
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// bollinger computes 20-period bands at ±2 population standard
// deviations around the SMA.
func bollinger(prices []float64) (upper, middle, lower []float64) {
	if len(prices) < bollingerWindow {
		n := len(prices)
		return nanSlice(n), nanSlice(n), nanSlice(n)
	}
	upper, middle, lower = talib.BBands(prices, bollingerWindow, bollingerDevs, bollingerDevs, talib.SMA)
	maskLookback(upper, bollingerWindow-1)
	maskLookback(middle, bollingerWindow-1)
	maskLookback(lower, bollingerWindow-1)
	return upper, middle, lower
}

// macd computes MACD(12,26,9) from seeded EMAs: line = EMA12 - EMA26,
// signal = 9-period EMA of the line, histogram = line - signal.
func macd(prices []float64) MACDSeries {
	if len(prices) == 0 {
		return MACDSeries{Line: []float64{}, Signal: []float64{}, Histogram: []float64{}}
	}

	fast := EMA(prices, macdFastPeriod)
	slow := EMA(prices, macdSlowPeriod)

	line := make([]float64, len(prices))
	for i := range line {
		line[i] = fast[i] - slow[i]
	}

	signal := EMA(line, macdSignalSpan)

	histogram := make([]float64, len(prices))
	for i := range histogram {
		histogram[i] = line[i] - signal[i]
	}

	return MACDSeries{Line: line, Signal: signal, Histogram: histogram}
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// maskLookback overwrites the indicator's unfilled lookback region with
// NaN so "undefined" is explicit rather than a zero.
func maskLookback(values []float64, lookback int) {
	for i := 0; i < lookback && i < len(values); i++ {
		values[i] = math.NaN()
	}
}
