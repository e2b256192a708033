package analysis

import (
	"time"

	"github.com/aristath/market-analyzer/internal/marketdata"
)

// Request describes one historical analysis run.
type Request struct {
	Symbols           []string
	StartDate         time.Time
	EndDate           time.Time
	Frequency         marketdata.Timeframe
	IncludeIndicators bool
	IncludeMetrics    bool
}

// ReturnSeries carries the three return representations derived from a
// price path. All three are empty for paths shorter than 2 points.
type ReturnSeries struct {
	Daily      []float64 `json:"daily"`
	LogReturns []float64 `json:"log_returns"`
	Cumulative []float64 `json:"cumulative"`
}

// BollingerBands holds the three 20-period bands. Indices before the
// window fills are NaN.
type BollingerBands struct {
	Upper  []float64 `json:"upper"`
	Middle []float64 `json:"middle"`
	Lower  []float64 `json:"lower"`
}

// MACDSeries holds MACD(12,26,9) line, signal and histogram.
type MACDSeries struct {
	Line      []float64 `json:"line"`
	Signal    []float64 `json:"signal"`
	Histogram []float64 `json:"histogram"`
}

// IndicatorSet groups the technical indicators computed per symbol.
// Window-aligned: every slice has the same length as the price series,
// with NaN where the indicator is undefined.
type IndicatorSet struct {
	SMA20     []float64      `json:"sma_20"`
	SMA50     []float64      `json:"sma_50"`
	SMA200    []float64      `json:"sma_200"`
	RSI14     []float64      `json:"rsi_14"`
	Bollinger BollingerBands `json:"bollinger"`
	MACD      MACDSeries     `json:"macd"`
}

// PerformanceMetrics are the risk/return summary figures for one series.
type PerformanceMetrics struct {
	TotalReturn      float64 `json:"total_return"`
	AnnualizedReturn float64 `json:"annualized_return"`
	Volatility       float64 `json:"volatility"`
	SharpeRatio      float64 `json:"sharpe_ratio"`
	MaxDrawdown      float64 `json:"max_drawdown"`
	CalmarRatio      float64 `json:"calmar_ratio"`
}

// ProcessedSeries is the per-symbol analysis output: the windowed price
// arrays plus derived returns, indicators and metrics. Recomputed per
// request, never persisted.
type ProcessedSeries struct {
	Symbol       string              `json:"symbol"`
	Dates        []time.Time         `json:"dates"`
	Open         []float64           `json:"open"`
	High         []float64           `json:"high"`
	Low          []float64           `json:"low"`
	Close        []float64           `json:"close"`
	AdjClose     []float64           `json:"adj_close"`
	Volume       []int64             `json:"volume"`
	Returns      ReturnSeries        `json:"returns"`
	Indicators   *IndicatorSet       `json:"indicators,omitempty"`
	Metrics      *PerformanceMetrics `json:"metrics,omitempty"`
	Source       string              `json:"source"`
	CacheHit     bool                `json:"cache_hit"`
	FallbackUsed bool                `json:"fallback_used"`
}

// PortfolioSeries is the equal-weighted blend across symbols, built only
// when at least two symbols succeed.
type PortfolioSeries struct {
	Dates   []time.Time         `json:"dates"`
	Values  []float64           `json:"values"`
	Returns ReturnSeries        `json:"returns"`
	Metrics *PerformanceMetrics `json:"metrics,omitempty"`
	Weights map[string]float64  `json:"weights"`
}

// PhaseKind labels a market phase.
type PhaseKind string

const (
	PhaseBull          PhaseKind = "bull"
	PhaseBear          PhaseKind = "bear"
	PhaseConsolidation PhaseKind = "consolidation"
)

// MarketPhase is one segment of the reference symbol's regime timeline.
// Consolidation phases carry no return figure.
type MarketPhase struct {
	Kind      PhaseKind `json:"kind"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	Duration  int       `json:"duration"`
	Return    *float64  `json:"return,omitempty"`
}

// CorrelationMatrix is a symbol × symbol Pearson correlation matrix with
// a diversification summary.
type CorrelationMatrix struct {
	Symbols              []string    `json:"symbols"`
	Matrix               [][]float64 `json:"matrix"`
	AverageCorrelation   float64     `json:"average_correlation"`
	DiversificationIndex float64     `json:"diversification_index"`
}

// SymbolFailure records one excluded symbol and why.
type SymbolFailure struct {
	Symbol string `json:"symbol"`
	Error  string `json:"error"`
}

// Metadata describes an analysis run.
type Metadata struct {
	AnalyzedAt      time.Time            `json:"analyzed_at"`
	Symbols         []string             `json:"symbols"`
	StartDate       time.Time            `json:"start_date"`
	EndDate         time.Time            `json:"end_date"`
	Frequency       marketdata.Timeframe `json:"frequency"`
	TotalDataPoints int                  `json:"total_data_points"`
	ProcessingTime  time.Duration        `json:"processing_time_ms"`
	SuccessfulCount int                  `json:"successful_count"`
	SourcesUsed     []string             `json:"sources_used"`
	FallbacksUsed   bool                 `json:"fallbacks_used"`
}

// Result is the full analysis output. Series preserves the caller's
// requested symbol order for the symbols that succeeded.
type Result struct {
	Success      bool               `json:"success"`
	Error        string             `json:"error,omitempty"`
	Series       []*ProcessedSeries `json:"series"`
	Portfolio    *PortfolioSeries   `json:"portfolio,omitempty"`
	Phases       []MarketPhase      `json:"phases,omitempty"`
	Correlations *CorrelationMatrix `json:"correlations,omitempty"`
	Failures     []SymbolFailure    `json:"failures,omitempty"`
	Metadata     Metadata           `json:"metadata"`
}
