package analysis

import (
	"fmt"
	"sort"
	"time"
)

// ChartDataset is one renderable line: a label plus values aligned to
// the response labels. Missing values (unfilled indicator windows, dates
// the symbol did not trade) are nil so JSON carries null, which chart
// libraries treat as a gap.
type ChartDataset struct {
	Label  string     `json:"label"`
	Symbol string     `json:"symbol,omitempty"`
	Values []*float64 `json:"values"`
}

// MetricEntry is one flat label/value pair for the metrics table.
type MetricEntry struct {
	Label  string  `json:"label"`
	Symbol string  `json:"symbol"`
	Value  float64 `json:"value"`
}

// RiskSummary is the volatility/Sharpe overview across symbols.
type RiskSummary struct {
	Symbol     string  `json:"symbol"`
	Volatility float64 `json:"volatility"`
	Sharpe     float64 `json:"sharpe"`
}

// ChartResponse is the presentation-ready envelope consumed by the
// routing shim. It is always well-formed: failures carry Success=false,
// a message, and zeroed metadata.
type ChartResponse struct {
	Success      bool               `json:"success"`
	Message      string             `json:"message,omitempty"`
	Labels       []string           `json:"labels"`
	Datasets     []ChartDataset     `json:"datasets"`
	Metrics      []MetricEntry      `json:"metrics"`
	RiskSummary  []RiskSummary      `json:"risk_summary"`
	Correlations *CorrelationMatrix `json:"correlations,omitempty"`
	Phases       []MarketPhase      `json:"phases,omitempty"`
	Metadata     Metadata           `json:"metadata"`
}

// BuildChartResponse flattens an analysis Result into chart-ready form.
func BuildChartResponse(result *Result) *ChartResponse {
	resp := &ChartResponse{
		Success:      result.Success,
		Message:      result.Error,
		Labels:       []string{},
		Datasets:     []ChartDataset{},
		Metrics:      []MetricEntry{},
		RiskSummary:  []RiskSummary{},
		Correlations: result.Correlations,
		Phases:       result.Phases,
		Metadata:     result.Metadata,
	}
	if !result.Success {
		return resp
	}

	labels, index := unionDates(result)
	resp.Labels = labels

	for _, s := range result.Series {
		resp.Datasets = append(resp.Datasets, alignDataset(s.Symbol, s.Symbol, s.Dates, s.AdjClose, index, len(labels)))

		if s.Indicators != nil {
			ind := s.Indicators
			resp.Datasets = append(resp.Datasets,
				alignDataset(s.Symbol+" SMA20", s.Symbol, s.Dates, ind.SMA20, index, len(labels)),
				alignDataset(s.Symbol+" SMA50", s.Symbol, s.Dates, ind.SMA50, index, len(labels)),
				alignDataset(s.Symbol+" SMA200", s.Symbol, s.Dates, ind.SMA200, index, len(labels)),
				alignDataset(s.Symbol+" RSI14", s.Symbol, s.Dates, ind.RSI14, index, len(labels)),
				alignDataset(s.Symbol+" BB Upper", s.Symbol, s.Dates, ind.Bollinger.Upper, index, len(labels)),
				alignDataset(s.Symbol+" BB Lower", s.Symbol, s.Dates, ind.Bollinger.Lower, index, len(labels)),
				alignDataset(s.Symbol+" MACD", s.Symbol, s.Dates, ind.MACD.Line, index, len(labels)),
				alignDataset(s.Symbol+" MACD Signal", s.Symbol, s.Dates, ind.MACD.Signal, index, len(labels)),
			)
		}

		if s.Metrics != nil {
			resp.Metrics = append(resp.Metrics, metricEntries(s.Symbol, s.Metrics)...)
			resp.RiskSummary = append(resp.RiskSummary, RiskSummary{
				Symbol:     s.Symbol,
				Volatility: s.Metrics.Volatility,
				Sharpe:     s.Metrics.SharpeRatio,
			})
		}
	}

	if result.Portfolio != nil {
		resp.Datasets = append(resp.Datasets,
			alignDataset("Portfolio", "", result.Portfolio.Dates, result.Portfolio.Values, index, len(labels)))
		if result.Portfolio.Metrics != nil {
			resp.Metrics = append(resp.Metrics, metricEntries("Portfolio", result.Portfolio.Metrics)...)
			resp.RiskSummary = append(resp.RiskSummary, RiskSummary{
				Symbol:     "Portfolio",
				Volatility: result.Portfolio.Metrics.Volatility,
				Sharpe:     result.Portfolio.Metrics.SharpeRatio,
			})
		}
	}

	return resp
}

func metricEntries(symbol string, m *PerformanceMetrics) []MetricEntry {
	return []MetricEntry{
		{Label: "Total Return", Symbol: symbol, Value: m.TotalReturn},
		{Label: "Annualized Return", Symbol: symbol, Value: m.AnnualizedReturn},
		{Label: "Volatility", Symbol: symbol, Value: m.Volatility},
		{Label: "Sharpe Ratio", Symbol: symbol, Value: m.SharpeRatio},
		{Label: "Max Drawdown", Symbol: symbol, Value: m.MaxDrawdown},
		{Label: "Calmar Ratio", Symbol: symbol, Value: m.CalmarRatio},
	}
}

// unionDates collects every date appearing in any series, sorted, and
// returns both the formatted labels and a date → position index.
func unionDates(result *Result) ([]string, map[int64]int) {
	seen := make(map[int64]time.Time)
	for _, s := range result.Series {
		for _, d := range s.Dates {
			seen[d.Unix()] = d
		}
	}

	dates := make([]time.Time, 0, len(seen))
	for _, d := range seen {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	labels := make([]string, len(dates))
	index := make(map[int64]int, len(dates))
	for i, d := range dates {
		labels[i] = d.Format("2006-01-02")
		index[d.Unix()] = i
	}
	return labels, index
}

func alignDataset(label, symbol string, dates []time.Time, values []float64, index map[int64]int, width int) ChartDataset {
	aligned := make([]*float64, width)
	for i, d := range dates {
		if i >= len(values) {
			break
		}
		pos, ok := index[d.Unix()]
		if !ok {
			continue
		}
		if values[i] != values[i] { // NaN stays a gap
			continue
		}
		v := values[i]
		aligned[pos] = &v
	}
	return ChartDataset{Label: label, Symbol: symbol, Values: aligned}
}

// FormatPhaseSummary renders a short human-readable phase description,
// used by the admin/status surface.
func FormatPhaseSummary(phases []MarketPhase) string {
	if len(phases) == 0 {
		return "no phases detected"
	}
	last := phases[len(phases)-1]
	return fmt.Sprintf("%d phases, currently %s since %s",
		len(phases), last.Kind, last.StartDate.Format("2006-01-02"))
}
