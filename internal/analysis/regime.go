package analysis

import "math"

// Regime classification thresholds: price more than 5% above its
// 20-period SMA is a bull phase, more than 5% below is a bear phase,
// anything between is consolidation. A phase switch is only recorded
// once the prior phase has lasted more than minPhaseDuration periods,
// which suppresses whipsaw segments.
const (
	regimeSMAWindow  = 20
	bullThreshold    = 1.05
	bearThreshold    = 0.95
	minPhaseDuration = 5
)

// SegmentMarketPhases splits the reference symbol's timeline into an
// ordered, non-overlapping sequence of bull/bear/consolidation phases.
// Consolidation phases omit the return figure.
func SegmentMarketPhases(series *ProcessedSeries) []MarketPhase {
	if series == nil || len(series.AdjClose) == 0 {
		return nil
	}

	prices := series.AdjClose
	sma := SMA(prices, regimeSMAWindow)

	kinds := make([]PhaseKind, len(prices))
	for i := range prices {
		kinds[i] = classify(prices[i], sma[i])
	}

	var phases []MarketPhase
	phaseStart := 0
	current := kinds[0]

	for i := 1; i < len(kinds); i++ {
		if kinds[i] == current {
			continue
		}
		// Short-lived phases are absorbed into the next one.
		if i-phaseStart > minPhaseDuration {
			phases = append(phases, buildPhase(series, current, phaseStart, i-1))
			phaseStart = i
		}
		current = kinds[i]
	}

	if len(kinds)-phaseStart > minPhaseDuration || len(phases) == 0 {
		phases = append(phases, buildPhase(series, current, phaseStart, len(kinds)-1))
	}

	return phases
}

func classify(price, sma float64) PhaseKind {
	if math.IsNaN(sma) || sma == 0 {
		return PhaseConsolidation
	}
	switch {
	case price > sma*bullThreshold:
		return PhaseBull
	case price < sma*bearThreshold:
		return PhaseBear
	default:
		return PhaseConsolidation
	}
}

func buildPhase(series *ProcessedSeries, kind PhaseKind, start, end int) MarketPhase {
	phase := MarketPhase{
		Kind:      kind,
		StartDate: series.Dates[start],
		EndDate:   series.Dates[end],
		Duration:  end - start + 1,
	}

	if kind != PhaseConsolidation && series.AdjClose[start] != 0 {
		ret := (series.AdjClose[end] - series.AdjClose[start]) / series.AdjClose[start]
		phase.Return = &ret
	}

	return phase
}
