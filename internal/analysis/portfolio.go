package analysis

import (
	"sort"
	"time"
)

// BuildPortfolio blends an equal-weighted synthetic price series across
// the symbols' common dates (the intersection of all date sets). Returns
// nil unless at least two series are available or no dates overlap.
func BuildPortfolio(series []*ProcessedSeries, includeMetrics bool) *PortfolioSeries {
	if len(series) < 2 {
		return nil
	}

	commonDates := intersectDates(series)
	if len(commonDates) == 0 {
		return nil
	}

	weight := 1.0 / float64(len(series))
	weights := make(map[string]float64, len(series))

	// Per-symbol date → adjusted close lookup.
	lookups := make([]map[int64]float64, len(series))
	for i, s := range series {
		weights[s.Symbol] = weight
		lookup := make(map[int64]float64, len(s.Dates))
		for j, d := range s.Dates {
			lookup[d.Unix()] = s.AdjClose[j]
		}
		lookups[i] = lookup
	}

	values := make([]float64, len(commonDates))
	for i, d := range commonDates {
		var sum float64
		for _, lookup := range lookups {
			sum += weight * lookup[d.Unix()]
		}
		values[i] = sum
	}

	returns := ComputeReturns(values)

	portfolio := &PortfolioSeries{
		Dates:   commonDates,
		Values:  values,
		Returns: returns,
		Weights: weights,
	}
	if includeMetrics {
		portfolio.Metrics = ComputeMetrics(values, returns)
	}
	return portfolio
}

func intersectDates(series []*ProcessedSeries) []time.Time {
	counts := make(map[int64]int)
	byUnix := make(map[int64]time.Time)

	for _, s := range series {
		seen := make(map[int64]bool, len(s.Dates))
		for _, d := range s.Dates {
			u := d.Unix()
			if !seen[u] {
				seen[u] = true
				counts[u]++
				byUnix[u] = d
			}
		}
	}

	var common []time.Time
	for u, c := range counts {
		if c == len(series) {
			common = append(common, byUnix[u])
		}
	}
	sort.Slice(common, func(i, j int) bool { return common[i].Before(common[j]) })
	return common
}
