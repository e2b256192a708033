package marketdata

import (
	"context"
	"time"
)

// DateRange bounds a historical fetch. Both ends are inclusive calendar
// dates; providers that only speak relative ranges widen and the
// pipeline narrows back to the requested window.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Days returns the span of the range in calendar days.
func (r DateRange) Days() int {
	return int(r.End.Sub(r.Start).Hours()/24) + 1
}

// FetchOptions tune a single fetch through the data-source manager.
type FetchOptions struct {
	// ForceSource bypasses primary/fallback selection and calls the named
	// adapter directly.
	ForceSource string
}

// SourceAdapter normalizes one upstream provider into the unified
// schema. Implementations validate inputs before touching the network,
// classify every failure into the shared taxonomy, and reject bars that
// violate the OHLCV invariants.
type SourceAdapter interface {
	// Name returns the stable source identifier ("yahoo", "alphavantage").
	Name() string

	// Fetch retrieves an OHLCV series for symbol at the given timeframe.
	Fetch(ctx context.Context, symbol string, timeframe Timeframe, dateRange DateRange) (*UnifiedSeriesResponse, error)
}
