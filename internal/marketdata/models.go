package marketdata

import (
	"regexp"
	"time"
)

// Timeframe is the internal sampling frequency vocabulary. Each adapter
// owns a private mapping from Timeframe to its provider's native
// interval/range parameters; adapters never share vocabularies.
type Timeframe string

const (
	TimeframeDaily   Timeframe = "daily"
	TimeframeWeekly  Timeframe = "weekly"
	TimeframeMonthly Timeframe = "monthly"
)

// ParseTimeframe validates a frequency string from the request layer.
func ParseTimeframe(s string) (Timeframe, error) {
	switch Timeframe(s) {
	case TimeframeDaily, TimeframeWeekly, TimeframeMonthly:
		return Timeframe(s), nil
	}
	return "", Errorf(ErrInvalidTimeframe, "unsupported timeframe %q", s)
}

// OhlcvPoint is one period's price-and-volume summary. Dates carry no
// time component (UTC midnight). Immutable after creation by an adapter.
type OhlcvPoint struct {
	Date          time.Time `json:"date"`
	Open          float64   `json:"open"`
	High          float64   `json:"high"`
	Low           float64   `json:"low"`
	Close         float64   `json:"close"`
	AdjustedClose float64   `json:"adjusted_close"`
	Volume        int64     `json:"volume"`
}

// Validate checks the OHLCV bar invariants. A violating bar indicates a
// data-integrity problem upstream and must be rejected, not dropped.
func (p OhlcvPoint) Validate() error {
	if p.Open < 0 || p.High < 0 || p.Low < 0 || p.Close < 0 {
		return Errorf(ErrMalformedResponse, "negative price in bar %s", p.Date.Format("2006-01-02"))
	}
	if p.Volume < 0 {
		return Errorf(ErrMalformedResponse, "negative volume in bar %s", p.Date.Format("2006-01-02"))
	}
	if p.High < p.Open || p.High < p.Close || p.High < p.Low {
		return Errorf(ErrMalformedResponse, "high below open/close/low in bar %s", p.Date.Format("2006-01-02"))
	}
	if p.Low > p.Open || p.Low > p.Close {
		return Errorf(ErrMalformedResponse, "low above open/close in bar %s", p.Date.Format("2006-01-02"))
	}
	return nil
}

// UnifiedSeriesResponse is the normalized OHLCV series every adapter
// produces, regardless of provider payload shape.
type UnifiedSeriesResponse struct {
	Symbol       string       `json:"symbol"`
	Points       []OhlcvPoint `json:"points"`
	Source       string       `json:"source"`
	FetchedAt    time.Time    `json:"fetched_at"`
	Timezone     string       `json:"timezone"`
	CacheHit     bool         `json:"cache_hit"`
	FallbackUsed bool         `json:"fallback_used"`
}

// PointCount returns the number of bars in the series.
func (r *UnifiedSeriesResponse) PointCount() int {
	return len(r.Points)
}

// AdjustedCloses extracts the adjusted-close column.
func (r *UnifiedSeriesResponse) AdjustedCloses() []float64 {
	out := make([]float64, len(r.Points))
	for i, p := range r.Points {
		out[i] = p.AdjustedClose
	}
	return out
}

var symbolPattern = regexp.MustCompile(`^[A-Za-z0-9.]+$`)

// ValidateSymbol enforces the request-layer symbol syntax: non-empty,
// at most 10 characters, alphanumeric plus dot.
func ValidateSymbol(symbol string) error {
	if symbol == "" {
		return Errorf(ErrInvalidSymbol, "symbol is empty")
	}
	if len(symbol) > 10 {
		return Errorf(ErrInvalidSymbol, "symbol %q exceeds 10 characters", symbol)
	}
	if !symbolPattern.MatchString(symbol) {
		return Errorf(ErrInvalidSymbol, "symbol %q contains invalid characters", symbol)
	}
	return nil
}
