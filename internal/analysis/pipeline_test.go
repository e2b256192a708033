package analysis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/market-analyzer/internal/marketdata"
	"github.com/aristath/market-analyzer/pkg/logger"
)

// fakeSource serves canned responses or errors per symbol.
type fakeSource struct {
	responses map[string]*marketdata.UnifiedSeriesResponse
	errors    map[string]error
}

func (f *fakeSource) GetStockData(ctx context.Context, symbol string, timeframe marketdata.Timeframe, dateRange marketdata.DateRange, opts marketdata.FetchOptions) (*marketdata.UnifiedSeriesResponse, error) {
	if err, ok := f.errors[symbol]; ok {
		return nil, err
	}
	if resp, ok := f.responses[symbol]; ok {
		return resp, nil
	}
	return nil, marketdata.Errorf(marketdata.ErrNoData, "no data for %s", symbol)
}

type fakeNotifier struct {
	symbols   []string
	succeeded int
}

func (f *fakeNotifier) AnalysisCompleted(symbols []string, succeeded int, elapsed time.Duration) {
	f.symbols = symbols
	f.succeeded = succeeded
}

func seriesResponse(symbol, source string, start time.Time, n int) *marketdata.UnifiedSeriesResponse {
	points := make([]marketdata.OhlcvPoint, n)
	price := 100.0
	for i := 0; i < n; i++ {
		price += float64(i%5) - 2
		points[i] = marketdata.OhlcvPoint{
			Date:          start.AddDate(0, 0, i),
			Open:          price,
			High:          price + 1,
			Low:           price - 1,
			Close:         price,
			AdjustedClose: price,
			Volume:        1000,
		}
	}
	return &marketdata.UnifiedSeriesResponse{
		Symbol: symbol,
		Points: points,
		Source: source,
	}
}

func analysisRequest(symbols []string, start time.Time, days int) Request {
	return Request{
		Symbols:           symbols,
		StartDate:         start,
		EndDate:           start.AddDate(0, 0, days-1),
		Frequency:         marketdata.TimeframeDaily,
		IncludeIndicators: true,
		IncludeMetrics:    true,
	}
}

func TestPipeline_AllSymbolsSucceed(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	source := &fakeSource{responses: map[string]*marketdata.UnifiedSeriesResponse{
		"AAPL": seriesResponse("AAPL", "yahoo", start, 30),
		"MSFT": seriesResponse("MSFT", "alphavantage", start, 30),
	}}
	notifier := &fakeNotifier{}
	p := NewPipeline(source, notifier, logger.Nop())

	result := p.Analyze(context.Background(), analysisRequest([]string{"AAPL", "MSFT"}, start, 30))

	require.True(t, result.Success)
	require.Len(t, result.Series, 2)
	assert.Equal(t, "AAPL", result.Series[0].Symbol, "output preserves requested order")
	assert.Equal(t, "MSFT", result.Series[1].Symbol)
	assert.Empty(t, result.Failures)

	require.NotNil(t, result.Portfolio)
	require.NotNil(t, result.Correlations)
	assert.NotEmpty(t, result.Phases)

	require.NotNil(t, result.Series[0].Indicators)
	require.NotNil(t, result.Series[0].Metrics)
	assert.Len(t, result.Series[0].Returns.Daily, 29)

	assert.Equal(t, 60, result.Metadata.TotalDataPoints)
	assert.Equal(t, []string{"alphavantage", "yahoo"}, result.Metadata.SourcesUsed)
	assert.Equal(t, 2, result.Metadata.SuccessfulCount)
	assert.False(t, result.Metadata.FallbacksUsed)

	assert.Equal(t, 2, notifier.succeeded)
}

func TestPipeline_PartialFailure(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	source := &fakeSource{
		responses: map[string]*marketdata.UnifiedSeriesResponse{
			"AAPL": seriesResponse("AAPL", "yahoo", start, 30),
		},
		errors: map[string]error{
			"BOGUS": marketdata.Errorf(marketdata.ErrInvalidSymbol, "no such symbol"),
		},
	}
	p := NewPipeline(source, nil, logger.Nop())

	result := p.Analyze(context.Background(), analysisRequest([]string{"AAPL", "BOGUS"}, start, 30))

	require.True(t, result.Success, "one good symbol keeps the run alive")
	require.Len(t, result.Series, 1)
	assert.Equal(t, "AAPL", result.Series[0].Symbol)

	require.Len(t, result.Failures, 1)
	assert.Equal(t, "BOGUS", result.Failures[0].Symbol)
	assert.Contains(t, result.Failures[0].Error, "INVALID_SYMBOL")

	assert.Nil(t, result.Portfolio, "a single surviving symbol has no portfolio")
	assert.Nil(t, result.Correlations)
	assert.NotEmpty(t, result.Phases, "phases come from the first surviving symbol")
}

func TestPipeline_TotalFailure(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	source := &fakeSource{errors: map[string]error{
		"AAA": marketdata.Errorf(marketdata.ErrNetwork, "down"),
		"BBB": marketdata.Errorf(marketdata.ErrNoData, "nothing"),
	}}
	p := NewPipeline(source, nil, logger.Nop())

	result := p.Analyze(context.Background(), analysisRequest([]string{"AAA", "BBB"}, start, 30))

	require.NotNil(t, result, "total failure is a structured result, not an error")
	assert.False(t, result.Success)
	assert.Equal(t, "no valid data for any requested symbol", result.Error)
	assert.Empty(t, result.Series)
	assert.Len(t, result.Failures, 2)
}

func TestPipeline_WindowsAndDeduplicates(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	resp := seriesResponse("AAPL", "yahoo", start, 30)
	// Duplicate of day 3 with a different close; last write wins.
	dup := resp.Points[3]
	dup.Close = 999
	dup.High = 1000
	dup.AdjustedClose = 999
	resp.Points = append(resp.Points, dup)

	source := &fakeSource{responses: map[string]*marketdata.UnifiedSeriesResponse{"AAPL": resp}}
	p := NewPipeline(source, nil, logger.Nop())

	// Request a narrower window than the response covers.
	req := analysisRequest([]string{"AAPL"}, start.AddDate(0, 0, 2), 10)
	result := p.Analyze(context.Background(), req)

	require.True(t, result.Success)
	s := result.Series[0]
	assert.Len(t, s.Dates, 10, "points outside the window are dropped")
	assert.Equal(t, start.AddDate(0, 0, 2), s.Dates[0])
	assert.Equal(t, 999.0, s.AdjClose[1], "duplicate date resolves to the later point")

	for i := 1; i < len(s.Dates); i++ {
		assert.True(t, s.Dates[i].After(s.Dates[i-1]), "dates must be strictly ascending")
	}
}

func TestPipeline_SkipsIndicatorsAndMetricsOnRequest(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	source := &fakeSource{responses: map[string]*marketdata.UnifiedSeriesResponse{
		"AAPL": seriesResponse("AAPL", "yahoo", start, 10),
	}}
	p := NewPipeline(source, nil, logger.Nop())

	req := analysisRequest([]string{"AAPL"}, start, 10)
	req.IncludeIndicators = false
	req.IncludeMetrics = false
	result := p.Analyze(context.Background(), req)

	require.True(t, result.Success)
	assert.Nil(t, result.Series[0].Indicators)
	assert.Nil(t, result.Series[0].Metrics)
	assert.NotEmpty(t, result.Series[0].Returns.Daily, "returns are always derived")
}

func TestPipeline_FallbackFlagPropagates(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	resp := seriesResponse("AAPL", "alphavantage", start, 10)
	resp.FallbackUsed = true
	source := &fakeSource{responses: map[string]*marketdata.UnifiedSeriesResponse{"AAPL": resp}}
	p := NewPipeline(source, nil, logger.Nop())

	result := p.Analyze(context.Background(), analysisRequest([]string{"AAPL"}, start, 10))

	require.True(t, result.Success)
	assert.True(t, result.Series[0].FallbackUsed)
	assert.True(t, result.Metadata.FallbacksUsed)
}
