package sources

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/market-analyzer/internal/marketdata"
	"github.com/aristath/market-analyzer/internal/resilience"
	"github.com/aristath/market-analyzer/pkg/logger"
)

// fakeAdapter is a scriptable SourceAdapter.
type fakeAdapter struct {
	name  string
	err   error
	calls int
}

func (f *fakeAdapter) Name() string { return f.name }

func (f *fakeAdapter) Fetch(ctx context.Context, symbol string, timeframe marketdata.Timeframe, dateRange marketdata.DateRange) (*marketdata.UnifiedSeriesResponse, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &marketdata.UnifiedSeriesResponse{
		Symbol: symbol,
		Source: f.name,
		Points: []marketdata.OhlcvPoint{
			{Date: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), Open: 100, High: 101, Low: 99, Close: 100, AdjustedClose: 100, Volume: 10},
		},
	}, nil
}

type fakeUsageRecorder struct {
	activations [][3]string
}

func (f *fakeUsageRecorder) RecordFallback(primary, fallback, symbol string) {
	f.activations = append(f.activations, [3]string{primary, fallback, symbol})
}

var testRange = marketdata.DateRange{
	Start: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	End:   time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
}

func newTestManager(t *testing.T, primary, secondary *fakeAdapter, recorder UsageRecorder) *Manager {
	t.Helper()
	m, err := NewManager(
		[]marketdata.SourceAdapter{primary, secondary},
		ManagerConfig{
			Primary:   primary.name,
			Secondary: secondary.name,
			Recorder:  recorder,
			Log:       logger.Nop(),
		},
	)
	require.NoError(t, err)
	return m
}

func TestManager_PrimaryServesRequest(t *testing.T) {
	primary := &fakeAdapter{name: "yahoo"}
	secondary := &fakeAdapter{name: "alphavantage"}
	m := newTestManager(t, primary, secondary, nil)

	resp, err := m.GetStockData(context.Background(), "AAPL", marketdata.TimeframeDaily, testRange, FetchOptions{})
	require.NoError(t, err)

	assert.Equal(t, "yahoo", resp.Source)
	assert.False(t, resp.FallbackUsed)
	assert.Equal(t, 1, primary.calls)
	assert.Zero(t, secondary.calls)
	assert.Empty(t, m.FallbackCounts())
}

func TestManager_FallsBackToSecondary(t *testing.T) {
	primary := &fakeAdapter{name: "yahoo", err: marketdata.Errorf(marketdata.ErrNetwork, "down")}
	secondary := &fakeAdapter{name: "alphavantage"}
	recorder := &fakeUsageRecorder{}
	m := newTestManager(t, primary, secondary, recorder)

	resp, err := m.GetStockData(context.Background(), "AAPL", marketdata.TimeframeDaily, testRange, FetchOptions{})
	require.NoError(t, err)

	assert.Equal(t, "alphavantage", resp.Source)
	assert.True(t, resp.FallbackUsed)
	assert.Equal(t, map[string]int{"yahoo": 1}, m.FallbackCounts())

	require.Len(t, recorder.activations, 1)
	assert.Equal(t, [3]string{"yahoo", "alphavantage", "AAPL"}, recorder.activations[0])
}

func TestManager_AllSourcesFail(t *testing.T) {
	primary := &fakeAdapter{name: "yahoo", err: marketdata.Errorf(marketdata.ErrNetwork, "down")}
	secondary := &fakeAdapter{name: "alphavantage", err: marketdata.Errorf(marketdata.ErrRateLimited, "throttled")}
	m := newTestManager(t, primary, secondary, nil)

	_, err := m.GetStockData(context.Background(), "AAPL", marketdata.TimeframeDaily, testRange, FetchOptions{})
	require.Error(t, err)
	assert.Equal(t, marketdata.ErrNetwork, marketdata.CodeOf(err),
		"a dual outage keeps the primary's classification")
	assert.Contains(t, err.Error(), "yahoo")
	assert.Contains(t, err.Error(), "alphavantage")
}

func TestManager_AllSourcesEmpty(t *testing.T) {
	primary := &fakeAdapter{name: "yahoo", err: marketdata.Errorf(marketdata.ErrNoData, "no rows")}
	secondary := &fakeAdapter{name: "alphavantage", err: marketdata.Errorf(marketdata.ErrNoData, "no rows")}
	m := newTestManager(t, primary, secondary, nil)

	_, err := m.GetStockData(context.Background(), "AAPL", marketdata.TimeframeDaily, testRange, FetchOptions{})
	require.Error(t, err)
	assert.Equal(t, marketdata.ErrNoData, marketdata.CodeOf(err))
}

func TestManager_FallbackDisabled(t *testing.T) {
	primary := &fakeAdapter{name: "yahoo", err: marketdata.Errorf(marketdata.ErrNetwork, "down")}
	secondary := &fakeAdapter{name: "alphavantage"}
	m := newTestManager(t, primary, secondary, nil)
	m.SetFallbackEnabled(false)

	_, err := m.GetStockData(context.Background(), "AAPL", marketdata.TimeframeDaily, testRange, FetchOptions{})
	require.Error(t, err)
	assert.Equal(t, marketdata.ErrNetwork, marketdata.CodeOf(err))
	assert.Zero(t, secondary.calls)
}

func TestManager_ForceSource(t *testing.T) {
	primary := &fakeAdapter{name: "yahoo"}
	secondary := &fakeAdapter{name: "alphavantage"}
	m := newTestManager(t, primary, secondary, nil)

	resp, err := m.GetStockData(context.Background(), "AAPL", marketdata.TimeframeDaily, testRange,
		FetchOptions{ForceSource: "alphavantage"})
	require.NoError(t, err)

	assert.Equal(t, "alphavantage", resp.Source)
	assert.Zero(t, primary.calls, "forcing a source bypasses the primary")

	_, err = m.GetStockData(context.Background(), "AAPL", marketdata.TimeframeDaily, testRange,
		FetchOptions{ForceSource: "bloomberg"})
	require.Error(t, err)
}

func TestManager_ValidatesSymbolFirst(t *testing.T) {
	primary := &fakeAdapter{name: "yahoo"}
	secondary := &fakeAdapter{name: "alphavantage"}
	m := newTestManager(t, primary, secondary, nil)

	_, err := m.GetStockData(context.Background(), "", marketdata.TimeframeDaily, testRange, FetchOptions{})
	require.Error(t, err)
	assert.Equal(t, marketdata.ErrInvalidSymbol, marketdata.CodeOf(err))
	assert.Zero(t, primary.calls)
}

func TestManager_SetPrimarySwapsWithSecondary(t *testing.T) {
	primary := &fakeAdapter{name: "yahoo"}
	secondary := &fakeAdapter{name: "alphavantage"}
	m := newTestManager(t, primary, secondary, nil)

	require.NoError(t, m.SetPrimarySource("alphavantage"))
	assert.Equal(t, "alphavantage", m.PrimarySource())

	resp, err := m.GetStockData(context.Background(), "AAPL", marketdata.TimeframeDaily, testRange, FetchOptions{})
	require.NoError(t, err)
	assert.Equal(t, "alphavantage", resp.Source)

	// The old primary became the secondary; it still covers failures.
	secondary.err = marketdata.Errorf(marketdata.ErrNetwork, "down")
	resp, err = m.GetStockData(context.Background(), "AAPL", marketdata.TimeframeDaily, testRange, FetchOptions{})
	require.NoError(t, err)
	assert.Equal(t, "yahoo", resp.Source)
	assert.True(t, resp.FallbackUsed)

	require.Error(t, m.SetPrimarySource("bloomberg"))
}

func TestManager_ResetFallbackCounts(t *testing.T) {
	primary := &fakeAdapter{name: "yahoo", err: marketdata.Errorf(marketdata.ErrNetwork, "down")}
	secondary := &fakeAdapter{name: "alphavantage"}
	m := newTestManager(t, primary, secondary, nil)

	_, err := m.GetStockData(context.Background(), "AAPL", marketdata.TimeframeDaily, testRange, FetchOptions{})
	require.NoError(t, err)
	require.NotEmpty(t, m.FallbackCounts())

	m.ResetFallbackCounts()
	assert.Empty(t, m.FallbackCounts())
}

func TestManager_UnknownPrimaryRejected(t *testing.T) {
	adapter := &fakeAdapter{name: "yahoo"}
	_, err := NewManager([]marketdata.SourceAdapter{adapter}, ManagerConfig{
		Primary: "bloomberg",
		Log:     logger.Nop(),
	})
	require.Error(t, err)
}

func TestManager_OrchestratedFallbackChain(t *testing.T) {
	primary := &fakeAdapter{name: "yahoo", err: marketdata.Errorf(marketdata.ErrNetwork, "down")}
	secondary := &fakeAdapter{name: "alphavantage"}

	breakers := resilience.NewBreakerRegistry(resilience.DefaultBreakerConfig(), logger.Nop())
	fallbacks := resilience.NewFallbackRegistry(nil, nil, logger.Nop())
	orchestrator := resilience.NewOrchestrator(breakers, fallbacks,
		resilience.BackoffConfig{Base: time.Millisecond, Max: time.Millisecond, Multiplier: 1}, logger.Nop())

	m, err := NewManager(
		[]marketdata.SourceAdapter{primary, secondary},
		ManagerConfig{
			Primary:      "yahoo",
			Secondary:    "alphavantage",
			Orchestrator: orchestrator,
			ExecuteOptions: resilience.ExecuteOptions{
				Timeout:    time.Second,
				MaxRetries: 1,
			},
			Log: logger.Nop(),
		},
	)
	require.NoError(t, err)

	resp, err := m.GetStockData(context.Background(), "AAPL", marketdata.TimeframeDaily, testRange, FetchOptions{})
	require.NoError(t, err)

	assert.Equal(t, "alphavantage", resp.Source)
	assert.True(t, resp.FallbackUsed)
	assert.Equal(t, 2, primary.calls, "initial attempt plus one retry before the chain")
	assert.Equal(t, map[string]int{"yahoo": 1}, m.FallbackCounts())
}

func TestManager_HealthCheckProbesAllAdapters(t *testing.T) {
	primary := &fakeAdapter{name: "yahoo"}
	secondary := &fakeAdapter{name: "alphavantage", err: marketdata.Errorf(marketdata.ErrNetwork, "down")}
	m := newTestManager(t, primary, secondary, nil)

	report := m.HealthCheck(context.Background())

	assert.Equal(t, "yahoo", report.Primary)
	require.Len(t, report.Sources, 2)

	byName := map[string]SourceHealth{}
	for _, s := range report.Sources {
		byName[s.Source] = s
	}
	assert.True(t, byName["yahoo"].Healthy)
	assert.False(t, byName["alphavantage"].Healthy)
	assert.NotEmpty(t, byName["alphavantage"].Error)
}

func TestManager_Probe(t *testing.T) {
	primary := &fakeAdapter{name: "yahoo"}
	secondary := &fakeAdapter{name: "alphavantage", err: marketdata.Errorf(marketdata.ErrNetwork, "down")}
	m := newTestManager(t, primary, secondary, nil)

	assert.NoError(t, m.Probe(context.Background(), "yahoo"))
	assert.Error(t, m.Probe(context.Background(), "alphavantage"))
	assert.Error(t, m.Probe(context.Background(), "bloomberg"))
}
