package analysis

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/market-analyzer/internal/marketdata"
)

// DataSource is the slice of the data-source manager the pipeline
// needs. Satisfied by *sources.Manager; faked in tests.
type DataSource interface {
	GetStockData(ctx context.Context, symbol string, timeframe marketdata.Timeframe, dateRange marketdata.DateRange, opts marketdata.FetchOptions) (*marketdata.UnifiedSeriesResponse, error)
}

// Notifier receives pipeline completion events. Diagnostics only.
type Notifier interface {
	AnalysisCompleted(symbols []string, succeeded int, elapsed time.Duration)
}

// Pipeline orchestrates the full historical analysis: concurrent
// per-symbol fetches, per-symbol derivations, portfolio blending, regime
// segmentation and correlation.
type Pipeline struct {
	source   DataSource
	notifier Notifier
	log      zerolog.Logger
}

// NewPipeline creates a pipeline over the given data source. notifier
// may be nil.
func NewPipeline(source DataSource, notifier Notifier, log zerolog.Logger) *Pipeline {
	return &Pipeline{
		source:   source,
		notifier: notifier,
		log:      log.With().Str("component", "analysis_pipeline").Logger(),
	}
}

// Analyze runs one analysis request. Individual symbol failures are
// logged and excluded; the run only fails as a whole when no symbol
// yields data, and even then the result is a structured failure, not an
// error.
func (p *Pipeline) Analyze(ctx context.Context, req Request) *Result {
	start := time.Now()

	series, failures := p.fetchAll(ctx, req)

	result := &Result{
		Failures: failures,
		Metadata: Metadata{
			AnalyzedAt:      time.Now().UTC(),
			Symbols:         req.Symbols,
			StartDate:       req.StartDate,
			EndDate:         req.EndDate,
			Frequency:       req.Frequency,
			SuccessfulCount: len(series),
		},
	}

	if len(series) == 0 {
		result.Success = false
		result.Error = "no valid data for any requested symbol"
		result.Metadata.ProcessingTime = time.Since(start)
		p.log.Warn().
			Strs("symbols", req.Symbols).
			Msg("Analysis produced no valid data")
		return result
	}

	for _, s := range series {
		p.process(s, req)
	}

	result.Series = series
	result.Portfolio = BuildPortfolio(series, req.IncludeMetrics)
	result.Phases = SegmentMarketPhases(series[0])
	result.Correlations = ComputeCorrelations(series)

	sources := make(map[string]bool)
	for _, s := range series {
		result.Metadata.TotalDataPoints += len(s.Dates)
		sources[s.Source] = true
		if s.FallbackUsed {
			result.Metadata.FallbacksUsed = true
		}
	}
	for source := range sources {
		result.Metadata.SourcesUsed = append(result.Metadata.SourcesUsed, source)
	}
	sort.Strings(result.Metadata.SourcesUsed)

	result.Success = true
	result.Metadata.ProcessingTime = time.Since(start)

	p.log.Info().
		Int("symbols", len(req.Symbols)).
		Int("succeeded", len(series)).
		Int("data_points", result.Metadata.TotalDataPoints).
		Dur("elapsed", result.Metadata.ProcessingTime).
		Msg("Analysis completed")

	if p.notifier != nil {
		p.notifier.AnalysisCompleted(req.Symbols, len(series), result.Metadata.ProcessingTime)
	}

	return result
}

// fetchAll fans out one fetch per symbol, waits for all, and partitions
// outcomes. Output order follows the caller's requested symbol order.
func (p *Pipeline) fetchAll(ctx context.Context, req Request) ([]*ProcessedSeries, []SymbolFailure) {
	dateRange := marketdata.DateRange{Start: req.StartDate, End: req.EndDate}

	type outcome struct {
		series  *ProcessedSeries
		failure *SymbolFailure
	}
	outcomes := make([]outcome, len(req.Symbols))

	var wg sync.WaitGroup
	for i, symbol := range req.Symbols {
		wg.Add(1)
		go func(i int, symbol string) {
			defer wg.Done()

			resp, err := p.source.GetStockData(ctx, symbol, req.Frequency, dateRange, marketdata.FetchOptions{})
			if err != nil {
				p.log.Warn().
					Err(err).
					Str("symbol", symbol).
					Msg("Symbol fetch failed, excluding from analysis")
				outcomes[i] = outcome{failure: &SymbolFailure{Symbol: symbol, Error: err.Error()}}
				return
			}

			points := windowPoints(resp.Points, dateRange)
			if len(points) == 0 {
				outcomes[i] = outcome{failure: &SymbolFailure{
					Symbol: symbol,
					Error:  string(marketdata.ErrNoData) + ": no points in requested window",
				}}
				return
			}

			outcomes[i] = outcome{series: newProcessedSeries(symbol, resp, points)}
		}(i, symbol)
	}
	wg.Wait()

	var series []*ProcessedSeries
	var failures []SymbolFailure
	for _, o := range outcomes {
		if o.series != nil {
			series = append(series, o.series)
		} else if o.failure != nil {
			failures = append(failures, *o.failure)
		}
	}
	return series, failures
}

// process derives returns, indicators and metrics in place.
func (p *Pipeline) process(s *ProcessedSeries, req Request) {
	s.Returns = ComputeReturns(s.AdjClose)
	if req.IncludeIndicators {
		s.Indicators = ComputeIndicators(s.AdjClose)
	}
	if req.IncludeMetrics {
		s.Metrics = ComputeMetrics(s.AdjClose, s.Returns)
	}
}

// windowPoints filters to the requested window, sorts ascending by date
// and deduplicates by date with last write winning.
func windowPoints(points []marketdata.OhlcvPoint, dateRange marketdata.DateRange) []marketdata.OhlcvPoint {
	byDate := make(map[int64]marketdata.OhlcvPoint, len(points))
	for _, pt := range points {
		if pt.Date.Before(dateRange.Start) || pt.Date.After(dateRange.End) {
			continue
		}
		byDate[pt.Date.Unix()] = pt
	}

	out := make([]marketdata.OhlcvPoint, 0, len(byDate))
	for _, pt := range byDate {
		out = append(out, pt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

func newProcessedSeries(symbol string, resp *marketdata.UnifiedSeriesResponse, points []marketdata.OhlcvPoint) *ProcessedSeries {
	s := &ProcessedSeries{
		Symbol:       symbol,
		Dates:        make([]time.Time, len(points)),
		Open:         make([]float64, len(points)),
		High:         make([]float64, len(points)),
		Low:          make([]float64, len(points)),
		Close:        make([]float64, len(points)),
		AdjClose:     make([]float64, len(points)),
		Volume:       make([]int64, len(points)),
		Source:       resp.Source,
		CacheHit:     resp.CacheHit,
		FallbackUsed: resp.FallbackUsed,
	}
	for i, pt := range points {
		s.Dates[i] = pt.Date
		s.Open[i] = pt.Open
		s.High[i] = pt.High
		s.Low[i] = pt.Low
		s.Close[i] = pt.Close
		s.AdjClose[i] = pt.AdjustedClose
		s.Volume[i] = pt.Volume
	}
	return s
}
