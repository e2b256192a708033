package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/market-analyzer/internal/marketdata"
)

// SourceName is the stable identifier for this provider.
const SourceName = "yahoo"

// Client is a Yahoo Finance chart API adapter. It normalizes the v8
// chart payload into the unified OHLCV schema and classifies failures
// into the shared taxonomy.
type Client struct {
	client  *http.Client
	baseURL string
	cache   *marketdata.ResponseCache
	log     zerolog.Logger
}

// Config holds client configuration.
type Config struct {
	// BaseURL overrides the chart API endpoint, used by tests.
	BaseURL string
	// Cache is the optional response cache. Nil disables caching.
	Cache *marketdata.ResponseCache
	Log   zerolog.Logger
}

// NewClient creates a new Yahoo Finance adapter.
func NewClient(cfg Config) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://query1.finance.yahoo.com/v8/finance/chart"
	}
	return &Client{
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL: baseURL,
		cache:   cfg.Cache,
		log:     cfg.Log.With().Str("client", SourceName).Logger(),
	}
}

// Name implements marketdata.SourceAdapter.
func (c *Client) Name() string {
	return SourceName
}

// timeframeIntervals maps the internal timeframe vocabulary to Yahoo's
// native chart intervals. Private to this adapter.
var timeframeIntervals = map[marketdata.Timeframe]string{
	marketdata.TimeframeDaily:   "1d",
	marketdata.TimeframeWeekly:  "1wk",
	marketdata.TimeframeMonthly: "1mo",
}

// Fetch retrieves an OHLCV series from the Yahoo chart API.
func (c *Client) Fetch(ctx context.Context, symbol string, timeframe marketdata.Timeframe, dateRange marketdata.DateRange) (*marketdata.UnifiedSeriesResponse, error) {
	if err := marketdata.ValidateSymbol(symbol); err != nil {
		return nil, err
	}
	interval, ok := timeframeIntervals[timeframe]
	if !ok {
		return nil, marketdata.Errorf(marketdata.ErrInvalidTimeframe, "yahoo does not support timeframe %q", timeframe)
	}

	cacheKey := fmt.Sprintf("%s:%s:%s:%s", symbol, interval,
		dateRange.Start.Format("2006-01-02"), dateRange.End.Format("2006-01-02"))
	if c.cache != nil {
		if cached, ok := c.cache.Get(cacheKey); ok {
			c.log.Debug().Str("symbol", symbol).Msg("Cache hit")
			return cached, nil
		}
	}

	raw, err := c.fetchChart(ctx, symbol, interval, dateRange)
	if err != nil {
		return nil, err
	}

	resp, err := c.normalize(symbol, raw)
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		c.cache.Put(cacheKey, resp)
	}

	c.log.Info().
		Str("symbol", symbol).
		Str("interval", interval).
		Int("count", resp.PointCount()).
		Msg("Fetched historical prices")

	return resp, nil
}

// chartResponse mirrors the relevant slice of the v8 chart payload.
type chartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []float64 `json:"open"`
					High   []float64 `json:"high"`
					Low    []float64 `json:"low"`
					Close  []float64 `json:"close"`
					Volume []int64   `json:"volume"`
				} `json:"quote"`
				AdjClose []struct {
					AdjClose []float64 `json:"adjclose"`
				} `json:"adjclose"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

func (c *Client) fetchChart(ctx context.Context, symbol, interval string, dateRange marketdata.DateRange) (*chartResponse, error) {
	params := url.Values{}
	params.Add("interval", interval)
	params.Add("period1", fmt.Sprintf("%d", dateRange.Start.Unix()))
	// period2 is exclusive; push it past the end date so the last bar is included.
	params.Add("period2", fmt.Sprintf("%d", dateRange.End.AddDate(0, 0, 1).Unix()))
	params.Add("events", "div,splits")

	reqURL := c.baseURL + "/" + url.PathEscape(symbol) + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, marketdata.NewError(marketdata.ErrUnknown, "failed to create request", err)
	}

	// Yahoo rejects requests without a browser-looking user agent.
	req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, marketdata.NewError(marketdata.ErrNetwork, "failed to fetch chart data", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, marketdata.Errorf(marketdata.ErrRateLimited, "yahoo rate limit hit for %s", symbol)
	case resp.StatusCode == http.StatusNotFound:
		return nil, marketdata.Errorf(marketdata.ErrInvalidSymbol, "yahoo does not know symbol %s", symbol)
	case resp.StatusCode >= 500:
		return nil, marketdata.Errorf(marketdata.ErrNetwork, "yahoo returned status %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(resp.Body)
		return nil, marketdata.Errorf(marketdata.ErrUnknown, "yahoo returned status %d: %s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, marketdata.NewError(marketdata.ErrNetwork, "failed to read response body", err)
	}

	var result chartResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, marketdata.NewError(marketdata.ErrMalformedResponse, "failed to parse chart payload", err)
	}

	if result.Chart.Error != nil {
		if result.Chart.Error.Code == "Not Found" {
			return nil, marketdata.Errorf(marketdata.ErrInvalidSymbol,
				"yahoo error for %s: %s", symbol, result.Chart.Error.Description)
		}
		return nil, marketdata.Errorf(marketdata.ErrUnknown,
			"yahoo error for %s: %s", symbol, result.Chart.Error.Description)
	}

	return &result, nil
}

// normalize converts the chart payload into the unified schema. Rows
// violating the OHLCV invariants fail the whole response as malformed;
// Yahoo's null-padded rows (all-zero) are skipped, matching the payload
// convention for non-trading days.
func (c *Client) normalize(symbol string, raw *chartResponse) (*marketdata.UnifiedSeriesResponse, error) {
	if len(raw.Chart.Result) == 0 {
		return nil, marketdata.Errorf(marketdata.ErrNoData, "no chart data returned for %s", symbol)
	}

	chartData := raw.Chart.Result[0]
	if len(chartData.Indicators.Quote) == 0 || len(chartData.Timestamp) == 0 {
		return nil, marketdata.Errorf(marketdata.ErrNoData, "no quote data returned for %s", symbol)
	}
	quote := chartData.Indicators.Quote[0]

	var adjCloseData []float64
	if len(chartData.Indicators.AdjClose) > 0 {
		adjCloseData = chartData.Indicators.AdjClose[0].AdjClose
	}

	var points []marketdata.OhlcvPoint
	for i, ts := range chartData.Timestamp {
		if i >= len(quote.Open) || i >= len(quote.High) || i >= len(quote.Low) || i >= len(quote.Close) {
			continue
		}
		if quote.Open[i] == 0 && quote.High[i] == 0 && quote.Low[i] == 0 && quote.Close[i] == 0 {
			continue
		}

		adjClose := quote.Close[i]
		if i < len(adjCloseData) && adjCloseData[i] != 0 {
			adjClose = adjCloseData[i]
		}

		volume := int64(0)
		if i < len(quote.Volume) {
			volume = quote.Volume[i]
		}

		day := time.Unix(ts, 0).UTC()
		point := marketdata.OhlcvPoint{
			Date:          time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC),
			Open:          quote.Open[i],
			High:          quote.High[i],
			Low:           quote.Low[i],
			Close:         quote.Close[i],
			AdjustedClose: adjClose,
			Volume:        volume,
		}
		if err := point.Validate(); err != nil {
			return nil, err
		}
		points = append(points, point)
	}

	if len(points) == 0 {
		return nil, marketdata.Errorf(marketdata.ErrNoData, "empty series for %s", symbol)
	}

	return &marketdata.UnifiedSeriesResponse{
		Symbol:    symbol,
		Points:    points,
		Source:    SourceName,
		FetchedAt: time.Now().UTC(),
		Timezone:  "UTC",
	}, nil
}
