package alphavantage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/market-analyzer/internal/marketdata"
)

// SourceName is the stable identifier for this provider.
const SourceName = "alphavantage"

// Client is an Alpha Vantage TIME_SERIES adapter. Alpha Vantage returns
// date-keyed JSON objects instead of parallel arrays, so normalization
// re-sorts rows ascending before validation.
type Client struct {
	client  *http.Client
	baseURL string
	apiKey  string
	cache   *marketdata.ResponseCache
	log     zerolog.Logger
}

// Config holds client configuration.
type Config struct {
	// BaseURL overrides the API endpoint, used by tests.
	BaseURL string
	// APIKey is the Alpha Vantage API key. "demo" works for smoke tests.
	APIKey string
	// Cache is the optional response cache. Nil disables caching.
	Cache *marketdata.ResponseCache
	Log   zerolog.Logger
}

// NewClient creates a new Alpha Vantage adapter.
func NewClient(cfg Config) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://www.alphavantage.co/query"
	}
	return &Client{
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL: baseURL,
		apiKey:  cfg.APIKey,
		cache:   cfg.Cache,
		log:     cfg.Log.With().Str("client", SourceName).Logger(),
	}
}

// Name implements marketdata.SourceAdapter.
func (c *Client) Name() string {
	return SourceName
}

// timeframeFunctions maps the internal timeframe vocabulary to Alpha
// Vantage function names and their series keys. Private to this adapter.
var timeframeFunctions = map[marketdata.Timeframe]struct {
	function  string
	seriesKey string
}{
	marketdata.TimeframeDaily:   {"TIME_SERIES_DAILY_ADJUSTED", "Time Series (Daily)"},
	marketdata.TimeframeWeekly:  {"TIME_SERIES_WEEKLY_ADJUSTED", "Weekly Adjusted Time Series"},
	marketdata.TimeframeMonthly: {"TIME_SERIES_MONTHLY_ADJUSTED", "Monthly Adjusted Time Series"},
}

// Fetch retrieves an OHLCV series from the Alpha Vantage TIME_SERIES API.
func (c *Client) Fetch(ctx context.Context, symbol string, timeframe marketdata.Timeframe, dateRange marketdata.DateRange) (*marketdata.UnifiedSeriesResponse, error) {
	if err := marketdata.ValidateSymbol(symbol); err != nil {
		return nil, err
	}
	fn, ok := timeframeFunctions[timeframe]
	if !ok {
		return nil, marketdata.Errorf(marketdata.ErrInvalidTimeframe, "alphavantage does not support timeframe %q", timeframe)
	}

	cacheKey := fmt.Sprintf("%s:%s:%s:%s", symbol, fn.function,
		dateRange.Start.Format("2006-01-02"), dateRange.End.Format("2006-01-02"))
	if c.cache != nil {
		if cached, ok := c.cache.Get(cacheKey); ok {
			c.log.Debug().Str("symbol", symbol).Msg("Cache hit")
			return cached, nil
		}
	}

	params := url.Values{}
	params.Add("function", fn.function)
	params.Add("symbol", symbol)
	params.Add("outputsize", "full")
	params.Add("apikey", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, marketdata.NewError(marketdata.ErrUnknown, "failed to create request", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, marketdata.NewError(marketdata.ErrNetwork, "failed to fetch time series", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, marketdata.Errorf(marketdata.ErrRateLimited, "alphavantage rate limit hit for %s", symbol)
	case resp.StatusCode >= 500:
		return nil, marketdata.Errorf(marketdata.ErrNetwork, "alphavantage returned status %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, marketdata.Errorf(marketdata.ErrUnknown, "alphavantage returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, marketdata.NewError(marketdata.ErrNetwork, "failed to read response body", err)
	}

	series, err := c.parse(symbol, fn.seriesKey, body)
	if err != nil {
		return nil, err
	}

	series.Points = filterRange(series.Points, dateRange)
	if len(series.Points) == 0 {
		return nil, marketdata.Errorf(marketdata.ErrNoData, "no data for %s in requested range", symbol)
	}

	if c.cache != nil {
		c.cache.Put(cacheKey, series)
	}

	c.log.Info().
		Str("symbol", symbol).
		Str("function", fn.function).
		Int("count", series.PointCount()).
		Msg("Fetched historical prices")

	return series, nil
}

func (c *Client) parse(symbol, seriesKey string, body []byte) (*marketdata.UnifiedSeriesResponse, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, marketdata.NewError(marketdata.ErrMalformedResponse, "failed to parse payload", err)
	}

	// Alpha Vantage signals rate limits and bad symbols inside a 200
	// response body.
	if raw, ok := envelope["Note"]; ok {
		var note string
		_ = json.Unmarshal(raw, &note)
		return nil, marketdata.Errorf(marketdata.ErrRateLimited, "alphavantage throttled request: %s", note)
	}
	if raw, ok := envelope["Information"]; ok {
		var info string
		_ = json.Unmarshal(raw, &info)
		return nil, marketdata.Errorf(marketdata.ErrRateLimited, "alphavantage throttled request: %s", info)
	}
	if raw, ok := envelope["Error Message"]; ok {
		var msg string
		_ = json.Unmarshal(raw, &msg)
		return nil, marketdata.Errorf(marketdata.ErrInvalidSymbol, "alphavantage rejected %s: %s", symbol, msg)
	}

	rawSeries, ok := envelope[seriesKey]
	if !ok {
		return nil, marketdata.Errorf(marketdata.ErrNoData, "no time series in response for %s", symbol)
	}

	var rows map[string]map[string]string
	if err := json.Unmarshal(rawSeries, &rows); err != nil {
		return nil, marketdata.NewError(marketdata.ErrMalformedResponse, "failed to parse time series rows", err)
	}

	points := make([]marketdata.OhlcvPoint, 0, len(rows))
	for dateStr, row := range rows {
		date, err := time.ParseInLocation("2006-01-02", dateStr, time.UTC)
		if err != nil {
			return nil, marketdata.NewError(marketdata.ErrMalformedResponse,
				fmt.Sprintf("bad date key %q", dateStr), err)
		}

		point, err := parseRow(date, row)
		if err != nil {
			return nil, err
		}
		if err := point.Validate(); err != nil {
			return nil, err
		}
		points = append(points, point)
	}

	sort.Slice(points, func(i, j int) bool {
		return points[i].Date.Before(points[j].Date)
	})

	return &marketdata.UnifiedSeriesResponse{
		Symbol:    symbol,
		Points:    points,
		Source:    SourceName,
		FetchedAt: time.Now().UTC(),
		Timezone:  "UTC",
	}, nil
}

// parseRow maps one date-keyed row to an OHLCV bar. Adjusted close falls
// back to close when the field is absent.
func parseRow(date time.Time, row map[string]string) (marketdata.OhlcvPoint, error) {
	open, err := parseField(row, "1. open")
	if err != nil {
		return marketdata.OhlcvPoint{}, err
	}
	high, err := parseField(row, "2. high")
	if err != nil {
		return marketdata.OhlcvPoint{}, err
	}
	low, err := parseField(row, "3. low")
	if err != nil {
		return marketdata.OhlcvPoint{}, err
	}
	closePrice, err := parseField(row, "4. close")
	if err != nil {
		return marketdata.OhlcvPoint{}, err
	}

	adjClose := closePrice
	if raw, ok := row["5. adjusted close"]; ok {
		if v, err := strconv.ParseFloat(raw, 64); err == nil && v != 0 {
			adjClose = v
		}
	}

	volume := int64(0)
	for _, key := range []string{"6. volume", "5. volume"} {
		if raw, ok := row[key]; ok {
			if v, err := strconv.ParseInt(raw, 10, 64); err == nil {
				volume = v
			}
			break
		}
	}

	return marketdata.OhlcvPoint{
		Date:          date,
		Open:          open,
		High:          high,
		Low:           low,
		Close:         closePrice,
		AdjustedClose: adjClose,
		Volume:        volume,
	}, nil
}

func parseField(row map[string]string, key string) (float64, error) {
	raw, ok := row[key]
	if !ok {
		return 0, marketdata.Errorf(marketdata.ErrMalformedResponse, "missing field %q", key)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, marketdata.NewError(marketdata.ErrMalformedResponse,
			fmt.Sprintf("unparseable field %q", key), err)
	}
	return v, nil
}

func filterRange(points []marketdata.OhlcvPoint, dateRange marketdata.DateRange) []marketdata.OhlcvPoint {
	var out []marketdata.OhlcvPoint
	for _, p := range points {
		if p.Date.Before(dateRange.Start) || p.Date.After(dateRange.End) {
			continue
		}
		out = append(out, p)
	}
	return out
}
