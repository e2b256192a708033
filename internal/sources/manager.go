package sources

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/market-analyzer/internal/marketdata"
	"github.com/aristath/market-analyzer/internal/resilience"
)

// FetchOptions tune a single Manager fetch.
type FetchOptions = marketdata.FetchOptions

// SourceHealth is one adapter's probe outcome.
type SourceHealth struct {
	Source    string        `json:"source"`
	Healthy   bool          `json:"healthy"`
	Latency   time.Duration `json:"latency_ms"`
	Error     string        `json:"error,omitempty"`
	CheckedAt time.Time     `json:"checked_at"`
}

// HealthReport aggregates adapter probe outcomes and fallback usage.
type HealthReport struct {
	Primary        string         `json:"primary"`
	Sources        []SourceHealth `json:"sources"`
	FallbackCounts map[string]int `json:"fallback_counts"`
}

// UsageRecorder receives fallback activations for diagnostics. Recording
// is best-effort; failures never surface to the request path.
type UsageRecorder interface {
	RecordFallback(primary, fallback, symbol string)
}

// Manager selects between a primary and a secondary SourceAdapter and
// tracks fallback usage. Every selected adapter call runs through the
// resilience orchestrator, which adds the per-attempt timeout, retry
// with backoff, circuit breaking, and the registered service-level
// fallback chain.
type Manager struct {
	mu              sync.Mutex
	adapters        map[string]marketdata.SourceAdapter
	primary         string
	secondary       string
	fallbackEnabled bool
	fallbackDelay   time.Duration
	fallbackCounts  map[string]int
	orchestrator    *resilience.Orchestrator
	execOpts        resilience.ExecuteOptions
	recorder        UsageRecorder
	log             zerolog.Logger
}

// ManagerConfig configures a Manager.
type ManagerConfig struct {
	Primary        string
	Secondary      string
	FallbackDelay  time.Duration
	Orchestrator   *resilience.Orchestrator
	ExecuteOptions resilience.ExecuteOptions
	Recorder       UsageRecorder
	Log            zerolog.Logger
}

// NewManager creates a Manager over the given adapters. The primary and
// secondary names must match adapter names. The secondary is also
// registered as the primary's service-level fallback so the
// orchestrator's chain and the health probe loop cover it.
func NewManager(adapters []marketdata.SourceAdapter, cfg ManagerConfig) (*Manager, error) {
	byName := make(map[string]marketdata.SourceAdapter, len(adapters))
	for _, a := range adapters {
		byName[a.Name()] = a
	}
	if _, ok := byName[cfg.Primary]; !ok {
		return nil, fmt.Errorf("primary source %q not registered", cfg.Primary)
	}
	if cfg.Secondary != "" {
		if _, ok := byName[cfg.Secondary]; !ok {
			return nil, fmt.Errorf("secondary source %q not registered", cfg.Secondary)
		}
	}

	m := &Manager{
		adapters:        byName,
		primary:         cfg.Primary,
		secondary:       cfg.Secondary,
		fallbackEnabled: cfg.Secondary != "",
		fallbackDelay:   cfg.FallbackDelay,
		fallbackCounts:  make(map[string]int),
		orchestrator:    cfg.Orchestrator,
		execOpts:        cfg.ExecuteOptions,
		recorder:        cfg.Recorder,
		log:             cfg.Log.With().Str("component", "datasource_manager").Logger(),
	}

	if cfg.Orchestrator != nil && cfg.Secondary != "" {
		cfg.Orchestrator.Fallbacks().Register(cfg.Primary, cfg.Secondary, 1)
	}

	return m, nil
}

// GetStockData fetches an OHLCV series for symbol. The primary attempt
// runs under the orchestrator including its fallback chain; if that
// exhausts, the manager waits fallbackDelay and tries the secondary
// adapter once more directly. Results not served by the primary are
// tagged FallbackUsed=true.
func (m *Manager) GetStockData(ctx context.Context, symbol string, timeframe marketdata.Timeframe, dateRange marketdata.DateRange, opts marketdata.FetchOptions) (*marketdata.UnifiedSeriesResponse, error) {
	if err := marketdata.ValidateSymbol(symbol); err != nil {
		return nil, err
	}

	if opts.ForceSource != "" {
		adapter, ok := m.adapters[opts.ForceSource]
		if !ok {
			return nil, marketdata.Errorf(marketdata.ErrUnknown, "unknown source %q", opts.ForceSource)
		}
		return adapter.Fetch(ctx, symbol, timeframe, dateRange)
	}

	primary, secondary, fallbackEnabled, delay := m.selection()

	op := func(ctx context.Context, service string) (interface{}, error) {
		adapter, ok := m.adapters[service]
		if !ok {
			return nil, marketdata.Errorf(marketdata.ErrUnknown, "unknown source %q", service)
		}
		return adapter.Fetch(ctx, symbol, timeframe, dateRange)
	}

	execOpts := m.execOpts
	execOpts.EnableFallback = fallbackEnabled
	result := m.execute(ctx, op, primary, execOpts)
	if result.Success {
		resp := result.Data.(*marketdata.UnifiedSeriesResponse)
		if result.UsedFallback || resp.Source != primary {
			resp.FallbackUsed = true
			m.recordFallback(primary, resp.Source, symbol)
		}
		return resp, nil
	}
	primaryErr := error(result.Err)

	if !fallbackEnabled || secondary == "" {
		return nil, primaryErr
	}

	m.log.Warn().
		Err(primaryErr).
		Str("symbol", symbol).
		Str("primary", primary).
		Str("fallback", secondary).
		Msg("Primary source exhausted, trying secondary directly")

	// Grace period before hitting the secondary; gives transient rate
	// limits a chance to clear.
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, marketdata.NewError(marketdata.ErrTimeout, "cancelled while waiting for fallback", ctx.Err())
		}
	}

	resp, secondaryErr := m.adapters[secondary].Fetch(ctx, symbol, timeframe, dateRange)
	if secondaryErr != nil {
		// Keep the primary's classification so a dual outage still reads
		// as a network failure rather than missing data.
		return nil, marketdata.Errorf(marketdata.Classify(primaryErr).Code,
			"all sources failed for %s: primary %s (%v); fallback %s (%v)",
			symbol, primary, primaryErr, secondary, secondaryErr)
	}

	resp.FallbackUsed = true
	m.recordFallback(primary, secondary, symbol)
	return resp, nil
}

// execute runs op through the orchestrator when one is configured, or
// directly otherwise (tests).
func (m *Manager) execute(ctx context.Context, op resilience.Operation, service string, opts resilience.ExecuteOptions) resilience.Result {
	if m.orchestrator != nil {
		return m.orchestrator.ExecuteResilient(ctx, op, service, opts)
	}

	start := time.Now()
	data, err := op(ctx, service)
	result := resilience.Result{
		Success: err == nil,
		Data:    data,
		Source:  service,
		Elapsed: time.Since(start),
	}
	if err != nil {
		result.Err = marketdata.Classify(err)
	}
	return result
}

// HealthCheck probes every registered adapter with a lightweight fetch
// and reports per-adapter status, latency and cumulative fallback usage.
func (m *Manager) HealthCheck(ctx context.Context) HealthReport {
	m.mu.Lock()
	primary := m.primary
	names := make([]string, 0, len(m.adapters))
	for name := range m.adapters {
		names = append(names, name)
	}
	counts := make(map[string]int, len(m.fallbackCounts))
	for k, v := range m.fallbackCounts {
		counts[k] = v
	}
	m.mu.Unlock()

	report := HealthReport{Primary: primary, FallbackCounts: counts}
	probeRange := marketdata.DateRange{Start: time.Now().AddDate(0, 0, -7), End: time.Now()}

	for _, name := range names {
		start := time.Now()
		_, err := m.adapters[name].Fetch(ctx, "AAPL", marketdata.TimeframeDaily, probeRange)
		health := SourceHealth{
			Source:    name,
			Healthy:   err == nil,
			Latency:   time.Since(start),
			CheckedAt: time.Now(),
		}
		if err != nil {
			health.Error = err.Error()
		}
		report.Sources = append(report.Sources, health)
	}

	return report
}

// Probe checks a single named source; used by the periodic fallback
// health sweep.
func (m *Manager) Probe(ctx context.Context, service string) error {
	m.mu.Lock()
	adapter, ok := m.adapters[service]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown source %q", service)
	}

	probeRange := marketdata.DateRange{Start: time.Now().AddDate(0, 0, -7), End: time.Now()}
	_, err := adapter.Fetch(ctx, "AAPL", marketdata.TimeframeDaily, probeRange)
	return err
}

// SetPrimarySource switches the primary adapter.
func (m *Manager) SetPrimarySource(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.adapters[name]; !ok {
		return fmt.Errorf("unknown source %q", name)
	}
	if name == m.secondary {
		m.secondary = m.primary
	}
	m.primary = name
	m.log.Info().Str("primary", name).Msg("Primary source changed")
	return nil
}

// SetFallbackEnabled toggles secondary-source fallback.
func (m *Manager) SetFallbackEnabled(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallbackEnabled = enabled
}

// ResetFallbackCounts zeroes the per-source fallback counters.
func (m *Manager) ResetFallbackCounts() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallbackCounts = make(map[string]int)
}

// FallbackCounts returns a copy of the per-source fallback counters.
func (m *Manager) FallbackCounts() map[string]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := make(map[string]int, len(m.fallbackCounts))
	for k, v := range m.fallbackCounts {
		counts[k] = v
	}
	return counts
}

// PrimarySource returns the current primary adapter name.
func (m *Manager) PrimarySource() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.primary
}

func (m *Manager) selection() (primary, secondary string, fallbackEnabled bool, delay time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.primary, m.secondary, m.fallbackEnabled, m.fallbackDelay
}

func (m *Manager) recordFallback(primary, fallback, symbol string) {
	m.mu.Lock()
	m.fallbackCounts[primary]++
	recorder := m.recorder
	m.mu.Unlock()

	if recorder != nil {
		recorder.RecordFallback(primary, fallback, symbol)
	}
}
