package resilience

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// FallbackEntry is one registered fallback for a primary service.
type FallbackEntry struct {
	Name        string        `json:"name"`
	Priority    int           `json:"priority"`
	Healthy     bool          `json:"healthy"`
	LastChecked time.Time     `json:"last_checked"`
	Latency     time.Duration `json:"latency_ms"`
}

// HealthProbe checks whether a service is reachable. Implementations
// should be cheap; probes run on a fixed schedule, not the hot path.
type HealthProbe func(ctx context.Context, service string) error

// ProbeRecorder receives health probe outcomes for diagnostics.
type ProbeRecorder interface {
	RecordProbe(service string, healthy bool, latency time.Duration)
}

// FallbackRegistry maps each primary service to an ordered set of
// fallback services. Health status is written by the periodic probe loop
// and read by the orchestrator's fallback selector.
type FallbackRegistry struct {
	mu       sync.RWMutex
	chains   map[string][]*FallbackEntry
	probe    HealthProbe
	recorder ProbeRecorder
	log      zerolog.Logger
}

// NewFallbackRegistry creates an empty registry. probe may be nil, in
// which case RunHealthChecks is a no-op.
func NewFallbackRegistry(probe HealthProbe, recorder ProbeRecorder, log zerolog.Logger) *FallbackRegistry {
	return &FallbackRegistry{
		chains:   make(map[string][]*FallbackEntry),
		probe:    probe,
		recorder: recorder,
		log:      log.With().Str("component", "fallback_registry").Logger(),
	}
}

// Register adds a fallback for primary. New fallbacks start healthy
// until a probe says otherwise. Lower priority values are tried first.
func (r *FallbackRegistry) Register(primary, fallback string, priority int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	chain := r.chains[primary]
	for _, e := range chain {
		if e.Name == fallback {
			e.Priority = priority
			r.sortLocked(primary)
			return
		}
	}
	chain = append(chain, &FallbackEntry{Name: fallback, Priority: priority, Healthy: true})
	r.chains[primary] = chain
	r.sortLocked(primary)
}

// HealthyFallbacks returns the names of primary's healthy fallbacks in
// priority order.
func (r *FallbackRegistry) HealthyFallbacks(primary string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []string
	for _, e := range r.chains[primary] {
		if e.Healthy {
			out = append(out, e.Name)
		}
	}
	return out
}

// Entries returns a snapshot of primary's fallback chain.
func (r *FallbackRegistry) Entries(primary string) []FallbackEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]FallbackEntry, 0, len(r.chains[primary]))
	for _, e := range r.chains[primary] {
		out = append(out, *e)
	}
	return out
}

// RunHealthChecks probes every registered fallback once and updates its
// health status and observed latency. Probe failures mark the fallback
// unhealthy; they never propagate to callers.
func (r *FallbackRegistry) RunHealthChecks(ctx context.Context) {
	if r.probe == nil {
		return
	}

	r.mu.RLock()
	targets := make(map[string]bool)
	for _, chain := range r.chains {
		for _, e := range chain {
			targets[e.Name] = true
		}
	}
	r.mu.RUnlock()

	for service := range targets {
		start := time.Now()
		err := r.probe(ctx, service)
		latency := time.Since(start)
		healthy := err == nil

		r.mu.Lock()
		for _, chain := range r.chains {
			for _, e := range chain {
				if e.Name == service {
					e.Healthy = healthy
					e.LastChecked = time.Now()
					e.Latency = latency
				}
			}
		}
		r.mu.Unlock()

		if err != nil {
			r.log.Warn().
				Err(err).
				Str("service", service).
				Dur("latency", latency).
				Msg("Fallback health probe failed")
		} else {
			r.log.Debug().
				Str("service", service).
				Dur("latency", latency).
				Msg("Fallback health probe OK")
		}

		if r.recorder != nil {
			r.recorder.RecordProbe(service, healthy, latency)
		}
	}
}

func (r *FallbackRegistry) sortLocked(primary string) {
	chain := r.chains[primary]
	sort.SliceStable(chain, func(i, j int) bool {
		return chain[i].Priority < chain[j].Priority
	})
}
