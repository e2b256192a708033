package resilience

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/market-analyzer/internal/marketdata"
)

// ErrHalfOpenLimit marks a rejection caused by the half-open probe cap
// rather than an open circuit waiting out its recovery timeout. It is
// wrapped inside the CIRCUIT_OPEN classified error; distinguish with
// errors.Is.
var ErrHalfOpenLimit = errors.New("half-open probe limit reached")

// State is the circuit breaker state.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half_open"
)

// Transition describes an observed breaker state change. Transitions are
// diagnostics only; control flow never depends on observers running.
type Transition struct {
	Service string
	From    State
	To      State
	At      time.Time
}

// TransitionObserver receives breaker transitions. Observers run inline
// under no lock and must not block.
type TransitionObserver func(Transition)

// BreakerConfig tunes a circuit breaker.
type BreakerConfig struct {
	// FailureThreshold is the consecutive-failure count that opens the breaker.
	FailureThreshold int
	// RecoveryTimeout is how long the breaker stays open before probing.
	RecoveryTimeout time.Duration
	// HalfOpenMaxCalls caps concurrent probes while half-open.
	HalfOpenMaxCalls int
	// HalfOpenSuccessThreshold is the probe successes needed to close.
	HalfOpenSuccessThreshold int
}

// DefaultBreakerConfig returns conservative production defaults.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold:         5,
		RecoveryTimeout:          30 * time.Second,
		HalfOpenMaxCalls:         3,
		HalfOpenSuccessThreshold: 2,
	}
}

// BreakerStats is a point-in-time snapshot of breaker state.
type BreakerStats struct {
	Service       string     `json:"service"`
	State         State      `json:"state"`
	FailureCount  int        `json:"failure_count"`
	SuccessCount  int        `json:"success_count"`
	TotalRequests int64      `json:"total_requests"`
	SuccessRate   float64    `json:"success_rate"`
	LastFailure   *time.Time `json:"last_failure,omitempty"`
	NextRetryAt   *time.Time `json:"next_retry_at,omitempty"`
}

// CircuitBreaker gates calls to one upstream service. One instance per
// service name, shared across all concurrent requests targeting that
// service; all counter and state access is serialized under mu.
type CircuitBreaker struct {
	mu sync.Mutex

	service string
	cfg     BreakerConfig
	log     zerolog.Logger

	state            State
	failureCount     int
	successCount     int
	totalRequests    int64
	totalSuccesses   int64
	lastFailureTime  time.Time
	halfOpenInFlight int
	halfOpenSuccess  int

	observers []TransitionObserver
}

// NewCircuitBreaker creates a breaker for the named service, initially
// closed.
func NewCircuitBreaker(service string, cfg BreakerConfig, log zerolog.Logger) *CircuitBreaker {
	return &CircuitBreaker{
		service: service,
		cfg:     cfg,
		state:   StateClosed,
		log:     log.With().Str("component", "circuit_breaker").Str("service", service).Logger(),
	}
}

// OnTransition registers a transition observer.
func (cb *CircuitBreaker) OnTransition(obs TransitionObserver) {
	cb.mu.Lock()
	cb.observers = append(cb.observers, obs)
	cb.mu.Unlock()
}

// Execute runs op under the breaker's gate. While open and before the
// recovery timeout it fails immediately with CIRCUIT_OPEN without
// invoking op. While half-open at most HalfOpenMaxCalls probes run
// concurrently; excess calls are rejected.
func (cb *CircuitBreaker) Execute(op func() error) error {
	if err := cb.beforeCall(); err != nil {
		return err
	}

	err := op()
	cb.afterCall(err)
	return err
}

func (cb *CircuitBreaker) beforeCall() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.totalRequests++

	switch cb.state {
	case StateOpen:
		if time.Since(cb.lastFailureTime) < cb.cfg.RecoveryTimeout {
			return marketdata.Errorf(marketdata.ErrCircuitOpen,
				"circuit open for service %s, retry after %s",
				cb.service, cb.nextRetryLocked().Format(time.RFC3339))
		}
		cb.transitionLocked(StateHalfOpen)
		cb.halfOpenInFlight = 1
		return nil
	case StateHalfOpen:
		if cb.halfOpenInFlight >= cb.cfg.HalfOpenMaxCalls {
			return marketdata.NewError(marketdata.ErrCircuitOpen,
				fmt.Sprintf("service %s is half-open", cb.service), ErrHalfOpenLimit)
		}
		cb.halfOpenInFlight++
		return nil
	default:
		return nil
	}
}

func (cb *CircuitBreaker) afterCall(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateHalfOpen && cb.halfOpenInFlight > 0 {
		cb.halfOpenInFlight--
	}

	if err != nil {
		cb.failureCount++
		cb.lastFailureTime = time.Now()

		switch cb.state {
		case StateHalfOpen:
			// A failed probe reopens immediately.
			cb.transitionLocked(StateOpen)
		case StateClosed:
			if cb.failureCount >= cb.cfg.FailureThreshold {
				cb.transitionLocked(StateOpen)
			}
		}
		return
	}

	cb.successCount++
	cb.totalSuccesses++

	switch cb.state {
	case StateHalfOpen:
		cb.halfOpenSuccess++
		if cb.halfOpenSuccess >= cb.cfg.HalfOpenSuccessThreshold {
			cb.transitionLocked(StateClosed)
		}
	case StateClosed:
		cb.failureCount = 0
	}
}

// transitionLocked moves to next and resets per-state counters. Caller
// holds mu.
func (cb *CircuitBreaker) transitionLocked(next State) {
	if cb.state == next {
		return
	}
	prev := cb.state
	cb.state = next

	switch next {
	case StateClosed:
		cb.failureCount = 0
		cb.halfOpenSuccess = 0
		cb.halfOpenInFlight = 0
	case StateHalfOpen:
		cb.halfOpenSuccess = 0
	}

	t := Transition{Service: cb.service, From: prev, To: next, At: time.Now()}
	cb.log.Warn().
		Str("from", string(prev)).
		Str("to", string(next)).
		Msg("Circuit breaker transition")
	for _, obs := range cb.observers {
		obs(t)
	}
}

// ForceOpen opens the breaker regardless of counters. Operational
// override for taking a source out of rotation.
func (cb *CircuitBreaker) ForceOpen() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.lastFailureTime = time.Now()
	cb.transitionLocked(StateOpen)
}

// ForceClose closes the breaker and clears failure counters.
func (cb *CircuitBreaker) ForceClose() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.transitionLocked(StateClosed)
}

// State returns the current breaker state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Stats returns a snapshot of the breaker's counters.
func (cb *CircuitBreaker) Stats() BreakerStats {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	stats := BreakerStats{
		Service:       cb.service,
		State:         cb.state,
		FailureCount:  cb.failureCount,
		SuccessCount:  cb.successCount,
		TotalRequests: cb.totalRequests,
	}
	if cb.totalRequests > 0 {
		stats.SuccessRate = float64(cb.totalSuccesses) / float64(cb.totalRequests)
	}
	if !cb.lastFailureTime.IsZero() {
		t := cb.lastFailureTime
		stats.LastFailure = &t
	}
	if cb.state == StateOpen {
		next := cb.nextRetryLocked()
		stats.NextRetryAt = &next
	}
	return stats
}

func (cb *CircuitBreaker) nextRetryLocked() time.Time {
	return cb.lastFailureTime.Add(cb.cfg.RecoveryTimeout)
}

// BreakerRegistry owns one CircuitBreaker per service name, created
// lazily on first use.
type BreakerRegistry struct {
	mu       sync.Mutex
	breakers map[string]*CircuitBreaker
	cfg      BreakerConfig
	log      zerolog.Logger
	observer TransitionObserver
}

// NewBreakerRegistry creates a registry applying cfg to every breaker.
func NewBreakerRegistry(cfg BreakerConfig, log zerolog.Logger) *BreakerRegistry {
	return &BreakerRegistry{
		breakers: make(map[string]*CircuitBreaker),
		cfg:      cfg,
		log:      log,
	}
}

// OnTransition sets an observer attached to every breaker the registry
// creates, including those created before the call.
func (r *BreakerRegistry) OnTransition(obs TransitionObserver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observer = obs
	for _, cb := range r.breakers {
		cb.OnTransition(obs)
	}
}

// Get returns the breaker for service, creating it if needed.
func (r *BreakerRegistry) Get(service string) *CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	cb, ok := r.breakers[service]
	if !ok {
		cb = NewCircuitBreaker(service, r.cfg, r.log)
		if r.observer != nil {
			cb.OnTransition(r.observer)
		}
		r.breakers[service] = cb
	}
	return cb
}

// Stats returns snapshots for every known breaker.
func (r *BreakerRegistry) Stats() []BreakerStats {
	r.mu.Lock()
	breakers := make([]*CircuitBreaker, 0, len(r.breakers))
	for _, cb := range r.breakers {
		breakers = append(breakers, cb)
	}
	r.mu.Unlock()

	stats := make([]BreakerStats, 0, len(breakers))
	for _, cb := range breakers {
		stats = append(stats, cb.Stats())
	}
	return stats
}
