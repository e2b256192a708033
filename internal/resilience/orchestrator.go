package resilience

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/market-analyzer/internal/marketdata"
)

// Operation is a unit of work executed against a named service. The
// service name is passed through so one operation can serve both the
// primary and its fallbacks.
type Operation func(ctx context.Context, service string) (interface{}, error)

// ExecuteOptions tune one resilient execution.
type ExecuteOptions struct {
	Timeout              time.Duration
	MaxRetries           int
	EnableCircuitBreaker bool
	EnableFallback       bool
}

// DefaultExecuteOptions returns the standard request-path options.
func DefaultExecuteOptions() ExecuteOptions {
	return ExecuteOptions{
		Timeout:              10 * time.Second,
		MaxRetries:           2,
		EnableCircuitBreaker: true,
		EnableFallback:       true,
	}
}

// BackoffConfig shapes the retry delay curve:
// delay = min(Base * Multiplier^attempt, Max), plus up to 10% jitter.
type BackoffConfig struct {
	Base       time.Duration
	Max        time.Duration
	Multiplier float64
	Jitter     bool
}

// DefaultBackoffConfig returns the standard backoff curve.
func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		Base:       500 * time.Millisecond,
		Max:        10 * time.Second,
		Multiplier: 2.0,
		Jitter:     true,
	}
}

// Delay returns the backoff delay for a zero-based attempt number.
func (b BackoffConfig) Delay(attempt int) time.Duration {
	base := float64(b.Base) * math.Pow(b.Multiplier, float64(attempt))
	if base > float64(b.Max) {
		base = float64(b.Max)
	}
	if b.Jitter {
		base += base * 0.1 * rand.Float64()
		if base > float64(b.Max) {
			base = float64(b.Max)
		}
	}
	return time.Duration(base)
}

// Result reports the outcome of a resilient execution.
type Result struct {
	Success      bool
	Data         interface{}
	Err          *marketdata.Error
	Source       string
	Elapsed      time.Duration
	Retries      int
	UsedFallback bool
}

// Orchestrator wraps operations with timeout, retry with exponential
// backoff, per-service circuit breaking and fallback chaining. It is
// constructed once at the composition root and injected; there is no
// process-wide singleton.
type Orchestrator struct {
	breakers  *BreakerRegistry
	fallbacks *FallbackRegistry
	backoff   BackoffConfig
	log       zerolog.Logger
}

// NewOrchestrator creates an orchestrator over the given breaker and
// fallback registries.
func NewOrchestrator(breakers *BreakerRegistry, fallbacks *FallbackRegistry, backoff BackoffConfig, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		breakers:  breakers,
		fallbacks: fallbacks,
		backoff:   backoff,
		log:       log.With().Str("component", "resilience").Logger(),
	}
}

// Breakers exposes the breaker registry for the admin surface.
func (o *Orchestrator) Breakers() *BreakerRegistry {
	return o.breakers
}

// Fallbacks exposes the fallback registry.
func (o *Orchestrator) Fallbacks() *FallbackRegistry {
	return o.fallbacks
}

// ExecuteResilient runs op against service with retries, then walks the
// healthy fallback chain in priority order. Fallback executions run with
// fallback disabled so chains cannot loop.
func (o *Orchestrator) ExecuteResilient(ctx context.Context, op Operation, service string, opts ExecuteOptions) Result {
	start := time.Now()

	result := o.executeWithRetries(ctx, op, service, opts)
	if result.Success || !opts.EnableFallback {
		result.Elapsed = time.Since(start)
		return result
	}

	for _, fallback := range o.fallbacks.HealthyFallbacks(service) {
		o.log.Warn().
			Str("service", service).
			Str("fallback", fallback).
			Str("error", string(result.Err.Code)).
			Msg("Primary exhausted, trying fallback service")

		fbOpts := opts
		fbOpts.EnableFallback = false
		fbResult := o.ExecuteResilient(ctx, op, fallback, fbOpts)
		if fbResult.Success {
			fbResult.UsedFallback = true
			fbResult.Elapsed = time.Since(start)
			return fbResult
		}
		result = fbResult
	}

	result.Elapsed = time.Since(start)
	return result
}

func (o *Orchestrator) executeWithRetries(ctx context.Context, op Operation, service string, opts ExecuteOptions) Result {
	result := Result{Source: service}

	for attempt := 0; attempt <= opts.MaxRetries; attempt++ {
		data, err := o.executeOnce(ctx, op, service, opts)
		if err == nil {
			result.Success = true
			result.Data = data
			result.Retries = attempt
			return result
		}

		classified := marketdata.Classify(err)
		result.Err = classified
		result.Retries = attempt

		if !classified.Retryable || attempt == opts.MaxRetries {
			return result
		}

		delay := o.backoff.Delay(attempt)
		o.log.Debug().
			Str("service", service).
			Int("attempt", attempt+1).
			Dur("delay", delay).
			Str("error", string(classified.Code)).
			Msg("Retrying after backoff")

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			result.Err = marketdata.NewError(marketdata.ErrTimeout, "cancelled during backoff", ctx.Err())
			return result
		}
	}

	return result
}

// executeOnce runs op under the breaker gate with a hard per-attempt
// timeout. The operation is raced against the timer; a late result is
// discarded, never observed by the caller.
func (o *Orchestrator) executeOnce(ctx context.Context, op Operation, service string, opts ExecuteOptions) (interface{}, error) {
	run := func() (interface{}, error) {
		attemptCtx := ctx
		if opts.Timeout > 0 {
			var cancel context.CancelFunc
			attemptCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
			defer cancel()
		}

		type outcome struct {
			data interface{}
			err  error
		}
		done := make(chan outcome, 1)
		go func() {
			data, err := op(attemptCtx, service)
			done <- outcome{data, err}
		}()

		select {
		case out := <-done:
			return out.data, out.err
		case <-attemptCtx.Done():
			if ctx.Err() != nil {
				return nil, marketdata.NewError(marketdata.ErrTimeout, "request cancelled", ctx.Err())
			}
			return nil, marketdata.Errorf(marketdata.ErrTimeout,
				"operation against %s exceeded %s", service, opts.Timeout)
		}
	}

	if !opts.EnableCircuitBreaker {
		return run()
	}

	var data interface{}
	err := o.breakers.Get(service).Execute(func() error {
		var opErr error
		data, opErr = run()
		return opErr
	})
	return data, err
}
