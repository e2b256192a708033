package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/market-analyzer/internal/resilience"
)

// HealthCheckJob probes every registered fallback service on a fixed
// schedule and refreshes its health status and observed latency. It runs
// independently of the request path; probe failures mark a service
// unhealthy without ever raising to callers.
type HealthCheckJob struct {
	registry *resilience.FallbackRegistry
	timeout  time.Duration
	log      zerolog.Logger
}

// NewHealthCheckJob creates a health check job over the fallback
// registry.
func NewHealthCheckJob(registry *resilience.FallbackRegistry, timeout time.Duration, log zerolog.Logger) *HealthCheckJob {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HealthCheckJob{
		registry: registry,
		timeout:  timeout,
		log:      log.With().Str("job", "health_check").Logger(),
	}
}

// Name returns the job name
func (j *HealthCheckJob) Name() string {
	return "health_check"
}

// Run executes one probe sweep
func (j *HealthCheckJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	start := time.Now()
	j.registry.RunHealthChecks(ctx)

	j.log.Debug().
		Dur("duration", time.Since(start)).
		Msg("Fallback health sweep completed")

	return nil
}
