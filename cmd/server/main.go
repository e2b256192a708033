package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aristath/market-analyzer/internal/analysis"
	"github.com/aristath/market-analyzer/internal/clients/alphavantage"
	"github.com/aristath/market-analyzer/internal/clients/yahoo"
	"github.com/aristath/market-analyzer/internal/config"
	"github.com/aristath/market-analyzer/internal/database"
	"github.com/aristath/market-analyzer/internal/diagnostics"
	"github.com/aristath/market-analyzer/internal/events"
	"github.com/aristath/market-analyzer/internal/marketdata"
	"github.com/aristath/market-analyzer/internal/resilience"
	"github.com/aristath/market-analyzer/internal/scheduler"
	"github.com/aristath/market-analyzer/internal/server"
	"github.com/aristath/market-analyzer/internal/sources"
	"github.com/aristath/market-analyzer/pkg/logger"
)

func main() {
	// Load configuration first so the logger honors LOG_LEVEL.
	cfg, err := config.Load()
	if err != nil {
		fallback := logger.New(logger.Config{Level: "info", Pretty: true})
		fallback.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	log.Info().Msg("Starting market analyzer")

	// Diagnostics store is best-effort: a broken database disables
	// telemetry persistence but never blocks startup.
	var db *database.DB
	if d, err := database.New(cfg.DiagnosticsDBPath); err != nil {
		log.Warn().Err(err).Msg("Diagnostics database unavailable, telemetry persistence disabled")
	} else if err := d.Migrate(); err != nil {
		log.Warn().Err(err).Msg("Diagnostics migration failed, telemetry persistence disabled")
		d.Close()
	} else {
		db = d
	}
	if db != nil {
		defer db.Close()
	}
	diag := diagnostics.NewRepository(db, log)

	eventBus := events.NewManager(log)

	// Source adapters, each with its own FIFO response cache.
	yahooClient := yahoo.NewClient(yahoo.Config{
		Cache: marketdata.NewResponseCache(cfg.CacheTTL, cfg.CacheCapacity),
		Log:   log,
	})
	avClient := alphavantage.NewClient(alphavantage.Config{
		APIKey: cfg.AlphaVantageAPIKey,
		Cache:  marketdata.NewResponseCache(cfg.CacheTTL, cfg.CacheCapacity),
		Log:    log,
	})

	// Resilience layer: one breaker per service name, fallback registry
	// refreshed by the health sweep, orchestrator tying them together.
	breakers := resilience.NewBreakerRegistry(resilience.BreakerConfig{
		FailureThreshold:         cfg.FailureThreshold,
		RecoveryTimeout:          cfg.RecoveryTimeout,
		HalfOpenMaxCalls:         cfg.HalfOpenMaxCalls,
		HalfOpenSuccessThreshold: cfg.HalfOpenSuccessThreshold,
	}, log)
	breakers.OnTransition(func(t resilience.Transition) {
		eventType := events.BreakerClosed
		switch t.To {
		case resilience.StateOpen:
			eventType = events.BreakerOpened
		case resilience.StateHalfOpen:
			eventType = events.BreakerHalfOpen
		}
		eventBus.Emit(eventType, "resilience", map[string]interface{}{
			"service": t.Service,
			"from":    string(t.From),
			"to":      string(t.To),
		})
	})

	var manager *sources.Manager

	fallbacks := resilience.NewFallbackRegistry(
		func(ctx context.Context, service string) error {
			return manager.Probe(ctx, service)
		},
		diag,
		log,
	)

	orchestrator := resilience.NewOrchestrator(breakers, fallbacks, resilience.BackoffConfig{
		Base:       cfg.BackoffBase,
		Max:        cfg.BackoffMax,
		Multiplier: cfg.BackoffMultiplier,
		Jitter:     true,
	}, log)

	manager, err = sources.NewManager(
		[]marketdata.SourceAdapter{yahooClient, avClient},
		sources.ManagerConfig{
			Primary:       cfg.PrimarySource,
			Secondary:     cfg.SecondarySource,
			FallbackDelay: cfg.FallbackDelay,
			Orchestrator:  orchestrator,
			ExecuteOptions: resilience.ExecuteOptions{
				Timeout:              cfg.RequestTimeout,
				MaxRetries:           cfg.MaxRetries,
				EnableCircuitBreaker: true,
				EnableFallback:       true,
			},
			Recorder: diag,
			Log:      log,
		},
	)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize data source manager")
	}

	pipeline := analysis.NewPipeline(manager, eventBus, log)

	// Periodic fallback health sweep, with one immediate sweep so source
	// health is known before the first cron tick.
	sched := scheduler.New(log)
	healthJob := scheduler.NewHealthCheckJob(fallbacks, cfg.RequestTimeout, log)
	if err := sched.AddJob(cfg.HealthCheckSchedule, healthJob); err != nil {
		log.Fatal().Err(err).Msg("Failed to register health check job")
	}
	if err := sched.RunNow(healthJob); err != nil {
		log.Warn().Err(err).Msg("Initial health sweep failed")
	}
	sched.Start()
	defer sched.Stop()

	srv := server.New(server.Config{
		Port:        cfg.Port,
		Log:         log,
		Pipeline:    pipeline,
		Manager:     manager,
		Breakers:    breakers,
		Fallbacks:   fallbacks,
		Diagnostics: diag,
		DevMode:     cfg.DevMode,
	})

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
