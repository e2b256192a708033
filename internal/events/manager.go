package events

import (
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
)

// EventType represents different event types
type EventType string

const (
	// Circuit breaker transitions
	BreakerOpened   EventType = "BREAKER_OPENED"
	BreakerHalfOpen EventType = "BREAKER_HALF_OPEN"
	BreakerClosed   EventType = "BREAKER_CLOSED"

	// Data source events
	FallbackActivated EventType = "FALLBACK_ACTIVATED"
	SourceUnhealthy   EventType = "SOURCE_UNHEALTHY"
	SourceRecovered   EventType = "SOURCE_RECOVERED"

	// Pipeline events
	AnalysisDone   EventType = "ANALYSIS_COMPLETED"
	AnalysisFailed EventType = "ANALYSIS_FAILED"

	ErrorOccurred EventType = "ERROR_OCCURRED"
)

// Event represents a system event. Events are a diagnostic side channel;
// nothing in the request path depends on them being observed.
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
	Module    string                 `json:"module"`
}

// Manager handles event emission and logging
type Manager struct {
	log zerolog.Logger
}

// NewManager creates a new event manager
func NewManager(log zerolog.Logger) *Manager {
	return &Manager{
		log: log.With().Str("service", "events").Logger(),
	}
}

// Emit emits an event
func (m *Manager) Emit(eventType EventType, module string, data map[string]interface{}) {
	event := Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
		Module:    module,
	}

	eventJSON, _ := json.Marshal(event)
	m.log.Info().
		Str("event_type", string(eventType)).
		Str("module", module).
		RawJSON("event", eventJSON).
		Msg("Event emitted")
}

// EmitError emits an error event
func (m *Manager) EmitError(module string, err error, context map[string]interface{}) {
	data := map[string]interface{}{
		"error":   err.Error(),
		"context": context,
	}
	m.Emit(ErrorOccurred, module, data)
}

// AnalysisCompleted implements the analysis pipeline's Notifier.
func (m *Manager) AnalysisCompleted(symbols []string, succeeded int, elapsed time.Duration) {
	m.Emit(AnalysisDone, "analysis", map[string]interface{}{
		"symbols":    symbols,
		"succeeded":  succeeded,
		"elapsed_ms": elapsed.Milliseconds(),
	})
}
