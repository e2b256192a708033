package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/aristath/market-analyzer/internal/analysis"
	"github.com/aristath/market-analyzer/internal/marketdata"
)

// analysisRequest is the wire form of an analysis request.
type analysisRequest struct {
	Symbols           []string `json:"symbols"`
	StartDate         string   `json:"start_date"`
	EndDate           string   `json:"end_date"`
	Frequency         string   `json:"frequency"`
	IncludeIndicators *bool    `json:"include_indicators,omitempty"`
	IncludeMetrics    *bool    `json:"include_metrics,omitempty"`
}

// handleAnalysis runs the historical analysis pipeline. Validation
// failures return 400; pipeline-level failures (zero valid symbols)
// still return a well-formed response with success=false.
func (s *Server) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	var req analysisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	parsed, err := parseAnalysisRequest(req)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	result := s.pipeline.Analyze(r.Context(), parsed)
	s.respondJSON(w, http.StatusOK, analysis.BuildChartResponse(result))
}

func parseAnalysisRequest(req analysisRequest) (analysis.Request, error) {
	if len(req.Symbols) == 0 {
		return analysis.Request{}, marketdata.Errorf(marketdata.ErrInvalidSymbol, "at least one symbol is required")
	}
	for _, symbol := range req.Symbols {
		if err := marketdata.ValidateSymbol(symbol); err != nil {
			return analysis.Request{}, err
		}
	}

	frequency, err := marketdata.ParseTimeframe(req.Frequency)
	if err != nil {
		return analysis.Request{}, err
	}

	start, err := time.ParseInLocation("2006-01-02", req.StartDate, time.UTC)
	if err != nil {
		return analysis.Request{}, marketdata.Errorf(marketdata.ErrUnknown, "invalid start_date %q", req.StartDate)
	}
	end, err := time.ParseInLocation("2006-01-02", req.EndDate, time.UTC)
	if err != nil {
		return analysis.Request{}, marketdata.Errorf(marketdata.ErrUnknown, "invalid end_date %q", req.EndDate)
	}
	if end.Before(start) {
		return analysis.Request{}, marketdata.Errorf(marketdata.ErrUnknown, "start_date must not be after end_date")
	}

	includeIndicators := true
	if req.IncludeIndicators != nil {
		includeIndicators = *req.IncludeIndicators
	}
	includeMetrics := true
	if req.IncludeMetrics != nil {
		includeMetrics = *req.IncludeMetrics
	}

	return analysis.Request{
		Symbols:           req.Symbols,
		StartDate:         start,
		EndDate:           end,
		Frequency:         frequency,
		IncludeIndicators: includeIndicators,
		IncludeMetrics:    includeMetrics,
	}, nil
}

// handleHealth is the liveness endpoint.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleSystemStatus reports breaker and fallback state at a glance.
func (s *Server) handleSystemStatus(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"primary_source":  s.manager.PrimarySource(),
		"fallback_counts": s.manager.FallbackCounts(),
		"breakers":        s.breakers.Stats(),
	})
}

// handleSourcesHealth probes every adapter and reports status, latency
// and persisted fallback totals.
func (s *Server) handleSourcesHealth(w http.ResponseWriter, r *http.Request) {
	report := s.manager.HealthCheck(r.Context())

	totals, err := s.diagnostics.FallbackTotals()
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to read fallback totals")
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"report":          report,
		"fallback_totals": totals,
	})
}

func (s *Server) handleSetPrimarySource(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Source string `json:"source"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := s.manager.SetPrimarySource(body.Source); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"primary_source": body.Source})
}

func (s *Server) handleSetFallbackEnabled(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Enabled bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	s.manager.SetFallbackEnabled(body.Enabled)
	s.respondJSON(w, http.StatusOK, map[string]bool{"fallback_enabled": body.Enabled})
}

func (s *Server) handleResetFallbackCounts(w http.ResponseWriter, r *http.Request) {
	s.manager.ResetFallbackCounts()
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// handleFallbackEntries reports the primary source's registered
// fallback chain with health and latency from the probe loop.
func (s *Server) handleFallbackEntries(w http.ResponseWriter, r *http.Request) {
	primary := s.manager.PrimarySource()
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"primary":   primary,
		"fallbacks": s.fallbacks.Entries(primary),
	})
}

func (s *Server) handleBreakerStats(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.breakers.Stats())
}

func (s *Server) handleForceOpen(w http.ResponseWriter, r *http.Request) {
	service := chi.URLParam(r, "service")
	s.breakers.Get(service).ForceOpen()
	s.log.Warn().Str("service", service).Msg("Breaker forced open by administrator")
	s.respondJSON(w, http.StatusOK, s.breakers.Get(service).Stats())
}

func (s *Server) handleForceClose(w http.ResponseWriter, r *http.Request) {
	service := chi.URLParam(r, "service")
	s.breakers.Get(service).ForceClose()
	s.log.Warn().Str("service", service).Msg("Breaker forced closed by administrator")
	s.respondJSON(w, http.StatusOK, s.breakers.Get(service).Stats())
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode response")
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]interface{}{
		"success": false,
		"message": message,
	})
}
