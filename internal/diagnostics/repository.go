package diagnostics

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/market-analyzer/internal/database"
)

// ProbeRecord is one persisted health probe outcome.
type ProbeRecord struct {
	Service   string    `json:"service"`
	Healthy   bool      `json:"healthy"`
	LatencyMs int64     `json:"latency_ms"`
	CheckedAt time.Time `json:"checked_at"`
}

// FallbackRecord is one persisted fallback activation.
type FallbackRecord struct {
	PrimarySource  string    `json:"primary_source"`
	FallbackSource string    `json:"fallback_source"`
	Symbol         string    `json:"symbol"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// Repository persists operational telemetry. All writes are best-effort:
// a broken diagnostics store logs a warning and never disturbs the
// request path.
type Repository struct {
	db  *database.DB
	log zerolog.Logger
}

// NewRepository creates a diagnostics repository. db may be nil, which
// turns every operation into a no-op.
func NewRepository(db *database.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("component", "diagnostics").Logger(),
	}
}

// RecordFallback implements marketdata.UsageRecorder.
func (r *Repository) RecordFallback(primary, fallback, symbol string) {
	if r.db == nil {
		return
	}
	_, err := r.db.Exec(
		`INSERT INTO fallback_activations (primary_source, fallback_source, symbol) VALUES (?, ?, ?)`,
		primary, fallback, symbol,
	)
	if err != nil {
		r.log.Warn().Err(err).Msg("Failed to record fallback activation")
	}
}

// RecordProbe implements resilience.ProbeRecorder.
func (r *Repository) RecordProbe(service string, healthy bool, latency time.Duration) {
	if r.db == nil {
		return
	}
	_, err := r.db.Exec(
		`INSERT INTO health_probes (service, healthy, latency_ms) VALUES (?, ?, ?)`,
		service, healthy, latency.Milliseconds(),
	)
	if err != nil {
		r.log.Warn().Err(err).Msg("Failed to record health probe")
	}
}

// RecentProbes returns the latest probe outcomes for a service, newest
// first.
func (r *Repository) RecentProbes(service string, limit int) ([]ProbeRecord, error) {
	if r.db == nil {
		return nil, nil
	}
	rows, err := r.db.Query(
		`SELECT service, healthy, latency_ms, checked_at
		 FROM health_probes WHERE service = ?
		 ORDER BY checked_at DESC LIMIT ?`,
		service, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []ProbeRecord
	for rows.Next() {
		var rec ProbeRecord
		var healthy int
		if err := rows.Scan(&rec.Service, &healthy, &rec.LatencyMs, &rec.CheckedAt); err != nil {
			return nil, err
		}
		rec.Healthy = healthy != 0
		records = append(records, rec)
	}
	return records, rows.Err()
}

// FallbackTotals returns activation counts grouped by primary source.
func (r *Repository) FallbackTotals() (map[string]int, error) {
	if r.db == nil {
		return map[string]int{}, nil
	}
	rows, err := r.db.Query(
		`SELECT primary_source, COUNT(*) FROM fallback_activations GROUP BY primary_source`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	totals := make(map[string]int)
	for rows.Next() {
		var source string
		var count int
		if err := rows.Scan(&source, &count); err != nil {
			return nil, err
		}
		totals[source] = count
	}
	return totals, rows.Err()
}
