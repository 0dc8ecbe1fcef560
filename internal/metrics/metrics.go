// Package metrics provides Prometheus metrics for the sync engine.
//
// A nil *Metrics is valid and records nothing, so components can take an
// optional *Metrics without guarding every call.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all sync engine metrics.
type Metrics struct {
	// Remote fetch metrics
	FetchAttemptsTotal prometheus.Counter     // Every HTTP attempt, including retries
	FetchFailuresTotal *prometheus.CounterVec // Failed attempts by error kind

	// Cycle metrics
	CyclesTotal          *prometheus.CounterVec // Completed load cycles by outcome
	CycleDurationSeconds prometheus.Histogram   // Wall time of a load cycle

	// Store metrics
	CachedProfiles          prometheus.Gauge       // Profiles visible after the last publish
	DecisionsTotal          *prometheus.CounterVec // Decisions recorded by value
	DuplicatesRemovedTotal  prometheus.Counter     // Rows removed by duplicate repair
	ReconciledProfilesTotal prometheus.Counter     // Profiles merged into the store

	// Connectivity
	Online prometheus.Gauge // 1 when the last probe succeeded
}

// New creates a Metrics instance registered with reg.
// Pass prometheus.NewRegistry() in tests to avoid global registration.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		FetchAttemptsTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "profilesync_fetch_attempts_total",
			Help: "Total number of remote fetch attempts, including retries",
		}),

		FetchFailuresTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "profilesync_fetch_failures_total",
			Help: "Total number of failed remote fetch attempts by error kind",
		}, []string{"kind"}),

		CyclesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "profilesync_cycles_total",
			Help: "Total number of load cycles by outcome",
		}, []string{"outcome"}),

		CycleDurationSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "profilesync_cycle_duration_seconds",
			Help:    "Duration of load cycles from cache read to final publish",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}),

		CachedProfiles: f.NewGauge(prometheus.GaugeOpts{
			Name: "profilesync_cached_profiles",
			Help: "Number of profiles in the last published snapshot",
		}),

		DecisionsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "profilesync_decisions_total",
			Help: "Total number of decisions recorded by value",
		}, []string{"decision"}),

		DuplicatesRemovedTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "profilesync_duplicates_removed_total",
			Help: "Total number of duplicate profile rows removed",
		}),

		ReconciledProfilesTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "profilesync_reconciled_profiles_total",
			Help: "Total number of fetched profiles merged into the store",
		}),

		Online: f.NewGauge(prometheus.GaugeOpts{
			Name: "profilesync_online",
			Help: "1 if the remote endpoint was reachable at the last probe, else 0",
		}),
	}
}

// RecordFetchAttempt counts one remote fetch attempt.
func (m *Metrics) RecordFetchAttempt() {
	if m == nil {
		return
	}
	m.FetchAttemptsTotal.Inc()
}

// RecordFetchFailure counts a failed attempt of the given kind.
func (m *Metrics) RecordFetchFailure(kind string) {
	if m == nil {
		return
	}
	m.FetchFailuresTotal.WithLabelValues(kind).Inc()
}

// ObserveCycle records a finished cycle.
func (m *Metrics) ObserveCycle(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.CyclesTotal.WithLabelValues(outcome).Inc()
	m.CycleDurationSeconds.Observe(d.Seconds())
}

// SetCachedProfiles updates the published profile gauge.
func (m *Metrics) SetCachedProfiles(n int) {
	if m == nil {
		return
	}
	m.CachedProfiles.Set(float64(n))
}

// RecordDecision counts a recorded decision.
func (m *Metrics) RecordDecision(decision string) {
	if m == nil {
		return
	}
	m.DecisionsTotal.WithLabelValues(decision).Inc()
}

// RecordReconcile counts the outcome of one reconciliation.
func (m *Metrics) RecordReconcile(merged int, duplicatesRemoved int64) {
	if m == nil {
		return
	}
	m.ReconciledProfilesTotal.Add(float64(merged))
	m.DuplicatesRemovedTotal.Add(float64(duplicatesRemoved))
}

// SetOnline updates the connectivity gauge.
func (m *Metrics) SetOnline(online bool) {
	if m == nil {
		return
	}
	if online {
		m.Online.Set(1)
		return
	}
	m.Online.Set(0)
}
