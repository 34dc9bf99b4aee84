// Package metrics exposes Prometheus collectors for a reduction session.
//
// Every Metrics value owns its registry; nothing registers with the
// global default registry, so several sessions (and tests) can coexist
// in one process. A nil *Metrics is valid and records nothing.
package metrics

import (
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/common/expfmt"
)

// Reduction outcomes.
const (
	OutcomeOK     = "ok"
	OutcomeFailed = "failed"
)

// Metrics holds the session collectors.
type Metrics struct {
	registry *prometheus.Registry

	// cacheLookups counts cache lookups by result (hit, miss)
	cacheLookups *prometheus.CounterVec

	// cacheEvictions counts FIFO evictions
	cacheEvictions prometheus.Counter

	// reductions counts transform runs by kind and outcome
	reductions *prometheus.CounterVec

	// matches counts automatic direct-beam matches by tier
	matches *prometheus.CounterVec
}

// New creates collectors registered with a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		cacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "reflred_cache_lookups_total",
			Help: "Run cache lookups by result",
		}, []string{"result"}),
		cacheEvictions: factory.NewCounter(prometheus.CounterOpts{
			Name: "reflred_cache_evictions_total",
			Help: "Runs evicted from the run cache",
		}),
		reductions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "reflred_reductions_total",
			Help: "Reductions by kind and outcome",
		}, []string{"kind", "outcome"}),
		matches: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "reflred_direct_beam_matches_total",
			Help: "Direct-beam matches by tier",
		}, []string{"tier"}),
	}
}

// Registry returns the registry the collectors are registered with.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// CacheLookup records a cache hit or miss.
func (m *Metrics) CacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

// CacheEviction records one eviction.
func (m *Metrics) CacheEviction() {
	if m == nil {
		return
	}
	m.cacheEvictions.Inc()
}

// Reduction records the outcome of one transform run.
func (m *Metrics) Reduction(kind string, err error) {
	if m == nil {
		return
	}
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeFailed
	}
	m.reductions.WithLabelValues(kind, outcome).Inc()
}

// Match records a direct-beam match and its tier.
func (m *Metrics) Match(tier string) {
	if m == nil {
		return
	}
	m.matches.WithLabelValues(tier).Inc()
}

// WriteText writes every gathered family in the text exposition format.
func (m *Metrics) WriteText(w io.Writer) error {
	if m == nil {
		return nil
	}
	families, err := m.registry.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}
	return nil
}
