// Package metrics exposes a Prometheus registry for tamscore, adapted from
// the teacher's pkg/metrics: the same Registry + counter/gauge/histogram
// vector pattern, with the domain-specific Record* helpers replaced by TAMS
// equivalents (query execution, batch inserts, cache hits, endpoint health).
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every Prometheus collector tamscore publishes.
type Registry struct {
	reg *prometheus.Registry

	QueryDuration    *prometheus.HistogramVec
	QueryTotal       *prometheus.CounterVec
	BatchInsertTotal *prometheus.CounterVec
	BatchRowsTotal   *prometheus.CounterVec
	CacheHits        *prometheus.CounterVec
	CacheMisses      *prometheus.CounterVec
	EndpointHealthy  *prometheus.GaugeVec
	EndpointErrors   *prometheus.CounterVec

	mu                    sync.Mutex
	observationCollectors map[string]*prometheus.HistogramVec
}

// New builds and registers the collector set.
func New() *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	reg.MustRegister(collectors.NewGoCollector())

	r := &Registry{
		reg: reg,
		QueryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tamscore_query_duration_seconds",
			Help:    "Duration of columnar-store query executions.",
			Buckets: prometheus.DefBuckets,
		}, []string{"query_type", "table"}),
		QueryTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tamscore_query_total",
			Help: "Total columnar-store queries, labeled by outcome.",
		}, []string{"query_type", "table", "success"}),
		BatchInsertTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tamscore_batch_insert_total",
			Help: "Total batch insert attempts, labeled by mode and outcome.",
		}, []string{"mode", "status"}),
		BatchRowsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tamscore_batch_rows_total",
			Help: "Total rows processed by batch inserts.",
		}, []string{"mode"}),
		CacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tamscore_cache_hits_total",
			Help: "Metadata cache hits by table.",
		}, []string{"table"}),
		CacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tamscore_cache_misses_total",
			Help: "Metadata cache misses by table.",
		}, []string{"table"}),
		EndpointHealthy: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "tamscore_endpoint_healthy",
			Help: "1 if the endpoint is currently healthy, else 0.",
		}, []string{"endpoint"}),
		EndpointErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tamscore_endpoint_errors_total",
			Help: "Consecutive-error-tracked endpoint failures.",
		}, []string{"endpoint"}),
		observationCollectors: make(map[string]*prometheus.HistogramVec),
	}

	reg.MustRegister(
		r.QueryDuration, r.QueryTotal, r.BatchInsertTotal, r.BatchRowsTotal,
		r.CacheHits, r.CacheMisses, r.EndpointHealthy, r.EndpointErrors,
	)

	return r
}

// Handler returns the promhttp handler for this registry.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// RecordQuery records one query execution's duration and outcome.
func (r *Registry) RecordQuery(queryType, table string, seconds float64, success bool) {
	r.QueryDuration.WithLabelValues(queryType, table).Observe(seconds)
	r.QueryTotal.WithLabelValues(queryType, table, boolLabel(success)).Inc()
}

// RecordBatchInsert records a completed best-effort or transactional batch
// insert call.
func (r *Registry) RecordBatchInsert(mode, status string, rows int) {
	r.BatchInsertTotal.WithLabelValues(mode, status).Inc()
	r.BatchRowsTotal.WithLabelValues(mode).Add(float64(rows))
}

// RecordCacheHit records a metadata cache hit or miss for table.
func (r *Registry) RecordCacheHit(table string, hit bool) {
	if hit {
		r.CacheHits.WithLabelValues(table).Inc()
		return
	}
	r.CacheMisses.WithLabelValues(table).Inc()
}

// RecordEndpointHealth updates the gauge/counter pair for endpoint.
func (r *Registry) RecordEndpointHealth(endpoint string, healthy bool) {
	v := 0.0
	if healthy {
		v = 1.0
	}
	r.EndpointHealthy.WithLabelValues(endpoint).Set(v)
	if !healthy {
		r.EndpointErrors.WithLabelValues(endpoint).Inc()
	}
}

// Observation returns (creating if needed) a histogram vector cached by key,
// for ad-hoc per-operation timing that doesn't warrant a dedicated field on
// Registry. Mirrors the teacher's ObservationHooks per-key collector cache.
func (r *Registry) Observation(key, help string, labelNames []string) *prometheus.HistogramVec {
	r.mu.Lock()
	defer r.mu.Unlock()
	if hv, ok := r.observationCollectors[key]; ok {
		return hv
	}
	hv := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name: "tamscore_observation_" + key + "_seconds",
		Help: help,
	}, labelNames)
	r.reg.MustRegister(hv)
	r.observationCollectors[key] = hv
	return hv
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
