// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package metrics holds the agent's Prometheus collectors and the helpers
// components use to record into them. Everything registers into [Registry],
// which the status API exposes at /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "laban"

// Submit outcomes.
const (
	SubmitRemote   = "remote"
	SubmitQueued   = "queued"
	SubmitRejected = "rejected"
	SubmitFailed   = "failed"
)

// Query outcomes.
const (
	QueryRemote = "remote"
	QueryCache  = "cache"
	QueryMiss   = "miss"
)

var (
	// Registry holds the agent's collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight status API requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of status API requests handled.",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of status API requests.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		},
		[]string{"method", "route"},
	)

	submits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "submits_total",
			Help:      "Submitted records by entity type and outcome.",
		},
		[]string{"entity_type", "outcome"},
	)

	queries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "queries_total",
			Help:      "Queries by entity type and where the answer came from.",
		},
		[]string{"entity_type", "source"},
	)

	drained = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "drained_records_total",
			Help:      "Queued records confirmed by the backend during drains.",
		},
		[]string{"entity_type"},
	)

	drainDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "drain_duration_seconds",
			Help:      "Duration of reconnect drain cycles.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		},
	)

	pending = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "pending_records",
			Help:      "Unsynced records waiting in the queue.",
		},
		[]string{"entity_type"},
	)

	online = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "connectivity",
			Name:      "online",
			Help:      "1 while the backend is reachable.",
		},
	)

	transitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "connectivity",
			Name:      "transitions_total",
			Help:      "Connectivity transitions by direction.",
		},
		[]string{"to"},
	)

	meshRunning = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "mesh",
			Name:      "running",
			Help:      "1 while the local relay is running.",
		},
	)

	meshPeers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "mesh",
			Name:      "peers",
			Help:      "Peers found in range during the last discovery cycle.",
		},
	)

	meshDelivered = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mesh",
			Name:      "delivered_records_total",
			Help:      "Net-new records received from peers and delivered to listeners.",
		},
	)

	meshEnvelopes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mesh",
			Name:      "envelopes_total",
			Help:      "Envelopes written to the shared medium by kind.",
		},
		[]string{"kind"},
	)

	meshErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mesh",
			Name:      "errors_total",
			Help:      "Relay errors by stage.",
		},
		[]string{"stage"},
	)

	maintenanceRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "maintenance",
			Name:      "job_runs_total",
			Help:      "Maintenance job runs by job and result.",
		},
		[]string{"job", "success"},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		submits,
		queries,
		drained,
		drainDuration,
		pending,
		online,
		transitions,
		meshRunning,
		meshPeers,
		meshDelivered,
		meshEnvelopes,
		meshErrors,
		maintenanceRuns,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing [Registry].
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// InstrumentHandler records request counts and latency. Routes are labelled
// with their chi pattern so path parameters do not explode cardinality.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		httpInFlight.Inc()
		defer httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		route := routePattern(r)
		method := strings.ToUpper(r.Method)

		httpRequests.WithLabelValues(method, route, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	})
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// RecordSubmit counts one submit.
func RecordSubmit(entityType, outcome string) {
	submits.WithLabelValues(entityType, outcome).Inc()
}

// RecordQuery counts one query.
func RecordQuery(entityType, source string) {
	queries.WithLabelValues(entityType, source).Inc()
}

// RecordDrain records a finished drain cycle.
func RecordDrain(synced map[string]int, duration time.Duration) {
	for entityType, n := range synced {
		drained.WithLabelValues(entityType).Add(float64(n))
	}
	drainDuration.Observe(duration.Seconds())
}

// SetPending publishes queue depth per entity type. Types absent from counts
// are reported as zero.
func SetPending(counts map[string]int, known []string) {
	for _, entityType := range known {
		pending.WithLabelValues(entityType).Set(float64(counts[entityType]))
	}
	for entityType, n := range counts {
		pending.WithLabelValues(entityType).Set(float64(n))
	}
}

// SetOnline publishes the connectivity state.
func SetOnline(isOnline bool) {
	online.Set(boolToFloat(isOnline))
}

// RecordTransition counts a real connectivity transition.
func RecordTransition(toOnline bool) {
	to := "offline"
	if toOnline {
		to = "online"
	}
	transitions.WithLabelValues(to).Inc()
}

// SetMeshRunning publishes whether the relay runs.
func SetMeshRunning(running bool) {
	meshRunning.Set(boolToFloat(running))
}

// SetMeshPeers publishes the size of the last discovery result.
func SetMeshPeers(n int) {
	meshPeers.Set(float64(n))
}

// RecordMeshDelivered counts records delivered to relay listeners.
func RecordMeshDelivered(n int) {
	meshDelivered.Add(float64(n))
}

// RecordMeshEnvelope counts an envelope written to the medium.
func RecordMeshEnvelope(kind string) {
	meshEnvelopes.WithLabelValues(kind).Inc()
}

// RecordMeshError counts a relay failure at stage (e.g. "parse", "medium").
func RecordMeshError(stage string) {
	meshErrors.WithLabelValues(stage).Inc()
}

// RecordMaintenance counts a maintenance job run.
func RecordMaintenance(job string, success bool) {
	if job == "" {
		job = "unknown"
	}
	maintenanceRuns.WithLabelValues(job, strconv.FormatBool(success)).Inc()
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
