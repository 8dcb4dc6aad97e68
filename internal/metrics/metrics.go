// Package metrics defines custom Prometheus metrics for Handoff.
package metrics

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// registerOnce ensures Register() is idempotent.
var registerOnce sync.Once

// HTTP metrics (RED: Rate, Errors, Duration) for the demo harness.
var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "handoff_http_requests_total",
			Help: "Total HTTP requests handled by the demo harness",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "handoff_http_request_duration_seconds",
			Help:    "Request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// Authentication pipeline metrics.
var (
	// VerifyTotal counts completed Authenticate calls by outcome: "ok",
	// "denied", or "error" (transport/internal failure).
	VerifyTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "handoff_verify_total",
			Help: "Total Handoff Engine authentication attempts by outcome",
		},
		[]string{"outcome"},
	)

	// VerifyDuration observes the wall-clock time of one Authenticate call,
	// including any outbound Verifier RPC and signing-key fetch.
	VerifyDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "handoff_verify_duration_seconds",
			Help:    "Authenticate call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)

	// StoreQueryTotal counts StoreQuery side-channel invocations by command
	// and outcome ("ok" or "error").
	StoreQueryTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "handoff_storequery_total",
			Help: "Total StoreQuery side-channel invocations",
		},
		[]string{"command", "outcome"},
	)

	// RCOReloadTotal counts Runtime Config Observer reload notifications by
	// outcome ("ok" or "channel_rebuild_failed").
	RCOReloadTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "handoff_rco_reload_total",
			Help: "Total Runtime Config Observer reload notifications",
		},
		[]string{"outcome"},
	)
)

// Register registers all Prometheus collectors with the default registry.
// Safe to call multiple times; subsequent calls are no-ops.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			HTTPRequestsTotal,
			HTTPRequestDuration,
			VerifyTotal,
			VerifyDuration,
			StoreQueryTotal,
			RCOReloadTotal,
		)
	})
}

// NormalizePath maps actual request paths to normalized path templates
// suitable for use as Prometheus metric labels, avoiding high-cardinality
// labels from individual bucket/object names.
func NormalizePath(path string) string {
	switch path {
	case "/health", "/healthz", "/readyz", "/metrics", "/openapi.json", "/", "":
		if path == "" {
			return "/"
		}
		return path
	}

	trimmed := strings.TrimPrefix(path, "/")
	if trimmed == "" {
		return "/"
	}

	idx := strings.IndexByte(trimmed, '/')
	if idx < 0 {
		return "/{bucket}"
	}
	if trimmed[idx+1:] == "" {
		return "/{bucket}"
	}
	return "/{bucket}/{key}"
}
