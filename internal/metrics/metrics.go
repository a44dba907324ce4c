// Package metrics exposes Prometheus collectors for the audit service.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Audit outcomes used as the "outcome" label.
const (
	AuditCompleted = "completed"
	AuditInvalid   = "invalid"
	AuditCanceled  = "canceled"
)

var (
	auditsTotal                *prometheus.CounterVec
	auditDurationSeconds       *prometheus.HistogramVec
	auditPagesTotal            *prometheus.CounterVec
	auditProbesTotal           *prometheus.CounterVec
	auditPersistFailuresTotal  *prometheus.CounterVec
	rateLimitedTotal           *prometheus.CounterVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		auditsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auditor_audits_total",
				Help: "Total number of audit requests, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		auditDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "auditor_audit_duration_seconds",
				Help:    "Histogram of end-to-end audit durations, labeled by outcome.",
				Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 150},
			},
			[]string{"outcome"},
		)

		auditPagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auditor_pages_total",
				Help: "Total number of pages fetched during audits, labeled by site and status class.",
			},
			[]string{"site", "class"},
		)

		auditProbesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auditor_probes_total",
				Help: "Total robots.txt and sitemap.xml probes, labeled by kind and result.",
			},
			[]string{"kind", "result"},
		)

		auditPersistFailuresTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auditor_persist_failures_total",
				Help: "Total failures handing finished reports to a sink, labeled by target.",
			},
			[]string{"target"},
		)

		rateLimitedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auditor_rate_limited_total",
				Help: "Total audit requests rejected by the rate limiter, labeled by backend.",
			},
			[]string{"backend"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 15, 60},
			},
			[]string{"method", "route"},
		)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	Init()
	return promhttp.Handler()
}

// ObserveAudit records one finished (or rejected) audit.
func ObserveAudit(outcome string, duration time.Duration) {
	Init()
	auditsTotal.WithLabelValues(outcome).Inc()
	if outcome != AuditInvalid {
		auditDurationSeconds.WithLabelValues(outcome).Observe(duration.Seconds())
	}
}

// ObservePage counts one fetched page.
func ObservePage(site, class string) {
	Init()
	auditPagesTotal.WithLabelValues(SanitizeSite(site), class).Inc()
}

// ObserveProbe counts a robots.txt or sitemap.xml probe.
func ObserveProbe(kind string, present bool) {
	Init()
	result := "missing"
	if present {
		result = "present"
	}
	auditProbesTotal.WithLabelValues(kind, result).Inc()
}

// ObservePersistFailure counts a failed store, archive, or publish call.
func ObservePersistFailure(target string) {
	Init()
	auditPersistFailuresTotal.WithLabelValues(target).Inc()
}

// ObserveRateLimited counts a request rejected with 429.
func ObserveRateLimited(backend string) {
	Init()
	rateLimitedTotal.WithLabelValues(backend).Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
