package sinks

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JakeFAU/lite-site-auditor/internal/progress"
)

// PrometheusSink turns progress events into audit and fetch metrics.
type PrometheusSink struct {
	auditsStarted  prometheus.Counter
	auditsFinished *prometheus.CounterVec
	auditsRunning  prometheus.Gauge
	auditRuntime   *prometheus.HistogramVec

	fetches       *prometheus.CounterVec
	fetchBytes    *prometheus.CounterVec
	fetchDuration *prometheus.HistogramVec

	mu      sync.Mutex
	running map[[16]byte]struct{}
}

// NewPrometheusSink registers the sink's collectors on reg, or on the default
// registerer when reg is nil.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		auditsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "auditor_progress_audits_started_total",
			Help: "Audits that emitted AUDIT_START.",
		}),
		auditsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auditor_progress_audits_finished_total",
			Help: "Audits that finished, by result.",
		}, []string{"result"}),
		auditsRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "auditor_progress_audits_running",
			Help: "Audits currently crawling.",
		}),
		auditRuntime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "auditor_progress_audit_runtime_seconds",
			Help:    "Wall time per finished audit.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 150},
		}, []string{"result"}),
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auditor_progress_fetches_total",
			Help: "Page fetches by site and status class.",
		}, []string{"site", "status_class"}),
		fetchBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auditor_progress_fetch_bytes_total",
			Help: "Response bytes downloaded per site.",
		}, []string{"site"}),
		fetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "auditor_progress_fetch_duration_seconds",
			Help:    "Page fetch latency by status class.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}, []string{"status_class"}),
		running: make(map[[16]byte]struct{}),
	}
	for _, c := range []prometheus.Collector{
		s.auditsStarted, s.auditsFinished, s.auditsRunning, s.auditRuntime,
		s.fetches, s.fetchBytes, s.fetchDuration,
	} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates collectors for each event in the batch.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		switch evt.Stage {
		case progress.StageAuditStart:
			s.auditsStarted.Inc()
			if s.track(evt.AuditID, true) {
				s.auditsRunning.Inc()
			}
		case progress.StageAuditDone:
			s.finish(evt, "success")
		case progress.StageAuditError:
			s.finish(evt, "error")
		case progress.StageFetchDone:
			class := string(evt.StatusClass)
			s.fetches.WithLabelValues(evt.Site, class).Inc()
			if evt.Bytes > 0 {
				s.fetchBytes.WithLabelValues(evt.Site).Add(float64(evt.Bytes))
			}
			if evt.Dur > 0 {
				s.fetchDuration.WithLabelValues(class).Observe(evt.Dur.Seconds())
			}
		}
	}
	return nil
}

func (s *PrometheusSink) finish(evt progress.Event, result string) {
	s.auditsFinished.WithLabelValues(result).Inc()
	if evt.Dur > 0 {
		s.auditRuntime.WithLabelValues(result).Observe(evt.Dur.Seconds())
	}
	if s.track(evt.AuditID, false) {
		s.auditsRunning.Dec()
	}
}

// track records start (or end) of an audit and reports whether the running
// set changed, so replayed events never skew the gauge.
func (s *PrometheusSink) track(id [16]byte, start bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.running[id]
	switch {
	case start && !ok:
		s.running[id] = struct{}{}
		return true
	case !start && ok:
		delete(s.running, id)
		return true
	}
	return false
}

// Close is a no-op.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}
