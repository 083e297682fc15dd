package metrics

import (
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels
const (
	OutcomeApplied  = "applied"
	OutcomePartial  = "partial"
	OutcomeFailed   = "failed"
	OutcomeRejected = "rejected"
	OutcomeSkipped  = "skipped"
	OutcomeVoided   = "voided"
)

// LedgerMetrics counts what the checkout and compensation flows do to stock.
// A nil *LedgerMetrics is valid and records nothing.
type LedgerMetrics struct {
	commits         *prometheus.CounterVec
	commitDuration  *prometheus.HistogramVec
	compensations   *prometheus.CounterVec
	reconciles      *prometheus.CounterVec
	adjustments     *prometheus.CounterVec
	adjustmentRetry prometheus.Counter
	negativeStock   prometheus.Counter
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	eventsPublished *prometheus.CounterVec
}

// NewWithRegisterer registers the metrics on registerer. Collectors that are
// already registered are reused, so constructing twice is safe.
func NewWithRegisterer(registerer prometheus.Registerer) *LedgerMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &LedgerMetrics{
		commits: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "pos_commits_total",
			Help: "Committed records by kind and stock outcome",
		}, []string{"kind", "outcome"}),
		commitDuration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "pos_commit_duration_seconds",
			Help:    "Duration of a commit from record insert to final stock status",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"kind"}),
		compensations: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "pos_compensations_total",
			Help: "Record compensations by outcome",
		}, []string{"outcome"}),
		reconciles: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "pos_reconciles_total",
			Help: "Reconciliations of partial records by outcome",
		}, []string{"outcome"}),
		adjustments: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "pos_stock_adjustments_total",
			Help: "Stock adjustments sent to the inventory ledger by phase and outcome",
		}, []string{"phase", "outcome"}),
		adjustmentRetry: registerCounter(registerer, prometheus.CounterOpts{
			Name: "pos_stock_adjustment_retries_total",
			Help: "Retries of transient stock adjustment failures",
		}),
		negativeStock: registerCounter(registerer, prometheus.CounterOpts{
			Name: "pos_negative_stock_total",
			Help: "Adjustments that left a product with negative stock",
		}),
		httpRequests: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "pos_http_requests_total",
			Help: "HTTP requests by method, route and status",
		}, []string{"method", "route", "status"}),
		httpDuration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "pos_http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		eventsPublished: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "pos_record_events_total",
			Help: "Record lifecycle events by type and publish outcome",
		}, []string{"type", "outcome"}),
	}
}

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	collector := prometheus.NewCounter(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Counter)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter %q: %v", opts.Name, err))
	}
	return collector
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	collector := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter vec %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogramVec(registerer prometheus.Registerer, opts prometheus.HistogramOpts, labels []string) *prometheus.HistogramVec {
	collector := prometheus.NewHistogramVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.HistogramVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram vec %q: %v", opts.Name, err))
	}
	return collector
}

// RecordCommit counts a finished commit and observes its duration
func (m *LedgerMetrics) RecordCommit(kind, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.commits.WithLabelValues(kind, outcome).Inc()
	m.commitDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

func (m *LedgerMetrics) RecordCompensation(outcome string) {
	if m == nil {
		return
	}
	m.compensations.WithLabelValues(outcome).Inc()
}

func (m *LedgerMetrics) RecordReconcile(outcome string) {
	if m == nil {
		return
	}
	m.reconciles.WithLabelValues(outcome).Inc()
}

// RecordAdjustment counts one ledger call outcome for a phase
func (m *LedgerMetrics) RecordAdjustment(phase, outcome string) {
	if m == nil {
		return
	}
	m.adjustments.WithLabelValues(phase, outcome).Inc()
}

func (m *LedgerMetrics) RecordAdjustmentRetry() {
	if m == nil {
		return
	}
	m.adjustmentRetry.Inc()
}

func (m *LedgerMetrics) RecordNegativeStock() {
	if m == nil {
		return
	}
	m.negativeStock.Inc()
}

// RecordHTTPRequest counts a served request. route is the chi route pattern,
// not the raw path, to keep label cardinality bounded.
func (m *LedgerMetrics) RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

func (m *LedgerMetrics) RecordEvent(eventType, outcome string) {
	if m == nil {
		return
	}
	m.eventsPublished.WithLabelValues(eventType, outcome).Inc()
}
