// Package metrics holds the Prometheus collectors for the settlement engine.
package metrics

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "ticketflow"

var (
	settlementOnce     sync.Once
	settlementRegistry *Settlement

	httpOnce     sync.Once
	httpRegistry *HTTP
)

// Settlement wraps collectors tracking transactions, payouts and batch runs.
type Settlement struct {
	salesRecorded    *prometheus.CounterVec
	transitions      *prometheus.CounterVec
	orphanedRefunds  prometheus.Counter
	payoutsCreated   prometheus.Counter
	payoutAmount     prometheus.Counter
	payoutStatus     *prometheus.CounterVec
	batchRuns        *prometheus.CounterVec
	batchDuration    prometheus.Histogram
	batchCreators    *prometheus.CounterVec
	lastBatchSuccess prometheus.Gauge
}

// Default returns the lazily registered settlement collectors.
func Default() *Settlement {
	settlementOnce.Do(func() {
		settlementRegistry = &Settlement{
			salesRecorded: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "transactions",
				Name:      "recorded_total",
				Help:      "Sales recorded as transactions, segmented by gateway and outcome.",
			}, []string{"gateway", "outcome"}),
			transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "transactions",
				Name:      "transitions_total",
				Help:      "Applied transaction status transitions.",
			}, []string{"from", "to"}),
			orphanedRefunds: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "reconciliation",
				Name:      "orphaned_refunds_total",
				Help:      "Refunds that arrived after the transaction was grouped into a payout.",
			}),
			payoutsCreated: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "payouts",
				Name:      "created_total",
				Help:      "Payouts created by batch runs.",
			}),
			payoutAmount: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "payouts",
				Name:      "amount_minor_units_total",
				Help:      "Sum of created payout amounts in minor currency units.",
			}),
			payoutStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "payouts",
				Name:      "status_changes_total",
				Help:      "Payout lifecycle transitions segmented by target status.",
			}, []string{"status"}),
			batchRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "scheduler",
				Name:      "batch_runs_total",
				Help:      "Payout batch runs segmented by outcome.",
			}, []string{"outcome"}),
			batchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "scheduler",
				Name:      "batch_duration_seconds",
				Help:      "Wall time of payout batch runs.",
				Buckets:   prometheus.DefBuckets,
			}),
			batchCreators: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "scheduler",
				Name:      "creators_total",
				Help:      "Creators visited by batch runs, segmented by result and reason.",
			}, []string{"result", "reason"}),
			lastBatchSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "scheduler",
				Name:      "last_success_timestamp_seconds",
				Help:      "Unix time of the last batch run that finished without creator errors.",
			}),
		}
		prometheus.MustRegister(
			settlementRegistry.salesRecorded,
			settlementRegistry.transitions,
			settlementRegistry.orphanedRefunds,
			settlementRegistry.payoutsCreated,
			settlementRegistry.payoutAmount,
			settlementRegistry.payoutStatus,
			settlementRegistry.batchRuns,
			settlementRegistry.batchDuration,
			settlementRegistry.batchCreators,
			settlementRegistry.lastBatchSuccess,
		)
	})
	return settlementRegistry
}

// RecordSale counts a RecordSale call for gateway.
func (m *Settlement) RecordSale(gateway string, err error) {
	if m == nil {
		return
	}
	gateway = strings.TrimSpace(gateway)
	if gateway == "" {
		gateway = "unknown"
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.salesRecorded.WithLabelValues(gateway, outcome).Inc()
}

func (m *Settlement) RecordTransition(from, to string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(from, to).Inc()
}

func (m *Settlement) RecordOrphanedRefund() {
	if m == nil {
		return
	}
	m.orphanedRefunds.Inc()
}

func (m *Settlement) RecordPayoutCreated(amount int64) {
	if m == nil {
		return
	}
	m.payoutsCreated.Inc()
	if amount > 0 {
		m.payoutAmount.Add(float64(amount))
	}
}

func (m *Settlement) RecordPayoutStatus(status string) {
	if m == nil {
		return
	}
	m.payoutStatus.WithLabelValues(status).Inc()
}

// CreatorResult counts one creator visited by a batch run. Result is
// "processed", "skipped" or "error".
func (m *Settlement) CreatorResult(result, reason string) {
	if m == nil {
		return
	}
	if reason == "" {
		reason = "none"
	}
	m.batchCreators.WithLabelValues(result, reason).Inc()
}

// ObserveBatch records a finished run. A run with creator errors counts as
// "partial"; a run that could not start counts as "error".
func (m *Settlement) ObserveBatch(finishedAt time.Time, duration time.Duration, creatorErrors int, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	switch {
	case err != nil:
		outcome = "error"
	case creatorErrors > 0:
		outcome = "partial"
	}
	m.batchRuns.WithLabelValues(outcome).Inc()
	m.batchDuration.Observe(duration.Seconds())
	if outcome == "success" {
		m.lastBatchSuccess.Set(float64(finishedAt.Unix()))
	}
}

// HTTP wraps request collectors for the REST transport.
type HTTP struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

// DefaultHTTP returns the lazily registered HTTP collectors.
func DefaultHTTP() *HTTP {
	httpOnce.Do(func() {
		httpRegistry = &HTTP{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "HTTP requests segmented by method, route and status code.",
			}, []string{"method", "route", "status"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for HTTP handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"method", "route"}),
		}
		prometheus.MustRegister(httpRegistry.requests, httpRegistry.latency)
	})
	return httpRegistry
}

func (m *HTTP) Observe(method, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.latency.WithLabelValues(method, route).Observe(duration.Seconds())
}
