package infra

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the service's Prometheus collectors.
// All methods are safe on a nil receiver so components can run without metrics in tests.
type Metrics struct {
	OrdersTotal          *prometheus.CounterVec
	PlacementDuration    prometheus.Histogram
	SettlementCalls      *prometheus.CounterVec
	CompensationFailures prometheus.Counter
	PriceLookups         *prometheus.CounterVec
	PriceLookupDuration  prometheus.Histogram
	QuoteBypass          prometheus.Counter
	EventsPublished      *prometheus.CounterVec
	EventsDropped        prometheus.Counter
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
}

// NewMetrics registers every collector on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		OrdersTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "orders_total",
			Help: "Orders reaching a terminal status",
		}, []string{"side", "type", "status"}),
		PlacementDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "order_placement_duration_seconds",
			Help:    "Time from intake to terminal status",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		SettlementCalls: f.NewCounterVec(prometheus.CounterOpts{
			Name: "settlement_calls_total",
			Help: "Ledger calls by operation and result",
		}, []string{"op", "result"}), // op: debit, credit, reversal
		CompensationFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "settlement_compensation_failures_total",
			Help: "Reversals that failed and need manual reconciliation",
		}),
		PriceLookups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "price_lookups_total",
			Help: "Price resolutions by result",
		}, []string{"result"}),
		PriceLookupDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "price_lookup_duration_seconds",
			Help:    "Price resolution latency",
			Buckets: prometheus.DefBuckets,
		}),
		QuoteBypass: f.NewCounter(prometheus.CounterOpts{
			Name: "limit_buy_quote_bypass_total",
			Help: "LIMIT BUY orders executed at limit price because no quote was available",
		}),
		EventsPublished: f.NewCounterVec(prometheus.CounterOpts{
			Name: "settlement_events_total",
			Help: "Settlement events by publish result",
		}, []string{"result"}),
		EventsDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "settlement_events_dropped_total",
			Help: "Settlement events dropped because the dispatch buffer was full",
		}),
		HTTPRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status"}),
		HTTPRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
	}
}

// RecordOrder counts an order that reached a terminal status.
func (m *Metrics) RecordOrder(side, orderType, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.OrdersTotal.WithLabelValues(side, orderType, status).Inc()
	m.PlacementDuration.Observe(elapsed.Seconds())
}

// RecordSettlementCall counts one ledger call attempt.
func (m *Metrics) RecordSettlementCall(op, result string) {
	if m == nil {
		return
	}
	m.SettlementCalls.WithLabelValues(op, result).Inc()
}

// RecordCompensationFailure counts a failed reversal.
func (m *Metrics) RecordCompensationFailure() {
	if m == nil {
		return
	}
	m.CompensationFailures.Inc()
}

// RecordPriceLookup counts one price resolution.
func (m *Metrics) RecordPriceLookup(result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.PriceLookups.WithLabelValues(result).Inc()
	m.PriceLookupDuration.Observe(elapsed.Seconds())
}

// RecordQuoteBypass counts a LIMIT BUY executed without a quote.
func (m *Metrics) RecordQuoteBypass() {
	if m == nil {
		return
	}
	m.QuoteBypass.Inc()
}

// RecordEvent counts a settlement event publish outcome.
func (m *Metrics) RecordEvent(result string) {
	if m == nil {
		return
	}
	m.EventsPublished.WithLabelValues(result).Inc()
}

// RecordEventDropped counts an event that never made it into the dispatch buffer.
func (m *Metrics) RecordEventDropped() {
	if m == nil {
		return
	}
	m.EventsDropped.Inc()
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(method, endpoint, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(elapsed.Seconds())
}
