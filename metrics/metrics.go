// Package metrics exposes faucet and oracle instrumentation on a private
// Prometheus registry.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

const namespace = "faucet"

// Metrics implements faucet.Recorder and oracle.Observer
type Metrics struct {
	registry *prometheus.Registry

	claims          *prometheus.CounterVec
	claimDuration   *prometheus.HistogramVec
	referralClaims  *prometheus.CounterVec
	accruals        *prometheus.CounterVec
	paid            *prometheus.CounterVec
	oracleRefreshes *prometheus.CounterVec
	oracleAvailable prometheus.Gauge
}

// New creates the collectors and registers them with Go and process collectors
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		claims: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "claims_total",
			Help:      "Faucet claims processed, by currency and outcome.",
		}, []string{"currency", "outcome"}),
		claimDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "claim_duration_seconds",
			Help:      "Time from submission to completion of a claim, including queue wait.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"currency"}),
		referralClaims: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "referral_claims_total",
			Help:      "Referral balance claims processed, by currency and outcome.",
		}, []string{"currency", "outcome"}),
		accruals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "referral_accruals_total",
			Help:      "Referral bonus accrual attempts after a successful claim.",
		}, []string{"currency", "outcome"}),
		paid: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "paid_amount_total",
			Help:      "Amount sent, in units of the currency.",
		}, []string{"currency", "kind"}),
		oracleRefreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "oracle",
			Name:      "refreshes_total",
			Help:      "Price refresh attempts by outcome.",
		}, []string{"outcome"}),
		oracleAvailable: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "oracle",
			Name:      "available",
			Help:      "1 when cached rates are fresh enough for conversion.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.claims,
		m.claimDuration,
		m.referralClaims,
		m.accruals,
		m.paid,
		m.oracleRefreshes,
		m.oracleAvailable,
	)
	return m
}

// Registry returns the private registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RegisterQueueDepth exports a gauge read from depth at scrape time
func (m *Metrics) RegisterQueueDepth(currency, queue string, depth func() int) {
	m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace:   namespace,
		Name:        "queue_depth",
		Help:        "Jobs waiting in a per-currency queue.",
		ConstLabels: prometheus.Labels{"currency": currency, "queue": queue},
	}, func() float64 { return float64(depth()) }))
}

func (m *Metrics) ObserveClaim(currency, outcome string, elapsed time.Duration) {
	m.claims.WithLabelValues(currency, outcome).Inc()
	m.claimDuration.WithLabelValues(currency).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveReferralClaim(currency, outcome string) {
	m.referralClaims.WithLabelValues(currency, outcome).Inc()
}

func (m *Metrics) ObserveAccrual(currency, outcome string) {
	m.accruals.WithLabelValues(currency, outcome).Inc()
}

func (m *Metrics) AddPaid(currency, kind string, amount decimal.Decimal) {
	if amount.IsPositive() {
		m.paid.WithLabelValues(currency, kind).Add(amount.InexactFloat64())
	}
}

func (m *Metrics) ObserveRefresh(outcome string) {
	m.oracleRefreshes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) SetAvailable(available bool) {
	if available {
		m.oracleAvailable.Set(1)
		return
	}
	m.oracleAvailable.Set(0)
}
