// Package metrics exposes billing counters to Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsCollector is what the services report into.
type MetricsCollector interface {
	RecordSettlement(provider, txType string, settled bool)
	RecordWebhook(provider, status string)
	RecordConsumption(feature, source string, costCents int64)
	RecordInsufficientBalance(feature string)
	RecordExpired(count int64)
	RecordRateRefresh(success bool, updated int)
	RecordProviderCall(provider, operation string, duration time.Duration, err error)
}

type prometheusCollector struct {
	settlements       *prometheus.CounterVec
	webhooks          *prometheus.CounterVec
	consumption       *prometheus.CounterVec
	paygCents         *prometheus.CounterVec
	insufficient      *prometheus.CounterVec
	expired           prometheus.Counter
	rateRefreshes     *prometheus.CounterVec
	ratesUpdated      prometheus.Gauge
	providerCalls     *prometheus.CounterVec
	providerDurations *prometheus.HistogramVec
}

// NewPrometheusCollector registers the billing collectors on reg.
func NewPrometheusCollector(reg prometheus.Registerer) MetricsCollector {
	f := promauto.With(reg)
	return &prometheusCollector{
		settlements: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ocru_settlements_total",
			Help: "Settlement attempts by provider, type and outcome",
		}, []string{"provider", "type", "outcome"}),
		webhooks: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ocru_webhooks_total",
			Help: "Inbound webhooks by provider and final log status",
		}, []string{"provider", "status"}),
		consumption: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ocru_token_consumptions_total",
			Help: "Successful token consumptions by feature and source",
		}, []string{"feature", "source"}),
		paygCents: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ocru_payg_cost_cents_total",
			Help: "Cents debited from pay-as-you-go wallets",
		}, []string{"feature"}),
		insufficient: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ocru_insufficient_balance_total",
			Help: "Consumptions refused for lack of balance",
		}, []string{"feature"}),
		expired: f.NewCounter(prometheus.CounterOpts{
			Name: "ocru_transactions_expired_total",
			Help: "Pending transactions moved to expired",
		}),
		rateRefreshes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ocru_rate_refreshes_total",
			Help: "Exchange rate refresh runs by outcome",
		}, []string{"outcome"}),
		ratesUpdated: f.NewGauge(prometheus.GaugeOpts{
			Name: "ocru_rates_updated_last_refresh",
			Help: "Currencies updated by the last successful refresh",
		}),
		providerCalls: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ocru_provider_calls_total",
			Help: "Outbound provider API calls",
		}, []string{"provider", "operation", "outcome"}),
		providerDurations: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ocru_provider_call_duration_seconds",
			Help:    "Outbound provider API latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"provider", "operation"}),
	}
}

func outcome(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}

func (p *prometheusCollector) RecordSettlement(provider, txType string, settled bool) {
	label := "settled"
	if !settled {
		label = "already_terminal"
	}
	p.settlements.WithLabelValues(provider, txType, label).Inc()
}

func (p *prometheusCollector) RecordWebhook(provider, status string) {
	p.webhooks.WithLabelValues(provider, status).Inc()
}

func (p *prometheusCollector) RecordConsumption(feature, source string, costCents int64) {
	p.consumption.WithLabelValues(feature, source).Inc()
	if costCents > 0 {
		p.paygCents.WithLabelValues(feature).Add(float64(costCents))
	}
}

func (p *prometheusCollector) RecordInsufficientBalance(feature string) {
	p.insufficient.WithLabelValues(feature).Inc()
}

func (p *prometheusCollector) RecordExpired(count int64) {
	if count > 0 {
		p.expired.Add(float64(count))
	}
}

func (p *prometheusCollector) RecordRateRefresh(success bool, updated int) {
	p.rateRefreshes.WithLabelValues(outcome(success)).Inc()
	if success {
		p.ratesUpdated.Set(float64(updated))
	}
}

func (p *prometheusCollector) RecordProviderCall(provider, operation string, duration time.Duration, err error) {
	p.providerCalls.WithLabelValues(provider, operation, outcome(err == nil)).Inc()
	p.providerDurations.WithLabelValues(provider, operation).Observe(duration.Seconds())
}
