// Package monitoring exposes Prometheus metrics and a health endpoint for the signal bot.
package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "rsibot"

// Metrics holds the collectors of the bot on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	SignalsTotal        *prometheus.CounterVec // labels: symbol, timeframe, type
	IndicatorValue      *prometheus.GaugeVec   // labels: symbol, timeframe, series
	FetchErrorsTotal    *prometheus.CounterVec // labels: source
	UpdatesSkippedTotal *prometheus.CounterVec // labels: symbol, timeframe
	NotifyErrorsTotal   prometheus.Counter
	CheckDuration       prometheus.Histogram
}

// NewMetrics creates and registers all collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		SignalsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "signals_total",
				Help:      "Total number of emitted signals",
			},
			[]string{"symbol", "timeframe", "type"},
		),
		IndicatorValue: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "indicator_value",
				Help:      "Latest RSI, EMA and WMA values per instance",
			},
			[]string{"symbol", "timeframe", "series"},
		),
		FetchErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fetch_errors_total",
				Help:      "Total number of failed kline fetches",
			},
			[]string{"source"},
		),
		UpdatesSkippedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "updates_skipped_total",
				Help:      "Updates ignored because the batch was too short",
			},
			[]string{"symbol", "timeframe"},
		),
		NotifyErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notify_errors_total",
			Help:      "Total number of failed alert deliveries",
		}),
		CheckDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "check_duration_seconds",
			Help:      "Duration of a full check over all instances",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	m.registry.MustRegister(
		m.SignalsTotal,
		m.IndicatorValue,
		m.FetchErrorsTotal,
		m.UpdatesSkippedTotal,
		m.NotifyErrorsTotal,
		m.CheckDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the private registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordSignal counts an emitted signal.
func (m *Metrics) RecordSignal(symbol, timeframe, signalType string) {
	m.SignalsTotal.WithLabelValues(symbol, timeframe, signalType).Inc()
}

// RecordIndicators stores the latest indicator values of an instance.
func (m *Metrics) RecordIndicators(symbol, timeframe string, rsi, ema, wma float64) {
	m.IndicatorValue.WithLabelValues(symbol, timeframe, "rsi").Set(rsi)
	m.IndicatorValue.WithLabelValues(symbol, timeframe, "ema").Set(ema)
	m.IndicatorValue.WithLabelValues(symbol, timeframe, "wma").Set(wma)
}

// RecordFetchError counts a failed fetch from a market data source.
func (m *Metrics) RecordFetchError(source string) {
	m.FetchErrorsTotal.WithLabelValues(source).Inc()
}

// RecordSkippedUpdate counts an update ignored for lack of data.
func (m *Metrics) RecordSkippedUpdate(symbol, timeframe string) {
	m.UpdatesSkippedTotal.WithLabelValues(symbol, timeframe).Inc()
}

// RecordNotifyError counts a failed alert delivery.
func (m *Metrics) RecordNotifyError() {
	m.NotifyErrorsTotal.Inc()
}

// ObserveCheck records how long a full check took.
func (m *Metrics) ObserveCheck(d time.Duration) {
	m.CheckDuration.Observe(d.Seconds())
}
