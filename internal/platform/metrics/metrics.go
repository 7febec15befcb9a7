package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters and gauges for the timeline editor.
type Metrics struct {
	registry             *prometheus.Registry
	requestsTotal        prometheus.Counter
	errorsTotal          prometheus.Counter
	ticksTotal           prometheus.Counter
	driftCorrections     prometheus.Counter
	sourcePlayFailures   prometheus.Counter
	reconciliationsTotal *prometheus.CounterVec
	playing              prometheus.Gauge
	segments             prometheus.Gauge
	wsClients            prometheus.Gauge
}

// New creates and registers Prometheus metrics for the editor.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	requestsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "editor_requests_total",
		Help: "Total number of HTTP requests received",
	})
	errorsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "editor_errors_total",
		Help: "Total number of HTTP responses with error status (4xx or 5xx)",
	})
	ticksTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "editor_playback_ticks_total",
		Help: "Total number of master clock ticks",
	})
	driftCorrections := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "editor_drift_corrections_total",
		Help: "Total number of re-seeks issued to correct source drift",
	})
	sourcePlayFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "editor_source_play_failures_total",
		Help: "Total number of segment sources that failed to start",
	})
	reconciliationsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "editor_reconciliations_total",
		Help: "Remote reconciliations by edit kind and result",
	}, []string{"kind", "result"})
	playing := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "editor_playing",
		Help: "1 while the transport is playing",
	})
	segments := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "editor_segments",
		Help: "Number of segments across all tracks",
	})
	wsClients := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "editor_websocket_clients",
		Help: "Number of connected state stream clients",
	})

	registry.MustRegister(
		requestsTotal,
		errorsTotal,
		ticksTotal,
		driftCorrections,
		sourcePlayFailures,
		reconciliationsTotal,
		playing,
		segments,
		wsClients,
	)

	return &Metrics{
		registry:             registry,
		requestsTotal:        requestsTotal,
		errorsTotal:          errorsTotal,
		ticksTotal:           ticksTotal,
		driftCorrections:     driftCorrections,
		sourcePlayFailures:   sourcePlayFailures,
		reconciliationsTotal: reconciliationsTotal,
		playing:              playing,
		segments:             segments,
		wsClients:            wsClients,
	}
}

// IncRequests increments the total request counter.
func (m *Metrics) IncRequests() {
	m.requestsTotal.Inc()
}

// IncErrors increments the errors counter.
func (m *Metrics) IncErrors() {
	m.errorsTotal.Inc()
}

// IncTicks increments the playback tick counter.
func (m *Metrics) IncTicks() {
	m.ticksTotal.Inc()
}

// IncDriftCorrections increments the drift correction counter.
func (m *Metrics) IncDriftCorrections() {
	m.driftCorrections.Inc()
}

// IncSourcePlayFailures increments the failed source start counter.
func (m *Metrics) IncSourcePlayFailures() {
	m.sourcePlayFailures.Inc()
}

// IncReconciliations records one remote reconciliation outcome.
// result is "ok" or "rolled_back".
func (m *Metrics) IncReconciliations(kind, result string) {
	m.reconciliationsTotal.WithLabelValues(kind, result).Inc()
}

// SetPlaying sets the playing gauge.
func (m *Metrics) SetPlaying(playing bool) {
	if playing {
		m.playing.Set(1)
		return
	}
	m.playing.Set(0)
}

// SetSegments sets the segment count gauge.
func (m *Metrics) SetSegments(n int) {
	m.segments.Set(float64(n))
}

// SetWebsocketClients sets the connected stream clients gauge.
func (m *Metrics) SetWebsocketClients(n int) {
	m.wsClients.Set(float64(n))
}

// Handler returns an http.Handler that serves Prometheus metrics.
// updateGauges is called before each scrape to refresh gauge values.
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}
