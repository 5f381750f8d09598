package metrics

import (
	"net/http"
	"time"

	"github.com/genricoloni/wozplayer/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var phases = []domain.Phase{
	domain.PhaseIdle,
	domain.PhaseLoading,
	domain.PhaseTransitioning,
	domain.PhasePlaying,
	domain.PhaseErrorRecovering,
}

// Metrics holds Prometheus counters and gauges for the participant.
type Metrics struct {
	registry      *prometheus.Registry
	commandsTotal *prometheus.CounterVec
	endedTotal    *prometheus.CounterVec
	errorsTotal   prometheus.Counter
	retriesTotal  prometheus.Counter
	retryDelay    prometheus.Histogram
	phase         *prometheus.GaugeVec
	requestsTotal *prometheus.CounterVec
}

// New creates and registers Prometheus metrics on a dedicated registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		commandsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wozplayer_commands_total",
			Help: "Operator commands received, by command",
		}, []string{"command"}),
		endedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wozplayer_media_ended_total",
			Help: "Cues that reached their natural end, by media id",
		}, []string{"media"}),
		errorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wozplayer_media_errors_total",
			Help: "Media errors reported to the operator",
		}),
		retriesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wozplayer_retries_total",
			Help: "Automatic idle retries scheduled after an error",
		}),
		retryDelay: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "wozplayer_retry_delay_seconds",
			Help:    "Backoff before an automatic retry",
			Buckets: []float64{1, 3, 6, 9, 10},
		}),
		phase: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "wozplayer_phase",
			Help: "Current orchestrator phase (1 for the active phase)",
		}, []string{"phase"}),
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wozplayer_http_requests_total",
			Help: "HTTP requests to the control API, by status class",
		}, []string{"class"}),
	}

	m.registry.MustRegister(
		m.commandsTotal,
		m.endedTotal,
		m.errorsTotal,
		m.retriesTotal,
		m.retryDelay,
		m.phase,
		m.requestsTotal,
	)
	m.PhaseChanged(domain.PhaseIdle)
	return m
}

// CommandReceived counts an operator command.
func (m *Metrics) CommandReceived(command string) {
	m.commandsTotal.WithLabelValues(command).Inc()
}

// PhaseChanged moves the phase gauge.
func (m *Metrics) PhaseChanged(phase domain.Phase) {
	for _, p := range phases {
		v := 0.0
		if p == phase {
			v = 1
		}
		m.phase.WithLabelValues(string(p)).Set(v)
	}
}

// RetryScheduled counts an automatic retry and its backoff.
func (m *Metrics) RetryScheduled(delay time.Duration) {
	m.retriesTotal.Inc()
	m.retryDelay.Observe(delay.Seconds())
}

// MediaEnded counts a natural end.
func (m *Metrics) MediaEnded(id domain.MediaID) {
	m.endedTotal.WithLabelValues(string(id)).Inc()
}

// MediaError counts an error reported to the operator.
func (m *Metrics) MediaError(string) {
	m.errorsTotal.Inc()
}

// Handler returns an http.Handler that serves Prometheus metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the registry for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
