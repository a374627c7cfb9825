package monitor

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors the server exports
type Metrics struct {
	ActiveSessions   prometheus.Gauge
	WebsocketClients prometheus.Gauge
	Actions          *prometheus.CounterVec
	Matches          prometheus.Counter
	TokensRemoved    prometheus.Counter
	Cascades         prometheus.Counter
	SettleLatency    prometheus.Histogram
}

// NewMetrics builds unregistered collectors under namespace
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Number of sessions held in memory",
		}),
		WebsocketClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "websocket_clients",
			Help:      "Number of connected websocket clients",
		}),
		Actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_total",
			Help:      "Board actions handled, by action",
		}, []string{"action"}),
		Matches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "matches_total",
			Help:      "Groups removed across all boards",
		}),
		TokensRemoved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_removed_total",
			Help:      "Tokens removed across all boards",
		}),
		Cascades: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cascades_total",
			Help:      "Gravity and refill passes across all boards",
		}),
		SettleLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "action_latency_seconds",
			Help:      "Time spent applying an action and its animation ticks",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 12),
		}),
	}
}

// Monitor owns a private registry so several servers (and tests) can live in
// one process. A nil *Monitor is valid and records nothing.
type Monitor struct {
	metrics   *Metrics
	registry  *prometheus.Registry
	startTime time.Time
}

// NewMonitor registers fresh metrics and the Go runtime collectors on a new registry
func NewMonitor(namespace string) *Monitor {
	m := &Monitor{
		metrics:   NewMetrics(namespace),
		registry:  prometheus.NewRegistry(),
		startTime: time.Now(),
	}
	m.registry.MustRegister(
		m.metrics.ActiveSessions,
		m.metrics.WebsocketClients,
		m.metrics.Actions,
		m.metrics.Matches,
		m.metrics.TokensRemoved,
		m.metrics.Cascades,
		m.metrics.SettleLatency,
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "uptime_seconds",
			Help:      "Seconds since the monitor started",
		}, func() float64 {
			return time.Since(m.startTime).Seconds()
		}),
		collectors.NewGoCollector(),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format
func (m *Monitor) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Monitor) SetActiveSessions(count int) {
	if m == nil {
		return
	}
	m.metrics.ActiveSessions.Set(float64(count))
}

func (m *Monitor) IncWebsocketClients() {
	if m == nil {
		return
	}
	m.metrics.WebsocketClients.Inc()
}

func (m *Monitor) DecWebsocketClients() {
	if m == nil {
		return
	}
	m.metrics.WebsocketClients.Dec()
}

func (m *Monitor) IncAction(action string) {
	if m == nil {
		return
	}
	m.metrics.Actions.WithLabelValues(action).Inc()
}

// ObserveOutcome adds the removals an action caused
func (m *Monitor) ObserveOutcome(matches, tokensRemoved, cascades int) {
	if m == nil {
		return
	}
	m.metrics.Matches.Add(float64(matches))
	m.metrics.TokensRemoved.Add(float64(tokensRemoved))
	m.metrics.Cascades.Add(float64(cascades))
}

func (m *Monitor) ObserveLatency(duration time.Duration) {
	if m == nil {
		return
	}
	m.metrics.SettleLatency.Observe(duration.Seconds())
}
