package server

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus metric descriptors for the voice server.
type Metrics struct {
	srv       *Server
	startTime time.Time

	channelsTotal          prometheus.Gauge
	playersConnected       prometheus.Gauge
	privilegesResolved     prometheus.Counter
	privilegePersistErrors prometheus.Counter
	uptimeSeconds          prometheus.Gauge
}

// NewMetrics creates and registers Prometheus metrics for the server.
func NewMetrics(startTime time.Time) *Metrics {
	m := &Metrics{
		startTime: startTime,
		channelsTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "soliloque_channels_total",
			Help: "Number of channels registered with the server.",
		}),
		playersConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "soliloque_players_connected",
			Help: "Number of currently connected players.",
		}),
		privilegesResolved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "soliloque_privileges_resolved_total",
			Help: "Total privilege resolutions since server start.",
		}),
		privilegePersistErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "soliloque_privilege_persist_errors_total",
			Help: "Failed privilege store writes since server start.",
		}),
		uptimeSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "soliloque_uptime_seconds",
			Help: "Server uptime in seconds.",
		}),
	}

	prometheus.MustRegister(
		m.channelsTotal,
		m.playersConnected,
		m.privilegesResolved,
		m.privilegePersistErrors,
		m.uptimeSeconds,
	)

	return m
}

// SetServer binds the metrics to a server instance.
func (m *Metrics) SetServer(s *Server) {
	m.srv = s
}

// Handler returns the HTTP handler serving the metrics endpoint, refreshing
// the sampled gauges on every scrape.
func (m *Metrics) Handler() http.Handler {
	promHandler := promhttp.Handler()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.uptimeSeconds.Set(time.Since(m.startTime).Seconds())
		if m.srv != nil {
			m.channelsTotal.Set(float64(m.srv.Channels.Used()))
			m.playersConnected.Set(float64(m.srv.Players.Used()))
		}
		promHandler.ServeHTTP(w, r)
	})
}
