package metrics

import "github.com/prometheus/client_golang/prometheus"

// WebSocketMetrics holds Prometheus metrics for WebSocket connections.
type WebSocketMetrics struct {
	ActiveConnections prometheus.Gauge
	MatchesPublished  prometheus.Counter
	PublishErrors     prometheus.Counter
	OriginRejections  prometheus.Counter
}

// NewWebSocketMetrics creates and registers WebSocket metrics on the given registry.
func NewWebSocketMetrics(reg prometheus.Registerer) *WebSocketMetrics {
	m := &WebSocketMetrics{
		ActiveConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "active_connections",
			Help:      "Number of active WebSocket connections.",
		}),
		MatchesPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "matches_published_total",
			Help:      "Total number of match events published to WebSocket channels.",
		}),
		PublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "publish_errors_total",
			Help:      "Total number of failed WebSocket publishes.",
		}),
		OriginRejections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "origin_rejections_total",
			Help:      "Total number of WebSocket upgrades refused for a disallowed Origin.",
		}),
	}

	reg.MustRegister(m.ActiveConnections, m.MatchesPublished, m.PublishErrors, m.OriginRejections)
	return m
}
