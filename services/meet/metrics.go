package meet

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sessionsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "meet_sessions_created_total",
		Help: "Sessions created.",
	})
	sessionsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "meet_sessions_completed_total",
		Help: "Sessions that reached the completed status.",
	})
	durableWriteFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "meet_durable_write_failures_total",
		Help: "Best-effort durable store writes that failed and were swallowed.",
	})
	eventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "meet_events_published_total",
		Help: "Fan-out events published, by event kind.",
	}, []string{"event"})
	wsConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "meet_ws_connections",
		Help: "Open WebSocket connections.",
	})
)
