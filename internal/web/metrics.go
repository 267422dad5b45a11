package web

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	wsConnections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "concierge_ws_connections_total",
		Help: "Websocket connections accepted.",
	})

	queriesHandled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "concierge_queries_total",
		Help: "Queries answered, by transport.",
	}, []string{"transport"})

	responseDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "concierge_response_duration_seconds",
		Help:    "Time from query receipt to the end of the reply.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
	})
)
