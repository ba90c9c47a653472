package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "avatar_active_sessions",
			Help: "Number of open WebSocket sessions",
		},
	)

	Requests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "avatar_requests_total",
			Help: "Requests handled by the pipeline",
		},
		[]string{"kind", "outcome"}, // kind: audio|text, outcome: ok|error|busy
	)

	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "avatar_stage_duration_seconds",
			Help:    "Latency of each pipeline stage",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"stage"}, // stt|llm|tts|avatar
	)

	Reconnects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "avatar_client_reconnects_total",
			Help: "Reconnect attempts scheduled by the client controller",
		},
	)
)
