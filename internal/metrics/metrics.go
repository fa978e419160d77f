// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var SynthesisRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "voiceclone",
	Subsystem: "synthesis",
	Name:      "requests_total",
}, []string{"outcome"})

var SynthesisTime = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "voiceclone",
	Subsystem: "synthesis",
	Name:      "request_seconds",
	Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80, 160, 320},
})

var ModelQueryTime = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "voiceclone",
	Subsystem: "model",
	Name:      "request_seconds",
	Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80, 160, 320},
})

var ModelInFlight = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "voiceclone",
	Subsystem: "model",
	Name:      "in_flight",
})

var NormalizeTime = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "voiceclone",
	Subsystem: "audio",
	Name:      "normalize_seconds",
})

var SideEffectErrors = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "voiceclone",
	Subsystem: "synthesis",
	Name:      "side_effect_errors_total",
}, []string{"stage"})

var HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "voiceclone",
	Subsystem: "http",
	Name:      "requests_total",
}, []string{"route", "status"})

var VoiceUploads = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "voiceclone",
	Subsystem: "voices",
	Name:      "uploads_total",
})
