package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricRenders = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tcast",
		Name:      "renders_total",
		Help:      "Finished render jobs by final status.",
	}, []string{"status"})
	metricActiveRenders = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "tcast",
		Name:      "renders_active",
		Help:      "Render jobs currently running.",
	})
	metricFrames = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tcast",
		Name:      "frames_processed_total",
		Help:      "Frames scheduled by all render jobs, dropped idle frames included.",
	})
	metricRenderDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "tcast",
		Name:      "render_duration_seconds",
		Help:      "Wall time of a render job.",
		Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
	})
	metricRejected = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tcast",
		Name:      "render_requests_rejected_total",
		Help:      "Render requests refused by the rate limiter.",
	})
)
