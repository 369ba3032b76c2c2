package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Gauges
var (
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "binaural_active_sessions",
		Help: "Number of running output sessions (0 or 1)",
	})
	StreamListeners = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "binaural_stream_listeners",
		Help: "Number of connected HTTP and WebRTC listeners",
	})
)

// Counters
var (
	SessionsStartedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "binaural_sessions_started_total",
		Help: "Total output sessions started",
	})
	DeviceErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "binaural_device_errors_total",
		Help: "Device failures by operation",
	}, []string{"op"})
	BlocksRenderedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "binaural_blocks_rendered_total",
		Help: "Total audio blocks produced by the oscillator",
	})
	RendersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "binaural_renders_total",
		Help: "Offline waveform renders by outcome",
	}, []string{"outcome"})
	AnalysesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "binaural_analyses_total",
		Help: "Frequency analyses by outcome (peak, none, error)",
	}, []string{"outcome"})
)

// Histograms
var (
	AnalysisDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "binaural_analysis_duration_ms",
		Help:    "Frequency analysis duration in milliseconds",
		Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000},
	})
)
