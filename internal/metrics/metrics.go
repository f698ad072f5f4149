// Package metrics exposes door-sentinel counters and gauges to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	metricPrefix = "door_sentinel_"

	ResultSuccess  = "success"
	ResultRejected = "rejected"
	ResultError    = "error"

	KindSingle = "single"
	KindBulk   = "bulk"
)

// Metrics holds the collectors on a private registry. A nil *Metrics is a
// valid no-op recorder.
type Metrics struct {
	registry *prometheus.Registry

	transitions      *prometheus.CounterVec
	deliveries       *prometheus.CounterVec
	deliveryLatency  *prometheus.HistogramVec
	bufferDepth      prometheus.Gauge
	bufferOverflows  prometheus.Counter
	online           prometheus.Gauge
	sirenActivations prometheus.Counter
	sirenActive      prometheus.Gauge
	frames           *prometheus.CounterVec
}

// New creates and registers all collectors, plus the Go runtime and process
// collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "transitions_total",
				Help: "Debounced door transitions by new state",
			},
			[]string{"state"},
		),
		deliveries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "deliveries_total",
				Help: "Ingest deliveries by kind and result",
			},
			[]string{"kind", "result"},
		),
		deliveryLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "delivery_latency_seconds",
				Help:    "Ingest delivery latency in seconds",
				Buckets: []float64{.01, .05, .1, .25, .5, 1, 2, 5},
			},
			[]string{"kind"},
		),
		bufferDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: metricPrefix + "offline_buffer_depth",
			Help: "Openings waiting in the offline buffer",
		}),
		bufferOverflows: prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "offline_buffer_overflows_total",
			Help: "Offline openings overwritten because the buffer was full",
		}),
		online: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: metricPrefix + "connectivity_online",
			Help: "1 when the ingest channel is in online mode",
		}),
		sirenActivations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "siren_activations_total",
			Help: "Times the siren was energized",
		}),
		sirenActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: metricPrefix + "siren_active",
			Help: "1 while the siren output is energized",
		}),
		frames: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "protocol_frames_total",
				Help: "Event protocol frames by direction and event",
			},
			[]string{"direction", "event"},
		),
	}

	m.registry.MustRegister(
		m.transitions,
		m.deliveries,
		m.deliveryLatency,
		m.bufferDepth,
		m.bufferOverflows,
		m.online,
		m.sirenActivations,
		m.sirenActive,
		m.frames,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) ObserveTransition(state string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(state).Inc()
}

func (m *Metrics) ObserveDelivery(kind, result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.deliveries.WithLabelValues(kind, result).Inc()
	m.deliveryLatency.WithLabelValues(kind).Observe(elapsed.Seconds())
}

func (m *Metrics) SetBufferDepth(n int) {
	if m == nil {
		return
	}
	m.bufferDepth.Set(float64(n))
}

func (m *Metrics) ObserveBufferOverflow() {
	if m == nil {
		return
	}
	m.bufferOverflows.Inc()
}

func (m *Metrics) SetOnline(online bool) {
	if m == nil {
		return
	}
	m.online.Set(boolToFloat(online))
}

func (m *Metrics) ObserveSirenActivation() {
	if m == nil {
		return
	}
	m.sirenActivations.Inc()
}

func (m *Metrics) SetSirenActive(active bool) {
	if m == nil {
		return
	}
	m.sirenActive.Set(boolToFloat(active))
}

// ObserveFrame matches protocol.FrameObserver.
func (m *Metrics) ObserveFrame(direction, event string) {
	if m == nil {
		return
	}
	m.frames.WithLabelValues(direction, event).Inc()
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
