// Package metrics holds the Prometheus collectors of the market-data core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "xopt"

// Frame results
const (
	FrameRouted     = "routed"
	FrameUnroutable = "unroutable"
	FrameMalformed  = "malformed"
)

var (
	StreamConnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "connected",
			Help:      "1 while the market stream socket is open",
		},
	)

	StreamReconnects = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "reconnects_scheduled_total",
			Help:      "Reconnect attempts scheduled after a close",
		},
	)

	StreamActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "active_streams",
			Help:      "Logical streams with at least one subscriber",
		},
	)

	StreamFrames = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "frames_total",
			Help:      "Inbound frames by demultiplexing result",
		},
		[]string{"result"},
	)

	StreamControl = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "control_messages_total",
			Help:      "Outbound control messages, sent directly or queued while disconnected",
		},
		[]string{"method", "mode"},
	)

	HandlerPanics = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "handler_panics_total",
			Help:      "Subscriber callbacks that panicked",
		},
	)

	RESTRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rest",
			Name:      "requests_total",
			Help:      "Exchange REST requests by endpoint and status code",
		},
		[]string{"endpoint", "status"},
	)

	RESTDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "rest",
			Name:      "request_duration_seconds",
			Help:      "Exchange REST latency",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	RecorderDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "recorder",
			Name:      "dropped_total",
			Help:      "Records dropped because the recorder buffer was full",
		},
	)

	RecorderErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "recorder",
			Name:      "errors_total",
			Help:      "Repository write failures by record kind",
		},
		[]string{"kind"},
	)
)
