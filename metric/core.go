package metric

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "marinestreams"

// Metrics contains the hub-level metrics shared by the alert, stream and
// event bus packages. All Record methods are safe on a nil *Metrics.
type Metrics struct {
	// Alert metrics
	AlertsLive           prometheus.Gauge
	AlertTransitions     *prometheus.CounterVec
	NotificationsEmitted *prometheus.CounterVec

	// Binary stream metrics
	StreamFramesEmitted *prometheus.CounterVec
	StreamFramesSent    *prometheus.CounterVec
	StreamFramesDropped *prometheus.CounterVec
	StreamEvictions     *prometheus.CounterVec
	StreamSendErrors    *prometheus.CounterVec
	StreamClients       *prometheus.GaugeVec

	// Event bus metrics
	DeltasPublished prometheus.Counter
	DeltasDropped   prometheus.Counter

	// NATS metrics
	NATSConnected  prometheus.Gauge
	NATSReconnects prometheus.Counter
}

// NewMetrics creates a new Metrics instance. The collectors are not registered;
// NewMetricsRegistry does that.
func NewMetrics() *Metrics {
	return &Metrics{
		AlertsLive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "alerts",
			Name:      "live",
			Help:      "Number of alerts held by the alert manager",
		}),
		AlertTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alerts",
			Name:      "transitions_total",
			Help:      "Alert state transitions by operation",
		}, []string{"operation"}),
		NotificationsEmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alerts",
			Name:      "notifications_total",
			Help:      "Notification deltas emitted by state",
		}, []string{"state"}),

		StreamFramesEmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "streams",
			Name:      "frames_emitted_total",
			Help:      "Binary frames handed to the stream manager",
		}, []string{"stream"}),
		StreamFramesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "streams",
			Name:      "frames_sent_total",
			Help:      "Binary frames delivered to clients",
		}, []string{"stream"}),
		StreamFramesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "streams",
			Name:      "frames_dropped_total",
			Help:      "Binary frames dropped for clients over the buffered byte threshold",
		}, []string{"stream"}),
		StreamEvictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "streams",
			Name:      "evictions_total",
			Help:      "Clients closed because they could not keep up",
		}, []string{"stream"}),
		StreamSendErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "streams",
			Name:      "send_errors_total",
			Help:      "Failed frame sends",
		}, []string{"stream"}),
		StreamClients: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "streams",
			Name:      "clients",
			Help:      "Attached clients per stream",
		}, []string{"stream"}),

		DeltasPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "eventbus",
			Name:      "deltas_published_total",
			Help:      "Deltas accepted by the event bus",
		}),
		DeltasDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "eventbus",
			Name:      "deltas_dropped_total",
			Help:      "Deltas dropped for subscribers with a full queue",
		}),

		NATSConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "nats",
			Name:      "connected",
			Help:      "NATS connection status (0=disconnected, 1=connected)",
		}),
		NATSReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "nats",
			Name:      "reconnects_total",
			Help:      "Total number of NATS reconnections",
		}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.AlertsLive, m.AlertTransitions, m.NotificationsEmitted,
		m.StreamFramesEmitted, m.StreamFramesSent, m.StreamFramesDropped,
		m.StreamEvictions, m.StreamSendErrors, m.StreamClients,
		m.DeltasPublished, m.DeltasDropped,
		m.NATSConnected, m.NATSReconnects,
	}
}

// SetAlertsLive updates the live alert gauge
func (m *Metrics) SetAlertsLive(n int) {
	if m == nil {
		return
	}
	m.AlertsLive.Set(float64(n))
}

// RecordAlertTransition counts an alert mutation
func (m *Metrics) RecordAlertTransition(operation string) {
	if m == nil {
		return
	}
	m.AlertTransitions.WithLabelValues(operation).Inc()
}

// RecordNotification counts an emitted notification delta
func (m *Metrics) RecordNotification(state string) {
	if m == nil {
		return
	}
	m.NotificationsEmitted.WithLabelValues(state).Inc()
}

// RecordFrameEmitted counts a frame handed to a stream
func (m *Metrics) RecordFrameEmitted(stream string) {
	if m == nil {
		return
	}
	m.StreamFramesEmitted.WithLabelValues(stream).Inc()
}

// RecordFrameSent counts a frame delivered to one client
func (m *Metrics) RecordFrameSent(stream string) {
	if m == nil {
		return
	}
	m.StreamFramesSent.WithLabelValues(stream).Inc()
}

// RecordFrameDropped counts a frame shed for one client
func (m *Metrics) RecordFrameDropped(stream string) {
	if m == nil {
		return
	}
	m.StreamFramesDropped.WithLabelValues(stream).Inc()
}

// RecordEviction counts a slow-consumer eviction
func (m *Metrics) RecordEviction(stream string) {
	if m == nil {
		return
	}
	m.StreamEvictions.WithLabelValues(stream).Inc()
}

// RecordSendError counts a failed frame send
func (m *Metrics) RecordSendError(stream string) {
	if m == nil {
		return
	}
	m.StreamSendErrors.WithLabelValues(stream).Inc()
}

// SetStreamClients updates the attached client gauge for a stream. A stream
// without clients has no series.
func (m *Metrics) SetStreamClients(stream string, n int) {
	if m == nil {
		return
	}
	if n <= 0 {
		m.StreamClients.DeleteLabelValues(stream)
		return
	}
	m.StreamClients.WithLabelValues(stream).Set(float64(n))
}

// ForgetStream drops every per-stream series once a stream is cleaned up
func (m *Metrics) ForgetStream(stream string) {
	if m == nil {
		return
	}
	for _, vec := range []*prometheus.CounterVec{
		m.StreamFramesEmitted, m.StreamFramesSent, m.StreamFramesDropped, m.StreamEvictions, m.StreamSendErrors,
	} {
		vec.DeleteLabelValues(stream)
	}
	m.StreamClients.DeleteLabelValues(stream)
}

// RecordDeltaPublished counts a delta accepted by the bus
func (m *Metrics) RecordDeltaPublished() {
	if m == nil {
		return
	}
	m.DeltasPublished.Inc()
}

// RecordDeltaDropped counts a delta shed for a subscriber
func (m *Metrics) RecordDeltaDropped() {
	if m == nil {
		return
	}
	m.DeltasDropped.Inc()
}

// RecordNATSStatus updates NATS connection status
func (m *Metrics) RecordNATSStatus(connected bool) {
	if m == nil {
		return
	}
	value := 0.0
	if connected {
		value = 1.0
	}
	m.NATSConnected.Set(value)
}

// RecordNATSReconnect increments reconnection counter
func (m *Metrics) RecordNATSReconnect() {
	if m == nil {
		return
	}
	m.NATSReconnects.Inc()
}
