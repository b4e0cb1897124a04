package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "vision_client"

type Metrics struct {
	InboundMessages *prometheus.CounterVec
	Emits           *prometheus.CounterVec
	CameraCalls     *prometheus.CounterVec
	Notifications   *prometheus.CounterVec
	FPS             prometheus.Gauge
	Connected       prometheus.Gauge
	Connects        prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		InboundMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inbound_messages_total",
			Help:      "Server push messages received, by event name.",
		}, []string{"event"}),
		Emits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "emits_total",
			Help:      "Outbound socket emits, by event name and outcome (sent or dropped).",
		}, []string{"event", "outcome"}),
		CameraCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "camera_calls_total",
			Help:      "Camera API calls, by operation and outcome.",
		}, []string{"op", "outcome"}),
		Notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "User-facing notifications raised, by level.",
		}, []string{"level"}),
		FPS: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "frames_per_second",
			Help:      "Video frame rate measured over the last tick.",
		}),
		Connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connected",
			Help:      "1 while the socket connection is established.",
		}),
		Connects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connects_total",
			Help:      "Successful socket connections, including reconnects.",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.InboundMessages,
			m.Emits,
			m.CameraCalls,
			m.Notifications,
			m.FPS,
			m.Connected,
			m.Connects,
		)
	}
	return m
}

// ObserveEmit matches socketio.EmitHook.
func (m *Metrics) ObserveEmit(event string, sent bool) {
	outcome := "sent"
	if !sent {
		outcome = "dropped"
	}
	m.Emits.WithLabelValues(event, outcome).Inc()
}

func (m *Metrics) ObserveCamera(op string, err error, success bool) {
	outcome := "ok"
	switch {
	case err != nil:
		outcome = "error"
	case !success:
		outcome = "rejected"
	}
	m.CameraCalls.WithLabelValues(op, outcome).Inc()
}

func (m *Metrics) SetConnected(connected bool) {
	if connected {
		m.Connected.Set(1)
		m.Connects.Inc()
		return
	}
	m.Connected.Set(0)
}
