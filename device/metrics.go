package device

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/edequartel/BrailleServer/metric"
)

// Metrics holds Prometheus metrics for the device client. The shared core
// series (connection gauge, events by kind, lines by result, errors by class)
// live on metric.Metrics and are driven from here; only the client-internal
// series register under the device component.
type Metrics struct {
	core *metric.Metrics

	reconnectAttempts prometheus.Counter
	sendsTotal        *prometheus.CounterVec
	sendDuration      prometheus.Histogram
}

// newMetrics creates and registers device client metrics
func newMetrics(registry *metric.MetricsRegistry, componentName string) (*Metrics, error) {
	if registry == nil {
		return nil, nil
	}

	m := &Metrics{
		core: registry.Metrics,

		reconnectAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "brailleserver",
			Subsystem: "device_client",
			Name:      "reconnect_attempts_total",
			Help:      "Total reconnection attempts",
		}),

		sendsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "brailleserver",
			Subsystem: "device_client",
			Name:      "sends_total",
			Help:      "Total outbound display requests by operation and result",
		}, []string{"op", "result"}),

		sendDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "brailleserver",
			Subsystem: "device_client",
			Name:      "send_duration_seconds",
			Help:      "Display request round-trip duration",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
		}),
	}

	if err := registry.RegisterCounter(componentName, "reconnect_attempts", m.reconnectAttempts); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec(componentName, "sends_total", m.sendsTotal); err != nil {
		return nil, err
	}
	if err := registry.RegisterHistogram(componentName, "send_duration", m.sendDuration); err != nil {
		return nil, err
	}

	return m, nil
}

// setConnected drives the shared connection gauge
func (m *Metrics) setConnected(up bool) {
	if m == nil {
		return
	}
	if up {
		m.core.DeviceConnected.Set(1)
	} else {
		m.core.DeviceConnected.Set(0)
	}
}

func (m *Metrics) trackEvent(kind EventKind) {
	if m == nil {
		return
	}
	m.core.EventsReceived.WithLabelValues(string(kind)).Inc()
}

// trackSend records one outbound request. Line writes also count on the
// shared per-result series.
func (m *Metrics) trackSend(op, result string) {
	if m == nil {
		return
	}
	m.sendsTotal.WithLabelValues(op, result).Inc()
	if op == "sendline" {
		m.core.LinesSent.WithLabelValues(result).Inc()
	}
}

// trackError classifies the error type onto the shared error counter:
// inbound wire violations are protocol errors, everything else transport.
func (m *Metrics) trackError(errorType string) {
	if m == nil {
		return
	}
	class := "transport"
	if errorType == "parse" || errorType == "cursor" {
		class = "protocol"
	}
	m.core.ErrorsTotal.WithLabelValues("device", class).Inc()
}
