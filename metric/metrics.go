package metric

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the core server metrics shared across components. Component
// specific metrics register separately through the MetricsRegistrar interface.
type Metrics struct {
	// ServiceStatus is 1 while the server is running
	ServiceStatus prometheus.Gauge

	// DeviceConnected is 1 while the bridge websocket is connected
	DeviceConnected prometheus.Gauge

	// EventsReceived counts normalized device events by kind
	EventsReceived *prometheus.CounterVec

	// LinesSent counts display line writes by result
	LinesSent *prometheus.CounterVec

	// ActivityRuns counts activity runs by activity name and end reason
	ActivityRuns *prometheus.CounterVec

	// ErrorsTotal counts errors by component and class
	ErrorsTotal *prometheus.CounterVec
}

// NewMetrics creates the core server metrics, unregistered
func NewMetrics() *Metrics {
	return &Metrics{
		ServiceStatus: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "brailleserver",
			Name:      "service_status",
			Help:      "Whether the server is running (1) or not (0)",
		}),

		DeviceConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "brailleserver",
			Subsystem: "device",
			Name:      "connected",
			Help:      "Whether the bridge websocket is connected (1) or not (0)",
		}),

		EventsReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "brailleserver",
			Subsystem: "device",
			Name:      "events_received_total",
			Help:      "Total normalized device events received",
		}, []string{"kind"}),

		LinesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "brailleserver",
			Subsystem: "device",
			Name:      "lines_sent_total",
			Help:      "Total display line writes",
		}, []string{"result"}),

		ActivityRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "brailleserver",
			Subsystem: "activity",
			Name:      "runs_total",
			Help:      "Total activity runs by end reason",
		}, []string{"activity", "reason"}),

		ErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "brailleserver",
			Name:      "errors_total",
			Help:      "Total errors by component and class",
		}, []string{"component", "class"}),
	}
}
