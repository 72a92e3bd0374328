package metric

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetricsRegistryCoreMetrics(t *testing.T) {
	r := NewMetricsRegistry()
	require.NotNil(t, r.Metrics)

	r.Metrics.ServiceStatus.Set(1)
	r.Metrics.EventsReceived.WithLabelValues("cursor").Inc()

	families, err := r.PrometheusRegistry().Gather()
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["brailleserver_service_status"])
	assert.True(t, names["brailleserver_device_events_received_total"])
	assert.True(t, names["go_goroutines"], "runtime collectors registered")
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	r := NewMetricsRegistry()

	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "test_counter"})
	require.NoError(t, r.RegisterCounter("device", "test_counter", c))

	c2 := prometheus.NewCounter(prometheus.CounterOpts{Name: "test_counter_2"})
	err := r.RegisterCounter("device", "test_counter", c2)
	require.Error(t, err)

	// same metric name under a different component is fine
	c3 := prometheus.NewCounter(prometheus.CounterOpts{Name: "test_counter_3"})
	require.NoError(t, r.RegisterCounter("gateway", "test_counter", c3))
}

func TestUnregister(t *testing.T) {
	r := NewMetricsRegistry()

	g := prometheus.NewGauge(prometheus.GaugeOpts{Name: "test_gauge"})
	require.NoError(t, r.RegisterGauge("device", "test_gauge", g))

	assert.True(t, r.Unregister("device", "test_gauge"))
	assert.False(t, r.Unregister("device", "test_gauge"))
	assert.False(t, r.Unregister("device", "never_registered"))

	// slot is free again
	require.NoError(t, r.RegisterGauge("device", "test_gauge", g))
}

func TestHandlerServesExposition(t *testing.T) {
	r := NewMetricsRegistry()
	r.Metrics.DeviceConnected.Set(1)

	srv := httptest.NewServer(r.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	buf := make([]byte, 1<<16)
	n, _ := resp.Body.Read(buf)
	body := string(buf[:n])
	assert.True(t, strings.Contains(body, "brailleserver_device_connected 1"))
}
