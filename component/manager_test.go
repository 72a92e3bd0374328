package component

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeComponent records lifecycle calls for ordering assertions
type fakeComponent struct {
	name     string
	log      *[]string
	startErr error
	initErr  error
	started  bool
}

func (f *fakeComponent) Meta() Metadata {
	return Metadata{Name: f.name, Description: "test component", Version: "0.0.1"}
}

func (f *fakeComponent) Health() HealthStatus {
	return HealthStatus{Healthy: f.started, LastCheck: time.Now()}
}

func (f *fakeComponent) Initialize() error {
	*f.log = append(*f.log, "init:"+f.name)
	return f.initErr
}

func (f *fakeComponent) Start(_ context.Context) error {
	*f.log = append(*f.log, "start:"+f.name)
	if f.startErr != nil {
		return f.startErr
	}
	f.started = true
	return nil
}

func (f *fakeComponent) Stop(_ time.Duration) error {
	*f.log = append(*f.log, "stop:"+f.name)
	f.started = false
	return nil
}

func TestManagerStartsInOrderStopsInReverse(t *testing.T) {
	var log []string
	m := NewManager(nil)
	require.NoError(t, m.Register(&fakeComponent{name: "device", log: &log}))
	require.NoError(t, m.Register(&fakeComponent{name: "runner", log: &log}))
	require.NoError(t, m.Register(&fakeComponent{name: "gateway", log: &log}))

	require.NoError(t, m.StartAll(context.Background()))
	require.NoError(t, m.StopAll(3*time.Second))

	assert.Equal(t, []string{
		"init:device", "start:device",
		"init:runner", "start:runner",
		"init:gateway", "start:gateway",
		"stop:gateway", "stop:runner", "stop:device",
	}, log)
}

func TestManagerRejectsDuplicateNames(t *testing.T) {
	var log []string
	m := NewManager(nil)
	require.NoError(t, m.Register(&fakeComponent{name: "device", log: &log}))
	err := m.Register(&fakeComponent{name: "device", log: &log})
	require.Error(t, err)
}

func TestManagerRollsBackOnStartFailure(t *testing.T) {
	var log []string
	m := NewManager(nil)
	require.NoError(t, m.Register(&fakeComponent{name: "device", log: &log}))
	require.NoError(t, m.Register(&fakeComponent{name: "runner", log: &log, startErr: fmt.Errorf("no registry")}))

	err := m.StartAll(context.Background())
	require.Error(t, err)

	// device was started, so the failed StartAll must have stopped it again
	assert.Contains(t, log, "stop:device")

	// manager never entered the started state; StopAll is a no-op
	require.NoError(t, m.StopAll(time.Second))
	assert.NotContains(t, log, "stop:runner")
}

func TestManagerStopAllWhenNotStarted(t *testing.T) {
	m := NewManager(nil)
	require.NoError(t, m.StopAll(time.Second))
}

func TestManagerHealthAndStates(t *testing.T) {
	var log []string
	m := NewManager(nil)
	require.NoError(t, m.Register(&fakeComponent{name: "device", log: &log}))
	require.NoError(t, m.StartAll(context.Background()))

	health := m.Health()
	require.Contains(t, health, "device")
	assert.True(t, health["device"].Healthy)

	states := m.States()
	assert.Equal(t, StateStarted, states["device"])

	require.NoError(t, m.StopAll(time.Second))
	assert.Equal(t, StateStopped, m.States()["device"])
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "created", StateCreated.String())
	assert.Equal(t, "initialized", StateInitialized.String())
	assert.Equal(t, "started", StateStarted.String())
	assert.Equal(t, "stopped", StateStopped.String())
	assert.Equal(t, "failed", StateFailed.String())
	assert.Equal(t, "unknown", State(42).String())
}
