package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edequartel/BrailleServer/activity"
	"github.com/edequartel/BrailleServer/braille"
	"github.com/edequartel/BrailleServer/component"
	"github.com/edequartel/BrailleServer/device"
)

type fakeDevice struct {
	mu          sync.Mutex
	state       device.State
	lines       []string
	cleared     int
	connects    int
	disconnects int
	subscribers []func(device.Event)
	connectErr  error
	sendLineErr error
}

func (d *fakeDevice) State() device.State { return d.state }

func (d *fakeDevice) Connect() error {
	d.mu.Lock()
	d.connects++
	d.mu.Unlock()
	return d.connectErr
}

func (d *fakeDevice) Disconnect() {
	d.mu.Lock()
	d.disconnects++
	d.mu.Unlock()
}

func (d *fakeDevice) Subscribe(fn func(device.Event)) func() {
	d.mu.Lock()
	d.subscribers = append(d.subscribers, fn)
	d.mu.Unlock()
	return func() {}
}

func (d *fakeDevice) SendLine(_ context.Context, text string, _ device.SendOptions) error {
	d.mu.Lock()
	d.lines = append(d.lines, text)
	d.mu.Unlock()
	return d.sendLineErr
}

func (d *fakeDevice) ClearDisplay(context.Context) error {
	d.mu.Lock()
	d.cleared++
	d.mu.Unlock()
	return nil
}

func (d *fakeDevice) sentLines() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.lines...)
}

type fakeRunner struct {
	mu      sync.Mutex
	running bool
	autoRun bool
	starts  []bool
	stops   []string
	subs    []func(activity.StateChange)
}

func (r *fakeRunner) StartActivity(auto bool) {
	r.mu.Lock()
	r.starts = append(r.starts, auto)
	r.running = true
	r.mu.Unlock()
}

func (r *fakeRunner) StopActivity(reason string) {
	r.mu.Lock()
	r.stops = append(r.stops, reason)
	r.running = false
	r.mu.Unlock()
}

func (r *fakeRunner) IsRunning() bool    { return r.running }
func (r *fakeRunner) AutoRun() bool      { return r.autoRun }
func (r *fakeRunner) SetAutoRun(on bool) { r.autoRun = on }

func (r *fakeRunner) Subscribe(fn func(activity.StateChange)) func() {
	r.mu.Lock()
	r.subs = append(r.subs, fn)
	r.mu.Unlock()
	return func() {}
}

type fakeHealths struct {
	healths map[string]component.HealthStatus
}

func (h *fakeHealths) Health() map[string]component.HealthStatus { return h.healths }

func newTestServer(t *testing.T) (*Server, *fakeDevice, *fakeRunner, *httptest.Server) {
	t.Helper()

	dev := &fakeDevice{state: device.StateConnected}
	runner := &fakeRunner{}
	healths := &fakeHealths{healths: map[string]component.HealthStatus{
		"device": {Healthy: true},
	}}

	srv, err := New("localhost:0", dev, runner, healths, nil, braille.NewLine(), braille.LangNL, nil)
	require.NoError(t, err)

	ts := httptest.NewServer(srv.routes())
	t.Cleanup(ts.Close)
	return srv, dev, runner, ts
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestHandleLineSetsBufferAndSends(t *testing.T) {
	_, dev, _, ts := newTestServer(t)

	resp := postJSON(t, ts.URL+"/api/line", lineRequest{Text: "hallo   wereld"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	got := decode[lineResponse](t, resp)
	assert.True(t, got.Changed)
	assert.Equal(t, "hallo wereld"+strings.Repeat(" ", 28), got.Text)
	assert.Len(t, got.Glyphs, 40)

	require.Len(t, dev.sentLines(), 1)
}

func TestHandleLineIdempotent(t *testing.T) {
	_, dev, _, ts := newTestServer(t)

	resp := postJSON(t, ts.URL+"/api/line", lineRequest{Text: "hallo"})
	assert.True(t, decode[lineResponse](t, resp).Changed)

	// normalizes identically: no second device write
	resp = postJSON(t, ts.URL+"/api/line", lineRequest{Text: "  hallo  "})
	assert.False(t, decode[lineResponse](t, resp).Changed)

	assert.Len(t, dev.sentLines(), 1)
}

func TestHandleLineTokens(t *testing.T) {
	_, _, _, ts := newTestServer(t)

	resp := postJSON(t, ts.URL+"/api/line", lineRequest{Tokens: []string{"de hond", "blaft"}})
	got := decode[lineResponse](t, resp)
	assert.True(t, got.Changed)
	assert.True(t, strings.HasPrefix(got.Text, "de hond blaft"))

	// the embedded space resolves to the logical token
	wordResp, err := http.Get(ts.URL + "/api/word?index=2")
	require.NoError(t, err)
	span := decode[braille.WordSpan](t, wordResp)
	assert.Equal(t, "de hond", span.Word)
}

func TestHandleWord(t *testing.T) {
	_, _, _, ts := newTestServer(t)

	postJSON(t, ts.URL+"/api/line", lineRequest{Text: "hello world"})

	resp, err := http.Get(ts.URL + "/api/word?index=7")
	require.NoError(t, err)
	span := decode[braille.WordSpan](t, resp)
	assert.Equal(t, "world", span.Word)
	assert.Equal(t, 6, span.Start)
	assert.Equal(t, 11, span.End)

	resp, err = http.Get(ts.URL + "/api/word?index=20")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/api/word?index=abc")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandleClear(t *testing.T) {
	_, dev, _, ts := newTestServer(t)

	postJSON(t, ts.URL+"/api/line", lineRequest{Text: "hallo"})
	resp, err := http.Post(ts.URL+"/api/clear", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, 1, dev.cleared)
}

func TestHandleState(t *testing.T) {
	_, _, runner, ts := newTestServer(t)
	runner.running = true
	runner.autoRun = true

	resp, err := http.Get(ts.URL + "/api/state")
	require.NoError(t, err)
	state := decode[stateResponse](t, resp)
	assert.Equal(t, "connected", state.Connection)
	assert.True(t, state.Running)
	assert.True(t, state.AutoRun)
	assert.Len(t, state.Line, 40)
}

func TestHandleActivityEndpoints(t *testing.T) {
	_, _, runner, ts := newTestServer(t)

	resp := postJSON(t, ts.URL+"/api/activity/start", activityStartRequest{Auto: false})
	resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	resp = postJSON(t, ts.URL+"/api/activity/stop", activityStopRequest{Reason: "klaar"})
	resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	runner.mu.Lock()
	defer runner.mu.Unlock()
	assert.Equal(t, []bool{false}, runner.starts)
	assert.Equal(t, []string{"klaar"}, runner.stops)
}

func TestHandleAutoRun(t *testing.T) {
	_, _, runner, ts := newTestServer(t)

	resp := postJSON(t, ts.URL+"/api/autorun", autoRunRequest{Enabled: true})
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.True(t, runner.AutoRun())
}

func TestHandleConnectDisconnect(t *testing.T) {
	_, dev, _, ts := newTestServer(t)

	resp, err := http.Post(ts.URL+"/api/connect", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	resp, err = http.Post(ts.URL+"/api/disconnect", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	assert.Equal(t, 1, dev.connects)
	assert.Equal(t, 1, dev.disconnects)
}

func TestHandleHealth(t *testing.T) {
	_, _, _, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestFeedBroadcast(t *testing.T) {
	srv, _, _, ts := newTestServer(t)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	// give the feed a beat to register the client
	require.Eventually(t, func() bool {
		srv.feed.mu.Lock()
		defer srv.feed.mu.Unlock()
		return len(srv.feed.clients) == 1
	}, 2*time.Second, 10*time.Millisecond)

	srv.feed.broadcastDevice(device.CursorEvent{Index: 7, Pressed: true})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg map[string]any
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, "device", msg["type"])
	assert.Equal(t, "cursor", msg["kind"])

	payload := msg["payload"].(map[string]any)
	assert.Equal(t, float64(7), payload["index"])
	assert.Equal(t, true, payload["pressed"])
}

func TestNewValidation(t *testing.T) {
	dev := &fakeDevice{}
	runner := &fakeRunner{}

	_, err := New("", dev, runner, nil, nil, nil, braille.LangNL, nil)
	require.Error(t, err)

	_, err = New("localhost:0", nil, runner, nil, nil, nil, braille.LangNL, nil)
	require.Error(t, err)
}
