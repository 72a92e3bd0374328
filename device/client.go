// Package device maintains the bidirectional channel to the local braille
// bridge: a persistent websocket delivering hardware events, plus simple HTTP
// requests for display writes. It presents a normalized, resilient surface;
// transport failures are reported as events and recovered by reconnecting,
// never thrown into unrelated code paths.
package device

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/edequartel/BrailleServer/component"
	"github.com/edequartel/BrailleServer/errors"
	"github.com/edequartel/BrailleServer/metric"
	"github.com/edequartel/BrailleServer/pkg/retry"
)

// State is the outward-visible connection state
type State int32

// Connection states. Connecting cannot be entered from Connected without an
// intervening disconnect.
const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

// String returns the lowercase state name
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// reconnectPolicy tracks the growing delay between reconnect attempts. The
// delay doubles on each failure, capped at max, and resets on a successful
// connection. Attempts are unlimited; the link may return after arbitrary
// downtime.
type reconnectPolicy struct {
	initial    time.Duration
	max        time.Duration
	multiplier float64
	current    time.Duration
}

func newReconnectPolicy(cfg ReconnectConfig) *reconnectPolicy {
	return &reconnectPolicy{
		initial:    cfg.InitialDelay,
		max:        cfg.MaxDelay,
		multiplier: cfg.Multiplier,
		current:    cfg.InitialDelay,
	}
}

// next returns the delay to wait before the next attempt and grows the
// delay for the one after.
func (p *reconnectPolicy) next() time.Duration {
	d := p.current
	grown := time.Duration(float64(p.current) * p.multiplier)
	if grown > p.max {
		grown = p.max
	}
	p.current = grown
	return d
}

func (p *reconnectPolicy) reset() {
	p.current = p.initial
}

// Client is the connection manager for the bridge device
type Client struct {
	name   string
	config Config
	logger *slog.Logger

	dialer     *websocket.Dialer
	httpClient *http.Client
	limiter    *rate.Limiter

	connMu sync.Mutex
	conn   *websocket.Conn
	policy *reconnectPolicy

	state      atomic.Int32
	userClosed atomic.Bool
	connectCh  chan struct{}

	subsMu  sync.Mutex
	subs    map[int]func(Event)
	nextSub int

	shutdown     chan struct{}
	shutdownOnce sync.Once
	started      atomic.Bool
	startTime    time.Time
	cancel       context.CancelFunc
	wg           sync.WaitGroup
	lifecycleMu  sync.Mutex
	errorCount   atomic.Int64

	metrics *Metrics
}

var _ component.Component = (*Client)(nil)

// NewClient creates a bridge device client
func NewClient(config Config, registry *metric.MetricsRegistry, logger *slog.Logger) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	sendRate := config.SendRate
	if sendRate <= 0 {
		sendRate = 10
	}

	metrics, err := newMetrics(registry, "device")
	if err != nil {
		return nil, err
	}

	return &Client{
		name:   "device",
		config: config,
		logger: logger.With("component", "device"),
		dialer: &websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
		},
		httpClient: &http.Client{Timeout: config.SendTimeout},
		limiter:    rate.NewLimiter(rate.Limit(sendRate), 1),
		policy:     newReconnectPolicy(config.Reconnect),
		connectCh:  make(chan struct{}, 1),
		subs:       make(map[int]func(Event)),
		shutdown:   make(chan struct{}),
		metrics:    metrics,
	}, nil
}

// Meta returns component metadata
func (c *Client) Meta() component.Metadata {
	return component.Metadata{
		Name:        c.name,
		Description: "Connection manager for the braille bridge device",
		Version:     "1.0.0",
	}
}

// Health reports connected-and-started as healthy
func (c *Client) Health() component.HealthStatus {
	started := c.started.Load()
	uptime := time.Duration(0)
	if started && !c.startTime.IsZero() {
		uptime = time.Since(c.startTime)
	}
	return component.HealthStatus{
		Healthy:    started && c.State() == StateConnected,
		LastCheck:  time.Now(),
		ErrorCount: int(c.errorCount.Load()),
		Uptime:     uptime,
	}
}

// Initialize implements component.Component
func (c *Client) Initialize() error {
	return nil
}

// Start launches the connection loop. The loop keeps the socket alive for
// the component's lifetime; Connect and Disconnect steer it.
func (c *Client) Start(ctx context.Context) error {
	c.lifecycleMu.Lock()
	defer c.lifecycleMu.Unlock()

	if c.started.Load() {
		return errors.WrapUsage(errors.ErrAlreadyConnected, "Client", "Start", "already started")
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.wg.Add(1)
	go c.connectLoop(runCtx)

	c.startTime = time.Now()
	c.started.Store(true)
	return nil
}

// Stop closes the socket and waits for the connection loop to exit
func (c *Client) Stop(timeout time.Duration) error {
	c.lifecycleMu.Lock()
	defer c.lifecycleMu.Unlock()

	if !c.started.Load() {
		return nil
	}

	c.userClosed.Store(true)
	c.shutdownOnce.Do(func() { close(c.shutdown) })
	c.cancel()
	c.closeConn()

	doneCh := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(doneCh)
	}()

	select {
	case <-doneCh:
	case <-time.After(timeout):
		return errors.WrapTransport(
			fmt.Errorf("shutdown timeout after %v", timeout),
			"Client", "Stop", "wait for connection loop")
	}

	c.started.Store(false)
	return nil
}

// State returns the current connection state
func (c *Client) State() State {
	return State(c.state.Load())
}

// Connect requests a connection. Idempotent: a no-op while already Connected
// or Connecting. Re-enables auto-reconnect after a user Disconnect.
func (c *Client) Connect() error {
	if !c.started.Load() {
		return errors.WrapUsage(errors.ErrNotConnected, "Client", "Connect", "client not started")
	}
	if c.State() != StateDisconnected {
		return nil
	}

	c.userClosed.Store(false)
	select {
	case c.connectCh <- struct{}{}:
	default:
	}
	return nil
}

// Disconnect closes the socket and suppresses auto-reconnect until the next
// Connect.
func (c *Client) Disconnect() {
	c.userClosed.Store(true)
	c.closeConn()
}

// Subscribe registers an event observer. The returned cancel removes it.
// Observers are called synchronously on the read loop; keep them short.
func (c *Client) Subscribe(fn func(Event)) (cancel func()) {
	c.subsMu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.subsMu.Unlock()

	return func() {
		c.subsMu.Lock()
		delete(c.subs, id)
		c.subsMu.Unlock()
	}
}

func (c *Client) publish(ev Event) {
	c.metrics.trackEvent(ev.Kind())

	c.subsMu.Lock()
	fns := make([]func(Event), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.subsMu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

func (c *Client) setState(s State) {
	c.state.Store(int32(s))
	c.metrics.setConnected(s == StateConnected)
}

func (c *Client) closeConn() {
	c.connMu.Lock()
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.connMu.Unlock()
}

// connectLoop owns the socket lifecycle: dial, read until drop, back off,
// repeat. It is the only writer of connection state.
func (c *Client) connectLoop(ctx context.Context) {
	defer c.wg.Done()
	defer c.setState(StateDisconnected)

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.shutdown:
			return
		default:
		}

		// after a user Disconnect the loop parks until Connect
		if c.userClosed.Load() {
			select {
			case <-ctx.Done():
				return
			case <-c.shutdown:
				return
			case <-c.connectCh:
				continue
			}
		}

		c.setState(StateConnecting)

		conn, resp, err := c.dialer.DialContext(ctx, c.config.SocketURL, nil)
		if err != nil {
			if resp != nil {
				_, _ = io.Copy(io.Discard, resp.Body)
				_ = resp.Body.Close()
			}
			c.setState(StateDisconnected)
			c.trackError("connect")
			c.publish(DisconnectedEvent{Reason: err.Error()})

			if !c.config.Reconnect.Enabled {
				return
			}
			if !c.waitReconnect(ctx) {
				return
			}
			continue
		}

		c.connMu.Lock()
		c.conn = conn
		c.policy.reset()
		c.connMu.Unlock()

		c.setState(StateConnected)
		c.logger.Info("bridge connected", "url", c.config.SocketURL)
		c.publish(ConnectedEvent{})

		code, reason := c.readLoop(ctx, conn)

		c.closeConn()
		c.setState(StateDisconnected)

		select {
		case <-ctx.Done():
			return
		case <-c.shutdown:
			return
		default:
		}

		c.logger.Warn("bridge disconnected", "code", code, "reason", reason)
		c.publish(DisconnectedEvent{Code: code, Reason: reason})

		if c.userClosed.Load() {
			continue // park at top of loop
		}
		if !c.config.Reconnect.Enabled {
			return
		}
		if !c.waitReconnect(ctx) {
			return
		}
	}
}

// waitReconnect sleeps the current backoff delay. Returns false when the
// client is shutting down. An explicit Connect cuts the wait short.
func (c *Client) waitReconnect(ctx context.Context) bool {
	c.connMu.Lock()
	delay := c.policy.next()
	c.connMu.Unlock()

	if c.metrics != nil {
		c.metrics.reconnectAttempts.Inc()
	}
	c.logger.Info("reconnecting", "delay", delay)

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-c.shutdown:
		return false
	case <-c.connectCh:
		return true
	case <-timer.C:
		return true
	}
}

// readLoop reads messages until the connection drops, publishing one
// normalized event per message. There is no read timeout on the link itself
// (a lesson may sit idle indefinitely); short deadlines only keep shutdown
// responsive.
func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) (code int, reason string) {
	for {
		select {
		case <-ctx.Done():
			return 0, "shutdown"
		case <-c.shutdown:
			return 0, "shutdown"
		default:
		}

		_ = conn.SetReadDeadline(time.Now().Add(time.Second))
		_, message, err := conn.ReadMessage()
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				continue
			}
			if closeErr, ok := err.(*websocket.CloseError); ok {
				return closeErr.Code, closeErr.Text
			}
			return 0, err.Error()
		}

		ev := Normalize(message)
		if errEv, ok := ev.(ErrorEvent); ok {
			c.trackError(errEv.Type)
			c.logger.Warn("protocol error", "type", errEv.Type, "error", errEv.Err)
		}
		c.publish(ev)
	}
}

func (c *Client) trackError(errorType string) {
	c.errorCount.Add(1)
	c.metrics.trackError(errorType)
}

// SendOptions controls outbound line formatting
type SendOptions struct {
	// Pad pads or truncates the text to the cell count
	Pad bool
	// Cells overrides the configured display width when positive
	Cells int
}

// displayRequest is the bridge's display endpoint body
type displayRequest struct {
	Text  string `json:"text"`
	Cells int    `json:"cells"`
}

// SendLine issues a display request for text. Fire-and-forget: the outcome
// is published as an HTTPEvent, and the returned error is the same outcome
// for callers that choose to observe it.
func (c *Client) SendLine(ctx context.Context, text string, opts SendOptions) error {
	cells := opts.Cells
	if cells <= 0 {
		cells = c.config.Cells
	}
	if opts.Pad {
		text = padLine(text, cells)
	}

	body, err := json.Marshal(displayRequest{Text: text, Cells: cells})
	if err != nil {
		return errors.WrapUsage(err, "Client", "SendLine", "marshal request")
	}

	return c.post(ctx, "sendline", c.config.BaseURL+c.config.DisplayPath, body)
}

// ClearDisplay issues a clear request; same failure contract as SendLine
func (c *Client) ClearDisplay(ctx context.Context) error {
	return c.post(ctx, "clear", c.config.BaseURL+c.config.ClearPath, nil)
}

func (c *Client) post(ctx context.Context, op, url string, body []byte) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return errors.WrapTransport(err, "Client", "post", "rate limit wait")
	}

	start := time.Now()
	var lastStatus int

	err := retry.Do(ctx, retry.Send(), func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return retry.NonRetryable(err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		_, _ = io.Copy(io.Discard, resp.Body)

		lastStatus = resp.StatusCode
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return nil
		}
		statusErr := fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return retry.NonRetryable(statusErr)
		}
		return statusErr
	})

	if c.metrics != nil {
		c.metrics.sendDuration.Observe(time.Since(start).Seconds())
	}

	if err != nil {
		c.trackError("send")
		c.metrics.trackSend(op, "error")
		wrapped := errors.WrapTransport(err, "Client", "post", op+" request")
		c.publish(HTTPEvent{Op: op, Status: lastStatus, Err: wrapped})
		return wrapped
	}

	c.metrics.trackSend(op, "ok")
	c.publish(HTTPEvent{Op: op, Status: lastStatus})
	return nil
}

// padLine pads with trailing spaces or truncates to exactly cells characters
func padLine(text string, cells int) string {
	runes := []rune(text)
	if len(runes) > cells {
		return string(runes[:cells])
	}
	if len(runes) < cells {
		return text + strings.Repeat(" ", cells-len(runes))
	}
	return text
}
