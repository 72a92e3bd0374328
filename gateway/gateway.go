// Package gateway is the browser-facing surface of the server: a websocket
// event feed plus a small JSON API, one instance per page session.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/edequartel/BrailleServer/activity"
	"github.com/edequartel/BrailleServer/braille"
	"github.com/edequartel/BrailleServer/component"
	"github.com/edequartel/BrailleServer/device"
	"github.com/edequartel/BrailleServer/errors"
	"github.com/edequartel/BrailleServer/health"
)

// DeviceClient is the slice of the device client the gateway drives
type DeviceClient interface {
	State() device.State
	Connect() error
	Disconnect()
	Subscribe(fn func(device.Event)) (cancel func())
	SendLine(ctx context.Context, text string, opts device.SendOptions) error
	ClearDisplay(ctx context.Context) error
}

// Runner is the slice of the activity runner the gateway drives
type Runner interface {
	StartActivity(autoStarted bool)
	StopActivity(reason string)
	IsRunning() bool
	AutoRun() bool
	SetAutoRun(enabled bool)
	Subscribe(fn func(activity.StateChange)) (cancel func())
}

// HealthSource reports per-component health for /healthz
type HealthSource interface {
	Health() map[string]component.HealthStatus
}

// Server serves the browser page's event feed and API
type Server struct {
	name     string
	addr     string
	logger   *slog.Logger
	device   DeviceClient
	runner   Runner
	healths  HealthSource
	metrics  http.Handler
	language braille.Lang

	lineMu sync.Mutex
	line   *braille.Line

	feed *feed

	httpServer  *http.Server
	group       *errgroup.Group
	cancel      context.CancelFunc
	started     atomic.Bool
	lifecycleMu sync.Mutex
	startTime   time.Time
	errorCount  atomic.Int64
	unsubscribe []func()
}

var _ component.Component = (*Server)(nil)

// New creates a gateway server
func New(
	addr string,
	dev DeviceClient,
	runner Runner,
	healths HealthSource,
	metrics http.Handler,
	line *braille.Line,
	language braille.Lang,
	logger *slog.Logger,
) (*Server, error) {
	if addr == "" {
		return nil, errors.WrapUsage(errors.ErrInvalidConfig, "Server", "New", "listen address required")
	}
	if dev == nil || runner == nil {
		return nil, errors.WrapUsage(errors.ErrInvalidConfig, "Server", "New", "device client and runner required")
	}
	if line == nil {
		line = braille.NewLine()
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		name:     "gateway",
		addr:     addr,
		logger:   logger.With("component", "gateway"),
		device:   dev,
		runner:   runner,
		healths:  healths,
		metrics:  metrics,
		language: language,
		line:     line,
	}
	s.feed = newFeed(s.logger)
	return s, nil
}

// Meta returns component metadata
func (s *Server) Meta() component.Metadata {
	return component.Metadata{
		Name:        s.name,
		Description: "Browser-facing event feed and JSON API",
		Version:     "1.0.0",
	}
}

// Health reports the gateway healthy while serving
func (s *Server) Health() component.HealthStatus {
	started := s.started.Load()
	uptime := time.Duration(0)
	if started && !s.startTime.IsZero() {
		uptime = time.Since(s.startTime)
	}
	return component.HealthStatus{
		Healthy:    started,
		LastCheck:  time.Now(),
		ErrorCount: int(s.errorCount.Load()),
		Uptime:     uptime,
	}
}

// Initialize implements component.Component
func (s *Server) Initialize() error {
	return nil
}

// Start begins serving and relaying events to connected pages
func (s *Server) Start(ctx context.Context) error {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	if s.started.Load() {
		return errors.WrapUsage(errors.ErrAlreadyConnected, "Server", "Start", "already started")
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.unsubscribe = append(s.unsubscribe,
		s.device.Subscribe(func(ev device.Event) {
			s.feed.broadcastDevice(ev)
		}),
		s.runner.Subscribe(func(change activity.StateChange) {
			s.feed.broadcastActivity(change)
		}),
	)

	s.httpServer = &http.Server{
		Addr:              s.addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	group, groupCtx := errgroup.WithContext(runCtx)
	s.group = group

	group.Go(func() error {
		err := s.httpServer.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			return errors.WrapTransport(err, "Server", "Start", "serve http")
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = s.httpServer.Shutdown(shutdownCtx)
		s.feed.closeAll()
		return nil
	})

	s.startTime = time.Now()
	s.started.Store(true)
	s.logger.Info("gateway listening", "addr", s.addr)
	return nil
}

// Stop shuts the server down and disconnects all pages
func (s *Server) Stop(timeout time.Duration) error {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	if !s.started.Load() {
		return nil
	}

	for _, cancel := range s.unsubscribe {
		cancel()
	}
	s.unsubscribe = nil
	s.cancel()

	doneCh := make(chan struct{})
	go func() {
		_ = s.group.Wait()
		close(doneCh)
	}()

	select {
	case <-doneCh:
	case <-time.After(timeout):
		return errors.WrapTransport(
			fmt.Errorf("shutdown timeout after %v", timeout),
			"Server", "Stop", "wait for http server")
	}

	s.started.Store(false)
	return nil
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/ws", s.handleFeed)
	r.Get("/healthz", s.handleHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/state", s.handleState)
		r.Get("/word", s.handleWord)
		r.Post("/line", s.handleLine)
		r.Post("/clear", s.handleClear)
		r.Post("/connect", s.handleConnect)
		r.Post("/disconnect", s.handleDisconnect)
		r.Post("/autorun", s.handleAutoRun)
		r.Post("/activity/start", s.handleActivityStart)
		r.Post("/activity/stop", s.handleActivityStop)
	})

	return r
}

func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	if err := s.feed.serve(w, r); err != nil {
		s.errorCount.Add(1)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	var status health.Status
	if s.healths != nil {
		status = health.FromComponents(s.healths.Health())
	}

	code := http.StatusOK
	if !status.Healthy() {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, status)
}

type stateResponse struct {
	Connection string `json:"connection"`
	Running    bool   `json:"running"`
	AutoRun    bool   `json:"autoRun"`
	Line       string `json:"line"`
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	s.lineMu.Lock()
	lineText := s.line.Text()
	s.lineMu.Unlock()

	writeJSON(w, http.StatusOK, stateResponse{
		Connection: s.device.State().String(),
		Running:    s.runner.IsRunning(),
		AutoRun:    s.runner.AutoRun(),
		Line:       lineText,
	})
}

func (s *Server) handleWord(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(r.URL.Query().Get("index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "index must be an integer")
		return
	}

	s.lineMu.Lock()
	span, ok := s.line.WordSpanAt(index)
	s.lineMu.Unlock()

	if !ok {
		writeError(w, http.StatusNotFound, "no word at index")
		return
	}
	writeJSON(w, http.StatusOK, span)
}

type lineRequest struct {
	Text   string   `json:"text"`
	Tokens []string `json:"tokens,omitempty"`
}

type lineResponse struct {
	Changed bool     `json:"changed"`
	Text    string   `json:"text"`
	Glyphs  []string `json:"glyphs"`
}

// handleLine replaces the line buffer and pushes it to the display. An
// unchanged buffer skips the device write.
func (s *Server) handleLine(w http.ResponseWriter, r *http.Request) {
	var req lineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s.lineMu.Lock()
	var changed bool
	if len(req.Tokens) > 0 {
		changed = s.line.SetTokens(req.Tokens)
	} else {
		changed = s.line.SetText(req.Text)
	}
	text := s.line.Text()
	s.lineMu.Unlock()

	if changed {
		if err := s.device.SendLine(r.Context(), text, device.SendOptions{Pad: true}); err != nil {
			s.errorCount.Add(1)
			s.logger.Warn("line write failed", "error", err)
		}
	}

	writeJSON(w, http.StatusOK, lineResponse{
		Changed: changed,
		Text:    text,
		Glyphs:  braille.ToGlyphs(text, s.language),
	})
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	s.lineMu.Lock()
	s.line.SetText("")
	s.lineMu.Unlock()

	if err := s.device.ClearDisplay(r.Context()); err != nil {
		s.errorCount.Add(1)
		s.logger.Warn("clear failed", "error", err)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleConnect(w http.ResponseWriter, _ *http.Request) {
	if err := s.device.Connect(); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleDisconnect(w http.ResponseWriter, _ *http.Request) {
	s.device.Disconnect()
	w.WriteHeader(http.StatusAccepted)
}

type autoRunRequest struct {
	Enabled bool `json:"enabled"`
}

func (s *Server) handleAutoRun(w http.ResponseWriter, r *http.Request) {
	var req autoRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.runner.SetAutoRun(req.Enabled)
	w.WriteHeader(http.StatusNoContent)
}

type activityStartRequest struct {
	Auto bool `json:"auto"`
}

func (s *Server) handleActivityStart(w http.ResponseWriter, r *http.Request) {
	var req activityStartRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	s.runner.StartActivity(req.Auto)
	w.WriteHeader(http.StatusAccepted)
}

type activityStopRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) handleActivityStop(w http.ResponseWriter, r *http.Request) {
	req := activityStopRequest{Reason: "user"}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	s.runner.StopActivity(req.Reason)
	w.WriteHeader(http.StatusAccepted)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
