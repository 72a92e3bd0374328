package activity

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/edequartel/BrailleServer/component"
	"github.com/edequartel/BrailleServer/device"
	"github.com/edequartel/BrailleServer/errors"
	"github.com/edequartel/BrailleServer/metric"
)

// RunToken identifies one activity run. Tokens only increase; a continuation
// holding a token older than the live one is stale and must not act.
type RunToken int64

// ContextSource supplies the context for the next run. No current context
// means there is nothing to start.
type ContextSource interface {
	Current() (Context, bool)
}

// StateChange notifies observers of a run entering or leaving the Running
// state. Reason is set on the leaving notification: "completed", "error", or
// the stop reason.
type StateChange struct {
	Token       RunToken  `json:"token"`
	Activity    string    `json:"activity"`
	Session     uuid.UUID `json:"session"`
	Running     bool      `json:"running"`
	AutoStarted bool      `json:"autoStarted,omitempty"`
	Reason      string    `json:"reason,omitempty"`
	Err         error     `json:"-"`
}

// session is one activity run. At most one is alive at a time.
type session struct {
	token   RunToken
	key     string
	id      uuid.UUID
	handler Handler
	cancel  context.CancelFunc
}

// Runner owns run tokens and mediates between inbound events and the
// currently active handler.
type Runner struct {
	name     string
	registry *Registry
	source   ContextSource
	logger   *slog.Logger
	metrics  *metric.Metrics
	cells    int

	autoRun atomic.Bool
	advance func()

	mu      sync.Mutex
	token   RunToken
	current *session

	subsMu  sync.Mutex
	subs    map[int]func(StateChange)
	nextSub int

	runCtx      context.Context
	cancel      context.CancelFunc
	started     atomic.Bool
	lifecycleMu sync.Mutex
	wg          sync.WaitGroup
	startTime   time.Time
	errorCount  atomic.Int64
}

var _ component.Component = (*Runner)(nil)

// Option configures a Runner
type Option func(*Runner)

// WithCells sets the display width used to bounds-check forwarded cursor
// indices. Defaults to 40.
func WithCells(cells int) Option {
	return func(r *Runner) {
		if cells > 0 {
			r.cells = cells
		}
	}
}

// WithAdvance sets the auto-advance callback invoked when a run completes
// naturally while auto-run is enabled.
func WithAdvance(fn func()) Option {
	return func(r *Runner) { r.advance = fn }
}

// NewRunner creates an activity runner. The registry may be nil-tolerant at
// run time (a missing handler still occupies the Running state), but the
// registry itself is a required collaborator.
func NewRunner(
	registry *Registry,
	source ContextSource,
	metricsRegistry *metric.MetricsRegistry,
	logger *slog.Logger,
	opts ...Option,
) (*Runner, error) {
	if registry == nil {
		return nil, errors.WrapUsage(errors.ErrMissingRegistry, "Runner", "NewRunner", "activity registry required")
	}
	if source == nil {
		return nil, errors.WrapUsage(errors.ErrInvalidConfig, "Runner", "NewRunner", "context source required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	r := &Runner{
		name:     "runner",
		registry: registry,
		source:   source,
		logger:   logger.With("component", "runner"),
		cells:    40,
		subs:     make(map[int]func(StateChange)),
	}
	if metricsRegistry != nil {
		r.metrics = metricsRegistry.Metrics
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Meta returns component metadata
func (r *Runner) Meta() component.Metadata {
	return component.Metadata{
		Name:        r.name,
		Description: "Activity lifecycle runner",
		Version:     "1.0.0",
	}
}

// Health reports the runner healthy while started; an idle runner is healthy
func (r *Runner) Health() component.HealthStatus {
	started := r.started.Load()
	uptime := time.Duration(0)
	if started && !r.startTime.IsZero() {
		uptime = time.Since(r.startTime)
	}
	return component.HealthStatus{
		Healthy:    started,
		LastCheck:  time.Now(),
		ErrorCount: int(r.errorCount.Load()),
		Uptime:     uptime,
	}
}

// Initialize implements component.Component
func (r *Runner) Initialize() error {
	return nil
}

// Start implements component.Component
func (r *Runner) Start(ctx context.Context) error {
	r.lifecycleMu.Lock()
	defer r.lifecycleMu.Unlock()

	if r.started.Load() {
		return errors.WrapUsage(errors.ErrAlreadyConnected, "Runner", "Start", "already started")
	}

	r.runCtx, r.cancel = context.WithCancel(ctx)
	r.startTime = time.Now()
	r.started.Store(true)
	return nil
}

// Stop ends any active run and waits for continuations to settle
func (r *Runner) Stop(timeout time.Duration) error {
	r.lifecycleMu.Lock()
	defer r.lifecycleMu.Unlock()

	if !r.started.Load() {
		return nil
	}

	r.StopActivity("shutdown")
	r.cancel()

	doneCh := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(doneCh)
	}()

	select {
	case <-doneCh:
	case <-time.After(timeout):
		return errors.WrapActivity(
			fmt.Errorf("shutdown timeout after %v", timeout),
			"Runner", "Stop", "wait for run continuations")
	}

	r.started.Store(false)
	return nil
}

// SetAutoRun sets the auto-advance flag. The flag is read at the instant a
// run completes, so a mid-run toggle takes effect on the very next
// transition.
func (r *Runner) SetAutoRun(enabled bool) {
	r.autoRun.Store(enabled)
}

// AutoRun returns the auto-advance flag
func (r *Runner) AutoRun() bool {
	return r.autoRun.Load()
}

// Subscribe registers a state-change observer; the returned cancel removes it
func (r *Runner) Subscribe(fn func(StateChange)) (cancel func()) {
	r.subsMu.Lock()
	id := r.nextSub
	r.nextSub++
	r.subs[id] = fn
	r.subsMu.Unlock()

	return func() {
		r.subsMu.Lock()
		delete(r.subs, id)
		r.subsMu.Unlock()
	}
}

func (r *Runner) notify(change StateChange) {
	r.subsMu.Lock()
	fns := make([]func(StateChange), 0, len(r.subs))
	for _, fn := range r.subs {
		fns = append(fns, fn)
	}
	r.subsMu.Unlock()

	for _, fn := range fns {
		fn(change)
	}
}

// IsRunning reports whether a run is active
func (r *Runner) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current != nil
}

// Token returns the live run token
func (r *Runner) Token() RunToken {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.token
}

// Active returns the handler of the current run, or nil when idle or when
// the run has no registered module.
func (r *Runner) Active() Handler {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == nil {
		return nil
	}
	return r.current.handler
}

// StartActivity starts a run for the current activity context. A run already
// in progress is superseded: its resources are released, its in-flight
// completion becomes stale, and no stopped notification is emitted for it.
// Without a current context this is a no-op.
func (r *Runner) StartActivity(autoStarted bool) {
	if !r.started.Load() {
		return
	}

	actx, ok := r.source.Current()
	if !ok {
		return
	}
	actx.AutoStarted = autoStarted
	actx.Session = uuid.New()

	r.mu.Lock()
	old := r.current
	r.current = nil
	r.token++
	token := r.token

	handler, found := r.registry.New(actx.Activity)
	if !found {
		// no module for this activity: the run still occupies the Running
		// state so timing is visible, but nothing module-specific fires
		handler = nil
	}

	runCtx, cancel := context.WithCancel(r.runCtx)
	sess := &session{
		token:   token,
		key:     actx.Activity,
		id:      actx.Session,
		handler: handler,
		cancel:  cancel,
	}
	r.current = sess
	r.mu.Unlock()

	// internal restart: release the superseded run without a stopped
	// notification
	if old != nil {
		old.cancel()
		r.release(old, "superseded")
	}

	var done <-chan error
	if handler != nil {
		var err error
		done, err = r.safeStart(handler, runCtx, actx)
		if err != nil {
			// counted once, when the error completion lands
			r.logger.Error("activity start failed", "activity", actx.Activity, "error", err)
			errCh := make(chan error, 1)
			errCh <- err
			done = errCh
		}
	}

	r.logger.Info("activity running",
		"activity", actx.Activity, "session", actx.Session, "auto", autoStarted)
	r.notify(StateChange{
		Token:       token,
		Activity:    actx.Activity,
		Session:     actx.Session,
		Running:     true,
		AutoStarted: autoStarted,
	})

	r.wg.Add(1)
	go r.await(runCtx, sess, done)
}

// await settles the run on the first of: explicit stop or a superseding
// start (both cancel the run context), or the handler's completion signal.
func (r *Runner) await(ctx context.Context, sess *session, done <-chan error) {
	defer r.wg.Done()

	if done == nil {
		// no completion signal: the run lasts until stopped or superseded,
		// and the canceller does the cleanup
		<-ctx.Done()
		return
	}

	select {
	case <-ctx.Done():
		return
	case err := <-done:
		r.complete(sess, err)
	}
}

// complete handles a natural completion. A completion captured under a token
// older than the live one is a silent no-op; the newer run already handled
// cleanup.
func (r *Runner) complete(sess *session, err error) {
	r.mu.Lock()
	if r.current == nil || r.current.token != sess.token {
		r.mu.Unlock()
		return
	}
	r.current = nil
	r.mu.Unlock()

	sess.cancel()

	reason := "completed"
	if err != nil {
		reason = "error"
		r.trackError()
		r.logger.Error("activity completed with error",
			"activity", sess.key, "session", sess.id, "error", err)
	} else {
		r.logger.Info("activity completed", "activity", sess.key, "session", sess.id)
	}
	if r.metrics != nil {
		r.metrics.ActivityRuns.WithLabelValues(sess.key, reason).Inc()
	}

	r.notify(StateChange{
		Token:    sess.token,
		Activity: sess.key,
		Session:  sess.id,
		Running:  false,
		Reason:   reason,
		Err:      err,
	})

	// the flag is read here, at the transition instant, never cached earlier
	if r.autoRun.Load() && r.advance != nil {
		r.advance()
	}
}

// StopActivity ends the current run. A stop while idle is a no-op with no
// observer notification. An explicit stop never triggers auto-advance.
func (r *Runner) StopActivity(reason string) {
	r.mu.Lock()
	if r.current == nil {
		r.mu.Unlock()
		return
	}
	sess := r.current
	r.current = nil
	// advance the token so the stopped handler's in-flight completion is
	// recognized as stale
	r.token++
	r.mu.Unlock()

	sess.cancel()
	r.release(sess, reason)

	if r.metrics != nil {
		r.metrics.ActivityRuns.WithLabelValues(sess.key, "stopped").Inc()
	}
	r.logger.Info("activity stopped", "activity", sess.key, "session", sess.id, "reason", reason)
	r.notify(StateChange{
		Token:    sess.token,
		Activity: sess.key,
		Session:  sess.id,
		Running:  false,
		Reason:   reason,
	})
}

// ForwardCursor routes a cursor key to the active handler. Releases and
// out-of-range indices are dropped; forwarding only happens on key-down.
func (r *Runner) ForwardCursor(ev device.CursorEvent) {
	if !ev.Pressed {
		return
	}
	if ev.Index < 0 || ev.Index >= r.cells {
		return
	}

	r.mu.Lock()
	var handler Handler
	if r.current != nil {
		handler = r.current.handler
	}
	r.mu.Unlock()

	if receiver, ok := handler.(CursorReceiver); ok {
		receiver.OnCursor(ev)
	}
}

// release invokes the handler's stop at the boundary, recovering panics
func (r *Runner) release(sess *session, reason string) {
	if sess.handler == nil {
		return
	}
	defer func() {
		if rec := recover(); rec != nil {
			r.trackError()
			r.logger.Error("activity stop panicked",
				"activity", sess.key, "session", sess.id, "panic", rec)
		}
	}()
	sess.handler.Stop(reason)
}

// trackError counts a run failure on the shared error series
func (r *Runner) trackError() {
	r.errorCount.Add(1)
	if r.metrics != nil {
		r.metrics.ErrorsTotal.WithLabelValues("runner", "activity").Inc()
	}
}

// safeStart invokes the handler's start at the boundary, converting a panic
// into an error so token bookkeeping stays consistent.
func (r *Runner) safeStart(h Handler, ctx context.Context, actx Context) (done <-chan error, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			done = nil
			err = errors.WrapActivity(
				fmt.Errorf("%w: %v", errors.ErrHandlerPanicked, rec),
				"Runner", "StartActivity", "handler start")
		}
	}()
	return h.Start(ctx, actx)
}
