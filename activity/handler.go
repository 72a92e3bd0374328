// Package activity sequences the running of exactly one activity at a time.
// Starts, stops, natural completions and restarts race each other; a
// monotonically increasing run token is the single source of truth for which
// run is current, and every asynchronous continuation checks its captured
// token before taking effect.
package activity

import (
	"context"

	"github.com/google/uuid"

	"github.com/edequartel/BrailleServer/content"
	"github.com/edequartel/BrailleServer/device"
)

// Context carries everything a handler needs for one run
type Context struct {
	// Activity is the canonical activity identifier
	Activity string

	// Caption is the human-readable activity caption
	Caption string

	// Record is the content record the run operates on, with its index in
	// the lesson
	Record      content.Record
	RecordIndex int

	// AutoStarted is true when the run was chained by auto-advance rather
	// than started by the user
	AutoStarted bool

	// Session identifies this run for logging and the browser feed
	Session uuid.UUID
}

// Handler is the contract an activity module satisfies. Start may return a
// completion channel; the runner settles the run when it yields. A nil
// channel means the activity never completes on its own and runs until
// explicitly stopped.
type Handler interface {
	Start(ctx context.Context, actx Context) (<-chan error, error)
	Stop(reason string)
}

// CursorReceiver is optionally implemented by handlers that react to cursor
// routing keys. Forwarding is a direct call, never queued.
type CursorReceiver interface {
	OnCursor(ev device.CursorEvent)
}

// Factory builds a fresh handler for one run
type Factory func() Handler
