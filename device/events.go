package device

import "encoding/json"

// EventKind discriminates normalized device events
type EventKind string

// Recognized event kinds
const (
	KindConnected    EventKind = "connected"
	KindDisconnected EventKind = "disconnected"
	KindCursor       EventKind = "cursor"
	KindThumbKey     EventKind = "thumbkey"
	KindBrailleEcho  EventKind = "brailleline"
	KindHTTP         EventKind = "http"
	KindError        EventKind = "error"
	KindUnknown      EventKind = "unknown"
)

// Event is a normalized device event. Events are immutable once constructed
// and live only for the duration of one dispatch.
type Event interface {
	Kind() EventKind
}

// ConnectedEvent signals the bridge socket is up
type ConnectedEvent struct{}

// Kind implements Event
func (ConnectedEvent) Kind() EventKind { return KindConnected }

// DisconnectedEvent signals the bridge socket dropped
type DisconnectedEvent struct {
	Code   int    `json:"code"`
	Reason string `json:"reason"`
}

// Kind implements Event
func (DisconnectedEvent) Kind() EventKind { return KindDisconnected }

// CursorEvent is a cursor-routing key at a cell index. Pressed false is a key
// release; releases are observable but trigger no actions.
type CursorEvent struct {
	Index   int  `json:"index"`
	Pressed bool `json:"pressed"`
}

// Kind implements Event
func (CursorEvent) Kind() EventKind { return KindCursor }

// ThumbKeyEvent is a navigation thumb key, name lower-cased for matching
type ThumbKeyEvent struct {
	Name    string `json:"name"`
	Pressed bool   `json:"pressed"`
}

// Kind implements Event
func (ThumbKeyEvent) Kind() EventKind { return KindThumbKey }

// BrailleEchoEvent carries the bridge's own rendering of a line, passed
// through verbatim.
type BrailleEchoEvent struct {
	SourceText  string `json:"sourceText"`
	BrailleText string `json:"brailleText"`
}

// Kind implements Event
func (BrailleEchoEvent) Kind() EventKind { return KindBrailleEcho }

// HTTPEvent reports the outcome of an outbound display request
type HTTPEvent struct {
	Op     string `json:"op"` // "sendline" or "clear"
	Status int    `json:"status,omitempty"`
	Err    error  `json:"-"`
}

// Kind implements Event
func (HTTPEvent) Kind() EventKind { return KindHTTP }

// ErrorEvent reports a protocol violation on the inbound channel
type ErrorEvent struct {
	Type string `json:"type"` // "parse" or "cursor"
	Err  error  `json:"-"`
}

// Kind implements Event
func (ErrorEvent) Kind() EventKind { return KindError }

// UnknownEvent carries an unrecognized but well-formed message for observability
type UnknownEvent struct {
	Raw json.RawMessage `json:"raw"`
}

// Kind implements Event
func (UnknownEvent) Kind() EventKind { return KindUnknown }
