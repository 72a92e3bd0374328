// Package brailleserver is a server for browser-driven refreshable braille
// displays. It keeps the connection to a hardware bridge alive, models the
// display as a fixed-width line buffer, transliterates print text to braille
// glyphs, and runs reading activities over lesson content.
//
// # Architecture
//
// Three cooperating parts, assembled by cmd/brailleserver:
//
//	┌─────────────────────────────────────┐
//	│           Gateway                   │  Browser pages: websocket
//	│   (/ws feed, JSON API, /healthz)    │  event feed + JSON API
//	└──────────────┬──────────────────────┘
//	               │ drives
//	┌──────────────┴──────────────────────┐
//	│       Activity Runner               │  One run at a time,
//	│  (run tokens, supersede, auto-run)  │  token-based staleness
//	└──────────────┬──────────────────────┘
//	               │ sends lines / receives keys
//	┌──────────────┴──────────────────────┐
//	│        Device Client                │  Bridge websocket + HTTP,
//	│  (reconnect, normalize, rate limit) │  exponential backoff
//	└─────────────────────────────────────┘
//
// The device client maintains a persistent websocket to the display bridge
// and normalizes its heterogeneous wire messages (two field casings, implicit
// press flags) into typed events. Line updates go out over HTTP with retry
// and rate limiting. A dropped link reconnects with exponential backoff,
// 2s doubling to a 10s cap, unless the user asked for the disconnect.
//
// The activity runner owns a monotonically increasing run token. Every
// asynchronous continuation captures the token valid at its start; a stale
// comparison is a silent no-op. Starting a run supersedes the previous one
// without a stopped notification, and with auto-run enabled a natural
// completion advances to the next record.
//
// The braille line model holds exactly one display line (40 cells by
// default), resolves cursor presses to word spans, and transliterates print
// text to braille glyphs with stateful number and capital signs.
//
// # Packages
//
// Core:
//   - device: bridge connection, event normalization, line sending
//   - activity: run lifecycle, tokens, module registry
//   - activity/activities: built-in wordline and flash modules
//   - braille: line buffer, word spans, transliteration
//   - content: lesson loading, schema validation, position tracking
//   - gateway: browser-facing websocket feed and JSON API
//
// Infrastructure:
//   - component: lifecycle contract and ordered start/stop manager
//   - config: file loading, environment expansion, validation
//   - errors: classified errors with component/method/action context
//   - health: per-component health aggregation
//   - metric: Prometheus registry and core server metrics
//   - pkg/retry: bounded retry with exponential backoff
//
// # Binary
//
// Build and run the server:
//
//	go build -o bin/brailleserver ./cmd/brailleserver
//	./bin/brailleserver --config configs/server.json
//
// The browser page connects to ws://localhost:8090/ws for events and uses
// the /api endpoints to drive the display and activities.
package brailleserver
