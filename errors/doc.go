// Package errors provides standardized error handling patterns for BrailleServer components.
//
// # Overview
//
// The errors package implements a four-class error classification system matching
// how the braille server reacts to failures: Transport (link failures, recovered
// by the connection manager's reconnect loop), Protocol (malformed peer messages,
// logged and dropped), Activity (handler failures, converted to error completions
// by the lifecycle runner), and Usage (missing collaborators or bad configuration,
// surfaced once at construction and never retried).
//
// Nothing in the system throws across an asynchronous boundary uncaught; all
// failures are converted to observable events or resolved completions, and this
// package supplies the vocabulary for that conversion.
//
// # Error Classification
//
//   - Transport: dial failures, dropped sockets, send failures (reconnect recovers)
//   - Protocol: unparseable payloads, cursor messages without an index (drop, report)
//   - Activity: panics or errors from a handler's start/stop (error completion)
//   - Usage: absent activity registry, invalid configuration (fail construction)
//
// The classification integrates with Go's standard error handling, supporting
// errors.Is(), errors.As(), and wrapping chains.
//
// # Quick Start
//
// Use standard error variables for known conditions:
//
//	if client.State() != device.StateConnected {
//	    return errors.ErrNotConnected
//	}
//
// Wrap errors with component context:
//
//	if err := conn.WriteMessage(t, data); err != nil {
//	    return errors.WrapTransport(err, "device", "SendLine", "write frame")
//	}
//
// Classify at a handling boundary:
//
//	switch errors.Classify(err) {
//	case errors.ClassTransport:
//	    c.scheduleReconnect()
//	case errors.ClassProtocol:
//	    c.logger.Warn("dropping message", "error", err)
//	}
package errors
