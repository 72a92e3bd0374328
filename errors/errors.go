// Package errors provides standardized error handling for BrailleServer
// components. It classifies failures into the four categories the system
// reacts to differently: transport (recovered by reconnecting), protocol
// (logged and dropped), activity (converted to an error completion), and
// usage (surfaced once at construction).
package errors

import (
	"errors"
	"fmt"
)

// Class represents the classification of errors for handling purposes
type Class int

const (
	// ClassTransport represents link failures recovered automatically via reconnect
	ClassTransport Class = iota
	// ClassProtocol represents malformed or semantically invalid peer messages
	ClassProtocol
	// ClassActivity represents failures raised by an activity handler
	ClassActivity
	// ClassUsage represents missing or misused collaborators and configuration
	ClassUsage
)

// String returns the string representation of Class
func (c Class) String() string {
	switch c {
	case ClassTransport:
		return "transport"
	case ClassProtocol:
		return "protocol"
	case ClassActivity:
		return "activity"
	case ClassUsage:
		return "usage"
	default:
		return "unknown"
	}
}

// Standard error variables for common conditions
var (
	// Connection lifecycle errors
	ErrAlreadyConnected = errors.New("already connected")
	ErrNotConnected     = errors.New("not connected")
	ErrConnectionLost   = errors.New("connection lost")
	ErrUserDisconnect   = errors.New("disconnected by user")

	// Inbound message errors
	ErrParsingFailed = errors.New("parsing failed")
	ErrMissingIndex  = errors.New("cursor message without numeric index")
	ErrUnknownEvent  = errors.New("unknown event shape")

	// Activity errors
	ErrNoActivity      = errors.New("no current activity")
	ErrHandlerPanicked = errors.New("activity handler panicked")
	ErrRunSuperseded   = errors.New("run superseded by newer start")

	// Configuration and usage errors
	ErrInvalidConfig   = errors.New("invalid configuration")
	ErrMissingRegistry = errors.New("activity registry required")
)

// ClassifiedError wraps an error with its classification
type ClassifiedError struct {
	Class     Class
	Err       error
	Message   string
	Component string
	Operation string
}

// Error implements the error interface
func (ce *ClassifiedError) Error() string {
	if ce.Message != "" {
		return ce.Message
	}
	return ce.Err.Error()
}

// Unwrap returns the underlying error
func (ce *ClassifiedError) Unwrap() error {
	return ce.Err
}

// IsTransport checks if an error is a link failure that reconnecting may cure
func IsTransport(err error) bool {
	return hasClass(err, ClassTransport) ||
		errors.Is(err, ErrConnectionLost) ||
		errors.Is(err, ErrNotConnected)
}

// IsProtocol checks if an error is a peer protocol violation
func IsProtocol(err error) bool {
	return hasClass(err, ClassProtocol) ||
		errors.Is(err, ErrParsingFailed) ||
		errors.Is(err, ErrMissingIndex)
}

// IsActivity checks if an error originated inside an activity handler
func IsActivity(err error) bool {
	return hasClass(err, ClassActivity) ||
		errors.Is(err, ErrHandlerPanicked)
}

// IsUsage checks if an error is a construction-time usage error
func IsUsage(err error) bool {
	return hasClass(err, ClassUsage) ||
		errors.Is(err, ErrInvalidConfig) ||
		errors.Is(err, ErrMissingRegistry)
}

func hasClass(err error, class Class) bool {
	if err == nil {
		return false
	}
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == class
	}
	return false
}

// Classify returns the error class for an error. Unclassified errors default
// to transport so the connection manager treats them as recoverable.
func Classify(err error) Class {
	switch {
	case IsProtocol(err):
		return ClassProtocol
	case IsActivity(err):
		return ClassActivity
	case IsUsage(err):
		return ClassUsage
	default:
		return ClassTransport
	}
}

// newClassified creates a new classified error.
// Use WrapTransport(), WrapProtocol(), WrapActivity() or WrapUsage() instead.
func newClassified(class Class, err error, component, operation, message string) *ClassifiedError {
	return &ClassifiedError{
		Class:     class,
		Err:       err,
		Message:   message,
		Component: component,
		Operation: operation,
	}
}

// Wrap creates a standardized error with context following the pattern:
// "component.method: action failed: %w"
func Wrap(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s.%s: %s failed: %w", component, method, action, err)
}

// WrapTransport wraps an error as a transport failure with context
func WrapTransport(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrappedErr := Wrap(err, component, method, action)
	return newClassified(ClassTransport, wrappedErr, component, method, wrappedErr.Error())
}

// WrapProtocol wraps an error as a protocol violation with context
func WrapProtocol(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrappedErr := Wrap(err, component, method, action)
	return newClassified(ClassProtocol, wrappedErr, component, method, wrappedErr.Error())
}

// WrapActivity wraps an error as an activity handler failure with context
func WrapActivity(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrappedErr := Wrap(err, component, method, action)
	return newClassified(ClassActivity, wrappedErr, component, method, wrappedErr.Error())
}

// WrapUsage wraps an error as a usage error with context
func WrapUsage(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrappedErr := Wrap(err, component, method, action)
	return newClassified(ClassUsage, wrappedErr, component, method, wrappedErr.Error())
}
