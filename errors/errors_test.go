package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestClass_String(t *testing.T) {
	tests := []struct {
		class    Class
		expected string
	}{
		{ClassTransport, "transport"},
		{ClassProtocol, "protocol"},
		{ClassActivity, "activity"},
		{ClassUsage, "usage"},
		{Class(999), "unknown"},
	}

	for _, test := range tests {
		t.Run(test.expected, func(t *testing.T) {
			result := test.class.String()
			if result != test.expected {
				t.Errorf("expected %s, got %s", test.expected, result)
			}
		})
	}
}

func TestIsTransport(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"connection lost", ErrConnectionLost, true},
		{"not connected", ErrNotConnected, true},
		{"parsing failed", ErrParsingFailed, false},
		{"missing registry", ErrMissingRegistry, false},
		{"classified transport", &ClassifiedError{Class: ClassTransport, Err: fmt.Errorf("test")}, true},
		{"classified protocol", &ClassifiedError{Class: ClassProtocol, Err: fmt.Errorf("test")}, false},
		{"wrapped connection lost", fmt.Errorf("read loop: %w", ErrConnectionLost), true},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			result := IsTransport(test.err)
			if result != test.expected {
				t.Errorf("expected %v, got %v for error: %v", test.expected, result, test.err)
			}
		})
	}
}

func TestIsProtocol(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"parsing failed", ErrParsingFailed, true},
		{"missing index", ErrMissingIndex, true},
		{"connection lost", ErrConnectionLost, false},
		{"classified protocol", &ClassifiedError{Class: ClassProtocol, Err: fmt.Errorf("test")}, true},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			result := IsProtocol(test.err)
			if result != test.expected {
				t.Errorf("expected %v, got %v for error: %v", test.expected, result, test.err)
			}
		})
	}
}

func TestIsActivity(t *testing.T) {
	if !IsActivity(ErrHandlerPanicked) {
		t.Error("expected handler panic to classify as activity")
	}
	if IsActivity(ErrParsingFailed) {
		t.Error("expected parse failure not to classify as activity")
	}
	if !IsActivity(WrapActivity(fmt.Errorf("boom"), "runner", "Start", "invoke handler")) {
		t.Error("expected wrapped activity error to classify as activity")
	}
}

func TestIsUsage(t *testing.T) {
	if !IsUsage(ErrInvalidConfig) {
		t.Error("expected invalid config to classify as usage")
	}
	if !IsUsage(ErrMissingRegistry) {
		t.Error("expected missing registry to classify as usage")
	}
	if IsUsage(ErrConnectionLost) {
		t.Error("expected connection lost not to classify as usage")
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected Class
	}{
		{"parse error", ErrParsingFailed, ClassProtocol},
		{"handler panic", ErrHandlerPanicked, ClassActivity},
		{"invalid config", ErrInvalidConfig, ClassUsage},
		{"connection lost", ErrConnectionLost, ClassTransport},
		{"unknown error defaults to transport", fmt.Errorf("something odd"), ClassTransport},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := Classify(test.err); got != test.expected {
				t.Errorf("expected %v, got %v", test.expected, got)
			}
		})
	}
}

func TestWrap(t *testing.T) {
	base := fmt.Errorf("dial tcp: refused")
	err := Wrap(base, "device", "connect", "open socket")
	if err == nil {
		t.Fatal("expected non-nil error")
	}
	if !strings.Contains(err.Error(), "device.connect: open socket failed") {
		t.Errorf("unexpected message: %s", err.Error())
	}
	if !errors.Is(err, base) {
		t.Error("expected wrapped error to unwrap to base")
	}
	if Wrap(nil, "device", "connect", "open socket") != nil {
		t.Error("expected nil for nil input")
	}
}

func TestWrapClassified(t *testing.T) {
	base := fmt.Errorf("boom")

	transport := WrapTransport(base, "device", "SendLine", "post")
	var ce *ClassifiedError
	if !errors.As(transport, &ce) {
		t.Fatal("expected ClassifiedError")
	}
	if ce.Class != ClassTransport {
		t.Errorf("expected transport class, got %v", ce.Class)
	}
	if ce.Component != "device" || ce.Operation != "SendLine" {
		t.Errorf("unexpected context: %+v", ce)
	}
	if !errors.Is(transport, base) {
		t.Error("expected unwrap chain to reach base error")
	}

	if WrapProtocol(nil, "a", "b", "c") != nil {
		t.Error("expected nil for nil input")
	}
}
