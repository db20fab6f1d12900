// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

// timeoutErr satisfies net.Error for testing Timeout classification.
type timeoutErr struct{ timeout bool }

func (e *timeoutErr) Error() string   { return "i/o timeout" }
func (e *timeoutErr) Timeout() bool   { return e.timeout }
func (e *timeoutErr) Temporary() bool { return e.timeout }

func TestTransportError(t *testing.T) {
	baseErr := fmt.Errorf("connection refused")
	err := NewTransportError("send", "192.168.1.10:9999", baseErr)

	// Test Error() method
	errMsg := err.Error()
	if !strings.Contains(errMsg, "transport") || !strings.Contains(errMsg, "send") || !strings.Contains(errMsg, "192.168.1.10:9999") {
		t.Errorf("Error() = %q, want message containing 'transport', 'send', and the address", errMsg)
	}

	// Test Unwrap()
	if !errors.Is(err, baseErr) {
		t.Error("errors.Is() should find wrapped error")
	}

	// Test IsTransportError()
	if !IsTransportError(err) {
		t.Error("IsTransportError() should return true for TransportError")
	}

	// Test errors.As()
	var te *TransportError
	if !errors.As(err, &te) {
		t.Error("errors.As() should extract TransportError")
	}
	if te.Op != "send" {
		t.Errorf("TransportError.Op = %q, want %q", te.Op, "send")
	}
	if te.Addr != "192.168.1.10:9999" {
		t.Errorf("TransportError.Addr = %q, want %q", te.Addr, "192.168.1.10:9999")
	}
}

func TestTransportErrorWithoutAddress(t *testing.T) {
	err := NewTransportError("bind", "", fmt.Errorf("address in use"))
	errMsg := err.Error()
	if !strings.Contains(errMsg, "bind") || !strings.Contains(errMsg, "address in use") {
		t.Errorf("Error() = %q, want message containing 'bind' and the cause", errMsg)
	}
}

func TestTransportErrorTimeout(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"network timeout", &timeoutErr{timeout: true}, true},
		{"network error without timeout", &timeoutErr{timeout: false}, false},
		{"plain error", fmt.Errorf("connection refused"), false},
		{"wrapped timeout", fmt.Errorf("read: %w", &timeoutErr{timeout: true}), true},
		{"nil underlying error", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			te := NewTransportError("receive", "192.168.1.10:9999", tt.err)
			if got := te.Timeout(); got != tt.want {
				t.Errorf("Timeout() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSerializationError(t *testing.T) {
	baseErr := fmt.Errorf("unexpected end of JSON input")
	err := NewSerializationError("parse reply", baseErr)

	// Test Error() method
	errMsg := err.Error()
	if !strings.Contains(errMsg, "serialization") || !strings.Contains(errMsg, "parse reply") {
		t.Errorf("Error() = %q, want message containing 'serialization' and 'parse reply'", errMsg)
	}

	// Test Unwrap()
	if !errors.Is(err, baseErr) {
		t.Error("errors.Is() should find wrapped error")
	}

	// Test IsSerializationError()
	if !IsSerializationError(err) {
		t.Error("IsSerializationError() should return true for SerializationError")
	}

	var se *SerializationError
	if !errors.As(err, &se) {
		t.Error("errors.As() should extract SerializationError")
	}
	if se.Op != "parse reply" {
		t.Errorf("SerializationError.Op = %q, want %q", se.Op, "parse reply")
	}
}

func TestUnsupportedOperationError(t *testing.T) {
	err := NewUnsupportedOperationError("set brightness")

	errMsg := err.Error()
	if !strings.Contains(errMsg, "unsupported") || !strings.Contains(errMsg, "set brightness") {
		t.Errorf("Error() = %q, want message containing 'unsupported' and 'set brightness'", errMsg)
	}

	if !IsUnsupportedOperationError(err) {
		t.Error("IsUnsupportedOperationError() should return true for UnsupportedOperationError")
	}

	var ue *UnsupportedOperationError
	if !errors.As(err, &ue) {
		t.Error("errors.As() should extract UnsupportedOperationError")
	}
	if ue.Op != "set brightness" {
		t.Errorf("UnsupportedOperationError.Op = %q, want %q", ue.Op, "set brightness")
	}
}

func TestInvalidParameterError(t *testing.T) {
	err := NewInvalidParameterError("brightness", 150, "must be between 0 and 100")

	errMsg := err.Error()
	if !strings.Contains(errMsg, "brightness") || !strings.Contains(errMsg, "150") || !strings.Contains(errMsg, "must be between 0 and 100") {
		t.Errorf("Error() = %q, want message with the parameter, value, and reason", errMsg)
	}

	if !IsInvalidParameterError(err) {
		t.Error("IsInvalidParameterError() should return true for InvalidParameterError")
	}

	var ie *InvalidParameterError
	if !errors.As(err, &ie) {
		t.Error("errors.As() should extract InvalidParameterError")
	}
	if ie.Param != "brightness" {
		t.Errorf("InvalidParameterError.Param = %q, want %q", ie.Param, "brightness")
	}
	if ie.Value != 150 {
		t.Errorf("InvalidParameterError.Value = %v, want 150", ie.Value)
	}
}

func TestDeviceError(t *testing.T) {
	err := NewDeviceError(-3, "invalid argument")

	errMsg := err.Error()
	if !strings.Contains(errMsg, "device error") || !strings.Contains(errMsg, "-3") || !strings.Contains(errMsg, "invalid argument") {
		t.Errorf("Error() = %q, want message with the code and device message", errMsg)
	}

	if !IsDeviceError(err) {
		t.Error("IsDeviceError() should return true for DeviceError")
	}

	var de *DeviceError
	if !errors.As(err, &de) {
		t.Error("errors.As() should extract DeviceError")
	}
	if de.Code != -3 {
		t.Errorf("DeviceError.Code = %d, want -3", de.Code)
	}
}

func TestDeviceErrorWithoutMessage(t *testing.T) {
	err := NewDeviceError(-1, "")
	errMsg := err.Error()
	if !strings.Contains(errMsg, "device error -1") {
		t.Errorf("Error() = %q, want message containing 'device error -1'", errMsg)
	}
}

func TestDiscoveryError(t *testing.T) {
	baseErr := fmt.Errorf("network unreachable")
	err := NewDiscoveryError("send probe", baseErr)

	errMsg := err.Error()
	if !strings.Contains(errMsg, "discovery") || !strings.Contains(errMsg, "send probe") {
		t.Errorf("Error() = %q, want message containing 'discovery' and 'send probe'", errMsg)
	}

	if !errors.Is(err, baseErr) {
		t.Error("errors.Is() should find wrapped error")
	}

	if !IsDiscoveryError(err) {
		t.Error("IsDiscoveryError() should return true for DiscoveryError")
	}

	var de *DiscoveryError
	if !errors.As(err, &de) {
		t.Error("errors.As() should extract DiscoveryError")
	}
	if de.Op != "send probe" {
		t.Errorf("DiscoveryError.Op = %q, want %q", de.Op, "send probe")
	}
}

func TestConfigError(t *testing.T) {
	baseErr := fmt.Errorf("invalid format")
	err := NewConfigError("influxdb.url", "invalid://url", baseErr)

	errMsg := err.Error()
	if !strings.Contains(errMsg, "config") || !strings.Contains(errMsg, "influxdb.url") {
		t.Errorf("Error() = %q, want message containing 'config' and 'influxdb.url'", errMsg)
	}

	if !IsConfigError(err) {
		t.Error("IsConfigError() should return true for ConfigError")
	}

	var ce *ConfigError
	if !errors.As(err, &ce) {
		t.Error("errors.As() should extract ConfigError")
	}
	if ce.Field != "influxdb.url" {
		t.Errorf("ConfigError.Field = %q, want %q", ce.Field, "influxdb.url")
	}
}

func TestStorageError(t *testing.T) {
	baseErr := fmt.Errorf("connection timeout")
	err := NewStorageError("write", "device-123", baseErr)

	errMsg := err.Error()
	if !strings.Contains(errMsg, "storage") || !strings.Contains(errMsg, "write") || !strings.Contains(errMsg, "device-123") {
		t.Errorf("Error() = %q, want message containing 'storage', 'write', and 'device-123'", errMsg)
	}

	if !errors.Is(err, baseErr) {
		t.Error("errors.Is() should find wrapped error")
	}

	if !IsStorageError(err) {
		t.Error("IsStorageError() should return true for StorageError")
	}

	var se *StorageError
	if !errors.As(err, &se) {
		t.Error("errors.As() should extract StorageError")
	}
	if se.Op != "write" {
		t.Errorf("StorageError.Op = %q, want %q", se.Op, "write")
	}
	if se.DeviceID != "device-123" {
		t.Errorf("StorageError.DeviceID = %q, want %q", se.DeviceID, "device-123")
	}
}

func TestErrorTypeCheckers_WrongType(t *testing.T) {
	plain := fmt.Errorf("some error")

	checkers := []struct {
		name string
		fn   func(error) bool
	}{
		{"IsTransportError", IsTransportError},
		{"IsSerializationError", IsSerializationError},
		{"IsUnsupportedOperationError", IsUnsupportedOperationError},
		{"IsInvalidParameterError", IsInvalidParameterError},
		{"IsDeviceError", IsDeviceError},
		{"IsDiscoveryError", IsDiscoveryError},
		{"IsConfigError", IsConfigError},
		{"IsStorageError", IsStorageError},
	}

	for _, c := range checkers {
		if c.fn(plain) {
			t.Errorf("%s() should return false for a plain error", c.name)
		}
		if c.fn(nil) {
			t.Errorf("%s() should return false for nil", c.name)
		}
	}
}

func TestErrorTypeCheckers_WrappedDeep(t *testing.T) {
	inner := NewDeviceError(-2001, "bad request")
	wrapped := fmt.Errorf("poll device: %w", fmt.Errorf("exchange: %w", inner))

	if !IsDeviceError(wrapped) {
		t.Error("IsDeviceError() should see through wrapping layers")
	}
	if IsTransportError(wrapped) {
		t.Error("IsTransportError() should not match a wrapped DeviceError")
	}
}

func TestSentinelErrors(t *testing.T) {
	wrapped := fmt.Errorf("decode frame: %w", ErrFrameLengthMismatch)
	if !errors.Is(wrapped, ErrFrameLengthMismatch) {
		t.Error("errors.Is() should find ErrFrameLengthMismatch through wrapping")
	}

	unreachable := NewTransportError("receive", "192.168.1.10:9999", ErrDeviceUnreachable)
	if !errors.Is(unreachable, ErrDeviceUnreachable) {
		t.Error("errors.Is() should find ErrDeviceUnreachable inside a TransportError")
	}

	if errors.Is(ErrShortFrame, ErrMalformedReply) {
		t.Error("distinct sentinels should not match each other")
	}
}
