// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

// Package errors provides structured error types for the Kasa Power Data Logger.
//
// This package defines custom error types that provide better error handling,
// inspection, and debugging capabilities compared to plain string errors.
//
// The two error classes callers most often need to tell apart are
// TransportError ("could not reach the device": bind, send, receive, or
// timeout failures) and SerializationError ("the device replied but the
// response was not understood": malformed JSON or an unexpected reply shape).
//
// # Example Usage
//
//	err := errors.NewTransportError("receive", "192.168.1.10:9999", io.EOF)
//	if errors.IsTransportError(err) {
//	    log.Printf("Device unreachable: %v", err)
//	}
//
//	var te *errors.TransportError
//	if errors.As(err, &te) {
//	    log.Printf("Failed operation: %s", te.Op)
//	}
package errors

import (
	"errors"
	"fmt"
	"net"
)

// TransportError represents a UDP exchange failure: socket bind, send, or
// receive errors, including read-timeout expiry.
type TransportError struct {
	Op   string // Operation being performed (e.g., "bind", "send", "receive")
	Addr string // Remote address involved (if applicable)
	Err  error  // Underlying error
}

func (e *TransportError) Error() string {
	if e.Addr != "" {
		return fmt.Sprintf("transport %s (%s): %v", e.Op, e.Addr, e.Err)
	}
	if e.Err != nil {
		return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("transport %s failed", e.Op)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the underlying error was a network timeout.
func (e *TransportError) Timeout() bool {
	var ne net.Error
	return errors.As(e.Err, &ne) && ne.Timeout()
}

// NewTransportError creates a new transport error.
func NewTransportError(op string, addr string, err error) *TransportError {
	return &TransportError{Op: op, Addr: addr, Err: err}
}

// IsTransportError checks if an error is a TransportError.
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// SerializationError represents malformed or unexpectedly shaped data in a
// device reply, or an outgoing request that could not be encoded.
type SerializationError struct {
	Op  string // Operation being performed (e.g., "encode request", "parse reply")
	Err error  // Underlying error
}

func (e *SerializationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("serialization %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("serialization %s failed", e.Op)
}

func (e *SerializationError) Unwrap() error {
	return e.Err
}

// NewSerializationError creates a new serialization error.
func NewSerializationError(op string, err error) *SerializationError {
	return &SerializationError{Op: op, Err: err}
}

// IsSerializationError checks if an error is a SerializationError.
func IsSerializationError(err error) bool {
	var se *SerializationError
	return errors.As(err, &se)
}

// UnsupportedOperationError indicates a capability the target device lacks,
// such as setting brightness on a non-dimmable bulb.
type UnsupportedOperationError struct {
	Op string // Operation that is not supported
}

func (e *UnsupportedOperationError) Error() string {
	return fmt.Sprintf("unsupported operation: %s", e.Op)
}

// NewUnsupportedOperationError creates a new unsupported-operation error.
func NewUnsupportedOperationError(op string) *UnsupportedOperationError {
	return &UnsupportedOperationError{Op: op}
}

// IsUnsupportedOperationError checks if an error is an UnsupportedOperationError.
func IsUnsupportedOperationError(err error) bool {
	var ue *UnsupportedOperationError
	return errors.As(err, &ue)
}

// InvalidParameterError indicates a valid operation requested with an
// out-of-range or otherwise invalid parameter.
type InvalidParameterError struct {
	Param  string // Parameter that failed validation
	Value  any    // Invalid value
	Reason string // Why validation failed
}

func (e *InvalidParameterError) Error() string {
	return fmt.Sprintf("invalid parameter %q with value %v: %s", e.Param, e.Value, e.Reason)
}

// NewInvalidParameterError creates a new invalid-parameter error.
func NewInvalidParameterError(param string, value any, reason string) *InvalidParameterError {
	return &InvalidParameterError{Param: param, Value: value, Reason: reason}
}

// IsInvalidParameterError checks if an error is an InvalidParameterError.
func IsInvalidParameterError(err error) bool {
	var ie *InvalidParameterError
	return errors.As(err, &ie)
}

// DeviceError represents a command the device received and rejected,
// reported through the err_code field of its reply.
type DeviceError struct {
	Code int    // Device-reported error code
	Msg  string // Device-reported message (may be empty)
}

func (e *DeviceError) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("device error %d: %s", e.Code, e.Msg)
	}
	return fmt.Sprintf("device error %d", e.Code)
}

// NewDeviceError creates a new device error.
func NewDeviceError(code int, msg string) *DeviceError {
	return &DeviceError{Code: code, Msg: msg}
}

// IsDeviceError checks if an error is a DeviceError.
func IsDeviceError(err error) bool {
	var de *DeviceError
	return errors.As(err, &de)
}

// DiscoveryError represents an error during the broadcast discovery sweep.
type DiscoveryError struct {
	Op  string // Operation being performed (e.g., "bind", "send probe")
	Err error  // Underlying error
}

func (e *DiscoveryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("discovery %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("discovery %s failed", e.Op)
}

func (e *DiscoveryError) Unwrap() error {
	return e.Err
}

// NewDiscoveryError creates a new discovery error.
func NewDiscoveryError(op string, err error) *DiscoveryError {
	return &DiscoveryError{Op: op, Err: err}
}

// IsDiscoveryError checks if an error is a DiscoveryError.
func IsDiscoveryError(err error) bool {
	var de *DiscoveryError
	return errors.As(err, &de)
}

// ConfigError represents a configuration error.
type ConfigError struct {
	Field string // Configuration field that caused the error
	Value string // Invalid value (optional, may be redacted for sensitive fields)
	Err   error  // Underlying error or description
}

func (e *ConfigError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("config error in field %q (value=%q): %v", e.Field, e.Value, e.Err)
	}
	if e.Err != nil {
		return fmt.Sprintf("config error in field %q: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("config error in field %q", e.Field)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// NewConfigError creates a new configuration error.
func NewConfigError(field string, value string, err error) *ConfigError {
	return &ConfigError{Field: field, Value: value, Err: err}
}

// IsConfigError checks if an error is a ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// StorageError represents an error during storage operations.
type StorageError struct {
	Op       string // Operation being performed (e.g., "write", "query")
	DeviceID string // Device ID involved in the operation (if applicable)
	Err      error  // Underlying error
}

func (e *StorageError) Error() string {
	if e.DeviceID != "" {
		return fmt.Sprintf("storage %s (device=%s): %v", e.Op, e.DeviceID, e.Err)
	}
	if e.Err != nil {
		return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("storage %s failed", e.Op)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// NewStorageError creates a new storage error.
func NewStorageError(op string, deviceID string, err error) *StorageError {
	return &StorageError{Op: op, DeviceID: deviceID, Err: err}
}

// IsStorageError checks if an error is a StorageError.
func IsStorageError(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}

// Sentinel errors for common conditions
var (
	// ErrFrameLengthMismatch indicates a length-prefixed payload whose
	// declared plaintext length does not match the bytes that follow
	ErrFrameLengthMismatch = errors.New("frame length mismatch")

	// ErrShortFrame indicates a length-prefixed payload shorter than its header
	ErrShortFrame = errors.New("frame shorter than header")

	// ErrMalformedReply indicates a device reply missing the expected
	// namespace or command key
	ErrMalformedReply = errors.New("malformed device reply")

	// ErrDeviceUnreachable indicates a device did not answer within the
	// configured read timeout
	ErrDeviceUnreachable = errors.New("device unreachable")

	// ErrCircuitBreakerOpen indicates the storage circuit breaker is open
	ErrCircuitBreakerOpen = errors.New("circuit breaker open")

	// ErrInvalidConfig indicates invalid configuration
	ErrInvalidConfig = errors.New("invalid configuration")
)
