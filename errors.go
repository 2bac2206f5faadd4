package serialmcp

import "errors"

// Predefined error types for robust error handling
var (
	ErrNotInitialized   = errors.New("driver not initialized")
	ErrNotConnected     = errors.New("serial port not connected")
	ErrPortClosed       = errors.New("serial port is closed")
	ErrDeviceNotFound   = errors.New("serial device not found")
	ErrPermissionDenied = errors.New("permission denied accessing serial device")
	ErrDeviceInUse      = errors.New("serial device already in use")
	ErrInvalidBaudRate  = errors.New("invalid baud rate")
	ErrInvalidConfig    = errors.New("invalid serial configuration")

	// Send orchestration errors
	ErrKeywordTimeout = errors.New("timeout waiting for keyword in response")
	ErrInvalidPolicy  = errors.New("invalid wait policy")
	ErrMissingPattern = errors.New("keyword policy requires a stop pattern")

	// Payload encoding errors
	ErrInvalidEncoding = errors.New("unsupported payload encoding")
	ErrInvalidHex      = errors.New("invalid hex payload")
)
