package gps

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
)

// ErrNotSupported is returned when no location provider is configured.
var ErrNotSupported = errors.New("gps: location capability not available")

// ErrNotConnected is returned when the receiver has not been opened yet.
var ErrNotConnected = errors.New("gps: not connected")

// ErrorCode classifies a failed Locate request.
type ErrorCode int

const (
	Unknown ErrorCode = iota
	PermissionDenied
	PositionUnavailable
	Timeout
)

func (c ErrorCode) String() string {
	switch c {
	case PermissionDenied:
		return "permission_denied"
	case PositionUnavailable:
		return "position_unavailable"
	case Timeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// PositionError is the error returned by Provider.Locate.
type PositionError struct {
	Code ErrorCode
	Err  error
}

func (e *PositionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("gps: %s", e.Code)
	}
	return fmt.Sprintf("gps: %s: %v", e.Code, e.Err)
}

func (e *PositionError) Unwrap() error { return e.Err }

// Classify maps any error returned by a provider onto an ErrorCode.
func Classify(err error) ErrorCode {
	var pe *PositionError
	switch {
	case err == nil:
		return Unknown
	case errors.As(err, &pe):
		return pe.Code
	case errors.Is(err, context.DeadlineExceeded):
		return Timeout
	case errors.Is(err, fs.ErrPermission):
		return PermissionDenied
	case errors.Is(err, ErrNotConnected):
		return PositionUnavailable
	default:
		return Unknown
	}
}
