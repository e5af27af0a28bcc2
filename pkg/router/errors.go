package router

import (
	"errors"
	"fmt"
)

// ErrNotConfigured is returned when no API key is available.
var ErrNotConfigured = errors.New("AI Client not configured. Please set your API key in settings.")

// PayloadError reports a request payload that could not be used.
type PayloadError struct {
	Type   MessageType
	Reason string
}

func (e *PayloadError) Error() string {
	return fmt.Sprintf("invalid %s payload: %s", e.Type, e.Reason)
}

// UnknownTypeError is returned for message types the Router does not handle.
type UnknownTypeError struct {
	Type MessageType
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("Unknown message type: %s", e.Type)
}

// IsClientError reports whether err was caused by the request rather than
// the upstream service.
func IsClientError(err error) bool {
	var pe *PayloadError
	var ue *UnknownTypeError
	return errors.As(err, &pe) || errors.As(err, &ue) || errors.Is(err, ErrNotConfigured)
}
