package azure

import (
	"errors"
	"fmt"
)

var (
	// ErrNoMessages is returned when a completion is requested without messages.
	ErrNoMessages = errors.New("azure: at least one message is required")

	// ErrNoResponseBody is wrapped in a TransportError when a streaming
	// response arrives without a readable body.
	ErrNoResponseBody = errors.New("no response body")

	// ErrStreamClosed is returned by Stream.Next after Stream.Close.
	ErrStreamClosed = errors.New("azure: stream closed")
)

// ConfigurationError reports a connection setting that cannot be used.
// It is always returned before any network activity.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("azure: invalid %s: %s", e.Field, e.Reason)
}

// TransportError wraps a network level failure: DNS, refused connections,
// resets, or a body that could not be read.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("azure: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// RemoteError is a response the remote endpoint produced but that could not
// be used: a non-2xx status, or a 2xx body that is not valid JSON. Body holds
// the raw response text.
type RemoteError struct {
	StatusCode int
	Body       string

	// Err is the decode failure for 2xx responses, nil otherwise.
	Err error
}

func (e *RemoteError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("azure: malformed response (status %d): %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("azure: remote error %d: %s", e.StatusCode, e.Body)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// AsRemoteError unwraps err into a *RemoteError.
func AsRemoteError(err error) (*RemoteError, bool) {
	var re *RemoteError
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}

// IsConfigurationError reports whether err is, or wraps, a *ConfigurationError.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

// IsTransportError reports whether err is, or wraps, a *TransportError.
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
