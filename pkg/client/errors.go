package client

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig is returned by New when the configuration cannot produce
// a working client.
var ErrInvalidConfig = errors.New("invalid transport config")

// ErrorClass classifies transport-level failures.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx responses.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx responses.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassNetwork represents connection-level failures.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassTimeout represents the client timeout or a context deadline.
	ErrorClassTimeout ErrorClass = "timeout"

	// ErrorClassDecode represents a 2xx body that is not a valid envelope.
	ErrorClassDecode ErrorClass = "decode"
)

// TransportError is any failure that prevented an envelope from being
// delivered: the request never completed, the server answered with a
// non-2xx status, or the body could not be decoded.
type TransportError struct {
	Class      ErrorClass
	StatusCode int
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transport %s error (status %d): %s: %v",
			e.Class, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("transport %s error (status %d): %s",
		e.Class, e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsTransportError reports whether err is, or wraps, a *TransportError.
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// ApplicationError describes an envelope whose code is not CodeOK. The
// transport call itself succeeded.
type ApplicationError struct {
	Code    int
	Message string
}

// Error implements the error interface.
func (e *ApplicationError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("application error (code %d)", e.Code)
	}
	return fmt.Sprintf("application error (code %d): %s", e.Code, e.Message)
}
