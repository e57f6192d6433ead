package groovego

import (
	"errors"
	"fmt"
)

// Sentinel errors for caller/configuration mistakes. These are reported
// immediately instead of attempting a call that cannot succeed.
var (
	// ErrNoUserTokenProvider is returned by user-required operations when the
	// client was created without a user token provider.
	ErrNoUserTokenProvider = errors.New("groovego: no user token provider configured")

	// ErrNoUserAuthorization is returned when the user token provider could
	// not supply an authorization header.
	ErrNoUserAuthorization = errors.New("groovego: could not obtain a user authorization header")
)

// ClientError is a marker interface implemented by all groovego error types,
// allowing callers to distinguish this library's failures from others.
type ClientError interface {
	error
	isGrooveError()
}

// TransportError reports an HTTP-level failure: a non-2xx status with no
// usable envelope. API-reported errors do not take this path; they arrive
// inside the response's Error field.
type TransportError struct {
	HTTPStatus int
	Method     string
	URL        string
	Body       []byte
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	msg := fmt.Sprintf("groovego: %s %s: http status %d", e.Method, e.URL, e.HTTPStatus)
	if len(e.Body) > 0 {
		msg += ": " + string(e.Body)
	}
	return msg
}

func (e *TransportError) isGrooveError() {}

// AuthenticationError reports a rejected application-credential exchange.
type AuthenticationError struct {
	HTTPStatus  int
	Description string
}

// Error implements the error interface.
func (e *AuthenticationError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("groovego: authentication failed (http status %d): %s", e.HTTPStatus, e.Description)
	}
	return fmt.Sprintf("groovego: authentication failed (http status %d)", e.HTTPStatus)
}

func (e *AuthenticationError) isGrooveError() {}

// DeserializationError reports a response body that could not be decoded
// into the expected shape.
type DeserializationError struct {
	Err error
}

// Error implements the error interface.
func (e *DeserializationError) Error() string {
	return fmt.Sprintf("groovego: malformed response: %v", e.Err)
}

func (e *DeserializationError) isGrooveError() {}

// Unwrap exposes the underlying decode error.
func (e *DeserializationError) Unwrap() error { return e.Err }

// wrapJSONError wraps a decode failure, preserving nil.
func wrapJSONError(err error) error {
	if err == nil {
		return nil
	}
	return &DeserializationError{Err: err}
}
