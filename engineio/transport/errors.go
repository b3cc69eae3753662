package transport

import (
	"errors"
	"net/http"
)

var (
	// ErrOverlapped is returned when a second polling GET arrives while one
	// is already parked.
	ErrOverlapped = errors.New("overlapped polling request")
	// ErrClosed is returned when sending to or receiving from a closed
	// transport.
	ErrClosed = errors.New("transport closed")
	// ErrTransportMismatch is returned when a request uses a transport other
	// than the session's active one.
	ErrTransportMismatch = errors.New("transport mismatch")
	// ErrInvalidFrame is returned when the peer sends an unsupported frame.
	ErrInvalidFrame = errors.New("invalid frame type")
	// ErrInvalidContentType is returned when a POST body has an unknown mime.
	ErrInvalidContentType = errors.New("invalid content type")
)

// HTTPError is an error carrying the HTTP status it maps to.
type HTTPError interface {
	error
	Code() int
}

type httpError struct {
	error
	code int
}

// HTTPErr wraps err with the HTTP status code.
func HTTPErr(err error, code int) HTTPError {
	return &httpError{
		error: err,
		code:  code,
	}
}

func (e httpError) Code() int {
	return e.code
}

func (e httpError) Unwrap() error {
	return e.error
}

// StatusCode returns the HTTP status for err, 400 when err carries none.
func StatusCode(err error) int {
	var he HTTPError
	if errors.As(err, &he) {
		return he.Code()
	}
	return http.StatusBadRequest
}
