package socketio

import (
	"errors"
	"fmt"
)

// connect errors.
var (
	ErrInvalidNamespace = errors.New("invalid namespace")

	ErrNotConnected = errors.New("socket is not connected")
)

// HandlerError wraps an error returned or raised by a user handler.
type HandlerError struct {
	Namespace string
	Event     string

	Err error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("error in namespace: (%s) event: (%s) with error: (%s)", e.Namespace, e.Event, e.Err.Error())
}

func (e *HandlerError) Unwrap() error {
	return e.Err
}

func newHandlerError(namespace, event string, err error) *HandlerError {
	return &HandlerError{
		Namespace: namespace,
		Event:     event,
		Err:       err,
	}
}

// connectError is the payload of a connect_error packet.
type connectError struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}
