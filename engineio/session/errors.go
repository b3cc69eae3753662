package session

import "errors"

var (
	// ErrUnknownSession is returned when no live session has the id.
	ErrUnknownSession = errors.New("session id unknown")
	// ErrSessionClosed is returned by operations on a closing session.
	ErrSessionClosed = errors.New("session closed")
	// ErrUpgrade is returned when the websocket probe handshake fails.
	ErrUpgrade = errors.New("upgrade failed")
)
