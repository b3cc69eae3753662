package ack

import "errors"

var (
	// ErrTimeout is passed to a callback whose ack did not arrive in time.
	ErrTimeout = errors.New("ack timeout")
	// ErrSessionClosed is passed to callbacks pending on a closed owner.
	ErrSessionClosed = errors.New("session closed before ack")
	// ErrNoMatch reports an ack with no pending entry.
	ErrNoMatch = errors.New("no pending ack")
	// ErrTrackerClosed is returned by Register after Close.
	ErrTrackerClosed = errors.New("ack tracker closed")
)
