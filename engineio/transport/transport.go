package transport

import (
	"context"

	"github.com/ioduplex/go-socket.io/engineio/packet"
)

// Name is a name of transport.
type Name string

const (
	Polling   Name = "polling"
	Websocket Name = "websocket"
)

// ParseName parses the transport query value.
func ParseName(s string) (Name, bool) {
	switch n := Name(s); n {
	case Polling, Websocket:
		return n, true
	}
	return "", false
}

func (n Name) String() string {
	return string(n)
}

// Transport is a duplex packet channel owned by exactly one session.
// All methods could be called from different goroutines, but Recv is
// expected to have a single caller.
type Transport interface {
	// Name returns the name of this transport, e.g. polling/websocket.
	Name() Name

	// Send queues p for delivery. It returns ErrClosed once the transport is
	// closed.
	Send(p packet.Packet) error

	// Recv blocks until a packet arrives, the transport closes or ctx is done.
	Recv(ctx context.Context) (packet.Packet, error)

	// Close closes this transport. It is safe to call more than once.
	Close() error

	// Done is closed when the transport is closed.
	Done() <-chan struct{}
}
