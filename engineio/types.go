package engineio

import (
	"net"
	"net/http"
	"net/url"

	"github.com/ioduplex/go-socket.io/engineio/packet"
	"github.com/ioduplex/go-socket.io/engineio/session"
	"github.com/ioduplex/go-socket.io/engineio/transport"
)

// Reason explains why a connection closed.
type Reason = session.Reason

const (
	ReasonTransportClose  = session.ReasonTransportClose
	ReasonTransportError  = session.ReasonTransportError
	ReasonPingTimeout     = session.ReasonPingTimeout
	ReasonParseError      = session.ReasonParseError
	ReasonMultiplePolling = session.ReasonMultiplePolling
	ReasonServerShutdown  = session.ReasonServerShutdown
	ReasonServerClose     = session.ReasonServerClose
)

// Conn is an engine.io connection.
type Conn interface {
	ID() string
	Version() packet.Version
	Transport() transport.Name
	SupportBinary() bool

	URL() url.URL
	LocalAddr() net.Addr
	RemoteAddr() net.Addr
	RemoteHeader() http.Header

	Context() interface{}
	SetContext(v interface{})

	WriteMessage(data []byte) error
	WriteBinary(data []byte) error
	Close(reason Reason)
	Done() <-chan struct{}
}

var _ Conn = (*session.Session)(nil)

// Handler receives connection events. Calls for one connection are made from
// one goroutine at a time, in arrival order.
type Handler interface {
	OnConnect(c Conn)
	OnMessage(c Conn, data []byte)
	OnBinary(c Conn, data []byte)
	OnDisconnect(c Conn, reason Reason)
}
