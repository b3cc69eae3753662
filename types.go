package socketio

import "github.com/ioduplex/go-socket.io/engineio"

// namespace
const (
	rootNamespace = "/"
)

// Reasons passed to disconnect handlers.
const (
	ReasonTransportClose  = string(engineio.ReasonTransportClose)
	ReasonTransportError  = string(engineio.ReasonTransportError)
	ReasonPingTimeout     = string(engineio.ReasonPingTimeout)
	ReasonParseError      = string(engineio.ReasonParseError)
	ReasonMultiplePolling = string(engineio.ReasonMultiplePolling)
	ReasonServerShutdown  = string(engineio.ReasonServerShutdown)
	ReasonServerClose     = string(engineio.ReasonServerClose)

	ReasonServerNamespaceDisconnect = "server namespace disconnect"
	ReasonClientNamespaceDisconnect = "client namespace disconnect"
	ReasonConnectTimeout            = "connect timeout"
)

// EachFunc is called for every socket of a room.
type EachFunc func(Conn)
