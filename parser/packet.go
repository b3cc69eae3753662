// Package parser encodes and decodes socket.io packets carried in engine.io
// messages. Binary arguments travel as separate attachments referenced by
// placeholders in the JSON payload.
package parser

import (
	"encoding/json"
	"strconv"
)

// Type of packet.
type Type byte

const (
	// Connect type
	Connect Type = iota
	// Disconnect type
	Disconnect
	// Event type
	Event
	// Ack type
	Ack
	// ConnectError type, named Error in protocol revision 4.
	ConnectError
	// BinaryEvent type
	BinaryEvent
	// BinaryAck type
	BinaryAck
)

var typeNames = [...]string{"CONNECT", "DISCONNECT", "EVENT", "ACK", "CONNECT_ERROR", "BINARY_EVENT", "BINARY_ACK"}

func (t Type) String() string {
	if !t.valid() {
		return "UNKNOWN(" + strconv.Itoa(int(t)) + ")"
	}
	return typeNames[t]
}

func (t Type) valid() bool {
	return t <= BinaryAck
}

// Binary reports whether packets of t carry attachments.
func (t Type) Binary() bool {
	return t == BinaryEvent || t == BinaryAck
}

// DefaultNamespace is the namespace used when a packet names none.
const DefaultNamespace = "/"

// Header of packet.
type Header struct {
	Type      Type
	Namespace string
	// Query is the part after '?' in a namespace, sent by older clients.
	Query   string
	ID      uint64
	NeedAck bool
}

// Packet is a decoded socket.io packet. Data is the raw JSON payload with
// placeholders still in place; Attachments holds the binary parts in
// placeholder order.
type Packet struct {
	Header

	Data        json.RawMessage
	Attachments [][]byte
}
