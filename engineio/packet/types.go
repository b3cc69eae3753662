package packet

import "strconv"

// Type is the type of packet
type Type byte

const (
	// OPEN is sent from the server when a new transport is opened (recheck).
	OPEN Type = iota
	// CLOSE is request the close of this transport but does not shutdown the
	// connection itself.
	CLOSE
	// PING is sent by the server in v4 and by the client in v3. The other side
	// answers with a pong packet containing the same data.
	PING
	// PONG answers a ping.
	PONG
	// MESSAGE is actual message, client and server should call their callbacks
	// with the data.
	MESSAGE
	// UPGRADE is sent before engine.io switches a transport to test if server
	// and client can communicate over this transport. If this test succeed,
	// the client sends an upgrade packets which requests the server to flush
	// its cache on the old transport and switch to the new transport.
	UPGRADE
	// NOOP is a noop packet. Used primarily to force a poll cycle when an
	// incoming websocket connection is received.
	NOOP
)

func (id Type) String() string {
	switch id {
	case OPEN:
		return "open"
	case CLOSE:
		return "close"
	case PING:
		return "ping"
	case PONG:
		return "pong"
	case MESSAGE:
		return "message"
	case UPGRADE:
		return "upgrade"
	case NOOP:
		return "noop"
	}
	return "unknown"
}

// StringByte converts a Type to byte in string.
func (id Type) StringByte() byte {
	return byte(id) + '0'
}

// BinaryByte converts a Type to byte in binary.
func (id Type) BinaryByte() byte {
	return byte(id)
}

func (id Type) valid() bool {
	return id <= NOOP
}

// ByteToType converts a string byte to Type.
func ByteToType(b byte) (Type, error) {
	t := Type(b - '0')
	if b < '0' || !t.valid() {
		return 0, newError("decode", ErrInvalidType)
	}
	return t, nil
}

// Version is the engine.io protocol revision negotiated with the EIO query
// parameter.
type Version int

const (
	V3 Version = 3
	V4 Version = 4
)

// ParseVersion parses the EIO query value.
func ParseVersion(s string) (Version, bool) {
	i, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	switch v := Version(i); v {
	case V3, V4:
		return v, true
	}
	return 0, false
}

func (v Version) String() string {
	return strconv.Itoa(int(v))
}
