// Package payload frames batches of engine.io packets into HTTP long-polling
// bodies.
//
// v4 bodies are text only: packets are joined with the record separator
// (0x1e) and binary messages are written as 'b' followed by base64.
//
// v3 bodies come in two forms. The text form prefixes each packet with its
// length in UTF-16 code units and a colon, binary messages becoming "b4" plus
// base64. The binary form, used when the client supports it, prefixes each
// packet with a 0 (text) or 1 (binary) marker, the length as a run of decimal
// digit bytes, and a 0xff terminator.
package payload

import (
	"encoding/base64"

	"github.com/ioduplex/go-socket.io/engineio/packet"
)

const (
	separator    = 0x1e
	binaryPrefix = 'b'
	lengthEnd    = 0xff
	markerText   = 0
	markerBinary = 1
)

// Fit returns how many leading packets can be sent in one body without
// exceeding max bytes. At least one packet is always returned when packets is
// not empty, a single oversized packet still has to be delivered. A max of 0
// or less disables the limit.
func Fit(packets []packet.Packet, max int64) int {
	if max <= 0 {
		return len(packets)
	}
	var total int64
	for i, p := range packets {
		total += estimate(p)
		if total > max && i > 0 {
			return i
		}
	}
	return len(packets)
}

func estimate(p packet.Packet) int64 {
	if p.Binary {
		return int64(base64.StdEncoding.EncodedLen(len(p.Data))) + 8
	}
	return int64(len(p.Data)) + 8
}
