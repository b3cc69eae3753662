package payload

import (
	"bytes"
	"encoding/base64"
	"strconv"

	"github.com/ioduplex/go-socket.io/engineio/packet"
)

// Encode encodes packets as one polling body. supportsBinary is only
// consulted for v3, where it selects the binary body form if at least one
// packet is binary. The returned bool reports whether the body is binary
// (application/octet-stream).
func Encode(packets []packet.Packet, v packet.Version, supportsBinary bool) ([]byte, bool) {
	if v == packet.V3 {
		if supportsBinary && hasBinary(packets) {
			return encodeV3Binary(packets), true
		}
		return encodeV3Text(packets), false
	}
	return encodeV4(packets), false
}

func hasBinary(packets []packet.Packet) bool {
	for _, p := range packets {
		if p.Binary {
			return true
		}
	}
	return false
}

func encodeV4(packets []packet.Packet) []byte {
	var buf bytes.Buffer
	for i, p := range packets {
		if i > 0 {
			buf.WriteByte(separator)
		}
		writeText(&buf, p)
	}
	return buf.Bytes()
}

// writeText writes the text form of p, base64 encoding binary data.
func writeText(buf *bytes.Buffer, p packet.Packet) {
	if p.Binary {
		buf.WriteByte(binaryPrefix)
		buf.WriteString(base64.StdEncoding.EncodeToString(p.Data))
		return
	}
	buf.WriteByte(p.Type.StringByte())
	buf.Write(p.Data)
}

func encodeV3Text(packets []packet.Packet) []byte {
	var buf bytes.Buffer
	var one bytes.Buffer
	for _, p := range packets {
		one.Reset()
		if p.Binary {
			one.WriteByte(binaryPrefix)
			one.WriteByte(p.Type.StringByte())
			one.WriteString(base64.StdEncoding.EncodeToString(p.Data))
		} else {
			writeText(&one, p)
		}
		buf.WriteString(strconv.Itoa(utf16Len(one.Bytes())))
		buf.WriteByte(':')
		buf.Write(one.Bytes())
	}
	return buf.Bytes()
}

func encodeV3Binary(packets []packet.Packet) []byte {
	var buf bytes.Buffer
	for _, p := range packets {
		if p.Binary {
			buf.WriteByte(markerBinary)
			writeDigits(&buf, len(p.Data)+1)
			buf.WriteByte(p.Type.BinaryByte())
		} else {
			buf.WriteByte(markerText)
			writeDigits(&buf, len(p.Data)+1)
			buf.WriteByte(p.Type.StringByte())
		}
		buf.Write(p.Data)
	}
	return buf.Bytes()
}

// writeDigits writes n as a run of digit values followed by the 0xff end
// marker.
func writeDigits(buf *bytes.Buffer, n int) {
	for _, c := range strconv.Itoa(n) {
		buf.WriteByte(byte(c - '0'))
	}
	buf.WriteByte(lengthEnd)
}

func utf16Len(b []byte) int {
	n := 0
	for _, r := range string(b) {
		n += unitLen(r)
	}
	return n
}

// unitLen is the number of UTF-16 code units r takes.
func unitLen(r rune) int {
	if r >= 0x10000 {
		return 2
	}
	return 1
}
