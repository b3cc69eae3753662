package payload

import (
	"bytes"
	"encoding/base64"
	"strconv"
	"unicode/utf8"

	"github.com/ioduplex/go-socket.io/engineio/packet"
)

// Decode splits a polling body into packets. isBinary reports whether the
// body was sent as application/octet-stream. A max greater than 0 rejects
// bodies longer than max bytes. Any malformed packet fails the whole body.
func Decode(body []byte, v packet.Version, isBinary bool, max int64) ([]packet.Packet, error) {
	if max > 0 && int64(len(body)) > max {
		return nil, packet.NewError("decode payload", packet.ErrPayloadTooLarge)
	}
	if len(body) == 0 {
		return nil, packet.NewError("decode payload", packet.ErrEmptyPacket)
	}
	if v == packet.V3 {
		if isBinary {
			return decodeV3Binary(body)
		}
		return decodeV3Text(body)
	}
	return decodeV4(body)
}

func decodeV4(body []byte) ([]packet.Packet, error) {
	parts := bytes.Split(body, []byte{separator})
	ret := make([]packet.Packet, 0, len(parts))
	for _, part := range parts {
		p, err := decodeText(part)
		if err != nil {
			return nil, err
		}
		ret = append(ret, p)
	}
	return ret, nil
}

// decodeText decodes one text encoded packet, 'b' prefixed base64 included.
func decodeText(b []byte) (packet.Packet, error) {
	if len(b) > 0 && b[0] == binaryPrefix {
		data, err := base64.StdEncoding.DecodeString(string(b[1:]))
		if err != nil {
			return packet.Packet{}, packet.NewError("decode payload", packet.ErrInvalidBase64)
		}
		return packet.Packet{Type: packet.MESSAGE, Data: data, Binary: true}, nil
	}
	return packet.Decode(b, false, packet.V4)
}

func decodeV3Text(body []byte) ([]packet.Packet, error) {
	if !utf8.Valid(body) {
		return nil, packet.NewError("decode payload", packet.ErrInvalidUTF8)
	}
	var ret []packet.Packet
	for len(body) > 0 {
		colon := bytes.IndexByte(body, ':')
		if colon <= 0 {
			return nil, packet.NewError("decode payload", packet.ErrInvalidLength)
		}
		n, err := strconv.Atoi(string(body[:colon]))
		if err != nil || n <= 0 {
			return nil, packet.NewError("decode payload", packet.ErrInvalidLength)
		}
		body = body[colon+1:]

		end, ok := utf16Offset(body, n)
		if !ok {
			return nil, packet.NewError("decode payload", packet.ErrInvalidLength)
		}
		seg := body[:end]
		body = body[end:]

		if seg[0] == binaryPrefix {
			if len(seg) < 2 {
				return nil, packet.NewError("decode payload", packet.ErrInvalidLength)
			}
			t, err := packet.ByteToType(seg[1])
			if err != nil {
				return nil, err
			}
			data, err := base64.StdEncoding.DecodeString(string(seg[2:]))
			if err != nil {
				return nil, packet.NewError("decode payload", packet.ErrInvalidBase64)
			}
			ret = append(ret, packet.Packet{Type: t, Data: data, Binary: true})
			continue
		}
		p, err := packet.Decode(seg, false, packet.V3)
		if err != nil {
			return nil, err
		}
		ret = append(ret, p)
	}
	return ret, nil
}

// utf16Offset returns the byte offset in b after n UTF-16 code units.
func utf16Offset(b []byte, n int) (int, bool) {
	off := 0
	for n > 0 {
		if off >= len(b) {
			return 0, false
		}
		r, size := utf8.DecodeRune(b[off:])
		n -= unitLen(r)
		off += size
	}
	return off, n == 0
}

func decodeV3Binary(body []byte) ([]packet.Packet, error) {
	var ret []packet.Packet
	for len(body) > 0 {
		marker := body[0]
		if marker != markerText && marker != markerBinary {
			return nil, packet.NewError("decode payload", packet.ErrInvalidType)
		}
		body = body[1:]

		n := 0
		i := 0
		for ; i < len(body) && body[i] != lengthEnd; i++ {
			if body[i] > 9 || i > 10 {
				return nil, packet.NewError("decode payload", packet.ErrInvalidLength)
			}
			n = n*10 + int(body[i])
		}
		if i == 0 || i >= len(body) || n == 0 || len(body)-i-1 < n {
			return nil, packet.NewError("decode payload", packet.ErrInvalidLength)
		}
		seg := body[i+1 : i+1+n]
		body = body[i+1+n:]

		if marker == markerBinary {
			p, err := packet.Decode(seg, true, packet.V3)
			if err != nil {
				return nil, err
			}
			ret = append(ret, p)
			continue
		}
		p, err := packet.Decode(seg, false, packet.V3)
		if err != nil {
			return nil, err
		}
		ret = append(ret, p)
	}
	return ret, nil
}
