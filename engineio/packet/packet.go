package packet

import "unicode/utf8"

// Packet is one engine.io packet. Binary marks a message whose data is raw
// bytes rather than text.
type Packet struct {
	Type   Type
	Data   []byte
	Binary bool
}

// Encode encodes p as one transport frame. The returned bool reports whether
// the frame must be sent as binary.
//
// In v4 a binary message is the raw data with no type marker, the frame type
// carries the distinction. In v3 a binary frame starts with the raw type byte.
func Encode(p Packet, v Version) ([]byte, bool) {
	if p.Binary {
		if v == V3 {
			ret := make([]byte, 0, len(p.Data)+1)
			ret = append(ret, p.Type.BinaryByte())
			return append(ret, p.Data...), true
		}
		ret := make([]byte, len(p.Data))
		copy(ret, p.Data)
		return ret, true
	}

	ret := make([]byte, 0, len(p.Data)+1)
	ret = append(ret, p.Type.StringByte())
	return append(ret, p.Data...), false
}

// Decode decodes one transport frame.
func Decode(data []byte, binary bool, v Version) (Packet, error) {
	if binary {
		if v == V3 {
			if len(data) == 0 {
				return Packet{}, newError("decode", ErrEmptyPacket)
			}
			t := Type(data[0])
			if t != MESSAGE {
				return Packet{}, newError("decode", ErrInvalidType)
			}
			data = data[1:]
		}
		return Packet{Type: MESSAGE, Data: clone(data), Binary: true}, nil
	}

	if len(data) == 0 {
		return Packet{}, newError("decode", ErrEmptyPacket)
	}
	if !utf8.Valid(data) {
		return Packet{}, newError("decode", ErrInvalidUTF8)
	}
	t, err := ByteToType(data[0])
	if err != nil {
		return Packet{}, err
	}
	return Packet{Type: t, Data: clone(data[1:])}, nil
}

func clone(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	ret := make([]byte, len(b))
	copy(ret, b)
	return ret
}
