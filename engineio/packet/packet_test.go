package packet

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPacketType(t *testing.T) {
	var tests = []struct {
		b       byte
		pType   Type
		binByte byte
		str     string
	}{
		{'0', OPEN, 0, "open"},
		{'1', CLOSE, 1, "close"},
		{'2', PING, 2, "ping"},
		{'3', PONG, 3, "pong"},
		{'4', MESSAGE, 4, "message"},
		{'5', UPGRADE, 5, "upgrade"},
		{'6', NOOP, 6, "noop"},
	}

	for i, test := range tests {
		typ, err := ByteToType(test.b)
		require.NoError(t, err)
		require.Equal(t, test.pType, typ, fmt.Sprintf(`types not equal by case: %d`, i))

		assert.Equal(t, test.b, typ.StringByte(), fmt.Sprintf(`string byte not equal by case: %d`, i))
		assert.Equal(t, test.binByte, typ.BinaryByte(), fmt.Sprintf(`bytes not equal by case: %d`, i))
		assert.Equal(t, test.str, typ.String(), fmt.Sprintf(`strings not equal by case: %d`, i))
	}

	for _, b := range []byte{'7', '/', 'a', 0} {
		_, err := ByteToType(b)
		assert.ErrorIs(t, err, ErrInvalidType)
	}
}

func TestParseVersion(t *testing.T) {
	should := assert.New(t)

	v, ok := ParseVersion("3")
	should.True(ok)
	should.Equal(V3, v)

	v, ok = ParseVersion("4")
	should.True(ok)
	should.Equal(V4, v)

	for _, s := range []string{"", "2", "5", "x"} {
		_, ok = ParseVersion(s)
		should.False(ok, s)
	}
}

func TestPacketRoundTrip(t *testing.T) {
	packets := []Packet{
		{Type: OPEN, Data: []byte(`{"sid":"abc"}`)},
		{Type: CLOSE},
		{Type: PING, Data: []byte("probe")},
		{Type: PONG},
		{Type: MESSAGE, Data: []byte("hello你好")},
		{Type: UPGRADE},
		{Type: NOOP},
		{Type: MESSAGE, Data: []byte{0, 1, 2, 0xff}, Binary: true},
	}

	for _, v := range []Version{V3, V4} {
		for _, p := range packets {
			t.Run(fmt.Sprintf("v%d/%s/binary=%v", v, p.Type, p.Binary), func(t *testing.T) {
				should := assert.New(t)
				must := require.New(t)

				frame, binary := Encode(p, v)
				should.Equal(p.Binary, binary)

				got, err := Decode(frame, binary, v)
				must.NoError(err)
				should.Equal(p, got)
			})
		}
	}
}

func TestEncodeFrames(t *testing.T) {
	should := assert.New(t)

	b, binary := Encode(Packet{Type: MESSAGE, Data: []byte("hi")}, V4)
	should.False(binary)
	should.Equal("4hi", string(b))

	b, binary = Encode(Packet{Type: MESSAGE, Data: []byte{1, 2}, Binary: true}, V4)
	should.True(binary)
	should.Equal([]byte{1, 2}, b)

	b, binary = Encode(Packet{Type: MESSAGE, Data: []byte{1, 2}, Binary: true}, V3)
	should.True(binary)
	should.Equal([]byte{4, 1, 2}, b)
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name   string
		data   []byte
		binary bool
		v      Version
		err    error
	}{
		{"empty text", nil, false, V4, ErrEmptyPacket},
		{"unknown type", []byte("9x"), false, V4, ErrInvalidType},
		{"invalid utf8", []byte{'4', 0xff, 0xfe}, false, V4, ErrInvalidUTF8},
		{"v3 empty binary", nil, true, V3, ErrEmptyPacket},
		{"v3 binary not message", []byte{2, 1}, true, V3, ErrInvalidType},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := Decode(test.data, test.binary, test.v)
			assert.ErrorIs(t, err, test.err)
			assert.True(t, IsCodecError(err))
		})
	}
}
