package packet

import (
	"errors"
	"fmt"
)

// Codec failures. A decode error invalidates the whole batch it came from.
var (
	ErrInvalidType     = errors.New("invalid packet type")
	ErrEmptyPacket     = errors.New("empty packet")
	ErrInvalidLength   = errors.New("invalid length prefix")
	ErrInvalidUTF8     = errors.New("invalid utf-8 in text packet")
	ErrInvalidBase64   = errors.New("invalid base64 packet")
	ErrPayloadTooLarge = errors.New("payload too large")
)

// Error is a codec error.
type Error struct {
	Op  string
	Err error
}

func newError(op string, err error) error {
	return &Error{
		Op:  op,
		Err: err,
	}
}

// NewError wraps err as a codec error for op. It is used by the payload
// framing which shares the packet error taxonomy.
func NewError(op string, err error) error {
	return newError(op, err)
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Err.Error())
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsCodecError reports whether err came from decoding or encoding packets.
func IsCodecError(err error) bool {
	var e *Error
	return errors.As(err, &e)
}
