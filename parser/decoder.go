package parser

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Decoder reassembles packets from engine.io messages. A binary packet is
// returned once all of its attachments arrived. A Decoder is not safe for
// concurrent use; one client owns one Decoder.
type Decoder struct {
	pending *Packet
	want    int
}

// DecodeText decodes one text message. It returns nil and no error when the
// packet waits for attachments.
func (d *Decoder) DecodeText(data []byte) (*Packet, error) {
	if d.pending != nil {
		d.Reset()
		return nil, ErrUnexpectedText
	}

	p, want, err := decodeHeader(data)
	if err != nil {
		return nil, err
	}
	if want == 0 {
		if p.Type.Binary() {
			return p, checkPlaceholders(p)
		}
		return p, nil
	}

	d.pending, d.want = p, want
	return nil, nil
}

// DecodeBinary adds one attachment to the pending packet and returns the
// packet when it is complete.
func (d *Decoder) DecodeBinary(data []byte) (*Packet, error) {
	if d.pending == nil {
		return nil, ErrUnexpectedBinary
	}

	p := d.pending
	p.Attachments = append(p.Attachments, bytes.Clone(data))
	if len(p.Attachments) < d.want {
		return nil, nil
	}

	d.Reset()
	if err := checkPlaceholders(p); err != nil {
		return nil, err
	}
	return p, nil
}

// Pending reports whether a packet waits for attachments.
func (d *Decoder) Pending() bool {
	return d.pending != nil
}

// Reset drops the packet being reconstructed.
func (d *Decoder) Reset() {
	d.pending, d.want = nil, 0
}

func decodeHeader(data []byte) (*Packet, int, error) {
	if len(data) == 0 {
		return nil, 0, ErrInvalidPacketType
	}

	p := &Packet{}
	p.Type = Type(data[0] - '0')
	if data[0] < '0' || !p.Type.valid() {
		return nil, 0, fmt.Errorf("%w: %q", ErrInvalidPacketType, data[0])
	}
	i := 1

	want := 0
	if p.Type.Binary() {
		start := i
		for i < len(data) && data[i] != '-' {
			i++
		}
		if i == len(data) {
			return nil, 0, fmt.Errorf("%w: attachments without '-'", ErrInvalidPayload)
		}
		n, err := strconv.Atoi(string(data[start:i]))
		if err != nil || n < 0 {
			return nil, 0, fmt.Errorf("%w: attachments %q", ErrInvalidPayload, data[start:i])
		}
		want = n
		i++
	}

	p.Namespace = DefaultNamespace
	if i < len(data) && data[i] == '/' {
		start := i
		for i < len(data) && data[i] != ',' {
			i++
		}
		nsp := string(data[start:i])
		if q := bytes.IndexByte(data[start:i], '?'); q >= 0 {
			nsp = string(data[start : start+q])
			p.Query = string(data[start+q+1 : i])
		}
		p.Namespace = nsp
		if i < len(data) {
			i++
		}
	}

	start := i
	for i < len(data) && data[i] >= '0' && data[i] <= '9' {
		i++
	}
	if i > start {
		id, err := strconv.ParseUint(string(data[start:i]), 10, 64)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: ack id %q", ErrInvalidPayload, data[start:i])
		}
		p.ID = id
		p.NeedAck = true
	}

	if i < len(data) {
		p.Data = json.RawMessage(bytes.Clone(data[i:]))
	}
	if err := checkPayload(p); err != nil {
		return nil, 0, err
	}
	return p, want, nil
}

func checkPayload(p *Packet) error {
	if len(p.Data) > 0 && !json.Valid(p.Data) {
		return fmt.Errorf("%w: malformed json", ErrInvalidPayload)
	}

	first := firstByte(p.Data)
	switch p.Type {
	case Connect:
		if first != 0 && first != '{' {
			return fmt.Errorf("%w: connect payload should be an object", ErrInvalidPayload)
		}
	case Disconnect:
		if first != 0 {
			return fmt.Errorf("%w: disconnect takes no payload", ErrInvalidPayload)
		}
	case Event, BinaryEvent:
		if first != '[' {
			return fmt.Errorf("%w: event payload should be an array", ErrInvalidPayload)
		}
		if _, err := EventName(p.Data); err != nil {
			return err
		}
	case Ack, BinaryAck:
		if first != '[' || !p.NeedAck {
			return fmt.Errorf("%w: ack should carry an id and an array", ErrInvalidPayload)
		}
	case ConnectError:
		if first != '{' && first != '"' {
			return fmt.Errorf("%w: connect error should be an object or a string", ErrInvalidPayload)
		}
	}
	return nil
}

func firstByte(data []byte) byte {
	data = bytes.TrimLeft(data, " \t\r\n")
	if len(data) == 0 {
		return 0
	}
	return data[0]
}

func checkPlaceholders(p *Packet) error {
	var root interface{}
	if err := json.Unmarshal(p.Data, &root); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidPayload, err)
	}

	seen := make(map[int]bool)
	var walk func(v interface{}) error
	walk = func(v interface{}) error {
		switch v := v.(type) {
		case []interface{}:
			for _, e := range v {
				if err := walk(e); err != nil {
					return err
				}
			}
		case map[string]interface{}:
			if n, ok := placeholderNum(v); ok {
				if n < 0 || n >= len(p.Attachments) {
					return fmt.Errorf("%w: placeholder %d of %d", ErrAttachmentMismatch, n, len(p.Attachments))
				}
				seen[n] = true
				return nil
			}
			for _, e := range v {
				if err := walk(e); err != nil {
					return err
				}
			}
		}
		return nil
	}
	if err := walk(root); err != nil {
		return err
	}

	if len(seen) != len(p.Attachments) {
		return fmt.Errorf("%w: %d placeholders for %d attachments", ErrAttachmentMismatch, len(seen), len(p.Attachments))
	}
	return nil
}
