package parser

import (
	"strconv"
	"strings"
)

// Encode renders p as its text frame followed by its attachments. Event and
// Ack packets with attachments are sent as their binary variants.
func Encode(p Packet) (string, [][]byte) {
	t := p.Type
	if len(p.Attachments) > 0 {
		switch t {
		case Event:
			t = BinaryEvent
		case Ack:
			t = BinaryAck
		}
	}

	var b strings.Builder
	b.WriteByte('0' + byte(t))

	if t.Binary() {
		b.WriteString(strconv.Itoa(len(p.Attachments)))
		b.WriteByte('-')
	}

	if p.Namespace != "" && p.Namespace != DefaultNamespace {
		b.WriteString(p.Namespace)
		if p.Query != "" {
			b.WriteByte('?')
			b.WriteString(p.Query)
		}
		b.WriteByte(',')
	}

	if p.NeedAck || t == Ack || t == BinaryAck {
		b.WriteString(strconv.FormatUint(p.ID, 10))
	}

	b.Write(p.Data)

	if !t.Binary() {
		return b.String(), nil
	}
	return b.String(), p.Attachments
}
