package parser

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"strconv"
)

// Buffer is a binary argument. Buffers passed to emit, directly or inside
// slices and maps, are sent as attachments. Inside a struct a Buffer is
// rendered in its JSON form.
type Buffer struct {
	Data []byte
}

type bufferJSON struct {
	Type string `json:"type"`
	Data []int  `json:"data"`
}

// MarshalJSON marshals to JSON.
func (a Buffer) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"type":"Buffer","data":[`)
	for i, d := range a.Data {
		if i > 0 {
			buf.WriteString(",")
		}
		buf.WriteString(strconv.Itoa(int(d)))
	}
	buf.WriteString("]}")

	return buf.Bytes(), nil
}

// UnmarshalJSON accepts a base64 string, which is how attachments are
// hydrated, or the JSON form written by MarshalJSON.
func (a *Buffer) UnmarshalJSON(b []byte) error {
	if firstByte(b) == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		data, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return err
		}
		a.Data = data
		return nil
	}

	var data bufferJSON
	if err := json.Unmarshal(b, &data); err != nil {
		return err
	}
	a.Data = make([]byte, len(data.Data))
	for i, d := range data.Data {
		a.Data[i] = byte(d)
	}

	return nil
}
