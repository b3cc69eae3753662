package transport

import (
	"encoding/json"
	"io"
	"time"
)

// ConnParameters is the open handshake payload sent to the client.
type ConnParameters struct {
	PingInterval time.Duration
	PingTimeout  time.Duration
	MaxPayload   int64
	SID          string
	Upgrades     []Name
}

type jsonParameters struct {
	SID          string   `json:"sid"`
	Upgrades     []string `json:"upgrades"`
	PingInterval int      `json:"pingInterval"`
	PingTimeout  int      `json:"pingTimeout"`
	MaxPayload   int64    `json:"maxPayload"`
}

// ReadConnParameters reads ConnParameters from r.
func ReadConnParameters(r io.Reader) (ConnParameters, error) {
	var param jsonParameters
	if err := json.NewDecoder(r).Decode(&param); err != nil {
		return ConnParameters{}, err
	}

	upgrades := make([]Name, len(param.Upgrades))
	for i, u := range param.Upgrades {
		upgrades[i] = Name(u)
	}

	return ConnParameters{
		SID:          param.SID,
		Upgrades:     upgrades,
		PingInterval: time.Duration(param.PingInterval) * time.Millisecond,
		PingTimeout:  time.Duration(param.PingTimeout) * time.Millisecond,
		MaxPayload:   param.MaxPayload,
	}, nil
}

// Marshal returns the JSON form without a trailing newline, as carried in
// the open packet.
func (p ConnParameters) Marshal() []byte {
	ret, _ := json.Marshal(p.toJSON())
	return ret
}

// WriteTo writes to w with json format.
func (p ConnParameters) WriteTo(w io.Writer) (int64, error) {
	writer := writer{
		w: w,
	}
	err := json.NewEncoder(&writer).Encode(p.toJSON())
	return writer.i, err
}

func (p ConnParameters) toJSON() jsonParameters {
	upgrades := make([]string, len(p.Upgrades))
	for i, u := range p.Upgrades {
		upgrades[i] = string(u)
	}
	return jsonParameters{
		SID:          p.SID,
		Upgrades:     upgrades,
		PingInterval: int(p.PingInterval / time.Millisecond),
		PingTimeout:  int(p.PingTimeout / time.Millisecond),
		MaxPayload:   p.MaxPayload,
	}
}

type writer struct {
	i int64
	w io.Writer
}

func (w *writer) Write(p []byte) (int, error) {
	n, err := w.w.Write(p)
	w.i += int64(n)
	return n, err
}
