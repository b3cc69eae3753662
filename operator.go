package socketio

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ioduplex/go-socket.io/parser"
)

// BroadcastOperator selects sockets of a namespace by room. It is a value
// builder: every selector returns a new operator.
type BroadcastOperator struct {
	ns     *Namespace
	rooms  []string
	except []string

	// ids are sockets targeted by id, skip are sockets never targeted.
	ids  []string
	skip []string

	timeout time.Duration
}

func (o *BroadcastOperator) clone() *BroadcastOperator {
	ret := *o
	ret.rooms = append([]string(nil), o.rooms...)
	ret.except = append([]string(nil), o.except...)
	ret.ids = append([]string(nil), o.ids...)
	ret.skip = append([]string(nil), o.skip...)
	return &ret
}

// To adds rooms to the target.
func (o *BroadcastOperator) To(rooms ...string) *BroadcastOperator {
	ret := o.clone()
	ret.rooms = append(ret.rooms, rooms...)
	return ret
}

// Within is an alias of To.
func (o *BroadcastOperator) Within(rooms ...string) *BroadcastOperator {
	return o.To(rooms...)
}

// Except excludes the sockets in any of rooms.
func (o *BroadcastOperator) Except(rooms ...string) *BroadcastOperator {
	ret := o.clone()
	ret.except = append(ret.except, rooms...)
	return ret
}

// Timeout sets how long EmitWithAck waits for each ack.
func (o *BroadcastOperator) Timeout(d time.Duration) *BroadcastOperator {
	ret := o.clone()
	ret.timeout = d
	return ret
}

func (o *BroadcastOperator) targets() []*socket {
	var conns []Conn
	if len(o.rooms) > 0 || len(o.ids) == 0 {
		conns = o.ns.rooms.Select(o.rooms, o.except)
	}
	for _, id := range o.ids {
		if c, ok := o.ns.Socket(id); ok && !o.ns.rooms.InAny(id, o.except) {
			conns = append(conns, c)
		}
	}

	seen := make(map[string]struct{}, len(conns)+len(o.skip))
	for _, id := range o.skip {
		seen[id] = struct{}{}
	}
	ret := make([]*socket, 0, len(conns))
	for _, c := range conns {
		if _, ok := seen[c.ID()]; ok {
			continue
		}
		seen[c.ID()] = struct{}{}
		if s, ok := c.(*socket); ok && s.Connected() {
			ret = append(ret, s)
		}
	}
	return ret
}

// Emit sends an event to the targets. The packet is encoded once; a failed
// send to one socket does not stop the others and the failures are joined.
func (o *BroadcastOperator) Emit(event string, args ...interface{}) error {
	p, err := newEventPacket(o.ns.name, event, args)
	if err != nil {
		return err
	}
	text, attachments := parser.Encode(p)

	var errs []error
	for _, s := range o.targets() {
		if err := s.client.sendEncoded(text, attachments); err != nil {
			o.ns.log.V(1).Info("broadcast", "socket", s.id, "event", event, "err", err)
			errs = append(errs, fmt.Errorf("socket %s: %w", s.id, err))
		}
	}
	return errors.Join(errs...)
}

// EmitWithAck sends an event expecting an ack from every target. The channel
// yields one response per target and is closed after the last one.
func (o *BroadcastOperator) EmitWithAck(event string, args ...interface{}) <-chan AckResponse {
	targets := o.targets()
	ret := make(chan AckResponse, len(targets))

	p, err := newEventPacket(o.ns.name, event, args)
	if err != nil {
		for _, s := range targets {
			ret <- AckResponse{SocketID: s.id, Err: err}
		}
		close(ret)
		return ret
	}

	var wg sync.WaitGroup
	wg.Add(len(targets))
	for _, s := range targets {
		s := s
		var once sync.Once
		done := func(resp AckResponse) {
			once.Do(func() {
				ret <- resp
				wg.Done()
			})
		}

		id, err := s.registerAck(o.timeout, func(resp *parser.Packet, cause error) {
			done(AckResponse{SocketID: s.id, Err: cause, packet: resp})
		})
		if err != nil {
			done(AckResponse{SocketID: s.id, Err: err})
			continue
		}

		sp := p
		sp.ID, sp.NeedAck = id, true
		if err := s.client.send(sp); err != nil {
			done(AckResponse{SocketID: s.id, Err: err})
		}
	}

	go func() {
		wg.Wait()
		close(ret)
	}()
	return ret
}

// Sockets returns the targets.
func (o *BroadcastOperator) Sockets() []Conn {
	targets := o.targets()
	ret := make([]Conn, len(targets))
	for i, s := range targets {
		ret[i] = s
	}
	return ret
}

// DisconnectSockets disconnects the targets from the namespace, or closes
// their connections with close.
func (o *BroadcastOperator) DisconnectSockets(close bool) {
	for _, s := range o.targets() {
		s.Disconnect(close)
	}
}

// Join makes the targets join rooms.
func (o *BroadcastOperator) Join(rooms ...string) {
	for _, s := range o.targets() {
		s.Join(rooms...)
	}
}

// Leave makes the targets leave rooms.
func (o *BroadcastOperator) Leave(rooms ...string) {
	for _, s := range o.targets() {
		for _, room := range rooms {
			s.Leave(room)
		}
	}
}

// AckResponse is the ack of one socket.
type AckResponse struct {
	SocketID string
	// Err is ack.ErrTimeout, ack.ErrSessionClosed or a send error.
	Err error

	packet *parser.Packet
}

// Decode unmarshals the ack arguments into v.
func (r AckResponse) Decode(v ...interface{}) error {
	if r.Err != nil {
		return r.Err
	}
	if r.packet == nil {
		return nil
	}

	items, err := parser.Split(r.packet.Data)
	if err != nil {
		return err
	}
	for i := range v {
		if i >= len(items) {
			break
		}
		if err := parser.Unmarshal(items[i], r.packet.Attachments, v[i]); err != nil {
			return fmt.Errorf("argument %d: %w", i, err)
		}
	}
	return nil
}
