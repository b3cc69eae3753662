package socketio

import (
	"encoding/json"
	"net"
	"net/http"
	"net/url"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/ioduplex/go-socket.io/engineio/packet"
	"github.com/ioduplex/go-socket.io/extensions"
	"github.com/ioduplex/go-socket.io/parser"
)

// Conn is a socket connected to one namespace.
type Conn interface {
	// ID returns the socket id.
	ID() string
	Namespace() string
	// Connected is false once the socket was torn down.
	Connected() bool

	// Context of this connection. You can save one context for one
	// connection, and share it between all handlers.
	Context() interface{}
	SetContext(ctx interface{})
	// Extensions is the typed state bag of the socket. It is cleared on
	// disconnect.
	Extensions() *extensions.Extensions
	Handshake() Handshake

	URL() url.URL
	LocalAddr() net.Addr
	RemoteAddr() net.Addr
	RemoteHeader() http.Header

	// Emit sends an event. A trailing func argument is called with the
	// client's ack.
	Emit(event string, args ...interface{}) error
	// EmitWithAck sends an event and yields the client's ack.
	EmitWithAck(event string, args ...interface{}) <-chan AckResponse

	Join(rooms ...string)
	Leave(room string)
	LeaveAll()
	Rooms() []string

	// To targets the rooms, without this socket.
	To(rooms ...string) *BroadcastOperator
	// Broadcast targets every other socket of the namespace.
	Broadcast() *BroadcastOperator
	// Timeout sets the ack timeout of the next EmitWithAck.
	Timeout(d time.Duration) *BroadcastOperator

	// Disconnect leaves the namespace. With close the whole connection is
	// closed.
	Disconnect(close bool)
}

// Handshake describes the request a socket connected with.
type Handshake struct {
	URL     url.URL
	Header  http.Header
	Address net.Addr
	// Query merges the connection query and the namespace query.
	Query url.Values
	// Auth is the payload of the connect packet.
	Auth   json.RawMessage
	Issued time.Time
}

type socket struct {
	id        string
	namespace *Namespace
	client    *client
	handshake Handshake

	mu      sync.RWMutex
	context interface{}
	ext     extensions.Extensions

	connected atomic.Bool
	closeOnce sync.Once
}

func newSocket(c *client, ns *Namespace, p *parser.Packet) *socket {
	id := uuid.NewString()
	if c.conn.Version() == packet.V3 {
		// protocol revision 4 clients expect the engine id
		id = c.conn.ID()
		if ns.name != rootNamespace {
			id = ns.name + "#" + id
		}
	}

	u := c.conn.URL()
	query := u.Query()
	if extra, err := url.ParseQuery(p.Query); err == nil {
		for k, v := range extra {
			query[k] = v
		}
	}

	s := &socket{
		id:        id,
		namespace: ns,
		client:    c,
		handshake: Handshake{
			URL:     u,
			Header:  c.conn.RemoteHeader(),
			Address: c.conn.RemoteAddr(),
			Query:   query,
			Auth:    p.Data,
			Issued:  time.Now(),
		},
	}
	s.connected.Store(true)
	return s
}

func (s *socket) ID() string {
	return s.id
}

func (s *socket) Namespace() string {
	return s.namespace.name
}

func (s *socket) Connected() bool {
	return s.connected.Load()
}

func (s *socket) SetContext(ctx interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.context = ctx
}

func (s *socket) Context() interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.context
}

func (s *socket) Extensions() *extensions.Extensions {
	return &s.ext
}

func (s *socket) Handshake() Handshake {
	return s.handshake
}

func (s *socket) URL() url.URL {
	return s.client.conn.URL()
}

func (s *socket) LocalAddr() net.Addr {
	return s.client.conn.LocalAddr()
}

func (s *socket) RemoteAddr() net.Addr {
	return s.client.conn.RemoteAddr()
}

func (s *socket) RemoteHeader() http.Header {
	return s.client.conn.RemoteHeader()
}

func (s *socket) Emit(event string, args ...interface{}) error {
	if !s.Connected() {
		return ErrNotConnected
	}

	var ack *funcHandler
	if l := len(args); l > 0 && args[l-1] != nil && reflect.TypeOf(args[l-1]).Kind() == reflect.Func {
		f, err := newAckFunc(args[l-1])
		if err != nil {
			return err
		}
		ack = f
		args = args[:l-1]
	}

	p, err := newEventPacket(s.namespace.name, event, args)
	if err != nil {
		return err
	}
	if ack == nil {
		return s.client.send(p)
	}

	id, err := s.registerAck(s.namespace.server.ackTimeout, func(resp *parser.Packet, cause error) {
		s.callAck(event, ack, resp, cause)
	})
	if err != nil {
		return err
	}
	p.ID, p.NeedAck = id, true
	return s.client.send(p)
}

func (s *socket) EmitWithAck(event string, args ...interface{}) <-chan AckResponse {
	return s.self().EmitWithAck(event, args...)
}

func (s *socket) Join(rooms ...string) {
	if !s.Connected() {
		return
	}
	s.namespace.rooms.Join(s, rooms...)
}

func (s *socket) Leave(room string) {
	s.namespace.rooms.Leave(s, room)
}

// LeaveAll leaves every room but the one named after the socket id.
func (s *socket) LeaveAll() {
	s.namespace.rooms.LeaveAll(s, s.id)
}

func (s *socket) Rooms() []string {
	return s.namespace.rooms.Rooms(s)
}

func (s *socket) To(rooms ...string) *BroadcastOperator {
	return s.others(rooms)
}

func (s *socket) Broadcast() *BroadcastOperator {
	return s.others(nil)
}

func (s *socket) Timeout(d time.Duration) *BroadcastOperator {
	return s.self().Timeout(d)
}

// self targets this socket by id, whatever rooms it is in.
func (s *socket) self() *BroadcastOperator {
	op := s.namespace.to(nil, nil)
	op.ids = []string{s.id}
	return op
}

// others targets rooms without this socket.
func (s *socket) others(rooms []string) *BroadcastOperator {
	op := s.namespace.to(rooms, nil)
	op.skip = []string{s.id}
	return op
}

func (s *socket) Disconnect(close bool) {
	if close {
		s.client.conn.Close(ReasonServerNamespaceDisconnect)
		return
	}
	if !s.Connected() {
		return
	}
	_ = s.client.send(parser.Packet{Header: parser.Header{Type: parser.Disconnect, Namespace: s.namespace.name}})
	s.teardown(ReasonServerNamespaceDisconnect)
}

func (s *socket) registerAck(timeout time.Duration, cb func(*parser.Packet, error)) (uint64, error) {
	return s.namespace.server.acks.Register(s.id, timeout, cb)
}

func (s *socket) callAck(event string, ack *funcHandler, resp *parser.Packet, cause error) {
	if cause != nil && !ack.withError {
		s.client.log.V(1).Info("ack dropped", "nsp", s.namespace.name, "socket", s.id, "event", event, "err", cause)
		return
	}

	var args []reflect.Value
	if resp != nil {
		items, err := parser.Split(resp.Data)
		if err == nil {
			args, err = parser.UnmarshalArgs(items, resp.Attachments, ack.argTypes)
		}
		if err != nil {
			s.namespace.onError(s, newHandlerError(s.namespace.name, event, err))
			return
		}
	} else {
		args = zeroValues(ack.argTypes)
	}

	if _, err := ack.Call(s, cause, args); err != nil {
		s.namespace.onError(s, newHandlerError(s.namespace.name, event, err))
	}
}

// teardown is the single exit of a socket: it leaves every room, drops
// pending acks and state, and calls the disconnect handler.
func (s *socket) teardown(reason string) {
	s.closeOnce.Do(func() {
		s.connected.Store(false)

		s.namespace.remove(s)
		s.client.remove(s)
		s.namespace.server.acks.CancelSession(s.id)

		s.namespace.onDisconnect(s, reason)
		s.ext.Clear()
	})
}

func zeroValues(types []reflect.Type) []reflect.Value {
	ret := make([]reflect.Value, len(types))
	for i, t := range types {
		ret[i] = reflect.Zero(t)
	}
	return ret
}

func newEventPacket(nsp, event string, args []interface{}) (parser.Packet, error) {
	data, attachments, err := parser.Marshal(append([]interface{}{event}, args...)...)
	if err != nil {
		return parser.Packet{}, err
	}
	return parser.Packet{
		Header:      parser.Header{Type: parser.Event, Namespace: nsp},
		Data:        data,
		Attachments: attachments,
	}, nil
}
