package socketio

import (
	"fmt"
	"sync"
	"time"

	"github.com/go-logr/logr"

	"github.com/ioduplex/go-socket.io/parser"
)

// namespaceHandler holds the handlers of a namespace. Children of a dynamic
// namespace share the handler of their parent.
type namespaceHandler struct {
	mu     sync.RWMutex
	events map[string]*funcHandler

	onConnect    func(c Conn) error
	onDisconnect func(c Conn, reason string)
	onError      func(c Conn, err error)
}

func newNamespaceHandler() *namespaceHandler {
	return &namespaceHandler{
		events: make(map[string]*funcHandler),
	}
}

// Namespace is a communication channel that splits the logic of an
// application over a single shared connection.
type Namespace struct {
	name    string
	server  *Server
	handler *namespaceHandler
	rooms   *broadcast
	log     logr.Logger

	socketsMu sync.RWMutex
	sockets   map[string]*socket
}

func newNamespace(name string, server *Server, handler *namespaceHandler) *Namespace {
	return &Namespace{
		name:    name,
		server:  server,
		handler: handler,
		rooms:   newBroadcast(),
		log:     server.log.WithValues("nsp", name),
		sockets: make(map[string]*socket),
	}
}

// Name returns the namespace path.
func (n *Namespace) Name() string {
	return n.name
}

// OnConnect sets the handler called when a socket connects. A non-nil error
// rejects the socket with a connect_error carrying the error message.
func (n *Namespace) OnConnect(f func(Conn) error) {
	n.handler.mu.Lock()
	defer n.handler.mu.Unlock()

	n.handler.onConnect = f
}

// OnDisconnect sets the handler called when a socket leaves.
func (n *Namespace) OnDisconnect(f func(Conn, string)) {
	n.handler.mu.Lock()
	defer n.handler.mu.Unlock()

	n.handler.onDisconnect = f
}

// OnError sets the handler receiving handler errors.
func (n *Namespace) OnError(f func(Conn, error)) {
	n.handler.mu.Lock()
	defer n.handler.mu.Unlock()

	n.handler.onError = f
}

// OnEvent sets the handler of event. f is a func taking an optional leading
// Conn and the event arguments; its results are sent back as the ack. It
// panics when f is not a func.
func (n *Namespace) OnEvent(event string, f interface{}) {
	h, err := newEventFunc(f)
	if err != nil {
		panic(fmt.Sprintf("socketio: event %q: %s", event, err))
	}

	n.handler.mu.Lock()
	defer n.handler.mu.Unlock()

	n.handler.events[event] = h
}

func (n *Namespace) event(name string) (*funcHandler, bool) {
	n.handler.mu.RLock()
	defer n.handler.mu.RUnlock()

	h, ok := n.handler.events[name]
	return h, ok
}

// Emit sends an event to every socket of the namespace.
func (n *Namespace) Emit(event string, args ...interface{}) error {
	return n.to(nil, nil).Emit(event, args...)
}

// To targets the sockets in any of rooms.
func (n *Namespace) To(rooms ...string) *BroadcastOperator {
	return n.to(rooms, nil)
}

// Within is an alias of To.
func (n *Namespace) Within(rooms ...string) *BroadcastOperator {
	return n.to(rooms, nil)
}

// Except targets every socket not in any of rooms.
func (n *Namespace) Except(rooms ...string) *BroadcastOperator {
	return n.to(nil, rooms)
}

// Timeout sets the ack timeout of the next EmitWithAck.
func (n *Namespace) Timeout(d time.Duration) *BroadcastOperator {
	return n.to(nil, nil).Timeout(d)
}

// Sockets returns the connected sockets.
func (n *Namespace) Sockets() []Conn {
	return n.to(nil, nil).Sockets()
}

// Socket returns the socket with id.
func (n *Namespace) Socket(id string) (Conn, bool) {
	n.socketsMu.RLock()
	defer n.socketsMu.RUnlock()

	s, ok := n.sockets[id]
	if !ok {
		return nil, false
	}
	return s, true
}

// Len counts the connected sockets.
func (n *Namespace) Len() int {
	n.socketsMu.RLock()
	defer n.socketsMu.RUnlock()

	return len(n.sockets)
}

// DisconnectSockets disconnects every socket of the namespace.
func (n *Namespace) DisconnectSockets(close bool) {
	n.to(nil, nil).DisconnectSockets(close)
}

func (n *Namespace) to(rooms, except []string) *BroadcastOperator {
	return &BroadcastOperator{
		ns:      n,
		rooms:   rooms,
		except:  except,
		timeout: n.server.ackTimeout,
	}
}

func (n *Namespace) add(s *socket) {
	n.socketsMu.Lock()
	n.sockets[s.id] = s
	n.socketsMu.Unlock()

	n.rooms.Add(s)
}

func (n *Namespace) remove(s *socket) {
	n.rooms.Remove(s)

	n.socketsMu.Lock()
	defer n.socketsMu.Unlock()

	delete(n.sockets, s.id)
}

func (n *Namespace) onConnect(s *socket) error {
	n.handler.mu.RLock()
	f := n.handler.onConnect
	n.handler.mu.RUnlock()

	if f == nil {
		return nil
	}
	return n.safeCall("connection", func() error { return f(s) })
}

func (n *Namespace) onDisconnect(s *socket, reason string) {
	n.handler.mu.RLock()
	f := n.handler.onDisconnect
	n.handler.mu.RUnlock()

	if f == nil {
		return
	}
	err := n.safeCall("disconnect", func() error {
		f(s, reason)
		return nil
	})
	if err != nil {
		n.onError(s, err)
	}
}

func (n *Namespace) onError(s *socket, err error) {
	n.log.V(1).Info("handler error", "socket", s.id, "err", err)

	n.handler.mu.RLock()
	f := n.handler.onError
	n.handler.mu.RUnlock()

	if f == nil {
		return
	}
	_ = n.safeCall("error", func() error {
		f(s, err)
		return nil
	})
}

func (n *Namespace) safeCall(event string, f func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = newHandlerError(n.name, event, fmt.Errorf("handler panic: %v", r))
		}
	}()
	return f()
}

// dispatchEvent runs the handler of an event packet and answers its ack.
func (n *Namespace) dispatchEvent(s *socket, p *parser.Packet) {
	items, err := parser.Split(p.Data)
	if err != nil || len(items) == 0 {
		n.onError(s, newHandlerError(n.name, "", parser.ErrNoEventName))
		return
	}
	event, err := parser.EventName(p.Data)
	if err != nil {
		n.onError(s, newHandlerError(n.name, "", err))
		return
	}

	h, ok := n.event(event)
	if !ok {
		n.log.V(2).Info("no handler", "socket", s.id, "event", event)
		if p.NeedAck {
			n.ack(s, p.ID, nil)
		}
		return
	}

	args, err := parser.UnmarshalArgs(items[1:], p.Attachments, h.argTypes)
	if err != nil {
		n.onError(s, newHandlerError(n.name, event, err))
		return
	}

	ret, err := h.Call(s, nil, args)
	if err != nil {
		n.onError(s, newHandlerError(n.name, event, err))
		return
	}
	if p.NeedAck {
		n.ack(s, p.ID, valuesToInterfaces(ret))
	}
}

func (n *Namespace) ack(s *socket, id uint64, ret []interface{}) {
	data, attachments, err := parser.Marshal(ret...)
	if err != nil {
		n.onError(s, newHandlerError(n.name, "ack", err))
		return
	}

	err = s.client.send(parser.Packet{
		Header:      parser.Header{Type: parser.Ack, Namespace: n.name, ID: id, NeedAck: true},
		Data:        data,
		Attachments: attachments,
	})
	if err != nil {
		n.log.V(1).Info("send ack", "socket", s.id, "ack", id, "err", err)
	}
}
