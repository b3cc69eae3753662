package socketio

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/go-logr/logr"

	"github.com/ioduplex/go-socket.io/engineio"
	"github.com/ioduplex/go-socket.io/engineio/packet"
	"github.com/ioduplex/go-socket.io/parser"
)

// client is the socket.io side of one engine.io connection. Packets are
// read from one goroutine at a time; writes are serialized so attachments
// follow their packet.
type client struct {
	server *Server
	conn   engineio.Conn
	log    logr.Logger

	decoder parser.Decoder

	writeMu sync.Mutex

	mu           sync.RWMutex
	sockets      map[string]*socket
	connectTimer *time.Timer
}

func newClient(server *Server, conn engineio.Conn) *client {
	return &client{
		server:  server,
		conn:    conn,
		log:     server.log.WithValues("sid", conn.ID()),
		sockets: make(map[string]*socket),
	}
}

// open starts the connect timeout, or connects the root namespace right away
// for clients of protocol revision 4.
func (c *client) open() {
	if c.conn.Version() == packet.V3 {
		c.connect(&parser.Packet{Header: parser.Header{Type: parser.Connect, Namespace: rootNamespace}})
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.connectTimer = time.AfterFunc(c.server.connectTimeout, func() {
		if c.len() == 0 {
			c.log.V(1).Info("no namespace joined in time")
			c.conn.Close(ReasonConnectTimeout)
		}
	})
}

func (c *client) len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.sockets)
}

func (c *client) socket(nsp string) (*socket, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s, ok := c.sockets[nsp]
	return s, ok
}

func (c *client) remove(s *socket) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sockets[s.namespace.name] == s {
		delete(c.sockets, s.namespace.name)
	}
}

func (c *client) onText(data []byte) {
	p, err := c.decoder.DecodeText(data)
	c.onDecoded(p, err)
}

func (c *client) onBinary(data []byte) {
	p, err := c.decoder.DecodeBinary(data)
	c.onDecoded(p, err)
}

func (c *client) onDecoded(p *parser.Packet, err error) {
	if err != nil {
		c.log.V(1).Info("invalid packet", "err", err)
		c.conn.Close(engineio.ReasonParseError)
		return
	}
	if p == nil {
		return
	}
	c.log.V(2).Info("recv", "type", p.Type, "nsp", p.Namespace, "ack", p.ID)

	switch p.Type {
	case parser.Connect:
		c.connect(p)
	case parser.Disconnect:
		if s, ok := c.socket(p.Namespace); ok {
			s.teardown(ReasonClientNamespaceDisconnect)
		}
	case parser.Event, parser.BinaryEvent:
		if s, ok := c.socket(p.Namespace); ok {
			s.namespace.dispatchEvent(s, p)
		}
	case parser.Ack, parser.BinaryAck:
		if s, ok := c.socket(p.Namespace); ok {
			s.namespace.server.acks.Resolve(s.id, p.ID, p)
		}
	case parser.ConnectError:
		c.log.V(1).Info("connect_error from client", "nsp", p.Namespace)
	}
}

func (c *client) connect(p *parser.Packet) {
	if _, ok := c.socket(p.Namespace); ok {
		c.log.V(1).Info("namespace already connected", "nsp", p.Namespace)
		return
	}

	ns, ok := c.server.namespaces.Lookup(p.Namespace)
	if !ok {
		c.connectError(p.Namespace, ErrInvalidNamespace)
		return
	}

	s := newSocket(c, ns, p)
	c.server.acks.Open(s.id)
	c.mu.Lock()
	c.sockets[ns.name] = s
	if c.connectTimer != nil {
		c.connectTimer.Stop()
	}
	c.mu.Unlock()
	ns.add(s)

	if err := ns.onConnect(s); err != nil {
		s.connected.Store(false)
		ns.remove(s)
		c.remove(s)
		c.server.acks.CancelSession(s.id)
		c.connectError(ns.name, err)
		return
	}

	ack := parser.Packet{Header: parser.Header{Type: parser.Connect, Namespace: ns.name}}
	if c.conn.Version() == packet.V4 {
		ack.Data, _ = json.Marshal(map[string]string{"sid": s.id})
	}
	if err := c.send(ack); err != nil {
		c.log.V(1).Info("send connect", "nsp", ns.name, "err", err)
	}
	c.log.V(1).Info("socket connected", "nsp", ns.name, "socket", s.id)
}

func (c *client) connectError(nsp string, err error) {
	message := err.Error()
	if errors.Is(err, ErrInvalidNamespace) {
		message = "Invalid namespace"
	}
	var herr *HandlerError
	if errors.As(err, &herr) {
		message = herr.Err.Error()
	}

	var data []byte
	if c.conn.Version() == packet.V4 {
		data, _ = json.Marshal(connectError{Message: message})
	} else {
		data, _ = json.Marshal(message)
	}

	err = c.send(parser.Packet{
		Header: parser.Header{Type: parser.ConnectError, Namespace: nsp},
		Data:   data,
	})
	if err != nil {
		c.log.V(1).Info("send connect_error", "nsp", nsp, "err", err)
	}
}

// close tears down every socket after the engine.io connection closed.
func (c *client) close(reason string) {
	c.mu.Lock()
	if c.connectTimer != nil {
		c.connectTimer.Stop()
	}
	sockets := make([]*socket, 0, len(c.sockets))
	for _, s := range c.sockets {
		sockets = append(sockets, s)
	}
	c.mu.Unlock()

	for _, s := range sockets {
		s.teardown(reason)
	}
}

func (c *client) send(p parser.Packet) error {
	text, attachments := parser.Encode(p)
	return c.sendEncoded(text, attachments)
}

func (c *client) sendEncoded(text string, attachments [][]byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.conn.WriteMessage([]byte(text)); err != nil {
		return err
	}
	for _, a := range attachments {
		if err := c.conn.WriteBinary(a); err != nil {
			return err
		}
	}
	return nil
}
