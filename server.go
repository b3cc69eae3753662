// Package socketio implements a socket.io server on top of engine.io, with
// namespaces, rooms, binary events and acks.
package socketio

import (
	"net/http"
	"regexp"
	"time"

	"github.com/go-logr/logr"

	"github.com/ioduplex/go-socket.io/ack"
	"github.com/ioduplex/go-socket.io/engineio"
	"github.com/ioduplex/go-socket.io/logger"
)

// Server is a go-socket.io server.
type Server struct {
	eio        *engineio.Server
	namespaces *namespaces
	acks       *ack.Tracker
	log        logr.Logger

	connectTimeout time.Duration
	ackTimeout     time.Duration
}

// NewServer returns a server.
func NewServer(opts *Options) *Server {
	s := &Server{
		acks:           ack.NewTracker(opts.getAckSweepInterval()),
		log:            logger.GetLogger("socketio"),
		connectTimeout: opts.getConnectTimeout(),
		ackTimeout:     opts.getAckTimeout(),
	}
	s.namespaces = newNamespaces(s)
	s.namespaces.GetOrCreate(rootNamespace)
	s.eio = engineio.NewServer(opts.engineOptions(), engineHandler{s})
	return s
}

// Close closes server.
func (s *Server) Close() error {
	err := s.eio.Close()
	s.acks.Close()
	return err
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.eio.ServeHTTP(w, r)
}

// Of returns the namespace nsp, creating it when missing.
func (s *Server) Of(nsp string) *Namespace {
	return s.namespaces.GetOrCreate(nsp)
}

// OfPattern registers a dynamic namespace: a connect to any path matching re
// creates a child namespace with the parent's handlers.
func (s *Server) OfPattern(re *regexp.Regexp) *ParentNamespace {
	h := s.namespaces.AddPattern(re)
	return &ParentNamespace{
		re:       re,
		template: newNamespace(re.String(), s, h),
		server:   s,
	}
}

// Namespaces returns the names of the registered namespaces.
func (s *Server) Namespaces() []string {
	return s.namespaces.Names()
}

// Count counts engine.io connections.
func (s *Server) Count() int {
	return s.eio.Count()
}

// OnConnect set a handler function f to handle open event for
// namespace nsp.
func (s *Server) OnConnect(nsp string, f func(Conn) error) {
	s.Of(nsp).OnConnect(f)
}

// OnDisconnect set a handler function f to handle disconnect event for
// namespace nsp.
func (s *Server) OnDisconnect(nsp string, f func(Conn, string)) {
	s.Of(nsp).OnDisconnect(f)
}

// OnError set a handler function f to handle error for namespace nsp.
func (s *Server) OnError(nsp string, f func(Conn, error)) {
	s.Of(nsp).OnError(f)
}

// OnEvent set a handler function f to handle event for namespace nsp.
func (s *Server) OnEvent(nsp, event string, f interface{}) {
	s.Of(nsp).OnEvent(event, f)
}

// JoinRoom joins given connection to the room
func (s *Server) JoinRoom(nsp string, room string, connection Conn) bool {
	ns, ok := s.namespaces.Get(nsp)
	if !ok || connection == nil {
		return false
	}
	ns.rooms.Join(connection, room)
	return true
}

// LeaveRoom leaves given connection from the room
func (s *Server) LeaveRoom(nsp string, room string, connection Conn) bool {
	ns, ok := s.namespaces.Get(nsp)
	if !ok || connection == nil {
		return false
	}
	ns.rooms.Leave(connection, room)
	return true
}

// LeaveAllRooms leaves the given connection from all rooms
func (s *Server) LeaveAllRooms(nsp string, connection Conn) bool {
	ns, ok := s.namespaces.Get(nsp)
	if !ok || connection == nil {
		return false
	}
	ns.rooms.LeaveAll(connection, connection.ID())
	return true
}

// ClearRoom clears the room
func (s *Server) ClearRoom(nsp string, room string) bool {
	ns, ok := s.namespaces.Get(nsp)
	if !ok {
		return false
	}
	ns.rooms.Clear(room)
	return true
}

// BroadcastToRoom broadcasts given event & args to all the connections in the room
func (s *Server) BroadcastToRoom(nsp string, room, event string, args ...interface{}) bool {
	ns, ok := s.namespaces.Get(nsp)
	if !ok {
		return false
	}
	if err := ns.To(room).Emit(event, args...); err != nil {
		s.log.V(1).Info("broadcast to room", "nsp", nsp, "room", room, "err", err)
	}
	return true
}

// BroadcastToNamespace broadcasts given event & args to all the connections in the namespace
func (s *Server) BroadcastToNamespace(nsp string, event string, args ...interface{}) bool {
	ns, ok := s.namespaces.Get(nsp)
	if !ok {
		return false
	}
	if err := ns.Emit(event, args...); err != nil {
		s.log.V(1).Info("broadcast to namespace", "nsp", nsp, "err", err)
	}
	return true
}

// RoomLen gives number of connections in the room
func (s *Server) RoomLen(nsp string, room string) int {
	ns, ok := s.namespaces.Get(nsp)
	if !ok {
		return -1
	}
	return ns.rooms.Len(room)
}

// Rooms gives list of all the rooms
func (s *Server) Rooms(nsp string) []string {
	ns, ok := s.namespaces.Get(nsp)
	if !ok {
		return nil
	}
	return ns.rooms.Rooms(nil)
}

// ForEach calls f for every connection in the room
func (s *Server) ForEach(nsp string, room string, f EachFunc) bool {
	ns, ok := s.namespaces.Get(nsp)
	if !ok {
		return false
	}
	ns.rooms.ForEach(room, f)
	return true
}

// engineHandler adapts engine.io connection events to socket.io clients.
type engineHandler struct {
	s *Server
}

func (h engineHandler) OnConnect(conn engineio.Conn) {
	c := newClient(h.s, conn)
	conn.SetContext(c)
	c.open()
}

func (h engineHandler) OnMessage(conn engineio.Conn, data []byte) {
	if c, ok := conn.Context().(*client); ok {
		c.onText(data)
	}
}

func (h engineHandler) OnBinary(conn engineio.Conn, data []byte) {
	if c, ok := conn.Context().(*client); ok {
		c.onBinary(data)
	}
}

func (h engineHandler) OnDisconnect(conn engineio.Conn, reason engineio.Reason) {
	if c, ok := conn.Context().(*client); ok {
		c.close(string(reason))
	}
}
