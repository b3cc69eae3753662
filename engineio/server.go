// Package engineio implements the server side of the engine.io protocol,
// revisions 3 and 4, over HTTP long-polling and websocket.
package engineio

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-logr/logr"
	gorilla "github.com/gorilla/websocket"

	"github.com/ioduplex/go-socket.io/engineio/packet"
	"github.com/ioduplex/go-socket.io/engineio/session"
	"github.com/ioduplex/go-socket.io/engineio/transport"
	"github.com/ioduplex/go-socket.io/engineio/transport/polling"
	"github.com/ioduplex/go-socket.io/engineio/transport/websocket"
	"github.com/ioduplex/go-socket.io/logger"
)

// Server is instance of server
type Server struct {
	pingInterval   time.Duration
	pingTimeout    time.Duration
	upgradeTimeout time.Duration
	maxPayload     int64
	compression    int
	allowUpgrades  bool
	allowEIO3      bool

	transports     *transport.Manager
	sessions       *session.Manager
	requestChecker CheckerFunc
	checkOrigin    func(*http.Request) bool
	upgrader       *gorilla.Upgrader

	handler Handler
	log     logr.Logger
	closed  atomic.Bool
}

// NewServer returns a server which reports connections to handler.
func NewServer(opts *Options, handler Handler) *Server {
	return &Server{
		pingInterval:   opts.getPingInterval(),
		pingTimeout:    opts.getPingTimeout(),
		upgradeTimeout: opts.getUpgradeTimeout(),
		maxPayload:     opts.getMaxPayload(),
		compression:    opts.getHTTPCompression(),
		allowUpgrades:  opts.allowUpgrades(),
		allowEIO3:      opts.allowEIO3(),
		transports:     transport.NewManager(opts.getTransports()),
		sessions:       session.NewManager(opts.getSessionIDGenerator()),
		requestChecker: opts.getRequestChecker(),
		checkOrigin:    opts.getCheckOrigin(),
		upgrader:       websocket.NewUpgrader(opts.getCheckOrigin(), opts.perMessageDeflate()),
		handler:        handler,
		log:            logger.GetLogger("engineio"),
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if s.closed.Load() {
		http.Error(w, "server closed", http.StatusServiceUnavailable)
		return
	}

	if r.Method == http.MethodOptions {
		polling.ServeOptions(w, r, s.checkOrigin)
		return
	}

	query := r.URL.Query()

	version, ok := packet.ParseVersion(query.Get("EIO"))
	if !ok || (version == packet.V3 && !s.allowEIO3) {
		writeError(w, UnsupportedProtocolVersion)
		return
	}

	name, ok := transport.ParseName(query.Get("transport"))
	if !ok || !s.transports.Enabled(name) {
		writeError(w, UnknownTransport)
		return
	}

	header, err := s.requestChecker(r)
	if err != nil {
		s.log.V(1).Info("request rejected", "err", err)
		writeError(w, Forbidden)
		return
	}
	for k, v := range header {
		w.Header()[k] = v
	}

	sid := query.Get("sid")
	if sid == "" {
		if r.Method != http.MethodGet {
			writeError(w, BadHandshakeMethod)
			return
		}
		s.handshake(w, r, version, name)
		return
	}

	sess, ok := s.sessions.Get(sid)
	if !ok {
		writeError(w, UnknownSid)
		return
	}

	if name == transport.Websocket {
		s.upgrade(w, r, sess)
		return
	}

	s.servePolling(w, r, sess)
}

// Count counts connected
func (s *Server) Count() int {
	return s.sessions.Count()
}

// Get returns the connection with sid.
func (s *Server) Get(sid string) (Conn, bool) {
	sess, ok := s.sessions.Get(sid)
	if !ok {
		return nil, false
	}
	return sess, true
}

// Remove closes the connection with sid and removes it from the pool.
func (s *Server) Remove(sid string) {
	if sess, ok := s.sessions.Get(sid); ok {
		sess.Close(ReasonServerClose)
	}
	s.sessions.Remove(sid)
}

// Close closes every connection and rejects new requests.
func (s *Server) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	s.sessions.Range(func(sess *session.Session) bool {
		sess.Close(ReasonServerShutdown)
		return true
	})
	return nil
}

func (s *Server) upgrades(name transport.Name) []transport.Name {
	if !s.allowUpgrades {
		return []transport.Name{}
	}
	return s.transports.UpgradeFrom(name)
}

func (s *Server) handshake(w http.ResponseWriter, r *http.Request, v packet.Version, name transport.Name) {
	cfg := session.Config{
		ID:      s.sessions.NewID(),
		Version: v,
		Params: transport.ConnParameters{
			PingInterval: s.pingInterval,
			PingTimeout:  s.pingTimeout,
			MaxPayload:   s.maxPayload,
			Upgrades:     s.upgrades(name),
		},
		Request:       session.NewRequest(r),
		SupportBinary: polling.SupportBinary(r),
	}

	var tr transport.Transport
	switch name {
	case transport.Polling:
		tr = polling.New(s.pollingOptions(v, r))
	case transport.Websocket:
		conn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			// the upgrader already answered
			s.log.V(1).Info("websocket handshake", "err", err)
			return
		}
		tr = websocket.New(conn, s.websocketOptions(v))
	}

	sess := session.New(cfg, tr, serverHandler{s})
	if err := sess.Open(); err != nil {
		s.log.Error(err, "open session", "sid", cfg.ID)
		if name == transport.Polling {
			writeError(w, BadRequest)
		}
		return
	}
	s.sessions.Add(sess)
	s.handler.OnConnect(sess)
	sess.Start()

	if name == transport.Polling {
		s.servePolling(w, r, sess)
	}
}

func (s *Server) upgrade(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	if !s.allowUpgrades || sess.Transport() != transport.Polling || !gorilla.IsWebSocketUpgrade(r) {
		writeError(w, BadRequest)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.V(1).Info("websocket handshake", "sid", sess.ID(), "err", err)
		return
	}

	ws := websocket.New(conn, s.websocketOptions(sess.Version()))
	if err := sess.Upgrade(ws, s.upgradeTimeout); err != nil {
		s.log.V(1).Info("upgrade", "sid", sess.ID(), "err", err)
	}
}

func (s *Server) servePolling(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	err := sess.ServePolling(w, r)
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled):
		// client went away
	case errors.Is(err, transport.ErrTransportMismatch):
		writeError(w, BadRequest)
	case errors.Is(err, session.ErrSessionClosed), errors.Is(err, transport.ErrClosed):
		writeError(w, UnknownSid)
	default:
		s.log.V(1).Info("polling", "sid", sess.ID(), "method", r.Method, "err", err)
		http.Error(w, err.Error(), transport.StatusCode(err))
	}
}

func (s *Server) pollingOptions(v packet.Version, r *http.Request) polling.Options {
	return polling.Options{
		Version:              v,
		SupportBinary:        polling.SupportBinary(r),
		MaxPayload:           s.maxPayload,
		CompressionThreshold: s.compression,
		CheckOrigin:          s.checkOrigin,
	}
}

func (s *Server) websocketOptions(v packet.Version) websocket.Options {
	return websocket.Options{
		Version:    v,
		MaxPayload: s.maxPayload,
	}
}

// serverHandler adapts the user Handler to session callbacks.
type serverHandler struct {
	s *Server
}

func (h serverHandler) OnPacket(sess *session.Session, p packet.Packet) {
	if p.Binary {
		h.s.handler.OnBinary(sess, p.Data)
		return
	}
	h.s.handler.OnMessage(sess, p.Data)
}

func (h serverHandler) OnClose(sess *session.Session, reason session.Reason) {
	h.s.sessions.Remove(sess.ID())
	h.s.handler.OnDisconnect(sess, reason)
}
