package session

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-logr/logr"

	"github.com/ioduplex/go-socket.io/engineio/packet"
	"github.com/ioduplex/go-socket.io/engineio/transport"
	"github.com/ioduplex/go-socket.io/engineio/transport/polling"
	"github.com/ioduplex/go-socket.io/logger"
)

// Handler receives what a session reads. Calls for one session are made from
// one goroutine at a time, in arrival order.
type Handler interface {
	// OnPacket is called with every message packet.
	OnPacket(s *Session, p packet.Packet)
	// OnClose is called once, after the transport was released.
	OnClose(s *Session, reason Reason)
}

// Config is the per session configuration.
type Config struct {
	ID      string
	Version packet.Version
	Params  transport.ConnParameters
	Request Request
	// SupportBinary is false when a polling client asked for base64.
	SupportBinary bool
}

// Session is one engine.io connection. It owns exactly one active transport
// at a time.
type Session struct {
	cfg     Config
	handler Handler
	log     logr.Logger

	upgradeLocker sync.RWMutex
	tr            transport.Transport
	probe         transport.Transport
	context       interface{}

	state     atomic.Int32
	heartbeat chan []byte

	ctx       context.Context
	cancel    context.CancelFunc
	startOnce sync.Once
	closeOnce sync.Once
	reason    Reason
}

// New creates a session in Connecting state on tr.
func New(cfg Config, tr transport.Transport, handler Handler) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	cfg.Params.SID = cfg.ID
	return &Session{
		cfg:       cfg,
		handler:   handler,
		log:       logger.GetLogger("engineio.session").WithValues("sid", cfg.ID),
		tr:        tr,
		heartbeat: make(chan []byte, 1),
		ctx:       ctx,
		cancel:    cancel,
	}
}

func (s *Session) ID() string {
	return s.cfg.ID
}

func (s *Session) Version() packet.Version {
	return s.cfg.Version
}

// SupportBinary reports whether binary packets can be sent raw.
func (s *Session) SupportBinary() bool {
	return s.cfg.SupportBinary || s.Transport() == transport.Websocket
}

func (s *Session) State() State {
	return State(s.state.Load())
}

// Params returns the parameters sent in the open packet.
func (s *Session) Params() transport.ConnParameters {
	return s.cfg.Params
}

func (s *Session) SetContext(v interface{}) {
	s.upgradeLocker.Lock()
	defer s.upgradeLocker.Unlock()

	s.context = v
}

func (s *Session) Context() interface{} {
	s.upgradeLocker.RLock()
	defer s.upgradeLocker.RUnlock()

	return s.context
}

// Done is closed once the session starts closing.
func (s *Session) Done() <-chan struct{} {
	return s.ctx.Done()
}

// Reason returns why the session closed. It is empty while the session is
// live.
func (s *Session) Reason() Reason {
	if s.State() != Closed {
		return ""
	}
	return s.reason
}

func (s *Session) Transport() transport.Name {
	return s.transport().Name()
}

func (s *Session) transport() transport.Transport {
	s.upgradeLocker.RLock()
	defer s.upgradeLocker.RUnlock()

	return s.tr
}

func (s *Session) URL() url.URL {
	return s.cfg.Request.URL
}

func (s *Session) LocalAddr() net.Addr {
	return Addr(s.cfg.Request.Host)
}

func (s *Session) RemoteAddr() net.Addr {
	return Addr(s.cfg.Request.RemoteAddr)
}

func (s *Session) RemoteHeader() http.Header {
	return s.cfg.Request.Header
}

// Open sends the open packet. Nothing is read until Start.
func (s *Session) Open() error {
	if !s.state.CompareAndSwap(int32(Connecting), int32(Open)) {
		return ErrSessionClosed
	}

	tr := s.transport()
	open := packet.Packet{Type: packet.OPEN, Data: s.cfg.Params.Marshal()}
	if err := tr.Send(open); err != nil {
		s.terminate(ReasonTransportError)
		return err
	}

	s.log.V(1).Info("session opened", "transport", tr.Name(), "version", s.cfg.Version)
	return nil
}

// Start arms the heartbeat and starts reading the active transport.
func (s *Session) Start() {
	s.startOnce.Do(func() {
		go s.heartbeatLoop()
		go s.readLoop(s.transport())
	})
}

// Send sends p on the active transport.
func (s *Session) Send(p packet.Packet) error {
	if s.State() >= Closing {
		return ErrSessionClosed
	}

	s.upgradeLocker.RLock()
	defer s.upgradeLocker.RUnlock()

	err := s.tr.Send(p)
	if errors.Is(err, transport.ErrClosed) && s.State() >= Closing {
		return ErrSessionClosed
	}
	return err
}

// WriteMessage sends a text message.
func (s *Session) WriteMessage(data []byte) error {
	return s.Send(packet.Packet{Type: packet.MESSAGE, Data: data})
}

// WriteBinary sends a binary message.
func (s *Session) WriteBinary(data []byte) error {
	return s.Send(packet.Packet{Type: packet.MESSAGE, Data: data, Binary: true})
}

// Close closes the session, telling the client with a close packet.
func (s *Session) Close(reason Reason) {
	s.terminate(reason, packet.Packet{Type: packet.CLOSE})
}

// ServePolling serves a polling GET or POST of this session. Failures that
// end the session close it with the matching reason before returning.
func (s *Session) ServePolling(w http.ResponseWriter, r *http.Request) error {
	if s.State() >= Closing {
		return ErrSessionClosed
	}
	pt, ok := s.transport().(*polling.Transport)
	if !ok {
		return transport.ErrTransportMismatch
	}

	switch r.Method {
	case http.MethodGet:
		err := pt.ServeGet(w, r)
		if errors.Is(err, transport.ErrOverlapped) {
			// the parked GET still ends with the close packet
			s.terminate(ReasonMultiplePolling, packet.Packet{Type: packet.CLOSE})
		}
		return err
	case http.MethodPost:
		err := pt.ServePost(w, r)
		if packet.IsCodecError(err) {
			s.terminate(ReasonParseError)
		}
		return err
	}
	return transport.HTTPErr(errors.New("invalid method"), http.StatusBadRequest)
}

func (s *Session) readLoop(tr transport.Transport) {
	for {
		p, err := tr.Recv(s.ctx)
		if err != nil {
			if s.ctx.Err() != nil || s.transport() != tr {
				return
			}
			switch {
			case errors.Is(err, transport.ErrClosed):
				s.terminate(ReasonTransportClose)
			case packet.IsCodecError(err):
				s.log.V(1).Info("invalid packet", "err", err)
				s.terminate(ReasonParseError)
			default:
				s.log.V(1).Info("transport failed", "err", err)
				s.terminate(ReasonTransportError)
			}
			return
		}
		s.onPacket(p)
	}
}

func (s *Session) onPacket(p packet.Packet) {
	s.log.V(2).Info("recv", "type", p.Type, "len", len(p.Data))

	switch p.Type {
	case packet.PING:
		if s.cfg.Version == packet.V3 {
			if err := s.Send(packet.Packet{Type: packet.PONG, Data: p.Data}); err != nil {
				s.log.V(1).Info("pong failed", "err", err)
			}
		}
		s.beat(p.Data)
	case packet.PONG:
		s.beat(p.Data)
	case packet.MESSAGE:
		s.handler.OnPacket(s, p)
	case packet.CLOSE:
		s.terminate(ReasonTransportClose, packet.Packet{Type: packet.NOOP})
	case packet.NOOP:
	default:
		s.log.V(1).Info("unexpected packet", "type", p.Type)
	}
}

func (s *Session) beat(data []byte) {
	select {
	case s.heartbeat <- data:
	default:
	}
}

// heartbeatLoop runs the ping cycle. In v4 the server pings every
// PingInterval and waits PingTimeout for the pong. In v3 the client pings and
// the session dies when no ping arrives within PingInterval+PingTimeout.
func (s *Session) heartbeatLoop() {
	interval := s.cfg.Params.PingInterval
	timeout := s.cfg.Params.PingTimeout

	if s.cfg.Version == packet.V3 {
		timer := time.NewTimer(interval + timeout)
		defer timer.Stop()
		for {
			select {
			case <-s.ctx.Done():
				return
			case <-s.heartbeat:
				if !timer.Stop() {
					<-timer.C
				}
				timer.Reset(interval + timeout)
			case <-timer.C:
				s.terminate(ReasonPingTimeout)
				return
			}
		}
	}

	timer := time.NewTimer(interval)
	defer timer.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-timer.C:
		}

		select {
		case <-s.heartbeat:
		default:
		}
		if err := s.Send(packet.Packet{Type: packet.PING}); err != nil {
			return
		}

		timer.Reset(timeout)
		select {
		case <-s.ctx.Done():
			return
		case <-s.heartbeat:
			if !timer.Stop() {
				<-timer.C
			}
			timer.Reset(interval)
		case <-timer.C:
			s.terminate(ReasonPingTimeout)
			return
		}
	}
}

// terminate closes the session once. farewell packets are sent on the
// active transport before it is released.
func (s *Session) terminate(reason Reason, farewell ...packet.Packet) {
	s.closeOnce.Do(func() {
		s.state.Store(int32(Closing))

		s.upgradeLocker.RLock()
		tr, probe := s.tr, s.probe
		s.upgradeLocker.RUnlock()

		for _, p := range farewell {
			if err := tr.Send(p); err != nil {
				s.log.V(1).Info("send farewell", "type", p.Type, "err", err)
			}
		}
		s.cancel()
		if err := tr.Close(); err != nil {
			s.log.V(1).Info("close transport", "err", err)
		}
		if probe != nil {
			if err := probe.Close(); err != nil {
				s.log.V(1).Info("close probe", "err", err)
			}
		}

		s.reason = reason
		s.state.Store(int32(Closed))
		s.log.V(1).Info("session closed", "reason", reason)
		s.handler.OnClose(s, reason)
	})
}
