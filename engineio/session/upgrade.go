package session

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/ioduplex/go-socket.io/engineio/packet"
	"github.com/ioduplex/go-socket.io/engineio/transport"
)

var probe = []byte("probe")

type drainer interface {
	WaitIdle(ctx context.Context) error
	Drain() []packet.Packet
}

// Upgrade runs the probe handshake on ws and, when the client confirms,
// makes ws the active transport. Packets still buffered on the old transport
// are flushed to ws in order. On failure ws is closed and the session keeps
// its current transport.
//
//	client                     server
//	2probe        ─────────►
//	              ◄─────────   3probe
//	5             ─────────►
func (s *Session) Upgrade(ws transport.Transport, timeout time.Duration) error {
	if !s.state.CompareAndSwap(int32(Open), int32(Upgrading)) {
		_ = ws.Close()
		return fmt.Errorf("%w: session is %s", ErrUpgrade, s.State())
	}

	s.upgradeLocker.Lock()
	s.probe = ws
	s.upgradeLocker.Unlock()

	if err := s.probeHandshake(ws, timeout); err != nil {
		s.upgradeLocker.Lock()
		s.probe = nil
		s.upgradeLocker.Unlock()
		s.state.CompareAndSwap(int32(Upgrading), int32(Open))
		_ = ws.Close()
		s.log.V(1).Info("upgrade failed", "err", err)
		return err
	}

	ctx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()

	s.upgradeLocker.Lock()
	old := s.tr
	d, ok := old.(drainer)
	if !ok {
		s.probe = nil
		s.upgradeLocker.Unlock()
		s.state.CompareAndSwap(int32(Upgrading), int32(Open))
		_ = ws.Close()
		return fmt.Errorf("%w: %s can not be upgraded", ErrUpgrade, old.Name())
	}

	_ = old.Close()
	if err := d.WaitIdle(ctx); err != nil {
		s.log.V(1).Info("wait polling request", "err", err)
	}
	rest := d.Drain()

	s.tr = ws
	s.probe = nil
	for _, p := range rest {
		if err := ws.Send(p); err != nil {
			s.log.V(1).Info("flush after upgrade", "err", err)
			break
		}
	}
	s.upgradeLocker.Unlock()

	if !s.state.CompareAndSwap(int32(Upgrading), int32(Upgraded)) {
		// closed while swapping
		_ = ws.Close()
		return ErrSessionClosed
	}

	go s.readLoop(ws)
	s.log.V(1).Info("upgraded", "transport", ws.Name(), "flushed", len(rest))
	return nil
}

func (s *Session) probeHandshake(ws transport.Transport, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()

	if s.cfg.Version == packet.V4 {
		// ends the parked poll so the client can pause polling
		if err := s.Send(packet.Packet{Type: packet.NOOP}); err != nil {
			return err
		}
	}

	p, err := ws.Recv(ctx)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrUpgrade, err)
	}
	if p.Type != packet.PING || !bytes.Equal(p.Data, probe) {
		return fmt.Errorf("%w: unexpected %s packet", ErrUpgrade, p.Type)
	}
	if err := ws.Send(packet.Packet{Type: packet.PONG, Data: probe}); err != nil {
		return err
	}

	if s.cfg.Version == packet.V3 {
		if err := s.Send(packet.Packet{Type: packet.NOOP}); err != nil {
			return err
		}
	}

	p, err = ws.Recv(ctx)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrUpgrade, err)
	}
	if p.Type != packet.UPGRADE {
		return fmt.Errorf("%w: unexpected %s packet", ErrUpgrade, p.Type)
	}
	return nil
}
