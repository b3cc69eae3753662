// Package websocket implements the websocket transport on top of
// gorilla/websocket.
package websocket

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/ioduplex/go-socket.io/engineio/packet"
	"github.com/ioduplex/go-socket.io/engineio/transport"
)

const (
	defaultWriteTimeout = 10 * time.Second
	defaultSendBuffer   = 128
)

// Options configures a websocket transport.
type Options struct {
	Version      packet.Version
	MaxPayload   int64
	WriteTimeout time.Duration
	SendBuffer   int
}

func (o *Options) getWriteTimeout() time.Duration {
	if o != nil && o.WriteTimeout > 0 {
		return o.WriteTimeout
	}
	return defaultWriteTimeout
}

func (o *Options) getSendBuffer() int {
	if o != nil && o.SendBuffer > 0 {
		return o.SendBuffer
	}
	return defaultSendBuffer
}

// NewUpgrader returns the upgrader used to accept websocket requests.
// A nil checkOrigin accepts every origin.
func NewUpgrader(checkOrigin func(*http.Request) bool, compression bool) *websocket.Upgrader {
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return &websocket.Upgrader{
		CheckOrigin:       checkOrigin,
		EnableCompression: compression,
	}
}

type message struct {
	typ  int
	data []byte
}

// Transport is the websocket transport of one session. Outbound frames are
// written by a single writer goroutine.
type Transport struct {
	conn *websocket.Conn
	opts Options

	out   chan message
	group errgroup.Group

	closeOnce sync.Once
	done      chan struct{}
}

var _ transport.Transport = (*Transport)(nil)

// New wraps conn and starts its writer.
func New(conn *websocket.Conn, opts Options) *Transport {
	if opts.MaxPayload > 0 {
		conn.SetReadLimit(opts.MaxPayload)
	}
	t := &Transport{
		conn: conn,
		opts: opts,
		out:  make(chan message, opts.getSendBuffer()),
		done: make(chan struct{}),
	}
	t.group.Go(t.writeLoop)
	return t
}

// Name is the name of transport.
func (t *Transport) Name() transport.Name {
	return transport.Websocket
}

// Send queues p for the writer. Noop packets only exist to end a parked
// polling request and are dropped. Close packets are sent as a close frame
// by Close.
func (t *Transport) Send(p packet.Packet) error {
	select {
	case <-t.done:
		return transport.ErrClosed
	default:
	}
	if p.Type == packet.NOOP || p.Type == packet.CLOSE {
		return nil
	}

	data, binary := packet.Encode(p, t.opts.Version)
	m := message{typ: websocket.TextMessage, data: data}
	if binary {
		m.typ = websocket.BinaryMessage
	}

	select {
	case t.out <- m:
		return nil
	case <-t.done:
		return transport.ErrClosed
	}
}

// Recv reads the next frame. Once ctx is done the connection can no longer
// be read from.
func (t *Transport) Recv(ctx context.Context) (packet.Packet, error) {
	stop := context.AfterFunc(ctx, func() {
		_ = t.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	typ, data, err := t.conn.ReadMessage()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return packet.Packet{}, ctxErr
		}
		select {
		case <-t.done:
			return packet.Packet{}, transport.ErrClosed
		default:
		}
		var ce *websocket.CloseError
		if errors.As(err, &ce) {
			return packet.Packet{}, transport.ErrClosed
		}
		return packet.Packet{}, err
	}

	switch typ {
	case websocket.TextMessage:
		return packet.Decode(data, false, t.opts.Version)
	case websocket.BinaryMessage:
		return packet.Decode(data, true, t.opts.Version)
	}
	return packet.Packet{}, transport.ErrInvalidFrame
}

// Close flushes queued frames, sends a close frame and closes the
// connection.
func (t *Transport) Close() error {
	t.markDone()
	err := t.group.Wait()
	_ = t.conn.Close()
	return err
}

// Done is closed when the transport is closed.
func (t *Transport) Done() <-chan struct{} {
	return t.done
}

func (t *Transport) markDone() {
	t.closeOnce.Do(func() {
		close(t.done)
	})
}

func (t *Transport) writeLoop() error {
	for {
		select {
		case m := <-t.out:
			if err := t.write(m); err != nil {
				t.markDone()
				_ = t.conn.Close()
				return err
			}
		case <-t.done:
			t.flush()
			deadline := time.Now().Add(time.Second)
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			_ = t.conn.WriteControl(websocket.CloseMessage, msg, deadline)
			return nil
		}
	}
}

func (t *Transport) flush() {
	for {
		select {
		case m := <-t.out:
			if err := t.write(m); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (t *Transport) write(m message) error {
	if err := t.conn.SetWriteDeadline(time.Now().Add(t.opts.getWriteTimeout())); err != nil {
		return err
	}
	return t.conn.WriteMessage(m.typ, m.data)
}
