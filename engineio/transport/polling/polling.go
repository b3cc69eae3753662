// Package polling implements the HTTP long-polling transport. Outbound
// packets are buffered until a GET request collects them, inbound packets
// arrive in POST bodies.
package polling

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/ioduplex/go-socket.io/engineio/packet"
	"github.com/ioduplex/go-socket.io/engineio/payload"
	"github.com/ioduplex/go-socket.io/engineio/transport"
)

// Options configures a polling transport.
type Options struct {
	Version packet.Version
	// SupportBinary is false when the client asked for base64 (b64=1) or
	// JSONP.
	SupportBinary bool
	MaxPayload    int64
	// CompressionThreshold enables gzip for GET bodies at least that long.
	// Zero disables compression.
	CompressionThreshold int
	// CheckOrigin allows cross origin requests with CORS headers. Nil sends
	// no CORS headers.
	CheckOrigin func(r *http.Request) bool
}

// Transport is the polling transport of one session.
type Transport struct {
	opts Options

	mu     sync.Mutex
	queue  []packet.Packet
	notify chan struct{}

	parked   atomic.Bool
	released chan struct{}

	inbound chan packet.Packet

	closeOnce sync.Once
	done      chan struct{}
}

var _ transport.Transport = (*Transport)(nil)

// New creates a polling transport.
func New(opts Options) *Transport {
	return &Transport{
		opts:     opts,
		notify:   make(chan struct{}, 1),
		released: make(chan struct{}, 1),
		inbound:  make(chan packet.Packet),
		done:     make(chan struct{}),
	}
}

// Name is the name of transport.
func (t *Transport) Name() transport.Name {
	return transport.Polling
}

// Version returns the protocol version of the session.
func (t *Transport) Version() packet.Version {
	return t.opts.Version
}

// Send buffers p until the next GET. A parked GET is woken immediately.
func (t *Transport) Send(p packet.Packet) error {
	select {
	case <-t.done:
		return transport.ErrClosed
	default:
	}

	t.mu.Lock()
	t.queue = append(t.queue, p)
	t.mu.Unlock()

	select {
	case t.notify <- struct{}{}:
	default:
	}
	return nil
}

// Poll waits for buffered packets and takes as many as fit in one body.
// Only one Poll may be in flight, a second one returns
// transport.ErrOverlapped. After Close, Poll returns what is still buffered,
// then transport.ErrClosed.
func (t *Transport) Poll(ctx context.Context) ([]packet.Packet, error) {
	if !t.parked.CompareAndSwap(false, true) {
		return nil, transport.ErrOverlapped
	}
	defer t.release()

	for {
		if ps := t.take(); len(ps) > 0 {
			return ps, nil
		}

		select {
		case <-t.notify:
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-t.done:
			if ps := t.take(); len(ps) > 0 {
				return ps, nil
			}
			return nil, transport.ErrClosed
		}
	}
}

func (t *Transport) release() {
	t.parked.Store(false)
	select {
	case t.released <- struct{}{}:
	default:
	}
}

func (t *Transport) take() []packet.Packet {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := payload.Fit(t.queue, t.opts.MaxPayload)
	if n == 0 {
		return nil
	}
	ret := make([]packet.Packet, n)
	copy(ret, t.queue)
	t.queue = t.queue[n:]
	if len(t.queue) == 0 {
		t.queue = nil
	}
	return ret
}

// WaitIdle blocks until no GET is parked.
func (t *Transport) WaitIdle(ctx context.Context) error {
	for t.parked.Load() {
		select {
		case <-t.released:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Drain removes and returns every buffered packet.
func (t *Transport) Drain() []packet.Packet {
	t.mu.Lock()
	defer t.mu.Unlock()

	ret := t.queue
	t.queue = nil
	return ret
}

// Feed hands an inbound packet to the Recv caller. It blocks until the packet
// is taken, the transport closes or ctx is done.
func (t *Transport) Feed(ctx context.Context, p packet.Packet) error {
	select {
	case t.inbound <- p:
		return nil
	case <-t.done:
		return transport.ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Recv returns the next packet posted by the client.
func (t *Transport) Recv(ctx context.Context) (packet.Packet, error) {
	select {
	case p := <-t.inbound:
		return p, nil
	case <-t.done:
		return packet.Packet{}, transport.ErrClosed
	case <-ctx.Done():
		return packet.Packet{}, ctx.Err()
	}
}

// Close closes the transport and wakes a parked GET.
func (t *Transport) Close() error {
	t.closeOnce.Do(func() {
		close(t.done)
	})
	return nil
}

// Done is closed when the transport is closed.
func (t *Transport) Done() <-chan struct{} {
	return t.done
}
