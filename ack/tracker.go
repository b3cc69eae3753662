// Package ack tracks the acknowledgements the server waits for.
package ack

import (
	"sync"
	"time"

	"github.com/go-logr/logr"

	"github.com/ioduplex/go-socket.io/logger"
	"github.com/ioduplex/go-socket.io/parser"
)

// Callback receives the ack packet, or nil and the reason no ack will come.
// It is called exactly once.
type Callback func(p *parser.Packet, err error)

type entry struct {
	deadline time.Time
	cb       Callback
}

type table struct {
	mu      sync.Mutex
	next    uint64
	pending map[uint64]entry
	closed  bool
}

// Tracker holds pending acks grouped by owner. Ids are assigned per owner,
// start at 0 and never repeat.
type Tracker struct {
	tables sync.Map

	closeOnce sync.Once
	done      chan struct{}
	log       logr.Logger
}

// NewTracker starts a tracker that expires entries every sweep.
func NewTracker(sweep time.Duration) *Tracker {
	t := &Tracker{
		done: make(chan struct{}),
		log:  logger.GetLogger("ack"),
	}
	go t.sweepLoop(sweep)
	return t
}

// Open prepares the table of owner. Register fails for owners that were
// never opened or were cancelled since.
func (t *Tracker) Open(owner string) {
	select {
	case <-t.done:
		return
	default:
	}
	t.tables.LoadOrStore(owner, &table{pending: make(map[uint64]entry)})
}

// Register allocates the next ack id of owner. cb is called when the ack is
// resolved, when timeout elapses or when the owner is cancelled.
func (t *Tracker) Register(owner string, timeout time.Duration, cb Callback) (uint64, error) {
	select {
	case <-t.done:
		return 0, ErrTrackerClosed
	default:
	}

	v, ok := t.tables.Load(owner)
	if !ok {
		return 0, ErrSessionClosed
	}
	tb := v.(*table)
	tb.mu.Lock()
	defer tb.mu.Unlock()

	if tb.closed {
		return 0, ErrSessionClosed
	}
	id := tb.next
	tb.next++
	tb.pending[id] = entry{deadline: time.Now().Add(timeout), cb: cb}
	return id, nil
}

// Resolve hands p to the callback waiting on (owner, id). It reports false
// when nothing waits, as for a late or repeated ack.
func (t *Tracker) Resolve(owner string, id uint64, p *parser.Packet) bool {
	v, ok := t.tables.Load(owner)
	if !ok {
		return false
	}
	tb := v.(*table)

	tb.mu.Lock()
	e, ok := tb.pending[id]
	delete(tb.pending, id)
	tb.mu.Unlock()

	if !ok {
		t.log.V(1).Info("stale ack", "socket", owner, "ack", id, "err", ErrNoMatch)
		return false
	}
	e.cb(p, nil)
	return true
}

// Pending counts the entries waiting on owner.
func (t *Tracker) Pending(owner string) int {
	v, ok := t.tables.Load(owner)
	if !ok {
		return 0
	}
	tb := v.(*table)
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return len(tb.pending)
}

// CancelSession fails every entry of owner with ErrSessionClosed right away
// and drops its table. Registers racing with it fail the same way.
func (t *Tracker) CancelSession(owner string) {
	v, ok := t.tables.LoadAndDelete(owner)
	if !ok {
		return
	}
	tb := v.(*table)

	tb.mu.Lock()
	tb.closed = true
	pending := tb.pending
	tb.pending = nil
	tb.mu.Unlock()

	for _, e := range pending {
		e.cb(nil, ErrSessionClosed)
	}
}

// Close stops the sweep and fails all entries with ErrTrackerClosed.
func (t *Tracker) Close() {
	t.closeOnce.Do(func() {
		close(t.done)
		t.tables.Range(func(key, v interface{}) bool {
			t.tables.Delete(key)
			tb := v.(*table)

			tb.mu.Lock()
			tb.closed = true
			pending := tb.pending
			tb.pending = nil
			tb.mu.Unlock()

			for _, e := range pending {
				e.cb(nil, ErrTrackerClosed)
			}
			return true
		})
	})
}

func (t *Tracker) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-t.done:
			return
		case now := <-ticker.C:
			t.sweep(now)
		}
	}
}

func (t *Tracker) sweep(now time.Time) {
	t.tables.Range(func(key, v interface{}) bool {
		tb := v.(*table)

		var expired []entry
		tb.mu.Lock()
		for id, e := range tb.pending {
			if !now.Before(e.deadline) {
				expired = append(expired, e)
				delete(tb.pending, id)
			}
		}
		tb.mu.Unlock()

		for _, e := range expired {
			e.cb(nil, ErrTimeout)
		}
		if len(expired) > 0 {
			t.log.V(1).Info("acks expired", "socket", key, "count", len(expired))
		}
		return true
	})
}
