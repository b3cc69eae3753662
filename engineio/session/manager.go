package session

import (
	"hash/fnv"
	"sync"
)

const shardCount = 32

type shard struct {
	locker   sync.RWMutex
	sessions map[string]*Session
}

// Manager is the registry of live sessions, sharded by id so that lookups
// from many connections do not contend on one lock.
type Manager struct {
	IDGenerator

	shards [shardCount]*shard
}

func NewManager(gen IDGenerator) *Manager {
	if gen == nil {
		gen = DefaultIDGenerator{}
	}
	m := &Manager{
		IDGenerator: gen,
	}
	for i := range m.shards {
		m.shards[i] = &shard{sessions: make(map[string]*Session)}
	}
	return m
}

func (m *Manager) shard(sid string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(sid))
	return m.shards[h.Sum32()%shardCount]
}

func (m *Manager) Add(s *Session) {
	sh := m.shard(s.ID())
	sh.locker.Lock()
	defer sh.locker.Unlock()

	sh.sessions[s.ID()] = s
}

// Get returns the session with sid. A session returned while it is being
// closed fails its operations with ErrSessionClosed.
func (m *Manager) Get(sid string) (*Session, bool) {
	sh := m.shard(sid)
	sh.locker.RLock()
	defer sh.locker.RUnlock()

	s, ok := sh.sessions[sid]
	return s, ok
}

func (m *Manager) Remove(sid string) {
	sh := m.shard(sid)
	sh.locker.Lock()
	defer sh.locker.Unlock()

	delete(sh.sessions, sid)
}

func (m *Manager) Count() int {
	n := 0
	for _, sh := range m.shards {
		sh.locker.RLock()
		n += len(sh.sessions)
		sh.locker.RUnlock()
	}
	return n
}

// Range calls fn for every session until fn returns false.
func (m *Manager) Range(fn func(*Session) bool) {
	for _, sh := range m.shards {
		sh.locker.RLock()
		list := make([]*Session, 0, len(sh.sessions))
		for _, s := range sh.sessions {
			list = append(list, s)
		}
		sh.locker.RUnlock()

		for _, s := range list {
			if !fn(s) {
				return
			}
		}
	}
}
