package socketio

import (
	"errors"
	"regexp"
	"sort"
	"strings"
	"sync"
)

type pattern struct {
	re      *regexp.Regexp
	handler *namespaceHandler
}

// namespaces is the registry of a server. Dynamic namespaces are created on
// the first connect to a path matching one of the patterns.
type namespaces struct {
	server *Server

	mu         sync.RWMutex
	namespaces map[string]*Namespace
	patterns   []pattern
}

func newNamespaces(server *Server) *namespaces {
	return &namespaces{
		server:     server,
		namespaces: make(map[string]*Namespace),
	}
}

func normalizeNamespace(nsp string) string {
	if nsp == "" {
		return rootNamespace
	}
	if !strings.HasPrefix(nsp, "/") {
		return "/" + nsp
	}
	return nsp
}

func (n *namespaces) Get(nsp string) (*Namespace, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	ns, ok := n.namespaces[normalizeNamespace(nsp)]
	return ns, ok
}

// GetOrCreate returns the namespace, registering it when missing.
func (n *namespaces) GetOrCreate(nsp string) *Namespace {
	nsp = normalizeNamespace(nsp)
	if ns, ok := n.Get(nsp); ok {
		return ns
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if ns, ok := n.namespaces[nsp]; ok {
		return ns
	}
	ns := newNamespace(nsp, n.server, newNamespaceHandler())
	n.namespaces[nsp] = ns
	return ns
}

// AddPattern registers a dynamic parent and returns the handler its children
// share.
func (n *namespaces) AddPattern(re *regexp.Regexp) *namespaceHandler {
	n.mu.Lock()
	defer n.mu.Unlock()

	for _, p := range n.patterns {
		if p.re.String() == re.String() {
			return p.handler
		}
	}
	h := newNamespaceHandler()
	n.patterns = append(n.patterns, pattern{re: re, handler: h})
	return h
}

// Lookup finds the namespace a client connects to.
func (n *namespaces) Lookup(nsp string) (*Namespace, bool) {
	nsp = normalizeNamespace(nsp)
	if ns, ok := n.Get(nsp); ok {
		return ns, true
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if ns, ok := n.namespaces[nsp]; ok {
		return ns, true
	}
	for _, p := range n.patterns {
		if p.re.MatchString(nsp) {
			ns := newNamespace(nsp, n.server, p.handler)
			n.namespaces[nsp] = ns
			return ns, true
		}
	}
	return nil, false
}

func (n *namespaces) Range(fn func(ns *Namespace)) {
	n.mu.RLock()
	list := make([]*Namespace, 0, len(n.namespaces))
	for _, ns := range n.namespaces {
		list = append(list, ns)
	}
	n.mu.RUnlock()

	for _, ns := range list {
		fn(ns)
	}
}

func (n *namespaces) Names() []string {
	n.mu.RLock()
	defer n.mu.RUnlock()

	ret := make([]string, 0, len(n.namespaces))
	for name := range n.namespaces {
		ret = append(ret, name)
	}
	sort.Strings(ret)
	return ret
}

// ParentNamespace registers handlers for every namespace matching a pattern.
type ParentNamespace struct {
	re       *regexp.Regexp
	template *Namespace
	server   *Server
}

// OnConnect sets the connect handler of the children.
func (p *ParentNamespace) OnConnect(f func(Conn) error) {
	p.template.OnConnect(f)
}

// OnDisconnect sets the disconnect handler of the children.
func (p *ParentNamespace) OnDisconnect(f func(Conn, string)) {
	p.template.OnDisconnect(f)
}

// OnError sets the error handler of the children.
func (p *ParentNamespace) OnError(f func(Conn, error)) {
	p.template.OnError(f)
}

// OnEvent sets an event handler of the children.
func (p *ParentNamespace) OnEvent(event string, f interface{}) {
	p.template.OnEvent(event, f)
}

// Children returns the namespaces created from the pattern so far.
func (p *ParentNamespace) Children() []*Namespace {
	var ret []*Namespace
	p.server.namespaces.Range(func(ns *Namespace) {
		if ns.handler == p.template.handler {
			ret = append(ret, ns)
		}
	})
	sort.Slice(ret, func(i, j int) bool { return ret[i].name < ret[j].name })
	return ret
}

// Emit sends an event to every socket of every child.
func (p *ParentNamespace) Emit(event string, args ...interface{}) error {
	var errs []error
	for _, ns := range p.Children() {
		if err := ns.Emit(event, args...); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
