package transport

// Manager keeps the enabled transports in upgrade order.
type Manager struct {
	order   []Name
	enabled map[Name]struct{}
}

// NewManager creates a new manager.
func NewManager(names []Name) *Manager {
	enabled := make(map[Name]struct{}, len(names))
	order := make([]Name, 0, len(names))
	for _, n := range names {
		if _, ok := enabled[n]; ok {
			continue
		}
		enabled[n] = struct{}{}
		order = append(order, n)
	}

	return &Manager{
		order:   order,
		enabled: enabled,
	}
}

// UpgradeFrom returns a name list of transports which can upgrade from given
// name.
func (m *Manager) UpgradeFrom(name Name) []Name {
	for i, n := range m.order {
		if n == name {
			ret := make([]Name, len(m.order)-i-1)
			copy(ret, m.order[i+1:])
			return ret
		}
	}
	return nil
}

// Enabled reports whether the transport with given name is allowed.
func (m *Manager) Enabled(name Name) bool {
	_, ok := m.enabled[name]
	return ok
}

// Names returns enabled transports in order.
func (m *Manager) Names() []Name {
	ret := make([]Name, len(m.order))
	copy(ret, m.order)
	return ret
}
