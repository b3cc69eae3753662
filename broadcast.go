package socketio

import (
	"sort"
	"sync"
)

// broadcast keeps the rooms of one namespace. Every member starts in the
// room named after its id.
// map of rooms where each room contains a map of connection id to connections
// in that room, and the reverse index from connection id to rooms.
type broadcast struct {
	members map[string]Conn
	rooms   map[string]map[string]Conn
	sids    map[string]map[string]struct{}

	lock sync.RWMutex
}

func newBroadcast() *broadcast {
	return &broadcast{
		members: make(map[string]Conn),
		rooms:   make(map[string]map[string]Conn),
		sids:    make(map[string]map[string]struct{}),
	}
}

// Add registers a connected socket and joins it to its own room. Members
// are selected by namespace wide broadcasts whatever rooms they are in.
func (bc *broadcast) Add(connection Conn) {
	bc.lock.Lock()
	defer bc.lock.Unlock()

	id := connection.ID()
	bc.members[id] = connection
	bc.join(connection, id)
}

// Remove leaves every room and drops the member.
func (bc *broadcast) Remove(connection Conn) {
	bc.lock.Lock()
	defer bc.lock.Unlock()

	id := connection.ID()
	bc.leaveAll(id)
	delete(bc.members, id)
}

// Join joins the given connection to the rooms
func (bc *broadcast) Join(connection Conn, rooms ...string) {
	bc.lock.Lock()
	defer bc.lock.Unlock()

	bc.join(connection, rooms...)
}

func (bc *broadcast) join(connection Conn, rooms ...string) {
	id := connection.ID()
	if _, ok := bc.sids[id]; !ok {
		bc.sids[id] = make(map[string]struct{})
	}
	for _, room := range rooms {
		if _, ok := bc.rooms[room]; !ok {
			bc.rooms[room] = make(map[string]Conn)
		}
		bc.rooms[room][id] = connection
		bc.sids[id][room] = struct{}{}
	}
}

// Leave leaves the given connection from given room (if exist)
func (bc *broadcast) Leave(connection Conn, room string) {
	bc.lock.Lock()
	defer bc.lock.Unlock()

	bc.leave(connection.ID(), room)
}

func (bc *broadcast) leave(id, room string) {
	if connections, ok := bc.rooms[room]; ok {
		delete(connections, id)

		if len(connections) == 0 {
			delete(bc.rooms, room)
		}
	}
	if rooms, ok := bc.sids[id]; ok {
		delete(rooms, room)
	}
}

// LeaveAll leaves the given connection from all rooms except those in keep
func (bc *broadcast) LeaveAll(connection Conn, keep ...string) {
	bc.lock.Lock()
	defer bc.lock.Unlock()

	id := connection.ID()
	if len(keep) == 0 {
		bc.leaveAll(id)
		return
	}
	kept := make(map[string]struct{}, len(keep))
	for _, room := range keep {
		kept[room] = struct{}{}
	}
	for room := range bc.sids[id] {
		if _, ok := kept[room]; !ok {
			bc.leave(id, room)
		}
	}
}

func (bc *broadcast) leaveAll(id string) {
	for room := range bc.sids[id] {
		bc.leave(id, room)
	}
	delete(bc.sids, id)
}

// InAny reports whether the connection with id is in any of rooms.
func (bc *broadcast) InAny(id string, rooms []string) bool {
	bc.lock.RLock()
	defer bc.lock.RUnlock()

	for _, room := range rooms {
		if _, ok := bc.rooms[room][id]; ok {
			return true
		}
	}
	return false
}

// Clear clears the room
func (bc *broadcast) Clear(room string) {
	bc.lock.Lock()
	defer bc.lock.Unlock()

	for id := range bc.rooms[room] {
		delete(bc.sids[id], room)
	}
	delete(bc.rooms, room)
}

// ForEach calls f for every connection in the room
func (bc *broadcast) ForEach(room string, f EachFunc) {
	for _, connection := range bc.Select([]string{room}, nil) {
		f(connection)
	}
}

// Select returns the connections in any of rooms, or every member when
// rooms is empty, minus those in any of except.
func (bc *broadcast) Select(rooms, except []string) []Conn {
	bc.lock.RLock()
	defer bc.lock.RUnlock()

	excluded := make(map[string]struct{})
	for _, room := range except {
		for id := range bc.rooms[room] {
			excluded[id] = struct{}{}
		}
	}

	seen := make(map[string]struct{})
	var ret []Conn
	add := func(id string, connection Conn) {
		if _, ok := excluded[id]; ok {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		ret = append(ret, connection)
	}

	if len(rooms) == 0 {
		for id, connection := range bc.members {
			add(id, connection)
		}
		return ret
	}
	for _, room := range rooms {
		for id, connection := range bc.rooms[room] {
			add(id, connection)
		}
	}
	return ret
}

// Len gives number of connections in the room
func (bc *broadcast) Len(room string) int {
	bc.lock.RLock()
	defer bc.lock.RUnlock()

	return len(bc.rooms[room])
}

// Rooms gives the list of all the rooms in case of no connection is given,
// in case of a connection is given, it gives list of all the rooms the
// connection is joined to
func (bc *broadcast) Rooms(connection Conn) []string {
	bc.lock.RLock()
	defer bc.lock.RUnlock()

	var rooms []string
	if connection == nil {
		rooms = make([]string, 0, len(bc.rooms))
		for room := range bc.rooms {
			rooms = append(rooms, room)
		}
	} else {
		for room := range bc.sids[connection.ID()] {
			rooms = append(rooms, room)
		}
	}
	sort.Strings(rooms)

	return rooms
}
