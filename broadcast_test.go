package socketio

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
)

func ids(conns []Conn) []string {
	ret := make([]string, len(conns))
	for i, c := range conns {
		ret[i] = c.ID()
	}
	sort.Strings(ret)
	return ret
}

func TestBroadcast(t *testing.T) {
	should := assert.New(t)

	bc := newBroadcast()
	a, b, c := &socket{id: "a"}, &socket{id: "b"}, &socket{id: "c"}
	for _, s := range []*socket{a, b, c} {
		bc.Add(s)
	}

	bc.Join(a, "lobby", "red")
	bc.Join(b, "lobby")

	should.Equal(2, bc.Len("lobby"))
	should.Equal([]string{"a", "lobby", "red"}, bc.Rooms(a))
	should.Equal([]string{"a", "b", "c", "lobby", "red"}, bc.Rooms(nil))

	should.Equal([]string{"a", "b", "c"}, ids(bc.Select(nil, nil)))
	should.Equal([]string{"a", "b"}, ids(bc.Select([]string{"lobby"}, nil)))
	should.Equal([]string{"a", "b"}, ids(bc.Select([]string{"lobby", "red"}, nil)))
	should.Equal([]string{"b"}, ids(bc.Select([]string{"lobby"}, []string{"red"})))
	should.Equal([]string{"c"}, ids(bc.Select(nil, []string{"lobby"})))
	should.Empty(bc.Select([]string{"nobody"}, nil))

	var visited []Conn
	bc.ForEach("lobby", func(c Conn) { visited = append(visited, c) })
	should.Equal([]string{"a", "b"}, ids(visited))

	bc.Leave(a, "lobby")
	should.Equal(1, bc.Len("lobby"))
	should.Equal([]string{"a", "red"}, bc.Rooms(a))

	bc.Leave(a, "red")
	should.NotContains(bc.Rooms(nil), "red")

	bc.Clear("lobby")
	should.Zero(bc.Len("lobby"))
	should.Equal([]string{"b"}, bc.Rooms(b))

	bc.Join(c, "blue", "green")
	bc.LeaveAll(c, c.id)
	should.Equal([]string{"c"}, bc.Rooms(c))

	// members stay selectable without any room
	bc.LeaveAll(c)
	should.Empty(bc.Rooms(c))
	should.Equal([]string{"a", "b", "c"}, ids(bc.Select(nil, nil)))
	should.Equal([]string{"a", "b", "c"}, ids(bc.Select(nil, []string{"c"})))
	should.False(bc.InAny("c", []string{"c"}))
	should.True(bc.InAny("a", []string{"nobody", "a"}))

	bc.Remove(c)
	should.Equal([]string{"a", "b"}, ids(bc.Select(nil, nil)))
	should.NotContains(bc.Rooms(nil), "c")
}
