package socketio

import (
	"encoding/json"
	"errors"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ioduplex/go-socket.io/ack"
	"github.com/ioduplex/go-socket.io/engineio"
	"github.com/ioduplex/go-socket.io/engineio/session"
	"github.com/ioduplex/go-socket.io/extensions"
)

func newTestServer(t *testing.T, opts *Options) (*Server, *httptest.Server) {
	t.Helper()
	if opts == nil {
		opts = &Options{}
	}
	if opts.Options == nil {
		opts.Options = &engineio.Options{}
	}
	opts.SessionIDGenerator = &session.SequenceIDGenerator{}

	srv := NewServer(opts)
	hs := httptest.NewServer(srv)
	t.Cleanup(func() {
		_ = srv.Close()
		hs.Close()
	})
	return srv, hs
}

type testClient struct {
	t    *testing.T
	conn *websocket.Conn
	open map[string]interface{}
}

func dial(t *testing.T, hs *httptest.Server, eio string) *testClient {
	t.Helper()
	u := "ws" + strings.TrimPrefix(hs.URL, "http") + "/socket.io/?EIO=" + eio + "&transport=websocket&token=abc"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	c := &testClient{t: t, conn: conn}
	open := c.read()
	require.True(t, strings.HasPrefix(open, "0"), open)
	require.NoError(t, json.Unmarshal([]byte(open[1:]), &c.open))
	return c
}

func (c *testClient) frame(timeout time.Duration) (int, []byte, error) {
	_ = c.conn.SetReadDeadline(time.Now().Add(timeout))
	return c.conn.ReadMessage()
}

// read returns the next text frame, skipping pings.
func (c *testClient) read() string {
	c.t.Helper()
	for {
		typ, data, err := c.frame(2 * time.Second)
		require.NoError(c.t, err)
		require.Equal(c.t, websocket.TextMessage, typ)
		if string(data) == "2" {
			continue
		}
		return string(data)
	}
}

func (c *testClient) readBinary() []byte {
	c.t.Helper()
	typ, data, err := c.frame(2 * time.Second)
	require.NoError(c.t, err)
	require.Equal(c.t, websocket.BinaryMessage, typ)
	return data
}

func (c *testClient) silent(d time.Duration) {
	c.t.Helper()
	_, data, err := c.frame(d)
	require.Error(c.t, err, "unexpected frame %q", data)
}

func (c *testClient) write(s string) {
	c.t.Helper()
	require.NoError(c.t, c.conn.WriteMessage(websocket.TextMessage, []byte(s)))
}

// connect joins nsp and returns the socket id.
func (c *testClient) connect(nsp string) string {
	c.t.Helper()
	prefix := "40"
	if nsp != "/" {
		prefix += nsp + ","
	}
	c.write(prefix)
	msg := c.read()
	require.True(c.t, strings.HasPrefix(msg, prefix+"{"), msg)

	var data struct {
		SID string `json:"sid"`
	}
	require.NoError(c.t, json.Unmarshal([]byte(msg[len(prefix):]), &data))
	return data.SID
}

func waitString(t *testing.T, ch chan string) string {
	t.Helper()
	select {
	case s := <-ch:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("timeout")
	}
	return ""
}

func TestConnectAndEventAck(t *testing.T) {
	should := assert.New(t)
	must := require.New(t)

	srv, hs := newTestServer(t, nil)
	connected := make(chan Conn, 1)
	srv.OnConnect("/", func(c Conn) error {
		connected <- c
		return nil
	})
	srv.OnEvent("/", "chat message", func(c Conn, msg string) string {
		return "ok:" + msg
	})

	c := dial(t, hs, "4")
	should.Equal("1", c.open["sid"])
	id := c.connect("/")

	var conn Conn
	select {
	case conn = <-connected:
	case <-time.After(time.Second):
		t.Fatal("not connected")
	}
	should.Equal(id, conn.ID())
	should.Equal("/", conn.Namespace())
	should.Equal("abc", conn.Handshake().Query.Get("token"))
	should.True(conn.Connected())

	c.write(`421["chat message","hi"]`)
	should.Equal(`431["ok:hi"]`, c.read())

	c.write(`42["chat message","no ack"]`)
	c.write(`422["unknown"]`)
	should.Equal(`432[]`, c.read())

	s, ok := srv.Of("/").Socket(id)
	must.True(ok)
	should.Equal(conn, s)
	should.Equal(1, srv.Of("/").Len())
}

func TestConnectErrors(t *testing.T) {
	should := assert.New(t)

	srv, hs := newTestServer(t, nil)
	srv.OnConnect("/admin", func(c Conn) error {
		return errors.New("denied")
	})

	c := dial(t, hs, "4")
	c.write("40/nope,")
	should.Equal(`44/nope,{"message":"Invalid namespace"}`, c.read())

	c.write("40/admin,")
	should.Equal(`44/admin,{"message":"denied"}`, c.read())
	should.Zero(srv.Of("/admin").Len())

	// the connection stays usable
	c.connect("/")
}

func TestRoomBroadcast(t *testing.T) {
	should := assert.New(t)

	srv, hs := newTestServer(t, nil)
	srv.OnEvent("/", "join", func(c Conn, room string) {
		c.Join(room)
	})

	a, b, other := dial(t, hs, "4"), dial(t, hs, "4"), dial(t, hs, "4")
	for _, c := range []*testClient{a, b, other} {
		c.connect("/")
	}
	a.write(`420["join","lobby"]`)
	should.Equal(`430[]`, a.read())
	b.write(`420["join","lobby"]`)
	should.Equal(`430[]`, b.read())

	should.Equal(2, srv.RoomLen("/", "lobby"))
	should.True(srv.BroadcastToRoom("/", "lobby", "tick", 1))
	should.Equal(`42["tick",1]`, a.read())
	should.Equal(`42["tick",1]`, b.read())

	// the first frame other sees is the one sent past the room
	should.NoError(srv.Of("/").Except("lobby").Emit("left out"))
	should.Equal(`42["left out"]`, other.read())
	a.silent(50 * time.Millisecond)

	should.False(srv.BroadcastToRoom("/missing", "lobby", "tick"))
	should.Equal(-1, srv.RoomLen("/missing", "lobby"))
}

func TestSocketBroadcast(t *testing.T) {
	should := assert.New(t)

	srv, hs := newTestServer(t, nil)
	srv.OnEvent("/", "shout", func(c Conn, msg string) error {
		return c.Broadcast().Emit("shout", msg)
	})

	a, b := dial(t, hs, "4"), dial(t, hs, "4")
	a.connect("/")
	b.connect("/")

	a.write(`42["shout","hey"]`)
	should.Equal(`42["shout","hey"]`, b.read())
	a.silent(100 * time.Millisecond)
}

func TestServerEmitWithAck(t *testing.T) {
	should := assert.New(t)
	must := require.New(t)

	srv, hs := newTestServer(t, nil)
	c := dial(t, hs, "4")
	id := c.connect("/")

	s, ok := srv.Of("/").Socket(id)
	must.True(ok)

	responses := s.EmitWithAck("ask", "q")
	should.Equal(`420["ask","q"]`, c.read())
	c.write(`430["answer",2]`)

	resp, ok := <-responses
	must.True(ok)
	should.Equal(id, resp.SocketID)
	var answer string
	var n int
	must.NoError(resp.Decode(&answer, &n))
	should.Equal("answer", answer)
	should.Equal(2, n)
	_, ok = <-responses
	should.False(ok)

	responses = s.Timeout(20 * time.Millisecond).EmitWithAck("ask", "late")
	should.Equal(`421["ask","late"]`, c.read())
	resp = <-responses
	should.ErrorIs(resp.Err, ack.ErrTimeout)
	should.ErrorIs(resp.Decode(), ack.ErrTimeout)

	// a late ack matches nothing
	c.write(`431["too late"]`)

	got := make(chan string, 1)
	must.NoError(s.Emit("cb", func(reply string) { got <- reply }))
	should.Equal(`422["cb"]`, c.read())
	c.write(`432["called"]`)
	should.Equal("called", waitString(t, got))
}

func TestBroadcastEmitWithAck(t *testing.T) {
	should := assert.New(t)

	srv, hs := newTestServer(t, nil)
	a, b := dial(t, hs, "4"), dial(t, hs, "4")
	idA, idB := a.connect("/"), b.connect("/")

	responses := srv.Of("/").Timeout(time.Second).EmitWithAck("poll")
	should.Equal(`420["poll"]`, a.read())
	should.Equal(`420["poll"]`, b.read())
	a.write(`430["a"]`)
	b.write(`430["b"]`)

	got := make(map[string]string)
	for resp := range responses {
		var v string
		should.NoError(resp.Decode(&v))
		got[resp.SocketID] = v
	}
	should.Equal(map[string]string{idA: "a", idB: "b"}, got)
}

func TestBinaryEvent(t *testing.T) {
	should := assert.New(t)
	must := require.New(t)

	srv, hs := newTestServer(t, nil)
	srv.OnEvent("/", "upload", func(c Conn, name string, data []byte) int {
		_ = c.Emit("file", name, data)
		return len(data)
	})

	c := dial(t, hs, "4")
	c.connect("/")

	c.write(`451-0["upload","f.bin",{"_placeholder":true,"num":0}]`)
	must.NoError(c.conn.WriteMessage(websocket.BinaryMessage, []byte{1, 2, 3}))

	should.Equal(`451-["file","f.bin",{"_placeholder":true,"num":0}]`, c.read())
	should.Equal([]byte{1, 2, 3}, c.readBinary())
	should.Equal(`430[3]`, c.read())
}

func TestDisconnect(t *testing.T) {
	should := assert.New(t)
	must := require.New(t)

	srv, hs := newTestServer(t, nil)
	reasons := make(chan string, 4)
	srv.OnDisconnect("/", func(c Conn, reason string) {
		reasons <- reason
	})
	srv.OnDisconnect("/chat", func(c Conn, reason string) {
		reasons <- c.Namespace() + " " + reason
	})
	srv.OnConnect("/chat", func(c Conn) error {
		extensions.Insert(c.Extensions(), "nick")
		return nil
	})

	c := dial(t, hs, "4")
	c.connect("/")
	id := c.connect("/chat")

	s, ok := srv.Of("/chat").Socket(id)
	must.True(ok)
	nick, ok := extensions.Get[string](s.Extensions())
	must.True(ok)
	should.Equal("nick", nick)

	c.write("41/chat,")
	should.Equal("/chat "+ReasonClientNamespaceDisconnect, waitString(t, reasons))
	should.False(s.Connected())
	should.Eventually(func() bool { return s.Extensions().Len() == 0 }, time.Second, 10*time.Millisecond)
	should.ErrorIs(s.Emit("late"), ErrNotConnected)
	_, ok = srv.Of("/chat").Socket(id)
	should.False(ok)

	id = c.connect("/chat")
	s, ok = srv.Of("/chat").Socket(id)
	must.True(ok)
	s.Disconnect(false)
	should.Equal("41/chat,", c.read())
	should.Equal("/chat "+ReasonServerNamespaceDisconnect, waitString(t, reasons))

	_ = c.conn.Close()
	should.Equal(ReasonTransportClose, waitString(t, reasons))
}

func TestParseErrorClosesConnection(t *testing.T) {
	should := assert.New(t)

	srv, hs := newTestServer(t, nil)
	reasons := make(chan string, 1)
	srv.OnDisconnect("/", func(c Conn, reason string) {
		reasons <- reason
	})

	c := dial(t, hs, "4")
	c.connect("/")
	c.write("4x")
	should.Equal(ReasonParseError, waitString(t, reasons))
}

func TestConnectTimeout(t *testing.T) {
	srv, hs := newTestServer(t, &Options{ConnectTimeout: 50 * time.Millisecond})

	c := dial(t, hs, "4")
	require.Eventually(t, func() bool { return srv.Count() == 0 }, 2*time.Second, 10*time.Millisecond)
	for {
		if _, _, err := c.frame(time.Second); err != nil {
			break
		}
	}
}

func TestEIO3Client(t *testing.T) {
	should := assert.New(t)
	must := require.New(t)

	srv, hs := newTestServer(t, nil)
	connected := make(chan Conn, 2)
	srv.OnConnect("/", func(c Conn) error {
		connected <- c
		return nil
	})
	srv.OnConnect("/chat", func(c Conn) error {
		connected <- c
		return nil
	})
	srv.OnConnect("/admin", func(c Conn) error {
		return errors.New("denied")
	})
	srv.OnEvent("/", "echo", func(msg string) string { return msg })

	c := dial(t, hs, "3")
	should.Equal("40", c.read())
	root := <-connected
	should.Equal(c.open["sid"], root.ID())

	c.write(`421["echo","v3"]`)
	should.Equal(`431["v3"]`, c.read())

	c.write("40/chat?lang=en")
	should.Equal("40/chat,", c.read())
	chat := <-connected
	should.Equal("/chat#"+root.ID(), chat.ID())
	should.Equal("en", chat.Handshake().Query.Get("lang"))

	c.write("40/admin")
	should.Equal(`44/admin,"denied"`, c.read())

	_, ok := srv.Of("/chat").Socket(chat.ID())
	must.True(ok)
}

func TestDynamicNamespace(t *testing.T) {
	should := assert.New(t)

	srv, hs := newTestServer(t, nil)
	parent := srv.OfPattern(regexp.MustCompile(`^/dyn-\d+$`))
	parent.OnEvent("ping", func(c Conn) string { return c.Namespace() })

	c := dial(t, hs, "4")
	c.connect("/dyn-1")
	c.write(`40/dyn-x,`)
	should.Equal(`44/dyn-x,{"message":"Invalid namespace"}`, c.read())

	c.write(`42/dyn-1,0["ping"]`)
	should.Equal(`43/dyn-1,0["/dyn-1"]`, c.read())

	should.Contains(srv.Namespaces(), "/dyn-1")
	children := parent.Children()
	should.Len(children, 1)
	should.Equal("/dyn-1", children[0].Name())

	should.NoError(parent.Emit("hello"))
	should.Equal(`42/dyn-1,["hello"]`, c.read())
}

func TestHandlerError(t *testing.T) {
	should := assert.New(t)

	srv, hs := newTestServer(t, nil)
	errs := make(chan error, 2)
	srv.OnError("/", func(c Conn, err error) {
		errs <- err
	})
	srv.OnEvent("/", "fail", func() error { return errors.New("failed") })
	srv.OnEvent("/", "panic", func() { panic("boom") })
	srv.OnEvent("/", "ok", func() string { return "still here" })

	c := dial(t, hs, "4")
	c.connect("/")

	c.write(`42["fail"]`)
	c.write(`42["panic"]`)
	for _, msg := range []string{"failed", "handler panic: boom"} {
		select {
		case err := <-errs:
			var herr *HandlerError
			should.ErrorAs(err, &herr)
			should.Equal("/", herr.Namespace)
			should.EqualError(herr.Err, msg)
		case <-time.After(2 * time.Second):
			t.Fatal("no error")
		}
	}

	c.write(`420["ok"]`)
	should.Equal(`430["still here"]`, c.read())
}

func TestServerRooms(t *testing.T) {
	should := assert.New(t)
	must := require.New(t)

	srv, hs := newTestServer(t, nil)
	c := dial(t, hs, "4")
	id := c.connect("/")
	s, ok := srv.Of("/").Socket(id)
	must.True(ok)

	should.True(srv.JoinRoom("/", "a", s))
	should.True(srv.JoinRoom("/", "b", s))
	should.ElementsMatch([]string{"a", "b", id}, srv.Rooms("/"))
	should.ElementsMatch([]string{"a", "b", id}, s.Rooms())

	var visited []string
	should.True(srv.ForEach("/", "a", func(c Conn) { visited = append(visited, c.ID()) }))
	should.Equal([]string{id}, visited)

	should.True(srv.LeaveRoom("/", "a", s))
	should.True(srv.LeaveAllRooms("/", s))
	should.Equal([]string{id}, s.Rooms())

	s.Join("c")
	should.True(srv.ClearRoom("/", "c"))
	should.Zero(srv.RoomLen("/", "c"))

	should.True(srv.BroadcastToNamespace("/", "all"))
	should.Equal(`42["all"]`, c.read())

	srv.Of("/").To(id).DisconnectSockets(false)
	should.Equal("41", c.read())
	should.Empty(srv.Of("/").Sockets())
}

func TestSocketOutsideOwnRoom(t *testing.T) {
	should := assert.New(t)
	must := require.New(t)

	srv, hs := newTestServer(t, nil)
	srv.OnEvent("/", "leave self", func(c Conn) {
		c.Leave(c.ID())
	})
	srv.OnEvent("/", "leave all", func(c Conn) {
		c.Join("x")
		c.LeaveAll()
	})
	srv.OnEvent("/", "shout", func(c Conn, msg string) error {
		return c.Broadcast().Emit("shout", msg)
	})

	a, b := dial(t, hs, "4"), dial(t, hs, "4")
	idA, idB := a.connect("/"), b.connect("/")

	a.write(`421["leave self"]`)
	should.Equal(`431[]`, a.read())
	b.write(`421["leave all"]`)
	should.Equal(`431[]`, b.read())

	sa, ok := srv.Of("/").Socket(idA)
	must.True(ok)
	sb, ok := srv.Of("/").Socket(idB)
	must.True(ok)
	should.Empty(sa.Rooms())
	should.Equal([]string{idB}, sb.Rooms())

	// namespace wide selection does not depend on rooms
	should.Len(srv.Of("/").Sockets(), 2)
	must.NoError(srv.Of("/").Emit("tick"))
	should.Equal(`42["tick"]`, a.read())
	should.Equal(`42["tick"]`, b.read())

	responses := sa.EmitWithAck("ask")
	should.Equal(`420["ask"]`, a.read())
	a.write(`430[1]`)
	select {
	case resp, ok := <-responses:
		must.True(ok)
		should.Equal(idA, resp.SocketID)
		should.NoError(resp.Err)
	case <-time.After(2 * time.Second):
		t.Fatal("no ack response")
	}

	a.write(`42["shout","hey"]`)
	should.Equal(`42["shout","hey"]`, b.read())
	b.silent(50 * time.Millisecond)
	a.silent(100 * time.Millisecond)
}
