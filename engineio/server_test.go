package engineio

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ioduplex/go-socket.io/engineio/session"
	"github.com/ioduplex/go-socket.io/engineio/transport"
)

type echoHandler struct {
	connected    chan Conn
	messages     chan string
	disconnected chan Reason
}

func newEchoHandler() *echoHandler {
	return &echoHandler{
		connected:    make(chan Conn, 4),
		messages:     make(chan string, 16),
		disconnected: make(chan Reason, 4),
	}
}

func (h *echoHandler) OnConnect(c Conn) { h.connected <- c }

func (h *echoHandler) OnMessage(c Conn, data []byte) {
	_ = c.WriteMessage(data)
	h.messages <- string(data)
}

func (h *echoHandler) OnBinary(c Conn, data []byte) {
	_ = c.WriteBinary(data)
	h.messages <- "bin:" + string(data)
}

func (h *echoHandler) OnDisconnect(_ Conn, reason Reason) { h.disconnected <- reason }

func newTestServer(t *testing.T, opts *Options) (*Server, *echoHandler, *httptest.Server) {
	t.Helper()
	if opts == nil {
		opts = &Options{}
	}
	if opts.SessionIDGenerator == nil {
		opts.SessionIDGenerator = &session.SequenceIDGenerator{}
	}
	h := newEchoHandler()
	srv := NewServer(opts, h)
	hs := httptest.NewServer(srv)
	t.Cleanup(func() {
		_ = srv.Close()
		hs.Close()
	})
	return srv, h, hs
}

func get(t *testing.T, u string) (int, string) {
	t.Helper()
	resp, err := http.Get(u)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func post(t *testing.T, u, body string) (int, string) {
	t.Helper()
	resp, err := http.Post(u, "text/plain;charset=UTF-8", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	ret, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(ret)
}

func TestProtocolErrors(t *testing.T) {
	_, _, hs := newTestServer(t, &Options{DisableEIO3: true})

	tests := []struct {
		name   string
		method string
		query  string
		status int
		code   ErrorCode
	}{
		{"no version", http.MethodGet, "transport=polling", http.StatusBadRequest, UnsupportedProtocolVersion},
		{"v3 disabled", http.MethodGet, "EIO=3&transport=polling", http.StatusBadRequest, UnsupportedProtocolVersion},
		{"bad transport", http.MethodGet, "EIO=4&transport=flash", http.StatusBadRequest, UnknownTransport},
		{"unknown sid", http.MethodGet, "EIO=4&transport=polling&sid=nope", http.StatusBadRequest, UnknownSid},
		{"post handshake", http.MethodPost, "EIO=4&transport=polling", http.StatusBadRequest, BadHandshakeMethod},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			should := assert.New(t)
			must := require.New(t)

			req, err := http.NewRequest(test.method, hs.URL+"/engine.io/?"+test.query, nil)
			must.NoError(err)
			resp, err := http.DefaultClient.Do(req)
			must.NoError(err)
			defer resp.Body.Close()

			should.Equal(test.status, resp.StatusCode)
			var body errorBody
			must.NoError(json.NewDecoder(resp.Body).Decode(&body))
			should.Equal(test.code, body.Code)
			should.Equal(test.code.String(), body.Message)
		})
	}
}

func TestRequestChecker(t *testing.T) {
	should := assert.New(t)

	_, _, hs := newTestServer(t, &Options{
		RequestChecker: func(r *http.Request) (http.Header, error) {
			if r.URL.Query().Get("token") == "" {
				return nil, io.ErrUnexpectedEOF
			}
			return http.Header{"X-Checked": {"1"}}, nil
		},
	})

	status, body := get(t, hs.URL+"/engine.io/?EIO=4&transport=polling")
	should.Equal(http.StatusForbidden, status)
	should.Contains(body, `"code":4`)

	resp, err := http.Get(hs.URL + "/engine.io/?EIO=4&transport=polling&token=x")
	should.NoError(err)
	defer resp.Body.Close()
	should.Equal(http.StatusOK, resp.StatusCode)
	should.Equal("1", resp.Header.Get("X-Checked"))
}

func TestPollingSession(t *testing.T) {
	should := assert.New(t)
	must := require.New(t)

	srv, h, hs := newTestServer(t, &Options{PingInterval: time.Minute, MaxPayload: 1000})

	status, body := get(t, hs.URL+"/engine.io/?EIO=4&transport=polling")
	must.Equal(http.StatusOK, status)
	must.True(strings.HasPrefix(body, "0"))
	params, err := transport.ReadConnParameters(strings.NewReader(body[1:]))
	must.NoError(err)
	should.Equal("1", params.SID)
	should.Equal([]transport.Name{transport.Websocket}, params.Upgrades)
	should.Equal(time.Minute, params.PingInterval)
	should.EqualValues(1000, params.MaxPayload)

	c := <-h.connected
	should.Equal("1", c.ID())
	should.Equal(1, srv.Count())

	u := hs.URL + "/engine.io/?EIO=4&transport=polling&sid=1"
	status, body = post(t, u, "4hello\x1ebAQI=")
	should.Equal(http.StatusOK, status)
	should.Equal("ok", body)
	should.Equal("hello", <-h.messages)
	should.Equal("bin:\x01\x02", <-h.messages)

	status, body = get(t, u)
	should.Equal(http.StatusOK, status)
	should.Equal("4hello\x1ebAQI=", body)

	status, _ = post(t, u, "1")
	should.Equal(http.StatusOK, status)
	should.Equal(ReasonTransportClose, <-h.disconnected)
	should.Equal(0, srv.Count())

	status, _ = get(t, u)
	should.Equal(http.StatusBadRequest, status)
}

func TestV3PollingSession(t *testing.T) {
	should := assert.New(t)
	must := require.New(t)

	_, h, hs := newTestServer(t, nil)

	status, body := get(t, hs.URL+"/engine.io/?EIO=3&transport=polling&b64=1")
	must.Equal(http.StatusOK, status)
	idx := strings.Index(body, ":")
	must.True(idx > 0)
	should.Equal(byte('0'), body[idx+1])
	<-h.connected

	u := hs.URL + "/engine.io/?EIO=3&transport=polling&b64=1&sid=1"
	status, _ = post(t, u, "6:4hello")
	should.Equal(http.StatusOK, status)
	should.Equal("hello", <-h.messages)

	status, body = get(t, u)
	should.Equal(http.StatusOK, status)
	should.Equal("6:4hello", body)
}

func TestPollingParseErrorClosesSession(t *testing.T) {
	should := assert.New(t)

	_, h, hs := newTestServer(t, nil)
	get(t, hs.URL+"/engine.io/?EIO=4&transport=polling")
	<-h.connected

	status, _ := post(t, hs.URL+"/engine.io/?EIO=4&transport=polling&sid=1", "9bad")
	should.Equal(http.StatusBadRequest, status)
	should.Equal(ReasonParseError, <-h.disconnected)
}

func TestOverlappedPollingClosesSession(t *testing.T) {
	should := assert.New(t)

	_, h, hs := newTestServer(t, &Options{PingInterval: time.Minute})
	get(t, hs.URL+"/engine.io/?EIO=4&transport=polling")
	<-h.connected

	u := hs.URL + "/engine.io/?EIO=4&transport=polling&sid=1"
	type result struct {
		status int
		body   string
	}
	parked := make(chan result, 1)
	go func() {
		resp, err := http.Get(u)
		if err != nil {
			parked <- result{}
			return
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		parked <- result{resp.StatusCode, string(body)}
	}()
	time.Sleep(50 * time.Millisecond)

	status, _ := get(t, u)
	should.Equal(http.StatusBadRequest, status)
	should.Equal(ReasonMultiplePolling, <-h.disconnected)

	// exactly one of the two requests succeeds, with the close packet
	first := <-parked
	should.Equal(http.StatusOK, first.status)
	should.Equal("1", first.body)
}

func wsURL(hs *httptest.Server, query string) string {
	return "ws" + strings.TrimPrefix(hs.URL, "http") + "/engine.io/?" + query
}

func readText(t *testing.T, c *websocket.Conn) string {
	t.Helper()
	require.NoError(t, c.SetReadDeadline(time.Now().Add(time.Second)))
	typ, data, err := c.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, websocket.TextMessage, typ)
	return string(data)
}

func TestWebsocketSession(t *testing.T) {
	should := assert.New(t)
	must := require.New(t)

	_, h, hs := newTestServer(t, nil)

	c, _, err := websocket.DefaultDialer.Dial(wsURL(hs, "EIO=4&transport=websocket"), nil)
	must.NoError(err)
	defer c.Close()

	open := readText(t, c)
	must.True(strings.HasPrefix(open, "0"))
	params, err := transport.ReadConnParameters(strings.NewReader(open[1:]))
	must.NoError(err)
	should.Empty(params.Upgrades)
	<-h.connected

	must.NoError(c.WriteMessage(websocket.TextMessage, []byte("4hi")))
	should.Equal("hi", <-h.messages)
	should.Equal("4hi", readText(t, c))

	must.NoError(c.WriteMessage(websocket.BinaryMessage, []byte{7}))
	should.Equal("bin:\x07", <-h.messages)
	typ, data, err := c.ReadMessage()
	must.NoError(err)
	should.Equal(websocket.BinaryMessage, typ)
	should.Equal([]byte{7}, data)

	must.NoError(c.Close())
	should.Equal(ReasonTransportClose, <-h.disconnected)
}

func TestUpgrade(t *testing.T) {
	should := assert.New(t)
	must := require.New(t)

	srv, h, hs := newTestServer(t, &Options{PingInterval: time.Minute})

	_, body := get(t, hs.URL+"/engine.io/?EIO=4&transport=polling")
	must.True(strings.HasPrefix(body, "0"))
	conn := <-h.connected
	must.NoError(conn.WriteMessage([]byte("pending")))

	c, _, err := websocket.DefaultDialer.Dial(wsURL(hs, "EIO=4&transport=websocket&sid=1"), nil)
	must.NoError(err)
	defer c.Close()

	must.NoError(c.WriteMessage(websocket.TextMessage, []byte("2probe")))
	should.Equal("3probe", readText(t, c))
	must.NoError(c.WriteMessage(websocket.TextMessage, []byte("5")))

	should.Equal("4pending", readText(t, c))

	must.Eventually(func() bool { return conn.Transport() == transport.Websocket }, time.Second, 10*time.Millisecond)

	status, body := get(t, hs.URL+"/engine.io/?EIO=4&transport=polling&sid=1")
	should.Equal(http.StatusBadRequest, status)
	should.Contains(body, `"code":3`)

	must.NoError(c.WriteMessage(websocket.TextMessage, []byte("4after")))
	should.Equal("after", <-h.messages)
	should.Equal("4after", readText(t, c))

	must.NoError(srv.Close())
	should.Equal(ReasonServerShutdown, <-h.disconnected)
	_, _, err = c.ReadMessage()
	should.True(websocket.IsCloseError(err, websocket.CloseNormalClosure))
}

func TestOptions(t *testing.T) {
	should := assert.New(t)

	_, _, hs := newTestServer(t, &Options{CheckOrigin: func(*http.Request) bool { return true }})

	req, err := http.NewRequest(http.MethodOptions, hs.URL+"/engine.io/?EIO=4&transport=polling", nil)
	should.NoError(err)
	req.Header.Set("Origin", "http://example.com")
	resp, err := http.DefaultClient.Do(req)
	should.NoError(err)
	defer resp.Body.Close()

	should.Equal(http.StatusOK, resp.StatusCode)
	should.Equal("http://example.com", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestServerClosed(t *testing.T) {
	should := assert.New(t)

	srv, _, hs := newTestServer(t, nil)
	should.NoError(srv.Close())
	should.NoError(srv.Close())

	status, _ := get(t, hs.URL+"/engine.io/?EIO=4&transport=polling")
	should.Equal(http.StatusServiceUnavailable, status)
}
