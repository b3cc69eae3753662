package engineio

import (
	"net/http"
	"time"

	"github.com/ioduplex/go-socket.io/engineio/session"
	"github.com/ioduplex/go-socket.io/engineio/transport"
)

// CheckerFunc is function to check request. A non-nil error rejects the
// request as forbidden, the returned header is added to the response.
type CheckerFunc func(*http.Request) (http.Header, error)

// Options is options to create a server.
type Options struct {
	PingInterval   time.Duration
	PingTimeout    time.Duration
	UpgradeTimeout time.Duration
	// MaxPayload is the byte cap of one polling body or websocket frame.
	MaxPayload int64

	Transports         []transport.Name
	SessionIDGenerator session.IDGenerator

	RequestChecker CheckerFunc
	// CheckOrigin decides whether cross origin polling gets CORS headers and
	// whether a websocket handshake is accepted. Nil allows websocket from
	// any origin and sends no CORS headers.
	CheckOrigin func(*http.Request) bool

	// HTTPCompression gzips polling bodies at least that long. Zero
	// disables it.
	HTTPCompression   int
	PerMessageDeflate bool

	DisableUpgrades bool
	DisableEIO3     bool
}

func (c *Options) getPingInterval() time.Duration {
	if c != nil && c.PingInterval != 0 {
		return c.PingInterval
	}
	return 25 * time.Second
}

func (c *Options) getPingTimeout() time.Duration {
	if c != nil && c.PingTimeout != 0 {
		return c.PingTimeout
	}
	return 20 * time.Second
}

func (c *Options) getUpgradeTimeout() time.Duration {
	if c != nil && c.UpgradeTimeout != 0 {
		return c.UpgradeTimeout
	}
	return 10 * time.Second
}

func (c *Options) getMaxPayload() int64 {
	if c != nil && c.MaxPayload != 0 {
		return c.MaxPayload
	}
	return 1e6
}

func (c *Options) getTransports() []transport.Name {
	if c != nil && len(c.Transports) != 0 {
		return c.Transports
	}
	return []transport.Name{
		transport.Polling,
		transport.Websocket,
	}
}

func (c *Options) getSessionIDGenerator() session.IDGenerator {
	if c != nil && c.SessionIDGenerator != nil {
		return c.SessionIDGenerator
	}
	return session.DefaultIDGenerator{}
}

func (c *Options) getRequestChecker() CheckerFunc {
	if c != nil && c.RequestChecker != nil {
		return c.RequestChecker
	}
	return defaultChecker
}

func (c *Options) getCheckOrigin() func(*http.Request) bool {
	if c != nil {
		return c.CheckOrigin
	}
	return nil
}

func (c *Options) getHTTPCompression() int {
	if c != nil {
		return c.HTTPCompression
	}
	return 0
}

func (c *Options) allowUpgrades() bool {
	return c == nil || !c.DisableUpgrades
}

func (c *Options) allowEIO3() bool {
	return c == nil || !c.DisableEIO3
}

func (c *Options) perMessageDeflate() bool {
	return c != nil && c.PerMessageDeflate
}

func defaultChecker(*http.Request) (http.Header, error) {
	return nil, nil
}
