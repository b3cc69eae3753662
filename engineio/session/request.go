package session

import (
	"net/http"
	"net/url"
)

// Addr is a net.Addr taken from an HTTP request.
type Addr string

func (a Addr) Network() string {
	return "tcp"
}

func (a Addr) String() string {
	return string(a)
}

// Request is the handshake request of a session.
type Request struct {
	URL        url.URL
	Header     http.Header
	Host       string
	RemoteAddr string
}

// NewRequest copies what a session keeps from the handshake request r.
func NewRequest(r *http.Request) Request {
	return Request{
		URL:        *r.URL,
		Header:     r.Header.Clone(),
		Host:       r.Host,
		RemoteAddr: r.RemoteAddr,
	}
}
