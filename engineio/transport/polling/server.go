package polling

import (
	"bytes"
	"html/template"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/ioduplex/go-socket.io/engineio/packet"
	"github.com/ioduplex/go-socket.io/engineio/payload"
	"github.com/ioduplex/go-socket.io/engineio/transport"
)

// SupportBinary reports whether the client of r can receive binary bodies.
func SupportBinary(r *http.Request) bool {
	query := r.URL.Query()
	return query.Get("b64") == "" && query.Get("j") == ""
}

// SetHeaders writes the CORS headers for r.
func SetHeaders(w http.ResponseWriter, r *http.Request, checkOrigin func(*http.Request) bool) {
	if strings.Contains(r.UserAgent(), ";MSIE") || strings.Contains(r.UserAgent(), "Trident/") {
		w.Header().Set("X-XSS-Protection", "0")
	}

	if checkOrigin != nil && checkOrigin(r) {
		if r.URL.Query().Get("j") == "" {
			origin := r.Header.Get("Origin")
			if origin == "" {
				w.Header().Set("Access-Control-Allow-Origin", "*")
			} else {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Credentials", "true")
			}
		}
	}
}

// ServeOptions answers a CORS preflight.
func ServeOptions(w http.ResponseWriter, r *http.Request, checkOrigin func(*http.Request) bool) {
	if r.URL.Query().Get("j") == "" {
		SetHeaders(w, r, checkOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	}
	w.WriteHeader(http.StatusOK)
}

// WritePackets writes packets as one response body, as JSONP when r asks for
// it and gzipped when the client accepts it and the body is large enough.
func WritePackets(w http.ResponseWriter, r *http.Request, packets []packet.Packet, opts Options) error {
	SetHeaders(w, r, opts.CheckOrigin)

	body, binary := payload.Encode(packets, opts.Version, opts.SupportBinary)

	if jsonp := r.URL.Query().Get("j"); jsonp != "" {
		w.Header().Set("Content-Type", "text/javascript; charset=UTF-8")
		buf := bytes.NewBuffer(nil)
		buf.WriteString("___eio[" + jsonp + "](\"")
		buf.WriteString(template.JSEscapeString(string(body)))
		buf.WriteString("\");")
		body = buf.Bytes()
	} else if binary {
		w.Header().Set("Content-Type", "application/octet-stream")
	} else {
		w.Header().Set("Content-Type", "text/plain; charset=UTF-8")
	}

	if opts.CompressionThreshold > 0 && len(body) >= opts.CompressionThreshold &&
		strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
		w.Header().Set("Content-Encoding", "gzip")
		w.Header().Add("Vary", "Accept-Encoding")
		zw := gzip.NewWriter(w)
		if _, err := zw.Write(body); err != nil {
			return err
		}
		return zw.Close()
	}

	_, err := w.Write(body)
	return err
}

// ServeGet parks r until packets are available and writes them.
func (t *Transport) ServeGet(w http.ResponseWriter, r *http.Request) error {
	packets, err := t.Poll(r.Context())
	if err != nil {
		return err
	}
	return WritePackets(w, r, packets, t.opts)
}

// ServePost decodes the POST body of r and feeds its packets to Recv in
// order. A malformed body fails as a whole and nothing is fed.
func (t *Transport) ServePost(w http.ResponseWriter, r *http.Request) error {
	SetHeaders(w, r, t.opts.CheckOrigin)

	body, isBinary, err := t.readBody(r)
	if err != nil {
		return err
	}

	packets, err := payload.Decode(body, t.opts.Version, isBinary, t.opts.MaxPayload)
	if err != nil {
		return err
	}

	for _, p := range packets {
		if err := t.Feed(r.Context(), p); err != nil {
			return err
		}
	}

	w.Header().Set("Content-Type", "text/html")
	_, err = w.Write([]byte("ok"))
	return err
}

func (t *Transport) readBody(r *http.Request) ([]byte, bool, error) {
	var rd io.Reader = r.Body
	if t.opts.MaxPayload > 0 {
		rd = io.LimitReader(r.Body, t.opts.MaxPayload+1)
	}

	if r.URL.Query().Get("j") != "" {
		body, err := io.ReadAll(rd)
		if err != nil {
			return nil, false, err
		}
		form, err := parseForm(body)
		if err != nil {
			return nil, false, err
		}
		return form, false, nil
	}

	isBinary, err := mimeIsSupportBinary(r.Header.Get("Content-Type"))
	if err != nil {
		return nil, false, err
	}
	body, err := io.ReadAll(rd)
	if err != nil {
		return nil, false, err
	}
	return body, isBinary, nil
}

func mimeIsSupportBinary(m string) (bool, error) {
	if m == "" {
		return false, nil
	}
	typ, params, err := mime.ParseMediaType(m)
	if err != nil {
		return false, transport.ErrInvalidContentType
	}

	switch typ {
	case "application/octet-stream":
		return true, nil
	case "text/plain":
		charset := strings.ToLower(params["charset"])
		if charset != "" && charset != "utf-8" {
			return false, transport.ErrInvalidContentType
		}
		return false, nil
	}
	return false, transport.ErrInvalidContentType
}
