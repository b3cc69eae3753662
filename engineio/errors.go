package engineio

import (
	"encoding/json"
	"net/http"
)

// ErrorCode is the code of an engine.io protocol error response.
type ErrorCode int

const (
	UnknownTransport ErrorCode = iota
	UnknownSid
	BadHandshakeMethod
	BadRequest
	Forbidden
	UnsupportedProtocolVersion
)

var errorMessages = map[ErrorCode]string{
	UnknownTransport:           "Transport unknown",
	UnknownSid:                 "Session ID unknown",
	BadHandshakeMethod:         "Bad handshake method",
	BadRequest:                 "Bad request",
	Forbidden:                  "Forbidden",
	UnsupportedProtocolVersion: "Unsupported protocol version",
}

func (c ErrorCode) String() string {
	return errorMessages[c]
}

type errorBody struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// writeError writes the JSON error response for code.
func writeError(w http.ResponseWriter, code ErrorCode) {
	status := http.StatusBadRequest
	if code == Forbidden {
		status = http.StatusForbidden
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Code: code, Message: code.String()})
}
