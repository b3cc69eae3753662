package polling

import (
	"net/url"
	"strings"
)

// parseForm extracts the payload from a JSONP POST body (d=<payload>).
// Clients send newlines as \n and an escaped \n as \\n, which is kept.
func parseForm(body []byte) ([]byte, error) {
	form, err := url.ParseQuery(string(body))
	if err != nil {
		return nil, err
	}
	d := form.Get("d")
	d = strings.NewReplacer(`\\n`, `\\n`, `\n`, "\n").Replace(d)
	return []byte(d), nil
}
