package logger

import (
	"net/http"
	"strings"
)

var sensitive = map[string]struct{}{
	"authorization": {},
	"cookie":        {},
	"set-cookie":    {},
}

// SafeHeaders returns the first value of every header with credentials redacted.
func SafeHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		if len(v) == 0 {
			continue
		}
		if _, ok := sensitive[strings.ToLower(k)]; ok {
			out[k] = "<redacted>"
			continue
		}
		out[k] = v[0]
	}
	return out
}

// SafeQuery strips the websocket token from a raw query string.
func SafeQuery(raw string) string {
	if !strings.Contains(raw, "token=") {
		return raw
	}
	parts := strings.Split(raw, "&")
	for i, p := range parts {
		if strings.HasPrefix(p, "token=") {
			parts[i] = "token=<redacted>"
		}
	}
	return strings.Join(parts, "&")
}
