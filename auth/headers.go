package auth

import (
	"encoding/json"
	"net/http"
	"strings"
)

// AuthorizationHeader is the canonical header carrying the bearer credential.
const AuthorizationHeader = "Authorization"

// Headers is a flat view of request headers as forwarded by a gateway.
//
// Gateways disagree on header shape: some send string values, some send
// arrays. UnmarshalJSON keeps string values, takes the first string of an
// array and drops everything else. A value that is not an object decodes to
// empty headers, so the caller is treated as a guest.
type Headers map[string]string

// UnmarshalJSON implements json.Unmarshaler.
func (h *Headers) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		*h = Headers{}
		return nil
	}
	out := make(Headers, len(raw))
	for k, v := range raw {
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			out[k] = s
			continue
		}
		var list []any
		if err := json.Unmarshal(v, &list); err == nil {
			for _, item := range list {
				if s, ok := item.(string); ok {
					out[k] = s
					break
				}
			}
		}
	}
	*h = out
	return nil
}

// Authorization returns the authorization header value.
//
// "Authorization" is tried first, then "authorization". Any other casing is
// matched case-insensitively; when several keys match, the lexicographically
// smallest wins so the result is stable.
func (h Headers) Authorization() string {
	if v := h[AuthorizationHeader]; v != "" {
		return v
	}
	if v := h[strings.ToLower(AuthorizationHeader)]; v != "" {
		return v
	}

	var key string
	for k, v := range h {
		if v == "" || !strings.EqualFold(k, AuthorizationHeader) {
			continue
		}
		if key == "" || k < key {
			key = k
		}
	}
	if key == "" {
		return ""
	}
	return h[key]
}

// HeadersFromHTTP flattens an http.Header, keeping the first value per key.
func HeadersFromHTTP(header http.Header) Headers {
	out := make(Headers, len(header))
	for k, values := range header {
		if len(values) > 0 {
			out[k] = values[0]
		}
	}
	return out
}
