package request

import (
	"net/http"
	"strings"
)

var knownMethods = map[string]bool{
	http.MethodGet:     true,
	http.MethodHead:    true,
	http.MethodPost:    true,
	http.MethodPut:     true,
	http.MethodPatch:   true,
	http.MethodDelete:  true,
	http.MethodOptions: true,
}

// SplitMethod extracts a method token from the last path segment of raw.
// "users:post" yields ("POST", "users"). Without a recognised token the
// method is GET and raw is returned untouched, so ports and other colons
// are left alone.
func SplitMethod(raw string) (method, url string) {
	i := strings.LastIndexByte(raw, ':')
	if i < 0 {
		return http.MethodGet, raw
	}

	token := raw[i+1:]
	if strings.ContainsAny(token, "/?#") {
		return http.MethodGet, raw
	}

	token = strings.ToUpper(token)
	if !knownMethods[token] {
		return http.MethodGet, raw
	}
	return token, raw[:i]
}

// IsGetLike reports whether params for method belong in the query string.
func IsGetLike(method string) bool {
	switch strings.ToUpper(method) {
	case http.MethodGet, http.MethodHead:
		return true
	default:
		return false
	}
}
