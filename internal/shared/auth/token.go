package auth

import (
	"net/http"
	"strings"
)

const bearerPrefix = "bearer "

// BearerToken returns the token carried by an Authorization header value, or "".
func BearerToken(header string) string {
	header = strings.TrimSpace(header)
	if len(header) < len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(header[len(bearerPrefix):])
}

// ResolveToken picks the connection token from, in order, the route segment,
// the "token" query parameter and the Authorization header. Browsers cannot set
// headers on websocket upgrades, hence the first two sources.
func ResolveToken(routeToken string, r *http.Request) string {
	if token := strings.TrimSpace(routeToken); token != "" {
		return token
	}
	if r == nil {
		return ""
	}
	if r.URL != nil {
		if token := strings.TrimSpace(r.URL.Query().Get("token")); token != "" {
			return token
		}
	}
	return BearerToken(r.Header.Get("Authorization"))
}
