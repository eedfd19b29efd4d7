package middleware

import (
	"net"
	"net/http"
	"strings"

	"github.com/jafsabakes/bakery-api/app/api"
	"github.com/rs/zerolog"
)

// AllowedHostsMiddleware rejects requests whose Host header matches none of
// hosts. "*" matches everything, a leading dot matches the domain and its
// subdomains, an entry with a port must match the port too.
func AllowedHostsMiddleware(hosts []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !HostAllowed(r.Host, hosts) {
				zerolog.Ctx(r.Context()).Warn().Str("host", r.Host).Msg("invalid host header")
				api.ErrorResponse(w, http.StatusBadRequest, "Bad Request")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func HostAllowed(hostport string, hosts []string) bool {
	hostport = strings.ToLower(hostport)
	host := hostport
	if h, _, err := net.SplitHostPort(hostport); err == nil {
		host = h
	}

	for _, pattern := range hosts {
		switch {
		case pattern == "*":
			return true
		case strings.HasPrefix(pattern, "."):
			if host == pattern[1:] || strings.HasSuffix(host, pattern) {
				return true
			}
		case strings.Contains(pattern, ":"):
			if hostport == pattern {
				return true
			}
		case host == pattern:
			return true
		}
	}
	return false
}
