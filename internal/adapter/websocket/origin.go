package websocket

import (
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/thomaswerner858/DinnerMatch/internal/adapter/metrics"
)

// OriginPolicy lists the browser origins allowed to open the match socket.
type OriginPolicy struct {
	// AppURL is the public URL of the app; its origin is always allowed.
	AppURL string
	// Allowed holds extra origins, e.g. a front end hosted on its own domain.
	Allowed []string
	// Development also accepts any loopback origin.
	Development bool
}

// NewCheckOrigin returns a CheckOrigin function for the Centrifuge WebSocket
// handler. Requests without an Origin header come from non-browser clients
// and pass. Rejections are logged and counted on m when it is non-nil.
func NewCheckOrigin(p OriginPolicy, m *metrics.WebSocketMetrics) func(r *http.Request) bool {
	allowed := make(map[string]struct{}, len(p.Allowed)+1)
	for _, raw := range append([]string{p.AppURL}, p.Allowed...) {
		if origin := normalizeOrigin(raw); origin != "" {
			allowed[origin] = struct{}{}
		}
	}

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}

		if _, ok := allowed[normalizeOrigin(origin)]; ok {
			return true
		}
		if p.Development && isLoopbackOrigin(origin) {
			return true
		}

		if m != nil {
			m.OriginRejections.Inc()
		}
		slog.Warn("WebSocket origin rejected", "origin", origin, "remote_addr", r.RemoteAddr)
		return false
	}
}

// normalizeOrigin reduces an http(s) URL to scheme://host[:port] with the
// host lowercased and the scheme's default port dropped. Anything else
// yields "".
func normalizeOrigin(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return ""
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}

	host := strings.ToLower(u.Hostname())
	port := u.Port()
	if (u.Scheme == "http" && port == "80") || (u.Scheme == "https" && port == "443") {
		port = ""
	}
	if port != "" || strings.Contains(host, ":") {
		host = net.JoinHostPort(host, port)
		host = strings.TrimSuffix(host, ":")
	}
	return u.Scheme + "://" + host
}

func isLoopbackOrigin(origin string) bool {
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	host := u.Hostname()
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
