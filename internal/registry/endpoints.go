package registry

import (
	"net"
	"net/url"
	"strings"
)

// Remote wallet relays and debug RPC nodes are user supplied. Plain-text
// schemes are only accepted for loopback hosts.
var secureSchemeFor = map[string]string{
	"http": "https",
	"ws":   "wss",
}

// IsAllowedEndpoint reports whether endpoint may be dialed for the given
// scheme family ("http" for JSON-RPC nodes, "ws" for wallet relays).
func IsAllowedEndpoint(family, endpoint string) bool {
	secure, ok := secureSchemeFor[strings.ToLower(strings.TrimSpace(family))]
	if !ok {
		return false
	}
	parsed, err := url.Parse(strings.TrimSpace(endpoint))
	if err != nil {
		return false
	}
	if strings.TrimSpace(parsed.Hostname()) == "" {
		return false
	}
	scheme := strings.ToLower(strings.TrimSpace(parsed.Scheme))
	if scheme == secure {
		return true
	}
	return scheme == strings.ToLower(family) && isLoopbackHost(parsed.Hostname())
}

func isLoopbackHost(host string) bool {
	h := strings.TrimSpace(strings.ToLower(host))
	if h == "localhost" {
		return true
	}
	ip := net.ParseIP(h)
	return ip != nil && ip.IsLoopback()
}
