package utils

import (
	"net"
	"net/http"
	"strings"
)

// GetIPAddress gets the real IP address from request
func GetIPAddress(r *http.Request) string {
	forwarded := r.Header.Get("X-Forwarded-For")
	if forwarded != "" {
		return StripPort(strings.TrimSpace(strings.Split(forwarded, ",")[0]))
	}

	realIP := r.Header.Get("X-Real-IP")
	if realIP != "" {
		return StripPort(realIP)
	}

	return StripPort(r.RemoteAddr)
}

// StripPort removes a trailing :port from an address when one is present.
// Handles "1.2.3.4:80", "[::1]:80" and bare IPv6 literals.
func StripPort(addr string) string {
	if addr == "" {
		return ""
	}
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	// Bracketed IPv6 without a port
	if strings.HasPrefix(addr, "[") && strings.HasSuffix(addr, "]") {
		return addr[1 : len(addr)-1]
	}
	return addr
}

// StripHostPort removes a trailing :port from a host header value. Unlike
// StripPort it never mistakes an unbracketed IPv6 literal for host:port.
func StripHostPort(host string) string {
	if host == "" {
		return ""
	}
	// More than one colon and no brackets means a bare IPv6 literal.
	if strings.Count(host, ":") > 1 && !strings.HasPrefix(host, "[") {
		return host
	}
	return StripPort(host)
}
