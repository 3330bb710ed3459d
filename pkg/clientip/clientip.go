package clientip

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// DefaultHeaders are checked in order before falling back to RemoteAddr.
var DefaultHeaders = []string{"X-Forwarded-For", "X-Real-IP"}

// Resolver extracts the client address from a request.
type Resolver struct {
	headers []string
}

// NewResolver returns a resolver that trusts the given headers in order.
// With no headers it uses DefaultHeaders.
func NewResolver(headers ...string) *Resolver {
	if len(headers) == 0 {
		headers = DefaultHeaders
	}
	return &Resolver{headers: headers}
}

// RemoteAddrOnly ignores forwarding headers.
func RemoteAddrOnly() *Resolver {
	return &Resolver{}
}

// Resolve returns the normalized client address or "" when none is valid.
// A comma separated header yields its first valid entry.
func (res *Resolver) Resolve(r *http.Request) string {
	for _, h := range res.headers {
		for part := range strings.SplitSeq(r.Header.Get(h), ",") {
			if ip := normalize(part); ip != "" {
				return ip
			}
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return normalize(host)
}

func normalize(s string) string {
	addr, err := netip.ParseAddr(strings.TrimSpace(s))
	if err != nil {
		return ""
	}
	return addr.Unmap().WithZone("").String()
}
