package http

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// maxBodyBytes caps JSON request bodies on auth endpoints
const maxBodyBytes = 1 << 20

// IPExtractor resolves the real client IP. Forwarding headers are honoured
// only when the direct peer is inside one of the trusted proxy ranges.
type IPExtractor struct {
	trusted []*net.IPNet
}

// NewIPExtractor parses the trusted proxy CIDRs. Invalid ranges are skipped.
func NewIPExtractor(trustedProxies []string) *IPExtractor {
	nets := make([]*net.IPNet, 0, len(trustedProxies))
	for _, cidr := range trustedProxies {
		_, ipNet, err := net.ParseCIDR(strings.TrimSpace(cidr))
		if err != nil {
			continue
		}
		nets = append(nets, ipNet)
	}
	return &IPExtractor{trusted: nets}
}

// ClientIP extracts the client address from r
func (e *IPExtractor) ClientIP(r *http.Request) string {
	remoteIP := remoteAddr(r)

	if e == nil || !e.isTrusted(remoteIP) {
		return remoteIP
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		for _, ip := range strings.Split(xff, ",") {
			ip = strings.TrimSpace(ip)
			if net.ParseIP(ip) != nil {
				return ip
			}
		}
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); net.ParseIP(xri) != nil {
		return xri
	}

	return remoteIP
}

func (e *IPExtractor) isTrusted(ip string) bool {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	for _, n := range e.trusted {
		if n.Contains(parsed) {
			return true
		}
	}
	return false
}

func remoteAddr(r *http.Request) string {
	if r.RemoteAddr == "" {
		return "unknown"
	}
	if ip, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return ip
	}
	return r.RemoteAddr
}

// DecodeJSON decodes a bounded JSON body into dst, rejecting unknown fields
func DecodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}
