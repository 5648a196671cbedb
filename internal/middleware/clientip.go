package middleware

import (
	"context"
	"net"
	"net/http"
	"net/netip"
	"strings"
)

type clientIPKey struct{}

// TrustedProxies decides which address a request is attributed to. The
// CF-Connecting-IP and X-Forwarded-For headers are believed only when the TCP
// peer is inside one of the trusted networks; otherwise the peer itself is
// the client.
type TrustedProxies struct {
	nets []netip.Prefix
}

func NewTrustedProxies(nets []netip.Prefix) *TrustedProxies {
	return &TrustedProxies{nets: nets}
}

func (p *TrustedProxies) trusts(addr netip.Addr) bool {
	if p == nil {
		return false
	}
	for _, n := range p.nets {
		if n.Contains(addr) {
			return true
		}
	}
	return false
}

// Resolve returns the client address of r.
func (p *TrustedProxies) Resolve(r *http.Request) string {
	peer, ok := peerAddr(r)
	if !ok {
		return peerHost(r)
	}
	if !p.trusts(peer) {
		return peer.String()
	}

	if cf, err := netip.ParseAddr(strings.TrimSpace(r.Header.Get("CF-Connecting-IP"))); err == nil {
		return cf.Unmap().String()
	}
	// Walk the chain from the nearest hop and stop at the first address our
	// own proxies did not add.
	hops := strings.Split(r.Header.Get("X-Forwarded-For"), ",")
	for i := len(hops) - 1; i >= 0; i-- {
		hop, err := netip.ParseAddr(strings.TrimSpace(hops[i]))
		if err != nil {
			break
		}
		hop = hop.Unmap()
		if !p.trusts(hop) {
			return hop.String()
		}
	}
	return peer.String()
}

// Middleware stamps the resolved client address on the request context.
func (p *TrustedProxies) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), clientIPKey{}, p.Resolve(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ClientIP returns the address stamped by TrustedProxies.Middleware, or the
// TCP peer when the request did not pass through it.
func ClientIP(r *http.Request) string {
	if ip, ok := r.Context().Value(clientIPKey{}).(string); ok && ip != "" {
		return ip
	}
	return peerHost(r)
}

func peerHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func peerAddr(r *http.Request) (netip.Addr, bool) {
	addr, err := netip.ParseAddr(peerHost(r))
	if err != nil {
		return netip.Addr{}, false
	}
	return addr.Unmap(), true
}
