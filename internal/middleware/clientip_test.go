package middleware

import (
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"
)

func TestTrustedProxiesResolve(t *testing.T) {
	proxies := NewTrustedProxies([]netip.Prefix{
		netip.MustParsePrefix("10.0.0.0/8"),
		netip.MustParsePrefix("fd00::/8"),
	})

	tests := []struct {
		name    string
		remote  string
		headers map[string]string
		want    string
	}{
		{"direct client", "203.0.113.7:5000", nil, "203.0.113.7"},
		{"untrusted peer spoofing xff", "203.0.113.7:5000", map[string]string{"X-Forwarded-For": "1.1.1.1"}, "203.0.113.7"},
		{"untrusted peer spoofing cloudflare", "203.0.113.7:5000", map[string]string{"CF-Connecting-IP": "1.1.1.1"}, "203.0.113.7"},
		{"trusted proxy cloudflare", "10.0.0.2:443", map[string]string{"CF-Connecting-IP": "198.51.100.4", "X-Forwarded-For": "2.2.2.2"}, "198.51.100.4"},
		{"trusted proxy xff", "10.0.0.2:443", map[string]string{"X-Forwarded-For": "198.51.100.4"}, "198.51.100.4"},
		{"client-prepended hop ignored", "10.0.0.2:443", map[string]string{"X-Forwarded-For": "1.1.1.1, 198.51.100.4, 10.0.0.9"}, "198.51.100.4"},
		{"garbage cloudflare header", "10.0.0.2:443", map[string]string{"CF-Connecting-IP": "not-an-ip", "X-Forwarded-For": "198.51.100.4"}, "198.51.100.4"},
		{"trusted proxy without headers", "10.0.0.2:443", nil, "10.0.0.2"},
		{"only trusted hops", "10.0.0.2:443", map[string]string{"X-Forwarded-For": "10.0.0.3"}, "10.0.0.2"},
		{"ipv6 trusted proxy", "[fd00::1]:443", map[string]string{"X-Forwarded-For": "2001:db8::5"}, "2001:db8::5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if got := proxies.Resolve(req); got != tt.want {
				t.Errorf("Resolve = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestClientIPFromMiddleware(t *testing.T) {
	proxies := NewTrustedProxies([]netip.Prefix{netip.MustParsePrefix("10.0.0.0/8")})

	var got string
	handler := proxies.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = ClientIP(r)
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "10.0.0.2:443"
	req.Header.Set("X-Forwarded-For", "198.51.100.4")
	handler.ServeHTTP(httptest.NewRecorder(), req)
	if got != "198.51.100.4" {
		t.Errorf("ClientIP = %q, want 198.51.100.4", got)
	}

	bare := httptest.NewRequest("GET", "/", nil)
	bare.RemoteAddr = "203.0.113.7:5000"
	bare.Header.Set("X-Forwarded-For", "1.1.1.1")
	if ip := ClientIP(bare); ip != "203.0.113.7" {
		t.Errorf("ClientIP without middleware = %q, want the peer", ip)
	}
}
