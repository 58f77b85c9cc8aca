package realip

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func resolve(cfg Config, remote string, headers map[string]string) string {
	var got string
	handler := Middleware(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = GetClientIP(r)
	}))

	req := httptest.NewRequest("POST", "/api/mint", nil)
	req.RemoteAddr = remote
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	handler.ServeHTTP(httptest.NewRecorder(), req)
	return got
}

func TestMiddleware(t *testing.T) {
	trusting := Config{TrustProxy: true, TrustedProxies: []string{"10.0.0.0/8", "192.168.0.0/16", "172.16.0.9"}}

	tests := []struct {
		name    string
		cfg     Config
		remote  string
		headers map[string]string
		want    string
	}{
		{
			name:    "proxy trust disabled ignores headers",
			cfg:     Config{TrustedProxies: []string{"10.0.0.0/8"}},
			remote:  "10.0.0.1:1234",
			headers: map[string]string{"X-Forwarded-For": "203.0.113.50"},
			want:    "10.0.0.1",
		},
		{
			name:    "trusted proxy chain",
			cfg:     trusting,
			remote:  "10.0.0.1:1234",
			headers: map[string]string{"X-Forwarded-For": "203.0.113.50, 10.0.0.5"},
			want:    "203.0.113.50",
		},
		{
			name:    "spoofed hop left of the real client is ignored",
			cfg:     trusting,
			remote:  "10.0.0.1:1234",
			headers: map[string]string{"X-Forwarded-For": "1.1.1.1, 203.0.113.50, 10.0.0.5"},
			want:    "203.0.113.50",
		},
		{
			name:    "untrusted peer",
			cfg:     trusting,
			remote:  "198.51.100.7:1234",
			headers: map[string]string{"X-Forwarded-For": "203.0.113.50"},
			want:    "198.51.100.7",
		},
		{
			name:    "single trusted address",
			cfg:     trusting,
			remote:  "172.16.0.9:80",
			headers: map[string]string{"X-Forwarded-For": "203.0.113.50"},
			want:    "203.0.113.50",
		},
		{
			name:    "X-Real-IP fallback",
			cfg:     trusting,
			remote:  "192.168.1.1:80",
			headers: map[string]string{"X-Real-IP": " 203.0.113.9 "},
			want:    "203.0.113.9",
		},
		{
			name:    "all hops trusted returns leftmost",
			cfg:     trusting,
			remote:  "10.0.0.1:1234",
			headers: map[string]string{"X-Forwarded-For": "10.1.1.1, 10.0.0.5"},
			want:    "10.1.1.1",
		},
		{
			name:   "ipv6 peer",
			cfg:    Config{},
			remote: "[2001:db8::1]:443",
			want:   "2001:db8::1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, resolve(tt.cfg, tt.remote, tt.headers))
		})
	}
}

func TestGetClientIPWithoutMiddleware(t *testing.T) {
	req := httptest.NewRequest("GET", "/health", nil)
	req.RemoteAddr = "192.0.2.1:5555"
	assert.Equal(t, "192.0.2.1", GetClientIP(req))
}

func TestParsePrefixesSkipsGarbage(t *testing.T) {
	prefixes := parsePrefixes([]string{"10.0.0.0/8", "not-an-ip", "::1"})
	assert.Len(t, prefixes, 2)
}
