package util

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClientIP(t *testing.T) {
	lb, err := NewTrustedProxies([]string{"172.16.0.0/12", "fd00::/8", "192.0.2.1"})
	if err != nil {
		t.Fatalf("new trusted proxies: %v", err)
	}

	tests := []struct {
		name       string
		trusted    *TrustedProxies
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{
			name:       "direct client",
			remoteAddr: "203.0.113.9:50000",
			want:       "203.0.113.9",
		},
		{
			name:       "spoofed header from untrusted peer",
			trusted:    lb,
			remoteAddr: "203.0.113.9:50000",
			headers:    map[string]string{"X-Forwarded-For": "1.1.1.1"},
			want:       "203.0.113.9",
		},
		{
			name:       "single load balancer hop",
			trusted:    lb,
			remoteAddr: "172.20.0.4:443",
			headers:    map[string]string{"X-Forwarded-For": "198.51.100.23"},
			want:       "198.51.100.23",
		},
		{
			name:       "client-supplied prefix is skipped",
			trusted:    lb,
			remoteAddr: "192.0.2.1:443",
			headers:    map[string]string{"X-Forwarded-For": "6.6.6.6, 198.51.100.23, 172.16.9.9"},
			want:       "198.51.100.23",
		},
		{
			name:       "ipv6 proxy",
			trusted:    lb,
			remoteAddr: "[fd00::1]:443",
			headers:    map[string]string{"X-Forwarded-For": "2001:db8::42"},
			want:       "2001:db8::42",
		},
		{
			name:       "x-real-ip when forwarded-for is garbage",
			trusted:    lb,
			remoteAddr: "172.16.0.2:443",
			headers:    map[string]string{"X-Forwarded-For": "unknown", "X-Real-IP": "198.51.100.7"},
			want:       "198.51.100.7",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
			req.RemoteAddr = tc.remoteAddr
			for k, v := range tc.headers {
				req.Header.Set(k, v)
			}
			if got := ClientIP(req, tc.trusted); got != tc.want {
				t.Fatalf("client ip = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestNewTrustedProxiesRejectsInvalidEntries(t *testing.T) {
	for _, entry := range []string{"not-an-ip", "10.0.0.0/99"} {
		if _, err := NewTrustedProxies([]string{entry}); err == nil {
			t.Fatalf("expected error for %q", entry)
		}
	}
	tp, err := NewTrustedProxies(nil)
	if err != nil {
		t.Fatalf("empty list: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.10:80"
	req.Header.Set("X-Forwarded-For", "198.51.100.1")
	if got := ClientIP(req, tp); got != "192.0.2.10" {
		t.Fatalf("empty trusted set should ignore forwarded headers, got %q", got)
	}
}
