package util

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClientIPIgnoresForwardedFromUntrustedPeer(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.7:1234"
	req.Header.Set("X-Forwarded-For", "10.0.0.1")
	if got := ClientIP(req, nil); got != "203.0.113.7" {
		t.Fatalf("ClientIP = %q, want direct peer", got)
	}
}

func TestClientIPUsesForwardedFromTrustedProxy(t *testing.T) {
	trusted, err := NewTrustedProxies([]string{"192.168.0.0/16"})
	if err != nil {
		t.Fatalf("new trusted proxies: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.168.1.10:443"
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 192.168.1.11")
	if got := ClientIP(req, trusted); got != "203.0.113.7" {
		t.Fatalf("ClientIP = %q, want first untrusted hop", got)
	}
}

func TestNewTrustedProxiesRejectsGarbage(t *testing.T) {
	if _, err := NewTrustedProxies([]string{"not-an-ip"}); err == nil {
		t.Fatalf("expected parse error")
	}
}
