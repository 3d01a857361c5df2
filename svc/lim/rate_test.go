package lim

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAllowBurstThenReject(t *testing.T) {
	l, err := New(60, 3, 100, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for i := 0; i < 3; i++ {
		if !l.Allow("1.2.3.4") {
			t.Fatalf("request %d inside burst rejected", i)
		}
	}
	if l.Allow("1.2.3.4") {
		t.Error("request past burst allowed")
	}
	// other clients have their own buckets
	if !l.Allow("5.6.7.8") {
		t.Error("fresh client rejected")
	}
}

func TestNewValidation(t *testing.T) {
	if _, err := New(0, 1, 10, nil); err == nil {
		t.Error("expected error for zero rpm")
	}
	if _, err := New(60, 10, 100, []string{"not-an-ip"}); err == nil {
		t.Error("expected error for malformed trusted proxy")
	}
	if _, err := New(60, 10, 100, []string{"bad/cidr"}); err == nil {
		t.Error("expected error for malformed CIDR")
	}
}

func TestRealIP(t *testing.T) {
	l, err := New(60, 10, 100, []string{"10.0.0.1"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.1:1234"
	r.Header.Set("X-Forwarded-For", "203.0.113.7")
	if got := l.RealIP(r); got != "203.0.113.7" {
		t.Errorf("RealIP behind trusted proxy = %q, want 203.0.113.7", got)
	}

	// XFF from an untrusted peer is ignored
	r.RemoteAddr = "198.51.100.9:1234"
	if got := l.RealIP(r); got != "198.51.100.9" {
		t.Errorf("RealIP from untrusted peer = %q, want 198.51.100.9", got)
	}

	// forged hops behind the trusted proxy: rightmost untrusted wins
	r.RemoteAddr = "10.0.0.1:1234"
	r.Header.Set("X-Forwarded-For", "203.0.113.7, 198.51.100.9")
	if got := l.RealIP(r); got != "198.51.100.9" {
		t.Errorf("RealIP with chained XFF = %q, want 198.51.100.9", got)
	}
}

func TestRealIPNoProxies(t *testing.T) {
	l, _ := New(60, 10, 100, nil)
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "198.51.100.9:4321"
	r.Header.Set("X-Forwarded-For", "203.0.113.7")
	if got := l.RealIP(r); got != "198.51.100.9" {
		t.Errorf("RealIP without trusted proxies = %q, want remote addr", got)
	}
}
