package security

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"

	applog "bankfees/internal/log"
)

func TestExtractClientIP(t *testing.T) {
	d := NewDetector()
	cases := []struct {
		name   string
		remote string
		xff    string
		xri    string
		want   string
	}{
		{"direct", "203.0.113.7:5000", "", "", "203.0.113.7"},
		{"untrusted peer ignores forwarded", "203.0.113.7:5000", "198.51.100.1", "", "203.0.113.7"},
		{"trusted proxy forwarded", "10.0.0.2:80", "198.51.100.1, 10.0.0.3", "", "198.51.100.1"},
		{"trusted proxy real ip", "127.0.0.1:80", "", "198.51.100.9", "198.51.100.9"},
		{"invalid forwarded falls back", "192.168.1.1:80", "garbage", "", "192.168.1.1"},
		{"no port", "203.0.113.7", "", "", "203.0.113.7"},
	}
	for _, tc := range cases {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.RemoteAddr = tc.remote
		if tc.xff != "" {
			r.Header.Set("X-Forwarded-For", tc.xff)
		}
		if tc.xri != "" {
			r.Header.Set("X-Real-IP", tc.xri)
		}
		if got := d.ExtractClientIP(r); got != tc.want {
			t.Errorf("%s: got %q want %q", tc.name, got, tc.want)
		}
	}
}

func TestDetectSuspiciousRequest(t *testing.T) {
	d := NewDetector()
	cases := []struct {
		target string
		method string
		agent  string
		want   bool
	}{
		{"/api/banks", http.MethodGet, "Mozilla/5.0", false},
		{"/api/accounts?search=brac", http.MethodGet, "", false},
		{"/.env", http.MethodGet, "", true},
		{"/api/banks?q=javascript:alert(1)", http.MethodGet, "", true},
		{"/api/banks", http.MethodGet, "sqlmap/1.7", true},
		{"/api/banks", "TRACE", "", true},
	}
	for _, tc := range cases {
		r := httptest.NewRequest(tc.method, tc.target, nil)
		r.Header.Set("User-Agent", tc.agent)
		if got := d.DetectSuspiciousRequest(r); got != tc.want {
			t.Errorf("%s %s (%s): got %v", tc.method, tc.target, tc.agent, got)
		}
	}
	if got := d.GetMetrics().SuspiciousRequests; got != 4 {
		t.Fatalf("expected 4 suspicious requests counted, got %d", got)
	}

	// The middleware only observes.
	h := d.Middleware(applog.Discard())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/.git/config", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("suspicious requests should pass through, got %d", rr.Code)
	}
}

func TestHeaders(t *testing.T) {
	h := NewHeadersMiddleware(DefaultHeadersConfig()).Middleware(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	for _, name := range []string{"X-Content-Type-Options", "X-Frame-Options", "Content-Security-Policy", "Cache-Control"} {
		if rr.Header().Get(name) == "" {
			t.Errorf("missing %s", name)
		}
	}
	if rr.Header().Get("Strict-Transport-Security") != "" {
		t.Error("HSTS must not be sent over plain HTTP")
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.TLS = &tls.ConnectionState{}
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Header().Get("Strict-Transport-Security") == "" {
		t.Error("HSTS missing over TLS")
	}

	cached := CacheFor(60)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	cached.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if got := rr.Header().Get("Cache-Control"); got != "public, max-age=60" {
		t.Fatalf("CacheFor should override, got %q", got)
	}
}
