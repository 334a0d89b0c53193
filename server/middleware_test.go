package server

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"strings"
	"testing"

	"github.com/giygas/protoscan/config"
)

func TestGetTokenCost(t *testing.T) {
	tests := []struct {
		name         string
		method       string
		path         string
		expectedCost int64
	}{
		{"Index", "GET", "/", 0},
		{"Metrics", "GET", "/metrics", 0},
		{"Favicon", "GET", "/favicon.ico", 0},
		{"Health", "GET", "/health", 5},
		{"Upload", "POST", "/upload", 200},
		{"History", "GET", "/history", 20},
		{"History page", "GET", "/history?page=3", 20},
		{"Export", "GET", "/export/12", 50},
		{"Analysis page", "GET", "/analysis/12", 10},
		{"Analysis JSON", "GET", "/api/analysis/12", 10},
		{"Unknown", "GET", "/unknown", 20},
		{"Prefix without slash", "GET", "/exports", 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			cost := getTokenCost(req)

			if cost != tt.expectedCost {
				t.Errorf("Expected cost %d for %s, got %d", tt.expectedCost, tt.path, cost)
			}
		})
	}
}

func TestRateLimit(t *testing.T) {
	rl := NewRateLimiter()
	handler := rateLimit(rl, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// A full bucket pays for five uploads
	for i := 0; i < 5; i++ {
		req := httptest.NewRequest("POST", "/upload", nil)
		req.RemoteAddr = "203.0.113.7"
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("Upload %d: expected 200, got %d", i+1, rr.Code)
		}
		if rr.Header().Get("X-RateLimit-Limit") != "1000" {
			t.Errorf("Expected X-RateLimit-Limit 1000, got %s", rr.Header().Get("X-RateLimit-Limit"))
		}
	}

	req := httptest.NewRequest("POST", "/upload", nil)
	req.RemoteAddr = "203.0.113.7"
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusTooManyRequests {
		t.Errorf("Expected 429 after the bucket is drained, got %d", rr.Code)
	}
	if rr.Header().Get("Retry-After") != "60" {
		t.Errorf("Expected Retry-After 60, got %s", rr.Header().Get("Retry-After"))
	}

	// Free routes and other clients are unaffected
	req = httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "203.0.113.7"
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Errorf("Expected free route to pass, got %d", rr.Code)
	}

	req = httptest.NewRequest("POST", "/upload", nil)
	req.RemoteAddr = "198.51.100.2"
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Errorf("Expected another client to pass, got %d", rr.Code)
	}
}

func TestRateLimiterRemoveIdle(t *testing.T) {
	rl := NewRateLimiter()

	rl.getBucket("203.0.113.1")
	busy := rl.getBucket("203.0.113.2")
	busy.TakeAvailable(500)

	if removed := rl.removeIdle(); removed != 1 {
		t.Errorf("Expected 1 idle client removed, got %d", removed)
	}

	rl.mu.RLock()
	defer rl.mu.RUnlock()
	if _, ok := rl.clients["203.0.113.2"]; !ok {
		t.Error("Expected the drained bucket to be kept")
	}
}

// testProxies trusts a proxy on 192.168.1.1 and the internal 10.0.0.0/8 range
var testProxies = []netip.Prefix{
	netip.MustParsePrefix("192.168.1.1/32"),
	netip.MustParsePrefix("10.0.0.0/8"),
}

func TestRealIPMiddleware(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		expected   string
	}{
		{"single forwarded IP", "192.168.1.1:12345", map[string]string{"X-Forwarded-For": "203.0.113.1"}, "203.0.113.1"},
		{"forwarded chain through internal hop", "192.168.1.1:12345", map[string]string{"X-Forwarded-For": "203.0.113.1, 10.0.0.1"}, "203.0.113.1"},
		{"client-supplied prefix ignored", "192.168.1.1:12345", map[string]string{"X-Forwarded-For": "198.51.100.77, 203.0.113.1"}, "203.0.113.1"},
		{"garbage hop stops the walk", "192.168.1.1:12345", map[string]string{"X-Forwarded-For": "203.0.113.1, not-an-ip, 10.0.0.1"}, "10.0.0.1"},
		{"real IP header", "192.168.1.1:12345", map[string]string{"X-Real-IP": " 203.0.113.9 "}, "203.0.113.9"},
		{"invalid real IP header", "192.168.1.1:12345", map[string]string{"X-Real-IP": "nobody"}, "192.168.1.1"},
		{"untrusted peer forwarded header", "203.0.113.50:4000", map[string]string{"X-Forwarded-For": "198.51.100.1"}, "203.0.113.50"},
		{"untrusted peer real IP header", "203.0.113.50:4000", map[string]string{"X-Real-IP": "198.51.100.1"}, "203.0.113.50"},
		{"no headers strips port", "192.168.1.1:12345", nil, "192.168.1.1"},
		{"no headers without port", "192.168.1.1", nil, "192.168.1.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}

			var got string
			handler := RealIPMiddleware(testProxies)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = r.RemoteAddr
			}))
			handler.ServeHTTP(httptest.NewRecorder(), req)

			if got != tt.expected {
				t.Errorf("Expected RemoteAddr %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestRealIPMiddleware_NoTrustedProxies(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "127.0.0.1:8080"
	req.Header.Set("X-Forwarded-For", "203.0.113.1")

	var got string
	handler := RealIPMiddleware(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.RemoteAddr
	}))
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if got != "127.0.0.1" {
		t.Errorf("Expected the peer address, got %q", got)
	}
}

func TestRealIPMiddleware_SpoofedHeadersShareBucket(t *testing.T) {
	rl := NewRateLimiter()
	handler := RealIPMiddleware(testProxies)(rateLimit(rl, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))

	for _, spoofed := range []string{"198.51.100.1", "198.51.100.2", "198.51.100.3"} {
		req := httptest.NewRequest("GET", "/", nil)
		req.RemoteAddr = "203.0.113.50:4000"
		req.Header.Set("X-Forwarded-For", spoofed)
		req.Header.Set("X-Real-IP", spoofed)
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}

	rl.mu.RLock()
	defer rl.mu.RUnlock()
	if len(rl.clients) != 1 {
		t.Fatalf("Expected a single bucket, got %d", len(rl.clients))
	}
	if _, ok := rl.clients["203.0.113.50"]; !ok {
		t.Error("Expected the bucket to be keyed by the peer address")
	}
}

func TestBlockDirectAccessMiddleware(t *testing.T) {
	tests := []struct {
		name           string
		remoteAddr     string
		headers        map[string]string
		expectedStatus int
	}{
		{"localhost IPv4", "127.0.0.1:12345", nil, http.StatusOK},
		{"localhost IPv6", "[::1]:12345", nil, http.StatusOK},
		{"direct IP", "203.0.113.5:443", nil, http.StatusForbidden},
		{"trusted proxy", "10.0.0.2:443", map[string]string{"X-Forwarded-For": "203.0.113.5"}, http.StatusOK},
		{"trusted proxy real IP", "10.0.0.2:443", map[string]string{"X-Real-IP": "203.0.113.5"}, http.StatusOK},
		{"spoofed forwarded header", "203.0.113.5:443", map[string]string{"X-Forwarded-For": "10.0.0.9"}, http.StatusForbidden},
		{"spoofed real IP header", "203.0.113.5:443", map[string]string{"X-Real-IP": "127.0.0.1"}, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}

			rr := httptest.NewRecorder()
			handler := BlockDirectAccessMiddleware(testProxies)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))
			handler.ServeHTTP(rr, req)

			if rr.Code != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d", tt.expectedStatus, rr.Code)
			}
		})
	}
}

func TestRequestSizeMiddleware(t *testing.T) {
	cfg := &config.Config{MaxUploadSize: 1024, MaxHeaderSize: 256}

	tests := []struct {
		name           string
		body           string
		header         string
		expectedStatus int
	}{
		{"no body", "", "", http.StatusOK},
		{"exactly max size", strings.Repeat("a", 1024), "", http.StatusOK},
		{"exceeds max size", strings.Repeat("a", 1025), "", http.StatusRequestEntityTooLarge},
		{"headers too large", "", strings.Repeat("h", 300), http.StatusRequestHeaderFieldsTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/upload", strings.NewReader(tt.body))
			if tt.header != "" {
				req.Header.Set("X-Padding", tt.header)
			}

			rr := httptest.NewRecorder()
			handler := RequestSizeMiddleware(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))
			handler.ServeHTTP(rr, req)

			if rr.Code != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d", tt.expectedStatus, rr.Code)
			}
		})
	}
}

func TestRequestSizeMiddleware_NoContentLength(t *testing.T) {
	cfg := &config.Config{MaxUploadSize: 16, MaxHeaderSize: 1024}

	req := httptest.NewRequest("POST", "/upload", io.NopCloser(strings.NewReader(strings.Repeat("a", 64))))
	req.ContentLength = -1

	var readErr error
	handler := RequestSizeMiddleware(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, readErr = io.ReadAll(r.Body)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), req)

	var maxErr *http.MaxBytesError
	if readErr == nil || !errors.As(readErr, &maxErr) {
		t.Errorf("Expected body read to stop at the limit, got %v", readErr)
	}
}
