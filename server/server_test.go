package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/giygas/protoscan/config"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// mockHandler answers every route with its own name
type mockHandler struct{}

func write(w http.ResponseWriter, name string) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(name))
}

func (mockHandler) Index(w http.ResponseWriter, r *http.Request) { write(w, "index") }
func (mockHandler) Upload(w http.ResponseWriter, r *http.Request) { write(w, "upload") }
func (mockHandler) AnalysisPage(w http.ResponseWriter, r *http.Request) {
	write(w, "analysis:"+chi.URLParam(r, "id"))
}
func (mockHandler) AnalysisJSON(w http.ResponseWriter, r *http.Request) {
	write(w, "api:"+chi.URLParam(r, "id"))
}
func (mockHandler) Export(w http.ResponseWriter, r *http.Request) {
	write(w, "export:"+chi.URLParam(r, "id"))
}
func (mockHandler) History(w http.ResponseWriter, r *http.Request) { write(w, "history") }
func (mockHandler) HealthCheck(w http.ResponseWriter, r *http.Request) { write(w, "health") }

func testConfig() *config.Config {
	return &config.Config{
		Port:          "8080",
		Address:       "localhost",
		Env:           config.EnvTest,
		LogLevel:      "error",
		MaxUploadSize: 1 << 20,
		MaxHeaderSize: 1 << 20,
	}
}

func TestNewServer(t *testing.T) {
	cfg := testConfig()
	server := NewServer(cfg, mockHandler{})

	if server == nil {
		t.Fatal("Server should not be nil")
	}
	if server.server.Addr != "localhost:8080" {
		t.Errorf("Expected address localhost:8080, got %s", server.server.Addr)
	}
	if server.server.WriteTimeout != writeTimeout {
		t.Errorf("Expected write timeout %v, got %v", writeTimeout, server.server.WriteTimeout)
	}
	if server.server.MaxHeaderBytes != 1<<20 {
		t.Errorf("Expected max header bytes %d, got %d", 1<<20, server.server.MaxHeaderBytes)
	}
	if server.Router() == nil {
		t.Error("Router should not be nil")
	}
}

func TestSetupRoutes(t *testing.T) {
	server := NewServer(testConfig(), mockHandler{})

	tests := []struct {
		method         string
		path           string
		expectedStatus int
		expectedBody   string
	}{
		{"GET", "/", http.StatusOK, "index"},
		{"POST", "/upload", http.StatusOK, "upload"},
		{"GET", "/analysis/7", http.StatusOK, "analysis:7"},
		{"GET", "/api/analysis/7", http.StatusOK, "api:7"},
		{"GET", "/export/7", http.StatusOK, "export:7"},
		{"GET", "/history", http.StatusOK, "history"},
		{"GET", "/health", http.StatusOK, "health"},
		{"GET", "/metrics", http.StatusOK, "rate_limiter_buckets_total"},
		{"GET", "/upload", http.StatusMethodNotAllowed, ""},
		{"GET", "/unknown", http.StatusNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			req.RemoteAddr = "127.0.0.1:1234"
			rr := httptest.NewRecorder()

			server.router.ServeHTTP(rr, req)

			if rr.Code != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d", tt.expectedStatus, rr.Code)
			}
			if tt.expectedBody != "" && !strings.Contains(rr.Body.String(), tt.expectedBody) {
				t.Errorf("Expected body to contain %q, got %q", tt.expectedBody, rr.Body.String())
			}
		})
	}
}

func TestSetupMiddleware(t *testing.T) {
	server := NewServer(testConfig(), mockHandler{})

	server.router.Get("/test", func(w http.ResponseWriter, r *http.Request) {
		if middleware.GetReqID(r.Context()) == "" {
			t.Error("RequestID should be available in request context")
		}
		if r.RemoteAddr != "127.0.0.1" {
			t.Errorf("Expected RemoteAddr without port, got %s", r.RemoteAddr)
		}
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest("GET", "/test", nil)
	req.RemoteAddr = "127.0.0.1:1234"
	rr := httptest.NewRecorder()
	server.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rr.Code)
	}
	if rr.Header().Get("X-RateLimit-Limit") == "" {
		t.Error("Expected rate limit headers")
	}
}

func TestRequireProxy(t *testing.T) {
	tests := []struct {
		name           string
		requireProxy   bool
		expectedStatus int
	}{
		{"proxy required", true, http.StatusForbidden},
		{"proxy optional", false, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.RequireProxy = tt.requireProxy
			server := NewServer(cfg, mockHandler{})

			req := httptest.NewRequest("GET", "/health", nil)
			req.RemoteAddr = "192.0.2.10:5555"
			rr := httptest.NewRecorder()
			server.router.ServeHTTP(rr, req)

			if rr.Code != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d", tt.expectedStatus, rr.Code)
			}
		})
	}
}

func TestUploadBodyLimit(t *testing.T) {
	cfg := testConfig()
	cfg.MaxUploadSize = 100
	server := NewServer(cfg, mockHandler{})

	req := httptest.NewRequest("POST", "/upload", strings.NewReader(strings.Repeat("x", 101)))
	req.RemoteAddr = "127.0.0.1:1234"
	rr := httptest.NewRecorder()
	server.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("Expected status 413, got %d", rr.Code)
	}
}

func TestServerLifecycle(t *testing.T) {
	cfg := testConfig()
	cfg.Address = "127.0.0.1"
	cfg.Port = "0"
	server := NewServer(cfg, mockHandler{})

	errChan := make(chan error, 1)
	go func() {
		errChan <- server.Start()
	}()

	time.Sleep(100 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		t.Errorf("Server shutdown should not error: %v", err)
	}

	select {
	case err := <-errChan:
		if err != nil {
			t.Errorf("Start should return nil after a graceful shutdown, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Error("Server should have shutdown within 2 seconds")
	}
}
