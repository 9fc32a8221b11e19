package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func corsHandler(allowed []string) http.Handler {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return CORS(allowed)(next)
}

func TestCORS_AllowsConfiguredOrigin(t *testing.T) {
	handler := corsHandler([]string{"https://app.example.com"})

	req := httptest.NewRequest("GET", "/api/v1/health", nil)
	req.Header.Set("Origin", "https://app.example.com")
	recorder := httptest.NewRecorder()

	handler.ServeHTTP(recorder, req)

	if got := recorder.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Errorf("expected allow-origin 'https://app.example.com', got '%s'", got)
	}
	if recorder.Code != http.StatusNoContent {
		t.Errorf("expected request to reach the handler, got status %d", recorder.Code)
	}
}

func TestCORS_AlwaysAllowsLocalhost(t *testing.T) {
	handler := corsHandler(nil)

	req := httptest.NewRequest("GET", "/api/v1/health", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	recorder := httptest.NewRecorder()

	handler.ServeHTTP(recorder, req)

	if got := recorder.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Errorf("expected localhost origin to be allowed, got '%s'", got)
	}
}

func TestCORS_RejectsUnknownOrigin(t *testing.T) {
	handler := corsHandler([]string{"https://app.example.com"})

	req := httptest.NewRequest("GET", "/api/v1/health", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	recorder := httptest.NewRecorder()

	handler.ServeHTTP(recorder, req)

	if got := recorder.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("expected no allow-origin header for unknown origin, got '%s'", got)
	}
	// The request itself still passes through; only the CORS grant is withheld.
	if recorder.Code != http.StatusNoContent {
		t.Errorf("expected status 204, got %d", recorder.Code)
	}
}

func TestCORS_Preflight(t *testing.T) {
	called := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	})
	handler := CORS(nil)(next)

	req := httptest.NewRequest("OPTIONS", "/api/v1/analyze", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	recorder := httptest.NewRecorder()

	handler.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusOK {
		t.Errorf("expected preflight status 200, got %d", recorder.Code)
	}
	if called {
		t.Error("preflight request must not reach the handler")
	}
	if got := recorder.Header().Get("Access-Control-Allow-Methods"); got == "" {
		t.Error("expected allow-methods header on preflight response")
	}
}

func TestCORS_TrimsConfiguredOrigins(t *testing.T) {
	handler := corsHandler([]string{"  https://app.example.com  ", ""})

	req := httptest.NewRequest("GET", "/api/v1/health", nil)
	req.Header.Set("Origin", "https://app.example.com")
	recorder := httptest.NewRecorder()

	handler.ServeHTTP(recorder, req)

	if got := recorder.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Errorf("expected trimmed origin to match, got '%s'", got)
	}
}
