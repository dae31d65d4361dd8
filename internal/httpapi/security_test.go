package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"zaypos/backend/internal/domain"
)

func TestMiddlewareSetsSecurityHeaders(t *testing.T) {
	api, _ := newTestAPI(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	api.Handler().ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Fatalf("expected X-Content-Type-Options nosniff, got %q", got)
	}
	if got := rec.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Fatalf("expected X-Frame-Options DENY, got %q", got)
	}
	if got := rec.Header().Get("Referrer-Policy"); got == "" {
		t.Fatalf("expected Referrer-Policy to be set")
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("expected CORS origin *, got %q", got)
	}
}

func TestPreflightReturns204(t *testing.T) {
	api, _ := newTestAPI(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/products", nil)
	req.Header.Set("Origin", "http://127.0.0.1:3000")
	rec := httptest.NewRecorder()

	api.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 for preflight, got %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Methods"); !strings.Contains(got, "DELETE") {
		t.Fatalf("expected allow-methods to include DELETE, got %q", got)
	}
}

func TestLoginRateLimitReturns429(t *testing.T) {
	api, _ := newTestAPI(t)
	body, _ := json.Marshal(domain.LoginRequest{Username: "admin", Password: "wrong-pass"})

	// The limiter allows 10 attempts per window per client address.
	for i := 0; i < 11; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.RemoteAddr = "127.0.0.1:5000"
		rec := httptest.NewRecorder()

		api.Handler().ServeHTTP(rec, req)

		if i < 10 && rec.Code != http.StatusUnauthorized {
			t.Fatalf("attempt %d expected 401 before limit, got %d", i+1, rec.Code)
		}
		if i == 10 && rec.Code != http.StatusTooManyRequests {
			t.Fatalf("attempt 11 expected 429, got %d", rec.Code)
		}
	}
}

func TestLoginSuccessResetsLimiter(t *testing.T) {
	api, _ := newTestAPI(t)
	wrong, _ := json.Marshal(domain.LoginRequest{Username: "admin", Password: "wrong-pass"})
	right, _ := json.Marshal(domain.LoginRequest{Username: "admin", Password: "admin123"})

	send := func(payload []byte) int {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(payload))
		req.Header.Set("Content-Type", "application/json")
		req.RemoteAddr = "127.0.0.1:6000"
		rec := httptest.NewRecorder()
		api.Handler().ServeHTTP(rec, req)
		return rec.Code
	}

	for i := 0; i < 9; i++ {
		if code := send(wrong); code != http.StatusUnauthorized {
			t.Fatalf("attempt %d expected 401, got %d", i+1, code)
		}
	}
	if code := send(right); code != http.StatusOK {
		t.Fatalf("expected successful login before limit, got %d", code)
	}
	// Counter was reset, so failures start a fresh window.
	if code := send(wrong); code != http.StatusUnauthorized {
		t.Fatalf("expected 401 after reset, got %d", code)
	}
}

func TestJSONBodyTooLargeRejected(t *testing.T) {
	api, _ := newTestAPI(t)
	veryLong := strings.Repeat("a", maxBodyBytes+1024)
	body := fmt.Sprintf(`{"username":"%s","password":"x"}`, veryLong)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	api.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for too large body, got %d", rec.Code)
	}
}

func TestParsePositiveLimit(t *testing.T) {
	rec := httptest.NewRecorder()
	if limit, ok := parsePositiveLimit(rec, ""); !ok || limit != 0 {
		t.Fatalf("expected empty limit to pass through as 0, got %d ok=%v", limit, ok)
	}
	rec = httptest.NewRecorder()
	if limit, ok := parsePositiveLimit(rec, "25"); !ok || limit != 25 {
		t.Fatalf("expected limit 25, got %d ok=%v", limit, ok)
	}
	for _, raw := range []string{"0", "-3", "abc"} {
		rec = httptest.NewRecorder()
		if _, ok := parsePositiveLimit(rec, raw); ok {
			t.Fatalf("expected %q to be rejected", raw)
		}
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 written for %q, got %d", raw, rec.Code)
		}
	}
}

func TestClientKeyStripsPort(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.RemoteAddr = "203.0.113.9:4411"
	if got := clientKey(req); got != "203.0.113.9" {
		t.Fatalf("expected bare address, got %q", got)
	}
	req.RemoteAddr = "weird-value"
	if got := clientKey(req); got != "weird-value" {
		t.Fatalf("expected fallback to raw remote addr, got %q", got)
	}
}
