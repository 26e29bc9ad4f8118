package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func authProbe(t *testing.T, token, header, path string) int {
	t.Helper()

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest("GET", path, nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()

	AuthMiddleware(token, next).ServeHTTP(w, req)
	return w.Result().StatusCode
}

func TestAuthMiddleware(t *testing.T) {
	// No token configured: everything passes
	if status := authProbe(t, "", "", "/api/devices"); status != http.StatusOK {
		t.Errorf("Expected 200 with auth disabled, got %d", status)
	}

	// Token configured: missing header is rejected
	if status := authProbe(t, "secret", "", "/api/devices"); status != http.StatusUnauthorized {
		t.Errorf("Expected 401 without header, got %d", status)
	}

	// Wrong token is rejected
	if status := authProbe(t, "secret", "Bearer wrong", "/api/devices"); status != http.StatusUnauthorized {
		t.Errorf("Expected 401 with wrong token, got %d", status)
	}

	// Correct token passes
	if status := authProbe(t, "secret", "Bearer secret", "/api/devices"); status != http.StatusOK {
		t.Errorf("Expected 200 with correct token, got %d", status)
	}

	// Non-API paths skip auth entirely
	if status := authProbe(t, "secret", "", "/mcp"); status != http.StatusOK {
		t.Errorf("Expected 200 on non-API path, got %d", status)
	}
}

func TestAuthMiddleware_BcryptToken(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("Failed to hash token: %v", err)
	}

	if status := authProbe(t, string(hash), "Bearer secret", "/api/devices"); status != http.StatusOK {
		t.Errorf("Expected 200 with bcrypt-hashed token, got %d", status)
	}
	if status := authProbe(t, string(hash), "Bearer wrong", "/api/devices"); status != http.StatusUnauthorized {
		t.Errorf("Expected 401 with wrong token against hash, got %d", status)
	}
}

func TestSecurityHeadersMiddleware(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest("GET", "/api/devices", nil)
	w := httptest.NewRecorder()
	SecurityHeadersMiddleware(next).ServeHTTP(w, req)

	headers := w.Result().Header
	if headers.Get("X-Content-Type-Options") != "nosniff" {
		t.Error("Expected nosniff header")
	}
	if headers.Get("X-Frame-Options") != "DENY" {
		t.Error("Expected X-Frame-Options DENY")
	}
	if headers.Get("Strict-Transport-Security") != "" {
		t.Error("Expected no HSTS header on plain HTTP")
	}

	// Forwarded HTTPS enables HSTS
	req = httptest.NewRequest("GET", "/api/devices", nil)
	req.Header.Set("X-Forwarded-Proto", "https")
	w = httptest.NewRecorder()
	SecurityHeadersMiddleware(next).ServeHTTP(w, req)

	if w.Result().Header.Get("Strict-Transport-Security") == "" {
		t.Error("Expected HSTS header behind HTTPS proxy")
	}
}
