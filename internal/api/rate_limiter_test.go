package api

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiter_RejectsOverBurst(t *testing.T) {
	rl := NewRateLimiter(1, 2)
	defer rl.Close()

	handler := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for range 2 {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/login", nil))
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/login", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), ErrCodeRateLimited)
}

func TestRateLimiter_PerClientIsolation(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	defer rl.Close()

	assert.True(t, rl.Allow("10.0.0.1"))
	assert.False(t, rl.Allow("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.2"))
}

func TestRateLimiter_PruneIdleClients(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	defer rl.Close()

	rl.Allow("10.0.0.1")
	rl.prune(time.Now().Add(time.Hour))

	rl.mu.Lock()
	defer rl.mu.Unlock()
	assert.Empty(t, rl.clients)
}

func TestExtractIP_IgnoresForwardingHeaders(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:5555"
	assert.Equal(t, "192.0.2.1", extractIP(req))

	req.Header.Set("X-Real-IP", "198.51.100.7")
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	assert.Equal(t, "192.0.2.1", extractIP(req))
}

func loginAttempts(t *testing.T, h http.Handler, n int, forwardedFor func(i int) string) (allowed int) {
	t.Helper()
	for i := range n {
		req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
		req.RemoteAddr = "203.0.113.9:40000"
		if forwardedFor != nil {
			req.Header.Set("X-Forwarded-For", forwardedFor(i))
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code == http.StatusOK {
			allowed++
		}
	}
	return allowed
}

func TestRateLimiter_RotatingForwardedForStillLimited(t *testing.T) {
	rl := NewRateLimiter(5, 3)
	defer rl.Close()

	handler := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	allowed := loginAttempts(t, handler, 50, func(i int) string { return fmt.Sprintf("10.0.0.%d", i) })
	assert.Equal(t, 3, allowed)
}

func TestRateLimiter_TrustedProxyKeysOnForwardedFor(t *testing.T) {
	rl := NewRateLimiter(5, 3)
	defer rl.Close()

	handler := middleware.RealIP(rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))

	// Distinct clients behind one proxy each get their own bucket.
	allowed := loginAttempts(t, handler, 10, func(i int) string { return fmt.Sprintf("10.0.0.%d", i) })
	assert.Equal(t, 10, allowed)

	// One client behind the proxy is limited.
	allowed = loginAttempts(t, handler, 10, func(int) string { return "10.0.1.1" })
	assert.Equal(t, 3, allowed)
}
