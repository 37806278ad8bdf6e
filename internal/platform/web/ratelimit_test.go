package web

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiter_Burst(t *testing.T) {
	rl := NewRateLimiter(1, 3)
	defer rl.Stop()

	now := time.Now()
	rl.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		assert.True(t, rl.Allow("10.0.0.1"), "request %d", i)
	}
	assert.False(t, rl.Allow("10.0.0.1"))
	// other clients have their own bucket
	assert.True(t, rl.Allow("10.0.0.2"))

	now = now.Add(time.Second)
	assert.True(t, rl.Allow("10.0.0.1"))
}

func TestRateLimiter_Disabled(t *testing.T) {
	rl := NewRateLimiter(0, 0)
	defer rl.Stop()

	for i := 0; i < 100; i++ {
		assert.True(t, rl.Allow("10.0.0.1"))
	}
}

func TestRateLimiter_EvictsIdleVisitors(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	defer rl.Stop()

	now := time.Now()
	rl.now = func() time.Time { return now }
	rl.Allow("10.0.0.1")

	now = now.Add(visitorTimeout + time.Second)
	rl.evictIdle()

	rl.mu.Lock()
	defer rl.mu.Unlock()
	assert.Empty(t, rl.visitors)
}

func TestRateLimiter_Middleware(t *testing.T) {
	rl := NewRateLimiter(0.001, 1)
	defer rl.Stop()

	h := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/send-to-print", nil)
	req.RemoteAddr = "192.0.2.7:51000"

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.7:51000"
	assert.Equal(t, "192.0.2.7", clientIP(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	assert.Equal(t, "203.0.113.9", clientIP(req))
}
