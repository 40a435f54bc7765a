package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMaskSessionID(t *testing.T) {
	assert.Equal(t, "****", MaskSessionID(""))
	assert.Equal(t, "****", MaskSessionID("ab"))
	assert.Equal(t, "****", MaskSessionID("abcd"))
	assert.Equal(t, "abcd***", MaskSessionID("abcdef-123456"))
	assert.Equal(t, "abcd***", MaskSessionID("  abcdef  "))
}

func TestSecureHeaders(t *testing.T) {
	h := SecureHeaders(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/campaigns", nil))

	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "strict-origin-when-cross-origin", w.Header().Get("Referrer-Policy"))
}

func TestRateLimiterAllow(t *testing.T) {
	rl := newRateLimiter(3, time.Minute)
	for i := 0; i < 3; i++ {
		assert.True(t, rl.allow("k"), "request %d should pass", i+1)
	}
	assert.False(t, rl.allow("k"), "4th request inside the window must be rejected")
	assert.True(t, rl.allow("other"), "keys are independent")
}

func TestRateLimiterWindowExpiry(t *testing.T) {
	rl := newRateLimiter(1, 10*time.Millisecond)
	assert.True(t, rl.allow("k"))
	assert.False(t, rl.allow("k"))
	time.Sleep(15 * time.Millisecond)
	assert.True(t, rl.allow("k"), "slot frees once the window passes")
}

func TestGetUserIDEmptyContext(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Equal(t, "", GetUserID(r.Context()))
}
