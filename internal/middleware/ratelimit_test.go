package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func newTestRateLimiterRouter(rps float64, burst int) (*gin.Engine, *RateLimiter) {
	gin.SetMode(gin.TestMode)
	rl := NewRateLimiter(rps, burst)
	r := gin.New()
	r.Use(rl.Middleware())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r, rl
}

func doGet(r *gin.Engine) int {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Code
}

func TestRateLimiterAllowsWithinBurst(t *testing.T) {
	r, _ := newTestRateLimiterRouter(1, 3)
	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, doGet(r))
	}
}

func TestRateLimiterRejectsBeyondBurst(t *testing.T) {
	r, _ := newTestRateLimiterRouter(1, 2)
	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusOK, doGet(r))
	}
	assert.Equal(t, http.StatusTooManyRequests, doGet(r))
}

func TestRateLimiterTracksClientsIndependently(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	a := rl.getLimiter("1.2.3.4")
	b := rl.getLimiter("5.6.7.8")

	assert.True(t, a.Allow())
	assert.False(t, a.Allow())
	// A distinct client IP gets its own bucket, unaffected by a's exhaustion.
	assert.True(t, b.Allow())
}
