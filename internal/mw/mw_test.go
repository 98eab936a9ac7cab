package mw

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(r *gin.Engine, method, path, remote string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if remote != "" {
		req.RemoteAddr = remote
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimit(t *testing.T) {
	r := gin.New()
	r.Use(RateLimit(NewClientLimiter(rate.Every(time.Hour), 2), zap.NewNop()))
	r.POST("/toggle", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	assert.Equal(t, http.StatusNoContent, serve(r, http.MethodPost, "/toggle", "10.0.0.1:1234").Code)
	assert.Equal(t, http.StatusNoContent, serve(r, http.MethodPost, "/toggle", "10.0.0.1:1234").Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(r, http.MethodPost, "/toggle", "10.0.0.1:1234").Code)

	// budgets are per client
	assert.Equal(t, http.StatusNoContent, serve(r, http.MethodPost, "/toggle", "10.0.0.2:1234").Code)
}

func TestClientLimiter_EvictsIdleClients(t *testing.T) {
	limiter := newClientLimiter(rate.Every(time.Hour), 1, 20*time.Millisecond)

	assert.True(t, limiter.Allow("10.0.0.1"))
	assert.True(t, limiter.Allow("10.0.0.2"))
	assert.False(t, limiter.Allow("10.0.0.1"))
	assert.Equal(t, 2, limiter.limiters.ItemCount())

	assert.Eventually(t, func() bool {
		return limiter.limiters.ItemCount() == 0
	}, time.Second, 10*time.Millisecond, "idle buckets evicted")

	assert.True(t, limiter.Allow("10.0.0.1"), "fresh bucket after eviction")
}

func TestCache(t *testing.T) {
	calls := 0
	r := gin.New()
	r.Use(Cache(cache.New(time.Minute, time.Minute), time.Minute))
	r.GET("/device", func(c *gin.Context) {
		calls++
		c.JSON(http.StatusOK, gin.H{"calls": calls})
	})
	r.GET("/broken", func(c *gin.Context) {
		calls++
		c.JSON(http.StatusInternalServerError, gin.H{"error": "boom"})
	})

	first := serve(r, http.MethodGet, "/device", "")
	second := serve(r, http.MethodGet, "/device", "")

	assert.Equal(t, 1, calls)
	assert.Equal(t, "MISS", first.Header().Get(cacheHeader))
	assert.Equal(t, "HIT", second.Header().Get(cacheHeader))
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Contains(t, second.Header().Get("Content-Type"), "application/json")

	serve(r, http.MethodGet, "/broken", "")
	serve(r, http.MethodGet, "/broken", "")
	assert.Equal(t, 3, calls, "errors are not cached")
}

func TestCache_Expires(t *testing.T) {
	calls := 0
	r := gin.New()
	r.Use(Cache(cache.New(time.Minute, time.Minute), 10*time.Millisecond))
	r.GET("/device", func(c *gin.Context) {
		calls++
		c.String(http.StatusOK, "ok")
	})

	serve(r, http.MethodGet, "/device", "")
	time.Sleep(20 * time.Millisecond)
	serve(r, http.MethodGet, "/device", "")
	assert.Equal(t, 2, calls)
}
