package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telekom/frontdesk/pkg/metrics"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(router *gin.Engine, path, remote string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, path, nil)
	req.RemoteAddr = remote
	router.ServeHTTP(w, req)
	return w
}

func TestDefaultAPIConfig(t *testing.T) {
	cfg := DefaultAPIConfig()
	assert.Equal(t, float64(20), cfg.Rate)
	assert.Equal(t, 40, cfg.Burst)
	assert.Equal(t, time.Minute, cfg.CleanupInterval)
	assert.Equal(t, 5*time.Minute, cfg.MaxAge)
}

func TestNew(t *testing.T) {
	t.Run("creates limiter with config", func(t *testing.T) {
		rl := New(Config{Rate: 10, Burst: 20, CleanupInterval: time.Second, MaxAge: time.Minute})
		defer rl.Stop()

		assert.Equal(t, float64(10), rl.Config().Rate)
		assert.Equal(t, 20, rl.Config().Burst)
	})

	t.Run("fills zero values", func(t *testing.T) {
		rl := New(Config{Rate: 10})
		defer rl.Stop()

		assert.Equal(t, time.Minute, rl.Config().CleanupInterval)
		assert.Equal(t, 5*time.Minute, rl.Config().MaxAge)
		assert.Equal(t, 1, rl.Config().Burst)
	})
}

func TestAllow(t *testing.T) {
	t.Run("allows requests within burst limit", func(t *testing.T) {
		rl := New(Config{Rate: 1, Burst: 5, CleanupInterval: time.Hour, MaxAge: time.Hour})
		defer rl.Stop()

		for i := 0; i < 5; i++ {
			assert.True(t, rl.Allow("192.168.1.1"), "request %d should be allowed", i)
		}
		assert.False(t, rl.Allow("192.168.1.1"))
	})

	t.Run("tracks IPs separately", func(t *testing.T) {
		rl := New(Config{Rate: 1, Burst: 1, CleanupInterval: time.Hour, MaxAge: time.Hour})
		defer rl.Stop()

		assert.True(t, rl.Allow("192.168.1.1"))
		assert.False(t, rl.Allow("192.168.1.1"))
		assert.True(t, rl.Allow("192.168.1.2"))
		assert.Equal(t, 2, rl.Len())
	})

	t.Run("zero rate disables limiting", func(t *testing.T) {
		rl := New(Config{Rate: 0, Burst: 1})
		defer rl.Stop()

		assert.False(t, rl.Enabled())
		for i := 0; i < 100; i++ {
			assert.True(t, rl.Allow("192.168.1.1"))
		}
		assert.Equal(t, 0, rl.Len())
	})
}

func TestMiddleware(t *testing.T) {
	t.Run("returns 429 when rate limited", func(t *testing.T) {
		rl := New(Config{Rate: 1, Burst: 2, CleanupInterval: time.Hour, MaxAge: time.Hour})
		defer rl.Stop()

		router := gin.New()
		router.Use(rl.Middleware())
		router.GET("/api/stats", func(c *gin.Context) {
			c.String(http.StatusOK, "OK")
		})

		before := testutil.ToFloat64(metrics.APIRateLimited.WithLabelValues("/api/stats"))
		for i := 0; i < 2; i++ {
			assert.Equal(t, http.StatusOK, serve(router, "/api/stats", "192.168.1.1:12345").Code)
		}

		w := serve(router, "/api/stats", "192.168.1.1:12345")
		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.Contains(t, w.Body.String(), "RATE_LIMITED")
		assert.Equal(t, before+1, testutil.ToFloat64(metrics.APIRateLimited.WithLabelValues("/api/stats")))
	})

	t.Run("uses X-Forwarded-For header when configured", func(t *testing.T) {
		rl := New(Config{Rate: 1, Burst: 1, CleanupInterval: time.Hour, MaxAge: time.Hour})
		defer rl.Stop()

		router := gin.New()
		require.NoError(t, router.SetTrustedProxies([]string{"0.0.0.0/0", "::/0"}))
		router.ForwardedByClientIP = true
		router.Use(rl.Middleware())
		router.GET("/test", func(c *gin.Context) {
			c.String(http.StatusOK, "OK")
		})

		request := func(forwardedFor string) int {
			w := httptest.NewRecorder()
			req, _ := http.NewRequest(http.MethodGet, "/test", nil)
			req.RemoteAddr = "10.0.0.1:12345"
			req.Header.Set("X-Forwarded-For", forwardedFor)
			router.ServeHTTP(w, req)
			return w.Code
		}

		assert.Equal(t, http.StatusOK, request("192.168.1.1"))
		assert.Equal(t, http.StatusTooManyRequests, request("192.168.1.1"))
		assert.Equal(t, http.StatusOK, request("192.168.1.2"))
	})
}

func TestMiddlewareWithExclusions(t *testing.T) {
	rl := New(Config{Rate: 1, Burst: 1, CleanupInterval: time.Hour, MaxAge: time.Hour})
	defer rl.Stop()

	router := gin.New()
	router.Use(rl.MiddlewareWithExclusions([]string{"/healthz", "/ws/"}))
	for _, p := range []string{"/api/help-requests", "/healthz", "/ws/supervisor"} {
		router.GET(p, func(c *gin.Context) { c.String(http.StatusOK, "OK") })
	}

	assert.Equal(t, http.StatusOK, serve(router, "/api/help-requests", "192.168.1.1:1").Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(router, "/api/help-requests", "192.168.1.1:1").Code)
	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, serve(router, "/healthz", "192.168.1.1:1").Code)
		assert.Equal(t, http.StatusOK, serve(router, "/ws/supervisor", "192.168.1.1:1").Code)
	}
}

func TestCleanup(t *testing.T) {
	t.Run("removes stale entries", func(t *testing.T) {
		rl := New(Config{Rate: 10, Burst: 10, CleanupInterval: 20 * time.Millisecond, MaxAge: 50 * time.Millisecond})
		defer rl.Stop()

		rl.Allow("192.168.1.1")
		rl.Allow("192.168.1.2")
		assert.Equal(t, 2, rl.Len())

		assert.Eventually(t, func() bool { return rl.Len() == 0 }, 2*time.Second, 10*time.Millisecond)
	})

	t.Run("Stop is idempotent", func(t *testing.T) {
		rl := New(Config{Rate: 10, Burst: 10, CleanupInterval: 10 * time.Millisecond})
		rl.Stop()
		rl.Stop()
	})
}

func TestConcurrency(t *testing.T) {
	rl := New(Config{Rate: 1000, Burst: 1000, CleanupInterval: time.Hour, MaxAge: time.Hour})
	defer rl.Stop()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			ip := "192.168.1." + string(rune('0'+id%10))
			for j := 0; j < 20; j++ {
				rl.Allow(ip)
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 10, rl.Len())
}
