package mw

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRateLimiter_PerClient(t *testing.T) {
	r := gin.New()
	r.Use(RateLimiter(rate.Every(time.Hour), 2))
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	call := func(device string) int {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		if device != "" {
			req.Header.Set(DeviceHeader, device)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, call("ipad-1"))
	assert.Equal(t, http.StatusOK, call("ipad-1"))
	assert.Equal(t, http.StatusTooManyRequests, call("ipad-1"))

	// Another device and header-less callers have their own buckets.
	assert.Equal(t, http.StatusOK, call("ipad-2"))
	assert.Equal(t, http.StatusOK, call(""))
}

func TestCache_ServesRepeatedGets(t *testing.T) {
	calls := 0
	r := gin.New()
	r.GET("/products", Cache(cache.New(time.Minute, time.Minute), time.Minute), func(c *gin.Context) {
		calls++
		c.JSON(http.StatusOK, gin.H{"calls": calls})
	})
	r.GET("/broken", Cache(cache.New(time.Minute, time.Minute), time.Minute), func(c *gin.Context) {
		calls++
		c.JSON(http.StatusBadGateway, gin.H{"error": "down"})
	})

	get := func(path string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		return w
	}

	first := get("/products")
	assert.Equal(t, "MISS", first.Header().Get(CacheHeader))
	second := get("/products")
	assert.Equal(t, "HIT", second.Header().Get(CacheHeader))
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, "application/json; charset=utf-8", second.Header().Get("Content-Type"))
	assert.Equal(t, 1, calls)

	get("/broken")
	failed := get("/broken")
	assert.Equal(t, http.StatusBadGateway, failed.Code)
	assert.Equal(t, 3, calls)
}

func TestRequestLogger_PassesThrough(t *testing.T) {
	r := gin.New()
	r.Use(RequestLogger(log.New(io.Discard)))
	r.GET("/x", func(c *gin.Context) { c.String(http.StatusTeapot, "short and stout") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusTeapot, w.Code)
	assert.Equal(t, "short and stout", w.Body.String())
}
