package mw

import (
	"bytes"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
)

// CacheHeader reports whether a response was served from the cache.
const CacheHeader = "X-Cache"

type snapshot struct {
	contentType string
	body        []byte
}

// recorder tees the handler output so a 200 response can be replayed.
type recorder struct {
	gin.ResponseWriter
	buf bytes.Buffer
}

func (r *recorder) Write(b []byte) (int, error) {
	r.buf.Write(b)
	return r.ResponseWriter.Write(b)
}

func (r *recorder) WriteString(s string) (int, error) {
	r.buf.WriteString(s)
	return r.ResponseWriter.WriteString(s)
}

// Cache replays 200 responses to GET requests for ttl, keyed by the request URI.
// Anything else passes through and is never stored.
func Cache(store *cache.Cache, ttl time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet {
			c.Next()
			return
		}

		key := c.Request.RequestURI
		if v, ok := store.Get(key); ok {
			snap := v.(snapshot)
			c.Header(CacheHeader, "HIT")
			c.Data(http.StatusOK, snap.contentType, snap.body)
			c.Abort()
			return
		}

		rec := &recorder{ResponseWriter: c.Writer}
		c.Writer = rec
		c.Header(CacheHeader, "MISS")
		c.Next()
		c.Writer = rec.ResponseWriter

		if rec.Status() == http.StatusOK {
			store.Set(key, snapshot{
				contentType: rec.Header().Get("Content-Type"),
				body:        bytes.Clone(rec.buf.Bytes()),
			}, ttl)
		}
	}
}
