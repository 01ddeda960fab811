package api

import (
	"bytes"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultCacheTTL bounds how stale a cached read can get.
const DefaultCacheTTL = 5 * time.Second

// cached serves read responses from Redis when a client is configured.
// Only 200 responses are stored; a miss or a Redis failure falls through
// to the handler.
func (s *Server) cached() gin.HandlerFunc {
	if s.cache == nil {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet {
			c.Next()
			return
		}

		key := "api:cache:" + c.Request.URL.RequestURI()
		data, err := s.cache.Get(c.Request.Context(), key).Bytes()
		if err == nil {
			c.Data(http.StatusOK, "application/json; charset=utf-8", data)
			c.Abort()
			return
		}
		if err != redis.Nil {
			s.logger.Warn("read cache lookup failed", zap.Error(err))
		}

		w := &captureWriter{ResponseWriter: c.Writer}
		c.Writer = w
		c.Next()

		if w.Status() == http.StatusOK && w.body.Len() > 0 {
			if err := s.cache.Set(c.Request.Context(), key, w.body.Bytes(), s.cacheTTL).Err(); err != nil {
				s.logger.Warn("read cache store failed", zap.Error(err))
			}
		}
	}
}

// captureWriter tees the response body so it can be cached after the
// handler runs.
type captureWriter struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *captureWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *captureWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}
