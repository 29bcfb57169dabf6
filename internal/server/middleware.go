package server

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/respogen/respogen/internal/logging"
)

const (
	requestIDHeader = "X-Request-Id"
	warningsHeader  = "X-Respogen-Warnings"
)

// requestID ensures every request has a stable ID. An incoming
// X-Request-Id is reused, otherwise a UUID is generated. The ID is stored
// in the request context for loggers and echoed back in the response.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if rid == "" || len(rid) > 128 {
			rid = uuid.NewString()
		}

		c.Set("request_id", rid)
		c.Request = c.Request.WithContext(logging.WithRequestID(c.Request.Context(), rid))
		c.Writer.Header().Set(requestIDHeader, rid)

		c.Next()
	}
}

// requestLogger writes one line per request.
func requestLogger(logger logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Info(c.Request.Context(), "Request handled",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"bytes", c.Writer.Size(),
			"latency_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
		)
	}
}

// corsMiddleware allows browsers on the configured origins to post forms
// and read the download headers.
func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", requestIDHeader},
		ExposeHeaders: []string{"Content-Disposition", warningsHeader, requestIDHeader},
		MaxAge:        12 * time.Hour,
	}

	allowAll := len(allowedOrigins) == 0
	for _, o := range allowedOrigins {
		if o == "*" {
			allowAll = true
		}
	}
	if allowAll {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = allowedOrigins
	}

	return cors.New(cfg)
}

// recovery turns a handler panic into a 500. http.ErrAbortHandler is passed
// through so net/http can drop the connection.
func recovery(logger logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			if r == http.ErrAbortHandler {
				panic(r)
			}
			logger.Error(c.Request.Context(), fmt.Errorf("panic: %v", r), "Handler panicked",
				"path", c.Request.URL.Path,
			)
			if !c.Writer.Written() {
				c.String(http.StatusInternalServerError, "Internal server error")
			}
			c.Abort()
		}()
		c.Next()
	}
}
