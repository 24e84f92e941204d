// Package middleware contains the Gin middleware shared by every route:
// correlation ids, access logging, panic recovery, caller identity,
// idempotency keys, rate limiting, security headers, and Prometheus
// instrumentation.
//
// Recommended order: RequestID, Identity, Logger (or RedactingLogger),
// Recovery, then the rest. Logger reads the user id that Identity stored, and
// Recovery relies on the request id for its error body.
package middleware

import (
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	requestIDKey      = "requestID"
	requestIDHeader   = "X-Request-ID"
	loggerKey         = "logger"
	maxQueryLogLength = 2048
)

// RequestID reuses the caller's X-Request-ID or generates a UUID, echoes it
// on the response, and stores it under "requestID".
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(requestIDHeader)
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Set(requestIDKey, rid)
		c.Writer.Header().Set(requestIDHeader, rid)
		c.Next()
	}
}

// RequestIDFrom returns the correlation id of the request, or "".
func RequestIDFrom(c *gin.Context) string {
	v, _ := c.Get(requestIDKey)
	return asString(v)
}

// Logger emits one access log line per request. The request-scoped logger
// is stored in the Gin context and in the request context, so services
// reached from the handler log with the same request and user ids through
// zerolog.Ctx.
//
// Level: error when the handler recorded Gin errors or answered 5xx, warn for
// 4xx, info otherwise.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		l := log.With().
			Str("request_id", RequestIDFrom(c)).
			Str("user_id", UserID(c)).
			Str("method", c.Request.Method).
			Str("path", path).
			Str("remote_ip", c.ClientIP()).
			Str("user_agent", c.Request.UserAgent()).
			Str("query", truncate(c.Request.URL.RawQuery, maxQueryLogLength)).
			Int64("bytes_in", c.Request.ContentLength).
			Logger()

		c.Set(loggerKey, &l)
		c.Request = c.Request.WithContext(l.WithContext(c.Request.Context()))

		c.Next()

		done := l.With().
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Int("bytes_out", c.Writer.Size()).
			Logger()

		status := c.Writer.Status()
		switch {
		case len(c.Errors) > 0:
			done.Error().Str("errors", c.Errors.String()).Msg("request")
		case status >= 500:
			done.Error().Msg("request")
		case status >= 400:
			done.Warn().Msg("request")
		default:
			done.Info().Msg("request")
		}
	}
}

// Recovery turns a panic into a JSON 500 in the usual error envelope and
// logs the stack with the request id.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			rid := RequestIDFrom(c)
			LoggerFrom(c).Error().
				Interface("panic", rec).
				Bytes("stack", debug.Stack()).
				Str("request_id", rid).
				Msg("panic recovered")

			if c.Writer.Written() {
				c.AbortWithStatus(http.StatusInternalServerError)
				return
			}
			c.Header(requestIDHeader, rid)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"request_id": rid,
				"code":       "internal_error",
				"message":    "internal server error",
			})
		}()
		c.Next()
	}
}

// LoggerFrom returns the request-scoped logger, or the global logger when
// Logger() is not installed.
func LoggerFrom(c *gin.Context) *zerolog.Logger {
	if v, ok := c.Get(loggerKey); ok {
		if lg, ok := v.(*zerolog.Logger); ok {
			return lg
		}
	}
	l := log.With().Logger()
	return &l
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

// truncate caps s at max bytes; max <= 0 disables the cap.
func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max] + "…"
}
