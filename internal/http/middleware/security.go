package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// SecurityOptions selects the optional response headers.
type SecurityOptions struct {
	EnableHSTS   bool          // only when TLS terminates in front of us
	HSTSMaxAge   time.Duration // default 180 days
	NoStore      bool          // Cache-Control: no-store on every response
	EnablePolicy bool          // Permissions-Policy and friends
}

// SecurityHeaders sets nosniff, frame denial and referrer policy on every
// response, plus the optional headers chosen in opt. X-Request-ID is added
// to Access-Control-Expose-Headers so browser clients can report it.
func SecurityHeaders(opt SecurityOptions) gin.HandlerFunc {
	maxAge := int(opt.HSTSMaxAge / time.Second)
	if maxAge <= 0 {
		maxAge = int((180 * 24 * time.Hour) / time.Second)
	}
	hsts := "max-age=" + strconv.Itoa(maxAge) + "; includeSubDomains; preload"

	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "same-origin")

		if opt.EnablePolicy {
			h.Set("Permissions-Policy", "geolocation=(), microphone=(), camera=(), payment=()")
			h.Set("X-Permitted-Cross-Domain-Policies", "none")
		}
		if opt.NoStore {
			h.Set("Cache-Control", "no-store")
			h.Set("Pragma", "no-cache")
			h.Set("Expires", "0")
		}
		if opt.EnableHSTS && isHTTPS(c.Request) {
			h.Set("Strict-Transport-Security", hsts)
		}
		if h.Get(requestIDHeader) != "" {
			const expose = "Access-Control-Expose-Headers"
			switch cur := h.Get(expose); {
			case cur == "":
				h.Set(expose, requestIDHeader)
			case !strings.Contains(cur, requestIDHeader):
				h.Set(expose, cur+", "+requestIDHeader)
			}
		}
		c.Next()
	}
}

// BodyLimit caps request bodies at n bytes. Handlers see a read error past
// the limit; image uploads are the only large bodies we accept.
func BodyLimit(n int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if n > 0 && c.Request.Body != nil {
			if c.Request.ContentLength > n {
				c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{
					"request_id": RequestIDFrom(c),
					"code":       "payload_too_large",
					"message":    "request body too large",
				})
				return
			}
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, n)
		}
		c.Next()
	}
}

func isHTTPS(r *http.Request) bool {
	return r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}
