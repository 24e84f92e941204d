package middleware

import (
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// RedactOptions extends the built-in header mask list.
type RedactOptions struct {
	MaskHeaders []string
}

var (
	// UUIDs go first so the phone pattern cannot eat their digit groups.
	redactUUID  = regexp.MustCompile(`(?i)\b[0-9a-f]{8}-[0-9a-f]{4}-[1-5][0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}\b`)
	redactEmail = regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}\b`)
	redactPhone = regexp.MustCompile(`\b(?:\+?\d{1,3}[ .-]?)?(?:\(?\d{2,4}\)?[ .-]?)?\d{3,4}[ .-]?\d{4}\b`)
)

func scrub(s string) string {
	if s == "" {
		return s
	}
	s = redactUUID.ReplaceAllString(s, "[REDACTED:id]")
	s = redactEmail.ReplaceAllString(s, "[REDACTED:email]")
	return redactPhone.ReplaceAllString(s, "[REDACTED:phone]")
}

// RedactingLogger is an access logger for deployments that must not keep
// personal data. Bodies are never logged. Query strings and header values
// have emails, phone numbers and UUIDs replaced, and Authorization, Cookie,
// Set-Cookie and X-User-ID are masked outright.
func RedactingLogger(opts RedactOptions) gin.HandlerFunc {
	masked := map[string]struct{}{
		"authorization":               {},
		"cookie":                      {},
		"set-cookie":                  {},
		strings.ToLower(HeaderUserID): {},
	}
	for _, h := range opts.MaskHeaders {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			masked[h] = struct{}{}
		}
	}

	return func(c *gin.Context) {
		start := time.Now()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		query := scrub(c.Request.URL.RawQuery)
		headers := make(map[string]string, len(c.Request.Header))
		for k, vv := range c.Request.Header {
			if _, ok := masked[strings.ToLower(k)]; ok {
				headers[k] = "[REDACTED]"
				continue
			}
			headers[k] = scrub(strings.Join(vv, ", "))
		}

		c.Next()

		status := c.Writer.Status()
		ev := log.Info()
		switch {
		case status >= 500:
			ev = log.Error()
		case status >= 400:
			ev = log.Warn()
		}
		rid := RequestIDFrom(c)
		if rid == "" {
			rid = c.GetHeader(requestIDHeader)
		}
		ev.
			Str("request_id", rid).
			Str("method", c.Request.Method).
			Str("path", path).
			Str("query", query).
			Int("status", status).
			Int("bytes", c.Writer.Size()).
			Dur("latency", time.Since(start)).
			Interface("headers", headers).
			Msg("http_request")
	}
}
