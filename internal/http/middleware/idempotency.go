package middleware

import (
	"context"
	"net/http"
	"regexp"
	"time"

	"github.com/gin-gonic/gin"
)

// HeaderIdempotencyKey is the request header carrying a client-chosen key
// that makes retries of an unsafe request safe.
const HeaderIdempotencyKey = "Idempotency-Key"

const (
	ctxKeyIdemKey    = "idem.key"
	ctxKeyIdemReplay = "idem.replay"
	ctxKeyRateBypass = "rate.bypass"
)

var defaultKeyPattern = regexp.MustCompile(`^[A-Za-z0-9._~\-:]+$`)

// IdempotencyOptions tunes key validation. Expiry is the lookup's concern.
type IdempotencyOptions struct {
	// MaxLen caps the key length; <= 0 means 200.
	MaxLen int
	// Pattern restricts the key alphabet; nil means ^[A-Za-z0-9._~\-:]+$.
	Pattern *regexp.Regexp
}

// IdempotencyLookup reports whether a live record exists for (userID, scope,
// key) at now. Lookup errors never block the request.
type IdempotencyLookup func(ctx context.Context, userID, scope, key string, now time.Time) (bool, error)

// IdempotencyValidator validates the Idempotency-Key header when present and
// stores it for handlers. When lookup finds an earlier completed request the
// context is flagged as a replay, which also exempts it from rate limiting.
// An invalid key is answered with 400.
func IdempotencyValidator(opts IdempotencyOptions, lookup IdempotencyLookup) gin.HandlerFunc {
	maxLen := opts.MaxLen
	if maxLen <= 0 {
		maxLen = 200
	}
	pat := opts.Pattern
	if pat == nil {
		pat = defaultKeyPattern
	}

	return func(c *gin.Context) {
		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" {
			c.Next()
			return
		}
		if len(key) > maxLen || !pat.MatchString(key) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"request_id": RequestIDFrom(c),
				"code":       "bad_idempotency_key",
				"message":    "invalid Idempotency-Key",
			})
			return
		}
		c.Set(ctxKeyIdemKey, key)

		if lookup != nil && UserID(c) != "" {
			exists, _ := lookup(c.Request.Context(), UserID(c), IdempotencyScope(c), key, time.Now().UTC())
			if exists {
				c.Set(ctxKeyIdemReplay, true)
				c.Set(ctxKeyRateBypass, true)
			}
		}
		c.Next()
	}
}

// IdempotencyScope names the operation a key belongs to: the method and the
// registered route, so the same key may be reused on different endpoints.
func IdempotencyScope(c *gin.Context) string {
	path := c.FullPath()
	if path == "" {
		path = c.Request.URL.Path
	}
	return c.Request.Method + " " + path
}

// GetIdempotencyKey returns the validated key stored by IdempotencyValidator.
func GetIdempotencyKey(c *gin.Context) (string, bool) {
	v, _ := c.Get(ctxKeyIdemKey)
	s := asString(v)
	return s, s != ""
}

// IsReplay reports whether IdempotencyValidator found an earlier completed
// request with the same key.
func IsReplay(c *gin.Context) bool {
	return c.GetBool(ctxKeyIdemReplay)
}
