package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

func TestKeyByUserOrIP(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Request.RemoteAddr = "203.0.113.9:12345"

	if got := KeyByUserOrIP()(c); got != "ip:203.0.113.9" {
		t.Fatalf("anonymous key = %q", got)
	}
	c.Set(userIDKey, "u123")
	if got := KeyByUserOrIP()(c); got != "user:u123" {
		t.Fatalf("user key = %q", got)
	}
}

func TestRateLimiter_BucketReuseAndEviction(t *testing.T) {
	rl := NewRateLimiter(2, 0, nil)
	if rl.burst != 1 || rl.keyFn == nil {
		t.Fatalf("defaults not applied: burst=%d", rl.burst)
	}
	now := time.Now()
	lim := rl.limiterFor("k1", now)
	if rl.limiterFor("k1", now) != lim {
		t.Fatal("bucket not reused")
	}

	rl.mu.Lock()
	rl.buckets["stale"] = &bucket{limiter: rate.NewLimiter(1, 1), lastSeen: now.Add(-time.Hour)}
	rl.lookups = rl.gcEvery - 1
	rl.mu.Unlock()

	rl.limiterFor("k2", now)
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if _, ok := rl.buckets["stale"]; ok {
		t.Fatal("stale bucket survived gc")
	}
	if _, ok := rl.buckets["k1"]; !ok {
		t.Fatal("fresh bucket evicted")
	}
}

func TestRateLimiter_Handler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rl := NewRateLimiter(0.2, 1, KeyByUserOrIP())

	r := gin.New()
	r.Use(RequestID(), func(c *gin.Context) {
		if c.GetHeader("X-Replay") != "" {
			c.Set(ctxKeyRateBypass, true)
		}
		c.Next()
	}, rl.Handler())
	r.POST("/likes", func(c *gin.Context) { c.Status(http.StatusOK) })

	if w := serve(r, http.MethodPost, "/likes", nil); w.Code != http.StatusOK {
		t.Fatalf("first = %d", w.Code)
	}
	w := serve(r, http.MethodPost, "/likes", map[string]string{requestIDHeader: "rid-429"})
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("second = %d", w.Code)
	}
	if got := w.Header().Get("Retry-After"); got != "5" {
		t.Fatalf("Retry-After = %q", got)
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["code"] != "rate_limited" || body["request_id"] != "rid-429" {
		t.Fatalf("body = %v", body)
	}

	if w := serve(r, http.MethodPost, "/likes", map[string]string{"X-Replay": "1"}); w.Code != http.StatusOK {
		t.Fatalf("replay = %d", w.Code)
	}
}

func TestIsRateBypass(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	if IsRateBypass(c) {
		t.Fatal("default bypass")
	}
	c.Set(ctxKeyRateBypass, "yes")
	if IsRateBypass(c) {
		t.Fatal("non-bool counted as bypass")
	}
	c.Set(ctxKeyRateBypass, true)
	if !IsRateBypass(c) {
		t.Fatal("bypass not seen")
	}
}
