package middleware

import (
	"crypto/tls"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestSecurityHeaders_Baseline(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID(), SecurityHeaders(SecurityOptions{EnableHSTS: true}))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := serve(r, http.MethodGet, "/", nil)
	h := w.Header()
	if h.Get("X-Content-Type-Options") != "nosniff" || h.Get("X-Frame-Options") != "DENY" || h.Get("Referrer-Policy") != "same-origin" {
		t.Fatalf("baseline headers: %v", h)
	}
	if h.Get("Strict-Transport-Security") != "" {
		t.Fatal("HSTS sent over plain HTTP")
	}
	if h.Get("Permissions-Policy") != "" || h.Get("Cache-Control") != "" {
		t.Fatal("optional headers sent without opt-in")
	}
	if h.Get("Access-Control-Expose-Headers") != requestIDHeader {
		t.Fatalf("expose = %q", h.Get("Access-Control-Expose-Headers"))
	}
}

func TestSecurityHeaders_Options(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Header("Access-Control-Expose-Headers", "ETag")
		c.Header(requestIDHeader, "rid")
		c.Next()
	})
	r.Use(SecurityHeaders(SecurityOptions{EnableHSTS: true, HSTSMaxAge: time.Hour, NoStore: true, EnablePolicy: true}))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.TLS = &tls.ConnectionState{}
	r.ServeHTTP(w, req)

	h := w.Header()
	if got := h.Get("Strict-Transport-Security"); got != "max-age=3600; includeSubDomains; preload" {
		t.Fatalf("HSTS = %q", got)
	}
	if h.Get("Cache-Control") != "no-store" || h.Get("Pragma") != "no-cache" {
		t.Fatalf("no-store headers: %v", h)
	}
	if h.Get("X-Permitted-Cross-Domain-Policies") != "none" {
		t.Fatal("policy headers missing")
	}
	if got := h.Get("Access-Control-Expose-Headers"); got != "ETag, X-Request-ID" {
		t.Fatalf("expose = %q", got)
	}
}

func TestIsHTTPS(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if isHTTPS(req) {
		t.Fatal("plain request reported https")
	}
	req.Header.Set("X-Forwarded-Proto", "HTTPS")
	if !isHTTPS(req) {
		t.Fatal("forwarded proto ignored")
	}
}

func TestBodyLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(BodyLimit(8))
	r.POST("/upload", func(c *gin.Context) {
		if _, err := io.ReadAll(c.Request.Body); err != nil {
			c.Status(http.StatusRequestEntityTooLarge)
			return
		}
		c.Status(http.StatusOK)
	})

	post := func(body string, chunked bool) int {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader(body))
		if chunked {
			req.ContentLength = -1
		}
		r.ServeHTTP(w, req)
		return w.Code
	}
	if code := post("small", false); code != http.StatusOK {
		t.Fatalf("small body = %d", code)
	}
	if code := post("far too large", false); code != http.StatusRequestEntityTooLarge {
		t.Fatalf("declared large body = %d", code)
	}
	if code := post("far too large", true); code != http.StatusRequestEntityTooLarge {
		t.Fatalf("streamed large body = %d", code)
	}
}
