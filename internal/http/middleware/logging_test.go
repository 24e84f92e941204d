package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func captureLogger(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := log.Logger
	t.Cleanup(func() { log.Logger = prev })
	log.Logger = zerolog.New(&buf)
	return &buf
}

func serve(r http.Handler, method, path string, hdr map[string]string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestRequestID_GeneratesOrReuses(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID())
	var seen string
	r.GET("/rid", func(c *gin.Context) {
		seen = RequestIDFrom(c)
		c.Status(http.StatusNoContent)
	})

	w := serve(r, http.MethodGet, "/rid", nil)
	if gen := w.Header().Get(requestIDHeader); gen == "" || gen != seen {
		t.Fatalf("generated id header %q, context %q", gen, seen)
	}

	w = serve(r, http.MethodGet, "/rid", map[string]string{"x-request-id": "abc-123"})
	if got := w.Header().Get(requestIDHeader); got != "abc-123" || seen != "abc-123" {
		t.Fatalf("propagated id header %q, context %q", got, seen)
	}
}

func TestLogger_LevelsAndFields(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLogger(t)

	r := gin.New()
	r.Use(RequestID(), Identity(), Logger())
	r.GET("/content/:id", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.POST("/likes", func(c *gin.Context) {
		_ = c.Error(errors.New("boom"))
		c.Status(http.StatusBadRequest)
	})

	uid := "7f9c24e8-3b12-4b0f-8d7a-1a2b3c4d5e6f"
	serve(r, http.MethodGet, "/content/42", map[string]string{HeaderUserID: uid})
	serve(r, http.MethodGet, "/missing", nil)
	serve(r, http.MethodPost, "/likes", nil)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("want 3 access lines, got %d:\n%s", len(lines), buf.String())
	}
	var first, second, third map[string]any
	for i, dst := range []*map[string]any{&first, &second, &third} {
		if err := json.Unmarshal([]byte(lines[i]), dst); err != nil {
			t.Fatalf("line %d: %v", i, err)
		}
	}
	if first["level"] != "info" || first["path"] != "/content/:id" || first["user_id"] != uid {
		t.Fatalf("first line: %v", first)
	}
	if second["level"] != "warn" || second["path"] != "/missing" || second["user_id"] != "" {
		t.Fatalf("second line: %v", second)
	}
	if third["level"] != "error" || third["errors"] == nil {
		t.Fatalf("third line: %v", third)
	}
}

func TestLogger_RequestContextCarriesLogger(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLogger(t)

	r := gin.New()
	r.Use(RequestID(), Logger())
	r.GET("/svc", func(c *gin.Context) {
		zerolog.Ctx(c.Request.Context()).Info().Msg("from service")
		c.Status(http.StatusOK)
	})
	serve(r, http.MethodGet, "/svc", map[string]string{requestIDHeader: "rid-ctx"})

	line := strings.SplitN(buf.String(), "\n", 2)[0]
	if !strings.Contains(line, `"message":"from service"`) || !strings.Contains(line, `"request_id":"rid-ctx"`) {
		t.Fatalf("service log line lacks request fields: %s", line)
	}
}

func TestRecovery_JSONEnvelope(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLogger(t)

	r := gin.New()
	r.Use(RequestID(), Logger(), Recovery())
	r.GET("/panic", func(c *gin.Context) { panic("kaboom") })

	w := serve(r, http.MethodGet, "/panic", map[string]string{requestIDHeader: "rid-p"})
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", w.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("body: %v", err)
	}
	if body["code"] != "internal_error" || body["request_id"] != "rid-p" {
		t.Fatalf("body = %v", body)
	}
	if !strings.Contains(buf.String(), "panic recovered") {
		t.Fatalf("missing panic log:\n%s", buf.String())
	}
}

func TestRecovery_AfterWriteKeepsBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	captureLogger(t)

	r := gin.New()
	r.Use(RequestID(), Recovery())
	r.GET("/late", func(c *gin.Context) {
		c.String(http.StatusOK, "partial")
		panic("late")
	})

	w := serve(r, http.MethodGet, "/late", nil)
	if w.Body.String() != "partial" {
		t.Fatalf("body = %q", w.Body.String())
	}
}

func TestLoggerFrom_Fallback(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLogger(t)

	r := gin.New()
	r.GET("/x", func(c *gin.Context) {
		LoggerFrom(c).Info().Msg("plain")
		c.Status(http.StatusOK)
	})
	serve(r, http.MethodGet, "/x", nil)
	if !strings.Contains(buf.String(), `"message":"plain"`) || strings.Contains(buf.String(), "request_id") {
		t.Fatalf("fallback output: %s", buf.String())
	}
}

func TestTruncate(t *testing.T) {
	cases := []struct {
		in   string
		max  int
		want string
	}{
		{"hello", 10, "hello"},
		{"abcdefgh", 5, "abcde…"},
		{"abc", 0, "abc"},
	}
	for _, tc := range cases {
		if got := truncate(tc.in, tc.max); got != tc.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tc.in, tc.max, got, tc.want)
		}
	}
	if asString(3) != "" || asString("x") != "x" {
		t.Fatal("asString")
	}
}
