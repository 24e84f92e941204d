package middleware

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestRedactingLogger_ScrubsQueryAndHeaders(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLogger(t)

	r := gin.New()
	r.Use(RequestID(), RedactingLogger(RedactOptions{MaskHeaders: []string{" X-Api-Key "}}))
	r.GET("/users/:username", func(c *gin.Context) { c.Status(http.StatusOK) })

	serve(r, http.MethodGet, "/users/rumi?email=rumi@konya.example&phone=212-555-1212&ref=7f9c24e8-3b12-4b0f-8d7a-1a2b3c4d5e6f", map[string]string{
		requestIDHeader: "rid-r",
		"Authorization": "Bearer secret",
		HeaderUserID:    "7f9c24e8-3b12-4b0f-8d7a-1a2b3c4d5e6f",
		"X-Api-Key":     "k",
		"X-Contact":     "shams@tabriz.example",
	})

	var line map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &line); err != nil {
		t.Fatalf("log line: %v\n%s", err, buf.String())
	}
	if line["level"] != "info" || line["path"] != "/users/:username" || line["request_id"] != "rid-r" {
		t.Fatalf("line = %v", line)
	}
	q, _ := line["query"].(string)
	for _, leak := range []string{"rumi@konya", "555-1212", "7f9c24e8"} {
		if strings.Contains(q, leak) {
			t.Errorf("query leaked %q: %s", leak, q)
		}
	}
	for _, tag := range []string{"[REDACTED:email]", "[REDACTED:phone]", "[REDACTED:id]"} {
		if !strings.Contains(q, tag) {
			t.Errorf("query missing %s: %s", tag, q)
		}
	}

	headers, _ := line["headers"].(map[string]any)
	for _, h := range []string{"Authorization", "X-User-Id", "X-Api-Key"} {
		if headers[h] != "[REDACTED]" {
			t.Errorf("header %s = %v", h, headers[h])
		}
	}
	if headers["X-Contact"] != "[REDACTED:email]" {
		t.Errorf("X-Contact = %v", headers["X-Contact"])
	}
}

func TestRedactingLogger_Levels(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLogger(t)

	r := gin.New()
	r.Use(RedactingLogger(RedactOptions{}))
	r.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	serve(r, http.MethodGet, "/nope", map[string]string{requestIDHeader: "rid-in"})
	serve(r, http.MethodGet, "/boom", nil)

	out := buf.String()
	if !strings.Contains(out, `"level":"warn"`) || !strings.Contains(out, `"request_id":"rid-in"`) {
		t.Fatalf("warn line missing:\n%s", out)
	}
	if !strings.Contains(out, `"level":"error"`) {
		t.Fatalf("error line missing:\n%s", out)
	}
}
