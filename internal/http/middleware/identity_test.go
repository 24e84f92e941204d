package middleware

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestIdentity(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID(), Identity())
	var got string
	r.GET("/me", func(c *gin.Context) {
		got = UserID(c)
		c.Status(http.StatusOK)
	})
	r.POST("/likes", RequireUser(), func(c *gin.Context) { c.Status(http.StatusCreated) })

	t.Run("anonymous", func(t *testing.T) {
		got = "unset"
		w := serve(r, http.MethodGet, "/me", nil)
		if w.Code != http.StatusOK || got != "" {
			t.Fatalf("code=%d user=%q", w.Code, got)
		}
	})

	t.Run("normalizes uuid", func(t *testing.T) {
		w := serve(r, http.MethodGet, "/me", map[string]string{HeaderUserID: " 7F9C24E8-3B12-4B0F-8D7A-1A2B3C4D5E6F "})
		if w.Code != http.StatusOK || got != "7f9c24e8-3b12-4b0f-8d7a-1a2b3c4d5e6f" {
			t.Fatalf("code=%d user=%q", w.Code, got)
		}
	})

	t.Run("malformed", func(t *testing.T) {
		w := serve(r, http.MethodGet, "/me", map[string]string{HeaderUserID: "admin"})
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("code=%d", w.Code)
		}
		var body map[string]any
		_ = json.Unmarshal(w.Body.Bytes(), &body)
		if body["code"] != "unauthorized" || body["request_id"] == "" {
			t.Fatalf("body=%v", body)
		}
	})

	t.Run("require user", func(t *testing.T) {
		if w := serve(r, http.MethodPost, "/likes", nil); w.Code != http.StatusUnauthorized {
			t.Fatalf("anonymous code=%d", w.Code)
		}
		w := serve(r, http.MethodPost, "/likes", map[string]string{HeaderUserID: "7f9c24e8-3b12-4b0f-8d7a-1a2b3c4d5e6f"})
		if w.Code != http.StatusCreated {
			t.Fatalf("signed-in code=%d", w.Code)
		}
	})
}
