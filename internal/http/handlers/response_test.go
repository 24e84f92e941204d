package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/tbourn/go-sufi-platform/internal/services"
)

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var er ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &er); err != nil {
		t.Fatalf("decode error body %q: %v", w.Body.String(), err)
	}
	return er
}

func TestFail_LogsServerErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var buf bytes.Buffer
	lg := zerolog.New(&buf)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("X-Request-ID", "rid-500")
		c.Set("logger", &lg)
		c.Next()
	})
	r.GET("/boom", func(c *gin.Context) { fail(c, http.StatusInternalServerError, ErrCodeInternal, "kaboom") })
	r.GET("/missing", func(c *gin.Context) { Fail(c, http.StatusNotFound, ErrCodeNotFound, "nope") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))
	if er := decodeError(t, w); w.Code != 500 || er.RequestID != "rid-500" || er.Code != ErrCodeInternal {
		t.Fatalf("500: code=%d body=%+v", w.Code, er)
	}
	if !strings.Contains(buf.String(), `"level":"error"`) {
		t.Fatalf("5xx not logged: %s", buf.String())
	}

	buf.Reset()
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/missing", nil))
	if w.Code != http.StatusNotFound || buf.Len() != 0 {
		t.Fatalf("404: code=%d log=%q", w.Code, buf.String())
	}
}

func TestFailErr_Mapping(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		name   string
		err    error
		status int
		code   string
		field  string
	}{
		{"validation", &services.FieldError{Field: "title", Err: services.ErrTitleTooLong}, 400, ErrCodeValidation, "title"},
		{"username taken", &services.FieldError{Field: "username", Err: services.ErrUsernameTaken}, 409, ErrCodeConflict, "username"},
		{"email taken wrapped", fmt.Errorf("update: %w", &services.FieldError{Field: "email", Err: services.ErrEmailTaken}), 409, ErrCodeConflict, "email"},
		{"bad code", &services.FieldError{Field: "code", Err: services.ErrInvalidCode}, 400, ErrCodeInvalidCode, "code"},
		{"content missing", services.ErrContentNotFound, 404, ErrCodeNotFound, ""},
		{"message missing", services.ErrMessageNotFound, 404, ErrCodeNotFound, ""},
		{"foreign notification", services.ErrForbiddenNotification, 403, ErrCodeForbidden, ""},
		{"duplicate like", services.ErrDuplicateLike, 409, ErrCodeConflict, ""},
		{"already verified", services.ErrAlreadyVerified, 409, ErrCodeAlreadyVerified, ""},
		{"bad box", services.ErrInvalidBox, 400, ErrCodeBadRequest, ""},
		{"bad like target", services.ErrInvalidLikeTarget, 400, ErrCodeBadRequest, ""},
		{"contact off", services.ErrContactUnavailable, 503, ErrCodeUnavailable, ""},
		{"unknown", errors.New("dial tcp: secret-host:5432"), 500, ErrCodeInternal, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := gin.New()
			r.GET("/", func(c *gin.Context) { failErr(c, tc.err) })
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

			er := decodeError(t, w)
			if w.Code != tc.status || er.Code != tc.code {
				t.Fatalf("got %d/%s, want %d/%s", w.Code, er.Code, tc.status, tc.code)
			}
			if tc.field != "" && er.Fields[tc.field] == "" {
				t.Fatalf("fields = %v, want %q", er.Fields, tc.field)
			}
			if tc.field == "" && er.Fields != nil {
				t.Fatalf("unexpected fields %v", er.Fields)
			}
			if strings.Contains(er.Message, "secret-host") {
				t.Fatalf("internal error text leaked: %q", er.Message)
			}
		})
	}
}

func TestFailForbidden_Redirect(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/", func(c *gin.Context) { failForbidden(c, "no", "/api/v1/content/x") })
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if er := decodeError(t, w); w.Code != 403 || er.Redirect != "/api/v1/content/x" {
		t.Fatalf("code=%d body=%+v", w.Code, er)
	}
}
