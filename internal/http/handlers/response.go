package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-sufi-platform/internal/http/middleware"
	"github.com/tbourn/go-sufi-platform/internal/services"
)

// ErrorResponse is the error envelope of every endpoint.
type ErrorResponse struct {
	// Correlates server logs and client errors
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Stable, machine-readable code
	Code string `json:"code" example:"not_found"`
	// Human-readable message
	Message string `json:"message" example:"content not found"`
	// Where a browser client should go instead, on ownership rejections
	Redirect string `json:"redirect,omitempty" example:"/api/v1/content/0b7c2f4e-8d1a-4d55-9a57-3f1e2d4c5b6a"`
	// Per-field validation messages
	Fields map[string]string `json:"fields,omitempty"`
}

func requestID(c *gin.Context) string {
	if rid := middleware.RequestIDFrom(c); rid != "" {
		return rid
	}
	return c.Writer.Header().Get("X-Request-ID")
}

func abort(c *gin.Context, status int, resp ErrorResponse) {
	resp.RequestID = requestID(c)
	if status >= http.StatusInternalServerError {
		middleware.LoggerFrom(c).Error().
			Int("status", status).
			Str("code", resp.Code).
			Str("message", resp.Message).
			Msg("api error")
	}
	c.AbortWithStatusJSON(status, resp)
}

// fail aborts with the error envelope. 5xx responses are logged with the
// request-scoped logger.
func fail(c *gin.Context, status int, code, msg string) {
	abort(c, status, ErrorResponse{Code: code, Message: msg})
}

// Fail is fail for callers outside this package, such as the router's
// NoRoute handler.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

// failForbidden answers 403 and points the client at redirect.
func failForbidden(c *gin.Context, msg, redirect string) {
	abort(c, http.StatusForbidden, ErrorResponse{Code: ErrCodeForbidden, Message: msg, Redirect: redirect})
}

// failErr maps a service error to a status and code. Field errors become a
// 400 with a fields map, or a 409 when the field clashes with another user.
// Unknown errors are a 500 and their text is not exposed.
func failErr(c *gin.Context, err error) {
	var fe *services.FieldError
	if errors.As(err, &fe) {
		status, code := http.StatusBadRequest, ErrCodeValidation
		switch {
		case errors.Is(fe.Err, services.ErrUsernameTaken), errors.Is(fe.Err, services.ErrEmailTaken):
			status, code = http.StatusConflict, ErrCodeConflict
		case errors.Is(fe.Err, services.ErrInvalidCode):
			code = ErrCodeInvalidCode
		}
		abort(c, status, ErrorResponse{
			Code:    code,
			Message: fe.Err.Error(),
			Fields:  map[string]string{fe.Field: fe.Err.Error()},
		})
		return
	}

	switch {
	case errors.Is(err, services.ErrUserNotFound),
		errors.Is(err, services.ErrContentNotFound),
		errors.Is(err, services.ErrCommentNotFound),
		errors.Is(err, services.ErrNotificationNotFound),
		errors.Is(err, services.ErrMessageNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, err.Error())
	case errors.Is(err, services.ErrForbiddenContent),
		errors.Is(err, services.ErrForbiddenComment),
		errors.Is(err, services.ErrForbiddenMessage),
		errors.Is(err, services.ErrForbiddenNotification):
		fail(c, http.StatusForbidden, ErrCodeForbidden, err.Error())
	case errors.Is(err, services.ErrDuplicateLike):
		fail(c, http.StatusConflict, ErrCodeConflict, err.Error())
	case errors.Is(err, services.ErrAlreadyVerified):
		fail(c, http.StatusConflict, ErrCodeAlreadyVerified, err.Error())
	case errors.Is(err, services.ErrInvalidChoice),
		errors.Is(err, services.ErrInvalidBox),
		errors.Is(err, services.ErrInvalidLikeTarget):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
	case errors.Is(err, services.ErrContactUnavailable):
		fail(c, http.StatusServiceUnavailable, ErrCodeUnavailable, err.Error())
	default:
		_ = c.Error(err)
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "internal server error")
	}
}

func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}

func noContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}
