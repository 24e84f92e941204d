package handlers

// Error codes carried in ErrorResponse.Code. Clients branch on these, not on
// the message text.
const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeValidation   = "validation_failed"
	ErrCodeUnauthorized = "unauthorized"
	ErrCodeForbidden    = "forbidden"
	ErrCodeNotFound     = "not_found"
	ErrCodeConflict     = "conflict"
	ErrCodeRateLimited  = "rate_limited"
	ErrCodeUnavailable  = "unavailable"
	ErrCodeInternal     = "internal_error"

	ErrCodeMethodNotAllowed = "method_not_allowed"
	ErrCodeInvalidCode      = "invalid_code"
	ErrCodeAlreadyVerified  = "already_verified"
)
