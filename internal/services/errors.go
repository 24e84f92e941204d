// Package services defines the business logic for identities, the follow
// graph, content, comments, likes, notifications, and private messages.
// This file centralizes common service-level error values so that they can be
// consistently returned by service methods and checked by callers.
//
// These errors are intended for internal use by the service layer and translation
// into user-facing messages or HTTP status codes should be performed at the
// handler/controller layer.
package services

import (
	"errors"

	"github.com/tbourn/go-sufi-platform/internal/domain"
)

// Identity errors.
var (
	// ErrUserNotFound indicates that no user matches the given id, handle, or
	// email address.
	ErrUserNotFound = errors.New("user not found")

	// ErrInvalidUsername is returned for empty or over-long handles and for
	// handles containing characters outside [A-Za-z0-9@.+_-].
	ErrInvalidUsername = errors.New("username may contain only letters, digits and @/./+/-/_")

	// ErrInvalidEmail is returned when an email address cannot be parsed.
	ErrInvalidEmail = errors.New("enter a valid email address")

	// ErrUsernameTaken is returned when another user already owns the handle.
	ErrUsernameTaken = errors.New("a user with that username already exists")

	// ErrEmailTaken is returned when another user already owns the address,
	// compared case-insensitively.
	ErrEmailTaken = errors.New("a user with that email already exists")

	// ErrInvalidCode is returned when a verification code matches no
	// unverified user.
	ErrInvalidCode = errors.New("invalid verification code")

	// ErrAlreadyVerified is returned when a verification code is requested
	// for a user that is verified already.
	ErrAlreadyVerified = errors.New("this email is already verified")

	// ErrBirthDateInFuture is returned when a profile birth date lies after
	// today.
	ErrBirthDateInFuture = errors.New("birth date cannot be in the future")

	// ErrRequired is returned when a mandatory field is blank.
	ErrRequired = errors.New("this field is required")

	// ErrFieldTooLong is returned when a free-text field exceeds its column
	// size.
	ErrFieldTooLong = errors.New("value is too long")
)

// Content and comment errors.
var (
	// ErrContentNotFound indicates that the requested content does not exist.
	ErrContentNotFound = errors.New("content not found")

	// ErrInvalidChoice is returned when a content type, topic, or language is
	// not one of the accepted values.
	ErrInvalidChoice = errors.New("select a valid choice")

	// ErrEmptyTitle is returned when a title is blank after stripping markup.
	ErrEmptyTitle = errors.New("title is required")

	// ErrTitleTooLong is returned when a title exceeds 100 characters.
	ErrTitleTooLong = errors.New("title must be at most 100 characters")

	// ErrEmptyText is returned when a content body is blank after sanitizing.
	ErrEmptyText = errors.New("text is required")

	// ErrForbiddenContent is returned when a user edits or deletes content
	// written by someone else.
	ErrForbiddenContent = errors.New("you are not allowed to change this content")

	// ErrCommentNotFound indicates that the requested comment does not exist.
	ErrCommentNotFound = errors.New("comment not found")

	// ErrEmptyComment is returned when a comment is blank after sanitizing.
	ErrEmptyComment = errors.New("comment cannot be empty")

	// ErrForbiddenComment is returned when a user deletes a comment written by
	// someone else.
	ErrForbiddenComment = errors.New("you are not allowed to delete this comment")

	// ErrEmptyQuery is returned when a search has no query text.
	ErrEmptyQuery = errors.New("search query is empty")

	// ErrNoSearchFields is returned when a search selects no field.
	ErrNoSearchFields = errors.New("select at least one search field")
)

// Like errors.
var (
	// ErrInvalidLikeTarget is returned when a like does not reference exactly
	// one content item or comment.
	ErrInvalidLikeTarget = domain.ErrInvalidLikeTarget

	// ErrDuplicateLike is returned when the (user, target) uniqueness backstop
	// rejects an insert. The enclosing transaction is rolled back.
	ErrDuplicateLike = errors.New("like already exists")
)

// Notification errors.
var (
	// ErrNotificationNotFound indicates that the notification does not exist.
	ErrNotificationNotFound = errors.New("notification not found")

	// ErrForbiddenNotification is returned when a user opens a notification
	// addressed to someone else.
	ErrForbiddenNotification = errors.New("notification belongs to another user")
)

// Messaging errors.
var (
	// ErrMessageNotFound indicates that the requested message does not exist.
	ErrMessageNotFound = errors.New("message not found")

	// ErrForbiddenMessage is returned when a user reads or deletes a message
	// they neither sent nor received.
	ErrForbiddenMessage = errors.New("you are not allowed to view this message")

	// ErrRecipientNotFound is returned when the recipient handle matches no
	// user.
	ErrRecipientNotFound = errors.New("recipient not found")

	// ErrInvalidBox is returned for a mailbox other than inbox or outbox.
	ErrInvalidBox = errors.New("box must be inbox or outbox")

	// ErrEmptySubject is returned when a message subject is blank.
	ErrEmptySubject = errors.New("subject is required")

	// ErrSubjectTooLong is returned when a subject exceeds 40 characters.
	ErrSubjectTooLong = errors.New("subject must be at most 40 characters")

	// ErrEmptyBody is returned when a message or contact body is blank.
	ErrEmptyBody = errors.New("message is required")
)

// FieldError ties a validation error to the input field that caused it so
// handlers can report per-field messages.
type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string { return e.Field + ": " + e.Err.Error() }

// Unwrap exposes the sentinel for errors.Is.
func (e *FieldError) Unwrap() error { return e.Err }

func fieldErr(field string, err error) error { return &FieldError{Field: field, Err: err} }
