package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/tbourn/go-sufi-platform/internal/domain"
	smail "github.com/tbourn/go-sufi-platform/internal/mail"
)

// ErrContactUnavailable is returned when no contact address is configured.
var ErrContactUnavailable = errors.New("contact form is not available")

// ContactInput is a contact form submission.
type ContactInput struct {
	Name    string
	Email   string
	Subject string
	Message string
}

// ContactService forwards contact form submissions to the site operators.
type ContactService struct {
	Mailer smail.Mailer
	To     []string
}

// Send validates in and mails it to the configured addresses. viewer is the
// signed-in user, or nil for guests.
func (s *ContactService) Send(ctx context.Context, in ContactInput, viewer *domain.User) error {
	in.Name = plainText(in.Name)
	switch {
	case in.Name == "":
		return fieldErr("name", ErrRequired)
	case tooLong(in.Name, maxProfileRunes):
		return fieldErr("name", ErrFieldTooLong)
	}
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return err
	}
	in.Subject = plainText(in.Subject)
	switch {
	case in.Subject == "":
		return fieldErr("subject", ErrEmptySubject)
	case tooLong(in.Subject, maxProfileRunes):
		return fieldErr("subject", ErrFieldTooLong)
	}
	body := normalizeBody(in.Message)
	if body == "" {
		return fieldErr("message", ErrEmptyBody)
	}
	if s.Mailer == nil || len(s.To) == 0 {
		return ErrContactUnavailable
	}

	status := "Guest"
	if viewer != nil {
		status = fmt.Sprintf("Authenticated User (%s; %s)", viewer.Username, viewer.Email)
	}
	text := fmt.Sprintf("NAME: %s\nEMAIL: %s\nSTATUS: %s\n\nMESSAGE:\n%s", in.Name, email, status, body)
	return s.Mailer.Send(ctx, s.To, "Contact Form: "+in.Subject, text)
}
