// Package services – MessageService
//
// This file implements MessageService, which owns private messages between
// users: sending (with optional Idempotency-Key replay), inbox/outbox
// listings, reading, per-side soft deletion, unread counts, and the
// retention sweep that purges rows both sides deleted.
//
// Observability: all public methods are OpenTelemetry-instrumented; spans
// include user and message identifiers where applicable.
package services

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-sufi-platform/internal/cache"
	"github.com/tbourn/go-sufi-platform/internal/domain"
	"github.com/tbourn/go-sufi-platform/internal/repo"
	"github.com/tbourn/go-sufi-platform/internal/utils"
)

const (
	// DefaultRetention is how long messages deleted by both sides are kept.
	DefaultRetention = 30 * 24 * time.Hour

	defaultIdempotencyTTL = 24 * time.Hour
	maxBodyRunes          = 10000
)

// SendInput is a message to deliver.
type SendInput struct {
	Recipient string // username
	Subject   string
	Body      string

	// IdempotencyKey and Scope, when both set, make retries with the same key
	// return the message created by the first request.
	IdempotencyKey string
	Scope          string
}

// MessageService coordinates private messaging.
type MessageService struct {
	DB    *gorm.DB
	Cache *cache.Cache

	// Retention defaults to DefaultRetention.
	Retention time.Duration
	// IdempotencyTTL defaults to 24h.
	IdempotencyTTL time.Duration
}

// Send delivers a message from senderID. The boolean result is true when the
// message was replayed from an earlier request with the same idempotency
// key.
func (s *MessageService) Send(ctx context.Context, senderID string, in SendInput) (*domain.Message, bool, error) {
	tr := otel.Tracer("services/MessageService")
	ctx, span := tr.Start(ctx, "Send",
		trace.WithAttributes(
			attribute.String("user.id", senderID),
			attribute.String("recipient", in.Recipient),
		),
	)
	defer span.End()

	idem := in.IdempotencyKey != "" && in.Scope != ""
	if idem {
		if m, err := s.replay(ctx, senderID, in); err == nil {
			return m, true, nil
		} else if !errors.Is(err, repo.ErrNotFound) {
			return nil, false, err
		}
	}

	subject := plainText(in.Subject)
	switch {
	case subject == "":
		return nil, false, fieldErr("subject", ErrEmptySubject)
	case tooLong(subject, domain.MaxSubjectRunes):
		return nil, false, fieldErr("subject", ErrSubjectTooLong)
	}
	body := normalizeBody(in.Body)
	switch {
	case body == "":
		return nil, false, fieldErr("body", ErrEmptyBody)
	case tooLong(body, maxBodyRunes):
		return nil, false, fieldErr("body", ErrFieldTooLong)
	}

	var created *domain.Message
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rcpt, err := repo.GetUserByUsername(ctx, tx, strings.TrimSpace(in.Recipient))
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return fieldErr("recipient", ErrRecipientNotFound)
			}
			return err
		}
		m, err := repo.CreateMessage(ctx, tx, senderID, rcpt.ID, subject, body)
		if err != nil {
			return err
		}
		if idem {
			if _, err := repo.CreateIdempotency(ctx, tx, senderID, in.Scope, in.IdempotencyKey, m.ID, http.StatusCreated, s.idemTTL()); err != nil {
				return err
			}
		}
		created, err = repo.GetMessage(ctx, tx, m.ID)
		return err
	})
	if err != nil {
		// A concurrent request with the same key won the insert.
		if idem && errors.Is(err, repo.ErrDuplicate) {
			if m, rerr := s.replay(ctx, senderID, in); rerr == nil {
				return m, true, nil
			}
		}
		return nil, false, err
	}
	if created.RecipientID != nil {
		_ = s.Cache.Invalidate(ctx, cache.UnreadMessages, *created.RecipientID)
	}
	span.SetAttributes(attribute.String("message.id", created.ID))
	return created, false, nil
}

func (s *MessageService) replay(ctx context.Context, userID string, in SendInput) (*domain.Message, error) {
	rec, err := repo.GetIdempotency(ctx, s.DB, userID, in.Scope, in.IdempotencyKey, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	return repo.GetMessage(ctx, s.DB, rec.ResourceID)
}

// List returns a newest-first page of userID's inbox or outbox.
func (s *MessageService) List(ctx context.Context, userID, box string, page, pageSize int) ([]domain.Message, int64, error) {
	tr := otel.Tracer("services/MessageService")
	ctx, span := tr.Start(ctx, "List",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.String("box", box),
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	if box != domain.BoxInbox && box != domain.BoxOutbox {
		return nil, 0, ErrInvalidBox
	}
	_, size, offset := utils.PageBounds(page, pageSize, 0)
	total, err := repo.CountMessages(ctx, s.DB, userID, box)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Message{}, 0, nil
	}
	items, err := repo.ListMessagesPage(ctx, s.DB, userID, box, offset, size)
	return items, total, err
}

// Get returns message id to one of its participants and marks it read when
// the reader is the recipient.
func (s *MessageService) Get(ctx context.Context, userID, id string) (*domain.Message, error) {
	tr := otel.Tracer("services/MessageService")
	ctx, span := tr.Start(ctx, "Get",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.String("message.id", id),
		),
	)
	defer span.End()

	m, err := s.load(ctx, s.DB, userID, id)
	if err != nil {
		return nil, err
	}
	if m.RecipientID != nil && *m.RecipientID == userID && !m.IsRead {
		if err := repo.MarkMessageRead(ctx, s.DB, m.ID); err != nil {
			return nil, err
		}
		m.IsRead = true
		_ = s.Cache.Invalidate(ctx, cache.UnreadMessages, userID)
	}
	return m, nil
}

// Delete hides message id for userID. When userID is both sender and
// recipient both sides are hidden.
func (s *MessageService) Delete(ctx context.Context, userID, id string) error {
	tr := otel.Tracer("services/MessageService")
	ctx, span := tr.Start(ctx, "Delete",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.String("message.id", id),
		),
	)
	defer span.End()

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		m, err := s.load(ctx, tx, userID, id)
		if err != nil {
			return err
		}
		return repo.HideMessage(ctx, tx, m, userID)
	})
	if err != nil {
		return err
	}
	_ = s.Cache.Invalidate(ctx, cache.UnreadMessages, userID)
	return nil
}

// UnreadCount returns the number of unread inbox messages of userID.
func (s *MessageService) UnreadCount(ctx context.Context, userID string) (int64, error) {
	if n, ok := s.Cache.GetCount(ctx, cache.UnreadMessages, userID); ok {
		return n, nil
	}
	n, err := repo.CountUnreadMessages(ctx, s.DB, userID)
	if err != nil {
		return 0, err
	}
	_ = s.Cache.SetCount(ctx, cache.UnreadMessages, userID, n)
	return n, nil
}

// Sweep purges messages both sides deleted that are older than the
// retention window relative to now. Sweeping nothing is not an error.
func (s *MessageService) Sweep(ctx context.Context, now time.Time) (int64, error) {
	tr := otel.Tracer("services/MessageService")
	ctx, span := tr.Start(ctx, "Sweep")
	defer span.End()

	retention := s.Retention
	if retention <= 0 {
		retention = DefaultRetention
	}
	cutoff := now.Add(-retention)
	n, err := repo.PurgeDeletedMessages(ctx, s.DB, cutoff)
	if err != nil {
		return 0, err
	}
	messagesSwept.Add(float64(n))
	span.SetAttributes(attribute.Int64("purged", n))
	logger(ctx).Info().Int64("purged", n).Time("cutoff", cutoff).Msg("message sweep")
	return n, nil
}

func (s *MessageService) load(ctx context.Context, db *gorm.DB, userID, id string) (*domain.Message, error) {
	m, err := repo.GetMessage(ctx, db, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrMessageNotFound
		}
		return nil, err
	}
	if !m.IsParticipant(userID) {
		return nil, ErrForbiddenMessage
	}
	return m, nil
}

func (s *MessageService) idemTTL() time.Duration {
	if s.IdempotencyTTL > 0 {
		return s.IdempotencyTTL
	}
	return defaultIdempotencyTTL
}

var nlCollapseRE = regexp.MustCompile(`\n{3,}`)

// normalizeBody unifies line endings, collapses runs of blank lines, and
// trims the result.
func normalizeBody(raw string) string {
	s := strings.ReplaceAll(raw, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = nlCollapseRE.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
