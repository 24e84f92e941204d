// Package services – NotificationService
//
// Notifications are written only by the Notifier. This service reads them:
// paginated lists and unread counts that hide comment and like rows the
// viewer triggered, and Open, which marks a row read and resolves where the
// reader should be sent. Unread counts are cached in Redis when a cache is
// configured; Open and every new notification drop the cached value.
package services

import (
	"context"
	"errors"
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

// Redirect target kinds returned by Open.
const (
	TargetKindContent = "content"
	TargetKindProfile = "profile"
	TargetKindList    = "notifications"
)

// NotificationTarget is where an opened notification leads.
type NotificationTarget struct {
	Kind      string `json:"kind"`
	ContentID string `json:"content_id,omitempty"`
	Username  string `json:"username,omitempty"`
}

// NotificationPage is one page of a user's notifications.
type NotificationPage struct {
	Items  []domain.Notification
	Total  int64
	Unread int64
}

// NotificationService implements the read side of notifications.
type NotificationService struct {
	DB    *gorm.DB
	Cache *cache.Cache
}

// List returns a newest-first page of the notifications visible to userID
// together with the total and unread counts.
func (s *NotificationService) List(ctx context.Context, userID string, page, pageSize int) (*NotificationPage, error) {
	tr := otel.Tracer("services/NotificationService")
	ctx, span := tr.Start(ctx, "List",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	_, size, offset := utils.PageBounds(page, pageSize, 0)
	out := &NotificationPage{Items: []domain.Notification{}}
	total, err := repo.CountNotifications(ctx, s.DB, userID)
	if err != nil {
		return nil, err
	}
	out.Total = total
	if total == 0 {
		return out, nil
	}
	if out.Unread, err = s.UnreadCount(ctx, userID); err != nil {
		return nil, err
	}
	if out.Items, err = repo.ListNotificationsPage(ctx, s.DB, userID, offset, size); err != nil {
		return nil, err
	}
	return out, nil
}

// Stats returns the visible count, the unread count, and the newest
// creation time for userID. Handlers derive ETags from it.
func (s *NotificationService) Stats(ctx context.Context, userID string) (count, unread int64, latest *time.Time, err error) {
	return repo.NotificationsStats(ctx, s.DB, userID)
}

// UnreadCount returns the number of unread notifications visible to userID.
func (s *NotificationService) UnreadCount(ctx context.Context, userID string) (int64, error) {
	if n, ok := s.Cache.GetCount(ctx, cache.UnreadNotifications, userID); ok {
		return n, nil
	}
	n, err := repo.CountUnreadNotifications(ctx, s.DB, userID)
	if err != nil {
		return 0, err
	}
	_ = s.Cache.SetCount(ctx, cache.UnreadNotifications, userID, n)
	return n, nil
}

// Open marks notification id read for userID and resolves its target:
// comments lead to the commented content, likes to the liked content (or the
// liked comment's content), follows to the follower's profile, anything else
// back to the list. Notifications of other users yield
// ErrForbiddenNotification.
func (s *NotificationService) Open(ctx context.Context, userID, id string) (NotificationTarget, error) {
	tr := otel.Tracer("services/NotificationService")
	ctx, span := tr.Start(ctx, "Open",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.String("notification.id", id),
		),
	)
	defer span.End()

	n, err := repo.GetNotification(ctx, s.DB, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return NotificationTarget{}, ErrNotificationNotFound
		}
		return NotificationTarget{}, err
	}
	if n.UserID == nil || *n.UserID != userID {
		return NotificationTarget{}, ErrForbiddenNotification
	}
	if !n.IsRead {
		if err := repo.MarkNotificationRead(ctx, s.DB, n.ID); err != nil {
			return NotificationTarget{}, err
		}
		_ = s.Cache.Invalidate(ctx, cache.UnreadNotifications, userID)
	}
	return s.resolve(ctx, n)
}

func (s *NotificationService) resolve(ctx context.Context, n *domain.Notification) (NotificationTarget, error) {
	list := NotificationTarget{Kind: TargetKindList}
	switch n.Type {
	case domain.NotificationComment:
		if n.CommentID != nil {
			return s.commentContent(ctx, *n.CommentID, list)
		}
	case domain.NotificationLike:
		if n.ContentID != nil {
			return NotificationTarget{Kind: TargetKindContent, ContentID: *n.ContentID}, nil
		}
		if n.CommentID != nil {
			return s.commentContent(ctx, *n.CommentID, list)
		}
	case domain.NotificationFollow:
		if n.FromUser != nil {
			return NotificationTarget{Kind: TargetKindProfile, Username: n.FromUser.Username}, nil
		}
	}
	return list, nil
}

func (s *NotificationService) commentContent(ctx context.Context, commentID string, fallback NotificationTarget) (NotificationTarget, error) {
	c, err := repo.GetComment(ctx, s.DB, commentID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return fallback, nil
		}
		return NotificationTarget{}, err
	}
	return NotificationTarget{Kind: TargetKindContent, ContentID: c.ContentID}, nil
}
