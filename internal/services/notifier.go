// Package services – Notifier
//
// The Notifier is the fan-out table that turns comment, like, and follow
// creations into notification rows. Callers dispatch events from inside the
// transaction that performed the triggering write; each hook then runs under
// its own savepoint so a failing hook is rolled back alone while the trigger
// commits. Hook errors are logged and counted, never returned. Cached unread
// counts of the recipients are dropped by Settle once the transaction has
// committed.
package services

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-sufi-platform/internal/cache"
	"github.com/tbourn/go-sufi-platform/internal/domain"
	"github.com/tbourn/go-sufi-platform/internal/repo"
)

// EventKind names the writes that fan out.
type EventKind uint8

const (
	// EventComment fires after a comment is inserted.
	EventComment EventKind = iota + 1
	// EventLike fires after a like is inserted (never on unlike).
	EventLike
	// EventFollow fires after a follow edge is created.
	EventFollow
)

func (k EventKind) String() string {
	switch k {
	case EventComment:
		return "comment"
	case EventLike:
		return "like"
	case EventFollow:
		return "follow"
	default:
		return "unknown"
	}
}

// Event carries the freshly written row. Exactly one of Comment, Like, or
// Follow is set, matching Kind.
type Event struct {
	Kind    EventKind
	Comment *domain.Comment
	Like    *domain.Like
	Follow  *domain.Follow
}

// Hook reacts to an event using the transaction handle it is given.
type Hook func(ctx context.Context, tx *gorm.DB, ev Event) error

// Notifier is an explicit dispatch table from event kind to hooks.
type Notifier struct {
	hooks map[EventKind][]Hook
	// invalidate drops the cached unread count of a recipient.
	invalidate func(ctx context.Context, userID string)
}

type recipientsKey struct{}

// recipients collects the users notified by one Dispatch.
type recipients struct{ ids []string }

// NewNotifier returns a Notifier with the notification hooks registered:
// comment -> content author, like -> target author, follow -> followee.
// When c is non-nil, Settle drops the cached unread counts of recipients.
func NewNotifier(c *cache.Cache) *Notifier {
	n := &Notifier{hooks: make(map[EventKind][]Hook)}
	if c != nil {
		n.invalidate = func(ctx context.Context, userID string) {
			_ = c.Invalidate(ctx, cache.UnreadNotifications, userID)
		}
	}
	n.On(EventComment, n.notifyContentAuthor)
	n.On(EventLike, n.notifyTargetAuthor)
	n.On(EventFollow, n.notifyFollowee)
	return n
}

// On appends h to the hooks of kind.
func (n *Notifier) On(kind EventKind, h Hook) {
	n.hooks[kind] = append(n.hooks[kind], h)
}

// Dispatch runs the hooks registered for ev.Kind in registration order. tx
// must be the transaction of the triggering write. It returns the users that
// received a notification from a hook that succeeded; pass them to Settle
// after tx commits. A nil Notifier is a no-op.
func (n *Notifier) Dispatch(ctx context.Context, tx *gorm.DB, ev Event) []string {
	if n == nil {
		return nil
	}
	tr := otel.Tracer("services/Notifier")
	ctx, span := tr.Start(ctx, "Dispatch",
		trace.WithAttributes(attribute.String("event", ev.Kind.String())),
	)
	defer span.End()

	rcpt := &recipients{}
	ctx = context.WithValue(ctx, recipientsKey{}, rcpt)
	for i, h := range n.hooks[ev.Kind] {
		mark := len(rcpt.ids)
		err := tx.Transaction(func(sp *gorm.DB) (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("hook panic: %v", r)
				}
			}()
			return h(ctx, sp, ev)
		})
		if err != nil {
			rcpt.ids = rcpt.ids[:mark]
			notificationHookFailures.WithLabelValues(ev.Kind.String()).Inc()
			logger(ctx).Warn().Err(err).Str("event", ev.Kind.String()).Int("hook", i).Msg("notification hook failed")
		}
	}
	return rcpt.ids
}

// Settle drops the cached unread counts of userIDs. Call it only after the
// dispatching transaction has committed.
func (n *Notifier) Settle(ctx context.Context, userIDs []string) {
	if n == nil || n.invalidate == nil {
		return
	}
	for _, id := range userIDs {
		n.invalidate(ctx, id)
	}
}

func (n *Notifier) notifyContentAuthor(ctx context.Context, tx *gorm.DB, ev Event) error {
	c := ev.Comment
	if c == nil {
		return nil
	}
	author, err := repo.ContentAuthor(ctx, tx, c.ContentID)
	if err != nil {
		return err
	}
	if author == nil {
		return nil
	}
	contentID, commentID := c.ContentID, c.ID
	return n.write(ctx, tx, &domain.Notification{
		UserID:     author,
		Type:       domain.NotificationComment,
		ContentID:  &contentID,
		CommentID:  &commentID,
		FromUserID: c.AuthorID,
	})
}

func (n *Notifier) notifyTargetAuthor(ctx context.Context, tx *gorm.DB, ev Event) error {
	l := ev.Like
	if l == nil {
		return nil
	}
	target, err := domain.TargetOf(*l)
	if err != nil {
		return err
	}
	author, err := repo.TargetAuthor(ctx, tx, target)
	if err != nil {
		return err
	}
	if author == nil {
		return nil
	}
	likeID := l.ID
	return n.write(ctx, tx, &domain.Notification{
		UserID:     author,
		Type:       domain.NotificationLike,
		ContentID:  l.ContentID,
		CommentID:  l.CommentID,
		LikeID:     &likeID,
		FromUserID: l.UserID,
	})
}

func (n *Notifier) notifyFollowee(ctx context.Context, tx *gorm.DB, ev Event) error {
	f := ev.Follow
	if f == nil || f.FolloweeID == "" {
		return nil
	}
	to, from := f.FolloweeID, f.FollowerID
	return n.write(ctx, tx, &domain.Notification{
		UserID:     &to,
		Type:       domain.NotificationFollow,
		FromUserID: &from,
	})
}

func (n *Notifier) write(ctx context.Context, tx *gorm.DB, row *domain.Notification) error {
	if err := repo.CreateNotification(ctx, tx, row); err != nil {
		return err
	}
	notificationsWritten.WithLabelValues(row.Type).Inc()
	if rcpt, ok := ctx.Value(recipientsKey{}).(*recipients); ok && row.UserID != nil {
		rcpt.ids = append(rcpt.ids, *row.UserID)
	}
	return nil
}

// logger returns the request logger stored in ctx, or the global logger.
func logger(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l != nil && l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &log.Logger
}
