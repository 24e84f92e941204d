package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-sufi-platform/internal/domain"
)

// CreateNotification inserts n, assigning an ID and CreatedAt when missing.
func CreateNotification(ctx context.Context, db *gorm.DB, n *domain.Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	return db.WithContext(ctx).Omit("User", "Content", "Comment", "Like", "FromUser").Create(n).Error
}

// visibleTo scopes notifications to those shown to userID: rows addressed to
// them, minus comment/like rows the user triggered themselves.
func visibleTo(userID string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("notifications.user_id = ?", userID).
			Where("NOT (notifications.type IN ? AND notifications.from_user_id IS NOT NULL AND notifications.from_user_id = ?)",
				[]string{domain.NotificationComment, domain.NotificationLike}, userID)
	}
}

// CountNotifications returns the number of notifications visible to userID.
func CountNotifications(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.Notification{}).Scopes(visibleTo(userID)).Count(&n).Error
	return n, err
}

// CountUnreadNotifications returns the number of unread notifications
// visible to userID.
func CountUnreadNotifications(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.Notification{}).
		Scopes(visibleTo(userID)).
		Where("notifications.is_read = ?", false).
		Count(&n).Error
	return n, err
}

// ListNotificationsPage returns a newest-first page of notifications visible
// to userID, with the acting user's public columns.
func ListNotificationsPage(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.Notification, error) {
	var out []domain.Notification
	err := db.WithContext(ctx).
		Scopes(visibleTo(userID)).
		Preload("FromUser", publicUsers).
		Order("notifications.created_at desc").
		Order("notifications.id desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// GetNotification fetches a notification by id.
func GetNotification(ctx context.Context, db *gorm.DB, id string) (*domain.Notification, error) {
	var n domain.Notification
	err := db.WithContext(ctx).Preload("FromUser", publicUsers).Where("id = ?", id).First(&n).Error
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// MarkNotificationRead sets is_read on a notification.
func MarkNotificationRead(ctx context.Context, db *gorm.DB, id string) error {
	res := db.WithContext(ctx).
		Model(&domain.Notification{}).
		Where("id = ?", id).
		Update("is_read", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
