// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate queries used for
// conditional responses (ETag generation) in the HTTP layer.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-sufi-platform/internal/domain"
)

// NotificationsStats returns aggregate metadata for the notifications visible
// to userID: the row count, the unread count, and the newest CreatedAt.
//
// When the user has no notifications, counts are 0 and latest is nil. The
// unread count is part of the result because opening a notification flips
// is_read without changing the other two values.
func NotificationsStats(ctx context.Context, db *gorm.DB, userID string) (count, unread int64, latest *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.Notification{}).Scopes(visibleTo(userID))

	if err = q.Session(&gorm.Session{}).Count(&count).Error; err != nil {
		return 0, 0, nil, err
	}
	if count == 0 {
		return 0, 0, nil, nil
	}
	if err = q.Session(&gorm.Session{}).Where("notifications.is_read = ?", false).Count(&unread).Error; err != nil {
		return 0, 0, nil, err
	}

	// Latest created_at (avoid MAX() -> TEXT in SQLite)
	var row struct {
		CreatedAt time.Time
	}
	if err = q.Session(&gorm.Session{}).Select("notifications.created_at").Order("notifications.created_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, 0, nil, err
	}
	return count, unread, &row.CreatedAt, nil
}
