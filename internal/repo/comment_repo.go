package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-sufi-platform/internal/domain"
)

// CreateComment inserts a comment by authorID on contentID.
func CreateComment(ctx context.Context, db *gorm.DB, contentID, authorID, text string) (*domain.Comment, error) {
	now := time.Now().UTC()
	author := authorID
	c := &domain.Comment{
		ID:        uuid.NewString(),
		ContentID: contentID,
		AuthorID:  &author,
		Text:      text,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := db.WithContext(ctx).Omit("Content", "Author").Create(c).Error; err != nil {
		return nil, err
	}
	return c, nil
}

// GetComment fetches a comment by id.
func GetComment(ctx context.Context, db *gorm.DB, id string) (*domain.Comment, error) {
	var c domain.Comment
	if err := db.WithContext(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// CountComments returns the number of comments on contentID.
func CountComments(ctx context.Context, db *gorm.DB, contentID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Comment{}).
		Where("content_id = ?", contentID).
		Count(&total).Error
	return total, err
}

// ListCommentsPage returns a newest-first page of comments on contentID with
// their authors' public columns.
func ListCommentsPage(ctx context.Context, db *gorm.DB, contentID string, offset, limit int) ([]domain.Comment, error) {
	var out []domain.Comment
	err := db.WithContext(ctx).
		Preload("Author", publicUsers).
		Where("content_id = ?", contentID).
		Order("created_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// DeleteComment removes a comment with its likes and notifications.
func DeleteComment(ctx context.Context, db *gorm.DB, id string) error {
	tx := db.WithContext(ctx)
	if err := tx.Where("comment_id = ?", id).Delete(&domain.Notification{}).Error; err != nil {
		return err
	}
	if err := tx.Where("comment_id = ?", id).Delete(&domain.Like{}).Error; err != nil {
		return err
	}
	res := tx.Where("id = ?", id).Delete(&domain.Comment{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
