package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-sufi-platform/internal/domain"
)

// FindFollow returns the edge followerID -> followeeID, or ErrNotFound.
func FindFollow(ctx context.Context, db *gorm.DB, followerID, followeeID string) (*domain.Follow, error) {
	var f domain.Follow
	err := db.WithContext(ctx).
		Where("follower_id = ? AND followee_id = ?", followerID, followeeID).
		First(&f).Error
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// CreateFollow inserts the edge followerID -> followeeID. An existing edge
// yields ErrDuplicate.
func CreateFollow(ctx context.Context, db *gorm.DB, followerID, followeeID string) (*domain.Follow, error) {
	f := &domain.Follow{
		ID:         uuid.NewString(),
		FollowerID: followerID,
		FolloweeID: followeeID,
		CreatedAt:  time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Omit("Follower", "Followee").Create(f).Error; err != nil {
		if IsUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return f, nil
}

// DeleteFollow removes the edge and reports whether one existed.
func DeleteFollow(ctx context.Context, db *gorm.DB, followerID, followeeID string) (bool, error) {
	res := db.WithContext(ctx).
		Where("follower_id = ? AND followee_id = ?", followerID, followeeID).
		Delete(&domain.Follow{})
	return res.RowsAffected > 0, res.Error
}

// IsFollowing reports whether followerID follows followeeID.
func IsFollowing(ctx context.Context, db *gorm.DB, followerID, followeeID string) (bool, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.Follow{}).
		Where("follower_id = ? AND followee_id = ?", followerID, followeeID).
		Count(&n).Error
	return n > 0, err
}

// CountFollowers returns how many users follow userID.
func CountFollowers(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.Follow{}).Where("followee_id = ?", userID).Count(&n).Error
	return n, err
}

// CountFollowing returns how many users userID follows.
func CountFollowing(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.Follow{}).Where("follower_id = ?", userID).Count(&n).Error
	return n, err
}

// ListFollowersPage returns the users following userID, most recent edge first.
func ListFollowersPage(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.User, error) {
	return listEdgeUsers(ctx, db, "follower_id", "followee_id", userID, offset, limit)
}

// ListFollowingPage returns the users userID follows, most recent edge first.
func ListFollowingPage(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.User, error) {
	return listEdgeUsers(ctx, db, "followee_id", "follower_id", userID, offset, limit)
}

func listEdgeUsers(ctx context.Context, db *gorm.DB, pick, match, userID string, offset, limit int) ([]domain.User, error) {
	var out []domain.User
	err := db.WithContext(ctx).
		Model(&domain.User{}).
		Select("users.id, users.username, users.is_verified, users.created_at, users.updated_at").
		Joins("JOIN follows ON follows."+pick+" = users.id").
		Where("follows."+match+" = ?", userID).
		Order("follows.created_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}
