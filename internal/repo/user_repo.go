// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for users, their
// profiles, and pending email verifications.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions. They follow the "thin repository"
// approach: no business logic, only persistence and query composition.
//
// Error semantics:
//   - Lookups of missing rows return gorm.ErrRecordNotFound (ErrNotFound).
//   - Updates that touch no row return ErrNotFound.
//   - Other DB errors are propagated unchanged.
package repo

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-sufi-platform/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// PublicUserColumns are the user columns safe to embed in other resources.
var PublicUserColumns = []string{"id", "username", "is_verified", "created_at", "updated_at"}

// publicUsers restricts preloaded users to PublicUserColumns.
func publicUsers(db *gorm.DB) *gorm.DB { return db.Select(PublicUserColumns) }

// CreateUser inserts a user row with a fresh UUID.
func CreateUser(ctx context.Context, db *gorm.DB, username, email string) (*domain.User, error) {
	now := time.Now().UTC()
	u := &domain.User{
		ID:        uuid.NewString(),
		Username:  username,
		Email:     email,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := db.WithContext(ctx).Create(u).Error; err != nil {
		return nil, err
	}
	return u, nil
}

// CreateProfile inserts the empty profile of userID.
func CreateProfile(ctx context.Context, db *gorm.DB, userID string) (*domain.Profile, error) {
	p := &domain.Profile{
		ID:     uuid.NewString(),
		UserID: userID,
		Image:  domain.DefaultProfileImage,
	}
	if err := db.WithContext(ctx).Create(p).Error; err != nil {
		return nil, err
	}
	return p, nil
}

// GetUser fetches a user by id.
func GetUser(ctx context.Context, db *gorm.DB, id string) (*domain.User, error) {
	var u domain.User
	if err := db.WithContext(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUserByUsername fetches a user by exact handle.
func GetUserByUsername(ctx context.Context, db *gorm.DB, username string) (*domain.User, error) {
	var u domain.User
	if err := db.WithContext(ctx).Where("username = ?", username).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUserByEmail fetches a user by email, ignoring case.
func GetUserByEmail(ctx context.Context, db *gorm.DB, email string) (*domain.User, error) {
	var u domain.User
	err := db.WithContext(ctx).
		Where("LOWER(email) = ?", strings.ToLower(strings.TrimSpace(email))).
		First(&u).Error
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// UsernameTaken reports whether another user (not exceptID) owns username.
func UsernameTaken(ctx context.Context, db *gorm.DB, username, exceptID string) (bool, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.User{}).
		Where("username = ? AND id <> ?", username, exceptID).
		Count(&n).Error
	return n > 0, err
}

// EmailTaken reports whether another user (not exceptID) owns email,
// ignoring case.
func EmailTaken(ctx context.Context, db *gorm.DB, email, exceptID string) (bool, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.User{}).
		Where("LOWER(email) = ? AND id <> ?", strings.ToLower(email), exceptID).
		Count(&n).Error
	return n > 0, err
}

// UpdateUserEmail stores a new email and clears the verified flag.
func UpdateUserEmail(ctx context.Context, db *gorm.DB, id, email string) error {
	res := db.WithContext(ctx).Model(&domain.User{}).
		Where("id = ?", id).
		Updates(map[string]any{"email": email, "is_verified": false, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// UpdateUsername stores a new handle for a user.
func UpdateUsername(ctx context.Context, db *gorm.DB, id, username string) error {
	res := db.WithContext(ctx).Model(&domain.User{}).
		Where("id = ?", id).
		Updates(map[string]any{"username": username, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// SetUserVerified flips the verified flag of a user.
func SetUserVerified(ctx context.Context, db *gorm.DB, id string, verified bool) error {
	res := db.WithContext(ctx).Model(&domain.User{}).
		Where("id = ?", id).
		Updates(map[string]any{"is_verified": verified, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// GetProfile fetches the profile of userID.
func GetProfile(ctx context.Context, db *gorm.DB, userID string) (*domain.Profile, error) {
	var p domain.Profile
	if err := db.WithContext(ctx).Where("user_id = ?", userID).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// SaveProfile writes every column of p.
func SaveProfile(ctx context.Context, db *gorm.DB, p *domain.Profile) error {
	p.UpdatedAt = time.Now().UTC()
	return db.WithContext(ctx).Save(p).Error
}

// UpsertVerification stores code as the pending verification of userID,
// replacing any previous code.
func UpsertVerification(ctx context.Context, db *gorm.DB, userID, code string) (*domain.EmailVerification, error) {
	var v domain.EmailVerification
	err := db.WithContext(ctx).Where("user_id = ?", userID).First(&v).Error
	switch {
	case err == nil:
		v.Code = code
		v.CreatedAt = time.Now().UTC()
		if err := db.WithContext(ctx).Model(&v).Updates(map[string]any{"code": v.Code, "created_at": v.CreatedAt}).Error; err != nil {
			return nil, err
		}
		return &v, nil
	case err == gorm.ErrRecordNotFound:
		v = domain.EmailVerification{
			ID:        uuid.NewString(),
			UserID:    userID,
			Code:      code,
			CreatedAt: time.Now().UTC(),
		}
		if err := db.WithContext(ctx).Create(&v).Error; err != nil {
			return nil, err
		}
		return &v, nil
	default:
		return nil, err
	}
}

// FindPendingVerification returns the verification row carrying code whose
// user is not verified yet.
func FindPendingVerification(ctx context.Context, db *gorm.DB, code string) (*domain.EmailVerification, error) {
	var v domain.EmailVerification
	err := db.WithContext(ctx).
		Joins("JOIN users ON users.id = email_verifications.user_id").
		Where("email_verifications.code = ? AND users.is_verified = ?", code, false).
		First(&v).Error
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// DeleteUser removes a user. Authored rows survive with a NULL reference;
// profile, verification, and follow edges go with the user. The reference
// clearing is explicit so it holds even where the driver skips FK actions.
func DeleteUser(ctx context.Context, db *gorm.DB, id string) error {
	tx := db.WithContext(ctx)
	clears := []struct {
		model  any
		column string
	}{
		{&domain.Content{}, "author_id"},
		{&domain.Comment{}, "author_id"},
		{&domain.Like{}, "user_id"},
		{&domain.Message{}, "sender_id"},
		{&domain.Message{}, "recipient_id"},
		{&domain.Notification{}, "user_id"},
		{&domain.Notification{}, "from_user_id"},
	}
	for _, c := range clears {
		if err := tx.Model(c.model).Where(c.column+" = ?", id).Update(c.column, nil).Error; err != nil {
			return err
		}
	}
	if err := tx.Where("follower_id = ? OR followee_id = ?", id, id).Delete(&domain.Follow{}).Error; err != nil {
		return err
	}
	if err := tx.Where("user_id = ?", id).Delete(&domain.EmailVerification{}).Error; err != nil {
		return err
	}
	if err := tx.Where("user_id = ?", id).Delete(&domain.Profile{}).Error; err != nil {
		return err
	}
	res := tx.Where("id = ?", id).Delete(&domain.User{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
