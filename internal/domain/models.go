// Package domain defines the persistence models for identities, profiles,
// authored content, the like ledger, the follow graph, notifications, and
// private messages. These types are mapped with GORM and form the core data
// layer of the platform.
package domain

import (
	"time"
)

// User represents a registered identity. Every other aggregate hangs off a
// user through a nullable or cascading foreign key.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - Username: unique public handle used in profile URLs.
//   - Email: unique address used for verification and contact.
//   - IsVerified: true once the emailed verification code was confirmed.
//   - CreatedAt / UpdatedAt: timestamps managed by GORM.
type User struct {
	ID         string    `json:"id"          gorm:"type:char(36);primaryKey"`
	Username   string    `json:"username"    gorm:"type:varchar(150);not null;uniqueIndex:ux_users_username"`
	Email      string    `json:"email"       gorm:"type:varchar(254);not null;uniqueIndex:ux_users_email"`
	IsVerified bool      `json:"is_verified" gorm:"not null;default:false"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`

	// Profile is created together with the user and removed with it.
	Profile *Profile `json:"profile,omitempty" gorm:"foreignKey:UserID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// Profile carries optional biographical metadata for a user. Exactly one
// profile exists per user.
//
// Fields:
//   - UserID: owning user (unique, cascade on delete).
//   - BirthDate: optional, never in the future.
//   - BirthPlace / CurrentLocation / Education / Profession / About: free text.
//   - Image: asset identifier inside the configured assets.Store.
type Profile struct {
	ID              string     `json:"id"               gorm:"type:char(36);primaryKey"`
	UserID          string     `json:"user_id"          gorm:"type:char(36);not null;uniqueIndex:ux_profiles_user"`
	BirthDate       *time.Time `json:"birth_date,omitempty"`
	BirthPlace      string     `json:"birth_place"      gorm:"type:varchar(100)"`
	CurrentLocation string     `json:"current_location" gorm:"type:varchar(100)"`
	Education       string     `json:"education"        gorm:"type:varchar(100)"`
	Profession      string     `json:"profession"       gorm:"type:varchar(100)"`
	About           string     `json:"about"            gorm:"type:text"`
	Image           string     `json:"image"            gorm:"type:varchar(255)"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// TableName returns the database table name for Profile.
func (Profile) TableName() string { return "profiles" }

// DefaultProfileImage is the asset id served when a profile has no image.
// It is never deleted from the store.
const DefaultProfileImage = "img/default_profile_pic.jpg"

// EmailVerification stores the pending verification code of a user.
type EmailVerification struct {
	ID        string    `json:"id"         gorm:"type:char(36);primaryKey"`
	UserID    string    `json:"user_id"    gorm:"type:char(36);not null;uniqueIndex:ux_verifications_user"`
	Code      string    `json:"-"          gorm:"type:varchar(6);not null;index:idx_verifications_code"`
	CreatedAt time.Time `json:"created_at"`

	User User `json:"-" gorm:"foreignKey:UserID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for EmailVerification.
func (EmailVerification) TableName() string { return "email_verifications" }
