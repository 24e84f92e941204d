// Package handlers implements the JSON endpoints of the public API.
//
// Handlers stay transport-thin: they bind and shape input, call a service,
// and translate the result or the service error into a response. Identity
// comes from middleware.UserID; routes that need a signed-in caller are
// guarded by middleware.RequireUser in the router.
package handlers

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-sufi-platform/internal/domain"
	"github.com/tbourn/go-sufi-platform/internal/http/middleware"
	"github.com/tbourn/go-sufi-platform/internal/services"
	"github.com/tbourn/go-sufi-platform/internal/utils"
)

// UserService covers registration, verification and profiles.
type UserService interface {
	Register(ctx context.Context, username, email string) (*domain.User, error)
	Verify(ctx context.Context, code string) (*domain.User, error)
	ResendVerification(ctx context.Context, email string) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	ProfileView(ctx context.Context, username, viewerID, contentType string, page, pageSize int) (*services.ProfileView, error)
	UpdateProfile(ctx context.Context, userID string, in services.ProfileInput) (*domain.User, *domain.Profile, error)
	Delete(ctx context.Context, userID string) error
}

// FollowService covers the follow graph.
type FollowService interface {
	Follow(ctx context.Context, followerID, followee string) (bool, error)
	Unfollow(ctx context.Context, followerID, followee string) (bool, error)
	Followers(ctx context.Context, username string, page, pageSize int) ([]domain.User, int64, error)
	Following(ctx context.Context, username string, page, pageSize int) ([]domain.User, int64, error)
}

// ContentService covers authored content and its listings.
type ContentService interface {
	Create(ctx context.Context, authorID string, in services.ContentInput) (*domain.Content, error)
	Update(ctx context.Context, userID, id string, in services.ContentInput) (*domain.Content, error)
	Delete(ctx context.Context, userID, id string) error
	Detail(ctx context.Context, id string) (*domain.Content, error)
	ListTopic(ctx context.Context, topic, contentType, viewerID string, onlyFollowed bool, page, pageSize int) ([]domain.Content, int64, error)
	Dashboard(ctx context.Context, userID, contentType string, page, pageSize int) ([]domain.Content, int64, error)
	Search(ctx context.Context, in services.SearchInput, page, pageSize int) ([]domain.Content, int64, error)
}

// CommentService covers comments on content.
type CommentService interface {
	Add(ctx context.Context, userID, contentID, text string) (*domain.Comment, error)
	ListForContent(ctx context.Context, contentID string, page, pageSize int) ([]domain.Comment, int64, error)
	Delete(ctx context.Context, userID, id string) (string, error)
}

// LikeService toggles likes.
type LikeService interface {
	Toggle(ctx context.Context, userID string, target domain.LikeTarget) (services.ToggleResult, error)
}

// NotificationService is the read side of notifications.
type NotificationService interface {
	List(ctx context.Context, userID string, page, pageSize int) (*services.NotificationPage, error)
	Stats(ctx context.Context, userID string) (count, unread int64, latest *time.Time, err error)
	Open(ctx context.Context, userID, id string) (services.NotificationTarget, error)
}

// MessageService covers private messages.
type MessageService interface {
	Send(ctx context.Context, senderID string, in services.SendInput) (*domain.Message, bool, error)
	List(ctx context.Context, userID, box string, page, pageSize int) ([]domain.Message, int64, error)
	Get(ctx context.Context, userID, id string) (*domain.Message, error)
	Delete(ctx context.Context, userID, id string) error
	UnreadCount(ctx context.Context, userID string) (int64, error)
}

// ContactService forwards the contact form.
type ContactService interface {
	Send(ctx context.Context, in services.ContactInput, viewer *domain.User) error
}

// Services bundles the dependencies of Handlers. Nil members are allowed in
// tests that do not reach them.
type Services struct {
	Users         UserService
	Follows       FollowService
	Contents      ContentService
	Comments      CommentService
	Likes         LikeService
	Notifications NotificationService
	Messages      MessageService
	Contact       ContactService
}

// Handlers groups every endpoint of the API.
type Handlers struct {
	svc         Services
	basePath    string
	maxPageSize int
}

// New returns Handlers bound to svc. basePath (e.g. "/api/v1") prefixes the
// redirect targets handed to clients; maxPageSize caps page_size.
func New(svc Services, basePath string, maxPageSize int) *Handlers {
	if maxPageSize <= 0 {
		maxPageSize = 100
	}
	return &Handlers{svc: svc, basePath: basePath, maxPageSize: maxPageSize}
}

// Pagination describes the page returned by a list endpoint.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// PublicUser is the part of a user shown to other users.
type PublicUser struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	IsVerified bool   `json:"is_verified"`
}

func publicUser(u *domain.User) *PublicUser {
	if u == nil {
		return nil
	}
	return &PublicUser{ID: u.ID, Username: u.Username, IsVerified: u.IsVerified}
}

func publicUsers(us []domain.User) []PublicUser {
	out := make([]PublicUser, 0, len(us))
	for i := range us {
		out = append(out, *publicUser(&us[i]))
	}
	return out
}

// pageParams reads page and page_size, applying defaults and the cap.
func (h *Handlers) pageParams(c *gin.Context) (page, pageSize int) {
	page = utils.AtoiDefault(c.Query("page"), 1)
	pageSize = utils.AtoiDefault(c.Query("page_size"), utils.DefaultPageSize)
	page, pageSize, _ = utils.PageBounds(page, pageSize, h.maxPageSize)
	return page, pageSize
}

func pagination(page, pageSize int, total int64) Pagination {
	pages := int((total + int64(pageSize) - 1) / int64(pageSize))
	return Pagination{
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: pages,
		HasNext:    page < pages,
	}
}

func (h *Handlers) path(parts ...string) string {
	p := h.basePath
	for _, s := range parts {
		p += "/" + s
	}
	return p
}

func currentUser(c *gin.Context) string { return middleware.UserID(c) }
