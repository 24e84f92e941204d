package repo

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-sufi-platform/internal/domain"
)

// ContentFilter narrows content listings. Zero fields do not filter.
type ContentFilter struct {
	// Topic filters by topic; domain.TopicAll and "" disable the filter.
	Topic       string
	ContentType string
	AuthorID    string
	// FollowedBy keeps only contents whose author is followed by this user.
	FollowedBy string
	// IncludeDrafts keeps unpublished rows (author dashboard).
	IncludeDrafts bool
}

func (f ContentFilter) scope(db *gorm.DB) *gorm.DB {
	if !f.IncludeDrafts {
		db = db.Where("contents.is_published = ?", true)
	}
	if f.Topic != "" && f.Topic != domain.TopicAll {
		db = db.Where("contents.topic = ?", f.Topic)
	}
	if f.ContentType != "" {
		db = db.Where("contents.content_type = ?", f.ContentType)
	}
	if f.AuthorID != "" {
		db = db.Where("contents.author_id = ?", f.AuthorID)
	}
	if f.FollowedBy != "" {
		db = db.Where("contents.author_id IN (?)",
			db.Session(&gorm.Session{NewDB: true}).
				Model(&domain.Follow{}).
				Select("followee_id").
				Where("follower_id = ?", f.FollowedBy))
	}
	return db
}

// CreateContent inserts c, assigning an ID and timestamps when missing.
func CreateContent(ctx context.Context, db *gorm.DB, c *domain.Content) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now
	return db.WithContext(ctx).Create(c).Error
}

// GetContent fetches a content item with its author's public columns.
func GetContent(ctx context.Context, db *gorm.DB, id string) (*domain.Content, error) {
	var c domain.Content
	err := db.WithContext(ctx).
		Preload("Author", publicUsers).
		Where("id = ?", id).
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ContentAuthor returns the author id of a content item; nil when the author
// was deleted.
func ContentAuthor(ctx context.Context, db *gorm.DB, id string) (*string, error) {
	var c domain.Content
	err := db.WithContext(ctx).Select("id", "author_id").Where("id = ?", id).First(&c).Error
	if err != nil {
		return nil, err
	}
	return c.AuthorID, nil
}

// UpdateContent writes the editable columns of c.
func UpdateContent(ctx context.Context, db *gorm.DB, c *domain.Content) error {
	c.UpdatedAt = time.Now().UTC()
	res := db.WithContext(ctx).
		Model(&domain.Content{}).
		Where("id = ?", c.ID).
		Updates(map[string]any{
			"title":        c.Title,
			"introduction": c.Introduction,
			"text":         c.Text,
			"content_type": c.ContentType,
			"topic":        c.Topic,
			"language":     c.Language,
			"is_published": c.IsPublished,
			"image":        c.Image,
			"updated_at":   c.UpdatedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DeleteContent removes a content item; comments, likes and notifications
// referencing it go with it.
func DeleteContent(ctx context.Context, db *gorm.DB, id string) error {
	tx := db.WithContext(ctx)
	commentIDs := tx.Session(&gorm.Session{NewDB: true}).Model(&domain.Comment{}).Select("id").Where("content_id = ?", id)
	if err := tx.Where("content_id = ? OR comment_id IN (?)", id, commentIDs).Delete(&domain.Notification{}).Error; err != nil {
		return err
	}
	if err := tx.Where("content_id = ? OR comment_id IN (?)", id, commentIDs).Delete(&domain.Like{}).Error; err != nil {
		return err
	}
	if err := tx.Where("content_id = ?", id).Delete(&domain.Comment{}).Error; err != nil {
		return err
	}
	res := tx.Where("id = ?", id).Delete(&domain.Content{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// IncrementViewCount adds one to view_count with a relative update so
// concurrent readers never lose increments.
func IncrementViewCount(ctx context.Context, db *gorm.DB, id string) error {
	res := db.WithContext(ctx).
		Model(&domain.Content{}).
		Where("id = ?", id).
		UpdateColumn("view_count", gorm.Expr("view_count + ?", 1))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// CountContents returns how many rows match f.
func CountContents(ctx context.Context, db *gorm.DB, f ContentFilter) (int64, error) {
	var total int64
	err := f.scope(db.WithContext(ctx).Model(&domain.Content{})).Count(&total).Error
	return total, err
}

// ListContentsPage returns a newest-first page of rows matching f.
func ListContentsPage(ctx context.Context, db *gorm.DB, f ContentFilter, offset, limit int) ([]domain.Content, error) {
	var out []domain.Content
	err := f.scope(db.WithContext(ctx).Model(&domain.Content{})).
		Preload("Author", publicUsers).
		Order("contents.created_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// Search fields.
const (
	SearchTitle        = "title"
	SearchIntroduction = "introduction"
	SearchText         = "text"
	SearchComment      = "comment"
	SearchUsername     = "username"
)

// SearchFields lists every accepted search field.
var SearchFields = []string{SearchTitle, SearchIntroduction, SearchText, SearchComment, SearchUsername}

// SearchFilter describes a multi-field substring search over published
// contents.
type SearchFilter struct {
	Query       string
	Fields      []string
	Topic       string
	ContentType string
}

// likePattern escapes LIKE metacharacters and wraps q in wildcards.
func likePattern(q string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(strings.ToLower(q)) + "%"
}

func (f SearchFilter) scope(db *gorm.DB) *gorm.DB {
	db = ContentFilter{Topic: f.Topic, ContentType: f.ContentType}.scope(db)
	pat := likePattern(f.Query)
	sub := func() *gorm.DB { return db.Session(&gorm.Session{NewDB: true}) }

	var (
		conds []string
		args  []any
	)
	for _, field := range f.Fields {
		switch field {
		case SearchTitle, SearchIntroduction, SearchText:
			conds = append(conds, "LOWER(contents."+field+") LIKE ? ESCAPE '\\'")
			args = append(args, pat)
		case SearchComment:
			conds = append(conds, "contents.id IN (?)")
			args = append(args, sub().Model(&domain.Comment{}).
				Select("content_id").
				Where("LOWER(text) LIKE ? ESCAPE '\\'", pat))
		case SearchUsername:
			conds = append(conds, "contents.author_id IN (?)")
			args = append(args, sub().Model(&domain.User{}).
				Select("id").
				Where("LOWER(username) LIKE ? ESCAPE '\\'", pat))
		}
	}
	if len(conds) == 0 {
		return db.Where("1 = 0")
	}
	return db.Where("("+strings.Join(conds, " OR ")+")", args...)
}

// CountSearch returns the number of distinct contents matching f.
func CountSearch(ctx context.Context, db *gorm.DB, f SearchFilter) (int64, error) {
	var total int64
	err := f.scope(db.WithContext(ctx).Model(&domain.Content{})).Count(&total).Error
	return total, err
}

// SearchContentsPage returns a newest-first page of contents matching f.
// Every condition filters the contents table directly, so rows are distinct.
func SearchContentsPage(ctx context.Context, db *gorm.DB, f SearchFilter, offset, limit int) ([]domain.Content, error) {
	var out []domain.Content
	err := f.scope(db.WithContext(ctx).Model(&domain.Content{})).
		Preload("Author", publicUsers).
		Order("contents.created_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}
