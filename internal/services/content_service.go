// Package services – ContentService
//
// ContentService manages authored articles: validation and sanitizing of the
// rich-text fields, ownership checks, image lifecycle through the asset
// store, the view counter, topic/dashboard/author listings, and multi-field
// search. Listings paginate with a count query first and return an empty
// slice when nothing matches.
package services

import (
	"context"
	"errors"
	"io"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-sufi-platform/internal/assets"
	"github.com/tbourn/go-sufi-platform/internal/domain"
	"github.com/tbourn/go-sufi-platform/internal/repo"
	"github.com/tbourn/go-sufi-platform/internal/search"
	"github.com/tbourn/go-sufi-platform/internal/utils"
)

const maxTitleRunes = 100

// Search orderings.
const (
	SortNewest    = "newest"
	SortRelevance = "relevance"
)

// ContentInput is the editable part of a content item.
type ContentInput struct {
	Title        string
	Introduction string
	Text         string
	ContentType  string
	Topic        string
	Language     string
	// IsPublished defaults to true on create and is kept on update when nil.
	IsPublished *bool

	// Image, when set, replaces the content image.
	Image     io.Reader
	ImageName string
}

// SearchInput describes a content search.
type SearchInput struct {
	Query       string
	Fields      []string
	Topic       string
	ContentType string
	// Sort is SortNewest (default) or SortRelevance.
	Sort string
}

// ContentService implements content use-cases.
type ContentService struct {
	DB     *gorm.DB
	Assets assets.Store

	// MaxPageSize caps list page sizes; 0 means no cap.
	MaxPageSize int
}

// Create stores a new content item written by authorID.
func (s *ContentService) Create(ctx context.Context, authorID string, in ContentInput) (*domain.Content, error) {
	tr := otel.Tracer("services/ContentService")
	ctx, span := tr.Start(ctx, "Create",
		trace.WithAttributes(attribute.String("user.id", authorID)),
	)
	defer span.End()

	if err := validateContent(&in); err != nil {
		return nil, err
	}
	image, err := s.putImage(ctx, in)
	if err != nil {
		return nil, err
	}
	if image == "" {
		image = domain.DefaultImageFor(in.ContentType)
	}

	published := true
	if in.IsPublished != nil {
		published = *in.IsPublished
	}
	author := authorID
	c := &domain.Content{
		AuthorID:     &author,
		Title:        in.Title,
		Introduction: in.Introduction,
		Text:         in.Text,
		ContentType:  in.ContentType,
		Topic:        in.Topic,
		Language:     in.Language,
		IsPublished:  published,
		Image:        image,
	}
	var out *domain.Content
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repo.CreateContent(ctx, tx, c); err != nil {
			return err
		}
		var gerr error
		out, gerr = repo.GetContent(ctx, tx, c.ID)
		return gerr
	})
	if err != nil {
		if in.Image != nil {
			assets.DeleteQuietly(ctx, s.Assets, image)
		}
		return nil, err
	}
	span.SetAttributes(attribute.String("content.id", out.ID))
	return out, nil
}

// Update replaces the editable fields of content id. Only the author may
// update; others get ErrForbiddenContent.
func (s *ContentService) Update(ctx context.Context, userID, id string, in ContentInput) (*domain.Content, error) {
	tr := otel.Tracer("services/ContentService")
	ctx, span := tr.Start(ctx, "Update",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.String("content.id", id),
		),
	)
	defer span.End()

	if err := validateContent(&in); err != nil {
		return nil, err
	}
	if _, err := s.owned(ctx, s.DB, userID, id); err != nil {
		return nil, err
	}
	newImage, err := s.putImage(ctx, in)
	if err != nil {
		return nil, err
	}

	var (
		out      *domain.Content
		oldImage string
	)
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		c, err := s.owned(ctx, tx, userID, id)
		if err != nil {
			return err
		}
		c.Title, c.Introduction, c.Text = in.Title, in.Introduction, in.Text
		c.Topic, c.Language = in.Topic, in.Language
		if in.IsPublished != nil {
			c.IsPublished = *in.IsPublished
		}
		switch {
		case newImage != "":
			oldImage, c.Image = c.Image, newImage
		case domain.IsDefaultImage(c.Image) && c.ContentType != in.ContentType:
			c.Image = domain.DefaultImageFor(in.ContentType)
		}
		c.ContentType = in.ContentType

		if err := repo.UpdateContent(ctx, tx, c); err != nil {
			return err
		}
		out, err = repo.GetContent(ctx, tx, id)
		return err
	})
	if err != nil {
		if newImage != "" {
			assets.DeleteQuietly(ctx, s.Assets, newImage)
		}
		return nil, err
	}
	if oldImage != "" {
		assets.DeleteQuietly(ctx, s.Assets, oldImage)
	}
	return out, nil
}

// Delete removes content id with its comments, likes, and notifications.
// Only the author may delete.
func (s *ContentService) Delete(ctx context.Context, userID, id string) error {
	tr := otel.Tracer("services/ContentService")
	ctx, span := tr.Start(ctx, "Delete",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.String("content.id", id),
		),
	)
	defer span.End()

	var image string
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		c, err := s.owned(ctx, tx, userID, id)
		if err != nil {
			return err
		}
		image = c.Image
		return repo.DeleteContent(ctx, tx, id)
	})
	if err != nil {
		return err
	}
	assets.DeleteQuietly(ctx, s.Assets, image)
	return nil
}

// RecordView adds one to the view counter of content id. Every call counts,
// whoever the reader is.
func (s *ContentService) RecordView(ctx context.Context, id string) error {
	if err := repo.IncrementViewCount(ctx, s.DB, id); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrContentNotFound
		}
		return err
	}
	return nil
}

// Detail records a view of content id and returns it.
func (s *ContentService) Detail(ctx context.Context, id string) (*domain.Content, error) {
	tr := otel.Tracer("services/ContentService")
	ctx, span := tr.Start(ctx, "Detail",
		trace.WithAttributes(attribute.String("content.id", id)),
	)
	defer span.End()

	if err := s.RecordView(ctx, id); err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// Get returns content id without counting a view.
func (s *ContentService) Get(ctx context.Context, id string) (*domain.Content, error) {
	c, err := repo.GetContent(ctx, s.DB, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrContentNotFound
		}
		return nil, err
	}
	return c, nil
}

// ListTopic lists published contents of topic (domain.TopicAll for every
// topic), optionally narrowed by content type and to authors viewerID
// follows.
func (s *ContentService) ListTopic(ctx context.Context, topic, contentType, viewerID string, onlyFollowed bool, page, pageSize int) ([]domain.Content, int64, error) {
	tr := otel.Tracer("services/ContentService")
	ctx, span := tr.Start(ctx, "ListTopic",
		trace.WithAttributes(
			attribute.String("topic", topic),
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	if topic != domain.TopicAll && !domain.ValidChoice(topic, domain.Topics) {
		return nil, 0, fieldErr("topic", ErrInvalidChoice)
	}
	if err := checkContentType(contentType); err != nil {
		return nil, 0, err
	}
	f := repo.ContentFilter{Topic: topic, ContentType: contentType}
	if onlyFollowed && viewerID != "" {
		f.FollowedBy = viewerID
	}
	return s.list(ctx, f, page, pageSize)
}

// Dashboard lists every content item of userID, drafts included.
func (s *ContentService) Dashboard(ctx context.Context, userID, contentType string, page, pageSize int) ([]domain.Content, int64, error) {
	if err := checkContentType(contentType); err != nil {
		return nil, 0, err
	}
	return s.list(ctx, repo.ContentFilter{AuthorID: userID, ContentType: contentType, IncludeDrafts: true}, page, pageSize)
}

// ListByAuthor lists the published contents of authorID.
func (s *ContentService) ListByAuthor(ctx context.Context, authorID, contentType string, page, pageSize int) ([]domain.Content, int64, error) {
	if err := checkContentType(contentType); err != nil {
		return nil, 0, err
	}
	return s.list(ctx, repo.ContentFilter{AuthorID: authorID, ContentType: contentType}, page, pageSize)
}

// Search finds published contents whose selected fields contain the query,
// ignoring case. Results are newest first; SortRelevance re-ranks the page
// by token overlap with the query.
func (s *ContentService) Search(ctx context.Context, in SearchInput, page, pageSize int) ([]domain.Content, int64, error) {
	tr := otel.Tracer("services/ContentService")
	ctx, span := tr.Start(ctx, "Search",
		trace.WithAttributes(
			attribute.String("query", in.Query),
			attribute.StringSlice("fields", in.Fields),
		),
	)
	defer span.End()

	in.Query = strings.TrimSpace(in.Query)
	if in.Query == "" {
		return nil, 0, fieldErr("q", ErrEmptyQuery)
	}
	if len(in.Fields) == 0 {
		return nil, 0, fieldErr("fields", ErrNoSearchFields)
	}
	for _, f := range in.Fields {
		if !domain.ValidChoice(f, repo.SearchFields) {
			return nil, 0, fieldErr("fields", ErrInvalidChoice)
		}
	}
	if in.Topic != "" && in.Topic != domain.TopicAll && !domain.ValidChoice(in.Topic, domain.Topics) {
		return nil, 0, fieldErr("topic", ErrInvalidChoice)
	}
	if err := checkContentType(in.ContentType); err != nil {
		return nil, 0, err
	}
	if in.Sort != "" && in.Sort != SortNewest && in.Sort != SortRelevance {
		return nil, 0, fieldErr("sort", ErrInvalidChoice)
	}

	f := repo.SearchFilter{Query: in.Query, Fields: in.Fields, Topic: in.Topic, ContentType: in.ContentType}
	_, size, offset := utils.PageBounds(page, pageSize, s.MaxPageSize)
	total, err := repo.CountSearch(ctx, s.DB, f)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Content{}, 0, nil
	}
	items, err := repo.SearchContentsPage(ctx, s.DB, f, offset, size)
	if err != nil {
		return nil, 0, err
	}
	if in.Sort == SortRelevance {
		items = rankByRelevance(items, in.Query)
	}
	return items, total, nil
}

func (s *ContentService) list(ctx context.Context, f repo.ContentFilter, page, pageSize int) ([]domain.Content, int64, error) {
	_, size, offset := utils.PageBounds(page, pageSize, s.MaxPageSize)
	total, err := repo.CountContents(ctx, s.DB, f)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Content{}, 0, nil
	}
	items, err := repo.ListContentsPage(ctx, s.DB, f, offset, size)
	return items, total, err
}

// owned loads content id and checks that userID wrote it.
func (s *ContentService) owned(ctx context.Context, db *gorm.DB, userID, id string) (*domain.Content, error) {
	c, err := repo.GetContent(ctx, db, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrContentNotFound
		}
		return nil, err
	}
	if c.AuthorID == nil || *c.AuthorID != userID {
		return nil, ErrForbiddenContent
	}
	return c, nil
}

func (s *ContentService) putImage(ctx context.Context, in ContentInput) (string, error) {
	if in.Image == nil {
		return "", nil
	}
	if s.Assets == nil {
		return "", errNoAssetStore
	}
	return s.Assets.Put(ctx, in.ImageName, in.Image)
}

// rankByRelevance orders items by descending relevance to query. Ties keep
// the newest-first order.
func rankByRelevance(items []domain.Content, query string) []domain.Content {
	docs := make([]search.Document, len(items))
	byID := make(map[string]domain.Content, len(items))
	for i, c := range items {
		docs[i] = search.Document{ID: c.ID, Title: c.Title, Body: c.Introduction + " " + c.Text}
		byID[c.ID] = c
	}
	ranked := search.NewIndex(docs).Rank(query)
	out := make([]domain.Content, 0, len(items))
	for _, r := range ranked {
		out = append(out, byID[r.ID])
		delete(byID, r.ID)
	}
	// The index skips documents without text.
	for _, c := range items {
		if _, ok := byID[c.ID]; ok {
			out = append(out, c)
		}
	}
	return out
}

func validateContent(in *ContentInput) error {
	in.Title = plainText(in.Title)
	if in.Title == "" {
		return fieldErr("title", ErrEmptyTitle)
	}
	if tooLong(in.Title, maxTitleRunes) {
		return fieldErr("title", ErrTitleTooLong)
	}
	in.Introduction = sanitizeRich(in.Introduction)
	in.Text = sanitizeRich(in.Text)
	if isBlankHTML(in.Text) {
		return fieldErr("text", ErrEmptyText)
	}
	if !domain.ValidChoice(in.ContentType, domain.ContentTypes) {
		return fieldErr("content_type", ErrInvalidChoice)
	}
	if !domain.ValidChoice(in.Topic, domain.Topics) {
		return fieldErr("topic", ErrInvalidChoice)
	}
	if in.Language == "" {
		in.Language = domain.LanguageEnglish
	}
	if !domain.ValidChoice(in.Language, domain.Languages) {
		return fieldErr("language", ErrInvalidChoice)
	}
	return nil
}

func checkContentType(ct string) error {
	if ct != "" && !domain.ValidChoice(ct, domain.ContentTypes) {
		return fieldErr("content_type", ErrInvalidChoice)
	}
	return nil
}
