package services

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-sufi-platform/internal/domain"
	"github.com/tbourn/go-sufi-platform/internal/repo"
	"github.com/tbourn/go-sufi-platform/internal/utils"
)

// CommentService adds, lists, and removes comments. Adding a comment
// dispatches EventComment inside the same transaction.
type CommentService struct {
	DB       *gorm.DB
	Notifier *Notifier
}

// Add stores a comment by userID on contentID.
func (s *CommentService) Add(ctx context.Context, userID, contentID, text string) (*domain.Comment, error) {
	tr := otel.Tracer("services/CommentService")
	ctx, span := tr.Start(ctx, "Add",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.String("content.id", contentID),
		),
	)
	defer span.End()

	text = sanitizeRich(text)
	if isBlankHTML(text) {
		return nil, fieldErr("text", ErrEmptyComment)
	}

	var (
		out      *domain.Comment
		notified []string
	)
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := repo.ContentAuthor(ctx, tx, contentID); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return ErrContentNotFound
			}
			return err
		}
		c, err := repo.CreateComment(ctx, tx, contentID, userID, text)
		if err != nil {
			return err
		}
		notified = s.Notifier.Dispatch(ctx, tx, Event{Kind: EventComment, Comment: c})
		out = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.Notifier.Settle(ctx, notified)
	return out, nil
}

// ListForContent returns a newest-first page of the comments on contentID.
func (s *CommentService) ListForContent(ctx context.Context, contentID string, page, pageSize int) ([]domain.Comment, int64, error) {
	tr := otel.Tracer("services/CommentService")
	ctx, span := tr.Start(ctx, "ListForContent",
		trace.WithAttributes(
			attribute.String("content.id", contentID),
			attribute.Int("page", page),
		),
	)
	defer span.End()

	_, size, offset := utils.PageBounds(page, pageSize, 0)
	total, err := repo.CountComments(ctx, s.DB, contentID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Comment{}, 0, nil
	}
	items, err := repo.ListCommentsPage(ctx, s.DB, contentID, offset, size)
	return items, total, err
}

// Delete removes comment id when userID wrote it and returns the id of the
// content it was attached to.
func (s *CommentService) Delete(ctx context.Context, userID, id string) (string, error) {
	tr := otel.Tracer("services/CommentService")
	ctx, span := tr.Start(ctx, "Delete",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.String("comment.id", id),
		),
	)
	defer span.End()

	var contentID string
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		c, err := repo.GetComment(ctx, tx, id)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return ErrCommentNotFound
			}
			return err
		}
		contentID = c.ContentID
		if c.AuthorID == nil || *c.AuthorID != userID {
			return ErrForbiddenComment
		}
		return repo.DeleteComment(ctx, tx, id)
	})
	return contentID, err
}
