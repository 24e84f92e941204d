package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/tbourn/go-sufi-platform/internal/domain"
)

func TestCommentService_Add_NotifiesContentAuthor(t *testing.T) {
	db := newTestDB(t)
	s := &CommentService{DB: db, Notifier: NewNotifier(nil)}
	ctx := context.Background()
	author := seedUser(t, db, "author")
	reader := seedUser(t, db, "reader")
	c := seedContent(t, db, author, "Masnavi")

	cm, err := s.Add(ctx, reader.ID, c.ID, "<p>beautiful</p><script>alert(1)</script>")
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if strings.Contains(cm.Text, "script") || !strings.Contains(cm.Text, "beautiful") {
		t.Fatalf("comment not sanitized: %q", cm.Text)
	}

	var got []domain.Notification
	if err := db.Where("type = ?", domain.NotificationComment).Find(&got).Error; err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected exactly one notification, got %d", len(got))
	}
	n := got[0]
	if n.UserID == nil || *n.UserID != author.ID || n.FromUserID == nil || *n.FromUserID != reader.ID {
		t.Fatalf("wrong recipient/sender: %+v", n)
	}
	if n.CommentID == nil || *n.CommentID != cm.ID || n.ContentID == nil || *n.ContentID != c.ID {
		t.Fatalf("wrong references: %+v", n)
	}
}

func TestCommentService_Add_AuthorlessContentSkipsNotification(t *testing.T) {
	db := newTestDB(t)
	s := &CommentService{DB: db, Notifier: NewNotifier(nil)}
	reader := seedUser(t, db, "reader")
	c := seedContent(t, db, nil, "orphan")

	if _, err := s.Add(context.Background(), reader.ID, c.ID, "still here"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if n := countRows(t, db, &domain.Notification{}, ""); n != 0 {
		t.Fatalf("expected no notifications, got %d", n)
	}
}

func TestCommentService_Add_Errors(t *testing.T) {
	db := newTestDB(t)
	s := &CommentService{DB: db}
	u := seedUser(t, db, "u")
	c := seedContent(t, db, u, "t")

	if _, err := s.Add(context.Background(), u.ID, c.ID, "  <p> </p> "); !errors.Is(err, ErrEmptyComment) {
		t.Fatalf("expected ErrEmptyComment, got %v", err)
	}
	var fe *FieldError
	_, err := s.Add(context.Background(), u.ID, c.ID, "")
	if !errors.As(err, &fe) || fe.Field != "text" {
		t.Fatalf("expected field error on text, got %v", err)
	}
	if _, err := s.Add(context.Background(), u.ID, "missing", "hi"); !errors.Is(err, ErrContentNotFound) {
		t.Fatalf("expected ErrContentNotFound, got %v", err)
	}
}

func TestCommentService_ListAndDelete(t *testing.T) {
	db := newTestDB(t)
	s := &CommentService{DB: db, Notifier: NewNotifier(nil)}
	ctx := context.Background()
	author := seedUser(t, db, "author")
	other := seedUser(t, db, "other")
	c := seedContent(t, db, author, "t")

	for i := 0; i < 12; i++ {
		if _, err := s.Add(ctx, other.ID, c.ID, "comment"); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	items, total, err := s.ListForContent(ctx, c.ID, 2, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 12 || len(items) != 2 {
		t.Fatalf("page 2 of 10: total=%d len=%d", total, len(items))
	}
	if items[0].Author == nil || items[0].Author.Username != "other" || items[0].Author.Email != "" {
		t.Fatalf("author should carry public columns only: %+v", items[0].Author)
	}

	empty, total, err := s.ListForContent(ctx, "none", 1, 10)
	if err != nil || total != 0 || empty == nil || len(empty) != 0 {
		t.Fatalf("empty list: %v %d %v", empty, total, err)
	}

	target := items[0]
	contentID, err := s.Delete(ctx, author.ID, target.ID)
	if !errors.Is(err, ErrForbiddenComment) {
		t.Fatalf("expected ErrForbiddenComment, got %v", err)
	}
	if contentID != c.ID {
		t.Fatalf("forbidden delete should still report the content id, got %q", contentID)
	}
	contentID, err = s.Delete(ctx, other.ID, target.ID)
	if err != nil || contentID != c.ID {
		t.Fatalf("Delete: %q %v", contentID, err)
	}
	if n := countRows(t, db, &domain.Notification{}, "comment_id = ?", target.ID); n != 0 {
		t.Fatalf("notifications of the comment should go with it, got %d", n)
	}
	if _, err := s.Delete(ctx, other.ID, target.ID); !errors.Is(err, ErrCommentNotFound) {
		t.Fatalf("expected ErrCommentNotFound, got %v", err)
	}
}
