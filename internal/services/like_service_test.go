package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/tbourn/go-sufi-platform/internal/domain"
)

func newLikeService(t *testing.T) *LikeService {
	t.Helper()
	db := newTestDB(t)
	return &LikeService{DB: db, Notifier: NewNotifier(nil)}
}

func TestLikeService_Toggle_TwiceRestoresState(t *testing.T) {
	s := newLikeService(t)
	ctx := context.Background()
	author := seedUser(t, s.DB, "author")
	reader := seedUser(t, s.DB, "reader")
	c := seedContent(t, s.DB, author, "Rumi")

	res, err := s.Toggle(ctx, reader.ID, domain.ContentTarget(c.ID))
	if err != nil {
		t.Fatalf("like: %v", err)
	}
	if !res.Liked || res.LikeCount != 1 {
		t.Fatalf("after like got %+v", res)
	}
	if n := countRows(t, s.DB, &domain.Notification{}, "user_id = ? AND type = ? AND from_user_id = ?", author.ID, domain.NotificationLike, reader.ID); n != 1 {
		t.Fatalf("expected 1 like notification, got %d", n)
	}

	res, err = s.Toggle(ctx, reader.ID, domain.ContentTarget(c.ID))
	if err != nil {
		t.Fatalf("unlike: %v", err)
	}
	if res.Liked || res.LikeCount != 0 {
		t.Fatalf("after unlike got %+v", res)
	}
	if n := countRows(t, s.DB, &domain.Like{}, ""); n != 0 {
		t.Fatalf("ledger should be empty, got %d", n)
	}
	// Append-only: the earlier notification stays, with its like reference cleared.
	if n := countRows(t, s.DB, &domain.Notification{}, "type = ? AND like_id IS NULL", domain.NotificationLike); n != 1 {
		t.Fatalf("notification should survive unlike, got %d", n)
	}

	if _, err := s.Toggle(ctx, reader.ID, domain.ContentTarget(c.ID)); err != nil {
		t.Fatalf("re-like: %v", err)
	}
	if n := countRows(t, s.DB, &domain.Notification{}, "type = ?", domain.NotificationLike); n != 2 {
		t.Fatalf("re-like should add a second notification, got %d", n)
	}
}

func TestLikeService_Toggle_Comment(t *testing.T) {
	s := newLikeService(t)
	ctx := context.Background()
	author := seedUser(t, s.DB, "author")
	commenter := seedUser(t, s.DB, "commenter")
	reader := seedUser(t, s.DB, "reader")
	c := seedContent(t, s.DB, author, "Hafez")
	cm := seedComment(t, s.DB, c, commenter, "lovely")

	res, err := s.Toggle(ctx, reader.ID, domain.CommentTarget(cm.ID))
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if !res.Liked || res.LikeCount != 1 {
		t.Fatalf("got %+v", res)
	}
	if got := likeCountOf(t, s.DB, "comments", cm.ID); got != 1 {
		t.Fatalf("comment like_count = %d", got)
	}
	if got := likeCountOf(t, s.DB, "contents", c.ID); got != 0 {
		t.Fatalf("content like_count must be untouched, got %d", got)
	}
	if n := countRows(t, s.DB, &domain.Notification{}, "user_id = ? AND comment_id = ? AND content_id IS NULL", commenter.ID, cm.ID); n != 1 {
		t.Fatalf("expected notification to comment author, got %d", n)
	}
}

func TestLikeService_Toggle_Errors(t *testing.T) {
	s := newLikeService(t)
	ctx := context.Background()
	u := seedUser(t, s.DB, "u")

	if _, err := s.Toggle(ctx, u.ID, domain.LikeTarget{}); !errors.Is(err, ErrInvalidLikeTarget) {
		t.Fatalf("zero target: expected ErrInvalidLikeTarget, got %v", err)
	}
	if _, err := s.Toggle(ctx, u.ID, domain.ContentTarget("missing")); !errors.Is(err, ErrContentNotFound) {
		t.Fatalf("expected ErrContentNotFound, got %v", err)
	}
	if _, err := s.Toggle(ctx, u.ID, domain.CommentTarget("missing")); !errors.Is(err, ErrCommentNotFound) {
		t.Fatalf("expected ErrCommentNotFound, got %v", err)
	}
}

func TestLikeService_Toggle_AuthorlessContent(t *testing.T) {
	s := newLikeService(t)
	u := seedUser(t, s.DB, "u")
	c := seedContent(t, s.DB, nil, "orphan")

	res, err := s.Toggle(context.Background(), u.ID, domain.ContentTarget(c.ID))
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if !res.Liked || res.LikeCount != 1 {
		t.Fatalf("got %+v", res)
	}
	if n := countRows(t, s.DB, &domain.Notification{}, ""); n != 0 {
		t.Fatalf("no recipient means no notification, got %d", n)
	}
}

func TestLikeService_Toggle_SelfLikeWritesNotification(t *testing.T) {
	s := newLikeService(t)
	author := seedUser(t, s.DB, "author")
	c := seedContent(t, s.DB, author, "mine")

	if _, err := s.Toggle(context.Background(), author.ID, domain.ContentTarget(c.ID)); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if n := countRows(t, s.DB, &domain.Notification{}, "user_id = ? AND from_user_id = ?", author.ID, author.ID); n != 1 {
		t.Fatalf("self-like notification is written (and hidden on read), got %d", n)
	}
}

func TestLikeService_CounterMatchesLedger_Concurrent(t *testing.T) {
	s := newLikeService(t)
	ctx := context.Background()
	author := seedUser(t, s.DB, "author")
	c := seedContent(t, s.DB, author, "Attar")

	const n = 8
	users := make([]*domain.User, n)
	for i := range users {
		users[i] = seedUser(t, s.DB, "reader"+string(rune('a'+i)))
	}

	var wg sync.WaitGroup
	errs := make(chan error, n*3)
	for _, u := range users {
		u := u
		wg.Add(1)
		go func() {
			defer wg.Done()
			// like, unlike, like: each user ends liked.
			for i := 0; i < 3; i++ {
				if _, err := s.Toggle(ctx, u.ID, domain.ContentTarget(c.ID)); err != nil {
					errs <- err
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("toggle: %v", err)
	}

	ledger := countRows(t, s.DB, &domain.Like{}, "content_id = ?", c.ID)
	if ledger != n {
		t.Fatalf("ledger = %d, want %d", ledger, n)
	}
	if got := likeCountOf(t, s.DB, "contents", c.ID); got != ledger {
		t.Fatalf("like_count %d != ledger %d", got, ledger)
	}
}

func TestLikeService_Reconcile(t *testing.T) {
	s := newLikeService(t)
	ctx := context.Background()
	author := seedUser(t, s.DB, "author")
	reader := seedUser(t, s.DB, "reader")
	c := seedContent(t, s.DB, author, "drift")
	if _, err := s.Toggle(ctx, reader.ID, domain.ContentTarget(c.ID)); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if err := s.DB.Model(&domain.Content{}).Where("id = ?", c.ID).UpdateColumn("like_count", 42).Error; err != nil {
		t.Fatalf("corrupt counter: %v", err)
	}

	fixed, err := s.Reconcile(ctx)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if fixed != 1 {
		t.Fatalf("fixed = %d, want 1", fixed)
	}
	if got := likeCountOf(t, s.DB, "contents", c.ID); got != 1 {
		t.Fatalf("like_count = %d, want 1", got)
	}
	if fixed, _ := s.Reconcile(ctx); fixed != 0 {
		t.Fatalf("second reconcile fixed %d rows", fixed)
	}
}
