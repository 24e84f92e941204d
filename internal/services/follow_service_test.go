package services

import (
	"context"
	"errors"
	"testing"

	"github.com/tbourn/go-sufi-platform/internal/domain"
)

func newFollowService(t *testing.T) *FollowService {
	t.Helper()
	return &FollowService{DB: newTestDB(t), Notifier: NewNotifier(nil)}
}

func TestFollowService_SelfFollowIsNoop(t *testing.T) {
	s := newFollowService(t)
	a := seedUser(t, s.DB, "a")

	created, err := s.Follow(context.Background(), a.ID, "a")
	if err != nil || created {
		t.Fatalf("self follow: created=%v err=%v", created, err)
	}
	if n := countRows(t, s.DB, &domain.Follow{}, ""); n != 0 {
		t.Fatalf("expected no edges, got %d", n)
	}
}

func TestFollowService_FollowIdempotent(t *testing.T) {
	s := newFollowService(t)
	ctx := context.Background()
	a := seedUser(t, s.DB, "a")
	b := seedUser(t, s.DB, "b")

	created, err := s.Follow(ctx, a.ID, "b")
	if err != nil || !created {
		t.Fatalf("first follow: created=%v err=%v", created, err)
	}
	created, err = s.Follow(ctx, a.ID, "b")
	if err != nil || created {
		t.Fatalf("second follow: created=%v err=%v", created, err)
	}
	if n := countRows(t, s.DB, &domain.Follow{}, ""); n != 1 {
		t.Fatalf("expected one edge, got %d", n)
	}
	if n := countRows(t, s.DB, &domain.Notification{}, "user_id = ? AND type = ?", b.ID, domain.NotificationFollow); n != 1 {
		t.Fatalf("only the created edge notifies, got %d", n)
	}

	ok, err := s.IsFollowing(ctx, a.ID, b.ID)
	if err != nil || !ok {
		t.Fatalf("IsFollowing: %v %v", ok, err)
	}
	if ok, _ := s.IsFollowing(ctx, b.ID, a.ID); ok {
		t.Fatalf("edges are directed")
	}
}

func TestFollowService_UnfollowIdempotent(t *testing.T) {
	s := newFollowService(t)
	ctx := context.Background()
	a := seedUser(t, s.DB, "a")
	seedUser(t, s.DB, "b")

	if _, err := s.Follow(ctx, a.ID, "b"); err != nil {
		t.Fatalf("follow: %v", err)
	}
	removed, err := s.Unfollow(ctx, a.ID, "b")
	if err != nil || !removed {
		t.Fatalf("first unfollow: removed=%v err=%v", removed, err)
	}
	removed, err = s.Unfollow(ctx, a.ID, "b")
	if err != nil || removed {
		t.Fatalf("second unfollow: removed=%v err=%v", removed, err)
	}
}

func TestFollowService_Lists(t *testing.T) {
	s := newFollowService(t)
	ctx := context.Background()
	a := seedUser(t, s.DB, "a")
	b := seedUser(t, s.DB, "b")
	seedUser(t, s.DB, "c")

	for _, pair := range [][2]string{{a.ID, "c"}, {b.ID, "c"}, {a.ID, "b"}} {
		if _, err := s.Follow(ctx, pair[0], pair[1]); err != nil {
			t.Fatalf("follow: %v", err)
		}
	}

	followers, total, err := s.Followers(ctx, "c", 1, 10)
	if err != nil || total != 2 || len(followers) != 2 {
		t.Fatalf("followers of c: %v %d %v", followers, total, err)
	}
	for _, u := range followers {
		if u.Email != "" {
			t.Fatalf("email must not be exposed: %+v", u)
		}
	}
	following, total, err := s.Following(ctx, "a", 1, 10)
	if err != nil || total != 2 || len(following) != 2 {
		t.Fatalf("following of a: %v %d %v", following, total, err)
	}
	none, total, err := s.Following(ctx, "c", 1, 10)
	if err != nil || total != 0 || len(none) != 0 {
		t.Fatalf("following of c: %v %d %v", none, total, err)
	}

	if _, _, err := s.Followers(ctx, "ghost", 1, 10); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
	if _, err := s.Follow(ctx, a.ID, "ghost"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}
